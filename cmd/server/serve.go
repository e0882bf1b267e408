package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/docsite/internal/cfg"
	"github.com/keithlinneman/docsite/internal/docpage"
	"github.com/keithlinneman/docsite/internal/docsapi"
	"github.com/keithlinneman/docsite/internal/health"
	"github.com/keithlinneman/docsite/internal/httpmw"
	"github.com/keithlinneman/docsite/internal/httpserver"
	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/metrics"
	"github.com/keithlinneman/docsite/internal/opshttp"
	"github.com/keithlinneman/docsite/internal/otelx"
	"github.com/keithlinneman/docsite/internal/pages"
	"github.com/keithlinneman/docsite/internal/prof"
	"github.com/keithlinneman/docsite/internal/ratelimit"
	"github.com/keithlinneman/docsite/internal/sitehandler"
	"github.com/keithlinneman/docsite/internal/sitehttp"
	"github.com/keithlinneman/docsite/internal/toolfetch"
	v "github.com/keithlinneman/docsite/internal/version"
	"github.com/keithlinneman/docsite/internal/webassets"
	"github.com/keithlinneman/docsite/internal/xerrors"
)

const shutdownTimeout = 10 * time.Second

func newLogger(conf cfg.App, vi v.Info) (log.Logger, error) {
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		return nil, err
	}
	return log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		BuildId:           vi.BuildId,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
}

func serve(ctx context.Context, conf cfg.App, site cfg.Site) error {
	vi := v.Get()

	lg, err := newLogger(conf, vi)
	if err != nil {
		return xerrors.Wrap(err, "logger init")
	}
	defer func() { _ = lg.Sync() }()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"build", vi.String(),
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"enable_content_updates", conf.EnableContentUpdates,
		"otlp_endpoint", conf.OTLPEndpoint,
		"pyro_server", conf.PyroServer,
		"trace_sample", conf.TraceSample,
		"content_ssm_param", conf.ContentSSMParam,
		"content_s3_bucket", conf.ContentS3Bucket,
		"content_s3_prefix", conf.ContentS3Prefix,
		"content_dir", conf.ContentDir,
		"site_config", conf.SiteConfig,
		"site_name", site.Name,
		"tool_fetch_timeout", site.Tools.FetchTimeout,
		"rate_limit_rps", conf.RateLimitRPS,
		"drain_delay", conf.DrainDelay,
	)

	stopProf, profErr := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Build:         vi,
		Component:     "server",
	})
	if profErr != nil {
		// profiling is best effort
		L.Error(ctx, profErr, "pyroscope start failed")
	}
	defer stopProf()

	// the collector runs on localhost, so no TLS
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Component: "server",
		Build:     vi,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, tracing disabled")
		shutdownOTEL = func(context.Context) error { return nil }
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)
	m.SetProfilingActive(conf.EnablePyroscope && profErr == nil)

	contentMgr, err := startContent(ctx, L, conf, site, m)
	if err != nil {
		return err
	}

	fetcher := toolfetch.New(toolfetch.Options{
		Timeout:   site.Tools.FetchTimeout,
		MaxBytes:  site.Tools.MaxBytes,
		UserAgent: site.Tools.UserAgent + "/" + vi.Version,
	})
	defer fetcher.Close()

	docsRenderer, err := docpage.NewRenderer(nil, site.DocsPage())
	if err != nil {
		return xerrors.Wrap(err, "parse docs templates")
	}
	pagesRenderer, err := pages.NewRenderer()
	if err != nil {
		return xerrors.Wrap(err, "parse page templates")
	}

	siteHandler, err := sitehandler.New(sitehandler.Options{
		Logger:     L,
		Content:    contentMgr,
		FallbackFS: webassets.FallbackFS(),
	})
	if err != nil {
		return xerrors.Wrap(err, "create site handler")
	}

	sitePages, err := sitehttp.New(sitehttp.Options{
		Content:      contentMgr,
		Fetcher:      fetcher,
		Docs:         docsRenderer,
		Pages:        pagesRenderer,
		Staking:      site.StakingDefaults(),
		Fallback:     siteHandler,
		Metrics:      m,
		HeaderOffset: float64(site.Docs.HeaderOffset),
		Assets:       webassets.StaticFS(),
	})
	if err != nil {
		return xerrors.Wrap(err, "create site pages")
	}

	docsAPI := docsapi.NewAPI(docsapi.Options{
		Content:  contentMgr,
		Fetcher:  fetcher,
		Feedback: m,
		Logger:   L,
	})

	// readiness fails while draining and until some content is loaded
	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.CheckFunc(func(context.Context) error { return contentMgr.ReadyErr() }),
	)

	siteHTTPStop, err := httpserver.Start(ctx, httpserver.Options{
		Port:      conf.HTTPPort,
		Health:    health.Fixed(true, ""),
		Readiness: readiness,
		APIRoutes: func(r chi.Router) {
			sitePages.RegisterRoutes(r)
			docsAPI.RegisterRoutes(r)
		},
		SiteHandler:  siteHandler,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  rateLimiter(ctx, L, conf, m),
		Logger:       L,
		ContentInfo:  contentMgr,
	})
	if err != nil {
		return xerrors.Wrap(err, "start site listener")
	}

	opsHTTPStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:         conf.AdminPort,
		Metrics:      m.Handler(),
		EnablePprof:  conf.EnablePprof,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
	})
	if err != nil {
		_ = siteHTTPStop(context.Background())
		return xerrors.Wrap(err, "start ops listener")
	}

	if err := notifySystemd(); err != nil {
		// systemd kills us after its start timeout if this mattered
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	bg := context.Background()
	L.Info(bg, "shutdown signal received")

	gate.Set("draining")
	drain(bg, L, conf.DrainDelay)

	shutdownCtx, cancel := context.WithTimeout(bg, shutdownTimeout)
	defer cancel()
	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "site http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(bg, err, "otel shutdown")
	}

	L.Info(bg, "shutdown complete")
	return nil
}

// drain keeps serving while readiness fails so load balancers stop
// sending traffic. A second signal cuts it short.
func drain(ctx context.Context, L log.Logger, d time.Duration) {
	if d <= 0 {
		return
	}
	L.Info(ctx, "draining before shutdown", "drain_delay", d)
	force := make(chan os.Signal, 1)
	signal.Notify(force, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(force)

	select {
	case <-time.After(d):
		L.Info(ctx, "drain period complete")
	case <-force:
		L.Warn(ctx, "second signal received, skipping drain")
	}
}

// rateLimiter returns nil when rate limiting is off.
func rateLimiter(ctx context.Context, L log.Logger, conf cfg.App, m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	if conf.RateLimitRPS <= 0 {
		return nil
	}
	limiter := ratelimit.New(ctx,
		ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
		// a page view also pulls the chrome and bundle images
		ratelimit.WithExempt(func(r *http.Request) bool { return httpmw.IsQuietPath(r.URL.Path) }),
		ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }),
		// once per address until it is evicted
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit table full, refusing new visitors until some are evicted")
		}),
	)
	return limiter.Middleware
}
