// Package prof pushes continuous profiles to a Pyroscope server.
package prof

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/samber/oops"

	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/version"
)

type Options struct {
	Enabled       bool
	ServerAddress string
	TenantID      string
	UploadRate    time.Duration // pyroscope default when zero

	// Build and Component name the application and seed its tags.
	Build     version.Info
	Component string
	Tags      map[string]string // added to, and overriding, the build tags

	// Mutex and block profiles are only collected when their runtime
	// rate is set.
	MutexProfileFraction int
	BlockProfileRate     int
}

// Start begins profiling when enabled. The returned stop func is never
// nil and may be called any number of times.
func Start(ctx context.Context, opts Options) (stop func(), err error) {
	L := log.FromContext(ctx)
	noop := func() {}

	if !opts.Enabled {
		L.Info(ctx, "pyroscope disabled")
		return noop, nil
	}

	errb := oops.In("prof").With("server_address", opts.ServerAddress)
	if u, perr := url.Parse(opts.ServerAddress); perr != nil || u.Scheme == "" || u.Host == "" {
		return noop, errb.
			Code("PYROSCOPE_CONFIG").
			Hint("set -pyro-server to the server URL, for example http://localhost:4040").
			Errorf("invalid server address %q", opts.ServerAddress)
	}

	if opts.MutexProfileFraction > 0 {
		runtime.SetMutexProfileFraction(opts.MutexProfileFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}

	app := appName(opts)
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: app,
		ServerAddress:   opts.ServerAddress,
		TenantID:        opts.TenantID,
		UploadRate:      opts.UploadRate,
		Tags:            tags(opts),
		ProfileTypes:    profileTypes(opts),
		Logger:          pyroLogger{ctx: ctx, L: L.With("component", "pyroscope")},
	})
	if err != nil {
		return noop, errb.Code("PYROSCOPE_START").Wrapf(err, "starting pyroscope")
	}
	L.Info(ctx, "pyroscope started", "server_address", opts.ServerAddress, "app_name", app)

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := profiler.Stop(); err != nil {
				L.Warn(context.Background(), "pyroscope stop", "error", err)
			}
			L.Info(context.Background(), "pyroscope stopped", "app_name", app)
		})
	}, nil
}

func appName(opts Options) string {
	name := version.AppName
	if opts.Component != "" {
		name += "." + opts.Component
	}
	return name
}

func tags(opts Options) map[string]string {
	t := map[string]string{
		"app":    version.AppName,
		"source": "go-agent",
	}
	if opts.Component != "" {
		t["component"] = opts.Component
	}
	if b := opts.Build; b.Version != "" {
		t["version"] = b.Version
	}
	if b := opts.Build; b.Commit != "" {
		t["commit"] = b.Commit
	}
	if b := opts.Build; b.BuildId != "" {
		t["build_id"] = b.BuildId
	}
	maps.Copy(t, opts.Tags)
	return t
}

func profileTypes(opts Options) []pyroscope.ProfileType {
	types := []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocObjects,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseObjects,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileGoroutines,
	}
	if opts.MutexProfileFraction > 0 {
		types = append(types, pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration)
	}
	if opts.BlockProfileRate > 0 {
		types = append(types, pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration)
	}
	return types
}

// pyroLogger sends the agent's own logging to ours. Upload failures are
// warnings since profiling is best effort.
type pyroLogger struct {
	ctx context.Context
	L   log.Logger
}

func (p pyroLogger) Infof(format string, args ...any) {
	p.L.Debug(p.ctx, fmt.Sprintf(format, args...))
}

func (p pyroLogger) Debugf(format string, args ...any) {
	p.L.Debug(p.ctx, fmt.Sprintf(format, args...))
}

func (p pyroLogger) Errorf(format string, args ...any) {
	p.L.Warn(p.ctx, fmt.Sprintf(format, args...))
}
