// Package cfg holds the server's process settings, read from command line
// flags and DOCSITE_* environment variables, and the optional site TOML
// file with presentation settings.
package cfg

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"

	"github.com/keithlinneman/docsite/internal/log"
)

// EnvPrefix is prepended to the upper-cased flag name to form the
// environment variable that can set it.
const EnvPrefix = "DOCSITE_"

type App struct {
	LogJSON           bool   `flag:"log-json"`
	LogLevel          string `flag:"log-level"        validate:"loglevel"`
	StacktraceLevel   string `flag:"stacktrace-level" validate:"omitempty,loglevel"`
	IncludeErrorLinks bool   `flag:"include-error-links"`
	MaxErrorLinks     int    `flag:"max-error-links"`

	HTTPPort    int           `flag:"http-port"   validate:"min=1,max=65535"`
	AdminPort   int           `flag:"admin-port"  validate:"min=1,max=65535,nefield=HTTPPort"`
	EnablePprof bool          `flag:"enable-pprof"`
	DrainDelay  time.Duration `flag:"drain-delay" validate:"gte=0"`

	EnableTracing bool    `flag:"enable-tracing"`
	OTLPEndpoint  string  `flag:"otlp-endpoint"`
	TraceSample   float64 `flag:"trace-sample" validate:"gte=0,lte=1"`

	EnablePyroscope bool   `flag:"enable-pyroscope"`
	PyroServer      string `flag:"pyro-server"`
	PyroTenantID    string `flag:"pyro-tenant"`

	EnableContentUpdates bool          `flag:"enable-content-updates"`
	ContentSSMParam      string        `flag:"content-ssm-param"`
	ContentS3Bucket      string        `flag:"content-s3-bucket"`
	ContentS3Prefix      string        `flag:"content-s3-prefix"`
	ContentSigningKeyARN string        `flag:"content-signing-key-arn"`
	ContentPollInterval  time.Duration `flag:"content-poll-interval" validate:"min=1s"`
	ContentDir           string        `flag:"content-dir"`
	SiteConfig           string        `flag:"site-config"`

	RateLimitRPS   float64 `flag:"rate-limit-rps"   validate:"gte=0"`
	RateLimitBurst int     `flag:"rate-limit-burst"`
}

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars(EnvPrefix + strings.ReplaceAll(strings.ToUpper(name), "-", "_"))
}

// Flags binds every App field to a flag. A flag given on the command line
// wins over its environment variable, which wins over the default.
func Flags(c *App) []cli.Flag {
	str := func(name, value, usage string, dst *string) cli.Flag {
		return &cli.StringFlag{Name: name, Value: value, Usage: usage, Destination: dst, Sources: env(name)}
	}
	boolean := func(name string, value bool, usage string, dst *bool) cli.Flag {
		return &cli.BoolFlag{Name: name, Value: value, Usage: usage, Destination: dst, Sources: env(name)}
	}
	integer := func(name string, value int, usage string, dst *int) cli.Flag {
		return &cli.IntFlag{Name: name, Value: value, Usage: usage, Destination: dst, Sources: env(name)}
	}
	float := func(name string, value float64, usage string, dst *float64) cli.Flag {
		return &cli.FloatFlag{Name: name, Value: value, Usage: usage, Destination: dst, Sources: env(name)}
	}
	duration := func(name string, value time.Duration, usage string, dst *time.Duration) cli.Flag {
		return &cli.DurationFlag{Name: name, Value: value, Usage: usage, Destination: dst, Sources: env(name)}
	}

	return []cli.Flag{
		boolean("log-json", true, "JSON logs (true) or logfmt (false)", &c.LogJSON),
		str("log-level", "info", "debug|info|warn|error", &c.LogLevel),
		str("stacktrace-level", "error", "lowest level that gets a stack attribute", &c.StacktraceLevel),
		boolean("include-error-links", true, "log where each layer of an error chain was wrapped", &c.IncludeErrorLinks),
		integer("max-error-links", 5, "max error chain depth (1..64)", &c.MaxErrorLinks),

		integer("http-port", 8080, "public listen TCP port", &c.HTTPPort),
		integer("admin-port", 9000, "ops listen TCP port for metrics, probes and pprof", &c.AdminPort),
		boolean("enable-pprof", true, "serve pprof on the ops port", &c.EnablePprof),
		duration("drain-delay", 60*time.Second, "how long readiness fails before listeners close on shutdown", &c.DrainDelay),

		boolean("enable-tracing", false, "export OTLP traces to -otlp-endpoint", &c.EnableTracing),
		str("otlp-endpoint", "", "OTLP gRPC collector (host:port)", &c.OTLPEndpoint),
		float("trace-sample", 0.0, "trace sampling ratio (0..1)", &c.TraceSample),

		boolean("enable-pyroscope", false, "push profiles to -pyro-server", &c.EnablePyroscope),
		str("pyro-server", "", "pyroscope server URL", &c.PyroServer),
		str("pyro-tenant", "", "pyroscope tenant (X-Scope-OrgID)", &c.PyroTenantID),

		boolean("enable-content-updates", false, "load and refresh content bundles from S3/SSM", &c.EnableContentUpdates),
		str("content-ssm-param", "/app/docsite/server/content/stable/release/id", "SSM parameter naming the current bundle hash", &c.ContentSSMParam),
		str("content-s3-bucket", "", "S3 bucket holding content bundles", &c.ContentS3Bucket),
		str("content-s3-prefix", "apps/docsite/server/content/bundles", "S3 key prefix of content bundles", &c.ContentS3Prefix),
		str("content-signing-key-arn", "", "KMS key that signs content bundles", &c.ContentSigningKeyARN),
		duration("content-poll-interval", 30*time.Second, "how often the SSM parameter is polled", &c.ContentPollInterval),
		str("content-dir", "", "serve an unpacked content bundle from this directory instead of S3", &c.ContentDir),
		str("site-config", "", "TOML file with site presentation settings", &c.SiteConfig),

		float("rate-limit-rps", 20, "per-client request rate on the public port (0 disables)", &c.RateLimitRPS),
		integer("rate-limit-burst", 40, "per-client burst on the public port", &c.RateLimitBurst),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("flag")
	})
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := log.ParseLevel(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate reports every invalid setting in c, or nil.
func Validate(c App) error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	var verrs validator.ValidationErrors
	if err := validate.Struct(c); errors.As(err, &verrs) {
		for _, fe := range verrs {
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			if fe.Tag() == "nefield" {
				rule = "must differ from -http-port"
			}
			bad("-%s: invalid value %v (%s)", fe.Field(), fe.Value(), rule)
		}
	} else if err != nil {
		errs = append(errs, err)
	}

	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		bad("-max-error-links must be 1..64 (got %d)", c.MaxErrorLinks)
	}

	if c.EnablePyroscope {
		if u, err := url.Parse(c.PyroServer); c.PyroServer == "" || err != nil || u.Scheme == "" || u.Host == "" {
			bad("-pyro-server must be a URL when pyroscope is enabled (got %q)", c.PyroServer)
		}
		if c.PyroTenantID == "" {
			bad("-pyro-tenant is required when pyroscope is enabled")
		}
	}

	// the gRPC exporter takes host:port without a scheme
	if c.EnableTracing {
		if err := validate.Var(c.OTLPEndpoint, "required,hostname_port"); err != nil {
			bad("-otlp-endpoint must be host:port when tracing is enabled (got %q)", c.OTLPEndpoint)
		}
	}

	if c.EnableContentUpdates {
		required := []struct{ flag, value string }{
			{"content-ssm-param", c.ContentSSMParam},
			{"content-s3-bucket", c.ContentS3Bucket},
			{"content-s3-prefix", c.ContentS3Prefix},
			// bundles pulled from S3 are always signature checked
			{"content-signing-key-arn", c.ContentSigningKeyARN},
		}
		for _, r := range required {
			if r.value == "" {
				bad("-%s is required when content updates are enabled", r.flag)
			}
		}
		if c.ContentDir != "" {
			bad("-content-dir and -enable-content-updates are mutually exclusive")
		}
	}

	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		bad("-rate-limit-burst must be >= 1 when rate limiting (got %d)", c.RateLimitBurst)
	}

	return errors.Join(errs...)
}
