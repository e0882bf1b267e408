package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/docsite/internal/health"
	"github.com/keithlinneman/docsite/internal/httpmw"
	"github.com/keithlinneman/docsite/internal/log"
)

// Options configures the public server. Nil fields switch the matching
// feature off.
type Options struct {
	Logger log.Logger
	Port   int

	UseRecoverMW bool
	OnPanic      func()

	MetricsMW    httpmw.Middleware
	RateLimitMW  httpmw.Middleware
	ClientIPOpts httpmw.ClientIPOptions

	// Health and Readiness back /-/healthy and /-/ready.
	Health    health.Probe
	Readiness health.Probe

	// ContentInfo feeds X-Content-Bundle-Version and X-Content-Hash.
	ContentInfo httpmw.ContentInfo

	// APIRoutes mounts the docs, team and staking routes plus the JSON API.
	APIRoutes func(chi.Router)
	// SiteHandler serves everything the router does not match: raw bundle
	// files, the 404 page and the maintenance page.
	SiteHandler http.Handler
}
