package httpmw

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Middleware is the shape every function in this package returns.
type Middleware = func(http.Handler) http.Handler

// Chain wraps h so that mws[0] runs first. Nil entries are skipped.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// MaxBody caps request bodies at n bytes. Reading past the cap fails with
// *http.MaxBytesError and the server answers 413.
func MaxBody(n int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// AnnotateHTTPRoute renames the server span after the chi route pattern
// once the router has matched, so /docs/guides/staking and
// /docs/guides/accounts share one span name.
func AnnotateHTTPRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		span := trace.SpanFromContext(r.Context())
		if !span.IsRecording() {
			return
		}
		route := routePattern(r)
		span.SetAttributes(attribute.String("http.route", route))
		span.SetName(r.Method + " " + route)
	})
}

// routePattern is the matched chi pattern, or the raw path when the
// request fell through to the site handler.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// quietExts are asset types that produce neither access logs nor spans.
var quietExts = map[string]struct{}{
	".css": {}, ".js": {}, ".map": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {}, ".gif": {}, ".svg": {}, ".ico": {},
	".woff": {}, ".woff2": {},
}

// IsQuietPath reports whether requests for p are too noisy to log or
// trace: health checks, the site chrome under /_site/, bundle images,
// favicons and robots.txt.
func IsQuietPath(p string) bool {
	switch p {
	case "/-/healthy", "/-/ready", "/robots.txt", "/favicon.ico", "/favicon.svg":
		return true
	}
	if strings.HasPrefix(p, "/_site/") || strings.HasPrefix(p, "/img/") {
		return true
	}
	_, ok := quietExts[strings.ToLower(path.Ext(p))]
	return ok
}
