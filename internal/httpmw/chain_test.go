package httpmw

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordingContext returns a context holding a live span whose export can
// be inspected through the returned recorder once it ends.
func recordingContext(t *testing.T) (context.Context, func(), *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "GET /docs/guides/staking")
	return ctx, func() { span.End() }, sr
}

func TestChain_Order(t *testing.T) {
	var got []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = append(got, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		got = append(got, "handler")
	}), tag("security"), nil, tag("request-id"), tag("logger"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/docs", nil))

	want := "security,request-id,logger,handler"
	if s := strings.Join(got, ","); s != want {
		t.Fatalf("order = %s, want %s", s, want)
	}
}

func TestMaxBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"under limit", `{"helpful":true}`, false},
		{"at limit", strings.Repeat("a", 32), false},
		{"over limit", strings.Repeat("a", 33), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var readErr error
			h := MaxBody(32)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, readErr = io.ReadAll(r.Body)
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/docs/feedback", strings.NewReader(tt.body))
			h.ServeHTTP(httptest.NewRecorder(), req)

			if !tt.wantErr {
				if readErr != nil {
					t.Fatalf("unexpected error: %v", readErr)
				}
				return
			}
			var mbe *http.MaxBytesError
			if !errors.As(readErr, &mbe) {
				t.Fatalf("err = %v, want *http.MaxBytesError", readErr)
			}
			if mbe.Limit != 32 {
				t.Errorf("limit = %d, want 32", mbe.Limit)
			}
		})
	}
}

func TestAnnotateHTTPRoute_UsesChiPattern(t *testing.T) {
	ctx, end, sr := recordingContext(t)

	r := chi.NewRouter()
	r.Use(AnnotateHTTPRoute)
	r.Get("/docs/{type}/{page}", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/docs/guides/staking", nil).WithContext(ctx)
	r.ServeHTTP(httptest.NewRecorder(), req)
	end()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if name := spans[0].Name(); name != "GET /docs/{type}/{page}" {
		t.Errorf("span name = %q", name)
	}
	var route string
	for _, a := range spans[0].Attributes() {
		if a.Key == attribute.Key("http.route") {
			route = a.Value.AsString()
		}
	}
	if route != "/docs/{type}/{page}" {
		t.Errorf("http.route = %q", route)
	}
}

func TestAnnotateHTTPRoute_NoSpan(t *testing.T) {
	called := false
	h := AnnotateHTTPRoute(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/about/team", nil))
	if !called {
		t.Fatal("handler not called")
	}
}

func TestIsQuietPath(t *testing.T) {
	tests := map[string]bool{
		"/-/healthy":                  true,
		"/-/ready":                    true,
		"/_site/site.css":             true,
		"/_site/docs.js":              true,
		"/img/logo.svg":               true,
		"/img/diagrams/flow":          true,
		"/favicon.ico":                true,
		"/robots.txt":                 true,
		"/fonts/inter.WOFF2":          true,
		"/docs/guides/staking":        false,
		"/docs/core-concepts":         false,
		"/api/docs":                   false,
		"/about/team":                 false,
		"/staking/validators":         false,
		"/docs/guides/site.css/extra": false,
	}
	for p, want := range tests {
		if got := IsQuietPath(p); got != want {
			t.Errorf("IsQuietPath(%q) = %v, want %v", p, got, want)
		}
	}
}
