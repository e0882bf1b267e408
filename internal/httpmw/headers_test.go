package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSecurityHeaders(t *testing.T) {
	var seenInHandler string
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		seenInHandler = w.Header().Get("X-Frame-Options")
		http.NotFound(w, nil)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/missing", nil))

	if seenInHandler != "DENY" {
		t.Errorf("headers not set before handler ran: X-Frame-Options = %q", seenInHandler)
	}
	for _, kv := range securityHeaders {
		if got := rec.Header().Get(kv[0]); got != kv[1] {
			t.Errorf("%s = %q, want %q", kv[0], got, kv[1])
		}
	}

	csp := rec.Header().Get("Content-Security-Policy")
	for _, directive := range []string{"script-src 'self'", "frame-src 'none'", "frame-ancestors 'none'", "object-src 'none'"} {
		if !strings.Contains(csp, directive) {
			t.Errorf("CSP missing %q: %s", directive, csp)
		}
	}
}

type fixedContent struct{ version, hash string }

func (f fixedContent) ContentVersion() string { return f.version }
func (f fixedContent) ContentHash() string    { return f.hash }

func TestContentHeaders(t *testing.T) {
	tests := []struct {
		name        string
		info        ContentInfo
		wantVersion string
		wantHash    string
	}{
		{"full hash shortened", fixedContent{"2026.10.01", "9f86d081884c7d659a2feaa0c55ad015"}, "2026.10.01", "9f86d081884c"},
		{"short hash kept", fixedContent{"initial-seed", "abc123"}, "initial-seed", "abc123"},
		{"no version", fixedContent{"", "abcdef0123456789"}, "", "abcdef012345"},
		{"nothing loaded", fixedContent{}, "", ""},
		{"nil info", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ContentHeaders(tt.info)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := rec.Header().Get("X-Content-Bundle-Version"); got != tt.wantVersion {
				t.Errorf("version header = %q, want %q", got, tt.wantVersion)
			}
			if got := rec.Header().Get("X-Content-Hash"); got != tt.wantHash {
				t.Errorf("hash header = %q, want %q", got, tt.wantHash)
			}
		})
	}
}

func TestTraceResponseHeaders(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	t.Run("valid span", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/docs", nil).WithContext(sampled)
		TraceResponseHeaders("", "")(okHandler).ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Trace-Id"); got != traceID.String() {
			t.Errorf("X-Trace-Id = %q", got)
		}
		if got := rec.Header().Get("X-Span-Id"); got != spanID.String() {
			t.Errorf("X-Span-Id = %q", got)
		}
	})

	t.Run("custom names", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/docs", nil).WithContext(sampled)
		TraceResponseHeaders("Trace", "Span")(okHandler).ServeHTTP(rec, req)

		if rec.Header().Get("Trace") == "" || rec.Header().Get("Span") == "" {
			t.Errorf("custom headers missing: %v", rec.Header())
		}
	})

	t.Run("no span", func(t *testing.T) {
		rec := httptest.NewRecorder()
		TraceResponseHeaders("", "")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))

		if rec.Header().Get("X-Trace-Id") != "" || rec.Header().Get("X-Span-Id") != "" {
			t.Errorf("unexpected trace headers: %v", rec.Header())
		}
	})
}
