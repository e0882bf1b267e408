package httpmw

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/docsite/internal/log"
)

type logEntry struct {
	level string
	msg   string
	err   error
	kv    []any
}

// captureLogger records entries with the fields accumulated through With.
type captureLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  []any
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (c *captureLogger) With(kv ...any) log.Logger {
	return &captureLogger{mu: c.mu, entries: c.entries, fields: append(append([]any{}, c.fields...), kv...)}
}

func (c *captureLogger) add(level string, err error, msg string, kv []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.entries = append(*c.entries, logEntry{level: level, msg: msg, err: err, kv: append(append([]any{}, c.fields...), kv...)})
}

func (c *captureLogger) Debug(_ context.Context, msg string, kv ...any) { c.add("debug", nil, msg, kv) }
func (c *captureLogger) Info(_ context.Context, msg string, kv ...any)  { c.add("info", nil, msg, kv) }
func (c *captureLogger) Warn(_ context.Context, msg string, kv ...any)  { c.add("warn", nil, msg, kv) }
func (c *captureLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	c.add("error", err, msg, kv)
}
func (c *captureLogger) Sync() error { return nil }

func (c *captureLogger) all() []logEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]logEntry(nil), *c.entries...)
}

func (e logEntry) field(key string) (any, bool) {
	for i := 0; i+1 < len(e.kv); i += 2 {
		if k, _ := e.kv[i].(string); k == key {
			return e.kv[i+1], true
		}
	}
	return nil, false
}

// servePublic runs a request through the same layering httpserver uses:
// request ID, client IP and WithLogger outside a chi router that applies
// AccessLog.
func servePublic(t *testing.T, L log.Logger, req *http.Request, routes func(chi.Router)) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(AccessLog())
	routes(r)

	h := Chain(r, RequestID(""), ClientIP, WithLogger(L))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAccessLog_DocsRequest(t *testing.T) {
	L := newCaptureLogger()
	req := httptest.NewRequest(http.MethodGet, "/docs/guides/staking?ref=nav", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	req.Header.Set("User-Agent", "secret-agent")

	servePublic(t, L, req, func(r chi.Router) {
		r.Get("/docs/{type}/{page}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("staking"))
		})
	})

	entries := L.all()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.level != "info" || e.msg != "http request" {
		t.Fatalf("entry = %s %q", e.level, e.msg)
	}
	want := map[string]any{
		"http.response.status_code": http.StatusAccepted,
		"http.response.body.size":   int64(len("staking")),
		"http.route":                "/docs/{type}/{page}",
		"url.path":                  "/docs/guides/staking",
		"client.address":            "203.0.113.7",
		"network.peer.address":      "203.0.113.7",
		"http.request.method":       http.MethodGet,
		"url.scheme":                "http",
	}
	for k, v := range want {
		if got, ok := e.field(k); !ok || got != v {
			t.Errorf("%s = %v (present %v), want %v", k, got, ok, v)
		}
	}
	if id, _ := e.field("request_id"); id == "" {
		t.Error("request_id missing")
	}
	if _, ok := e.field("http.server.request.duration"); !ok {
		t.Error("duration missing")
	}
	for _, kv := range e.kv {
		if s, ok := kv.(string); ok && (strings.Contains(s, "secret-agent") || strings.Contains(s, "ref=nav")) {
			t.Errorf("user-supplied value logged: %q", s)
		}
	}
}

func TestAccessLog_DefaultsAndFallbacks(t *testing.T) {
	L := newCaptureLogger()
	servePublic(t, L, httptest.NewRequest(http.MethodGet, "/unrouted", nil), func(r chi.Router) {
		// chi only runs Use middlewares once the mux has a route
		r.Get("/docs", func(http.ResponseWriter, *http.Request) {})
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("x")) })
	})

	entries := L.all()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if got, _ := entries[0].field("http.response.status_code"); got != http.StatusOK {
		t.Errorf("status = %v, want implicit 200", got)
	}
	if got, _ := entries[0].field("http.route"); got != "/unrouted" {
		t.Errorf("route = %v, want raw path", got)
	}
}

func TestAccessLog_SkipsQuietPaths(t *testing.T) {
	for _, p := range []string{"/_site/site.css", "/img/logo.svg", "/-/ready", "/favicon.ico"} {
		L := newCaptureLogger()
		servePublic(t, L, httptest.NewRequest(http.MethodGet, p, nil), func(r chi.Router) {
			r.Get("/docs", func(http.ResponseWriter, *http.Request) {})
			r.NotFound(func(http.ResponseWriter, *http.Request) {})
		})
		if n := len(L.all()); n != 0 {
			t.Errorf("%s logged %d entries", p, n)
		}
	}
}

func TestAccessLog_WriteSpan(t *testing.T) {
	ctx, end, sr := recordingContext(t)
	h := AccessLog()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/docs", nil).WithContext(ctx))
	end()

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	if len(names) != 2 || names[0] != "response.write" {
		t.Errorf("ended spans = %v, want response.write then parent", names)
	}
}

func TestScope(t *testing.T) {
	L := newCaptureLogger()
	servePublic(t, L, httptest.NewRequest(http.MethodGet, "/about/team", nil), func(r chi.Router) {
		r.With(Scope("team")).Get("/about/team", func(_ http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).Warn(r.Context(), "team.json missing")
		})
	})

	var warn logEntry
	for _, e := range L.all() {
		if e.level == "warn" {
			warn = e
		}
	}
	if got, _ := warn.field("handler"); got != "team" {
		t.Errorf("handler field = %v, want team", got)
	}
}

func TestSchemeFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		proto string
		url   string
		tls   bool
		want  string
	}{
		{"forwarded https", "https", "/", false, "https"},
		{"forwarded upper case", "HTTPS", "/", false, "https"},
		{"forwarded chain", "https, http", "/", false, "https"},
		{"forwarded garbage ignored", "javascript", "/", false, "http"},
		{"forwarded newline ignored", "https\r\nX-Evil: 1", "/", true, "https"},
		{"absolute url", "", "https://docs.example.com/docs", false, "https"},
		{"tls", "", "/", true, "https"},
		{"plain", "", "/", false, "http"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			} else {
				req.TLS = nil
			}
			if got := schemeFromRequest(req); got != tt.want {
				t.Errorf("scheme = %q, want %q", got, tt.want)
			}
		})
	}
}

type plainWriter struct{ http.ResponseWriter }

func TestStatusRecorder_Hijack(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: plainWriter{httptest.NewRecorder()}, ctx: context.Background()}
	if _, _, err := rec.Hijack(); !errors.Is(err, errNoHijack) {
		t.Errorf("err = %v, want errNoHijack", err)
	}
	rec.Flush()
}
