package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/keithlinneman/docsite/internal/httpmw"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLimiter(t *testing.T, opts ...Option) (*IPLimiter, *fakeClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	clock := &fakeClock{t: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	base := []Option{WithRate(1, 3), WithTTL(time.Hour), withClock(clock.now)}
	return New(ctx, append(base, opts...)...), clock
}

func TestAllow_BurstThenRefill(t *testing.T) {
	l, clock := newLimiter(t)

	for i := range 3 {
		if !l.allow("198.51.100.1") {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	if l.allow("198.51.100.1") {
		t.Fatal("request past burst allowed")
	}
	if !l.allow("198.51.100.2") {
		t.Fatal("other address shares the bucket")
	}

	clock.advance(time.Second)
	if !l.allow("198.51.100.1") {
		t.Fatal("bucket did not refill after one second")
	}
	if l.allow("198.51.100.1") {
		t.Fatal("refill granted more than one token")
	}
}

func TestAllow_Callbacks(t *testing.T) {
	var first, all []string
	l, clock := newLimiter(t,
		WithRate(1, 1),
		WithTTL(time.Minute),
		WithOnFirstDenied(func(ip string) { first = append(first, ip) }),
		WithOnDenied(func(ip string) { all = append(all, ip) }),
	)

	for range 4 {
		l.allow("203.0.113.5")
	}
	if len(first) != 1 || len(all) != 3 {
		t.Fatalf("first = %v, all = %v", first, all)
	}

	clock.advance(2 * time.Minute)
	l.evict(clock.now())
	l.allow("203.0.113.5")
	l.allow("203.0.113.5")
	if len(first) != 2 {
		t.Errorf("OnFirstDenied should fire again after eviction, got %v", first)
	}
}

func TestEvict(t *testing.T) {
	l, clock := newLimiter(t, WithTTL(time.Minute))
	l.allow("a")
	clock.advance(45 * time.Second)
	l.allow("b")
	clock.advance(30 * time.Second)
	l.evict(clock.now())

	l.mu.Lock()
	_, hasA := l.visitors["a"]
	_, hasB := l.visitors["b"]
	l.mu.Unlock()
	if hasA || !hasB {
		t.Errorf("after evict: a=%v b=%v, want only b", hasA, hasB)
	}
}

func TestMaxVisitors(t *testing.T) {
	capacity := 0
	l, clock := newLimiter(t,
		WithMaxVisitors(2),
		WithTTL(time.Minute),
		WithOnCapacity(func() { capacity++ }),
	)

	l.allow("a")
	l.allow("b")
	if l.allow("c") || l.allow("d") {
		t.Fatal("new address admitted while the table is full")
	}
	if capacity != 1 {
		t.Errorf("OnCapacity calls = %d, want 1", capacity)
	}
	if !l.allow("a") {
		t.Error("known address refused at capacity")
	}

	clock.advance(2 * time.Minute)
	l.evict(clock.now())
	if !l.allow("c") {
		t.Error("eviction did not free capacity")
	}
	l.allow("d")
	l.allow("e")
	if capacity != 2 {
		t.Errorf("OnCapacity should re-arm after eviction, calls = %d", capacity)
	}
}

func TestMaxVisitors_Zero(t *testing.T) {
	l, _ := newLimiter(t, WithMaxVisitors(0))
	for i := range 500 {
		if !l.allow(string(rune('a'+i%26)) + string(rune(i))) {
			t.Fatalf("visitor %d refused with no cap", i)
		}
	}
}

func TestNilCallbacks(t *testing.T) {
	l, _ := newLimiter(t, WithRate(1, 1), WithMaxVisitors(1))
	l.allow("a")
	l.allow("a")
	l.allow("b")
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		perSecond float64
		want      string
	}{
		{10, "1"},
		{1, "1"},
		{0.5, "2"},
		{0.1, "10"},
	}
	for _, tt := range tests {
		l, _ := newLimiter(t, WithRate(tt.perSecond, 1))
		if got := l.retryAfter(); got != tt.want {
			t.Errorf("rate %v: Retry-After = %s, want %s", tt.perSecond, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newLimiter(t,
		WithRate(1, 1),
		WithExempt(func(r *http.Request) bool { return httpmw.IsQuietPath(r.URL.Path) }),
	)
	reached := 0
	h := httpmw.ClientIP(l.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached++ })))

	get := func(path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := get("/docs/guides/staking", "198.51.100.9:1000"); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := get("/docs/guides/accounts", "198.51.100.9:1001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" || rec.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("429 headers = %v", rec.Header())
	}
	if rec.Body.String() != `{"error":"too many requests"}`+"\n" {
		t.Errorf("429 body = %q", rec.Body.String())
	}

	for _, p := range []string{"/_site/site.css", "/_site/docs.js", "/img/logo.svg"} {
		if rec := get(p, "198.51.100.9:1002"); rec.Code != http.StatusOK {
			t.Errorf("exempt %s = %d", p, rec.Code)
		}
	}
	if rec := get("/docs/guides/staking", "198.51.100.10:1000"); rec.Code != http.StatusOK {
		t.Errorf("other client = %d", rec.Code)
	}
	if reached != 5 {
		t.Errorf("handler reached %d times, want 5", reached)
	}
}

func TestConcurrentAllow(t *testing.T) {
	l, _ := newLimiter(t, WithRate(1000, 1000), WithMaxVisitors(50))
	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				l.allow(string(rune('A' + (g*100+i)%80)))
			}
		}()
	}
	wg.Wait()

	l.mu.Lock()
	n := len(l.visitors)
	l.mu.Unlock()
	if n > 50 {
		t.Errorf("visitors = %d, cap is 50", n)
	}
}
