package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/docsite/internal/httpmw"
)

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
	warned   bool // OnFirstDenied already fired for this bucket
}

// IPLimiter holds one token bucket per client address.
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	full     bool // OnCapacity already fired since the table last had room

	limit       rate.Limit
	burst       int
	ttl         time.Duration
	maxVisitors int
	exempt      func(*http.Request) bool
	now         func() time.Time

	onCapacity    func()
	onFirstDenied func(ip string)
	onDenied      func(ip string)
}

type Option func(*IPLimiter)

// WithRate sets the steady rate per second and the burst size.
func WithRate(perSecond float64, burst int) Option {
	return func(l *IPLimiter) { l.limit, l.burst = rate.Limit(perSecond), burst }
}

// WithTTL sets how long an idle bucket is kept.
func WithTTL(d time.Duration) Option { return func(l *IPLimiter) { l.ttl = d } }

// WithMaxVisitors caps the bucket table. New addresses are refused while
// it is full. Zero means unbounded.
func WithMaxVisitors(n int) Option { return func(l *IPLimiter) { l.maxVisitors = n } }

// WithExempt skips limiting for requests matching fn.
func WithExempt(fn func(*http.Request) bool) Option { return func(l *IPLimiter) { l.exempt = fn } }

// WithOnCapacity runs once each time the table fills up.
func WithOnCapacity(fn func()) Option { return func(l *IPLimiter) { l.onCapacity = fn } }

// WithOnFirstDenied runs the first time an address is refused, and again
// only after its bucket has been evicted.
func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.onFirstDenied = fn }
}

// WithOnDenied runs on every refusal.
func WithOnDenied(fn func(ip string)) Option { return func(l *IPLimiter) { l.onDenied = fn } }

func withClock(now func() time.Time) Option { return func(l *IPLimiter) { l.now = now } }

// New builds a limiter (defaults: 10/s, burst 30, 5m TTL, 100k visitors)
// and runs eviction until ctx is done.
func New(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		visitors:    make(map[string]*visitor),
		limit:       10,
		burst:       30,
		ttl:         5 * time.Minute,
		maxVisitors: 100_000,
		now:         time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	if l.ttl <= 0 {
		l.ttl = 5 * time.Minute
	}
	go l.evictLoop(ctx)
	return l
}

type verdict int

const (
	allowed verdict = iota
	denied
	deniedFirst
	deniedFull
	deniedFullFirst
)

func (l *IPLimiter) check(ip string) verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		if l.maxVisitors > 0 && len(l.visitors) >= l.maxVisitors {
			if l.full {
				return deniedFull
			}
			l.full = true
			return deniedFullFirst
		}
		v = &visitor{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	if v.bucket.AllowN(now, 1) {
		return allowed
	}
	if v.warned {
		return denied
	}
	v.warned = true
	return deniedFirst
}

// allow applies the bucket for ip and fires the callbacks outside the lock.
func (l *IPLimiter) allow(ip string) bool {
	switch l.check(ip) {
	case allowed:
		return true
	case deniedFullFirst:
		if l.onCapacity != nil {
			l.onCapacity()
		}
	case deniedFirst:
		if l.onFirstDenied != nil {
			l.onFirstDenied(ip)
		}
		if l.onDenied != nil {
			l.onDenied(ip)
		}
	case denied:
		if l.onDenied != nil {
			l.onDenied(ip)
		}
	}
	return false
}

func (l *IPLimiter) evictLoop(ctx context.Context) {
	t := time.NewTicker(l.ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.evict(l.now())
		}
	}
}

// evict drops buckets idle for longer than the TTL.
func (l *IPLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, ip)
		}
	}
	if l.maxVisitors <= 0 || len(l.visitors) < l.maxVisitors {
		l.full = false
	}
}

// retryAfter is how long a drained bucket needs to earn one token.
func (l *IPLimiter) retryAfter() string {
	secs := 1
	if l.limit > 0 && l.limit < 1 {
		secs = int(1/float64(l.limit) + 0.999)
	}
	return strconv.Itoa(secs)
}

// Middleware answers 429 with a JSON body once the client's bucket is
// empty. The client address comes from httpmw.ClientIP.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.exempt != nil && l.exempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !l.allow(httpmw.ClientIPFromContext(r.Context())) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", l.retryAfter())
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
