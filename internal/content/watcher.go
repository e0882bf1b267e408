package content

import (
	"context"
	"time"

	"github.com/keithlinneman/docsite/internal/cryptoutil"
	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/xerrors"
)

const (
	DefaultPollInterval   = 30 * time.Second
	DefaultStaleThreshold = 30 * time.Minute

	maxBackoff = 5 * time.Minute
)

// BundleFetcher is the part of Loader the watcher uses.
type BundleFetcher interface {
	FetchCurrentBundleHash(ctx context.Context) (string, error)
	LoadHash(ctx context.Context, hash string) (*Snapshot, error)
}

// WatcherMetrics is implemented by metrics.ServerMetrics.
type WatcherMetrics interface {
	IncWatcherPolls()
	IncWatcherSwaps()
	IncWatcherError(stage string)
	ObserveBundleLoadDuration(seconds float64)
	SetWatcherLastSuccess(unixSeconds float64)
	SetWatcherStale(stale bool)
}

type WatcherOptions struct {
	Logger       log.Logger
	Loader       BundleFetcher
	Manager      *Manager
	PollInterval time.Duration // default DefaultPollInterval

	// Validation gates every new bundle. nil means DefaultValidationOptions.
	Validation *ValidationOptions

	// OnSwap runs on the poll goroutine after each swap. A panic in it is
	// logged and does not stop the watcher.
	OnSwap func(hash, version string)

	Metrics WatcherMetrics

	// StaleThreshold is how long SSM may fail before the content is
	// reported stale. Default DefaultStaleThreshold.
	StaleThreshold time.Duration
}

// pollResult is what one poll did. Failures carry the stage name used
// as the metrics label.
type pollResult string

const (
	pollUnchanged pollResult = "unchanged"
	pollSwapped   pollResult = "swapped"
	pollSSMFailed pollResult = "ssm"
	pollLoadFail  pollResult = "load"
	pollRejected  pollResult = "validation"
)

// Watcher polls the release parameter and swaps in new bundles. SSM
// failures back off exponentially; a bundle that fails to load or
// validate is retried at the normal interval while the current content
// keeps serving.
type Watcher struct {
	opts       WatcherOptions
	validation ValidationOptions
	metrics    WatcherMetrics

	current     string // hash being served
	failures    int    // consecutive SSM failures
	lastSuccess time.Time
	stale       bool
	polls       int
	swaps       int
}

func NewWatcher(opts WatcherOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = DefaultStaleThreshold
	}
	w := &Watcher{
		opts:        opts,
		validation:  DefaultValidationOptions(),
		metrics:     opts.Metrics,
		current:     opts.Manager.ContentHash(),
		lastSuccess: time.Now(),
	}
	if opts.Validation != nil {
		w.validation = *opts.Validation
	}
	if w.metrics == nil {
		w.metrics = nopWatcherMetrics{}
	}
	return w
}

// Run polls until ctx is done and returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	L := w.opts.Logger
	L.Info(ctx, "content watcher starting", "interval", w.opts.PollInterval, "hash", shortHash(w.current))

	timer := time.NewTimer(w.opts.PollInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			L.Info(ctx, "content watcher stopping", "polls", w.polls, "swaps", w.swaps)
			return ctx.Err()
		case <-timer.C:
			res := w.checkOnce(ctx)
			timer.Reset(w.afterPoll(ctx, res, time.Now()))
		}
	}
}

// afterPoll updates the backoff and staleness state and returns the delay
// before the next poll.
func (w *Watcher) afterPoll(ctx context.Context, res pollResult, now time.Time) time.Duration {
	L := w.opts.Logger
	if res != pollSSMFailed {
		if w.failures > 0 {
			L.Info(ctx, "content watcher recovered", "failed_polls", w.failures)
			w.failures = 0
		}
		if w.stale {
			w.stale = false
			w.metrics.SetWatcherStale(false)
			L.Info(ctx, "content is no longer stale")
		}
		return w.opts.PollInterval
	}

	w.failures++
	if since := now.Sub(w.lastSuccess); since > w.opts.StaleThreshold && !w.stale {
		w.stale = true
		w.metrics.SetWatcherStale(true)
		L.Error(ctx, xerrors.Newf("no successful ssm poll for %s", since.Truncate(time.Second)), "content may be stale")
	}
	d := w.backoff()
	L.Warn(ctx, "content watcher backing off", "failed_polls", w.failures, "next_poll_in", d)
	return d
}

// backoff doubles the interval per consecutive failure up to maxBackoff.
func (w *Watcher) backoff() time.Duration {
	d := w.opts.PollInterval
	for range w.failures {
		if d >= maxBackoff/2 {
			return maxBackoff
		}
		d *= 2
	}
	return min(d, maxBackoff)
}

func (w *Watcher) checkOnce(ctx context.Context) pollResult {
	L := w.opts.Logger
	w.polls++
	w.metrics.IncWatcherPolls()

	hash, err := w.opts.Loader.FetchCurrentBundleHash(ctx)
	if err != nil {
		L.Error(ctx, err, "content watcher poll failed")
		return w.fail(pollSSMFailed)
	}
	w.lastSuccess = time.Now()
	w.metrics.SetWatcherLastSuccess(float64(w.lastSuccess.Unix()))

	if cryptoutil.HashEqual(hash, w.current) {
		return pollUnchanged
	}
	L.Info(ctx, "new content bundle published", "old_hash", shortHash(w.current), "new_hash", shortHash(hash))

	start := time.Now()
	snap, err := w.opts.Loader.LoadHash(ctx, hash)
	w.metrics.ObserveBundleLoadDuration(time.Since(start).Seconds())
	if err != nil {
		L.Error(ctx, err, "content bundle load failed", "hash", shortHash(hash))
		return w.fail(pollLoadFail)
	}
	if err := ValidateSnapshot(snap, w.validation); err != nil {
		L.Error(ctx, err, "content bundle rejected, keeping current content",
			"hash", shortHash(hash), "current_hash", shortHash(w.current))
		return w.fail(pollRejected)
	}

	w.opts.Manager.Set(*snap)
	w.current = hash
	w.swaps++
	w.metrics.IncWatcherSwaps()
	version := w.opts.Manager.ContentVersion()
	L.Info(ctx, "content bundle swapped", "hash", shortHash(hash), "version", version, "swaps", w.swaps)

	w.notify(ctx, hash, version)
	return pollSwapped
}

func (w *Watcher) fail(res pollResult) pollResult {
	w.metrics.IncWatcherError(string(res))
	return res
}

func (w *Watcher) notify(ctx context.Context, hash, version string) {
	if w.opts.OnSwap == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.opts.Logger.Error(ctx, xerrors.Newf("panic: %v", r), "content swap callback panicked", "hash", shortHash(hash))
		}
	}()
	w.opts.OnSwap(hash, version)
}

type nopWatcherMetrics struct{}

func (nopWatcherMetrics) IncWatcherPolls()                  {}
func (nopWatcherMetrics) IncWatcherSwaps()                  {}
func (nopWatcherMetrics) IncWatcherError(string)            {}
func (nopWatcherMetrics) ObserveBundleLoadDuration(float64) {}
func (nopWatcherMetrics) SetWatcherLastSuccess(float64)     {}
func (nopWatcherMetrics) SetWatcherStale(bool)              {}
