package content

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	hash    string
	hashErr error
	snaps   map[string]*Snapshot
	loads   []string
}

func (f *fakeFetcher) FetchCurrentBundleHash(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hash, f.hashErr
}

func (f *fakeFetcher) LoadHash(_ context.Context, hash string) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, hash)
	snap, ok := f.snaps[hash]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	// stamped like Loader.LoadHash does
	out := *snap
	out.Meta.Hash = hash
	out.Meta.Source = SourceS3
	return &out, nil
}

type recordingMetrics struct {
	polls, swaps int
	errs         []string
	loads        int
	lastSuccess  float64
	stale        []bool
}

func (m *recordingMetrics) IncWatcherPolls()                  { m.polls++ }
func (m *recordingMetrics) IncWatcherSwaps()                  { m.swaps++ }
func (m *recordingMetrics) IncWatcherError(stage string)      { m.errs = append(m.errs, stage) }
func (m *recordingMetrics) ObserveBundleLoadDuration(float64) { m.loads++ }
func (m *recordingMetrics) SetWatcherLastSuccess(v float64)   { m.lastSuccess = v }
func (m *recordingMetrics) SetWatcherStale(v bool)            { m.stale = append(m.stale, v) }

func newWatcher(t *testing.T, mutate ...func(*WatcherOptions)) (*Watcher, *fakeFetcher, *recordingMetrics) {
	t.Helper()
	mgr := NewManager()
	seed := snapshotOf(t, docsFiles("seed"))
	seed.Meta.Hash = "aaaa"
	mgr.Set(*seed)

	f := &fakeFetcher{hash: "aaaa", snaps: map[string]*Snapshot{}}
	m := &recordingMetrics{}
	opts := WatcherOptions{
		Loader:       f,
		Manager:      mgr,
		PollInterval: 10 * time.Second,
		Metrics:      m,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return NewWatcher(opts), f, m
}

func TestWatcher_Unchanged(t *testing.T) {
	w, f, m := newWatcher(t)
	f.hash = "AAAA"

	assert.Equal(t, pollUnchanged, w.checkOnce(context.Background()))
	assert.Empty(t, f.loads)
	assert.Equal(t, 1, m.polls)
	assert.NotZero(t, m.lastSuccess)
	assert.Empty(t, m.errs)
}

func TestWatcher_Swap(t *testing.T) {
	var swapped []string
	w, f, m := newWatcher(t, func(o *WatcherOptions) {
		o.OnSwap = func(hash, version string) { swapped = append(swapped, hash+"@"+version) }
	})
	next := snapshotOf(t, docsFiles("2026.10.2"))
	next.Meta.Hash = "bbbb"
	f.hash, f.snaps["bbbb"] = "bbbb", next

	assert.Equal(t, pollSwapped, w.checkOnce(context.Background()))
	assert.Equal(t, "bbbb", w.opts.Manager.ContentHash())
	assert.Equal(t, []string{"bbbb@2026.10.2"}, swapped)
	assert.Equal(t, 1, m.swaps)
	assert.Equal(t, 1, m.loads)

	assert.Equal(t, pollUnchanged, w.checkOnce(context.Background()))
	assert.Equal(t, []string{"bbbb"}, f.loads)
}

func TestWatcher_Failures(t *testing.T) {
	bad := snapshotOf(t, map[string]string{"meta.json": "{}"})

	tests := []struct {
		name  string
		setup func(*fakeFetcher)
		want  pollResult
	}{
		{"ssm", func(f *fakeFetcher) { f.hashErr = errors.New("ThrottlingException") }, pollSSMFailed},
		{"load", func(f *fakeFetcher) { f.hash = "cccc" }, pollLoadFail},
		{"validation", func(f *fakeFetcher) { f.hash, f.snaps["dddd"] = "dddd", bad }, pollRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, f, m := newWatcher(t)
			tt.setup(f)

			assert.Equal(t, tt.want, w.checkOnce(context.Background()))
			assert.Equal(t, []string{string(tt.want)}, m.errs)
			assert.Equal(t, "aaaa", w.opts.Manager.ContentHash(), "current content keeps serving")
			assert.Zero(t, m.swaps)
		})
	}
}

func TestWatcher_RejectedBundleIsRetried(t *testing.T) {
	w, f, _ := newWatcher(t)
	f.hash = "cccc"
	w.checkOnce(context.Background())
	w.checkOnce(context.Background())
	assert.Equal(t, []string{"cccc", "cccc"}, f.loads)
	assert.Equal(t, 10*time.Second, w.afterPoll(context.Background(), pollLoadFail, time.Now()))
}

func TestWatcher_Backoff(t *testing.T) {
	w, _, _ := newWatcher(t)
	ctx := context.Background()
	now := w.lastSuccess

	want := []time.Duration{20 * time.Second, 40 * time.Second, 80 * time.Second, 160 * time.Second, maxBackoff, maxBackoff}
	for i, d := range want {
		assert.Equal(t, d, w.afterPoll(ctx, pollSSMFailed, now), "failure %d", i+1)
	}

	assert.Equal(t, 10*time.Second, w.afterPoll(ctx, pollUnchanged, now))
	assert.Zero(t, w.failures)
}

func TestWatcher_Stale(t *testing.T) {
	w, _, m := newWatcher(t, func(o *WatcherOptions) { o.StaleThreshold = time.Minute })
	ctx := context.Background()
	start := w.lastSuccess

	w.afterPoll(ctx, pollSSMFailed, start.Add(30*time.Second))
	assert.Empty(t, m.stale)

	w.afterPoll(ctx, pollSSMFailed, start.Add(2*time.Minute))
	w.afterPoll(ctx, pollSSMFailed, start.Add(3*time.Minute))
	assert.Equal(t, []bool{true}, m.stale, "stale is reported once")

	w.afterPoll(ctx, pollUnchanged, start.Add(4*time.Minute))
	assert.Equal(t, []bool{true, false}, m.stale)
}

func TestWatcher_OnSwapPanic(t *testing.T) {
	w, f, _ := newWatcher(t, func(o *WatcherOptions) {
		o.OnSwap = func(string, string) { panic("boom") }
	})
	next := snapshotOf(t, docsFiles("2"))
	f.hash, f.snaps["bbbb"] = "bbbb", next

	require.NotPanics(t, func() { w.checkOnce(context.Background()) })
	assert.Equal(t, "bbbb", w.opts.Manager.ContentHash())
}

func TestWatcher_ValidationOverride(t *testing.T) {
	lenient := ValidationOptions{AllowMissingModules: true}
	w, f, _ := newWatcher(t, func(o *WatcherOptions) { o.Validation = &lenient })
	files := docsFiles("3")
	delete(files, "mdx/core-concepts/index.mdx")
	f.hash, f.snaps["eeee"] = "eeee", snapshotOf(t, files)

	assert.Equal(t, pollSwapped, w.checkOnce(context.Background()))
}

func TestWatcher_Run(t *testing.T) {
	w, f, _ := newWatcher(t, func(o *WatcherOptions) { o.PollInterval = time.Millisecond })
	next := snapshotOf(t, docsFiles("run"))
	f.mu.Lock()
	f.hash, f.snaps["ffff"] = "ffff", next
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := w.opts.Manager.Get()
		return ok && w.opts.Manager.ContentHash() == "ffff"
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewWatcher_Defaults(t *testing.T) {
	w := NewWatcher(WatcherOptions{Manager: NewManager()})
	assert.Equal(t, DefaultPollInterval, w.opts.PollInterval)
	assert.Equal(t, DefaultStaleThreshold, w.opts.StaleThreshold)
	assert.Equal(t, DefaultValidationOptions(), w.validation)
	assert.Empty(t, w.current)
	assert.IsType(t, nopWatcherMetrics{}, w.metrics)
}
