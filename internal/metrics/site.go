package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// siteMetrics track the active content bundle and the watcher that swaps it.
type siteMetrics struct {
	source   *prometheus.GaugeVec
	bundle   *prometheus.GaugeVec
	loadedAt prometheus.Gauge
	pages    prometheus.Gauge
	modules  prometheus.Gauge

	polls       prometheus.Counter
	swaps       prometheus.Counter
	watchErrors *prometheus.CounterVec
	loadTime    prometheus.Histogram
	lastSuccess prometheus.Gauge
	stale       prometheus.Gauge
}

func newSiteMetrics(f promauto.Factory) siteMetrics {
	return siteMetrics{
		source: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_source_info",
			Help: "Where the active content came from, value is always 1",
		}, []string{"source"}),
		bundle: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_bundle_info",
			Help: "Hash of the active content bundle, value is always 1",
		}, []string{"hash"}),
		loadedAt: f.NewGauge(prometheus.GaugeOpts{
			Name: "content_loaded_timestamp_seconds",
			Help: "Unix time the active content bundle was loaded",
		}),
		pages: f.NewGauge(prometheus.GaugeOpts{
			Name: "content_catalog_pages",
			Help: "Docs pages in the active content bundle",
		}),
		modules: f.NewGauge(prometheus.GaugeOpts{
			Name: "content_catalog_modules",
			Help: "Content modules in the active content bundle",
		}),
		polls: f.NewCounter(prometheus.CounterOpts{
			Name: "content_watcher_polls_total",
			Help: "Watcher poll cycles",
		}),
		swaps: f.NewCounter(prometheus.CounterOpts{
			Name: "content_watcher_swaps_total",
			Help: "Content bundles swapped in by the watcher",
		}),
		watchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "content_watcher_errors_total",
			Help: "Watcher failures by stage",
		}, []string{"type"}),
		loadTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "content_bundle_load_duration_seconds",
			Help:    "Time to fetch, verify and unpack a content bundle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "content_watcher_last_success_timestamp_seconds",
			Help: "Unix time of the last successful parameter poll",
		}),
		stale: f.NewGauge(prometheus.GaugeOpts{
			Name: "content_watcher_stale",
			Help: "1 while the watcher has not polled successfully within its stale window",
		}),
	}
}

func (m *ServerMetrics) SetContentSource(source string) { setInfo(m.site.source, source) }
func (m *ServerMetrics) SetContentBundle(hash string)   { setInfo(m.site.bundle, hash) }

func (m *ServerMetrics) SetContentLoadedTimestamp(t time.Time) {
	m.site.loadedAt.Set(float64(t.Unix()))
}

func (m *ServerMetrics) SetCatalogSize(pages, modules int) {
	m.site.pages.Set(float64(pages))
	m.site.modules.Set(float64(modules))
}

// content.WatcherMetrics

func (m *ServerMetrics) IncWatcherPolls()            { m.site.polls.Inc() }
func (m *ServerMetrics) IncWatcherSwaps()            { m.site.swaps.Inc() }
func (m *ServerMetrics) IncWatcherError(kind string) { m.site.watchErrors.WithLabelValues(kind).Inc() }

func (m *ServerMetrics) ObserveBundleLoadDuration(seconds float64) {
	m.site.loadTime.Observe(seconds)
}

func (m *ServerMetrics) SetWatcherLastSuccess(unixSeconds float64) {
	m.site.lastSuccess.Set(unixSeconds)
}

func (m *ServerMetrics) SetWatcherStale(stale bool) { m.site.stale.Set(boolValue(stale)) }
