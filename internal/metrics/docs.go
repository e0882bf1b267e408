package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type docsMetrics struct {
	loads    *prometheus.CounterVec
	loadTime *prometheus.HistogramVec
	feedback *prometheus.CounterVec
}

func newDocsMetrics(f promauto.Factory) docsMetrics {
	return docsMetrics{
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docs_page_loads_total",
			Help: "Docs page views by page type and outcome",
		}, []string{"type", "outcome"}),
		loadTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docs_page_load_duration_seconds",
			Help:    "Time to resolve and load a docs page by page type",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"type"}),
		feedback: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docs_feedback_total",
			Help: "Answers to the was-this-helpful prompt by page type",
		}, []string{"type", "helpful"}),
	}
}

// ObserveDocsPageLoad records one docs page view. pageType is the route
// type label ("unknown" when resolution failed) and outcome one of the
// docpage outcomes.
func (m *ServerMetrics) ObserveDocsPageLoad(pageType, outcome string, elapsed time.Duration) {
	m.docs.loads.WithLabelValues(pageType, outcome).Inc()
	m.docs.loadTime.WithLabelValues(pageType).Observe(elapsed.Seconds())
}

func (m *ServerMetrics) IncDocsFeedback(pageType string, helpful bool) {
	m.docs.feedback.WithLabelValues(pageType, strconv.FormatBool(helpful)).Inc()
}
