package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pacwatch"

// Metrics tracks pipeline counters. Prometheus collectors live on a private
// registry; the mutex-guarded status fields feed the JSON health endpoints.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	articlesFetched     *prometheus.CounterVec
	sourceFailures      *prometheus.CounterVec
	entriesSkipped      *prometheus.CounterVec
	duplicatesCollapsed prometheus.Counter
	sentimentFailures   prometheus.Counter
	refreshes           *prometheus.CounterVec
	refreshDuration     prometheus.Histogram

	mu sync.RWMutex

	// Counters mirrored for GetStats
	TotalArticlesFetched int64
	TotalSourceFailures  int64
	TotalDuplicates      int64
	TotalSentimentFails  int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		articlesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_fetched_total",
			Help:      "Feed entries accepted per source.",
		}, []string{"source"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Feed fetches that failed or timed out.",
		}, []string{"source"}),
		entriesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_skipped_total",
			Help:      "Malformed feed entries skipped.",
		}, []string{"source"}),
		duplicatesCollapsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_collapsed_total",
			Help:      "Articles folded into a duplicate group representative.",
		}),
		sentimentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentiment_failures_total",
			Help:      "Articles whose sentiment entries were omitted.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of completed refresh cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		IsHealthy: true,
	}
	m.registry.MustRegister(
		m.articlesFetched,
		m.sourceFailures,
		m.entriesSkipped,
		m.duplicatesCollapsed,
		m.sentimentFailures,
		m.refreshes,
		m.refreshDuration,
	)
	return m
}

// Handler serves the Prometheus exposition of this instance's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AddArticlesFetched(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.articlesFetched.WithLabelValues(source).Add(float64(n))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalArticlesFetched += int64(n)
}

func (m *Metrics) IncrementSourceFailures(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalSourceFailures++
}

func (m *Metrics) IncrementEntriesSkipped(source string) {
	if m == nil {
		return
	}
	m.entriesSkipped.WithLabelValues(source).Inc()
}

func (m *Metrics) AddDuplicatesCollapsed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duplicatesCollapsed.Add(float64(n))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalDuplicates += int64(n)
}

func (m *Metrics) IncrementSentimentFailures() {
	if m == nil {
		return
	}
	m.sentimentFailures.Inc()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalSentimentFails++
}

// RecordRefresh stores the outcome of one refresh cycle. Only completed
// cycles contribute to the processing-time statistics.
func (m *Metrics) RecordRefresh(duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	if outcome != OutcomeOK {
		return
	}
	m.refreshDuration.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++
	m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

// Refresh outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

func (m *Metrics) SetError(err string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{"is_healthy": true}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"total_articles_fetched":     m.TotalArticlesFetched,
		"total_source_failures":      m.TotalSourceFailures,
		"duplicates_collapsed":       m.TotalDuplicates,
		"sentiment_failures":         m.TotalSentimentFails,
		"refresh_count":              m.ProcessingCount,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
