package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.AddArticlesFetched("RNZ Pacific", 3)
	m.AddArticlesFetched("RNZ Pacific", 0)
	m.IncrementSourceFailures("USNI News")
	m.AddDuplicatesCollapsed(2)
	m.IncrementSentimentFailures()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.articlesFetched.WithLabelValues("RNZ Pacific")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourceFailures.WithLabelValues("USNI News")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.duplicatesCollapsed))

	stats := m.GetStats()
	assert.Equal(t, int64(3), stats["total_articles_fetched"])
	assert.Equal(t, int64(1), stats["total_source_failures"])
	assert.Equal(t, int64(1), stats["sentiment_failures"])
}

func TestMetrics_RecordRefresh(t *testing.T) {
	m := New()
	m.SetError("boom")
	assert.False(t, m.GetStats()["is_healthy"].(bool))

	m.RecordRefresh(2*time.Second, OutcomeOK)
	m.RecordRefresh(4*time.Second, OutcomeOK)
	m.RecordRefresh(time.Second, OutcomeCancelled)

	stats := m.GetStats()
	assert.True(t, stats["is_healthy"].(bool))
	assert.Equal(t, int64(2), stats["refresh_count"])
	assert.Equal(t, int64(3000), stats["average_processing_time_ms"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(OutcomeCancelled)))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.AddArticlesFetched("x", 1)
	m.IncrementSourceFailures("x")
	m.IncrementEntriesSkipped("x")
	m.AddDuplicatesCollapsed(1)
	m.IncrementSentimentFailures()
	m.RecordRefresh(time.Second, OutcomeOK)
	m.SetError("x")
	assert.True(t, m.GetStats()["is_healthy"].(bool))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.AddArticlesFetched("RNZ Pacific", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pacwatch_articles_fetched_total{source="RNZ Pacific"} 1`)
}
