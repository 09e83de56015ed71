package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	// Use unique namespace to avoid conflicts with other tests
	m := NewMetrics("test_minerva_new")

	assert.NotNil(t, m.SearchesTotal)
	assert.NotNil(t, m.SearchesFailed)
	assert.NotNil(t, m.SearchDuration)
	assert.NotNil(t, m.ResultsPerSearch)
	assert.NotNil(t, m.ProviderSearchesStarted)
	assert.NotNil(t, m.ProviderSearchesCompleted)
	assert.NotNil(t, m.ProviderSearchesFailed)
	assert.NotNil(t, m.ProviderSearchDuration)
	assert.NotNil(t, m.RecordsPerProvider)
	assert.NotNil(t, m.DuplicatesMerged)
	assert.NotNil(t, m.RecordsEnriched)
	assert.NotNil(t, m.HistoryWrites)
	assert.NotNil(t, m.HistoryWritesFailed)
}

func TestRecordSearchCompleted(t *testing.T) {
	m := NewMetrics("test_search_completed")

	initial := testutil.ToFloat64(m.SearchesTotal)
	m.RecordSearchCompleted(42, 1.5)
	assert.Equal(t, initial+1, testutil.ToFloat64(m.SearchesTotal))

	// Check histogram
	histCount, err := getHistogramSampleCount(m.SearchDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)
}

func TestRecordSearchFailed(t *testing.T) {
	m := NewMetrics("test_search_failed")

	m.RecordSearchFailed(0.3)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesFailed))
}

func TestRecordProviderSearchStarted(t *testing.T) {
	m := NewMetrics("test_provider_started")

	m.RecordProviderSearchStarted("OpenAlex")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderSearchesStarted.WithLabelValues("OpenAlex")))
}

func TestRecordProviderSearchCompleted(t *testing.T) {
	m := NewMetrics("test_provider_completed")

	m.RecordProviderSearchCompleted("CrossRef", 25, 0.8)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderSearchesCompleted.WithLabelValues("CrossRef")))
}

func TestRecordProviderSearchFailed(t *testing.T) {
	m := NewMetrics("test_provider_failed")

	m.RecordProviderSearchFailed("PMC", "timeout", 30.0)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderSearchesFailed.WithLabelValues("PMC", "timeout")))
}

func TestRecordDuplicatesMerged(t *testing.T) {
	m := NewMetrics("test_duplicates_merged")

	initial := testutil.ToFloat64(m.DuplicatesMerged)
	m.RecordDuplicatesMerged(7)
	assert.Equal(t, initial+7, testutil.ToFloat64(m.DuplicatesMerged))
}

func TestRecordRecordsEnriched(t *testing.T) {
	m := NewMetrics("test_records_enriched")

	initial := testutil.ToFloat64(m.RecordsEnriched)
	m.RecordRecordsEnriched(3)
	assert.Equal(t, initial+3, testutil.ToFloat64(m.RecordsEnriched))
}

func TestRecordHistoryWrites(t *testing.T) {
	m := NewMetrics("test_history_writes")

	m.RecordHistoryWrite()
	m.RecordHistoryWriteFailed()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HistoryWrites))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HistoryWritesFailed))
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
