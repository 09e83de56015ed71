package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the library search service.
// Metrics are organized by subsystem: aggregated searches, provider fan-out,
// reconciliation, OA enrichment, and history persistence. All counters and
// histograms are registered via promauto with the default Prometheus registry.
type Metrics struct {
	// SearchesTotal counts aggregation calls handled.
	SearchesTotal prometheus.Counter

	// SearchesFailed counts aggregation calls that degraded to an empty
	// result because of an orchestration fault.
	SearchesFailed prometheus.Counter

	// SearchDuration observes end-to-end aggregation duration in seconds.
	SearchDuration prometheus.Histogram

	// ResultsPerSearch observes the distribution of final result counts.
	ResultsPerSearch prometheus.Histogram

	// ProviderSearchesStarted counts provider searches initiated, labeled by source.
	ProviderSearchesStarted *prometheus.CounterVec

	// ProviderSearchesCompleted counts successful provider searches, labeled by source.
	ProviderSearchesCompleted *prometheus.CounterVec

	// ProviderSearchesFailed counts failed provider searches, labeled by source and outcome.
	ProviderSearchesFailed *prometheus.CounterVec

	// ProviderSearchDuration observes provider search duration in seconds, labeled by source.
	ProviderSearchDuration *prometheus.HistogramVec

	// RecordsPerProvider observes the records returned per provider search, labeled by source.
	RecordsPerProvider *prometheus.HistogramVec

	// DuplicatesMerged counts records collapsed into another record during
	// reconciliation.
	DuplicatesMerged prometheus.Counter

	// RecordsEnriched counts closed records upgraded to open access by the
	// enrichment pass.
	RecordsEnriched prometheus.Counter

	// HistoryWrites counts search history rows persisted.
	HistoryWrites prometheus.Counter

	// HistoryWritesFailed counts search history writes that failed.
	HistoryWritesFailed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Aggregated searches
		SearchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of aggregated searches handled",
		}),
		SearchesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of aggregated searches that degraded to an empty result",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end duration of aggregated searches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		ResultsPerSearch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "results_per_search",
			Help:      "Number of records in the final result per aggregated search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}),

		// Provider fan-out
		ProviderSearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_searches_started_total",
			Help:      "Total number of provider searches started by source",
		}, []string{"source"}),
		ProviderSearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_searches_completed_total",
			Help:      "Total number of provider searches completed by source",
		}, []string{"source"}),
		ProviderSearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_searches_failed_total",
			Help:      "Total number of provider searches that failed by source and outcome",
		}, []string{"source", "outcome"}),
		ProviderSearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_search_duration_seconds",
			Help:      "Duration of provider searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),
		RecordsPerProvider: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_per_provider",
			Help:      "Number of records returned per provider search by source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}, []string{"source"}),

		// Reconciliation and enrichment
		DuplicatesMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_merged_total",
			Help:      "Total number of records collapsed during deduplication",
		}),
		RecordsEnriched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_enriched_total",
			Help:      "Total number of records upgraded to open access by enrichment",
		}),

		// History persistence
		HistoryWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_writes_total",
			Help:      "Total number of search history rows persisted",
		}),
		HistoryWritesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_writes_failed_total",
			Help:      "Total number of search history writes that failed",
		}),
	}
}

// RecordSearchCompleted records a finished aggregation call.
func (m *Metrics) RecordSearchCompleted(resultCount int, durationSeconds float64) {
	m.SearchesTotal.Inc()
	m.SearchDuration.Observe(durationSeconds)
	m.ResultsPerSearch.Observe(float64(resultCount))
}

// RecordSearchFailed records an aggregation call that degraded to empty.
func (m *Metrics) RecordSearchFailed(durationSeconds float64) {
	m.SearchesTotal.Inc()
	m.SearchesFailed.Inc()
	m.SearchDuration.Observe(durationSeconds)
}

// RecordProviderSearchStarted records that a provider search has started.
func (m *Metrics) RecordProviderSearchStarted(source string) {
	m.ProviderSearchesStarted.WithLabelValues(source).Inc()
}

// RecordProviderSearchCompleted records a successful provider search.
func (m *Metrics) RecordProviderSearchCompleted(source string, recordCount int, durationSeconds float64) {
	m.ProviderSearchesCompleted.WithLabelValues(source).Inc()
	m.ProviderSearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.RecordsPerProvider.WithLabelValues(source).Observe(float64(recordCount))
}

// RecordProviderSearchFailed records a failed provider search. The outcome is
// the terminal provider status, "timeout" or "error".
func (m *Metrics) RecordProviderSearchFailed(source, outcome string, durationSeconds float64) {
	m.ProviderSearchesFailed.WithLabelValues(source, outcome).Inc()
	m.ProviderSearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordDuplicatesMerged records records collapsed during reconciliation.
func (m *Metrics) RecordDuplicatesMerged(count int) {
	m.DuplicatesMerged.Add(float64(count))
}

// RecordRecordsEnriched records closed records upgraded by enrichment.
func (m *Metrics) RecordRecordsEnriched(count int) {
	m.RecordsEnriched.Add(float64(count))
}

// RecordHistoryWrite records a persisted search history row.
func (m *Metrics) RecordHistoryWrite() {
	m.HistoryWrites.Inc()
}

// RecordHistoryWriteFailed records a failed search history write.
func (m *Metrics) RecordHistoryWriteFailed() {
	m.HistoryWritesFailed.Inc()
}
