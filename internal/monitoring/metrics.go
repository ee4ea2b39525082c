package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	BatchesTotal        prometheus.Counter
	ItemsProcessedTotal *prometheus.CounterVec
	FetchRetriesTotal   prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
	OutdatedDeleted     prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		BatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vehicle_sync_batches_total",
			Help: "The total number of batch runs completed",
		}),
		ItemsProcessedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vehicle_sync_items_processed_total",
			Help: "The total number of listing items processed, by outcome",
		}, []string{"status"}),
		FetchRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vehicle_sync_fetch_retries_total",
			Help: "The total number of fetch retry attempts",
		}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vehicle_sync_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'discovery_failed', 'fetch_failed', 'store_failed'
		OutdatedDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vehicle_sync_outdated_deleted_total",
			Help: "The total number of records removed by reconciliation",
		}),
	}
}

func (m *Metrics) IncBatches() {
	m.BatchesTotal.Inc()
}

func (m *Metrics) IncItemsProcessed(status string) {
	m.ItemsProcessedTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncFetchRetries() {
	m.FetchRetriesTotal.Inc()
}

func (m *Metrics) IncErrors(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) AddOutdatedDeleted(n int64) {
	m.OutdatedDeleted.Add(float64(n))
}
