package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	QueryDurations   *prometheus.HistogramVec
	TxRetries        prometheus.Counter
	TxRollbackErrors prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueryDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "syncer",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Buckets:   []float64{0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		}, []string{"query"}),
		TxRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "syncer",
			Subsystem: "db",
			Name:      "tx_retries_total",
			Help:      "Number of transactions retried after a serialization conflict.",
		}),
		TxRollbackErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "syncer",
			Subsystem: "db",
			Name:      "tx_rollback_errors_total",
		}),
	}
}

func (m *Metrics) ObserveDuration(query string) func() time.Duration {
	return prometheus.NewTimer(m.QueryDurations.WithLabelValues(query)).ObserveDuration
}
