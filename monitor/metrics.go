package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	BridgeSynced    prometheus.Gauge
	TaskRestarts    *prometheus.CounterVec
	Propagations    *prometheus.CounterVec
	TxStatusUpdates *prometheus.CounterVec
	QueueLength     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BridgeSynced: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncer",
			Subsystem: "monitor",
			Name:      "bridge_synced",
			Help:      "Shows 1 if the latest L1 root was observed on L2 during the last sync check.",
		}),
		TaskRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncer",
			Subsystem: "monitor",
			Name:      "task_restarts_total",
			Help:      "Number of times a background task was restarted after a failure.",
		}, []string{"task"}),
		Propagations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncer",
			Subsystem: "monitor",
			Name:      "propagations_total",
			Help:      "Number of root propagation attempts by result.",
		}, []string{"result"}),
		TxStatusUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncer",
			Subsystem: "monitor",
			Name:      "tx_status_updates_total",
			Help:      "Number of transaction status updates by the task that made them.",
		}, []string{"task", "status"}),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncer",
			Subsystem: "monitor",
			Name:      "monitored_txs_queue_length",
			Help:      "Shows the number of submitted transactions waiting to be monitored.",
		}),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
