package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NewAlertStuckTransaction = func(reg prometheus.Registerer, chainID string) *prometheus.GaugeVec {
		return promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "alert",
			Subsystem:   "syncer",
			Name:        "stuck_transaction",
			Help:        "Shows root propagation transactions which are pending for too long, value is the age in seconds.",
			ConstLabels: prometheus.Labels{"chain_id": chainID},
		}, []string{"tx_hash"})
	}
	NewAlertUnsyncedBridge = func(reg prometheus.Registerer, chainID string) *prometheus.GaugeVec {
		return promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "alert",
			Subsystem:   "syncer",
			Name:        "unsynced_bridge",
			Help:        "Shows that the bridge was not synced for too long, value is the time since the last sync in seconds.",
			ConstLabels: prometheus.Labels{"chain_id": chainID},
		}, []string{"status"})
	}
)
