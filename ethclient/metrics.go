package ethclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestResults   *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncer",
			Subsystem: "rpc",
			Name:      "request_results_total",
		}, []string{"chain_id", "url", "query", "status"}),
		RequestDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "syncer",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 20},
		}, []string{"chain_id", "url", "query"}),
	}
}

func (m *Metrics) ObserveError(chainID, url, query string, err error) {
	var rpcErr rpc.Error
	switch {
	case err == nil:
		m.RequestResults.WithLabelValues(chainID, url, query, "ok").Inc()
	case errors.Is(err, ethereum.NotFound):
		m.RequestResults.WithLabelValues(chainID, url, query, "not_found").Inc()
	case errors.Is(err, context.DeadlineExceeded):
		m.RequestResults.WithLabelValues(chainID, url, query, "timeout").Inc()
	case errors.As(err, &rpcErr):
		m.RequestResults.WithLabelValues(chainID, url, query, fmt.Sprintf("error-%d", rpcErr.ErrorCode())).Inc()
	default:
		m.RequestResults.WithLabelValues(chainID, url, query, "error").Inc()
	}
}

func (m *Metrics) ObserveDuration(chainID, url, query string) func() time.Duration {
	return prometheus.NewTimer(m.RequestDurations.WithLabelValues(chainID, url, query)).ObserveDuration
}
