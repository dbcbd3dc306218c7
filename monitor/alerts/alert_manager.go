package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/omni/root-bridge-syncer/config"
	"github.com/omni/root-bridge-syncer/db"
	"github.com/omni/root-bridge-syncer/logging"
)

const (
	defaultStuckTransactionThreshold = 30 * time.Minute
	defaultUnsyncedBridgeThreshold   = time.Hour
)

type AlertManager struct {
	logger logging.Logger
	jobs   map[string]*Job
}

func NewAlertManager(logger logging.Logger, q db.Querier, cfg map[string]*config.AlertConfig, chainID string, reg prometheus.Registerer) (*AlertManager, error) {
	provider := NewDBAlertsProvider(q)
	jobs := make(map[string]*Job, len(cfg))

	for name, alertCfg := range cfg {
		var threshold time.Duration
		switch name {
		case "stuck_transaction":
			jobs[name] = &Job{
				Interval: time.Minute,
				Timeout:  time.Second * 10,
				Func:     provider.FindStuckTransactions,
				Metric:   NewAlertStuckTransaction(reg, chainID),
			}
			threshold = defaultStuckTransactionThreshold
		case "unsynced_bridge":
			jobs[name] = &Job{
				Interval: time.Minute,
				Timeout:  time.Second * 10,
				Func:     provider.FindUnsyncedBridge,
				Metric:   NewAlertUnsyncedBridge(reg, chainID),
			}
			threshold = defaultUnsyncedBridgeThreshold
		default:
			return nil, fmt.Errorf("unknown alert type %q", name)
		}
		if alertCfg != nil && alertCfg.Threshold > 0 {
			threshold = alertCfg.Threshold
		}
		jobs[name].Params = &AlertJobParams{Threshold: threshold}
		jobs[name].logger = logger.WithField("alert_job", name)
	}

	return &AlertManager{
		logger: logger,
		jobs:   jobs,
	}, nil
}

func (m *AlertManager) Jobs() map[string]*Job {
	return m.jobs
}

// Run starts all jobs and blocks until ctx is done and every job has returned.
func (m *AlertManager) Run(ctx context.Context, isRunning func() bool) {
	m.logger.WithField("count", len(m.jobs)).Info("starting alert manager jobs")
	var wg sync.WaitGroup
	for _, job := range m.jobs {
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			job.Start(ctx, isRunning)
		}(job)
	}
	wg.Wait()
}
