package monitor

import (
	"context"
	"fmt"

	"github.com/omni/root-bridge-syncer/entity"
	"github.com/omni/root-bridge-syncer/logging"
)

// TxMonitor waits for each handed off transaction to be mined.
type TxMonitor struct {
	logger  logging.Logger
	store   Store
	proc    Processor
	queue   *TxQueue
	metrics *Metrics
}

func NewTxMonitor(logger logging.Logger, store Store, proc Processor, queue *TxQueue, metrics *Metrics) *TxMonitor {
	return &TxMonitor{
		logger:  logger.WithField("task", taskTxMonitor),
		store:   store,
		proc:    proc,
		queue:   queue,
		metrics: metrics,
	}
}

func (m *TxMonitor) Run(ctx context.Context) error {
	for {
		id, ok := m.queue.Receive(ctx)
		if !ok {
			return nil
		}
		if err := m.MonitorTx(context.WithoutCancel(ctx), id); err != nil {
			return err
		}
	}
}

// MonitorTx marks the transaction as mined once MineTransaction returns,
// whatever its outcome.
func (m *TxMonitor) MonitorTx(ctx context.Context, id entity.TxID) error {
	logger := m.logger.WithField("tx_id", id)

	mined, err := m.proc.MineTransaction(ctx, id)
	switch {
	case err != nil:
		logger.WithError(err).Error("failed to wait for transaction")
	case !mined:
		logger.Warn("transaction was mined but reverted")
	default:
		logger.Info("transaction was mined")
	}

	if err = m.store.UpdateTransactionStatus(ctx, id, entity.TxStatusMined); err != nil {
		return fmt.Errorf("can't mark transaction %s as mined: %w", id, err)
	}
	m.metrics.TxStatusUpdates.WithLabelValues(taskTxMonitor, string(entity.TxStatusMined)).Inc()
	return nil
}
