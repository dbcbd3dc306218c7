package monitor

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omni/root-bridge-syncer/entity"
	"github.com/omni/root-bridge-syncer/logging"
)

// TxFinalizer catches up with pending transactions that were confirmed on
// chain without the TxMonitor noticing, e.g. across a restart.
type TxFinalizer struct {
	logger   logging.Logger
	store    Store
	proc     Processor
	metrics  *Metrics
	interval time.Duration
}

func NewTxFinalizer(logger logging.Logger, store Store, proc Processor, metrics *Metrics, interval time.Duration) *TxFinalizer {
	return &TxFinalizer{
		logger:   logger.WithField("task", taskTxFinalizer),
		store:    store,
		proc:     proc,
		metrics:  metrics,
		interval: interval,
	}
}

func (f *TxFinalizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		if err := f.FinalizeOnce(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (f *TxFinalizer) FinalizeOnce(ctx context.Context) error {
	mined, err := f.proc.FetchMinedTransactions(ctx)
	if err != nil {
		return fmt.Errorf("can't fetch mined transactions: %w", err)
	}

	pending, err := f.store.LatestPendingTransaction(ctx)
	if err != nil {
		f.logger.WithError(err).Error("failed to get pending transaction")
		return nil
	}
	if pending == nil {
		return nil
	}

	logger := f.logger.WithFields(logrus.Fields{
		"tx_id":       pending.TransactionID,
		"mined_count": len(mined),
	})
	if !slices.Contains(mined, pending.TransactionID) {
		logger.Debug("pending transaction is not mined yet")
		return nil
	}
	if err = f.store.UpdateTransactionStatus(ctx, pending.TransactionID, entity.TxStatusMined); err != nil {
		return fmt.Errorf("can't mark transaction %s as mined: %w", pending.TransactionID, err)
	}
	f.metrics.TxStatusUpdates.WithLabelValues(taskTxFinalizer, string(entity.TxStatusMined)).Inc()
	logger.Info("marked pending transaction as mined")
	return nil
}
