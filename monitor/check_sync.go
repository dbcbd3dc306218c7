package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omni/root-bridge-syncer/entity"
	"github.com/omni/root-bridge-syncer/logging"
)

// SyncChecker periodically compares the roots on both chains and reconciles
// the persisted bridge status with what it observed.
type SyncChecker struct {
	logger   logging.Logger
	store    Store
	proc     Processor
	notifier *WakeNotifier
	metrics  *Metrics
	interval time.Duration
}

func NewSyncChecker(logger logging.Logger, store Store, proc Processor, notifier *WakeNotifier, metrics *Metrics, interval time.Duration) *SyncChecker {
	return &SyncChecker{
		logger:   logger.WithField("task", taskSyncChecker),
		store:    store,
		proc:     proc,
		notifier: notifier,
		metrics:  metrics,
		interval: interval,
	}
}

func (c *SyncChecker) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.CheckOnce(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *SyncChecker) CheckOnce(ctx context.Context) error {
	inSync, err := c.proc.CheckSyncState(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("failed to check sync state, assuming bridge is not synced")
		inSync = false
	}
	c.metrics.BridgeSynced.Set(boolToFloat(inSync))

	status, err := c.store.BridgeStatus(ctx)
	if err != nil {
		return fmt.Errorf("can't get bridge status: %w", err)
	}
	pending, err := c.store.LatestPendingTransaction(ctx)
	if err != nil {
		return fmt.Errorf("can't get pending transaction: %w", err)
	}

	action := Reconcile(inSync, status, pending != nil)
	logger := c.logger.WithFields(logrus.Fields{
		"in_sync":    inSync,
		"status":     status,
		"tx_pending": pending != nil,
		"action":     action.String(),
	})
	switch action {
	case ActionMarkSynced:
		if err = c.store.UpdateBridgeStatus(ctx, entity.BridgeStatusSynced); err != nil {
			return fmt.Errorf("can't mark bridge as synced: %w", err)
		}
		logger.Info("bridge is synced")
	case ActionMarkUnsynced:
		if err = c.store.UpdateBridgeStatus(ctx, entity.BridgeStatusUnsynced); err != nil {
			return fmt.Errorf("can't mark bridge as unsynced: %w", err)
		}
		c.notifier.Notify()
		logger.Info("bridge is out of sync, requested root propagation")
	default:
		logger.Debug("nothing to reconcile")
	}
	return nil
}
