package monitor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/omni/root-bridge-syncer/entity"
	"github.com/omni/root-bridge-syncer/logging"
)

// RootPropagator submits a propagation transaction whenever it is woken up
// and the store confirms that one is needed.
type RootPropagator struct {
	logger   logging.Logger
	store    Store
	proc     Processor
	notifier *WakeNotifier
	queue    *TxQueue
	metrics  *Metrics
}

func NewRootPropagator(logger logging.Logger, store Store, proc Processor, notifier *WakeNotifier, queue *TxQueue, metrics *Metrics) *RootPropagator {
	return &RootPropagator{
		logger:   logger.WithField("task", taskRootPropagator),
		store:    store,
		proc:     proc,
		notifier: notifier,
		queue:    queue,
		metrics:  metrics,
	}
}

func (p *RootPropagator) Run(ctx context.Context) error {
	for p.notifier.Wait(ctx) {
		if err := p.PropagateOnce(ctx); err != nil {
			return err
		}
	}
	return nil
}

// PropagateOnce persists the new transaction before handing it to the monitor,
// and hands it off before moving the bridge to pending.
// Only the hand-off observes cancellation of ctx.
func (p *RootPropagator) PropagateOnce(ctx context.Context) error {
	callCtx := context.WithoutCancel(ctx)

	status, err := p.store.BridgeStatus(callCtx)
	if err != nil {
		return fmt.Errorf("can't get bridge status: %w", err)
	}
	pending, err := p.store.LatestPendingTransaction(callCtx)
	if err != nil {
		return fmt.Errorf("can't get pending transaction: %w", err)
	}
	if !CanPropagate(status, pending != nil) {
		p.logger.WithFields(logrus.Fields{
			"status":     status,
			"tx_pending": pending != nil,
		}).Debug("root propagation is not needed")
		return nil
	}

	id, err := p.proc.PropagateRoot(callCtx)
	if err != nil {
		p.logger.WithError(err).Error("failed to propagate root")
		p.metrics.Propagations.WithLabelValues("error").Inc()
		return nil
	}
	logger := p.logger.WithField("tx_id", id)

	if err = p.store.InsertTransaction(callCtx, id); err != nil {
		return fmt.Errorf("can't insert transaction %s: %w", id, err)
	}
	if err = p.queue.Send(ctx, id); err != nil {
		return fmt.Errorf("can't hand off transaction %s: %w", id, err)
	}
	if err = p.store.UpdateBridgeStatus(callCtx, entity.BridgeStatusPending); err != nil {
		return fmt.Errorf("can't mark bridge as pending: %w", err)
	}
	p.metrics.Propagations.WithLabelValues("ok").Inc()
	logger.Info("submitted root propagation")
	return nil
}
