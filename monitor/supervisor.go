package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/omni/root-bridge-syncer/logging"
	"github.com/omni/root-bridge-syncer/utils"
)

var ErrTaskPanicked = errors.New("task panicked")

type taskFunc func(ctx context.Context) error

// runWithBackoff keeps task running until ctx is done. A failed run is retried
// after backoff, a panic stops the task for good.
func runWithBackoff(ctx context.Context, logger logging.Logger, name string, backoff time.Duration, restarts prometheus.Counter, task taskFunc) error {
	logger = logger.WithField("task", name)
	for {
		err := runRecovered(ctx, logger, name, task)
		if errors.Is(err, ErrTaskPanicked) {
			return err
		}
		if err == nil || ctx.Err() != nil {
			logger.Info("task stopped")
			return nil
		}

		logger.WithError(err).WithField("backoff", backoff).Error("task failed, restarting")
		restarts.Inc()
		if utils.ContextSleep(ctx, backoff) == nil {
			logger.Info("task stopped")
			return nil
		}
	}
}

func runRecovered(ctx context.Context, logger logging.Logger, name string, task taskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("task panicked")
			err = fmt.Errorf("%s: %v: %w", name, r, ErrTaskPanicked)
		}
	}()
	return task(ctx)
}
