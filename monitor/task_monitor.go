package monitor

import (
	"context"
	"errors"
	"sync"

	"github.com/omni/root-bridge-syncer/config"
	"github.com/omni/root-bridge-syncer/logging"
)

// TaskMonitor owns the lifecycle of the sync tasks.
type TaskMonitor struct {
	logger  logging.Logger
	cfg     *config.TasksConfig
	store   Store
	proc    Processor
	metrics *Metrics
	onFatal func()

	mu       sync.RWMutex
	instance *runningInstance
}

// runningInstance is non-nil only while the tasks are running.
type runningInstance struct {
	handles []*taskHandle
	cancel  context.CancelFunc
}

type taskHandle struct {
	name string
	done chan struct{}
	err  error
}

// NewTaskMonitor creates a stopped monitor. onFatal is called once a task
// panics and can't be restarted, it may be nil.
func NewTaskMonitor(logger logging.Logger, cfg *config.TasksConfig, store Store, proc Processor, metrics *Metrics, onFatal func()) *TaskMonitor {
	return &TaskMonitor{
		logger:  logger,
		cfg:     cfg,
		store:   store,
		proc:    proc,
		metrics: metrics,
		onFatal: onFatal,
	}
}

func (m *TaskMonitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instance != nil
}

func (m *TaskMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.instance != nil {
		m.logger.Warn("task monitor is already running")
		return
	}
	m.logger.Info("starting task monitor")

	ctx, cancel := context.WithCancel(ctx)
	notifier := NewWakeNotifier()
	queue := NewTxQueue(m.cfg.MonitoredTxsCapacity, m.metrics.QueueLength)

	tasks := []struct {
		name string
		run  taskFunc
	}{
		{taskSyncChecker, NewSyncChecker(m.logger, m.store, m.proc, notifier, m.metrics, m.cfg.SyncCheckInterval).Run},
		{taskRootPropagator, NewRootPropagator(m.logger, m.store, m.proc, notifier, queue, m.metrics).Run},
		{taskTxMonitor, NewTxMonitor(m.logger, m.store, m.proc, queue, m.metrics).Run},
		{taskTxFinalizer, NewTxFinalizer(m.logger, m.store, m.proc, m.metrics, m.cfg.FinalizeInterval).Run},
	}
	handles := make([]*taskHandle, 0, len(tasks))
	for _, t := range tasks {
		h := &taskHandle{
			name: t.name,
			done: make(chan struct{}),
		}
		handles = append(handles, h)
		go m.run(ctx, h, t.run)
	}
	m.instance = &runningInstance{
		handles: handles,
		cancel:  cancel,
	}
}

func (m *TaskMonitor) run(ctx context.Context, h *taskHandle, task taskFunc) {
	restarts := m.metrics.TaskRestarts.WithLabelValues(h.name)
	h.err = runWithBackoff(ctx, m.logger, h.name, m.cfg.RestartBackoff, restarts, task)
	close(h.done)

	if errors.Is(h.err, ErrTaskPanicked) && m.onFatal != nil {
		m.onFatal()
	}
}

// Shutdown cancels all tasks, waits for them to finish and returns the first
// task error. Calling it on a stopped monitor is a no-op.
func (m *TaskMonitor) Shutdown() error {
	m.mu.Lock()
	instance := m.instance
	m.instance = nil
	m.mu.Unlock()

	if instance == nil {
		return nil
	}
	m.logger.Info("shutting down task monitor")
	instance.cancel()

	var firstErr error
	for _, h := range instance.handles {
		<-h.done
		if h.err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = h.err
			continue
		}
		m.logger.WithError(h.err).WithField("task", h.name).Error("task finished with error")
	}
	m.logger.Info("task monitor stopped")
	return firstErr
}
