package monitor_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/omni/root-bridge-syncer/db"
	"github.com/omni/root-bridge-syncer/entity"
	"github.com/omni/root-bridge-syncer/logging"
	"github.com/omni/root-bridge-syncer/monitor"
)

var (
	errStore = errors.New("store failure")
	errChain = errors.New("chain failure")
)

func newTestLogger() logging.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestMetrics() *monitor.Metrics {
	return monitor.NewMetrics(prometheus.NewRegistry())
}

// memoryStore keeps the bridge state in memory and rejects illegal status edges.
type memoryStore struct {
	mu          sync.Mutex
	status      entity.BridgeStatus
	lastSynced  *time.Time
	history     []entity.BridgeStatus
	txs         []*entity.Transaction
	maxPending  int
	statusFails int
}

func newMemoryStore(status entity.BridgeStatus) *memoryStore {
	return &memoryStore{
		status:  status,
		history: []entity.BridgeStatus{status},
	}
}

func (s *memoryStore) BridgeStatus(context.Context) (entity.BridgeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusFails > 0 {
		s.statusFails--
		return "", errStore
	}
	return s.status, nil
}

func (s *memoryStore) UpdateBridgeStatus(_ context.Context, status entity.BridgeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.CanTransitionTo(status) {
		return fmt.Errorf("%s -> %s: %w", s.status, status, entity.ErrInvalidStatusTransition)
	}
	if status == entity.BridgeStatusSynced && s.status != entity.BridgeStatusSynced {
		now := time.Now()
		s.lastSynced = &now
	}
	if s.status != status {
		s.history = append(s.history, status)
	}
	s.status = status
	return nil
}

func (s *memoryStore) LatestPendingTransaction(context.Context) (*entity.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].Status == entity.TxStatusPending {
			tx := *s.txs[i]
			return &tx, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) InsertTransaction(_ context.Context, id entity.TxID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.TransactionID == id {
			return fmt.Errorf("duplicate transaction %s", id)
		}
	}
	s.txs = append(s.txs, &entity.Transaction{
		ID:            uint(len(s.txs) + 1),
		TransactionID: id,
		Status:        entity.TxStatusPending,
		CreatedAt:     time.Now(),
	})
	if n := s.pendingCountLocked(); n > s.maxPending {
		s.maxPending = n
	}
	return nil
}

func (s *memoryStore) UpdateTransactionStatus(_ context.Context, id entity.TxID, status entity.TxStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.TransactionID == id {
			tx.Status = status
			return nil
		}
	}
	return db.ErrNotFound
}

func (s *memoryStore) pendingCountLocked() int {
	n := 0
	for _, tx := range s.txs {
		if tx.Status == entity.TxStatusPending {
			n++
		}
	}
	return n
}

func (s *memoryStore) Status() entity.BridgeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *memoryStore) LastSynced() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSynced
}

func (s *memoryStore) History() []entity.BridgeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.BridgeStatus(nil), s.history...)
}

func (s *memoryStore) Transactions() []entity.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]entity.Transaction, len(s.txs))
	for i, tx := range s.txs {
		res[i] = *tx
	}
	return res
}

func (s *memoryStore) MaxPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxPending
}

// requireValidHistory checks the bridge status never skipped the pending step.
func requireValidHistory(t *testing.T, history []entity.BridgeStatus) {
	t.Helper()
	for i := 1; i < len(history); i++ {
		prev, next := history[i-1], history[i]
		require.False(t, prev == entity.BridgeStatusSynced && next == entity.BridgeStatusPending, "synced -> pending at %d", i)
		require.False(t, prev == entity.BridgeStatusUnsynced && next == entity.BridgeStatusSynced, "unsynced -> synced at %d", i)
	}
}

// scriptedProcessor answers chain queries from fields set by the test.
type scriptedProcessor struct {
	mu            sync.Mutex
	inSync        bool
	syncErr       error
	propagateErr  error
	mined         []entity.TxID
	fetchErr      error
	mineResult    bool
	mineErr       error
	syncOnMine    bool
	panicOnCheck  bool
	attempts      int
	propagations  int
	mineCalls     []entity.TxID
	checkCalls    int
	propagateHook func()
}

func (p *scriptedProcessor) CheckSyncState(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkCalls++
	if p.panicOnCheck {
		panic("unexpected chain state")
	}
	return p.inSync, p.syncErr
}

func (p *scriptedProcessor) PropagateRoot(context.Context) (entity.TxID, error) {
	p.mu.Lock()
	p.attempts++
	if p.propagateErr != nil {
		err := p.propagateErr
		p.mu.Unlock()
		return "", err
	}
	p.propagations++
	id := entity.TxID(fmt.Sprintf("0x%064x", p.propagations))
	hook := p.propagateHook
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	return id, nil
}

func (p *scriptedProcessor) FetchMinedTransactions(context.Context) ([]entity.TxID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.TxID(nil), p.mined...), p.fetchErr
}

func (p *scriptedProcessor) MineTransaction(_ context.Context, id entity.TxID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mineCalls = append(p.mineCalls, id)
	if p.syncOnMine {
		p.inSync = true
	}
	return p.mineResult, p.mineErr
}

func (p *scriptedProcessor) IsRootMined(context.Context, *big.Int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inSync, nil
}

func (p *scriptedProcessor) SetInSync(inSync bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inSync = inSync
}

func (p *scriptedProcessor) SetMined(ids ...entity.TxID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mined = ids
}

func (p *scriptedProcessor) Propagations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.propagations
}

func (p *scriptedProcessor) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func (p *scriptedProcessor) CheckCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkCalls
}

func (p *scriptedProcessor) MineCalls() []entity.TxID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.TxID(nil), p.mineCalls...)
}

type testEnv struct {
	store    *memoryStore
	proc     *scriptedProcessor
	notifier *monitor.WakeNotifier
	queue    *monitor.TxQueue
	metrics  *monitor.Metrics
	checker  *monitor.SyncChecker
	prop     *monitor.RootPropagator
	txMon    *monitor.TxMonitor
	final    *monitor.TxFinalizer
}

func newTestEnv(status entity.BridgeStatus, queueCapacity int) *testEnv {
	logger := newTestLogger()
	env := &testEnv{
		store:    newMemoryStore(status),
		proc:     &scriptedProcessor{mineResult: true},
		notifier: monitor.NewWakeNotifier(),
		metrics:  newTestMetrics(),
	}
	env.queue = monitor.NewTxQueue(queueCapacity, env.metrics.QueueLength)
	env.checker = monitor.NewSyncChecker(logger, env.store, env.proc, env.notifier, env.metrics, time.Hour)
	env.prop = monitor.NewRootPropagator(logger, env.store, env.proc, env.notifier, env.queue, env.metrics)
	env.txMon = monitor.NewTxMonitor(logger, env.store, env.proc, env.queue, env.metrics)
	env.final = monitor.NewTxFinalizer(logger, env.store, env.proc, env.metrics, time.Hour)
	return env
}

// requireWoken asserts exactly one wake is pending and consumes it.
func requireWoken(t *testing.T, n *monitor.WakeNotifier) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.True(t, n.Wait(ctx))
	requireNotWoken(t, n)
}

func requireNotWoken(t *testing.T, n *monitor.WakeNotifier) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.False(t, n.Wait(ctx))
}
