package store_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omni/root-bridge-syncer/db"
	"github.com/omni/root-bridge-syncer/entity"
	"github.com/omni/root-bridge-syncer/repository"
	"github.com/omni/root-bridge-syncer/store"
)

type memoryDB struct {
	mu     sync.Mutex
	status *entity.ServiceStatus
	txs    []*entity.Transaction
	clock  time.Time
	txRuns int
}

func (m *memoryDB) RunInTx(ctx context.Context, fn func(ctx context.Context, q db.Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txRuns++
	return fn(ctx, nil)
}

func (m *memoryDB) now() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memoryDB) repo(db.Querier) *repository.Repo {
	return &repository.Repo{
		ServiceStatus: (*memoryStatusRepo)(m),
		Transactions:  (*memoryTxRepo)(m),
	}
}

type memoryStatusRepo memoryDB

func (r *memoryStatusRepo) Ensure(context.Context) (bool, error) {
	if r.status != nil {
		return false, nil
	}
	r.status = &entity.ServiceStatus{Status: entity.BridgeStatusUnsynced}
	return true, nil
}

func (r *memoryStatusRepo) Get(context.Context) (*entity.ServiceStatus, error) {
	if r.status == nil {
		return nil, db.ErrNotFound
	}
	status := *r.status
	return &status, nil
}

func (r *memoryStatusRepo) UpdateStatus(_ context.Context, status entity.BridgeStatus) error {
	if r.status == nil {
		return db.ErrNotFound
	}
	r.status.Status = status
	if status == entity.BridgeStatusSynced {
		now := (*memoryDB)(r).now()
		r.status.LastSynced = &now
	}
	return nil
}

type memoryTxRepo memoryDB

func (r *memoryTxRepo) Insert(_ context.Context, id entity.TxID) error {
	r.txs = append(r.txs, &entity.Transaction{
		ID:            uint(len(r.txs) + 1),
		TransactionID: id,
		Status:        entity.TxStatusPending,
		CreatedAt:     (*memoryDB)(r).now(),
	})
	return nil
}

func (r *memoryTxRepo) UpdateStatus(_ context.Context, id entity.TxID, status entity.TxStatus) error {
	for _, tx := range r.txs {
		if tx.TransactionID == id {
			tx.Status = status
			return nil
		}
	}
	return db.ErrNotFound
}

func (r *memoryTxRepo) sorted() []*entity.Transaction {
	txs := append([]*entity.Transaction(nil), r.txs...)
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs
}

func (r *memoryTxRepo) FindLatest(context.Context) (*entity.Transaction, error) {
	txs := r.sorted()
	if len(txs) == 0 {
		return nil, nil
	}
	return txs[0], nil
}

func (r *memoryTxRepo) FindLatestByStatus(_ context.Context, status entity.TxStatus) (*entity.Transaction, error) {
	for _, tx := range r.sorted() {
		if tx.Status == status {
			return tx, nil
		}
	}
	return nil, nil
}

func (r *memoryTxRepo) FindByIDs(_ context.Context, ids []entity.TxID, status entity.TxStatus) ([]*entity.Transaction, error) {
	var res []*entity.Transaction
	for _, tx := range r.sorted() {
		for _, id := range ids {
			if tx.TransactionID == id && tx.Status == status {
				res = append(res, tx)
			}
		}
	}
	return res, nil
}

func (r *memoryTxRepo) FindRecent(_ context.Context, limit uint64) ([]*entity.Transaction, error) {
	txs := r.sorted()
	if uint64(len(txs)) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func newTestStore() (*store.Store, *memoryDB) {
	mem := &memoryDB{clock: time.Unix(1700000000, 0)}
	return store.NewStore(mem, mem.repo), mem
}

func TestStore_InitializeServer(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore()
	ctx := context.Background()

	_, err := s.GetServiceStatus(ctx)
	require.ErrorIs(t, err, store.ErrUninitialized)

	status, err := s.BridgeStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, entity.BridgeStatusUnsynced, status)

	created, err := s.InitializeServer(ctx)
	require.NoError(t, err)
	require.True(t, created)

	created, err = s.InitializeServer(ctx)
	require.NoError(t, err)
	require.False(t, created)

	res, err := s.GetServiceStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, entity.BridgeStatusUnsynced, res.Status)
	require.Nil(t, res.LastSynced)
}

func TestStore_UpdateBridgeStatus(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore()
	ctx := context.Background()

	require.ErrorIs(t, s.UpdateBridgeStatus(ctx, entity.BridgeStatusPending), store.ErrUninitialized)

	_, err := s.InitializeServer(ctx)
	require.NoError(t, err)

	require.ErrorIs(t, s.UpdateBridgeStatus(ctx, entity.BridgeStatusSynced), entity.ErrInvalidStatusTransition)
	require.NoError(t, s.UpdateBridgeStatus(ctx, entity.BridgeStatusPending))
	require.NoError(t, s.UpdateBridgeStatus(ctx, entity.BridgeStatusSynced))

	res, err := s.GetServiceStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, entity.BridgeStatusSynced, res.Status)
	require.NotNil(t, res.LastSynced)

	require.ErrorIs(t, s.UpdateBridgeStatus(ctx, entity.BridgeStatusPending), entity.ErrInvalidStatusTransition)
	require.NoError(t, s.UpdateBridgeStatus(ctx, entity.BridgeStatusUnsynced))
}

func TestStore_Transactions(t *testing.T) {
	t.Parallel()

	s, mem := newTestStore()
	ctx := context.Background()

	pending, err := s.LatestPendingTransaction(ctx)
	require.NoError(t, err)
	require.Nil(t, pending)

	last, err := s.LastTransactionStatus(ctx)
	require.NoError(t, err)
	require.Nil(t, last)

	require.NoError(t, s.InsertTransaction(ctx, "0x01"))
	require.NoError(t, s.UpdateTransactionStatus(ctx, "0x01", entity.TxStatusMined))
	require.NoError(t, s.InsertTransaction(ctx, "0x02"))

	pending, err = s.LatestPendingTransaction(ctx)
	require.NoError(t, err)
	require.Equal(t, entity.TxID("0x02"), pending.TransactionID)

	last, err = s.LastTransactionStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, entity.TxStatusPending, *last)

	matched, err := s.PendingTransactionsIn(ctx, []entity.TxID{"0x01", "0x02", "0x03"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, entity.TxID("0x02"), matched[0].TransactionID)

	recent, err := s.RecentTransactions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, entity.TxID("0x02"), recent[0].TransactionID)

	require.ErrorIs(t, s.UpdateTransactionStatus(ctx, "0x03", entity.TxStatusMined), db.ErrNotFound)
	require.Equal(t, 10, mem.txRuns)
}
