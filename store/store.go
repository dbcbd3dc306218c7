package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/omni/root-bridge-syncer/db"
	"github.com/omni/root-bridge-syncer/entity"
	"github.com/omni/root-bridge-syncer/repository"
)

var ErrUninitialized = errors.New("service is not initialized")

// TxRunner runs a unit of work inside a retried serializable transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, q db.Querier) error) error
}

type RepoFactory func(q db.Querier) *repository.Repo

// Store is the single source of truth for the bridge sync status and the
// propagation transactions log. Every access goes through the TxRunner.
type Store struct {
	runner  TxRunner
	newRepo RepoFactory
}

func NewStore(runner TxRunner, newRepo RepoFactory) *Store {
	return &Store{
		runner:  runner,
		newRepo: newRepo,
	}
}

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, repo *repository.Repo) error) error {
	return s.runner.RunInTx(ctx, func(ctx context.Context, q db.Querier) error {
		return fn(ctx, s.newRepo(q))
	})
}

// InitializeServer creates the status row on first boot. Calling it again is a no-op.
func (s *Store) InitializeServer(ctx context.Context) (bool, error) {
	var created bool
	err := s.inTx(ctx, func(ctx context.Context, repo *repository.Repo) error {
		var err error
		created, err = repo.ServiceStatus.Ensure(ctx)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("can't initialize service status: %w", err)
	}
	return created, nil
}

func (s *Store) GetServiceStatus(ctx context.Context) (*entity.ServiceStatus, error) {
	var status *entity.ServiceStatus
	err := s.inTx(ctx, func(ctx context.Context, repo *repository.Repo) error {
		var err error
		status, err = repo.ServiceStatus.Get(ctx)
		return err
	})
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUninitialized
	}
	if err != nil {
		return nil, err
	}
	return status, nil
}

// BridgeStatus treats a missing status row as unsynced.
func (s *Store) BridgeStatus(ctx context.Context) (entity.BridgeStatus, error) {
	status, err := s.GetServiceStatus(ctx)
	if errors.Is(err, ErrUninitialized) {
		return entity.BridgeStatusUnsynced, nil
	}
	if err != nil {
		return "", err
	}
	return status.Status, nil
}

// UpdateBridgeStatus rejects transitions that skip a step of the sync cycle.
func (s *Store) UpdateBridgeStatus(ctx context.Context, next entity.BridgeStatus) error {
	return s.inTx(ctx, func(ctx context.Context, repo *repository.Repo) error {
		current, err := repo.ServiceStatus.Get(ctx)
		if errors.Is(err, db.ErrNotFound) {
			return ErrUninitialized
		}
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", current.Status, next, entity.ErrInvalidStatusTransition)
		}
		return repo.ServiceStatus.UpdateStatus(ctx, next)
	})
}

func (s *Store) LatestPendingTransaction(ctx context.Context) (*entity.Transaction, error) {
	var tx *entity.Transaction
	err := s.inTx(ctx, func(ctx context.Context, repo *repository.Repo) error {
		var err error
		tx, err = repo.Transactions.FindLatestByStatus(ctx, entity.TxStatusPending)
		return err
	})
	return tx, err
}

// LastTransactionStatus returns the status of the most recently created transaction, if any.
func (s *Store) LastTransactionStatus(ctx context.Context) (*entity.TxStatus, error) {
	var tx *entity.Transaction
	err := s.inTx(ctx, func(ctx context.Context, repo *repository.Repo) error {
		var err error
		tx, err = repo.Transactions.FindLatest(ctx)
		return err
	})
	if err != nil || tx == nil {
		return nil, err
	}
	return &tx.Status, nil
}

func (s *Store) PendingTransactionsIn(ctx context.Context, ids []entity.TxID) ([]*entity.Transaction, error) {
	var txs []*entity.Transaction
	err := s.inTx(ctx, func(ctx context.Context, repo *repository.Repo) error {
		var err error
		txs, err = repo.Transactions.FindByIDs(ctx, ids, entity.TxStatusPending)
		return err
	})
	return txs, err
}

func (s *Store) RecentTransactions(ctx context.Context, limit uint64) ([]*entity.Transaction, error) {
	var txs []*entity.Transaction
	err := s.inTx(ctx, func(ctx context.Context, repo *repository.Repo) error {
		var err error
		txs, err = repo.Transactions.FindRecent(ctx, limit)
		return err
	})
	return txs, err
}

func (s *Store) InsertTransaction(ctx context.Context, id entity.TxID) error {
	return s.inTx(ctx, func(ctx context.Context, repo *repository.Repo) error {
		return repo.Transactions.Insert(ctx, id)
	})
}

func (s *Store) UpdateTransactionStatus(ctx context.Context, id entity.TxID, status entity.TxStatus) error {
	return s.inTx(ctx, func(ctx context.Context, repo *repository.Repo) error {
		return repo.Transactions.UpdateStatus(ctx, id, status)
	})
}
