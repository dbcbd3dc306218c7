package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/omni/root-bridge-syncer/db"
	"github.com/omni/root-bridge-syncer/entity"
)

type transactionsRepo basePostgresRepo

func NewTransactionsRepo(table string, db db.Querier) entity.TransactionsRepo {
	return (*transactionsRepo)(newBasePostgresRepo(table, db))
}

func (r *transactionsRepo) Insert(ctx context.Context, id entity.TxID) error {
	q, args, err := sq.Insert(r.table).
		Columns("transaction_id", "status").
		Values(string(id), string(entity.TxStatusPending)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert transaction: %w", err)
	}
	return nil
}

func (r *transactionsRepo) UpdateStatus(ctx context.Context, id entity.TxID, status entity.TxStatus) error {
	q, args, err := sq.Update(r.table).
		Set("status", string(status)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"transaction_id": string(id)}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't update transaction status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't get affected rows count: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, db.ErrNotFound)
	}
	return nil
}

func (r *transactionsRepo) FindLatest(ctx context.Context) (*entity.Transaction, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		OrderBy("created_at DESC", "id DESC").
		Limit(1).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	return r.findOne(ctx, q, args)
}

func (r *transactionsRepo) FindLatestByStatus(ctx context.Context, status entity.TxStatus) (*entity.Transaction, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"status": string(status)}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	return r.findOne(ctx, q, args)
}

func (r *transactionsRepo) findOne(ctx context.Context, q string, args []interface{}) (*entity.Transaction, error) {
	tx := new(entity.Transaction)
	err := r.db.GetContext(ctx, tx, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't get transaction: %w", err)
	}
	return tx, nil
}

func (r *transactionsRepo) FindByIDs(ctx context.Context, ids []entity.TxID, status entity.TxStatus) ([]*entity.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	hashes := make([]string, len(ids))
	for i, id := range ids {
		hashes[i] = string(id)
	}
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Expr("transaction_id = ANY(?)", pq.Array(hashes))).
		Where(sq.Eq{"status": string(status)}).
		OrderBy("created_at DESC", "id DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	txs := make([]*entity.Transaction, 0, len(ids))
	err = r.db.SelectContext(ctx, &txs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select transactions: %w", err)
	}
	return txs, nil
}

func (r *transactionsRepo) FindRecent(ctx context.Context, limit uint64) ([]*entity.Transaction, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	txs := make([]*entity.Transaction, 0, limit)
	err = r.db.SelectContext(ctx, &txs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select transactions: %w", err)
	}
	return txs, nil
}
