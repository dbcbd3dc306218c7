package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/omni/root-bridge-syncer/db"
	"github.com/omni/root-bridge-syncer/entity"
)

const serviceStatusRowID = 1

type serviceStatusRepo basePostgresRepo

func NewServiceStatusRepo(table string, db db.Querier) entity.ServiceStatusRepo {
	return (*serviceStatusRepo)(newBasePostgresRepo(table, db))
}

func (r *serviceStatusRepo) Ensure(ctx context.Context) (bool, error) {
	q, args, err := sq.Insert(r.table).
		Columns("id", "status").
		Values(serviceStatusRowID, string(entity.BridgeStatusUnsynced)).
		Suffix("ON CONFLICT (id) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't insert service status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("can't get affected rows count: %w", err)
	}
	return n > 0, nil
}

func (r *serviceStatusRepo) Get(ctx context.Context) (*entity.ServiceStatus, error) {
	q, args, err := sq.Select("status", "last_synced", "created_at", "updated_at").
		From(r.table).
		Where(sq.Eq{"id": serviceStatusRowID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	status := new(entity.ServiceStatus)
	err = r.db.GetContext(ctx, status, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get service status: %w", err)
	}
	return status, nil
}

func (r *serviceStatusRepo) UpdateStatus(ctx context.Context, status entity.BridgeStatus) error {
	query := sq.Update(r.table).
		Set("status", string(status)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": serviceStatusRowID})
	if status == entity.BridgeStatusSynced {
		query = query.Set("last_synced", sq.Expr("NOW()"))
	}
	q, args, err := query.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't update service status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't get affected rows count: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}
