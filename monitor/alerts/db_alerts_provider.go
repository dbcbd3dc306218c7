package alerts

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/omni/root-bridge-syncer/db"
	"github.com/omni/root-bridge-syncer/entity"
)

type DBAlertsProvider struct {
	db  db.Querier
	now func() time.Time
}

func NewDBAlertsProvider(db db.Querier) *DBAlertsProvider {
	return &DBAlertsProvider{
		db:  db,
		now: time.Now,
	}
}

type StuckTransaction struct {
	TransactionID string `db:"transaction_id" json:"tx_hash"`
	Age           int64  `db:"age" json:"_value,string"`
}

func (p *DBAlertsProvider) FindStuckTransactions(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	q, args, err := sq.Select("transaction_id", "EXTRACT(EPOCH FROM now() - created_at)::bigint as age").
		From("transactions").
		Where(sq.Eq{"status": string(entity.TxStatusPending)}).
		Where(sq.Lt{"created_at": p.now().Add(-params.Threshold)}).
		OrderBy("created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	res := make([]StuckTransaction, 0, 5)
	err = p.db.SelectContext(ctx, &res, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select alerts: %w", err)
	}
	return res, nil
}

type UnsyncedBridge struct {
	Status string `db:"status" json:"status"`
	Age    int64  `db:"age" json:"_value,string"`
}

// FindUnsyncedBridge reports the status row when the bridge was not synced
// within the threshold, counting from the last sync or from the first boot.
func (p *DBAlertsProvider) FindUnsyncedBridge(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	q, args, err := sq.Select("status", "EXTRACT(EPOCH FROM now() - COALESCE(last_synced, created_at))::bigint as age").
		From("service_status").
		Where(sq.NotEq{"status": string(entity.BridgeStatusSynced)}).
		Where(sq.Expr("COALESCE(last_synced, created_at) < ?", p.now().Add(-params.Threshold))).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	res := make([]UnsyncedBridge, 0, 1)
	err = p.db.SelectContext(ctx, &res, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select alerts: %w", err)
	}
	return res, nil
}
