package entity

import (
	"context"
	"fmt"
	"time"
)

// TxID is a 0x-prefixed transaction hash.
type TxID string

type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusMined     TxStatus = "mined"
	TxStatusFinalized TxStatus = "finalized"
	TxStatusFailed    TxStatus = "failed"
)

func ParseTxStatus(s string) (TxStatus, error) {
	switch status := TxStatus(s); status {
	case TxStatusPending, TxStatusMined, TxStatusFinalized, TxStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown transaction status %q", s)
	}
}

type Transaction struct {
	ID            uint       `db:"id" json:"-"`
	TransactionID TxID       `db:"transaction_id" json:"transactionId"`
	Status        TxStatus   `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
}

type TransactionsRepo interface {
	Insert(ctx context.Context, id TxID) error
	UpdateStatus(ctx context.Context, id TxID, status TxStatus) error
	FindLatest(ctx context.Context) (*Transaction, error)
	FindLatestByStatus(ctx context.Context, status TxStatus) (*Transaction, error)
	FindByIDs(ctx context.Context, ids []TxID, status TxStatus) ([]*Transaction, error)
	FindRecent(ctx context.Context, limit uint64) ([]*Transaction, error)
}
