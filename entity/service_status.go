package entity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidStatusTransition = errors.New("invalid bridge status transition")

type BridgeStatus string

const (
	BridgeStatusUnsynced BridgeStatus = "unsynced"
	BridgeStatusPending  BridgeStatus = "pending"
	BridgeStatusSynced   BridgeStatus = "synced"
)

func ParseBridgeStatus(s string) (BridgeStatus, error) {
	switch status := BridgeStatus(s); status {
	case BridgeStatusUnsynced, BridgeStatusPending, BridgeStatusSynced:
		return status, nil
	default:
		return "", fmt.Errorf("unknown bridge status %q", s)
	}
}

// CanTransitionTo allows the cycle unsynced -> pending -> synced, plus a forced
// reset to unsynced from any state. Rewriting the current state is a no-op and always allowed.
func (s BridgeStatus) CanTransitionTo(next BridgeStatus) bool {
	if s == next || next == BridgeStatusUnsynced {
		return true
	}
	switch s {
	case BridgeStatusUnsynced:
		return next == BridgeStatusPending
	case BridgeStatusPending:
		return next == BridgeStatusSynced
	default:
		return false
	}
}

type ServiceStatus struct {
	Status     BridgeStatus `db:"status" json:"status"`
	LastSynced *time.Time   `db:"last_synced" json:"lastSynced"`
	CreatedAt  *time.Time   `db:"created_at" json:"-"`
	UpdatedAt  *time.Time   `db:"updated_at" json:"-"`
}

type ServiceStatusRepo interface {
	// Ensure creates the status row in the unsynced state and reports whether it was created.
	Ensure(ctx context.Context) (bool, error)
	Get(ctx context.Context) (*ServiceStatus, error)
	UpdateStatus(ctx context.Context, status BridgeStatus) error
}
