package monitor

import (
	"context"
	"math/big"

	"github.com/omni/root-bridge-syncer/entity"
)

const (
	taskSyncChecker    = "sync_checker"
	taskRootPropagator = "root_propagator"
	taskTxMonitor      = "tx_monitor"
	taskTxFinalizer    = "tx_finalizer"
)

// Store is the durable state shared by all tasks.
type Store interface {
	BridgeStatus(ctx context.Context) (entity.BridgeStatus, error)
	UpdateBridgeStatus(ctx context.Context, status entity.BridgeStatus) error
	// LatestPendingTransaction returns nil if no transaction is pending.
	LatestPendingTransaction(ctx context.Context) (*entity.Transaction, error)
	InsertTransaction(ctx context.Context, id entity.TxID) error
	UpdateTransactionStatus(ctx context.Context, id entity.TxID, status entity.TxStatus) error
}

// Processor reads and writes the bridge contracts on both chains.
type Processor interface {
	CheckSyncState(ctx context.Context) (bool, error)
	PropagateRoot(ctx context.Context) (entity.TxID, error)
	FetchMinedTransactions(ctx context.Context) ([]entity.TxID, error)
	MineTransaction(ctx context.Context, id entity.TxID) (bool, error)
	IsRootMined(ctx context.Context, root *big.Int) (bool, error)
}
