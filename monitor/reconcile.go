package monitor

import "github.com/omni/root-bridge-syncer/entity"

type Action int

const (
	ActionNone Action = iota
	ActionMarkSynced
	ActionMarkUnsynced
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionMarkSynced:
		return "mark_synced"
	case ActionMarkUnsynced:
		return "mark_unsynced"
	default:
		return "unknown"
	}
}

// Reconcile decides how the persisted bridge status should follow the observed chain state.
// A pending status with equal roots is committed as synced. Equal roots, or a
// pending status still backed by a pending transaction, need nothing. Anything
// else is drift and resets the status to unsynced.
func Reconcile(inSync bool, status entity.BridgeStatus, txPending bool) Action {
	switch {
	case inSync && status == entity.BridgeStatusPending:
		return ActionMarkSynced
	case inSync, txPending && status == entity.BridgeStatusPending:
		return ActionNone
	default:
		return ActionMarkUnsynced
	}
}

// CanPropagate guards root submission: only an unsynced bridge without an
// outstanding transaction may get a new one.
func CanPropagate(status entity.BridgeStatus, txPending bool) bool {
	return status == entity.BridgeStatusUnsynced && !txPending
}
