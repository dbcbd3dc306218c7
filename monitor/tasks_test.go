package monitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/omni/root-bridge-syncer/entity"
)

func TestSyncChecker_CheckOnce(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name           string
		InSync         bool
		SyncErr        error
		Status         entity.BridgeStatus
		TxPending      bool
		ExpectedStatus entity.BridgeStatus
		ExpectedWake   bool
	}{
		{
			Name:           "pending transaction confirmed",
			InSync:         true,
			Status:         entity.BridgeStatusPending,
			TxPending:      true,
			ExpectedStatus: entity.BridgeStatusSynced,
		},
		{
			Name:           "drift after sync",
			Status:         entity.BridgeStatusSynced,
			ExpectedStatus: entity.BridgeStatusUnsynced,
			ExpectedWake:   true,
		},
		{
			Name:           "waiting for confirmation",
			Status:         entity.BridgeStatusPending,
			TxPending:      true,
			ExpectedStatus: entity.BridgeStatusPending,
		},
		{
			Name:           "already synced",
			InSync:         true,
			Status:         entity.BridgeStatusSynced,
			ExpectedStatus: entity.BridgeStatusSynced,
		},
		{
			Name:           "chain failure reads as drift",
			InSync:         true,
			SyncErr:        errChain,
			Status:         entity.BridgeStatusSynced,
			ExpectedStatus: entity.BridgeStatusUnsynced,
			ExpectedWake:   true,
		},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(test.Status, 1)
			env.proc.inSync = test.InSync
			env.proc.syncErr = test.SyncErr
			if test.TxPending {
				require.NoError(t, env.store.InsertTransaction(context.Background(), "0x01"))
			}

			require.NoError(t, env.checker.CheckOnce(context.Background()))
			require.Equal(t, test.ExpectedStatus, env.store.Status())
			if test.ExpectedWake {
				requireWoken(t, env.notifier)
			} else {
				requireNotWoken(t, env.notifier)
			}
			expectedGauge := float64(0)
			if test.InSync && test.SyncErr == nil {
				expectedGauge = 1
			}
			require.Equal(t, expectedGauge, testutil.ToFloat64(env.metrics.BridgeSynced))
		})
	}

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusSynced, 1)
		env.store.statusFails = 1

		require.ErrorIs(t, env.checker.CheckOnce(context.Background()), errStore)
		requireNotWoken(t, env.notifier)
	})
}

func TestRootPropagator_PropagateOnce(t *testing.T) {
	t.Parallel()

	t.Run("guard rejects non unsynced status", func(t *testing.T) {
		t.Parallel()
		for _, status := range []entity.BridgeStatus{entity.BridgeStatusPending, entity.BridgeStatusSynced} {
			env := newTestEnv(status, 1)
			require.NoError(t, env.prop.PropagateOnce(context.Background()))
			require.Zero(t, env.proc.Propagations())
			require.Equal(t, status, env.store.Status())
		}
	})

	t.Run("guard rejects pending transaction", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusUnsynced, 1)
		require.NoError(t, env.store.InsertTransaction(context.Background(), "0x01"))

		require.NoError(t, env.prop.PropagateOnce(context.Background()))
		require.Zero(t, env.proc.Propagations())
		require.Len(t, env.store.Transactions(), 1)
		require.Equal(t, entity.BridgeStatusUnsynced, env.store.Status())
	})

	t.Run("submission failure", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusUnsynced, 1)
		env.proc.propagateErr = errChain

		require.NoError(t, env.prop.PropagateOnce(context.Background()))
		require.Empty(t, env.store.Transactions())
		require.Zero(t, env.queue.Len())
		require.Equal(t, entity.BridgeStatusUnsynced, env.store.Status())
		require.Equal(t, float64(1), testutil.ToFloat64(env.metrics.Propagations.WithLabelValues("error")))
	})

	t.Run("cancelled hand-off leaves orphaned transaction", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusUnsynced, 1)
		require.NoError(t, env.queue.Send(context.Background(), "0xfull"))

		ctx, cancel := context.WithCancel(context.Background())
		env.proc.propagateHook = cancel
		require.ErrorIs(t, env.prop.PropagateOnce(ctx), context.Canceled)

		txs := env.store.Transactions()
		require.Len(t, txs, 1)
		require.Equal(t, entity.TxStatusPending, txs[0].Status)
		require.Equal(t, entity.BridgeStatusUnsynced, env.store.Status())
	})
}

func TestTxMonitor_MonitorTx(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name       string
		MineResult bool
		MineErr    error
	}{
		{Name: "mined", MineResult: true},
		{Name: "reverted", MineResult: false},
		{Name: "mine failure still marks mined", MineErr: errChain},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(entity.BridgeStatusPending, 1)
			env.proc.mineResult = test.MineResult
			env.proc.mineErr = test.MineErr
			require.NoError(t, env.store.InsertTransaction(context.Background(), "0x01"))

			require.NoError(t, env.txMon.MonitorTx(context.Background(), "0x01"))
			require.Equal(t, []entity.TxID{"0x01"}, env.proc.MineCalls())
			require.Equal(t, entity.TxStatusMined, env.store.Transactions()[0].Status)
		})
	}

	t.Run("unknown transaction", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusPending, 1)
		require.Error(t, env.txMon.MonitorTx(context.Background(), "0x01"))
	})

	t.Run("run consumes the queue", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusPending, 2)
		for _, id := range []entity.TxID{"0x01", "0x02"} {
			require.NoError(t, env.store.InsertTransaction(context.Background(), id))
			require.NoError(t, env.queue.Send(context.Background(), id))
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() {
			done <- env.txMon.Run(ctx)
		}()
		require.Eventually(t, func() bool {
			return len(env.proc.MineCalls()) == 2
		}, time.Second, time.Millisecond)
		cancel()
		require.NoError(t, <-done)
		require.Equal(t, []entity.TxID{"0x01", "0x02"}, env.proc.MineCalls())
	})
}

func TestTxFinalizer_FinalizeOnce(t *testing.T) {
	t.Parallel()

	t.Run("pending transaction not mined yet", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusPending, 1)
		require.NoError(t, env.store.InsertTransaction(context.Background(), "0x01"))
		env.proc.SetMined("0x02")

		require.NoError(t, env.final.FinalizeOnce(context.Background()))
		require.Equal(t, entity.TxStatusPending, env.store.Transactions()[0].Status)
	})

	t.Run("no pending transaction", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusSynced, 1)
		env.proc.SetMined("0x01")

		require.NoError(t, env.final.FinalizeOnce(context.Background()))
		require.Empty(t, env.store.Transactions())
	})

	t.Run("chain failure", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusPending, 1)
		env.proc.fetchErr = errChain

		require.ErrorIs(t, env.final.FinalizeOnce(context.Background()), errChain)
	})
}

func TestScenario_PropagateOnDrift(t *testing.T) {
	t.Parallel()

	env := newTestEnv(entity.BridgeStatusUnsynced, 1)
	ctx := context.Background()

	require.NoError(t, env.checker.CheckOnce(ctx))
	require.True(t, env.notifier.Wait(ctx))
	require.NoError(t, env.prop.PropagateOnce(ctx))

	require.Equal(t, 1, env.proc.Propagations())
	txs := env.store.Transactions()
	require.Len(t, txs, 1)
	require.Equal(t, entity.TxStatusPending, txs[0].Status)
	require.Equal(t, entity.BridgeStatusPending, env.store.Status())
	require.Equal(t, 1, env.queue.Len())
	require.Equal(t, float64(1), testutil.ToFloat64(env.metrics.Propagations.WithLabelValues("ok")))

	id, ok := env.queue.Receive(ctx)
	require.True(t, ok)
	require.Equal(t, txs[0].TransactionID, id)
}

func TestScenario_PendingBecomesSynced(t *testing.T) {
	t.Parallel()

	env := newTestEnv(entity.BridgeStatusPending, 1)
	require.NoError(t, env.store.InsertTransaction(context.Background(), "0x01"))
	env.proc.SetInSync(true)

	require.Nil(t, env.store.LastSynced())
	require.NoError(t, env.checker.CheckOnce(context.Background()))
	require.Equal(t, entity.BridgeStatusSynced, env.store.Status())
	require.NotNil(t, env.store.LastSynced())
}

func TestScenario_SyncedDrifts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(entity.BridgeStatusSynced, 1)
	require.NoError(t, env.checker.CheckOnce(context.Background()))
	require.Equal(t, entity.BridgeStatusUnsynced, env.store.Status())
	requireWoken(t, env.notifier)
}

func TestScenario_FinalizerMarksPendingMined(t *testing.T) {
	t.Parallel()

	env := newTestEnv(entity.BridgeStatusPending, 1)
	require.NoError(t, env.store.InsertTransaction(context.Background(), "0x01"))
	env.proc.SetMined("0x00", "0x01")

	require.NoError(t, env.final.FinalizeOnce(context.Background()))
	require.Equal(t, entity.TxStatusMined, env.store.Transactions()[0].Status)
	require.Equal(t, float64(1), testutil.ToFloat64(env.metrics.TxStatusUpdates.WithLabelValues("tx_finalizer", "mined")))
}

func TestRootPropagator_CoalescedWakes(t *testing.T) {
	t.Parallel()

	// failed submissions keep the guard open, so every wake would cause an attempt
	env := newTestEnv(entity.BridgeStatusUnsynced, 1)
	env.proc.propagateErr = errChain
	for i := 0; i < 10; i++ {
		env.notifier.Notify()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- env.prop.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		return env.proc.Attempts() == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 1, env.proc.Attempts())
	require.Empty(t, env.store.Transactions())
}

func TestRootPropagator_NoSecondSubmissionWhilePending(t *testing.T) {
	t.Parallel()

	env := newTestEnv(entity.BridgeStatusUnsynced, 5)
	ctx := context.Background()

	require.NoError(t, env.checker.CheckOnce(ctx))
	require.True(t, env.notifier.Wait(ctx))
	require.NoError(t, env.prop.PropagateOnce(ctx))
	require.Equal(t, 1, env.proc.Propagations())

	for i := 0; i < 3; i++ {
		require.NoError(t, env.checker.CheckOnce(ctx))
		env.notifier.Notify()
		require.True(t, env.notifier.Wait(ctx))
		require.NoError(t, env.prop.PropagateOnce(ctx))
	}
	require.Equal(t, 1, env.proc.Propagations())
	require.Equal(t, 1, env.store.MaxPending())
	require.Equal(t, entity.BridgeStatusPending, env.store.Status())
}

func TestRecovery_OrphanedPendingTransaction(t *testing.T) {
	t.Parallel()

	// crashed after the transaction was persisted, before the status moved to pending
	env := newTestEnv(entity.BridgeStatusUnsynced, 1)
	ctx := context.Background()
	require.NoError(t, env.store.InsertTransaction(ctx, "0x01"))

	require.NoError(t, env.checker.CheckOnce(ctx))
	require.Equal(t, entity.BridgeStatusUnsynced, env.store.Status())
	requireWoken(t, env.notifier)
	require.NoError(t, env.prop.PropagateOnce(ctx))
	require.Zero(t, env.proc.Propagations())

	env.proc.SetMined("0x01")
	require.NoError(t, env.final.FinalizeOnce(ctx))
	require.Equal(t, entity.TxStatusMined, env.store.Transactions()[0].Status)

	// drift still present, so a fresh propagation is now allowed
	require.NoError(t, env.checker.CheckOnce(ctx))
	requireWoken(t, env.notifier)
	require.NoError(t, env.prop.PropagateOnce(ctx))
	require.Equal(t, 1, env.proc.Propagations())
	require.Equal(t, 1, env.store.MaxPending())
}

// Once the transaction is mined, the bridge stays pending only as long as the
// next sync check already sees equal roots. A check that runs before L2 caught
// up treats the bridge as drifted again.
func TestStaleWindow_MinedBeforeRootsCaughtUp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("roots caught up", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusPending, 1)
		require.NoError(t, env.store.InsertTransaction(ctx, "0x01"))
		require.NoError(t, env.txMon.MonitorTx(ctx, "0x01"))
		env.proc.SetInSync(true)

		require.NoError(t, env.checker.CheckOnce(ctx))
		require.Equal(t, entity.BridgeStatusSynced, env.store.Status())
		requireNotWoken(t, env.notifier)
	})

	t.Run("roots not caught up yet", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(entity.BridgeStatusPending, 1)
		require.NoError(t, env.store.InsertTransaction(ctx, "0x01"))
		require.NoError(t, env.txMon.MonitorTx(ctx, "0x01"))

		require.NoError(t, env.checker.CheckOnce(ctx))
		require.Equal(t, entity.BridgeStatusUnsynced, env.store.Status())
		requireWoken(t, env.notifier)
		requireValidHistory(t, env.store.History())
	})
}
