package monitor

import "context"

// WakeNotifier holds at most one pending wake. Notifications sent before the
// pending one is consumed are dropped.
type WakeNotifier struct {
	ch chan struct{}
}

func NewWakeNotifier() *WakeNotifier {
	return &WakeNotifier{ch: make(chan struct{}, 1)}
}

func (n *WakeNotifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until a wake is pending and consumes it. It returns false if ctx is done first.
func (n *WakeNotifier) Wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-n.ch:
		return true
	}
}
