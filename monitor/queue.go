package monitor

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/omni/root-bridge-syncer/entity"
)

// TxQueue hands submitted transaction ids from the propagator to the monitor.
// Send blocks while the queue is full.
type TxQueue struct {
	ch     chan entity.TxID
	recvMu sync.Mutex
	length prometheus.Gauge
}

func NewTxQueue(capacity int, length prometheus.Gauge) *TxQueue {
	return &TxQueue{
		ch:     make(chan entity.TxID, capacity),
		length: length,
	}
}

func (q *TxQueue) Send(ctx context.Context, id entity.TxID) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- id:
		q.length.Set(float64(len(q.ch)))
		return nil
	}
}

func (q *TxQueue) Receive(ctx context.Context) (entity.TxID, bool) {
	q.recvMu.Lock()
	defer q.recvMu.Unlock()

	select {
	case <-ctx.Done():
		return "", false
	case id := <-q.ch:
		q.length.Set(float64(len(q.ch)))
		return id, true
	}
}

func (q *TxQueue) Len() int {
	return len(q.ch)
}

func (q *TxQueue) Cap() int {
	return cap(q.ch)
}
