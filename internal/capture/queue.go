package capture

import (
	"sync"
	"sync/atomic"

	"mirrorcap/pkg/models"
)

// deliveryQueue is the single-slot mailbox between a capture reader and its
// delivery goroutine. New frames overwrite unconsumed ones, so the sink
// always sees the freshest frame and late frames are discarded rather than
// buffered.
type deliveryQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *models.Frame // nil = consumed
	closed bool
	drops  atomic.Uint64
}

func newDeliveryQueue() *deliveryQueue {
	q := &deliveryQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// publish overwrites the slot with a new frame. Non-blocking.
func (q *deliveryQueue) publish(frame *models.Frame) {
	q.mu.Lock()
	if !q.closed {
		if q.frame != nil {
			q.drops.Add(1)
		}
		q.frame = frame
		q.cond.Signal()
	}
	q.mu.Unlock()
}

// next blocks until a frame is available or the queue closes. Returns nil
// on close.
func (q *deliveryQueue) next() *models.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.frame == nil && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil
	}

	frame := q.frame
	q.frame = nil
	return frame
}

// close wakes the consumer and makes further publishes no-ops. Idempotent.
func (q *deliveryQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.frame = nil
	q.cond.Broadcast()
	q.mu.Unlock()
}
