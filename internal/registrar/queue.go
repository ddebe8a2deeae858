package registrar

import "sync"

// Queue is the bounded FIFO of pending REGISTER transactions shared between
// the intake (producer) and the worker (consumer). Capacity is enforced by
// TryEnqueue, which never blocks: at capacity it refuses the item.
type Queue struct {
	mu       sync.Mutex
	items    []*PendingTransaction
	capacity int
	signal   chan struct{}
}

// NewQueue creates a queue bounded at capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Len returns the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the configured bound.
func (q *Queue) Capacity() int {
	return q.capacity
}

// IsFull reports whether the queue has reached capacity. Intake is fed by
// every transport's connection-handling goroutine concurrently, so this
// snapshot alone must never be used to decide whether to enqueue — use
// TryEnqueue, which checks and appends under a single lock acquisition.
func (q *Queue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) >= q.capacity
}

// TryEnqueue appends item to the tail of the queue and signals the worker,
// but only if the queue has not yet reached capacity. The capacity check
// and the append happen under one lock acquisition so that concurrent
// callers (one per inbound connection/datagram) cannot both observe room
// and both append, pushing the queue past capacity.
func (q *Queue) TryEnqueue(item *PendingTransaction) bool {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.Signal()
	return true
}

// Dequeue pops the head of the queue. ok is false when the queue is empty.
func (q *Queue) Dequeue() (*PendingTransaction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Signal wakes a worker blocked in Wait. It is level-triggered: multiple
// signals before a Wait collapse into a single wakeup, matching a bounded
// condition-variable notify rather than an unbounded event counter.
func (q *Queue) Signal() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// SignalChan exposes the underlying wakeup channel for a worker loop to
// select on alongside a timeout and a stop signal.
func (q *Queue) SignalChan() <-chan struct{} {
	return q.signal
}
