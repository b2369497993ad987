package relay

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// OverflowPolicy decides what Push does when a bounded queue is full.
type OverflowPolicy int

const (
	// Block makes Push wait until a worker frees a slot.
	Block OverflowPolicy = iota

	// Drop makes Push fail with ErrQueueFull.
	Drop
)

func (p OverflowPolicy) String() string {
	if p == Drop {
		return "drop"
	}
	return "block"
}

// ParseOverflowPolicy parses "block" or "drop".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return Block, nil
	case "drop":
		return Drop, nil
	default:
		return Block, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// MessageQueue is the FIFO shared by the ingestion loop and the dispatch
// workers. The queued messages and the running flag are guarded by the same
// mutex, so a worker never misses the transition to shutdown between
// checking its wait predicate and going to sleep.
type MessageQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []InboundMessage
	capacity int
	policy   OverflowPolicy
	running  bool
	depth    prometheus.Gauge
}

// NewMessageQueue creates a running queue. A capacity of zero or less makes
// the queue unbounded.
func NewMessageQueue(capacity int, policy OverflowPolicy) *MessageQueue {
	q := &MessageQueue{
		capacity: max(capacity, 0),
		policy:   policy,
		running:  true,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// TrackDepth makes the queue keep g equal to its length. g is only updated
// while the queue lock is held.
func (q *MessageQueue) TrackDepth(g prometheus.Gauge) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.depth = g
	if g != nil {
		g.Set(float64(len(q.items)))
	}
}

// Push appends msg to the tail and wakes one waiting worker.
func (q *MessageQueue) Push(msg InboundMessage) error {
	q.mu.Lock()
	for q.running && q.full() {
		if q.policy == Drop {
			q.mu.Unlock()
			return ErrQueueFull
		}
		q.notFull.Wait()
	}
	if !q.running {
		q.mu.Unlock()
		return ErrRelayClosed
	}
	q.items = append(q.items, msg)
	if q.depth != nil {
		q.depth.Inc()
	}
	q.mu.Unlock()

	q.notEmpty.Signal()
	return nil
}

// Pop blocks until a message is available or the queue is closed. It
// returns false only once the queue is closed and empty.
func (q *MessageQueue) Pop() (InboundMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && q.running {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return InboundMessage{}, false
	}

	msg := q.items[0]
	q.items[0] = InboundMessage{}
	q.items = q.items[1:]
	if q.depth != nil {
		q.depth.Dec()
	}
	if q.capacity > 0 {
		q.notFull.Signal()
	}
	return msg, true
}

// Close clears the running flag and wakes every waiter. Messages still
// queued remain poppable. Close only has an effect the first time.
func (q *MessageQueue) Close() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Discard drops every queued message and returns how many were dropped.
func (q *MessageQueue) Discard() int {
	q.mu.Lock()
	n := len(q.items)
	q.items = nil
	if q.depth != nil {
		q.depth.Set(0)
	}
	q.mu.Unlock()

	q.notFull.Broadcast()
	return n
}

// Len returns the number of queued messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Running reports whether the queue still accepts messages.
func (q *MessageQueue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

func (q *MessageQueue) full() bool {
	return q.capacity > 0 && len(q.items) >= q.capacity
}
