package bus

import (
	"sync"
)

// RingSize is the number of slots in each ring buffer.
const RingSize = 128

// DefaultLimit is the number of live entries a ring accepts. One slot is
// kept free so head==tail always means empty.
const DefaultLimit = RingSize - 1

// ---------------------------------------------------------------------------
// MessageQueue: fixed ring of pending messages
// ---------------------------------------------------------------------------

// MessageQueue is the FIFO ring carrying messages between characters.
// All methods are safe for concurrent use; the lock only covers the ring
// itself, never the dispatch of a message.
type MessageQueue struct {
	mu      sync.Mutex
	ring    [RingSize]Message
	head    int // slot of the oldest live message
	count   int // number of live messages
	limit   int
	dropped uint64
}

// NewMessageQueue creates an empty queue using DefaultLimit.
func NewMessageQueue() *MessageQueue {
	return &MessageQueue{limit: DefaultLimit}
}

// Add enqueues m. When the queue already holds Limit() messages, m is
// discarded and the drop counter is incremented. Callers must not assume
// delivery.
func (q *MessageQueue) Add(m Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count >= q.limit {
		q.dropped++
		log.Debugf("message queue full (%d), dropping %s", q.count, m)
		return
	}
	q.ring[(q.head+q.count)%RingSize] = m
	q.count++
}

// Get removes and returns the oldest message. The boolean is false when the
// queue is empty.
func (q *MessageQueue) Get() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Message{}, false
	}
	m := q.ring[q.head]
	q.ring[q.head] = Message{}
	q.head = (q.head + 1) % RingSize
	q.count--
	return m, true
}

// Peek returns the pending messages oldest first without consuming them.
func (q *MessageQueue) Peek() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Message, q.count)
	for i := range out {
		out[i] = q.ring[(q.head+i)%RingSize]
	}
	return out
}

// Len returns the number of pending messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Clear discards every pending message.
func (q *MessageQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ring = [RingSize]Message{}
	q.head = 0
	q.count = 0
}

// CopyFrom replaces the pending messages of q with those of src, slot for
// slot. The limit and drop counter of q are kept.
func (q *MessageQueue) CopyFrom(src *MessageQueue) {
	src.mu.Lock()
	ring, head, count := src.ring, src.head, src.count
	src.mu.Unlock()

	q.mu.Lock()
	q.ring, q.head, q.count = ring, head, count
	q.mu.Unlock()
}

// Limit returns the soft cap on live messages.
func (q *MessageQueue) Limit() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit
}

// SetLimit changes the soft cap, clamped to 1..DefaultLimit. Messages already
// queued beyond a lowered limit are kept.
func (q *MessageQueue) SetLimit(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.limit = clampLimit(n)
}

// Dropped returns how many messages were discarded because the queue was full.
func (q *MessageQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > DefaultLimit {
		return DefaultLimit
	}
	return n
}
