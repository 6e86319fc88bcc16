package events

import "sync"

// RingBuffer is a fixed-capacity, thread-safe ring buffer of events.
// When full, the oldest event is overwritten.
type RingBuffer struct {
	mu    sync.RWMutex
	items []Event
	cap   int
	head  int // index of the oldest element
	count int
}

// NewRingBuffer creates a buffer holding at most capacity events
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		items: make([]Event, capacity),
		cap:   capacity,
	}
}

// Add inserts an event, evicting the oldest one when full
func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == rb.cap {
		rb.items[rb.head] = e
		rb.head = (rb.head + 1) % rb.cap
		return
	}
	rb.items[(rb.head+rb.count)%rb.cap] = e
	rb.count++
}

// ListAll returns all events, oldest first
func (rb *RingBuffer) ListAll() []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.listLocked()
}

// ListByKind returns the events of one kind, oldest first
func (rb *RingBuffer) ListByKind(kind Kind) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result []Event
	for _, e := range rb.listLocked() {
		if e.Kind == kind {
			result = append(result, e)
		}
	}
	return result
}

// Last returns up to n of the newest events, oldest first
func (rb *RingBuffer) Last(n int) []Event {
	all := rb.ListAll()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Len returns the number of stored events
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Caller must hold at least a read lock.
func (rb *RingBuffer) listLocked() []Event {
	if rb.count == 0 {
		return nil
	}
	result := make([]Event, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(rb.head+i)%rb.cap]
	}
	return result
}
