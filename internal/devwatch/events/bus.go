package events

import (
	"sync"

	"github.com/dimasma0305/devwatch/internal/log"
)

// Handler receives published events
type Handler func(Event)

// Bus fans published events out to subscribers. Handlers run on the
// publisher's goroutine without any bus lock held, so a handler may
// subscribe, unsubscribe or stop the producer that is publishing.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
	order    []int
	recent   *RingBuffer
}

// NewBus creates a bus that also keeps the last historySize events.
// historySize <= 0 disables the history.
func NewBus(historySize int) *Bus {
	b := &Bus{handlers: make(map[int]Handler)}
	if historySize > 0 {
		b.recent = NewRingBuffer(historySize)
	}
	return b
}

// Subscribe registers h and returns a function that removes it
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// SubscribeChan delivers events on a buffered channel. Events published
// while the channel is full are dropped for this subscriber. The returned
// function unsubscribes and closes the channel.
func (b *Bus) SubscribeChan(size int) (<-chan Event, func()) {
	if size <= 0 {
		size = 64
	}
	ch := make(chan Event, size)

	var (
		mu     sync.Mutex
		closed bool
	)
	unsub := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
			log.DebugH3("event subscriber full, dropping %s", e.Kind)
		}
	})

	return ch, func() {
		unsub()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}

// Publish delivers e to every current subscriber in subscription order
func (b *Bus) Publish(e Event) {
	if b.recent != nil {
		b.recent.Add(e)
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// History exposes the retained event buffer, nil when disabled
func (b *Bus) History() *RingBuffer {
	return b.recent
}
