package events

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

func msg(text string) Event {
	return Event{Kind: KindMonitorStarted, Message: text}
}

func messages(evs []Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Message
	}
	return out
}

func TestRingBuffer(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		add      []string
		want     []string
	}{
		{name: "empty", capacity: 3, want: nil},
		{name: "partial", capacity: 3, add: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "full", capacity: 3, add: []string{"a", "b", "c"}, want: []string{"a", "b", "c"}},
		{name: "wrapped", capacity: 3, add: []string{"a", "b", "c", "d", "e"}, want: []string{"c", "d", "e"}},
		{name: "capacity clamp", capacity: 0, add: []string{"a", "b"}, want: []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer(tt.capacity)
			for _, m := range tt.add {
				rb.Add(msg(m))
			}
			got := rb.ListAll()
			if tt.want == nil {
				if got != nil {
					t.Errorf("ListAll() = %v, want nil", got)
				}
				return
			}
			if diff := cmp.Diff(tt.want, messages(got)); diff != "" {
				t.Errorf("ListAll() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRingBufferLastAndKind(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Add(msg("a"))
	rb.Add(Event{Kind: KindMonitorError, Message: "b"})
	rb.Add(msg("c"))

	if diff := cmp.Diff([]string{"b", "c"}, messages(rb.Last(2))); diff != "" {
		t.Errorf("Last(2) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, messages(rb.ListByKind(KindMonitorError))); diff != "" {
		t.Errorf("ListByKind() mismatch (-want +got):\n%s", diff)
	}
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(0)
	var got []string
	bus.Subscribe(func(e Event) { got = append(got, e.Message) })

	for _, m := range []string{"one", "two", "three"} {
		bus.Publish(msg(m))
	}
	if diff := cmp.Diff([]string{"one", "two", "three"}, got); diff != "" {
		t.Errorf("delivery mismatch (-want +got):\n%s", diff)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(0)
	count := 0
	unsub := bus.Subscribe(func(Event) { count++ })

	bus.Publish(msg("a"))
	unsub()
	unsub()
	bus.Publish(msg("b"))

	if count != 1 {
		t.Errorf("handler called %d times, want 1", count)
	}
}

func TestBusReentrantHandler(t *testing.T) {
	bus := NewBus(0)
	var unsub func()
	done := make(chan struct{})
	unsub = bus.Subscribe(func(Event) {
		// Unsubscribing and publishing from inside a handler must not deadlock
		unsub()
		bus.Publish(msg("nested"))
		close(done)
	})

	go bus.Publish(msg("outer"))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant handler deadlocked")
	}
}

func TestSubscribeChanDropsWhenFull(t *testing.T) {
	bus := NewBus(0)
	ch, cancel := bus.SubscribeChan(2)
	defer cancel()

	for _, m := range []string{"a", "b", "c"} {
		bus.Publish(msg(m))
	}

	var got []string
	for i := 0; i < 2; i++ {
		got = append(got, (<-ch).Message)
	}
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("channel mismatch (-want +got):\n%s", diff)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected extra event %v", e)
	default:
	}
}

func TestSubscribeChanCancelCloses(t *testing.T) {
	bus := NewBus(0)
	ch, cancel := bus.SubscribeChan(1)
	cancel()
	cancel()

	bus.Publish(msg("after"))
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus(100)
	var mu sync.Mutex
	count := 0
	bus.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(msg("x"))
			}
		}()
	}
	wg.Wait()

	if count != 500 {
		t.Errorf("handler saw %d events, want 500", count)
	}
	if bus.History().Len() != 100 {
		t.Errorf("history holds %d events, want 100", bus.History().Len())
	}
}

func TestEventString(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "log",
			ev: FromLog(types.ClassifiedEvent{
				Source: "dev", RawLine: "FATAL boom", Category: types.CategoryError,
				Severity: types.SeverityCritical, Timestamp: at,
			}),
			want: "09:30:00 [critical] dev: FATAL boom",
		},
		{
			name: "transition",
			ev:   FromTransition(types.NewProcessCrashed("vite", 4242), at),
			want: "09:30:00 [process_crashed] vite stopped (last pid 4242)",
		},
		{
			name: "lifecycle with error",
			ev: func() Event {
				e := Lifecycle(KindWatcherClosed, "dev", "watcher closed", errors.New("file removed"))
				e.Time = at
				return e
			}(),
			want: "09:30:00 [watcher.closed] dev: watcher closed (file removed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if !strings.Contains(tt.ev.Colored(), tt.want) {
				t.Errorf("Colored() should contain the plain rendering")
			}
		})
	}
}
