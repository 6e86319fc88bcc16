// Package notify forwards selected transition events to external sinks:
// a Discord webhook and SMTP email
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

// DefaultKinds are the transitions sent when the config names none
var DefaultKinds = []types.TransitionKind{
	types.ProcessCrashed,
	types.NetworkDown,
	types.ReadinessChanged,
}

const (
	queueSize   = 32
	sendTimeout = 15 * time.Second

	// DefaultMinInterval and DefaultBurst bound how fast a flapping
	// environment can notify
	DefaultMinInterval = 10 * time.Second
	DefaultBurst       = 5
)

// Notification is one outbound message
type Notification struct {
	Kind    types.TransitionKind
	Title   string
	Body    string
	Project string
	Time    time.Time
}

// Sender delivers notifications to one sink
type Sender interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Notifier filters bus events and delivers them on a background goroutine
type Notifier struct {
	project string
	kinds   map[types.TransitionKind]bool
	senders []Sender
	limiter *rate.Limiter

	mu     sync.RWMutex
	closed bool
	queue  chan Notification
	done   chan struct{}
}

// New builds a notifier from the configured sinks. It returns nil when no
// sink is configured.
func New(project string, cfg config.NotifyConfig) (*Notifier, error) {
	var senders []Sender
	if cfg.Discord.WebhookURL != "" {
		s, err := NewDiscord(cfg.Discord.WebhookURL)
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	if len(cfg.Email.To) > 0 {
		senders = append(senders, NewEmail(cfg.Email))
	}
	if len(senders) == 0 {
		return nil, nil
	}

	kinds := make([]types.TransitionKind, 0, len(cfg.Kinds))
	for _, k := range cfg.Kinds {
		kinds = append(kinds, types.TransitionKind(k))
	}
	n := NewWithSenders(project, kinds, senders...)
	n.SetRateLimit(cfg.MinInterval, cfg.Burst)
	return n, nil
}

// NewWithSenders creates a notifier for the given kinds; empty kinds means
// DefaultKinds
func NewWithSenders(project string, kinds []types.TransitionKind, senders ...Sender) *Notifier {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	n := &Notifier{
		project: project,
		kinds:   make(map[types.TransitionKind]bool, len(kinds)),
		senders: senders,
		limiter: rate.NewLimiter(rate.Every(DefaultMinInterval), DefaultBurst),
		queue:   make(chan Notification, queueSize),
		done:    make(chan struct{}),
	}
	for _, k := range kinds {
		n.kinds[k] = true
	}
	go n.run()
	return n
}

// SetRateLimit allows burst notifications at once, refilled one per
// interval. Zero values keep the defaults.
func (n *Notifier) SetRateLimit(interval time.Duration, burst int) {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	n.limiter.SetLimit(rate.Every(interval))
	n.limiter.SetBurst(burst)
}

// Handle is an events.Handler. It never blocks; notifications beyond the
// queue size are dropped.
func (n *Notifier) Handle(e events.Event) {
	if e.Kind != events.KindTransition || e.Transition == nil || !n.kinds[e.Transition.Kind] {
		return
	}
	note := Notification{
		Kind:    e.Transition.Kind,
		Title:   titleFor(*e.Transition),
		Body:    e.Transition.String(),
		Project: n.project,
		Time:    e.Time,
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	if !n.limiter.Allow() {
		log.Warn("notification rate limit reached, dropping %s", note.Kind)
		return
	}
	select {
	case n.queue <- note:
	default:
		log.Warn("notification queue full, dropping %s", note.Kind)
	}
}

// Close stops accepting notifications and waits for queued ones to be sent
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

func (n *Notifier) run() {
	defer close(n.done)
	for note := range n.queue {
		for _, s := range n.senders {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			if err := s.Send(ctx, note); err != nil {
				log.Error("%s notification failed: %v", s.Name(), err)
			} else {
				log.DebugH2("%s notification sent: %s", s.Name(), note.Title)
			}
			cancel()
		}
	}
}

func titleFor(ev types.TransitionEvent) string {
	switch ev.Kind {
	case types.ProcessStarted:
		return fmt.Sprintf("%s started", ev.Role)
	case types.ProcessCrashed:
		return fmt.Sprintf("%s crashed", ev.Role)
	case types.NetworkUp:
		return fmt.Sprintf("%s is up", ev.Endpoint)
	case types.NetworkDown:
		return fmt.Sprintf("%s is down", ev.Endpoint)
	case types.ReadinessChanged:
		return fmt.Sprintf("Readiness is now %s", ev.To)
	default:
		return string(ev.Kind)
	}
}
