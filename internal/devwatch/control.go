package devwatch

import (
	"context"

	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/journal"
	"github.com/dimasma0305/devwatch/internal/devwatch/socket"
)

// Events returns recent events newest first: from the journal when one is
// open, otherwise from the in-memory history
func (e *Engine) Events(q journal.Query) ([]journal.Entry, error) {
	if q.Limit <= 0 {
		q.Limit = journal.DefaultQueryLimit
	}
	if j := e.openJournal(); j != nil {
		return j.Recent(q)
	}

	var history []events.Event
	if buf := e.bus.History(); buf != nil {
		if q.Kind != "" {
			history = buf.ListByKind(events.Kind(q.Kind))
		} else {
			history = buf.ListAll()
		}
	}
	out := make([]journal.Entry, 0, q.Limit)
	for i := len(history) - 1; i >= 0 && len(out) < q.Limit; i-- {
		entry := journal.EntryFor(history[i])
		if q.Source != "" && entry.Source != q.Source {
			continue
		}
		if !q.Since.IsZero() && entry.Timestamp.Before(q.Since) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// Router answers the control socket actions
func (e *Engine) Router() *socket.Router {
	r := socket.NewRouter()
	r.Handle(socket.ActionStatus, func(ctx context.Context, _ socket.Command) (interface{}, error) {
		return e.Status(ctx)
	})
	r.Handle(socket.ActionScan, func(ctx context.Context, cmd socket.Command) (interface{}, error) {
		if cmd.Bool("fresh") {
			return e.Scan(ctx)
		}
		return e.Snapshot(ctx)
	})
	r.Handle(socket.ActionEvents, func(_ context.Context, cmd socket.Command) (interface{}, error) {
		return e.Events(journal.Query{
			Kind:   cmd.String("kind"),
			Source: cmd.String("source"),
			Limit:  cmd.Int("limit", journal.DefaultQueryLimit),
		})
	})
	r.Handle(socket.ActionStop, func(context.Context, socket.Command) (interface{}, error) {
		return map[string]bool{"stopping": e.RequestStop()}, nil
	})
	return r
}
