// Package events carries everything the engine emits to its observers:
// classified log lines, snapshot transitions and monitor lifecycle notices
package events

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

// Kind identifies what an Event carries
type Kind string

// Event kinds
const (
	KindLog            Kind = "log"
	KindTransition     Kind = "transition"
	KindMonitorStarted Kind = "monitor.started"
	KindMonitorStopped Kind = "monitor.stopped"
	KindMonitorError   Kind = "monitor.error"
	KindWatcherClosed  Kind = "watcher.closed"
)

// Event is one published item. Log is set for KindLog, Transition for
// KindTransition; lifecycle kinds use Message and Error.
type Event struct {
	Kind       Kind                   `json:"kind"`
	Time       time.Time              `json:"time"`
	Log        *types.ClassifiedEvent `json:"log,omitempty"`
	Transition *types.TransitionEvent `json:"transition,omitempty"`
	Source     string                 `json:"source,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// FromLog wraps a classified log line
func FromLog(ev types.ClassifiedEvent) Event {
	return Event{Kind: KindLog, Time: ev.Timestamp, Log: &ev, Source: ev.Source}
}

// FromTransition wraps a snapshot transition
func FromTransition(ev types.TransitionEvent, at time.Time) Event {
	return Event{Kind: KindTransition, Time: at, Transition: &ev}
}

// Lifecycle builds a monitor or watcher notice
func Lifecycle(kind Kind, source, message string, err error) Event {
	e := Event{Kind: kind, Time: time.Now(), Source: source, Message: message}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// String renders the event as one human readable line
func (e Event) String() string {
	ts := e.Time.Format("15:04:05")
	switch e.Kind {
	case KindLog:
		if e.Log == nil {
			break
		}
		label := string(e.Log.Category)
		if e.Log.Severity == types.SeverityCritical {
			label = "critical"
		}
		return fmt.Sprintf("%s [%s] %s: %s", ts, label, e.Log.Source, e.Log.RawLine)
	case KindTransition:
		if e.Transition == nil {
			break
		}
		return fmt.Sprintf("%s [%s] %s", ts, e.Transition.Kind, e.Transition.String())
	}

	msg := e.Message
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Error != "" {
		msg += " (" + e.Error + ")"
	}
	return fmt.Sprintf("%s [%s] %s", ts, e.Kind, msg)
}

// Colored renders the event with a color picked from its category
func (e Event) Colored() string {
	return colorFor(e)("%s", e.String())
}

func colorFor(e Event) func(format string, a ...interface{}) string {
	switch e.Kind {
	case KindLog:
		if e.Log == nil {
			return fmt.Sprintf
		}
		switch e.Log.Category {
		case types.CategoryError:
			return color.RedString
		case types.CategoryWarning:
			return color.YellowString
		case types.CategorySuccess:
			return color.GreenString
		case types.CategoryURL:
			return color.CyanString
		}
	case KindTransition:
		if e.Transition == nil {
			return fmt.Sprintf
		}
		switch e.Transition.Kind {
		case types.ProcessCrashed, types.NetworkDown:
			return color.RedString
		case types.ProcessStarted, types.NetworkUp:
			return color.GreenString
		case types.ReadinessChanged:
			return color.MagentaString
		}
	case KindMonitorError, KindWatcherClosed:
		return color.YellowString
	}
	return fmt.Sprintf
}
