package types

import (
	"fmt"
	"time"
)

// Category is the semantic class assigned to one line of log text
type Category string

// Log line categories, in precedence order
const (
	CategoryError   Category = "error"
	CategoryWarning Category = "warning"
	CategorySuccess Category = "success"
	CategoryURL     Category = "url"
	CategoryInfo    Category = "info"
)

// Severity refines CategoryError
type Severity string

// Error severities
const (
	SeverityNone     Severity = ""
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ClassifiedEvent is one classified log line, tagged with the log it came from
type ClassifiedEvent struct {
	Source    string    `json:"source"`
	RawLine   string    `json:"raw_line"`
	Category  Category  `json:"category"`
	Severity  Severity  `json:"severity,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TransitionKind tags a TransitionEvent
type TransitionKind string

// Transition kinds
const (
	ProcessStarted   TransitionKind = "process_started"
	ProcessCrashed   TransitionKind = "process_crashed"
	NetworkUp        TransitionKind = "network_up"
	NetworkDown      TransitionKind = "network_down"
	ReadinessChanged TransitionKind = "readiness_changed"
)

// TransitionEvent is one discrete change detected between two snapshots.
// Only the fields relevant to Kind are set.
type TransitionEvent struct {
	Kind     TransitionKind `json:"kind"`
	Role     string         `json:"role,omitempty"`
	PID      int            `json:"pid,omitempty"`
	Endpoint string         `json:"endpoint,omitempty"`
	Port     int            `json:"port,omitempty"`
	From     ReadinessLevel `json:"from,omitempty"`
	To       ReadinessLevel `json:"to,omitempty"`
	Score    int            `json:"score,omitempty"`
}

// NewProcessStarted builds a process_started event
func NewProcessStarted(role string, pid int) TransitionEvent {
	return TransitionEvent{Kind: ProcessStarted, Role: role, PID: pid}
}

// NewProcessCrashed builds a process_crashed event carrying the last known pid
func NewProcessCrashed(role string, lastKnownPID int) TransitionEvent {
	return TransitionEvent{Kind: ProcessCrashed, Role: role, PID: lastKnownPID}
}

// NewNetworkUp builds a network_up event
func NewNetworkUp(endpoint string, port int) TransitionEvent {
	return TransitionEvent{Kind: NetworkUp, Endpoint: endpoint, Port: port}
}

// NewNetworkDown builds a network_down event
func NewNetworkDown(endpoint string, port int) TransitionEvent {
	return TransitionEvent{Kind: NetworkDown, Endpoint: endpoint, Port: port}
}

// NewReadinessChanged builds a readiness_changed event
func NewReadinessChanged(from, to ReadinessLevel, score int) TransitionEvent {
	return TransitionEvent{Kind: ReadinessChanged, From: from, To: to, Score: score}
}

func (e TransitionEvent) String() string {
	switch e.Kind {
	case ProcessStarted:
		return fmt.Sprintf("%s started (pid %d)", e.Role, e.PID)
	case ProcessCrashed:
		return fmt.Sprintf("%s stopped (last pid %d)", e.Role, e.PID)
	case NetworkUp:
		return fmt.Sprintf("%s is up on port %d", e.Endpoint, e.Port)
	case NetworkDown:
		return fmt.Sprintf("%s went down on port %d", e.Endpoint, e.Port)
	case ReadinessChanged:
		return fmt.Sprintf("readiness %s -> %s (score %d)", e.From, e.To, e.Score)
	default:
		return string(e.Kind)
	}
}
