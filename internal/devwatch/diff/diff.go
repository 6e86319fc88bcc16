// Package diff compares consecutive snapshots and reports the discrete
// transitions between them
package diff

import (
	"sort"

	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

// Options tunes transition detection
type Options struct {
	// DetectRestarts reports a role whose pid changed between snapshots as
	// a crash followed by a start
	DetectRestarts bool
}

// Diff reports the transitions from prev to curr with default options
func Diff(prev *types.Snapshot, curr types.Snapshot) []types.TransitionEvent {
	return Options{}.Diff(prev, curr)
}

// Diff reports the transitions from prev to curr. A nil prev yields no
// events. Crashes come first, then starts, each in role order, then network
// changes in endpoint order, then at most one readiness change.
func (o Options) Diff(prev *types.Snapshot, curr types.Snapshot) []types.TransitionEvent {
	if prev == nil {
		return []types.TransitionEvent{}
	}

	events := []types.TransitionEvent{}
	events = append(events, o.processes(prev.Processes, curr.Processes)...)
	events = append(events, network(*prev, curr)...)

	if prev.Readiness.Level != curr.Readiness.Level {
		events = append(events, types.NewReadinessChanged(prev.Readiness.Level, curr.Readiness.Level, curr.Readiness.Score))
	}
	return events
}

func (o Options) processes(prev, curr map[string]types.Process) []types.TransitionEvent {
	var crashed, started []string
	for role, p := range prev {
		c, ok := curr[role]
		switch {
		case !ok:
			crashed = append(crashed, role)
		case o.DetectRestarts && c.PID != p.PID:
			crashed = append(crashed, role)
			started = append(started, role)
		}
	}
	for role := range curr {
		if _, ok := prev[role]; !ok {
			started = append(started, role)
		}
	}
	sort.Strings(crashed)
	sort.Strings(started)

	events := make([]types.TransitionEvent, 0, len(crashed)+len(started))
	for _, role := range crashed {
		events = append(events, types.NewProcessCrashed(role, prev[role].PID))
	}
	for _, role := range started {
		events = append(events, types.NewProcessStarted(role, curr[role].PID))
	}
	return events
}

// network compares endpoints by name. Endpoints present on only one side
// are not compared.
func network(prev, curr types.Snapshot) []types.TransitionEvent {
	var events []types.TransitionEvent
	for _, ep := range curr.Network {
		old, ok := prev.Endpoint(ep.Name)
		if !ok || old.Healthy == ep.Healthy {
			continue
		}
		if ep.Healthy {
			events = append(events, types.NewNetworkUp(ep.Name, ep.Port))
		} else {
			events = append(events, types.NewNetworkDown(ep.Name, ep.Port))
		}
	}
	return events
}
