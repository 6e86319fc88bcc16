package devwatch

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dimasma0305/devwatch/internal/devwatch/monitor"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

// Status is the derived summary of one snapshot
type Status struct {
	Project        string               `json:"project"`
	Timestamp      time.Time            `json:"timestamp"`
	Age            string               `json:"age"`
	Level          types.ReadinessLevel `json:"level"`
	Score          int                  `json:"score"`
	CanStart       bool                 `json:"can_start"`
	Issues         []string             `json:"issues"`
	CriticalIssues []string             `json:"critical_issues"`
	Roles          []string             `json:"roles"`
	Running        int                  `json:"running_processes"`
	Healthy        int                  `json:"healthy_endpoints"`
	Endpoints      int                  `json:"endpoints"`
	Branch         string               `json:"branch,omitempty"`
	Clean          bool                 `json:"clean"`
	ChangedFiles   int                  `json:"changed_files"`
	Monitor        monitor.Info         `json:"monitor"`
	LastTick       string               `json:"last_tick,omitempty"`
}

// Summarize derives a Status. Relative times are measured from now.
func Summarize(project string, snap types.Snapshot, info monitor.Info, now time.Time) Status {
	st := Status{
		Project:        project,
		Timestamp:      snap.Timestamp,
		Age:            humanize.RelTime(snap.Timestamp, now, "ago", "from now"),
		Level:          snap.Readiness.Level,
		Score:          snap.Readiness.Score,
		CanStart:       len(snap.Readiness.CriticalIssues) == 0,
		Issues:         nonNil(snap.Readiness.Issues),
		CriticalIssues: nonNil(snap.Readiness.CriticalIssues),
		Roles:          snap.Roles(),
		Running:        len(snap.Processes),
		Healthy:        snap.HealthyEndpoints(),
		Endpoints:      len(snap.Network),
		Monitor:        info,
	}
	if vc := snap.VersionControl; vc.Available {
		st.Branch = vc.Branch
		st.Clean = vc.Clean
		st.ChangedFiles = vc.ChangedFileCount
	}
	if !info.LastTick.IsZero() {
		st.LastTick = humanize.RelTime(info.LastTick, now, "ago", "from now")
	}
	return st
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
