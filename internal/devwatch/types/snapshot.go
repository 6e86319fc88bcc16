// Package types holds the data model shared by the devwatch engine:
// snapshots, their facets, and the events derived from them.
package types

import (
	"sort"
	"strconv"
	"time"
)

// Snapshot is one point-in-time capture of the monitored environment.
// The snapshotter hands out copies; the stored value is never mutated.
type Snapshot struct {
	Timestamp      time.Time          `json:"timestamp"`
	Processes      map[string]Process `json:"processes"`
	Network        []Endpoint         `json:"network"`
	Quality        Quality            `json:"quality"`
	VersionControl VersionControl     `json:"version_control"`
	Structure      Structure          `json:"structure"`
	Readiness      Readiness          `json:"readiness"`
}

// Process is a dev process observed running under a given role
type Process struct {
	PID        int    `json:"pid"`
	Port       int    `json:"port,omitempty"` // 0 means unknown
	Kind       string `json:"kind"`
	RawCommand string `json:"raw_command"`
}

// PortLabel renders the port, or "unknown" when none could be determined
func (p Process) PortLabel() string {
	if p.Port <= 0 {
		return "unknown"
	}
	return strconv.Itoa(p.Port)
}

// Endpoint is the result of probing one well-known local port
type Endpoint struct {
	Name       string `json:"name"`
	Port       int    `json:"port"`
	StatusCode int    `json:"status_code,omitempty"`
	Offline    bool   `json:"offline"`
	Healthy    bool   `json:"healthy"`
}

// StatusLabel renders the response code, or "offline"
func (e Endpoint) StatusLabel() string {
	if e.Offline || e.StatusCode == 0 {
		return "offline"
	}
	return strconv.Itoa(e.StatusCode)
}

// Quality groups the code-quality facets
type Quality struct {
	TypeScript TypeCheckResult `json:"typescript"`
	Lint       LintResult      `json:"lint"`
	Build      BuildResult     `json:"build"`
}

// TypeCheckResult is the outcome of the type-check sub-probe
type TypeCheckResult struct {
	Available  bool   `json:"available"`
	Reason     string `json:"reason,omitempty"`
	ErrorCount int    `json:"error_count"`
	Clean      bool   `json:"clean"`
}

// LintResult is the outcome of the lint sub-probe
type LintResult struct {
	Available    bool   `json:"available"`
	Reason       string `json:"reason,omitempty"`
	ErrorCount   int    `json:"error_count"`
	WarningCount int    `json:"warning_count"`
	Fixable      bool   `json:"fixable"`
}

// BuildResult is the outcome of the build sub-probe
type BuildResult struct {
	Available  bool   `json:"available"`
	Reason     string `json:"reason,omitempty"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms"`
	SizeLabel  string `json:"size_label,omitempty"`
}

// VersionControl is the repository facet
type VersionControl struct {
	Available        bool   `json:"available"`
	Reason           string `json:"reason,omitempty"`
	Branch           string `json:"branch,omitempty"`
	ChangedFileCount int    `json:"changed_file_count"`
	Clean            bool   `json:"clean"`
}

// Structure describes the workspace layout of the project
type Structure struct {
	Monorepo   bool        `json:"monorepo"`
	Tool       string      `json:"tool,omitempty"` // turbo, pnpm, npm-workspaces
	Frameworks []string    `json:"frameworks,omitempty"`
	Workspaces []Workspace `json:"workspaces,omitempty"`
}

// Workspace is one package of a monorepo
type Workspace struct {
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Frameworks []string `json:"frameworks,omitempty"`
}

// ReadinessLevel is the three-level readiness classification
type ReadinessLevel string

// Readiness levels
const (
	LevelReady    ReadinessLevel = "ready"
	LevelPartial  ReadinessLevel = "partial"
	LevelNotReady ReadinessLevel = "not-ready"
)

// Readiness summarizes whether the environment is fit for development work
type Readiness struct {
	Score          int            `json:"score"`
	Level          ReadinessLevel `json:"level"`
	Issues         []string       `json:"issues"`
	CriticalIssues []string       `json:"critical_issues"`
}

// Clone returns a deep copy, so a caller may modify the result without
// touching a snapshot held elsewhere
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Processes != nil {
		out.Processes = make(map[string]Process, len(s.Processes))
		for role, p := range s.Processes {
			out.Processes[role] = p
		}
	}
	out.Network = cloneSlice(s.Network)
	out.Structure.Frameworks = cloneSlice(s.Structure.Frameworks)
	if s.Structure.Workspaces != nil {
		out.Structure.Workspaces = make([]Workspace, len(s.Structure.Workspaces))
		for i, ws := range s.Structure.Workspaces {
			ws.Frameworks = cloneSlice(ws.Frameworks)
			out.Structure.Workspaces[i] = ws
		}
	}
	out.Readiness.Issues = cloneSlice(s.Readiness.Issues)
	out.Readiness.CriticalIssues = cloneSlice(s.Readiness.CriticalIssues)
	return out
}

// cloneSlice copies in, keeping nil and empty distinct for JSON output
func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Endpoint returns the endpoint with the given name
func (s Snapshot) Endpoint(name string) (Endpoint, bool) {
	for _, ep := range s.Network {
		if ep.Name == name {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// Roles returns the observed process roles in sorted order
func (s Snapshot) Roles() []string {
	roles := make([]string, 0, len(s.Processes))
	for role := range s.Processes {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// HealthyEndpoints counts endpoints that answered with an accepted status
func (s Snapshot) HealthyEndpoints() int {
	n := 0
	for _, ep := range s.Network {
		if ep.Healthy {
			n++
		}
	}
	return n
}
