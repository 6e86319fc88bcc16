package probe

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

// ProcInfo is one row of the host process table
type ProcInfo struct {
	PID     int
	Command string
}

// ProcessLister enumerates running processes
type ProcessLister interface {
	ListProcesses(ctx context.Context) ([]ProcInfo, error)
}

// RoleRule maps a command line pattern to a process role
type RoleRule struct {
	Pattern     *regexp.Regexp
	Exclude     *regexp.Regexp
	Role        string
	Kind        string
	DefaultPort int // 0 when the role has no conventional port
}

// DefaultRoleRules is the ordered role table; the first matching row wins
var DefaultRoleRules = []RoleRule{
	{
		Pattern: regexp.MustCompile(`\bturbo(?:\.js)?\b.*\bdev\b`),
		Role:    "turbo",
		Kind:    "turbo-dev",
	},
	{
		Pattern:     regexp.MustCompile(`\bastro(?:\.js|\.mjs)?\s+dev\b`),
		Role:        "astro",
		Kind:        "astro-dev",
		DefaultPort: 4321,
	},
	{
		Pattern:     regexp.MustCompile(`\bvite(?:\.js|\.mjs)?\b`),
		Exclude:     regexp.MustCompile(`\bvite(?:\.js|\.mjs)?\s+(?:build|preview|optimize)\b`),
		Role:        "vite",
		Kind:        "vite-dev",
		DefaultPort: 5173,
	},
	{
		Pattern:     regexp.MustCompile(`\bnext(?:\.js)?\s+dev\b`),
		Role:        "next",
		Kind:        "next-dev",
		DefaultPort: 3000,
	},
	{
		Pattern:     regexp.MustCompile(`\bconvex(?:\.js)?\b.*\bdev\b`),
		Role:        "convex",
		Kind:        "convex-local",
		DefaultPort: 3210,
	},
	{
		Pattern: regexp.MustCompile(`\bconvex(?:\.js)?\b`),
		Role:    "convex",
		Kind:    "convex-cloud",
	},
	{
		Pattern: regexp.MustCompile(`\b(?:npm|pnpm|yarn|bun)\b(?:\s+run)?\s+dev\b`),
		Role:    "dev-script",
		Kind:    "dev-script",
	},
}

var portArgPattern = regexp.MustCompile(`(?:--port[= ]|\bport=|\bPORT=)(\d{1,5})\b`)

// MatchRole classifies one command line. ok is false for processes that
// are not dev processes.
func MatchRole(rules []RoleRule, command string) (rule RoleRule, ok bool) {
	for _, r := range rules {
		if !r.Pattern.MatchString(command) {
			continue
		}
		if r.Exclude != nil && r.Exclude.MatchString(command) {
			continue
		}
		return r, true
	}
	return RoleRule{}, false
}

// ExtractPort returns an explicit port argument from a command line, or 0
func ExtractPort(command string) int {
	m := portArgPattern.FindStringSubmatch(command)
	if m == nil {
		return 0
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port <= 0 || port > 65535 {
		return 0
	}
	return port
}

// ProcessProbe detects dev processes by role
type ProcessProbe struct {
	Lister ProcessLister
	Rules  []RoleRule
}

// NewProcessProbe creates a probe over the platform's process table
func NewProcessProbe(runner Runner) *ProcessProbe {
	return &ProcessProbe{Lister: newSystemLister(runner), Rules: DefaultRoleRules}
}

// Probe returns the first process found per role. Listing failures yield
// an empty map.
func (p *ProcessProbe) Probe(ctx context.Context) map[string]types.Process {
	out := make(map[string]types.Process)

	procs, err := p.Lister.ListProcesses(ctx)
	if err != nil {
		log.DebugH2("process listing failed: %v", err)
		return out
	}

	rules := p.Rules
	if rules == nil {
		rules = DefaultRoleRules
	}

	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	self := os.Getpid()

	for _, proc := range procs {
		if proc.PID == self || proc.Command == "" {
			continue
		}
		rule, ok := MatchRole(rules, proc.Command)
		if !ok {
			continue
		}
		if _, seen := out[rule.Role]; seen {
			continue
		}

		port := ExtractPort(proc.Command)
		if port == 0 {
			port = rule.DefaultPort
		}
		out[rule.Role] = types.Process{
			PID:        proc.PID,
			Port:       port,
			Kind:       rule.Kind,
			RawCommand: proc.Command,
		}
	}
	return out
}
