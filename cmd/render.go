package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dimasma0305/devwatch/internal/devwatch"
	"github.com/dimasma0305/devwatch/internal/devwatch/daemon"
	"github.com/dimasma0305/devwatch/internal/devwatch/journal"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

func levelLabel(level types.ReadinessLevel, score int) string {
	label := fmt.Sprintf("%s (%d/100)", strings.ToUpper(string(level)), score)
	switch level {
	case types.LevelReady:
		return color.GreenString("🟢 %s", label)
	case types.LevelPartial:
		return color.YellowString("🟡 %s", label)
	default:
		return color.RedString("🔴 %s", label)
	}
}

func facetLabel(available bool, reason, ok string) string {
	if !available {
		if reason == "" {
			return color.HiBlackString("unavailable")
		}
		return color.HiBlackString("unavailable (%s)", reason)
	}
	return ok
}

// printSnapshot renders one snapshot for humans
func printSnapshot(w io.Writer, snap types.Snapshot) {
	fmt.Fprintf(w, "🔍 Environment snapshot (%s)\n", snap.Timestamp.Format("15:04:05"))
	fmt.Fprintln(w, "==========================================")
	fmt.Fprintf(w, "Readiness: %s\n", levelLabel(snap.Readiness.Level, snap.Readiness.Score))

	fmt.Fprintln(w, "\n⚙️  Processes:")
	if len(snap.Processes) == 0 {
		fmt.Fprintln(w, "   (none running)")
	}
	for _, role := range snap.Roles() {
		p := snap.Processes[role]
		fmt.Fprintf(w, "   - %-10s pid %-7d port %s\n", role, p.PID, p.PortLabel())
	}

	fmt.Fprintln(w, "\n🌐 Network:")
	for _, ep := range snap.Network {
		status := ep.StatusLabel()
		if ep.Healthy {
			status = color.GreenString("%s", status)
		} else {
			status = color.RedString("%s", status)
		}
		fmt.Fprintf(w, "   - %-10s :%-5d %s\n", ep.Name, ep.Port, status)
	}

	q := snap.Quality
	fmt.Fprintln(w, "\n🧪 Quality:")
	ts := "clean"
	if !q.TypeScript.Clean {
		ts = fmt.Sprintf("%d errors", q.TypeScript.ErrorCount)
	}
	fmt.Fprintf(w, "   - TypeScript: %s\n", facetLabel(q.TypeScript.Available, q.TypeScript.Reason, ts))
	lint := fmt.Sprintf("%d errors, %d warnings", q.Lint.ErrorCount, q.Lint.WarningCount)
	if q.Lint.Fixable {
		lint += " (auto-fixable)"
	}
	fmt.Fprintf(w, "   - Lint:       %s\n", facetLabel(q.Lint.Available, q.Lint.Reason, lint))
	build := "failing"
	if q.Build.Success {
		build = fmt.Sprintf("ok in %dms", q.Build.DurationMs)
		if q.Build.SizeLabel != "" {
			build += ", " + q.Build.SizeLabel
		}
	}
	fmt.Fprintf(w, "   - Build:      %s\n", facetLabel(q.Build.Available, q.Build.Reason, build))

	vc := snap.VersionControl
	vcs := fmt.Sprintf("%s, %d changed files", vc.Branch, vc.ChangedFileCount)
	if vc.Clean {
		vcs = vc.Branch + ", clean"
	}
	fmt.Fprintf(w, "\n🌿 Git: %s\n", facetLabel(vc.Available, vc.Reason, vcs))

	st := snap.Structure
	if st.Monorepo {
		fmt.Fprintf(w, "📦 Monorepo (%s): %d workspaces\n", st.Tool, len(st.Workspaces))
		for _, ws := range st.Workspaces {
			fmt.Fprintf(w, "   - %s (%s) %s\n", ws.Name, ws.Path, strings.Join(ws.Frameworks, ", "))
		}
	} else if len(st.Frameworks) > 0 {
		fmt.Fprintf(w, "📦 Frameworks: %s\n", strings.Join(st.Frameworks, ", "))
	}

	printIssues(w, snap.Readiness.Issues, snap.Readiness.CriticalIssues)
}

func printIssues(w io.Writer, issues, critical []string) {
	if len(issues) == 0 {
		return
	}
	isCritical := make(map[string]bool, len(critical))
	for _, c := range critical {
		isCritical[c] = true
	}
	fmt.Fprintln(w, "\n⚠️  Issues:")
	for _, issue := range issues {
		if isCritical[issue] {
			fmt.Fprintf(w, "   - %s\n", color.RedString("%s (critical)", issue))
			continue
		}
		fmt.Fprintf(w, "   - %s\n", issue)
	}
}

// printStatus renders the derived summary
func printStatus(w io.Writer, st devwatch.Status) {
	fmt.Fprintf(w, "🔍 %s: %s\n", st.Project, levelLabel(st.Level, st.Score))
	fmt.Fprintf(w, "📸 Snapshot: %s\n", st.Age)
	fmt.Fprintf(w, "⚙️  Processes: %d running", st.Running)
	if len(st.Roles) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(st.Roles, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "🌐 Endpoints: %d/%d healthy\n", st.Healthy, st.Endpoints)
	if st.Branch != "" {
		state := "clean"
		if !st.Clean {
			state = fmt.Sprintf("%d changed files", st.ChangedFiles)
		}
		fmt.Fprintf(w, "🌿 Branch: %s (%s)\n", st.Branch, state)
	}

	monitorLine := fmt.Sprintf("👀 Monitor: %s", st.Monitor.State)
	if st.Monitor.State == "active" {
		monitorLine += fmt.Sprintf(", every %s, %d ticks", st.Monitor.Interval, st.Monitor.Ticks)
		if st.LastTick != "" {
			monitorLine += ", last " + st.LastTick
		}
		if len(st.Monitor.Watchers) > 0 {
			monitorLine += fmt.Sprintf(", logs: %s", strings.Join(st.Monitor.Watchers, ", "))
		}
	}
	fmt.Fprintln(w, monitorLine)

	if st.CanStart {
		fmt.Fprintln(w, color.GreenString("✅ Ready to start"))
	} else {
		fmt.Fprintln(w, color.RedString("❌ Not ready: %s", strings.Join(st.CriticalIssues, "; ")))
	}
	printIssues(w, st.Issues, st.CriticalIssues)
}

// printDaemonStatus renders the PID file view of the monitor
func printDaemonStatus(w io.Writer, st daemon.Status, logFile string) {
	switch st.State {
	case daemon.StateRunning:
		fmt.Fprintln(w, "🟢 Monitor: RUNNING")
		fmt.Fprintf(w, "📄 Process ID: %d\n", st.PID)
		fmt.Fprintf(w, "📝 Log File: %s\n", logFile)
	case daemon.StateDead:
		fmt.Fprintln(w, "🟡 Monitor: STOPPED (stale PID file removed)")
		fmt.Fprintln(w, "🔧 Run 'devwatch watch start' to start a new monitor")
	case daemon.StateStopped:
		fmt.Fprintln(w, "⚫ Monitor: NOT RUNNING")
		fmt.Fprintln(w, "🔧 Run 'devwatch watch start' to start the monitor")
	default:
		fmt.Fprintln(w, "🔴 Monitor: ERROR")
		fmt.Fprintf(w, "💬 %s\n", st.Message)
	}
	fmt.Fprintf(w, "📄 PID File: %s\n", st.PidFile)
}

// printEntries renders journal entries oldest first
func printEntries(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no events)")
		return
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		label := e.Kind
		if e.Category != "" {
			label = e.Category
		}
		line := fmt.Sprintf("[%s] %-17s %s", e.Timestamp.Format("15:04:05"), label, e.Message)
		if e.Source != "" {
			line = fmt.Sprintf("[%s] %-17s %s: %s", e.Timestamp.Format("15:04:05"), label, e.Source, e.Message)
		}
		if e.Error != "" {
			line += " (" + e.Error + ")"
		}
		switch {
		case e.Severity != "" || e.Category == string(types.ProcessCrashed) || e.Category == string(types.NetworkDown):
			line = color.RedString("%s", line)
		case e.Category == string(types.CategoryWarning):
			line = color.YellowString("%s", line)
		}
		fmt.Fprintln(w, line)
	}
}
