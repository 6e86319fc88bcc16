package snapshot

import (
	"fmt"

	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

// Score weights
const (
	weightTypeCheck = 40
	weightBuild     = 30
	weightLintClean = 20
	weightLintFew   = 10
	weightRuntime   = 10

	// Lint error counts below this still earn partial credit
	lintFewThreshold = 10

	readyThreshold   = 90
	partialThreshold = 70
)

// Score computes the readiness summary of an assembled snapshot
func Score(s types.Snapshot) types.Readiness {
	r := types.Readiness{Issues: []string{}, CriticalIssues: []string{}}

	ts := s.Quality.TypeScript
	switch {
	case !ts.Available:
		r.Issues = append(r.Issues, unavailable("TypeScript", ts.Reason))
	case ts.Clean:
		r.Score += weightTypeCheck
	default:
		issue := fmt.Sprintf("TypeScript: %d errors", ts.ErrorCount)
		r.Issues = append(r.Issues, issue)
		r.CriticalIssues = append(r.CriticalIssues, issue)
	}

	build := s.Quality.Build
	switch {
	case !build.Available:
		r.Issues = append(r.Issues, unavailable("Build", build.Reason))
	case build.Success:
		r.Score += weightBuild
	default:
		issue := "Build failing"
		r.Issues = append(r.Issues, issue)
		r.CriticalIssues = append(r.CriticalIssues, issue)
	}

	lint := s.Quality.Lint
	switch {
	case !lint.Available:
		r.Issues = append(r.Issues, unavailable("Lint", lint.Reason))
	case lint.ErrorCount == 0:
		r.Score += weightLintClean
	case lint.ErrorCount < lintFewThreshold:
		r.Score += weightLintFew
		r.Issues = append(r.Issues, lintIssue(lint))
	default:
		r.Issues = append(r.Issues, fmt.Sprintf("Lint: %d errors", lint.ErrorCount))
	}

	if len(s.Processes) > 0 && s.HealthyEndpoints() > 0 {
		r.Score += weightRuntime
	}

	r.Level = LevelFor(r.Score)
	return r
}

// LevelFor maps a score to its readiness level
func LevelFor(score int) types.ReadinessLevel {
	switch {
	case score >= readyThreshold:
		return types.LevelReady
	case score >= partialThreshold:
		return types.LevelPartial
	default:
		return types.LevelNotReady
	}
}

// lintIssue describes a lint result that still earns partial credit
func lintIssue(l types.LintResult) string {
	if l.Fixable {
		return fmt.Sprintf("Lint: %d errors (auto-fixable)", l.ErrorCount)
	}
	return fmt.Sprintf("Lint: %d errors", l.ErrorCount)
}

func unavailable(facet, reason string) string {
	if reason == "" {
		return facet + " unavailable"
	}
	return fmt.Sprintf("%s unavailable (%s)", facet, reason)
}
