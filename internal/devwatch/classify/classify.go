// Package classify assigns a semantic category to a single line of dev
// server output using keyword heuristics.
package classify

import (
	"regexp"
	"strings"

	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

// Keyword sets, matched case-insensitively as substrings
var (
	errorKeywords    = []string{"error", "failed", "exception", "fatal", "crash"}
	criticalKeywords = []string{"fatal", "crash"}
	warningKeywords  = []string{"warn", "warning", "deprecated"}
	successKeywords  = []string{"success", "compiled", "ready", "listening", "started", "built", "complete"}
)

var (
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	urlPattern  = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s/:]+(?::\d+)?(?:/\S*)?`)
)

// Result is the outcome of classifying one line
type Result struct {
	Category types.Category
	Severity types.Severity
	// Payload carries the first URL for CategoryURL lines
	Payload string
}

// Classify categorizes a line. It never fails: anything unrecognized is info.
// Precedence is error, warning, success, url, info.
func Classify(line string) Result {
	clean := StripANSI(line)
	lower := strings.ToLower(clean)

	switch {
	case containsAny(lower, errorKeywords):
		sev := types.SeverityError
		if containsAny(lower, criticalKeywords) {
			sev = types.SeverityCritical
		}
		return Result{Category: types.CategoryError, Severity: sev}
	case containsAny(lower, warningKeywords):
		return Result{Category: types.CategoryWarning}
	case containsAny(lower, successKeywords):
		return Result{Category: types.CategorySuccess}
	}

	if u := urlPattern.FindString(clean); u != "" {
		return Result{Category: types.CategoryURL, Payload: u}
	}
	return Result{Category: types.CategoryInfo}
}

// StripANSI removes terminal color and cursor escape sequences
func StripANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return ansiPattern.ReplaceAllString(s, "")
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
