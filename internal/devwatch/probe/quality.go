package probe

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dimasma0305/devwatch/internal/devwatch/cache"
	dwerrors "github.com/dimasma0305/devwatch/internal/devwatch/errors"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

// Default sub-probe timeouts
const (
	DefaultTypeCheckTimeout = 10 * time.Second
	DefaultLintTimeout      = 10 * time.Second
	DefaultBuildTimeout     = 30 * time.Second
)

// QualityTimeouts overrides the per tool timeouts
type QualityTimeouts struct {
	TypeCheck time.Duration `yaml:"typecheck"`
	Lint      time.Duration `yaml:"lint"`
	Build     time.Duration `yaml:"build"`
}

// BuildOutputDirs are checked in order for the build size label
var BuildOutputDirs = []string{"dist", "build", ".next", "out"}

var (
	tsErrorPattern     = regexp.MustCompile(`error TS\d+`)
	lintSummaryPattern = regexp.MustCompile(`\((\d+) errors?, (\d+) warnings?\)`)
	lintFixablePattern = regexp.MustCompile(`(?i)potentially fixable`)

	// Generic diagnostic markers for checkers other than tsc and eslint
	errorMarkerPattern   = regexp.MustCompile(`\berror\b`)
	warningMarkerPattern = regexp.MustCompile(`\bwarning\b`)
)

// QualityProbe runs the type checker, linter and build through a Runner
type QualityProbe struct {
	Root     string
	Runner   Runner
	Timeouts QualityTimeouts
	// Cache holds the build result under cache.KeyBuild when set
	Cache *cache.Cache
}

// NewQualityProbe creates a quality probe for the project at root
func NewQualityProbe(root string, runner Runner, timeouts QualityTimeouts, c *cache.Cache) *QualityProbe {
	if timeouts.TypeCheck <= 0 {
		timeouts.TypeCheck = DefaultTypeCheckTimeout
	}
	if timeouts.Lint <= 0 {
		timeouts.Lint = DefaultLintTimeout
	}
	if timeouts.Build <= 0 {
		timeouts.Build = DefaultBuildTimeout
	}
	return &QualityProbe{Root: root, Runner: runner, Timeouts: timeouts, Cache: c}
}

// Probe runs all three sub-probes concurrently
func (q *QualityProbe) Probe(ctx context.Context) types.Quality {
	var (
		wg sync.WaitGroup
		qa types.Quality
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		qa.TypeScript = q.TypeCheck(ctx)
	}()
	go func() {
		defer wg.Done()
		qa.Lint = q.Lint(ctx)
	}()
	go func() {
		defer wg.Done()
		qa.Build = q.Build(ctx)
	}()
	wg.Wait()
	return qa
}

// TypeCheck runs the TypeScript compiler without emitting output
func (q *QualityProbe) TypeCheck(ctx context.Context) types.TypeCheckResult {
	if !q.exists("tsconfig.json") {
		return types.TypeCheckResult{Reason: "no tsconfig.json"}
	}

	res := q.Runner.Run(ctx, Command{
		Name:    "npx",
		Args:    []string{"--no-install", "tsc", "--noEmit"},
		Dir:     q.Root,
		Timeout: q.Timeouts.TypeCheck,
	})
	if res.Err != nil {
		return types.TypeCheckResult{Reason: reasonFor(res.Err)}
	}
	return ParseTypeCheck(res.Output, res.ExitCode)
}

// ParseTypeCheck counts compiler diagnostics in tsc output
func ParseTypeCheck(output string, exitCode int) types.TypeCheckResult {
	count := len(tsErrorPattern.FindAllStringIndex(output, -1))
	if count == 0 {
		count, _ = countMarkers(output)
	}
	if exitCode != 0 && count == 0 {
		return types.TypeCheckResult{Reason: fmt.Sprintf("tsc exited %d without diagnostics", exitCode)}
	}
	return types.TypeCheckResult{
		Available:  true,
		ErrorCount: count,
		Clean:      count == 0,
	}
}

// Lint runs eslint over the project
func (q *QualityProbe) Lint(ctx context.Context) types.LintResult {
	if !q.exists("package.json") {
		return types.LintResult{Reason: "no package.json"}
	}

	res := q.Runner.Run(ctx, Command{
		Name:    "npx",
		Args:    []string{"--no-install", "eslint", "."},
		Dir:     q.Root,
		Timeout: q.Timeouts.Lint,
	})
	if res.Err != nil {
		return types.LintResult{Reason: reasonFor(res.Err)}
	}
	return ParseLint(res.Output, res.ExitCode)
}

// ParseLint reads the eslint summary line, falling back to counting
// error and warning marker lines. eslint exits 1 on lint errors and 2 on
// configuration or runtime failures.
func ParseLint(output string, exitCode int) types.LintResult {
	m := lintSummaryPattern.FindStringSubmatch(output)
	if m == nil {
		errs, warns := countMarkers(output)
		if exitCode != 0 && errs == 0 && warns == 0 {
			return types.LintResult{Reason: fmt.Sprintf("eslint exited %d without a summary", exitCode)}
		}
		return types.LintResult{
			Available:    true,
			ErrorCount:   errs,
			WarningCount: warns,
			Fixable:      lintFixablePattern.MatchString(output),
		}
	}

	errs, _ := strconv.Atoi(m[1])
	warns, _ := strconv.Atoi(m[2])
	return types.LintResult{
		Available:    true,
		ErrorCount:   errs,
		WarningCount: warns,
		Fixable:      lintFixablePattern.MatchString(output),
	}
}

// countMarkers counts lines flagged as errors or warnings. A line with both
// markers counts as an error.
func countMarkers(output string) (errs, warns int) {
	for _, line := range strings.Split(output, "\n") {
		switch {
		case errorMarkerPattern.MatchString(line):
			errs++
		case warningMarkerPattern.MatchString(line):
			warns++
		}
	}
	return errs, warns
}

// Build runs the project's build script. The result is cached under
// cache.KeyBuild since builds are slow.
func (q *QualityProbe) Build(ctx context.Context) types.BuildResult {
	if q.Cache != nil {
		if cached, ok := cache.GetAs[types.BuildResult](q.Cache, cache.KeyBuild); ok {
			return cached
		}
	}

	result := q.build(ctx)
	if q.Cache != nil && result.Available {
		q.Cache.SetWithTTL(cache.KeyBuild, result, cache.BuildTTL)
	}
	return result
}

func (q *QualityProbe) build(ctx context.Context) types.BuildResult {
	if !q.exists("package.json") {
		return types.BuildResult{Reason: "no package.json"}
	}

	res := q.Runner.Run(ctx, Command{
		Name:    "npm",
		Args:    []string{"run", "build"},
		Dir:     q.Root,
		Timeout: q.Timeouts.Build,
	})
	if res.Err != nil {
		return types.BuildResult{Reason: reasonFor(res.Err)}
	}

	result := types.BuildResult{
		Available:  true,
		Success:    res.ExitCode == 0,
		DurationMs: res.Duration.Milliseconds(),
	}
	if result.Success {
		result.SizeLabel = BuildSizeLabel(q.Root)
	}
	log.DebugH2("build finished in %dms (exit %d)", result.DurationMs, res.ExitCode)
	return result
}

// BuildSizeLabel sums the first build output directory found under root
func BuildSizeLabel(root string) string {
	for _, dir := range BuildOutputDirs {
		path := filepath.Join(root, dir)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		var total uint64
		_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.Type().IsRegular() {
				if fi, err := d.Info(); err == nil {
					total += uint64(fi.Size())
				}
			}
			return nil
		})
		return humanize.Bytes(total)
	}
	return ""
}

func (q *QualityProbe) exists(name string) bool {
	_, err := os.Stat(filepath.Join(q.Root, name))
	return err == nil
}

func reasonFor(err error) string {
	switch {
	case dwerrors.Is(err, dwerrors.ErrProbeTimeout):
		return "timed out"
	case dwerrors.Is(err, dwerrors.ErrProbeUnavailable):
		return "tool not available"
	default:
		return strings.TrimSpace(err.Error())
	}
}
