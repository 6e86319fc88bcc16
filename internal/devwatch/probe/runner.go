// Package probe implements the fail-soft probes that make up a snapshot:
// processes, network endpoints, code quality, version control and project
// structure. No probe returns an error to its caller; failures degrade the
// facet they produce.
package probe

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	dwerrors "github.com/dimasma0305/devwatch/internal/devwatch/errors"
	"github.com/dimasma0305/devwatch/internal/log"
)

// DefaultCommandTimeout bounds a command that does not set its own timeout
const DefaultCommandTimeout = 10 * time.Second

// Command is one external tool invocation
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// RunResult is the outcome of running a Command. Output holds stdout and
// stderr combined. Err is ErrProbeUnavailable when the tool is missing and
// ErrProbeTimeout when the timeout elapsed; a non-zero exit alone is not an
// error.
type RunResult struct {
	Output   string
	ExitCode int
	Duration time.Duration
	Err      error
}

// Runner executes external tools
type Runner interface {
	Run(ctx context.Context, cmd Command) RunResult
}

// ExecRunner runs commands as local processes
type ExecRunner struct{}

// Run executes cmd and captures its combined output
func (ExecRunner) Run(ctx context.Context, c Command) RunResult {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	if _, err := exec.LookPath(c.Name); err != nil {
		return RunResult{ExitCode: -1, Err: dwerrors.Wrap(dwerrors.ErrProbeUnavailable, c.Name+" not found")}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: commands come from the fixed probe table
	cmd := exec.CommandContext(timeoutCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	res := RunResult{
		Output:   out.String(),
		Duration: time.Since(start),
	}

	if timeoutCtx.Err() == context.DeadlineExceeded {
		log.DebugH3("%s timed out after %v", c.Name, timeout)
		res.ExitCode = -1
		res.Err = dwerrors.Wrapf(dwerrors.ErrProbeTimeout, "%s after %v", c.Name, timeout)
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound):
		res.ExitCode = -1
		res.Err = dwerrors.Wrap(dwerrors.ErrProbeUnavailable, c.Name)
	default:
		res.ExitCode = -1
		res.Err = dwerrors.Wrap(dwerrors.ErrProbeUnavailable, err.Error())
	}
	return res
}
