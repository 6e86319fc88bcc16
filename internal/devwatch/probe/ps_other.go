//go:build !linux

package probe

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// psLister reads the process table through ps(1)
type psLister struct {
	runner Runner
}

func newSystemLister(runner Runner) ProcessLister {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &psLister{runner: runner}
}

// ListProcesses implements ProcessLister
func (l *psLister) ListProcesses(ctx context.Context) ([]ProcInfo, error) {
	res := l.runner.Run(ctx, Command{
		Name:    "ps",
		Args:    []string{"-axo", "pid=,command="},
		Timeout: 5 * time.Second,
	})
	if res.Err != nil {
		return nil, res.Err
	}
	return parsePSOutput(res.Output), nil
}

func parsePSOutput(out string) []ProcInfo {
	var procs []ProcInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pidField, cmd, found := strings.Cut(line, " ")
		if !found {
			continue
		}
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			continue
		}
		procs = append(procs, ProcInfo{PID: pid, Command: strings.TrimSpace(cmd)})
	}
	return procs
}
