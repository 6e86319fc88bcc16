//go:build linux

package probe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procfsLister reads the process table from /proc. Only processes owned
// by the current user are listed.
type procfsLister struct {
	root string
}

func newSystemLister(Runner) ProcessLister {
	return &procfsLister{root: "/proc"}
}

// ListProcesses implements ProcessLister
func (l *procfsLister) ListProcesses(ctx context.Context) ([]ProcInfo, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.root, err)
	}

	uid := os.Getuid()
	var procs []ProcInfo
	for _, entry := range entries {
		if ctx.Err() != nil {
			return procs, ctx.Err()
		}
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		if owner, err := readProcUID(l.root, pid); err != nil || owner != uid {
			continue
		}
		cmd, err := readCmdline(l.root, pid)
		if err != nil || cmd == "" {
			continue
		}
		procs = append(procs, ProcInfo{PID: pid, Command: cmd})
	}
	return procs, nil
}

// readCmdline joins the NUL separated argv of a process with spaces
func readCmdline(root string, pid int) (string, error) {
	//nolint:gosec // G304: path is built from a numeric pid under /proc
	data, err := os.ReadFile(filepath.Join(root, strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return "", err
	}
	data = bytes.TrimRight(data, "\x00")
	if len(data) == 0 {
		return "", nil
	}
	parts := bytes.Split(data, []byte{0})
	args := make([]string, len(parts))
	for i, p := range parts {
		args[i] = string(p)
	}
	return strings.Join(args, " "), nil
}

// readProcUID returns the real uid from /proc/<pid>/status
func readProcUID(root string, pid int) (int, error) {
	//nolint:gosec // G304: path is built from a numeric pid under /proc
	data, err := os.ReadFile(filepath.Join(root, strconv.Itoa(pid), "status"))
	if err != nil {
		return -1, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "Uid:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "Uid:"))
		if len(fields) == 0 {
			break
		}
		return strconv.Atoi(fields[0])
	}
	return -1, fmt.Errorf("no Uid line for pid %d", pid)
}
