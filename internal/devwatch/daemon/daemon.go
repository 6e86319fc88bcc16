// Package daemon manages the background monitor process: forking, PID
// bookkeeping, status checks, stopping and following its log
package daemon

import (
	"fmt"
	"os"
	"syscall"
	"time"

	godaemon "github.com/sevlyar/go-daemon"

	"github.com/dimasma0305/devwatch/internal/log"
)

// DefaultStopGrace is how long Stop waits after SIGTERM before SIGKILL
const DefaultStopGrace = 5 * time.Second

// State of the background monitor as seen from its PID file
type State string

// Daemon states
const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateDead    State = "dead"
	StateError   State = "error"
)

// Status describes the background monitor process
type Status struct {
	State   State  `json:"status"`
	Running bool   `json:"daemon_running"`
	PID     int    `json:"pid,omitempty"`
	PidFile string `json:"pid_file"`
	Message string `json:"message,omitempty"`
}

// GetStatus inspects pidFile and the process it names. A stale PID file is
// removed.
func GetStatus(pidFile string) Status {
	status := Status{PidFile: pidFile}

	pid, err := ReadPIDFromFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			status.State = StateStopped
			status.Message = "PID file not found"
		} else {
			status.State = StateError
			status.Message = err.Error()
		}
		return status
	}
	status.PID = pid

	if !processAlive(pid) {
		status.State = StateDead
		if removeErr := os.Remove(pidFile); removeErr != nil && !os.IsNotExist(removeErr) {
			status.Message = fmt.Sprintf("Process not running, failed to clean stale PID file: %v", removeErr)
		} else {
			status.Message = "Process not running (cleaned up stale PID file)"
		}
		return status
	}

	status.State = StateRunning
	status.Running = true
	status.Message = "Monitor is running"
	return status
}

// Stop sends SIGTERM to the process in pidFile, escalating to SIGKILL when
// it is still alive after grace
func Stop(pidFile string, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultStopGrace
	}

	pid, err := ReadPIDFromFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("monitor is not running (PID file not found)")
		}
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		if !processAlive(pid) {
			_ = os.Remove(pidFile)
			return fmt.Errorf("monitor is not running (stale PID %d)", pid)
		}
		return fmt.Errorf("failed to send SIGTERM to process %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for processAlive(pid) && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}

	if processAlive(pid) {
		log.Warn("Process %d still running after %v, sending SIGKILL...", pid, grace)
		if err := process.Kill(); err != nil {
			return fmt.Errorf("failed to kill process %d: %w", pid, err)
		}
	}

	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// processAlive sends signal 0 to pid
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Options locates the files of a background monitor
type Options struct {
	PidFile string
	LogFile string
	WorkDir string
	// Args replaces os.Args for the child when set
	Args []string
}

// Context forks the current command into the background
type Context struct {
	ctx *godaemon.Context
}

// New prepares a daemon context
func New(opts Options) *Context {
	if opts.WorkDir == "" {
		opts.WorkDir = "./"
	}
	return &Context{ctx: &godaemon.Context{
		PidFileName: opts.PidFile,
		PidFilePerm: 0644,
		LogFileName: opts.LogFile,
		LogFilePerm: 0640,
		WorkDir:     opts.WorkDir,
		Umask:       027,
		Args:        opts.Args,
	}}
}

// WasReborn reports whether this process is the forked child
func WasReborn() bool {
	return godaemon.WasReborn()
}

// Reborn forks the child. The parent gets the child process; the child
// gets nil and continues with the monitor.
func (c *Context) Reborn() (*os.Process, error) {
	if err := EnsureDirectoriesExist(c.ctx.PidFileName, c.ctx.LogFileName); err != nil {
		return nil, err
	}
	child, err := c.ctx.Reborn()
	if err != nil {
		return nil, fmt.Errorf("failed to fork monitor: %w", err)
	}
	return child, nil
}

// Release unlocks and removes the PID file; the child calls it on exit
func (c *Context) Release() error {
	return c.ctx.Release()
}
