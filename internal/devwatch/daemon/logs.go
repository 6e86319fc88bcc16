package daemon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	tail "github.com/hpcloud/tail"

	"github.com/dimasma0305/devwatch/internal/devwatch/classify"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

// RecentLines returns up to n trailing non-blank lines of logFile
func RecentLines(logFile string, n int) ([]string, error) {
	//nolint:gosec // G304: log file path comes from config
	f, err := os.Open(logFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return ring, nil
}

// ShowRecentLogs prints the last n lines of the monitor log, if it exists
func ShowRecentLogs(w io.Writer, logFile string, n int) {
	lines, err := RecentLines(logFile, n)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "Recent activity (last %d lines from %s):\n", n, logFile)
	for _, line := range lines {
		fmt.Fprintf(w, "   %s\n", colorLine(line))
	}
}

// FollowLogs tails logFile, surviving rotation, until ctx is cancelled.
// Lines are colored by their classified category.
func FollowLogs(ctx context.Context, w io.Writer, logFile string) error {
	t, err := tail.TailFile(logFile, tail.Config{
		ReOpen:    true,
		Follow:    true,
		MustExist: false,
		Poll:      true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail log file: %w", err)
	}
	defer t.Cleanup()
	defer func() { _ = t.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return fmt.Errorf("log tail channel closed")
			}
			if line == nil || strings.TrimSpace(line.Text) == "" {
				continue
			}
			fmt.Fprintln(w, colorLine(line.Text))
		}
	}
}

func colorLine(line string) string {
	switch classify.Classify(line).Category {
	case types.CategoryError:
		return color.RedString("%s", line)
	case types.CategoryWarning:
		return color.YellowString("%s", line)
	case types.CategorySuccess:
		return color.GreenString("%s", line)
	case types.CategoryURL:
		return color.CyanString("%s", line)
	default:
		return line
	}
}
