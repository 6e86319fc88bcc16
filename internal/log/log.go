// Package log provides the colored leveled logger used across devwatch.
//
//nolint:revive // Package name kept as "log" for stable internal imports.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	debugMode = false

	outMu sync.Mutex
	out   io.Writer = os.Stdout
	errw  io.Writer = os.Stderr
)

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	debugMode = enabled
}

// IsDebug reports whether debug logging is enabled
func IsDebug() bool {
	return debugMode
}

// SetOutput redirects regular and error output. A nil writer keeps the
// current destination. The daemon uses this to send everything to its log file.
func SetOutput(stdout, stderr io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if stdout != nil {
		out = stdout
	}
	if stderr != nil {
		errw = stderr
	}
}

// ResetOutput restores stdout/stderr as destinations
func ResetOutput() {
	SetOutput(os.Stdout, os.Stderr)
}

func writeLine(w func() io.Writer, line string) {
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(w(), line)
}

func stdout() io.Writer { return out }
func stderr() io.Writer { return errw }

// Debug logs debug messages when debug mode is enabled
func Debug(format string, elem ...any) {
	if debugMode {
		writeLine(stdout, color.CyanString("[DEBUG] ")+fmt.Sprintf(format, elem...))
	}
}

// DebugH2 logs indented debug messages when debug mode is enabled
func DebugH2(format string, elem ...any) {
	if debugMode {
		writeLine(stdout, color.CyanString("  [DEBUG] ")+fmt.Sprintf(format, elem...))
	}
}

// DebugH3 logs more indented debug messages when debug mode is enabled
func DebugH3(format string, elem ...any) {
	if debugMode {
		writeLine(stdout, color.CyanString("    [DEBUG] ")+fmt.Sprintf(format, elem...))
	}
}

// Fatal logs an error message and exits the program
func Fatal(args ...interface{}) {
	var message string

	switch len(args) {
	case 0:
		message = "fatal error occurred"
	case 1:
		switch v := args[0].(type) {
		case error:
			message = v.Error()
		case string:
			message = v
		default:
			message = fmt.Sprintf("%v", v)
		}
	default:
		// If first argument is a string, use as format
		if format, ok := args[0].(string); ok {
			message = fmt.Sprintf(format, args[1:]...)
		} else {
			message = fmt.Sprint(args...)
		}
	}

	lines := strings.Split(strings.TrimSpace(message), "\n")
	for _, line := range lines {
		writeLine(stderr, color.RedString("[x] ")+line)
	}
	os.Exit(1)
}

// Error logs an error message to stderr
func Error(str string, elem ...any) {
	writeLine(stderr, color.RedString("[x] ")+fmt.Sprintf(str, elem...))
}

// ErrorH2 logs an indented error message to stderr
func ErrorH2(format string, elem ...any) {
	writeLine(stderr, color.RedString("  [x] ")+fmt.Sprintf(format, elem...))
}

// Warn logs a warning to stderr
func Warn(format string, elem ...any) {
	writeLine(stderr, color.YellowString("[!] ")+fmt.Sprintf(format, elem...))
}

// Info logs an informational message
func Info(format string, elem ...any) {
	writeLine(stdout, color.BlueString("[x] ")+fmt.Sprintf(format, elem...))
}

// InfoH2 logs an indented informational message
func InfoH2(format string, elem ...any) {
	writeLine(stdout, color.GreenString("  [x] ")+fmt.Sprintf(format, elem...))
}

// InfoH3 logs a double-indented informational message
func InfoH3(format string, elem ...any) {
	writeLine(stdout, color.YellowString("    [x] ")+fmt.Sprintf(format, elem...))
}

// Plain writes a line without any prefix, used for rendered event output
func Plain(format string, elem ...any) {
	writeLine(stdout, fmt.Sprintf(format, elem...))
}
