// Package errors defines the sentinel errors shared by the devwatch engine
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// Probe errors. These never leave the probe set; they end up as the
	// Reason of a degraded facet.
	ErrProbeUnavailable = errors.New("probe unavailable")
	ErrProbeTimeout     = errors.New("probe timed out")

	// Log watcher errors
	ErrWatcherStart       = errors.New("log watcher failed to start")
	ErrWatcherStopTimeout = errors.New("log watcher did not stop in time")

	// Monitor errors
	ErrAlreadyMonitoring = errors.New("already monitoring")
	ErrNotMonitoring     = errors.New("not monitoring")
	ErrTick              = errors.New("monitor tick failed")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrap wraps an error with additional context
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is checks if the error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As checks if the error can be unwrapped to the target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}
