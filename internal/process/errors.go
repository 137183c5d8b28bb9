package process

import (
	"errors"
	"fmt"
)

// Sentinel errors for typed error checking.
var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrLaunch         = errors.New("process could not be started")
	ErrTimeout        = errors.New("process timed out")
)

// ExecutionError wraps errors with the command that failed.
type ExecutionError struct {
	Program string
	Op      string // The operation that failed
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Program != "" {
		return fmt.Sprintf("%s: %s: %s", e.Program, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsLaunchFailure reports whether the process never started.
func IsLaunchFailure(err error) bool {
	return errors.Is(err, ErrLaunch)
}

// IsTimeout returns true if the error is a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
