package pipeline

import (
	"errors"
	"fmt"

	"submission-grader/internal/locate"
)

var (
	ErrNonZeroExit  = errors.New("process exited with non-zero status")
	ErrInvalidState = errors.New("step not allowed in current state")
)

// StepError wraps errors with the pipeline step that produced them.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsBuildFileNotFound reports whether the build step found no build file.
func IsBuildFileNotFound(err error) bool {
	return errors.Is(err, locate.ErrBuildFileNotFound)
}

// IsProgramNotFound reports whether the run step found no executable.
func IsProgramNotFound(err error) bool {
	return errors.Is(err, locate.ErrProgramNotFound)
}
