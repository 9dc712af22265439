package exec

import (
	"errors"
	"fmt"
)

// ExecError describes a command that could not be started or exited non-zero.
type ExecError struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %v failed with exit code %d: %v", e.Command, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("command %v failed with exit code %d", e.Command, e.ExitCode)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ExitCode returns the exit code of the first ExecError in the chain of err.
// It returns 0 for a nil error and -1 when no ExecError is present.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.ExitCode
	}
	return -1
}
