package commands

import "fmt"

// ExitError carries a non-zero process exit code out of a command
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
