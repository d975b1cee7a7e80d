package cli

import (
	"errors"
	"fmt"
)

// Process exit statuses. ExitFailure means the command worked but the
// result it checked did not pass.
const (
	ExitOK      = 0
	ExitGeneral = 1
	ExitFailure = 2
)

// ConfigError names the configuration key that stopped a command.
type ConfigError struct {
	Field   string
	Message string
}

func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

func (e *ConfigError) Error() string { return "config " + e.Field + ": " + e.Message }

// CommandError wraps the error a subcommand returned with its name.
type CommandError struct {
	Command string
	Err     error
}

func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

func (e *CommandError) Error() string { return e.Command + ": " + e.Err.Error() }
func (e *CommandError) Unwrap() error { return e.Err }

// ExitError carries a failing outcome (failed test cases, lint errors) and
// the status to exit with. Its message is printed without an error prefix.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// Failuref returns an ExitError with status ExitFailure.
func Failuref(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitFailure, Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps err to a process status: ExitOK for nil, the carried code
// for an ExitError anywhere in the chain, ExitGeneral otherwise.
func ExitCode(err error) int {
	var ee *ExitError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &ee):
		return ee.Code
	}
	return ExitGeneral
}
