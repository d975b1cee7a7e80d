package manager

import (
	"errors"
	"fmt"
	"strings"
)

// Lookup failures returned by Manager.Get and the registry.
var (
	ErrPolicyNotFound  = errors.New("policy not found")
	ErrVersionNotFound = errors.New("policy version not found")
	ErrNotLoaded       = errors.New("policies not loaded")
)

// LoadError ties a read, parse or validation failure to the file that
// caused it.
type LoadError struct {
	FilePath string
	Message  string
	Cause    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load %s: %s", e.FilePath, e.Message)
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

func (e *LoadError) Unwrap() error { return e.Cause }

// RegistryError reports a policy version that could not be composed,
// compiled or installed.
type RegistryError struct {
	PolicyID  string
	Version   string
	Operation string // compose, compile, replace
	Message   string
	Cause     error
}

func (e *RegistryError) Error() string {
	subject := e.PolicyID
	if subject != "" && e.Version != "" {
		subject += "@" + e.Version
	}
	parts := []string{e.Operation}
	if subject != "" {
		parts = append(parts, subject)
	}
	parts = append(parts, e.Message)
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *RegistryError) Unwrap() error { return e.Cause }

// ErrorList collects the per-file failures of one directory scan. A scan
// with failures still yields the files that did load.
type ErrorList struct {
	Errors []error
}

func (e *ErrorList) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	lines := make([]string, 0, len(e.Errors)+1)
	lines = append(lines, fmt.Sprintf("%d errors:", len(e.Errors)))
	for _, err := range e.Errors {
		lines = append(lines, "  - "+err.Error())
	}
	return strings.Join(lines, "\n")
}

// Add appends err unless it is nil.
func (e *ErrorList) Add(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *ErrorList) HasErrors() bool { return len(e.Errors) != 0 }

// ToError collapses the list: nil when empty, the sole error when there is
// one, the list otherwise.
func (e *ErrorList) ToError() error {
	if len(e.Errors) > 1 {
		return e
	}
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return nil
}

func (e *ErrorList) Unwrap() []error { return e.Errors }
