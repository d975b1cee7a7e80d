package errors

import (
	"fmt"
	"strings"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// ErrorType categorizes a problem found while loading a document.
type ErrorType string

const (
	ErrorTypeSyntax     ErrorType = "syntax"     // YAML/JSON syntax error
	ErrorTypeStructural ErrorType = "structural" // Unknown or malformed fields
	ErrorTypeSemantic   ErrorType = "semantic"   // Undeclared references, duplicate ids, type mismatches
	ErrorTypeLimit      ErrorType = "limit"      // Nesting depth or size bounds exceeded
	ErrorTypeIO         ErrorType = "io"         // File access
)

// Severity separates fatal errors from reported warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Error is a single validation finding with location and an optional suggestion.
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Location   ast.Location
	Context    string // Surrounding source lines
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	sev := e.Severity
	if sev == "" {
		sev = SeverityError
	}
	sb.WriteString(fmt.Sprintf("[%s/%s] %s\n", e.Type, sev, e.Message))

	if e.Location.IsValid() {
		sb.WriteString(fmt.Sprintf("  --> %s\n", e.Location.String()))
	}
	if e.Context != "" {
		sb.WriteString("  |\n")
		sb.WriteString(e.Context)
		sb.WriteString("  |\n")
	}
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  = suggestion: %s\n", e.Suggestion))
	}
	return sb.String()
}

// IsWarning returns true if the finding does not block loading.
func (e *Error) IsWarning() bool {
	return e.Severity == SeverityWarning
}

// ErrorList accumulates findings so a document reports every problem at once.
// It is the ValidationError of the document model: a non-empty list of
// error-severity findings blocks use of the document.
type ErrorList struct {
	Errors   []*Error
	Warnings []*Error
}

// NewErrorList creates an empty list.
func NewErrorList() *ErrorList {
	return &ErrorList{}
}

// Add appends a finding, routing warnings to their own slice.
func (el *ErrorList) Add(err *Error) {
	if err.IsWarning() {
		el.Warnings = append(el.Warnings, err)
		return
	}
	el.Errors = append(el.Errors, err)
}

// AddError creates and adds an error-severity finding.
func (el *ErrorList) AddError(errType ErrorType, message string, location ast.Location) {
	el.Add(&Error{Type: errType, Severity: SeverityError, Message: message, Location: location})
}

// AddErrorWithSuggestion creates and adds an error-severity finding with a suggestion.
func (el *ErrorList) AddErrorWithSuggestion(errType ErrorType, message string, location ast.Location, suggestion string) {
	el.Add(&Error{
		Type:       errType,
		Severity:   SeverityError,
		Message:    message,
		Location:   location,
		Suggestion: suggestion,
	})
}

// AddWarning creates and adds a warning.
func (el *ErrorList) AddWarning(errType ErrorType, message string, location ast.Location) {
	el.Add(&Error{Type: errType, Severity: SeverityWarning, Message: message, Location: location})
}

// Merge appends all findings of other.
func (el *ErrorList) Merge(other *ErrorList) {
	if other == nil {
		return
	}
	el.Errors = append(el.Errors, other.Errors...)
	el.Warnings = append(el.Warnings, other.Warnings...)
}

// HasErrors returns true if any error-severity finding was added.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// HasWarnings returns true if any warning was added.
func (el *ErrorList) HasWarnings() bool {
	return len(el.Warnings) > 0
}

// Count returns the number of error-severity findings.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Error implements the error interface.
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("validation failed with %d error(s):\n\n", el.Count()))
	for i, err := range el.Errors {
		sb.WriteString(fmt.Sprintf("Error %d:\n", i+1))
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

// ToError returns nil if no error-severity finding exists, otherwise the list itself.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}

// ByType returns all error-severity findings of the given type.
func (el *ErrorList) ByType(errType ErrorType) []*Error {
	var result []*Error
	for _, err := range el.Errors {
		if err.Type == errType {
			result = append(result, err)
		}
	}
	return result
}

// HasErrorType returns true if at least one error of the given type exists.
func (el *ErrorList) HasErrorType(errType ErrorType) bool {
	return len(el.ByType(errType)) > 0
}
