package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "plain", err: errors.New("boom"), want: ExitGeneral},
		{name: "command", err: NewCommandError("eval", errors.New("boom")), want: ExitGeneral},
		{name: "failure", err: Failuref("%d tests failed", 2), want: ExitFailure},
		{name: "wrapped failure", err: fmt.Errorf("test: %w", Failuref("failed")), want: ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	cause := errors.New("policy not found")
	err := NewCommandError("eval", cause)
	if !errors.Is(err, cause) {
		t.Error("CommandError must unwrap to its cause")
	}
	if err.Error() != "eval: policy not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("audit.backend", "unknown backend")
	if err.Error() != "config audit.backend: unknown backend" {
		t.Errorf("Error() = %q", err.Error())
	}
}
