package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/bdl/pkg/config"
)

func TestRedactString(t *testing.T) {
	r := NewRedactor(nil)
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "email", input: "from jane@corp.example", want: "from ***@corp.example"},
		{name: "ssn", input: "ssn 123-45-6789", want: "ssn ***-**-****"},
		{name: "card", input: "card 4111 1111 1111 1111 used", want: "card ****-****-****-**** used"},
		{name: "bearer", input: "Authorization: Bearer abc.def", want: "Authorization: Bearer ***"},
		{name: "password", input: "password=s3cret!", want: "password: ***"},
		{name: "iban", input: "pay DE89370400440532013000", want: "pay IBAN-***"},
		{name: "amount untouched", input: "amount 1250.50 on 2024-03-01", want: "amount 1250.50 on 2024-03-01"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.input); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCustomPatterns(t *testing.T) {
	r := NewRedactor([]config.RedactPattern{
		{Name: "employee", Pattern: `EMP-\d{6}`, Replacement: "EMP-******"},
		{Name: "broken", Pattern: "[unclosed", Replacement: "x"},
	})
	if got := r.RedactString("submitted by EMP-004211"); got != "submitted by EMP-******" {
		t.Errorf("got %q", got)
	}
	if len(r.patterns) != len(defaultPatterns)+1 {
		t.Errorf("patterns = %d, invalid pattern should be skipped", len(r.patterns))
	}
}

func TestReplaceAttr(t *testing.T) {
	r := NewRedactor(nil)
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{name: "sensitive key long", attr: slog.String("api_token", "abcdefghijkl"), want: "abcd***"},
		{name: "sensitive key short", attr: slog.String("Password", "pw"), want: "***"},
		{name: "sensitive non-string", attr: slog.Int("card_number", 4111), want: "***"},
		{name: "scanned value", attr: slog.String("note", "mail bob@x.io"), want: "mail ***@x.io"},
		{name: "error value", attr: slog.Any("error", errors.New("lookup of a@b.co failed")), want: "lookup of ***@b.co failed"},
		{name: "plain", attr: slog.String("verdict", "DENY"), want: "DENY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ReplaceAttr(nil, tt.attr)
			if got.Key != tt.attr.Key || got.Value.String() != tt.want {
				t.Errorf("ReplaceAttr = %s=%s, want %s", got.Key, got.Value, tt.want)
			}
		})
	}

	if got := r.ReplaceAttr(nil, slog.Int("count", 3)); !strings.EqualFold(got.Value.String(), "3") {
		t.Errorf("non-string attr changed: %v", got)
	}
}
