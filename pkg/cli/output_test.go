package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func sampleTable() *Table {
	t := &Table{Headers: []string{"POLICY", "VERSION", "TESTS"}}
	t.Append("dress-code", "1.0.0", "4")
	t.Append("expenses", "2.1.0", "12")
	return t
}

func TestTextFormatterTable(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, sampleTable()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	want := "POLICY      VERSION  TESTS\n" +
		"dress-code  1.0.0    4\n" +
		"expenses    2.1.0    12\n"
	if buf.String() != want {
		t.Errorf("FormatTo() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestTextFormatterValue(t *testing.T) {
	out, err := (&TextFormatter{}).Format("test message")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(out) != "test message\n" {
		t.Errorf("Format() = %q", out)
	}
}

func TestJSONFormatter(t *testing.T) {
	tests := []struct {
		name   string
		data   interface{}
		indent bool
	}{
		{name: "string", data: "test"},
		{name: "map with indent", data: map[string]string{"verdict": "compliant"}, indent: true},
		{name: "struct", data: struct {
			TraceID string `json:"trace_id"`
		}{TraceID: "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &JSONFormatter{Indent: tt.indent}
			out, err := f.Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if !json.Valid(out) {
				t.Errorf("Format() produced invalid JSON: %s", out)
			}
			if tt.indent != strings.Contains(string(out), "\n") {
				t.Errorf("indent = %v, output %q", tt.indent, out)
			}
		})
	}
}

func TestCSVFormatter(t *testing.T) {
	table := sampleTable()
	table.Append("quoted, name", "0.1.0", "0")

	out, err := (&CSVFormatter{}).Format(table)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "POLICY,VERSION,TESTS\n" +
		"dress-code,1.0.0,4\n" +
		"expenses,2.1.0,12\n" +
		"\"quoted, name\",0.1.0,0\n"
	if string(out) != want {
		t.Errorf("Format() =\n%s\nwant\n%s", out, want)
	}

	if _, err := (&CSVFormatter{}).Format("not a table"); err == nil {
		t.Error("non-table data must be rejected")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		allowed []OutputFormat
		want    OutputFormat
		wantErr bool
	}{
		{in: "json", want: FormatJSON},
		{in: "TEXT", want: FormatText},
		{in: "csv", want: FormatCSV},
		{in: "yaml", wantErr: true},
		{in: "csv", allowed: []OutputFormat{FormatText, FormatJSON}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in, tt.allowed...)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("json formatter")
	}
	if _, ok := NewFormatter(FormatCSV).(*CSVFormatter); !ok {
		t.Error("csv formatter")
	}
	if _, ok := NewFormatter("").(*TextFormatter); !ok {
		t.Error("default formatter")
	}
}
