package ast

import (
	"fmt"
	"time"
)

// PolicyRef identifies one exact version of a policy document.
type PolicyRef struct {
	PolicyID string `json:"policy_id" yaml:"policy_id"`
	Version  string `json:"version" yaml:"version"`
}

// String returns "policy_id@version".
func (r PolicyRef) String() string {
	return fmt.Sprintf("%s@%s", r.PolicyID, r.Version)
}

// IsZero returns true if neither field is set.
func (r PolicyRef) IsZero() bool {
	return r.PolicyID == "" && r.Version == ""
}

// Location points into the YAML source a node was built from. Line and
// Column are 1-based, as reported by yaml.v3.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	switch {
	case l.File == "":
		return "<unknown>"
	case l.Line == 0:
		return l.File
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsValid reports whether l names a line in a known file.
func (l Location) IsValid() bool { return l.Line > 0 && l.File != "" }

// Document is the validated in-memory form of a compiled BDL policy.
// A Document is immutable once loaded; the engine only ever reads it.
type Document struct {
	PolicyID     string
	Version      string
	Title        string
	Description  string
	Effective    EffectiveWindow
	Jurisdiction string
	Defaults     Defaults
	Params       []*ParamDefinition // Declaration order
	Extends      *PolicyRef
	Tables       []*TableDefinition
	Statements   []*Statement // Declaration order
	Metadata     map[string]interface{}

	// Chain lists the documents merged into this one, root ancestor first.
	// It holds only the document itself until composition has run.
	Chain []PolicyRef

	// Source tracking
	SourceFile string
	Location   Location
}

// Ref returns the PolicyRef of the document.
func (d *Document) Ref() PolicyRef {
	return PolicyRef{PolicyID: d.PolicyID, Version: d.Version}
}

// GetParam returns the param with the given name, or nil if not declared.
func (d *Document) GetParam(name string) *ParamDefinition {
	for _, p := range d.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// GetTable returns the table with the given id, or nil if not declared.
func (d *Document) GetTable(id string) *TableDefinition {
	for _, t := range d.Tables {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// GetStatement returns the statement with the given id, or nil if not declared.
func (d *Document) GetStatement(id string) *Statement {
	for _, s := range d.Statements {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// IsComposite returns true if the document extends another document.
func (d *Document) IsComposite() bool {
	return d.Extends != nil
}

// EffectiveWindow bounds the period in which a document is intended to apply.
// Zero times mean the window is open on that side.
type EffectiveWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window (both bounds inclusive).
func (w EffectiveWindow) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// Defaults holds document-level fallback outcomes.
type Defaults struct {
	OnMissing   *Outcome
	OnError     *Outcome
	OnApply     *Outcome
	OnViolation *Outcome
}

// ForBucket returns the document default for an outcome bucket, or nil.
func (d Defaults) ForBucket(b Bucket) *Outcome {
	switch b {
	case BucketApply:
		return d.OnApply
	case BucketViolation:
		return d.OnViolation
	case BucketMissing:
		return d.OnMissing
	case BucketError:
		return d.OnError
	}
	return nil
}

// ParamType is the declared type of a runtime parameter.
type ParamType string

const (
	ParamTypeString   ParamType = "string"
	ParamTypeNumber   ParamType = "number"
	ParamTypeBoolean  ParamType = "boolean"
	ParamTypeDate     ParamType = "date"
	ParamTypeDateTime ParamType = "datetime"
)

// ValidParamTypes lists the accepted param types.
var ValidParamTypes = []string{
	string(ParamTypeString),
	string(ParamTypeNumber),
	string(ParamTypeBoolean),
	string(ParamTypeDate),
	string(ParamTypeDateTime),
}

// IsValid returns true if the type is one of the closed set.
func (t ParamType) IsValid() bool {
	switch t {
	case ParamTypeString, ParamTypeNumber, ParamTypeBoolean, ParamTypeDate, ParamTypeDateTime:
		return true
	}
	return false
}

// ParamDefinition declares a runtime-configurable input.
type ParamDefinition struct {
	Name        string
	Type        ParamType
	Required    bool
	Default     interface{} // nil when no default is declared
	HasDefault  bool
	Description string

	// Origin is the document that declared the param.
	Origin   PolicyRef
	Location Location
}

// TableDefinition is a lookup table addressed by a composite key.
type TableDefinition struct {
	ID          string
	KeyColumns  []string
	ValueColumn string
	Rows        []map[string]interface{} // Input order is significant

	Origin   PolicyRef
	Location Location
}

// Columns returns key columns followed by the value column.
func (t *TableDefinition) Columns() []string {
	cols := make([]string, 0, len(t.KeyColumns)+1)
	cols = append(cols, t.KeyColumns...)
	return append(cols, t.ValueColumn)
}
