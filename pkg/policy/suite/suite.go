package suite

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/temporal"
	"mercator-hq/bdl/pkg/policy/engine"
)

// FileSuffix marks test suite files next to policy documents.
const FileSuffix = ".tests.yaml"

// Suite is the set of test cases attached to one policy version.
type Suite struct {
	PolicyID string      `yaml:"policy_id" json:"policy_id"`
	Version  string      `yaml:"version" json:"version"`
	Tests    []*TestCase `yaml:"tests" json:"tests"`

	// SourceFile is the file the suite was read from, if any.
	SourceFile string `yaml:"-" json:"source_file,omitempty"`
}

// TestCase is a single Case with its expected decision.
type TestCase struct {
	ID          string                 `yaml:"id" json:"id"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Params      map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
	Now         string                 `yaml:"now,omitempty" json:"now,omitempty"`
	Profile     *engine.Profile        `yaml:"profile,omitempty" json:"profile,omitempty"`
	Case        map[string]interface{} `yaml:"case" json:"case"`
	Expected    Expectation            `yaml:"expected" json:"expected"`
}

// Expectation is the decision a test case must produce. Nil lists are not
// compared; an empty list must match an empty result.
type Expectation struct {
	Verdict        ast.Verdict `yaml:"verdict" json:"verdict"`
	ReasonCodes    []string    `yaml:"reason_codes,omitempty" json:"reason_codes,omitempty"`
	RequiredFields []string    `yaml:"required_fields,omitempty" json:"required_fields,omitempty"`
}

// Summary describes a test case for listing.
type Summary struct {
	ID          string      `json:"id"`
	Description string      `json:"description,omitempty"`
	Verdict     ast.Verdict `json:"expected_verdict"`
}

// Ref returns the policy version the suite targets.
func (s *Suite) Ref() ast.PolicyRef {
	return ast.PolicyRef{PolicyID: s.PolicyID, Version: s.Version}
}

// List returns a summary of every test case in file order.
func (s *Suite) List() []Summary {
	out := make([]Summary, 0, len(s.Tests))
	for _, tc := range s.Tests {
		out = append(out, Summary{ID: tc.ID, Description: tc.Description, Verdict: tc.Expected.Verdict})
	}
	return out
}

// Get returns the test case with the given id, or nil.
func (s *Suite) Get(id string) *TestCase {
	for _, tc := range s.Tests {
		if tc.ID == id {
			return tc
		}
	}
	return nil
}

// IsSuiteFile reports whether path names a test suite file.
func IsSuiteFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), FileSuffix)
}

// Load reads and parses a suite file.
func Load(path string) (*Suite, error) {
	// #nosec G304 - suite paths come from the configured policy directory.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes a suite and checks it for structural problems. Unknown
// fields are rejected so a misspelled expectation cannot pass silently.
func Parse(data []byte, path string) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{File: path, Message: "invalid YAML", Cause: err}
	}
	s.SourceFile = path

	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Suite) validate() error {
	if s.PolicyID == "" {
		return &Error{File: s.SourceFile, Message: "policy_id must not be empty"}
	}
	if s.Version == "" {
		return &Error{File: s.SourceFile, Message: "version must not be empty"}
	}

	seen := make(map[string]bool, len(s.Tests))
	for i, tc := range s.Tests {
		if tc == nil || tc.ID == "" {
			return &Error{File: s.SourceFile, Message: fmt.Sprintf("tests[%d] has no id", i)}
		}
		if seen[tc.ID] {
			return &Error{File: s.SourceFile, TestID: tc.ID, Message: "duplicate test id"}
		}
		seen[tc.ID] = true

		if !tc.Expected.Verdict.IsValid() {
			return &Error{File: s.SourceFile, TestID: tc.ID,
				Message: fmt.Sprintf("unknown expected verdict %q", tc.Expected.Verdict)}
		}
		if tc.Now != "" {
			if _, err := temporal.ParseString(tc.Now); err != nil {
				return &Error{File: s.SourceFile, TestID: tc.ID, Message: "invalid now", Cause: err}
			}
		}
		if tc.Profile != nil {
			if err := normalize(*tc.Profile).Validate(); err != nil {
				return &Error{File: s.SourceFile, TestID: tc.ID, Message: "invalid profile", Cause: err}
			}
		}
	}
	return nil
}

// Request converts the test case into an engine request.
func (tc *TestCase) Request() (*engine.Request, error) {
	req := &engine.Request{Case: tc.Case, Params: tc.Params}
	if tc.Now != "" {
		now, err := temporal.ParseString(tc.Now)
		if err != nil {
			return nil, fmt.Errorf("test %s: invalid now: %w", tc.ID, err)
		}
		req.Now = &now
	}
	if tc.Profile != nil {
		p := normalize(*tc.Profile)
		req.Profile = &p
	}
	return req, nil
}

// normalize fills the parts of a profile a suite author may leave out.
func normalize(p engine.Profile) engine.Profile {
	def := engine.DefaultProfile()
	if len(p.EvaluateTypes) == 0 {
		p.EvaluateTypes = def.EvaluateTypes
	}
	if p.MissingDataBehavior == "" {
		p.MissingDataBehavior = def.MissingDataBehavior
	}
	if p.Name == "" {
		p.Name = "test"
	}
	return p
}

// Error is a problem in a suite file.
type Error struct {
	File    string
	TestID  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("suite")
	if e.File != "" {
		sb.WriteString(fmt.Sprintf(" %q", e.File))
	}
	if e.TestID != "" {
		sb.WriteString(fmt.Sprintf(" test %q", e.TestID))
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	return sb.String()
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrUnknownTest is returned when a run names a test id the suite lacks.
var ErrUnknownTest = errors.New("unknown test id")
