package ast

// StatementType is the closed set of BDL statement kinds.
type StatementType string

const (
	StatementDefine  StatementType = "DEFINE"
	StatementRequire StatementType = "REQUIRE"
	StatementAllow   StatementType = "ALLOW"
	StatementForbid  StatementType = "FORBID"
	StatementLimit   StatementType = "LIMIT"
	StatementRoute   StatementType = "ROUTE"
	StatementTag     StatementType = "TAG"
)

// AllStatementTypes lists every statement type in declaration order of the grammar.
var AllStatementTypes = []StatementType{
	StatementDefine,
	StatementRequire,
	StatementAllow,
	StatementForbid,
	StatementLimit,
	StatementRoute,
	StatementTag,
}

// IsValid returns true if the type is one of the closed set.
func (t StatementType) IsValid() bool {
	for _, v := range AllStatementTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Verdict is the closed set of decision results.
type Verdict string

const (
	VerdictCompliant    Verdict = "compliant"
	VerdictNonCompliant Verdict = "non_compliant"
	VerdictNeedsInfo    Verdict = "needs_info"
	VerdictNeedsReview  Verdict = "needs_review"
	VerdictNoChange     Verdict = "no_change"
)

// AllVerdicts lists the verdict values.
var AllVerdicts = []Verdict{
	VerdictCompliant,
	VerdictNonCompliant,
	VerdictNeedsInfo,
	VerdictNeedsReview,
	VerdictNoChange,
}

// IsValid returns true if the verdict is one of the closed set.
func (v Verdict) IsValid() bool {
	for _, x := range AllVerdicts {
		if x == v {
			return true
		}
	}
	return false
}

// Bucket names one of the four outcome slots of a statement.
type Bucket string

const (
	BucketApply     Bucket = "apply"
	BucketViolation Bucket = "violation"
	BucketMissing   Bucket = "missing"
	BucketError     Bucket = "error"
)

// Outcome is what a statement contributes when it fires into a bucket.
type Outcome struct {
	Verdict    Verdict `json:"verdict"`
	ReasonCode string  `json:"reason_code,omitempty"`
	Severity   string  `json:"severity,omitempty"`
	Override   bool    `json:"override,omitempty"`
	Halt       bool    `json:"halt,omitempty"`
}

// Outcomes holds the four optional outcome slots.
type Outcomes struct {
	Apply     *Outcome
	Violation *Outcome
	Missing   *Outcome
	Error     *Outcome
}

// Get returns the outcome declared for a bucket, or nil.
func (o Outcomes) Get(b Bucket) *Outcome {
	switch b {
	case BucketApply:
		return o.Apply
	case BucketViolation:
		return o.Violation
	case BucketMissing:
		return o.Missing
	case BucketError:
		return o.Error
	}
	return nil
}

// Count returns the number of populated slots.
func (o Outcomes) Count() int {
	n := 0
	for _, out := range []*Outcome{o.Apply, o.Violation, o.Missing, o.Error} {
		if out != nil {
			n++
		}
	}
	return n
}

// Statement is one typed rule of a document.
type Statement struct {
	ID          string
	Type        StatementType
	Priority    int
	Description string
	AppliesWhen *Predicate // nil means always true
	Rule        *Rule
	Outcomes    Outcomes
	Citations   []string
	Override    bool                   // Replaces an inherited statement with the same id
	Metadata    map[string]interface{} // Compiler-only, ignored at runtime

	// Origin is the document that contributed the statement to the effective set.
	Origin   PolicyRef
	Location Location
}

// HasOverrideOutcome returns true if any outcome slot carries override:true.
func (s *Statement) HasOverrideOutcome() bool {
	for _, out := range []*Outcome{s.Outcomes.Apply, s.Outcomes.Violation, s.Outcomes.Missing, s.Outcomes.Error} {
		if out != nil && out.Override {
			return true
		}
	}
	return false
}

// Rule is the type-specific body of a statement. Only the fields that belong
// to the statement's type are populated.
type Rule struct {
	// DEFINE
	Set []*Assignment

	// REQUIRE
	RequireFields   []string
	RequireEvidence []string

	// ALLOW, FORBID, LIMIT
	Field string

	// ALLOW, FORBID
	Values []*Value

	// LIMIT
	Op    Operator
	Value *Value

	// ROUTE
	To       string
	SLAHours *float64

	// TAG
	Add []string

	Location Location
}

// Assignment writes a resolved value into the derived context.
type Assignment struct {
	Target   string
	Value    *Value
	Location Location
}
