package validator

import (
	"mercator-hq/bdl/pkg/bdl/ast"
	bdlErrors "mercator-hq/bdl/pkg/bdl/errors"
)

// Validator runs the structural and semantic passes over a document.
type Validator struct {
	structural *StructuralValidator
	semantic   *SemanticValidator
}

// NewValidator creates a validator with default depth bounds.
func NewValidator() *Validator {
	return &Validator{
		structural: NewStructuralValidator(),
		semantic:   NewSemanticValidator(),
	}
}

// WithMaxDepth overrides the predicate and value nesting bounds.
func (v *Validator) WithMaxDepth(predicate, value int) *Validator {
	v.structural.maxPredicateDepth = predicate
	v.structural.maxValueDepth = value
	return v
}

// Check returns every finding for the document, warnings included.
//
// References to params and tables are only resolved when the document does
// not extend another one; composite documents are checked again by
// CheckReferences once their ancestors have been merged in.
func (v *Validator) Check(doc *ast.Document) *bdlErrors.ErrorList {
	findings := v.structural.Check(doc)
	if findings.HasErrors() {
		return findings
	}
	findings.Merge(v.semantic.checkTypes(doc))
	if !doc.IsComposite() {
		findings.Merge(v.semantic.CheckReferences(doc))
	}
	return findings
}

// Validate returns the ValidationError for the document, or nil.
func (v *Validator) Validate(doc *ast.Document) error {
	return v.Check(doc).ToError()
}

// ValidateReferences checks param and table references of an effective
// (post-composition) document.
func (v *Validator) ValidateReferences(doc *ast.Document) error {
	return v.semantic.CheckReferences(doc).ToError()
}
