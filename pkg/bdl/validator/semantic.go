package validator

import (
	"fmt"

	"mercator-hq/bdl/pkg/bdl/ast"
	bdlErrors "mercator-hq/bdl/pkg/bdl/errors"
	"mercator-hq/bdl/pkg/bdl/types"
)

// SemanticValidator checks types and references.
type SemanticValidator struct{}

// NewSemanticValidator creates a semantic validator.
func NewSemanticValidator() *SemanticValidator {
	return &SemanticValidator{}
}

// checkTypes verifies param defaults and literal operand types.
func (v *SemanticValidator) checkTypes(doc *ast.Document) *bdlErrors.ErrorList {
	errs := bdlErrors.NewErrorList()

	for _, p := range doc.Params {
		if !p.HasDefault || !p.Type.IsValid() {
			continue
		}
		if _, err := types.Conform(p.Type, p.Default); err != nil {
			errs.AddError(bdlErrors.ErrorTypeSemantic,
				fmt.Sprintf("default of param '%s' does not match type %s: %v", p.Name, p.Type, err), p.Location)
		}
	}

	_ = ast.Walk(doc, ast.FuncVisitor{
		Predicate: func(p *ast.Predicate) error {
			if p.Kind == ast.PredicateComparison && p.Op.IsOrdering() && p.Value.IsLiteral() {
				if _, ok := types.Number(p.Value.Literal); !ok {
					errs.AddError(bdlErrors.ErrorTypeSemantic,
						fmt.Sprintf("'%s' requires a numeric operand, got %s", p.Op, p.Value), p.Location)
				}
			}
			return nil
		},
		Value: func(val *ast.Value) error {
			if val.Kind != ast.ValueArithmetic {
				return nil
			}
			for _, o := range val.Operands {
				if !o.IsLiteral() {
					continue
				}
				if _, ok := types.Number(o.Literal); !ok {
					errs.AddError(bdlErrors.ErrorTypeSemantic,
						fmt.Sprintf("%s operand %s is not a number", val.Arith, o), o.Location)
				}
			}
			return nil
		},
	})
	return errs
}

// CheckReferences verifies that every {param} reference names a declared
// param and every lookup names a declared table with the right key arity.
func (v *SemanticValidator) CheckReferences(doc *ast.Document) *bdlErrors.ErrorList {
	errs := bdlErrors.NewErrorList()

	declared := make([]string, 0, len(doc.Params))
	for _, p := range doc.Params {
		declared = append(declared, p.Name)
	}
	tableIDs := make([]string, 0, len(doc.Tables))
	for _, t := range doc.Tables {
		tableIDs = append(tableIDs, t.ID)
	}

	var current *ast.Statement
	_ = ast.Walk(doc, ast.FuncVisitor{
		Statement: func(s *ast.Statement) error {
			current = s
			return nil
		},
		Value: func(val *ast.Value) error {
			switch val.Kind {
			case ast.ValueParam:
				if doc.GetParam(val.Param) == nil {
					errs.AddErrorWithSuggestion(bdlErrors.ErrorTypeSemantic,
						fmt.Sprintf("statement '%s' references undeclared param '%s'", current.ID, val.Param),
						val.Location, bdlErrors.Suggest(val.Param, declared))
				}
			case ast.ValueLookup:
				table := doc.GetTable(val.Table)
				if table == nil {
					errs.AddErrorWithSuggestion(bdlErrors.ErrorTypeSemantic,
						fmt.Sprintf("statement '%s' looks up undeclared table '%s'", current.ID, val.Table),
						val.Location, bdlErrors.Suggest(val.Table, tableIDs))
					return nil
				}
				if len(val.Keys) != len(table.KeyColumns) {
					errs.AddError(bdlErrors.ErrorTypeSemantic,
						fmt.Sprintf("statement '%s': lookup on '%s' passes %d key(s), table declares %d",
							current.ID, val.Table, len(val.Keys), len(table.KeyColumns)),
						val.Location)
				}
			}
			return nil
		},
	})
	return errs
}
