package composer

import (
	"fmt"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// merge lays child over an already effective base. Neither input is
// modified; statements, params and tables are shared by pointer since they
// are immutable once loaded.
func merge(base, child *ast.Document, chain []ast.PolicyRef) (*ast.Document, error) {
	ref := child.Ref()
	fail := func(kind ErrorKind, format string, args ...interface{}) error {
		return &CompositionError{Ref: ref, Chain: chain, Kind: kind, Message: fmt.Sprintf(format, args...)}
	}

	eff := &ast.Document{
		PolicyID:     child.PolicyID,
		Version:      child.Version,
		Title:        firstNonEmpty(child.Title, base.Title),
		Description:  firstNonEmpty(child.Description, base.Description),
		Effective:    child.Effective,
		Jurisdiction: firstNonEmpty(child.Jurisdiction, base.Jurisdiction),
		Defaults:     mergeDefaults(base.Defaults, child.Defaults),
		Extends:      child.Extends,
		Metadata:     child.Metadata,
		SourceFile:   child.SourceFile,
		Location:     child.Location,
	}
	eff.Chain = append(append([]ast.PolicyRef{}, base.Chain...), ref)

	// params: union, redeclaration is never an override
	eff.Params = append([]*ast.ParamDefinition{}, base.Params...)
	for _, p := range child.Params {
		if prev := base.GetParam(p.Name); prev != nil {
			return nil, fail(KindParamRedeclared, "param '%s' is already declared by %s", p.Name, prev.Origin)
		}
		eff.Params = append(eff.Params, p)
	}

	eff.Tables = append([]*ast.TableDefinition{}, base.Tables...)
	for _, t := range child.Tables {
		if prev := base.GetTable(t.ID); prev != nil {
			return nil, fail(KindTableRedeclared, "table '%s' is already declared by %s", t.ID, prev.Origin)
		}
		eff.Tables = append(eff.Tables, t)
	}

	// statements: an inherited statement keeps its position when overridden
	eff.Statements = append([]*ast.Statement{}, base.Statements...)
	index := make(map[string]int, len(eff.Statements))
	for i, s := range eff.Statements {
		index[s.ID] = i
	}
	for _, s := range child.Statements {
		pos, exists := index[s.ID]
		switch {
		case !exists:
			index[s.ID] = len(eff.Statements)
			eff.Statements = append(eff.Statements, s)
		case s.Override:
			eff.Statements[pos] = s
		default:
			return nil, fail(KindAmbiguousOverride,
				"statement '%s' is inherited from %s; mark it override: true to replace it",
				s.ID, eff.Statements[pos].Origin)
		}
	}
	return eff, nil
}

// mergeDefaults overrides base defaults field by field.
func mergeDefaults(base, child ast.Defaults) ast.Defaults {
	out := base
	if child.OnMissing != nil {
		out.OnMissing = child.OnMissing
	}
	if child.OnError != nil {
		out.OnError = child.OnError
	}
	if child.OnApply != nil {
		out.OnApply = child.OnApply
	}
	if child.OnViolation != nil {
		out.OnViolation = child.OnViolation
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
