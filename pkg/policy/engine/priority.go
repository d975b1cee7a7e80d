package engine

import (
	"fmt"
	"sort"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// Program is a document prepared for evaluation: DEFINE statements in
// document order, every other statement in evaluation order, and indexes
// over params and tables. A Program is immutable and safe for concurrent use.
type Program struct {
	doc     *ast.Document
	defines []*ast.Statement
	ordered []*ast.Statement

	// overrideAfter[i] is true when some statement after ordered[i] could
	// still replace a winner.
	overrideAfter []bool

	params map[string]*ast.ParamDefinition
	tables map[string]*ast.TableDefinition
}

// Compile prepares an effective document for evaluation. Documents that
// extend another must be composed first.
func Compile(doc *ast.Document) (*Program, error) {
	if doc == nil {
		return nil, fmt.Errorf("compile: document is nil")
	}
	if doc.IsComposite() && len(doc.Chain) < 2 {
		return nil, fmt.Errorf("compile %s: %w", doc.Ref(), ErrNotComposed)
	}

	p := &Program{
		doc:    doc,
		params: make(map[string]*ast.ParamDefinition, len(doc.Params)),
		tables: make(map[string]*ast.TableDefinition, len(doc.Tables)),
	}
	for _, param := range doc.Params {
		p.params[param.Name] = param
	}
	for _, t := range doc.Tables {
		p.tables[t.ID] = t
	}

	seen := make(map[string]bool, len(doc.Statements))
	for _, s := range doc.Statements {
		if seen[s.ID] {
			return nil, fmt.Errorf("compile %s: duplicate statement id %q", doc.Ref(), s.ID)
		}
		seen[s.ID] = true
		if s.Type == ast.StatementDefine {
			p.defines = append(p.defines, s)
		} else {
			p.ordered = append(p.ordered, s)
		}
	}
	SortStatementsByPriority(p.ordered)

	defaultsOverride := false
	for _, out := range []*ast.Outcome{doc.Defaults.OnApply, doc.Defaults.OnViolation, doc.Defaults.OnMissing, doc.Defaults.OnError} {
		if out != nil && out.Override {
			defaultsOverride = true
		}
	}
	p.overrideAfter = make([]bool, len(p.ordered))
	later := defaultsOverride
	for i := len(p.ordered) - 1; i >= 0; i-- {
		p.overrideAfter[i] = later
		if p.ordered[i].HasOverrideOutcome() {
			later = true
		}
	}
	return p, nil
}

// Document returns the effective document the program was compiled from.
func (p *Program) Document() *ast.Document {
	return p.doc
}

// Ref returns the reference of the compiled document.
func (p *Program) Ref() ast.PolicyRef {
	return p.doc.Ref()
}

// Statements returns the non-DEFINE statements in evaluation order.
func (p *Program) Statements() []*ast.Statement {
	return p.ordered
}

// SortStatementsByPriority orders statements by descending priority. The sort
// is stable, so equal priorities keep document order.
func SortStatementsByPriority(statements []*ast.Statement) {
	sort.SliceStable(statements, func(i, j int) bool {
		return statements[i].Priority > statements[j].Priority
	})
}
