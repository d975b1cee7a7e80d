package ast

// Visitor is called for every predicate and value reachable from a document.
// Returning an error stops the walk.
type Visitor interface {
	VisitStatement(*Statement) error
	VisitPredicate(*Predicate) error
	VisitValue(*Value) error
}

// Walk traverses every statement of the document in declaration order.
func Walk(doc *Document, visitor Visitor) error {
	for _, stmt := range doc.Statements {
		if err := WalkStatement(stmt, visitor); err != nil {
			return err
		}
	}
	return nil
}

// WalkStatement traverses the predicate and rule values of one statement.
func WalkStatement(stmt *Statement, visitor Visitor) error {
	if err := visitor.VisitStatement(stmt); err != nil {
		return err
	}
	if stmt.AppliesWhen != nil {
		if err := WalkPredicate(stmt.AppliesWhen, visitor); err != nil {
			return err
		}
	}
	if stmt.Rule == nil {
		return nil
	}
	for _, a := range stmt.Rule.Set {
		if err := WalkValue(a.Value, visitor); err != nil {
			return err
		}
	}
	for _, v := range stmt.Rule.Values {
		if err := WalkValue(v, visitor); err != nil {
			return err
		}
	}
	return WalkValue(stmt.Rule.Value, visitor)
}

// WalkPredicate traverses a predicate tree depth-first.
func WalkPredicate(p *Predicate, visitor Visitor) error {
	if p == nil {
		return nil
	}
	if err := visitor.VisitPredicate(p); err != nil {
		return err
	}
	for _, c := range p.Children {
		if err := WalkPredicate(c, visitor); err != nil {
			return err
		}
	}
	if err := WalkPredicate(p.Operand, visitor); err != nil {
		return err
	}
	return WalkValue(p.Value, visitor)
}

// WalkValue traverses a value tree depth-first.
func WalkValue(v *Value, visitor Visitor) error {
	if v == nil {
		return nil
	}
	if err := visitor.VisitValue(v); err != nil {
		return err
	}
	for _, o := range v.Operands {
		if err := WalkValue(o, visitor); err != nil {
			return err
		}
	}
	return nil
}

// FuncVisitor adapts plain functions to the Visitor interface.
// Nil functions are skipped.
type FuncVisitor struct {
	Statement func(*Statement) error
	Predicate func(*Predicate) error
	Value     func(*Value) error
}

// VisitStatement implements Visitor.
func (f FuncVisitor) VisitStatement(s *Statement) error {
	if f.Statement == nil {
		return nil
	}
	return f.Statement(s)
}

// VisitPredicate implements Visitor.
func (f FuncVisitor) VisitPredicate(p *Predicate) error {
	if f.Predicate == nil {
		return nil
	}
	return f.Predicate(p)
}

// VisitValue implements Visitor.
func (f FuncVisitor) VisitValue(v *Value) error {
	if f.Value == nil {
		return nil
	}
	return f.Value(v)
}
