package parser

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/bdl/pkg/bdl/ast"
	bdlErrors "mercator-hq/bdl/pkg/bdl/errors"
	"mercator-hq/bdl/pkg/bdl/temporal"
)

var (
	documentFields  = []string{"policy_id", "version", "title", "description", "effective", "jurisdiction", "defaults", "params", "extends", "tables", "statements", "metadata"}
	statementFields = []string{"id", "type", "priority", "description", "applies_when", "rule", "outcomes", "citations", "override", "metadata"}
	outcomeFields   = []string{"verdict", "reason_code", "severity", "override", "halt"}
	defaultsFields  = []string{"on_missing", "on_error", "on_apply", "on_violation"}
	outcomeSlots    = []string{"apply", "violation", "missing", "error"}
	paramFields     = []string{"name", "type", "required", "default", "description"}
	tableFields     = []string{"id", "key_columns", "value_column", "rows"}
	refFields       = []string{"policy_id", "version"}
	windowFields    = []string{"from", "to"}
	leafFields      = []string{"field", "op", "value", "duration"}
	valueForms      = []string{"literal", "field", "param", "lookup", "add", "sub", "mul", "div", "now"}
	lookupFields    = []string{"table", "keys"}
	durationFields  = []string{"amount", "unit"}

	// ruleFields lists the rule body keys permitted for each statement type.
	ruleFields = map[ast.StatementType][]string{
		ast.StatementDefine:  {"set"},
		ast.StatementRequire: {"require_fields", "require_evidence"},
		ast.StatementAllow:   {"field", "values"},
		ast.StatementForbid:  {"field", "values"},
		ast.StatementLimit:   {"field", "op", "value"},
		ast.StatementRoute:   {"to", "sla_hours"},
		ast.StatementTag:     {"add"},
	}
)

// builder turns YAML nodes into an ast.Document, collecting every
// structural problem into an ErrorList instead of stopping at the first.
type builder struct {
	file              string
	errors            *bdlErrors.ErrorList
	maxPredicateDepth int
	maxValueDepth     int
}

func newBuilder(file string, maxPredicateDepth, maxValueDepth int) *builder {
	return &builder{
		file:              file,
		errors:            bdlErrors.NewErrorList(),
		maxPredicateDepth: maxPredicateDepth,
		maxValueDepth:     maxValueDepth,
	}
}

func (b *builder) loc(node *yaml.Node) ast.Location {
	return location(node, b.file)
}

func (b *builder) errorf(node *yaml.Node, format string, args ...interface{}) {
	b.errors.AddError(bdlErrors.ErrorTypeStructural, fmt.Sprintf(format, args...), b.loc(node))
}

// checkFields reports keys of a mapping that are not in allowed.
func (b *builder) checkFields(node *yaml.Node, what string, allowed []string) bool {
	if node == nil || node.Kind != yaml.MappingNode {
		b.errorf(node, "%s must be a mapping", what)
		return false
	}
	ok := true
	for _, p := range mappingPairs(node) {
		if !containsString(allowed, p.key) {
			b.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural,
				fmt.Sprintf("unknown field '%s' in %s", p.key, what),
				b.loc(p.keyN), bdlErrors.Suggest(p.key, allowed))
			ok = false
		}
	}
	return ok
}

func (b *builder) buildDocument(root *yaml.Node) *ast.Document {
	doc := &ast.Document{SourceFile: b.file, Location: b.loc(root)}
	if !b.checkFields(root, "document", documentFields) && (root == nil || root.Kind != yaml.MappingNode) {
		return doc
	}

	for _, p := range mappingPairs(root) {
		switch p.key {
		case "policy_id":
			doc.PolicyID = b.str(p.value, "policy_id")
		case "version":
			doc.Version = b.str(p.value, "version")
		case "title":
			doc.Title = b.str(p.value, "title")
		case "description":
			doc.Description = b.str(p.value, "description")
		case "jurisdiction":
			doc.Jurisdiction = b.str(p.value, "jurisdiction")
		case "effective":
			doc.Effective = b.buildWindow(p.value)
		case "defaults":
			doc.Defaults = b.buildDefaults(p.value)
		case "extends":
			doc.Extends = b.buildRef(p.value)
		case "params":
			doc.Params = b.buildParams(p.value)
		case "tables":
			doc.Tables = b.buildTables(p.value)
		case "statements":
			doc.Statements = b.buildStatements(p.value)
		case "metadata":
			doc.Metadata = b.plainMap(p.value, "metadata")
		}
	}

	if lookup(root, "policy_id") == nil {
		b.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural, "missing required field 'policy_id'",
			b.loc(root), bdlErrors.SuggestMissingField("policy_id", "expense-policy"))
	}
	if lookup(root, "version") == nil {
		b.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural, "missing required field 'version'",
			b.loc(root), bdlErrors.SuggestMissingField("version", "1.0.0"))
	}
	if lookup(root, "statements") == nil {
		b.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural, "missing required field 'statements'",
			b.loc(root), bdlErrors.SuggestMissingField("statements", "[]"))
	}

	ref := doc.Ref()
	doc.Chain = []ast.PolicyRef{ref}
	for _, s := range doc.Statements {
		s.Origin = ref
	}
	for _, p := range doc.Params {
		p.Origin = ref
	}
	for _, t := range doc.Tables {
		t.Origin = ref
	}
	return doc
}

func (b *builder) str(node *yaml.Node, what string) string {
	if node.Kind != yaml.ScalarNode || node.ShortTag() == "!!null" {
		b.errorf(node, "%s must be a string", what)
		return ""
	}
	return node.Value
}

func (b *builder) boolean(node *yaml.Node, what string) bool {
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!bool" {
		b.errorf(node, "%s must be a boolean", what)
		return false
	}
	v, _ := strconv.ParseBool(node.Value)
	return v
}

func (b *builder) integer(node *yaml.Node, what string) int {
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!int" {
		b.errorf(node, "%s must be an integer", what)
		return 0
	}
	var i int
	if err := node.Decode(&i); err != nil {
		b.errorf(node, "%s: %v", what, err)
	}
	return i
}

func (b *builder) strList(node *yaml.Node, what string) []string {
	if node.Kind != yaml.SequenceNode {
		b.errorf(node, "%s must be a list of strings", what)
		return nil
	}
	out := make([]string, 0, len(node.Content))
	for _, c := range node.Content {
		if c.Kind != yaml.ScalarNode {
			b.errorf(c, "%s entries must be strings", what)
			continue
		}
		out = append(out, c.Value)
	}
	return out
}

func (b *builder) plainMap(node *yaml.Node, what string) map[string]interface{} {
	v, err := plainValue(node)
	if err != nil {
		b.errorf(node, "%s: %v", what, err)
		return nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		b.errorf(node, "%s must be a mapping", what)
		return nil
	}
	return m
}

func (b *builder) buildWindow(node *yaml.Node) ast.EffectiveWindow {
	var w ast.EffectiveWindow
	if !b.checkFields(node, "effective", windowFields) {
		return w
	}
	for _, p := range mappingPairs(node) {
		if p.value.ShortTag() == "!!null" {
			continue
		}
		t, err := temporal.ParseString(p.value.Value)
		if err != nil {
			b.errorf(p.value, "effective.%s: %v", p.key, err)
			continue
		}
		if p.key == "from" {
			w.From = t
		} else {
			w.To = t
		}
	}
	return w
}

func (b *builder) buildRef(node *yaml.Node) *ast.PolicyRef {
	if !b.checkFields(node, "extends", refFields) {
		return nil
	}
	ref := &ast.PolicyRef{}
	if n := lookup(node, "policy_id"); n != nil {
		ref.PolicyID = b.str(n, "extends.policy_id")
	}
	if n := lookup(node, "version"); n != nil {
		ref.Version = b.str(n, "extends.version")
	}
	if ref.PolicyID == "" || ref.Version == "" {
		b.errorf(node, "extends requires both policy_id and an exact version")
	}
	return ref
}

func (b *builder) buildDefaults(node *yaml.Node) ast.Defaults {
	var d ast.Defaults
	if !b.checkFields(node, "defaults", defaultsFields) {
		return d
	}
	for _, p := range mappingPairs(node) {
		out := b.buildOutcome(p.value, "defaults."+p.key)
		switch p.key {
		case "on_missing":
			d.OnMissing = out
		case "on_error":
			d.OnError = out
		case "on_apply":
			d.OnApply = out
		case "on_violation":
			d.OnViolation = out
		}
	}
	return d
}

// buildOutcome accepts a full outcome mapping or a bare verdict string.
func (b *builder) buildOutcome(node *yaml.Node, what string) *ast.Outcome {
	if node.Kind == yaml.ScalarNode {
		return &ast.Outcome{Verdict: b.verdict(node, what)}
	}
	if !b.checkFields(node, what, outcomeFields) {
		return nil
	}
	out := &ast.Outcome{}
	for _, p := range mappingPairs(node) {
		switch p.key {
		case "verdict":
			out.Verdict = b.verdict(p.value, what+".verdict")
		case "reason_code":
			out.ReasonCode = b.str(p.value, what+".reason_code")
		case "severity":
			out.Severity = b.str(p.value, what+".severity")
		case "override":
			out.Override = b.boolean(p.value, what+".override")
		case "halt":
			out.Halt = b.boolean(p.value, what+".halt")
		}
	}
	if lookup(node, "verdict") == nil {
		b.errorf(node, "%s is missing 'verdict'", what)
	}
	return out
}

func (b *builder) verdict(node *yaml.Node, what string) ast.Verdict {
	v := ast.Verdict(b.str(node, what))
	if v != "" && !v.IsValid() {
		valid := make([]string, len(ast.AllVerdicts))
		for i, x := range ast.AllVerdicts {
			valid[i] = string(x)
		}
		b.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural,
			fmt.Sprintf("unknown verdict '%s' in %s", v, what), b.loc(node), bdlErrors.Suggest(string(v), valid))
	}
	return v
}

func (b *builder) buildParams(node *yaml.Node) []*ast.ParamDefinition {
	if node.Kind != yaml.SequenceNode {
		b.errorf(node, "params must be a list")
		return nil
	}
	params := make([]*ast.ParamDefinition, 0, len(node.Content))
	for _, n := range node.Content {
		if !b.checkFields(n, "param", paramFields) {
			continue
		}
		p := &ast.ParamDefinition{Location: b.loc(n)}
		for _, kv := range mappingPairs(n) {
			switch kv.key {
			case "name":
				p.Name = b.str(kv.value, "param.name")
			case "type":
				p.Type = ast.ParamType(b.str(kv.value, "param.type"))
			case "required":
				p.Required = b.boolean(kv.value, "param.required")
			case "default":
				v, err := plainValue(kv.value)
				if err != nil {
					b.errorf(kv.value, "param.default: %v", err)
				}
				p.Default = v
				p.HasDefault = true
			case "description":
				p.Description = b.str(kv.value, "param.description")
			}
		}
		params = append(params, p)
	}
	return params
}

func (b *builder) buildTables(node *yaml.Node) []*ast.TableDefinition {
	if node.Kind != yaml.SequenceNode {
		b.errorf(node, "tables must be a list")
		return nil
	}
	tables := make([]*ast.TableDefinition, 0, len(node.Content))
	for _, n := range node.Content {
		if !b.checkFields(n, "table", tableFields) {
			continue
		}
		t := &ast.TableDefinition{Location: b.loc(n)}
		for _, kv := range mappingPairs(n) {
			switch kv.key {
			case "id":
				t.ID = b.str(kv.value, "table.id")
			case "key_columns":
				t.KeyColumns = b.strList(kv.value, "table.key_columns")
			case "value_column":
				t.ValueColumn = b.str(kv.value, "table.value_column")
			case "rows":
				if kv.value.Kind != yaml.SequenceNode {
					b.errorf(kv.value, "table.rows must be a list")
					continue
				}
				for _, r := range kv.value.Content {
					if row := b.plainMap(r, "table row"); row != nil {
						t.Rows = append(t.Rows, row)
					}
				}
			}
		}
		tables = append(tables, t)
	}
	return tables
}

func (b *builder) buildStatements(node *yaml.Node) []*ast.Statement {
	if node.Kind != yaml.SequenceNode {
		b.errorf(node, "statements must be a list")
		return nil
	}
	stmts := make([]*ast.Statement, 0, len(node.Content))
	for _, n := range node.Content {
		if s := b.buildStatement(n); s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

func (b *builder) buildStatement(node *yaml.Node) *ast.Statement {
	if !b.checkFields(node, "statement", statementFields) && node.Kind != yaml.MappingNode {
		return nil
	}
	s := &ast.Statement{Location: b.loc(node)}

	// type first: the rule body shape depends on it
	if n := lookup(node, "type"); n != nil {
		s.Type = ast.StatementType(b.str(n, "statement.type"))
		if s.Type != "" && !s.Type.IsValid() {
			valid := make([]string, len(ast.AllStatementTypes))
			for i, t := range ast.AllStatementTypes {
				valid[i] = string(t)
			}
			b.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural,
				fmt.Sprintf("unknown statement type '%s'", s.Type), b.loc(n),
				bdlErrors.Suggest(strings.ToUpper(string(s.Type)), valid))
		}
	}

	for _, p := range mappingPairs(node) {
		switch p.key {
		case "id":
			s.ID = b.str(p.value, "statement.id")
		case "priority":
			s.Priority = b.integer(p.value, "statement.priority")
		case "description":
			s.Description = b.str(p.value, "statement.description")
		case "applies_when":
			s.AppliesWhen = b.buildPredicate(p.value, 1)
		case "rule":
			if s.Type.IsValid() {
				s.Rule = b.buildRule(s.Type, p.value)
			}
		case "outcomes":
			s.Outcomes = b.buildOutcomes(p.value)
		case "citations":
			s.Citations = b.strList(p.value, "statement.citations")
		case "override":
			s.Override = b.boolean(p.value, "statement.override")
		case "metadata":
			s.Metadata = b.plainMap(p.value, "statement.metadata")
		}
	}
	return s
}

func (b *builder) buildOutcomes(node *yaml.Node) ast.Outcomes {
	var o ast.Outcomes
	if !b.checkFields(node, "outcomes", outcomeSlots) {
		return o
	}
	for _, p := range mappingPairs(node) {
		out := b.buildOutcome(p.value, "outcomes."+p.key)
		switch p.key {
		case "apply":
			o.Apply = out
		case "violation":
			o.Violation = out
		case "missing":
			o.Missing = out
		case "error":
			o.Error = out
		}
	}
	return o
}

func (b *builder) buildRule(t ast.StatementType, node *yaml.Node) *ast.Rule {
	if !b.checkFields(node, fmt.Sprintf("%s rule", t), ruleFields[t]) && node.Kind != yaml.MappingNode {
		return nil
	}
	r := &ast.Rule{Location: b.loc(node)}
	for _, p := range mappingPairs(node) {
		switch p.key {
		case "set":
			r.Set = b.buildAssignments(p.value)
		case "require_fields":
			r.RequireFields = b.strList(p.value, "rule.require_fields")
		case "require_evidence":
			r.RequireEvidence = b.strList(p.value, "rule.require_evidence")
		case "field":
			r.Field = b.str(p.value, "rule.field")
		case "values":
			if p.value.Kind == yaml.SequenceNode {
				for _, c := range p.value.Content {
					if v := b.buildValue(c, 1); v != nil {
						r.Values = append(r.Values, v)
					}
				}
			} else if v := b.buildValue(p.value, 1); v != nil {
				r.Values = []*ast.Value{v}
			}
		case "op":
			r.Op = ast.Operator(b.str(p.value, "rule.op"))
		case "value":
			r.Value = b.buildValue(p.value, 1)
		case "to":
			r.To = b.str(p.value, "rule.to")
		case "sla_hours":
			v, err := scalarValue(p.value)
			f, ok := v.(float64)
			if err != nil || !ok {
				b.errorf(p.value, "rule.sla_hours must be a number")
				continue
			}
			r.SLAHours = &f
		case "add":
			r.Add = b.strList(p.value, "rule.add")
		}
	}
	return r
}

func (b *builder) buildAssignments(node *yaml.Node) []*ast.Assignment {
	if node.Kind != yaml.SequenceNode {
		b.errorf(node, "rule.set must be a list")
		return nil
	}
	var out []*ast.Assignment
	for _, n := range node.Content {
		if !b.checkFields(n, "set entry", []string{"target", "value"}) {
			continue
		}
		a := &ast.Assignment{Location: b.loc(n)}
		if t := lookup(n, "target"); t != nil {
			a.Target = b.str(t, "set.target")
		}
		if v := lookup(n, "value"); v != nil {
			a.Value = b.buildValue(v, 1)
		}
		out = append(out, a)
	}
	return out
}

func (b *builder) buildPredicate(node *yaml.Node, depth int) *ast.Predicate {
	if depth > b.maxPredicateDepth {
		b.errors.AddError(bdlErrors.ErrorTypeLimit,
			fmt.Sprintf("predicate nesting exceeds maximum depth %d", b.maxPredicateDepth), b.loc(node))
		return nil
	}
	if node.Kind != yaml.MappingNode {
		b.errorf(node, "predicate must be a mapping")
		return nil
	}
	pred := &ast.Predicate{Location: b.loc(node)}

	if n := firstOf(node, "all", "any", "not"); n != nil {
		if len(node.Content) != 2 {
			b.errorf(node, "combinator must be the only key of its predicate")
			return nil
		}
		key := node.Content[0].Value
		pred.Kind = ast.PredicateKind(key)
		if key == "not" {
			pred.Operand = b.buildPredicate(n, depth+1)
			if pred.Operand == nil {
				return nil
			}
			return pred
		}
		if n.Kind != yaml.SequenceNode || len(n.Content) == 0 {
			b.errorf(n, "%s requires a non-empty list of predicates", key)
			return nil
		}
		for _, c := range n.Content {
			if child := b.buildPredicate(c, depth+1); child != nil {
				pred.Children = append(pred.Children, child)
			}
		}
		return pred
	}

	if !b.checkFields(node, "comparison", leafFields) {
		return nil
	}
	for _, p := range mappingPairs(node) {
		switch p.key {
		case "field":
			pred.Field = b.str(p.value, "comparison.field")
		case "op":
			pred.Op = ast.Operator(b.str(p.value, "comparison.op"))
		case "value":
			pred.Value = b.buildValue(p.value, 1)
		case "duration":
			pred.Duration = b.buildDuration(p.value)
		}
	}

	switch {
	case pred.Op.IsComparison():
		pred.Kind = ast.PredicateComparison
	case pred.Op.IsTemporal():
		pred.Kind = ast.PredicateTemporal
	default:
		all := append(append([]string{}, ast.ComparisonOperators...), ast.TemporalOperators...)
		b.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural,
			fmt.Sprintf("unknown operator '%s'", pred.Op), b.loc(node), bdlErrors.Suggest(string(pred.Op), all))
		return nil
	}
	return pred
}

func (b *builder) buildValue(node *yaml.Node, depth int) *ast.Value {
	if depth > b.maxValueDepth {
		b.errors.AddError(bdlErrors.ErrorTypeLimit,
			fmt.Sprintf("value nesting exceeds maximum depth %d", b.maxValueDepth), b.loc(node))
		return nil
	}
	loc := b.loc(node)

	switch node.Kind {
	case yaml.ScalarNode:
		v, err := scalarValue(node)
		if err != nil {
			b.errorf(node, "invalid literal: %v", err)
			return nil
		}
		return &ast.Value{Kind: ast.ValueLiteral, Literal: v, Location: loc}
	case yaml.SequenceNode:
		items := make([]interface{}, 0, len(node.Content))
		for _, c := range node.Content {
			if c.Kind != yaml.ScalarNode {
				b.errorf(c, "array literals may only contain scalars")
				return nil
			}
			v, err := scalarValue(c)
			if err != nil {
				b.errorf(c, "invalid literal: %v", err)
				return nil
			}
			items = append(items, v)
		}
		return &ast.Value{Kind: ast.ValueLiteral, Literal: items, Location: loc}
	case yaml.MappingNode:
	default:
		b.errorf(node, "unsupported value")
		return nil
	}

	pairs := mappingPairs(node)
	if len(pairs) != 1 {
		b.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural,
			"value mapping must have exactly one key", loc,
			"Use one of: "+strings.Join(valueForms, ", "))
		return nil
	}
	p := pairs[0]
	switch p.key {
	case "literal":
		v, err := plainValue(p.value)
		if err != nil {
			b.errorf(p.value, "invalid literal: %v", err)
			return nil
		}
		return &ast.Value{Kind: ast.ValueLiteral, Literal: v, Location: loc}
	case "field":
		return &ast.Value{Kind: ast.ValueField, Field: b.str(p.value, "field"), Location: loc}
	case "param":
		return &ast.Value{Kind: ast.ValueParam, Param: b.str(p.value, "param"), Location: loc}
	case "now":
		if !b.boolean(p.value, "now") {
			b.errorf(p.value, "now must be true")
			return nil
		}
		return &ast.Value{Kind: ast.ValueNow, Location: loc}
	case "lookup":
		if !b.checkFields(p.value, "lookup", lookupFields) {
			return nil
		}
		v := &ast.Value{Kind: ast.ValueLookup, Location: loc}
		if t := lookup(p.value, "table"); t != nil {
			v.Table = b.str(t, "lookup.table")
		}
		if k := lookup(p.value, "keys"); k != nil {
			v.Keys = b.strList(k, "lookup.keys")
		}
		return v
	case "add", "sub", "mul", "div":
		if p.value.Kind != yaml.SequenceNode || len(p.value.Content) < 2 {
			b.errorf(p.value, "%s requires a list of at least two operands", p.key)
			return nil
		}
		v := &ast.Value{Kind: ast.ValueArithmetic, Arith: ast.ArithOp(p.key), Location: loc}
		for _, c := range p.value.Content {
			operand := b.buildValue(c, depth+1)
			if operand == nil {
				return nil
			}
			v.Operands = append(v.Operands, operand)
		}
		return v
	}
	b.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural,
		fmt.Sprintf("unknown value form '%s'", p.key), b.loc(p.keyN), bdlErrors.Suggest(p.key, valueForms))
	return nil
}

// buildDuration accepts {amount, unit} or the shorthand "30 days".
func (b *builder) buildDuration(node *yaml.Node) *ast.Duration {
	d := &ast.Duration{}
	if node.Kind == yaml.ScalarNode {
		parts := strings.Fields(node.Value)
		if len(parts) != 2 {
			b.errorf(node, "duration must look like '30 days'")
			return nil
		}
		n, err := strconv.Atoi(parts[0])
		if err != nil {
			b.errorf(node, "duration amount must be an integer")
			return nil
		}
		d.Amount, d.Unit = n, ast.DurationUnit(parts[1])
	} else {
		if !b.checkFields(node, "duration", durationFields) {
			return nil
		}
		if n := lookup(node, "amount"); n != nil {
			d.Amount = b.integer(n, "duration.amount")
		}
		if n := lookup(node, "unit"); n != nil {
			d.Unit = ast.DurationUnit(b.str(n, "duration.unit"))
		}
	}
	if !containsString(ast.DurationUnits, string(d.Unit)) {
		b.errors.AddErrorWithSuggestion(bdlErrors.ErrorTypeStructural,
			fmt.Sprintf("unknown duration unit '%s'", d.Unit), b.loc(node), bdlErrors.Suggest(string(d.Unit), ast.DurationUnits))
		return nil
	}
	if d.Amount < 0 {
		b.errorf(node, "duration amount must not be negative")
		return nil
	}
	return d
}

// firstOf returns the value of the first of keys present in node.
func firstOf(node *yaml.Node, keys ...string) *yaml.Node {
	for _, k := range keys {
		if n := lookup(node, k); n != nil {
			return n
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
