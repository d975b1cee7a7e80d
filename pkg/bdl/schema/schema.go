package schema

import (
	"sort"
	"strings"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// Draft is the JSON Schema dialect of generated documents.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// DefaultEvidenceField is the Case path holding the evidence list.
const DefaultEvidenceField = "evidence"

// PolicySchema describes the input a policy version expects.
type PolicySchema struct {
	PolicyID string `json:"policy_id"`
	Version  string `json:"version"`

	// Case is a JSON Schema for the Case object.
	Case map[string]interface{} `json:"case"`

	// Params is a JSON Schema for the params object.
	Params map[string]interface{} `json:"params"`

	// Fields lists every Case path the policy reads, sorted by path.
	Fields []Field `json:"fields"`
}

// Field is one Case path read by a policy.
type Field struct {
	Path       string   `json:"path"`
	Types      []string `json:"types,omitempty"`
	Required   bool     `json:"required_by_rule,omitempty"`
	Statements []string `json:"statements"`
}

// Options tunes generation.
type Options struct {
	// EvidenceField is the Case path of the evidence list (default "evidence").
	EvidenceField string

	// StrictParams closes the params object to undeclared names.
	StrictParams bool
}

type fieldInfo struct {
	types      map[string]bool
	conflict   bool
	required   bool
	statements []string
}

type generator struct {
	opts    Options
	derived map[string]bool
	fields  map[string]*fieldInfo
	current string
}

// Generate builds the schema of an effective document. Paths written by
// DEFINE statements are derived values and are not part of the Case.
func Generate(doc *ast.Document, opts Options) *PolicySchema {
	if opts.EvidenceField == "" {
		opts.EvidenceField = DefaultEvidenceField
	}
	g := &generator{
		opts:    opts,
		derived: make(map[string]bool),
		fields:  make(map[string]*fieldInfo),
	}
	for _, s := range doc.Statements {
		if s.Type == ast.StatementDefine && s.Rule != nil {
			for _, a := range s.Rule.Set {
				g.derived[a.Target] = true
			}
		}
	}

	usesEvidence := false
	for _, s := range doc.Statements {
		g.current = s.ID
		g.predicate(s.AppliesWhen)
		if s.Rule == nil {
			continue
		}
		for _, a := range s.Rule.Set {
			g.value(a.Value, "")
		}
		for _, path := range s.Rule.RequireFields {
			if !g.isDerived(path) {
				g.touch(path, "").required = true
			}
		}
		if len(s.Rule.RequireEvidence) > 0 {
			usesEvidence = true
		}
		if s.Rule.Field != "" {
			hint := ""
			switch s.Type {
			case ast.StatementAllow, ast.StatementForbid:
				for i, v := range s.Rule.Values {
					if t := literalType(v); i == 0 {
						hint = t
					} else if t != hint {
						hint = ""
					}
					g.value(v, "")
				}
			case ast.StatementLimit:
				hint = operandType(s.Rule.Op, s.Rule.Value)
				g.value(s.Rule.Value, "")
			}
			g.field(s.Rule.Field, hint)
		}
	}

	out := &PolicySchema{
		PolicyID: doc.PolicyID,
		Version:  doc.Version,
		Params:   paramsSchema(doc, opts.StrictParams),
	}
	root := newObject()
	paths := make([]string, 0, len(g.fields))
	for p := range g.fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fi := g.fields[p]
		f := Field{Path: p, Required: fi.required, Statements: fi.statements}
		if !fi.conflict {
			for t := range fi.types {
				f.Types = append(f.Types, t)
			}
			sort.Strings(f.Types)
		}
		out.Fields = append(out.Fields, f)
		insert(root, strings.Split(p, "."), leaf(f))
	}
	if usesEvidence {
		insert(root, strings.Split(opts.EvidenceField, "."), evidenceSchema())
	}

	root["$schema"] = Draft
	root["$id"] = documentURL(doc.Ref(), "case")
	root["title"] = doc.Ref().String() + " case"
	out.Case = root
	return out
}

func (g *generator) touch(path, typ string) *fieldInfo {
	fi, ok := g.fields[path]
	if !ok {
		fi = &fieldInfo{types: make(map[string]bool)}
		g.fields[path] = fi
	}
	if n := len(fi.statements); n == 0 || fi.statements[n-1] != g.current {
		fi.statements = append(fi.statements, g.current)
	}
	if typ != "" {
		fi.types[typ] = true
		if len(fi.types) > 1 {
			fi.conflict = true
		}
	}
	return fi
}

func (g *generator) isDerived(path string) bool {
	for p := path; p != ""; {
		if g.derived[p] {
			return true
		}
		i := strings.LastIndexByte(p, '.')
		if i < 0 {
			break
		}
		p = p[:i]
	}
	return false
}

func (g *generator) field(path, typ string) {
	if path == "" || g.isDerived(path) {
		return
	}
	g.touch(path, typ)
}

func (g *generator) predicate(p *ast.Predicate) {
	if p == nil {
		return
	}
	switch p.Kind {
	case ast.PredicateAll, ast.PredicateAny:
		for _, c := range p.Children {
			g.predicate(c)
		}
	case ast.PredicateNot:
		g.predicate(p.Operand)
	case ast.PredicateTemporal:
		g.field(p.Field, "string")
		g.value(p.Value, "string")
	case ast.PredicateComparison:
		g.field(p.Field, operandType(p.Op, p.Value))
		if p.Op == ast.OpIn || p.Op == ast.OpContains {
			g.value(p.Value, "")
		} else {
			g.value(p.Value, literalType(p.Value))
		}
	}
}

// value records field references inside an operand. hint is the type the
// surrounding expression implies for a bare field reference.
func (g *generator) value(v *ast.Value, hint string) {
	if v == nil {
		return
	}
	switch v.Kind {
	case ast.ValueField:
		g.field(v.Field, hint)
	case ast.ValueLookup:
		for _, k := range v.Keys {
			g.field(k, "")
		}
	case ast.ValueArithmetic:
		for _, o := range v.Operands {
			g.value(o, "number")
		}
	}
}

// operandType infers the JSON type of a field compared with op against v.
func operandType(op ast.Operator, v *ast.Value) string {
	switch op {
	case ast.OpExists, ast.OpContains:
		return ""
	case ast.OpIn:
		if v.IsArrayLiteral() {
			var t string
			for _, item := range v.Literal.([]interface{}) {
				it := jsonType(item)
				if t != "" && it != t {
					return ""
				}
				t = it
			}
			return t
		}
		return ""
	}
	if v != nil && v.Kind == ast.ValueArithmetic {
		return "number"
	}
	return literalType(v)
}

func literalType(v *ast.Value) string {
	if !v.IsLiteral() {
		return ""
	}
	return jsonType(v.Literal)
}

func jsonType(x interface{}) string {
	switch x.(type) {
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	}
	return ""
}

func newObject() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// insert places s at the nested path, creating intermediate objects. An
// object already present at the path keeps its properties.
func insert(obj map[string]interface{}, path []string, s map[string]interface{}) {
	props := obj["properties"].(map[string]interface{})
	name := path[0]
	if len(path) == 1 {
		if existing, ok := props[name].(map[string]interface{}); ok && existing["type"] == "object" {
			if d, ok := s["description"]; ok {
				existing["description"] = d
			}
			return
		}
		props[name] = s
		return
	}
	child, ok := props[name].(map[string]interface{})
	if !ok || child["type"] != "object" {
		next := newObject()
		if ok {
			if d, has := child["description"]; has {
				next["description"] = d
			}
		}
		child = next
		props[name] = child
	}
	insert(child, path[1:], s)
}

func leaf(f Field) map[string]interface{} {
	s := map[string]interface{}{
		"description": "read by " + strings.Join(f.Statements, ", "),
	}
	if len(f.Types) == 1 {
		s["type"] = f.Types[0]
	}
	return s
}

func evidenceSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": "evidence identifiers checked by REQUIRE statements",
		"items": map[string]interface{}{
			"anyOf": []interface{}{
				map[string]interface{}{"type": "string"},
				map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":   map[string]interface{}{"type": "string"},
						"type": map[string]interface{}{"type": "string"},
					},
				},
			},
		},
	}
}

func paramsSchema(doc *ast.Document, strict bool) map[string]interface{} {
	props := map[string]interface{}{}
	var required []interface{}
	for _, p := range doc.Params {
		s := map[string]interface{}{}
		switch p.Type {
		case ast.ParamTypeNumber:
			s["type"] = "number"
		case ast.ParamTypeBoolean:
			s["type"] = "boolean"
		case ast.ParamTypeDate:
			s["type"] = "string"
			s["format"] = "date"
		case ast.ParamTypeDateTime:
			s["type"] = "string"
			s["format"] = "date-time"
		default:
			s["type"] = "string"
		}
		if p.HasDefault {
			s["default"] = p.Default
		}
		if p.Description != "" {
			s["description"] = p.Description
		}
		props[p.Name] = s
		if p.Required {
			required = append(required, p.Name)
		}
	}
	out := map[string]interface{}{
		"$schema":    Draft,
		"$id":        documentURL(doc.Ref(), "params"),
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	if strict {
		out["additionalProperties"] = false
	}
	return out
}

func documentURL(ref ast.PolicyRef, part string) string {
	return "https://bdl.schemas.local/" + ref.PolicyID + "/" + ref.Version + "/" + part + ".schema.json"
}
