package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks Cases and params against a compiled PolicySchema.
type Validator struct {
	caseSchema   *jsonschema.Schema
	paramsSchema *jsonschema.Schema
}

// Compile compiles both schemas of s.
func Compile(s *PolicySchema) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	caseSchema, err := compileOne(c, s.Case)
	if err != nil {
		return nil, fmt.Errorf("case schema of %s@%s: %w", s.PolicyID, s.Version, err)
	}
	paramsSchema, err := compileOne(c, s.Params)
	if err != nil {
		return nil, fmt.Errorf("params schema of %s@%s: %w", s.PolicyID, s.Version, err)
	}
	return &Validator{caseSchema: caseSchema, paramsSchema: paramsSchema}, nil
}

func compileOne(c *jsonschema.Compiler, doc map[string]interface{}) (*jsonschema.Schema, error) {
	url, _ := doc["$id"].(string)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("schema load failed: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed: %w", err)
	}
	return compiled, nil
}

// ValidateCase checks a Case. Values may come from YAML or Go literals; they
// are normalized to their JSON form first.
func (v *Validator) ValidateCase(c map[string]interface{}) error {
	return validate(v.caseSchema, c, "case")
}

// ValidateParams checks supplied params.
func (v *Validator) ValidateParams(p map[string]interface{}) error {
	if p == nil {
		p = map[string]interface{}{}
	}
	return validate(v.paramsSchema, p, "params")
}

func validate(s *jsonschema.Schema, value map[string]interface{}, what string) error {
	if value == nil {
		value = map[string]interface{}{}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s is not JSON-encodable: %w", what, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s does not match schema: %w", what, err)
	}
	return nil
}
