package bdl

import (
	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/parser"
	"mercator-hq/bdl/pkg/bdl/validator"
)

// ParseAndValidate parses a document file and runs the validator over it.
func ParseAndValidate(path string) (*ast.Document, error) {
	doc, err := parser.NewParser().Parse(path)
	if err != nil {
		return nil, err
	}
	if err := validator.NewValidator().Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseAndValidateBytes parses and validates a document held in memory.
func ParseAndValidateBytes(data []byte, sourcePath string) (*ast.Document, error) {
	doc, err := parser.NewParser().ParseBytes(data, sourcePath)
	if err != nil {
		return nil, err
	}
	if err := validator.NewValidator().Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
