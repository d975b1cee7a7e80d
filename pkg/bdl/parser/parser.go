package parser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mercator-hq/bdl/pkg/bdl/ast"
	bdlErrors "mercator-hq/bdl/pkg/bdl/errors"
)

// Default bounds applied while building documents.
const (
	DefaultMaxFileSize       = 10 * 1024 * 1024
	DefaultMaxPredicateDepth = 32
	DefaultMaxValueDepth     = 64
)

// Parser reads BDL documents (YAML or JSON) into ast.Documents.
// It checks structure only; semantic checks belong to the validator.
type Parser struct {
	maxFileSize       int64
	maxPredicateDepth int
	maxValueDepth     int
}

// NewParser creates a parser with default bounds.
func NewParser() *Parser {
	return &Parser{
		maxFileSize:       DefaultMaxFileSize,
		maxPredicateDepth: DefaultMaxPredicateDepth,
		maxValueDepth:     DefaultMaxValueDepth,
	}
}

// WithMaxFileSize sets the maximum accepted input size in bytes.
func (p *Parser) WithMaxFileSize(size int64) *Parser {
	p.maxFileSize = size
	return p
}

// WithMaxPredicateDepth sets the maximum predicate nesting depth.
func (p *Parser) WithMaxPredicateDepth(depth int) *Parser {
	p.maxPredicateDepth = depth
	return p
}

// WithMaxValueDepth sets the maximum value nesting depth.
func (p *Parser) WithMaxValueDepth(depth int) *Parser {
	p.maxValueDepth = depth
	return p
}

// Parse reads and builds the document at path.
func (p *Parser) Parse(path string) (*ast.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &bdlErrors.Error{
			Type:     bdlErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("cannot access file: %v", err),
			Location: ast.Location{File: path},
		}
	}
	if info.Size() > p.maxFileSize {
		return nil, &bdlErrors.Error{
			Type:     bdlErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("file size %d exceeds maximum %d bytes", info.Size(), p.maxFileSize),
			Location: ast.Location{File: path},
		}
	}

	root, err := readFile(path)
	if err != nil {
		return nil, syntaxError(path, err)
	}
	return p.build(root, path)
}

// ParseBytes builds a document from memory. sourcePath is used for locations only.
func (p *Parser) ParseBytes(data []byte, sourcePath string) (*ast.Document, error) {
	if int64(len(data)) > p.maxFileSize {
		return nil, &bdlErrors.Error{
			Type:     bdlErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("data size %d exceeds maximum %d bytes", len(data), p.maxFileSize),
			Location: ast.Location{File: sourcePath},
		}
	}
	root, err := readBytes(data)
	if err != nil {
		return nil, syntaxError(sourcePath, err)
	}
	return p.build(root, sourcePath)
}

func (p *Parser) build(root *yaml.Node, path string) (*ast.Document, error) {
	b := newBuilder(path, p.maxPredicateDepth, p.maxValueDepth)
	doc := b.buildDocument(root)
	if b.errors.HasErrors() {
		bdlErrors.AddContext(b.errors)
		return nil, b.errors
	}
	return doc, nil
}

func syntaxError(path string, err error) error {
	return &bdlErrors.Error{
		Type:       bdlErrors.ErrorTypeSyntax,
		Message:    fmt.Sprintf("YAML parsing failed: %v", err),
		Location:   ast.Location{File: path, Line: 1, Column: 1},
		Suggestion: "Check YAML syntax (indentation, colons, quotes)",
	}
}
