package parser

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// readFile loads a document file and returns its root YAML node. JSON input
// parses through the same path since JSON is a YAML subset.
func readFile(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return readBytes(data)
}

// readBytes parses data and unwraps the document node.
func readBytes(data []byte) (*yaml.Node, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, fmt.Errorf("empty document")
		}
		return node.Content[0], nil
	}
	return &node, nil
}

// pair is one key/value entry of a mapping node.
type pair struct {
	key   string
	keyN  *yaml.Node
	value *yaml.Node
}

// mappingPairs returns the entries of a mapping node in source order.
func mappingPairs(node *yaml.Node) []pair {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	pairs := make([]pair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, pair{
			key:   node.Content[i].Value,
			keyN:  node.Content[i],
			value: node.Content[i+1],
		})
	}
	return pairs
}

// lookup returns the value node for key, or nil.
func lookup(node *yaml.Node, key string) *yaml.Node {
	for _, p := range mappingPairs(node) {
		if p.key == key {
			return p.value
		}
	}
	return nil
}

// scalarValue converts a scalar node into a literal: string, float64, bool or nil.
// Timestamps stay strings; the temporal package parses them where needed.
func scalarValue(node *yaml.Node) (interface{}, error) {
	switch node.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		return strconv.ParseBool(node.Value)
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return nil, err
		}
		return float64(i), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return node.Value, nil
	}
}

// plainValue converts any node into plain Go data: scalars as in scalarValue,
// sequences as []interface{}, mappings as map[string]interface{}.
func plainValue(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return scalarValue(node)
	case yaml.AliasNode:
		return plainValue(node.Alias)
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := plainValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]interface{}, len(node.Content)/2)
		for _, p := range mappingPairs(node) {
			v, err := plainValue(p.value)
			if err != nil {
				return nil, err
			}
			out[p.key] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported YAML node kind %d", node.Kind)
}

// location builds an ast.Location from a node.
func location(node *yaml.Node, file string) ast.Location {
	if node == nil {
		return ast.Location{File: file}
	}
	return ast.Location{File: file, Line: node.Line, Column: node.Column}
}
