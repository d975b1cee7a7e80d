// Package parser builds ast.Documents from YAML or JSON.
//
// The parser walks yaml.Node trees directly so every node keeps its line and
// column, rejects unknown fields with "Did you mean" suggestions and bounds
// predicate and value nesting while building. Semantic checks are left to
// the validator package.
//
//	doc, err := parser.NewParser().Parse("policies/dress-code.yaml")
//	if err != nil {
//	    // *errors.ErrorList with every structural problem
//	}
package parser
