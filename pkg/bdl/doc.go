// Package bdl loads documents of the business decision language.
//
// BDL documents are YAML or JSON files that declare typed statements
// (DEFINE, REQUIRE, ALLOW, FORBID, LIMIT, ROUTE, TAG) with priorities,
// predicates and outcomes. The subpackages are:
//
//   - ast: the document model
//   - parser: YAML/JSON to ast
//   - validator: structural and semantic checks
//   - errors: findings with locations and suggestions
//   - temporal: date parsing and calendar arithmetic
//   - types: typed equality and param conformance
//   - schema: JSON Schema of the Case shape a document expects
//
// Load a document:
//
//	doc, err := bdl.ParseAndValidate("policies/dress-code.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(doc.Ref(), len(doc.Statements))
package bdl
