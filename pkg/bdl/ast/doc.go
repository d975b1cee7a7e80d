// Package ast defines the in-memory model of a BDL policy document.
//
// A Document holds ordered params, tables and statements. Statements carry a
// Predicate guard (applies_when), a type-specific Rule body and up to four
// Outcome slots. Predicate and Value are closed sum types discriminated by
// their Kind field; every evaluation site switches over all kinds.
//
// # Core Types
//
// Document: policy_id, version, defaults, params, extends, tables, statements
//
// Statement: DEFINE, REQUIRE, ALLOW, FORBID, LIMIT, ROUTE or TAG
//
// Predicate: all, any, not, comparison leaf or temporal leaf
//
// Value: literal, field, param, lookup, arithmetic or now
//
// Nodes are never mutated after the parser and the composer have produced
// them, so a Document can be shared by concurrent evaluations.
package ast
