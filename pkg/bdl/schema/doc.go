// Package schema derives JSON Schema documents from effective BDL documents.
//
// Generate walks every predicate, value and rule body of a document and
// records the Case paths it reads, with a type when the surrounding
// comparison pins one. Paths written by DEFINE statements are derived and
// left out. The result carries two draft 2020-12 schemas, one for the Case
// and one for the params object, plus a flat field listing.
//
// Compile turns a PolicySchema into a Validator for optional input checks
// before evaluation.
package schema
