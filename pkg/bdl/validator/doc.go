// Package validator checks BDL documents before they can be composed or evaluated.
//
// The structural pass checks required fields, closed enums, rule body shape
// per statement type, duplicate ids, table columns and nesting bounds. The
// semantic pass checks param default types, numeric operands and, for
// documents without extends, param and table references. Composite
// documents get their references checked after composition.
//
// A statement without any outcome slot is reported as a warning.
package validator
