// Package errors provides the findings reported while loading BDL documents.
//
// An ErrorList collects every Error found by the parser and the validator
// instead of failing on the first one. Error-severity findings form the
// ValidationError that blocks a document; warnings (for example a statement
// without any outcome slot) are reported but do not block it.
//
//	el := errors.NewErrorList()
//	el.AddErrorWithSuggestion(errors.ErrorTypeStructural, "unknown field 'priorty'", loc,
//	    errors.Suggest("priorty", validFields))
//	return el.ToError()
package errors
