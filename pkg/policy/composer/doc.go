// Package composer resolves extends chains into effective documents.
//
// A document that extends another is merged bottom-up onto its ancestor: new
// statements are appended, statements sharing an id with an ancestor replace
// it only when marked override, and params and tables are unioned. Every
// merged statement keeps the reference of the document that declared it.
//
// Resolution is depth-first with an in-progress marker per PolicyRef, so a
// circular extends chain of any length fails with a CompositionError before
// anything is evaluated. Effective documents are memoized per PolicyRef and
// the first resolution of a ref is single-flighted across goroutines.
package composer
