// Package export writes audit records as JSON or CSV, for archives and for
// command line listings.
package export
