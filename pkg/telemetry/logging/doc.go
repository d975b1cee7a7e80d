// Package logging builds the structured logger used across the module.
//
// New wraps log/slog with two additions: a handler that copies request,
// trace and policy identifiers from the context onto every record logged
// through the *Context methods, and an optional Redactor installed as the
// ReplaceAttr hook. Case data often carries personal information (employee
// emails, card numbers) so the redactor masks sensitive keys and scans
// string values for known patterns.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	if err != nil {
//	    return err
//	}
//	ctx = logging.WithTraceID(ctx, traceID)
//	logger.InfoContext(ctx, "decision recorded", "verdict", "ALLOW")
package logging
