// Package engine evaluates composed BDL documents against Cases and produces
// decisions with a complete evaluation trace.
//
// Evaluation is deterministic: the same program, Case, params, profile and
// instant always yield the same verdict, reason codes, required fields and
// statement trace. The engine performs no I/O and holds no per-call state.
//
// # Architecture
//
// The engine uses a three-layer design:
//
//  1. Matcher - Evaluates predicates under three-valued logic (true, false, unresolved)
//  2. Executor - Runs the type-specific rule of each statement and picks its outcome bucket
//  3. Engine - Orders statements, aggregates competing outcomes and records the trace
//
// # Evaluation Flow
//
//	Program + Request
//	       ↓
//	Bind params (declaration order, defaults, type conformance)
//	       ↓
//	DEFINE statements in document order → derived context
//	       ↓
//	Other statements by descending priority (ties in document order):
//	  profile excludes type?  → skipped
//	  applies_when false?     → skipped
//	  run rule → apply | violation | missing | error bucket
//	  select outcome: statement → document default → builtin
//	  aggregate: first competing outcome wins, override replaces it,
//	             halt stops once nothing later can override
//	       ↓
//	Return Decision (verdict, reason codes, required fields, trace)
//
// # Missing Data
//
// An absent field is not an error. Predicates that cannot be decided resolve
// to missing data, which routes the statement to its missing bucket and adds
// the paths to the decision's required fields. The profile may ask (force
// needs_info) or ignore (skip the statement) instead.
//
// # Basic Usage
//
//	eng, err := engine.NewEngine(engine.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	prog, err := engine.Compile(effectiveDoc)
//	if err != nil {
//	    return err
//	}
//	decision, err := eng.Evaluate(ctx, prog, &engine.Request{
//	    Case:   caseData,
//	    Params: map[string]interface{}{"meal_itemization_threshold": 20},
//	})
//
// # Thread Safety
//
// Engine and Program are safe for concurrent use. Each Evaluate call builds
// its own EvaluationContext.
package engine
