// Package suite loads policy test suites and runs them through the engine.
//
// A suite is a YAML file named <name>.tests.yaml that targets one policy
// version:
//
//	policy_id: expenses
//	version: 2.1.0
//	tests:
//	  - id: meal-without-receipt
//	    case:
//	      expense: {category: MEAL, amount: 60}
//	    expected:
//	      verdict: needs_review
//	      reason_codes: [ITEMIZATION_REQUIRED]
//	      required_fields: [evidence:ITEMIZED_RECEIPT]
//
// Each case may also carry params, a fixed now and a profile. Verdicts are
// compared exactly; reason codes and required fields are compared ignoring
// order, and only when listed.
package suite
