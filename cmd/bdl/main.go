// bdl decides Cases against BDL policies and manages the policies, their
// test suites and the evaluation audit trail.
//
// Usage:
//
//	# Decide a Case
//	bdl eval --policy expenses --case case.json
//
//	# Run the test suites shipped next to the policies
//	bdl test --policies ./policies
//
//	# Validate policy documents
//	bdl lint ./policies
//
//	# Describe the Case shape a policy reads
//	bdl schema --policy expenses
//
//	# List loaded policies, or keep them loaded and reload on change
//	bdl policies
//	bdl policies --watch --metrics-addr :9090
//
//	# Inspect the audit trail
//	bdl trace get 1b4e28ba-2fa1-11d2-883f-0016d3cca427
//	bdl trace export --format csv --output traces.csv
//
// Configuration is read from --config (YAML) with BDL_ environment
// overrides; see package config.
package main

func main() {
	Execute()
}
