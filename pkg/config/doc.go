// Package config provides configuration management for the decision engine.
//
// Configuration is read from a YAML file, completed with defaults and
// validated. Environment variables prefixed with BDL_ override file values:
//
//   - BDL_POLICY_DIR overrides policy.dir
//   - BDL_AUDIT_BACKEND overrides audit.backend
//   - BDL_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - BDL_POLICY_GIT_AUTH_TOKEN overrides policy.git.auth.token
//
// Values are applied in this order, later overriding earlier:
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast with every field error at once)
//
// The Config type converts into the configuration types of the packages it
// drives (engine, policy manager, git source, trace storage, recorder and
// retention), so those packages never import this one.
//
// Credential fields (audit.postgres.dsn, audit.redis.password and the
// policy.git credentials) may contain ${secret:name} references. Commands
// resolve them with ResolveSecrets before connecting, from files under
// secrets.dir first and then from BDL_SECRET_<NAME> variables.
//
// # Singleton
//
// Commands that need process-wide access call Initialize once at startup
// and GetConfig afterwards. Tests should pass explicit *Config values.
//
// # Example Configuration
//
//	policy:
//	  dir: ./policies
//	  watch: true
//	  git:
//	    enabled: false
//	    url: https://github.com/example/policies.git
//	    branch: main
//	    path: policies
//	    auth:
//	      type: token
//
//	engine:
//	  lookup_no_match: missing
//	  default_profile:
//	    evaluate_types: [ALLOW, FORBID, LIMIT, REQUIRE, TAG]
//	    missing_data_behavior: ask
//
//	audit:
//	  backend: sqlite
//	  sqlite:
//	    path: data/traces.db
//	  retention:
//	    days: 30
//
//	telemetry:
//	  logging:
//	    level: debug
//	    format: json
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
package config
