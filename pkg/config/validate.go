package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "audit.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// listing every problem, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError
	if cfg.Dir == "" {
		errs = append(errs, FieldError{Field: "policy.dir", Message: "policy directory is required"})
	}
	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{Field: "policy.debounce_interval", Message: "debounce interval must be non-negative"})
	}
	if cfg.MaxChainLength < 1 {
		errs = append(errs, FieldError{Field: "policy.max_chain_length", Message: "max chain length must be at least 1"})
	}
	if cfg.MaxFileSize < 0 {
		errs = append(errs, FieldError{Field: "policy.max_file_size", Message: "max file size must be non-negative"})
	}
	if cfg.Git.Enabled {
		errs = append(errs, validateGit(&cfg.Git)...)
	}
	return errs
}

func validateGit(cfg *GitConfig) []FieldError {
	var errs []FieldError
	if cfg.URL == "" {
		errs = append(errs, FieldError{Field: "policy.git.url", Message: "repository URL is required"})
	}
	if cfg.LocalPath == "" {
		errs = append(errs, FieldError{Field: "policy.git.local_path", Message: "local path is required"})
	}
	if cfg.Depth < 0 {
		errs = append(errs, FieldError{Field: "policy.git.depth", Message: "depth must be non-negative"})
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, FieldError{Field: "policy.git.poll_interval", Message: "poll interval must be positive"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "policy.git.timeout", Message: "timeout must be positive"})
	}
	switch cfg.Auth.Type {
	case "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "policy.git.auth.token", Message: "token is required for token auth"})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "policy.git.auth.ssh_key_path", Message: "key path is required for ssh auth"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "policy.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q (valid: none, token, ssh)", cfg.Auth.Type),
		})
	}
	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxValueDepth < 1 {
		errs = append(errs, FieldError{Field: "engine.max_value_depth", Message: "must be at least 1"})
	}
	if cfg.MaxPredicateDepth < 1 {
		errs = append(errs, FieldError{Field: "engine.max_predicate_depth", Message: "must be at least 1"})
	}
	switch cfg.LookupNoMatch {
	case "error", "missing":
	default:
		errs = append(errs, FieldError{
			Field:   "engine.lookup_no_match",
			Message: fmt.Sprintf("invalid mode %q (valid: error, missing)", cfg.LookupNoMatch),
		})
	}
	if cfg.EvidenceField == "" {
		errs = append(errs, FieldError{Field: "engine.evidence_field", Message: "evidence field is required"})
	}
	for _, t := range cfg.DefaultProfile.EvaluateTypes {
		if !ast.StatementType(strings.ToUpper(t)).IsValid() {
			errs = append(errs, FieldError{
				Field:   "engine.default_profile.evaluate_types",
				Message: fmt.Sprintf("unknown statement type %q", t),
			})
		}
	}
	switch cfg.DefaultProfile.MissingDataBehavior {
	case "enforce", "ask", "ignore":
	default:
		errs = append(errs, FieldError{
			Field:   "engine.default_profile.missing_data_behavior",
			Message: fmt.Sprintf("invalid behavior %q (valid: enforce, ask, ignore)", cfg.DefaultProfile.MissingDataBehavior),
		})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError
	if cfg.AsyncBuffer < 0 {
		errs = append(errs, FieldError{Field: "audit.async_buffer", Message: "async buffer must be non-negative"})
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "audit.write_timeout", Message: "write timeout must be positive"})
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "audit.sqlite.path", Message: "path is required for the sqlite backend"})
		}
		switch cfg.SQLite.Driver {
		case "sqlite3", "sqlite":
		default:
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (valid: sqlite3, sqlite)", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{Field: "audit.sqlite.max_idle_conns", Message: "must not exceed max_open_conns"})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "audit.postgres.dsn", Message: "dsn is required for the postgres backend"})
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{Field: "audit.redis.addr", Message: "addr is required for the redis backend"})
		}
		if cfg.Redis.TTL < 0 {
			errs = append(errs, FieldError{Field: "audit.redis.ttl", Message: "ttl must be non-negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("invalid backend %q (valid: memory, sqlite, postgres, redis)", cfg.Backend),
		})
	}

	r := cfg.Retention
	if r.Days < 0 {
		errs = append(errs, FieldError{Field: "audit.retention.days", Message: "retention days must be non-negative"})
	}
	if r.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "audit.retention.max_records", Message: "max records must be non-negative"})
	}
	if r.Schedule != "" {
		if _, err := cron.ParseStandard(r.Schedule); err != nil {
			errs = append(errs, FieldError{Field: "audit.retention.schedule", Message: fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	if r.ArchiveBeforeDelete && r.ArchivePath == "" {
		errs = append(errs, FieldError{Field: "audit.retention.archive_path", Message: "archive path is required when archiving"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (valid: debug, info, warn, error)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (valid: json, text, console)", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if p.Name == "" || p.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i),
				Message: "name and pattern are required",
			})
		}
	}

	if cfg.Metrics.MaxCardinality < 0 {
		errs = append(errs, FieldError{Field: "telemetry.metrics.max_cardinality", Message: "must be non-negative"})
	}
	for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
		if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
			errs = append(errs, FieldError{Field: "telemetry.metrics.duration_buckets", Message: "buckets must be strictly increasing"})
			break
		}
	}

	tr := cfg.Tracing
	switch tr.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (valid: always, never, ratio)", tr.Sampler),
		})
	}
	if tr.SampleRatio < 0 || tr.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
	}
	if tr.Enabled {
		if tr.Exporter != "otlp" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.exporter", Message: fmt.Sprintf("unsupported exporter %q", tr.Exporter)})
		}
		if tr.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
	}
	return errs
}
