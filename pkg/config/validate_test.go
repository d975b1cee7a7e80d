package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{
			name:   "empty policy dir",
			modify: func(c *Config) { c.Policy.Dir = "" },
			field:  "policy.dir",
		},
		{
			name:   "zero chain length",
			modify: func(c *Config) { c.Policy.MaxChainLength = 0 },
			field:  "policy.max_chain_length",
		},
		{
			name:   "git url",
			modify: func(c *Config) { c.Policy.Git.Enabled = true },
			field:  "policy.git.url",
		},
		{
			name: "git auth type",
			modify: func(c *Config) {
				c.Policy.Git.Enabled = true
				c.Policy.Git.URL = "https://example.com/policies.git"
				c.Policy.Git.Auth.Type = "basic"
			},
			field: "policy.git.auth.type",
		},
		{
			name: "git token",
			modify: func(c *Config) {
				c.Policy.Git.Enabled = true
				c.Policy.Git.URL = "https://example.com/policies.git"
				c.Policy.Git.Auth.Type = "token"
			},
			field: "policy.git.auth.token",
		},
		{
			name:   "lookup mode",
			modify: func(c *Config) { c.Engine.LookupNoMatch = "skip" },
			field:  "engine.lookup_no_match",
		},
		{
			name:   "profile type",
			modify: func(c *Config) { c.Engine.DefaultProfile.EvaluateTypes = []string{"ALLOW", "AUDIT"} },
			field:  "engine.default_profile.evaluate_types",
		},
		{
			name:   "profile behavior",
			modify: func(c *Config) { c.Engine.DefaultProfile.MissingDataBehavior = "guess" },
			field:  "engine.default_profile.missing_data_behavior",
		},
		{
			name:   "sqlite driver",
			modify: func(c *Config) { c.Audit.Backend = "sqlite"; c.Audit.SQLite.Driver = "mysql" },
			field:  "audit.sqlite.driver",
		},
		{
			name: "sqlite idle above open",
			modify: func(c *Config) {
				c.Audit.Backend = "sqlite"
				c.Audit.SQLite.MaxIdleConns = c.Audit.SQLite.MaxOpenConns + 1
			},
			field: "audit.sqlite.max_idle_conns",
		},
		{
			name:   "redis addr",
			modify: func(c *Config) { c.Audit.Backend = "redis" },
			field:  "audit.redis.addr",
		},
		{
			name:   "negative retention",
			modify: func(c *Config) { c.Audit.Retention.Days = -1 },
			field:  "audit.retention.days",
		},
		{
			name:   "archive without path",
			modify: func(c *Config) { c.Audit.Retention.ArchiveBeforeDelete = true; c.Audit.Retention.ArchivePath = "" },
			field:  "audit.retention.archive_path",
		},
		{
			name:   "log level",
			modify: func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			field:  "telemetry.logging.level",
		},
		{
			name:   "redact pattern",
			modify: func(c *Config) { c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "x"}} },
			field:  "telemetry.logging.redact_patterns[0]",
		},
		{
			name:   "buckets order",
			modify: func(c *Config) { c.Telemetry.Metrics.DurationBuckets = []float64{0.1, 0.01} },
			field:  "telemetry.metrics.duration_buckets",
		},
		{
			name:   "sample ratio",
			modify: func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 },
			field:  "telemetry.tracing.sample_ratio",
		},
		{
			name:   "tracing endpoint",
			modify: func(c *Config) { c.Telemetry.Tracing.Enabled = true; c.Telemetry.Tracing.Endpoint = "" },
			field:  "telemetry.tracing.endpoint",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := Validate(cfg)
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range ve.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %v, want one for %s", ve.Errors, tt.field)
			}
		})
	}
}

func TestValidateIgnoresDisabledGit(t *testing.T) {
	cfg := Default()
	cfg.Policy.Git.Auth.Type = "basic"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() = %v, want nil while git source is disabled", err)
	}
}

func TestValidationErrorCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Policy.Dir = ""
	cfg.Telemetry.Logging.Format = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "2 errors") || !strings.Contains(msg, "policy.dir") || !strings.Contains(msg, "telemetry.logging.format") {
		t.Errorf("message = %q", msg)
	}
}

func TestProfileTypesCaseInsensitive(t *testing.T) {
	cfg := Default()
	cfg.Engine.DefaultProfile.EvaluateTypes = []string{"allow", "Forbid"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
