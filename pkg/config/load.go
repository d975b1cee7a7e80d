package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. BDL_POLICY_DIR.
const EnvPrefix = "BDL_"

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration like LoadConfig and then
// applies BDL_-prefixed environment variables, which take precedence over
// the file. Variable names follow the YAML path:
//
//	BDL_POLICY_DIR                 policy.dir
//	BDL_AUDIT_BACKEND              audit.backend
//	BDL_AUDIT_RETENTION_DAYS       audit.retention.days
//	BDL_TELEMETRY_LOGGING_LEVEL    telemetry.logging.level
//	BDL_ENGINE_DEFAULT_PROFILE_EVALUATE_TYPES=ALLOW,FORBID
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg, os.Environ()); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides parses environ onto cfg. Only variables that are set
// change the configuration.
func applyEnvOverrides(cfg *Config, environ []string) error {
	opts := env.Options{
		Prefix:      EnvPrefix,
		Environment: env.ToMap(environ),
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}
