package config

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/bdl/pkg/security/secrets"
)

// SecretResolver builds a resolver from the secrets configuration.
func (c *Config) SecretResolver(logger *slog.Logger) *secrets.Resolver {
	var providers []secrets.Provider
	if c.Secrets.Dir != "" {
		providers = append(providers, secrets.NewFileProvider(c.Secrets.Dir))
	}
	providers = append(providers, secrets.NewEnvProvider(c.Secrets.EnvPrefix))
	return secrets.NewResolver(logger, secrets.CacheConfig{TTL: c.Secrets.CacheTTL}, providers...)
}

// ResolveSecrets replaces ${secret:name} references in the credential
// fields of the selected trace backend and of an enabled git source. Other
// fields are left alone.
func ResolveSecrets(ctx context.Context, cfg *Config, r *secrets.Resolver) error {
	type field struct {
		name  string
		value *string
	}
	var fields []field
	switch cfg.Audit.Backend {
	case "postgres":
		fields = append(fields, field{"audit.postgres.dsn", &cfg.Audit.Postgres.DSN})
	case "redis":
		fields = append(fields, field{"audit.redis.password", &cfg.Audit.Redis.Password})
	}
	if cfg.Policy.Git.Enabled {
		fields = append(fields,
			field{"policy.git.url", &cfg.Policy.Git.URL},
			field{"policy.git.auth.token", &cfg.Policy.Git.Auth.Token},
			field{"policy.git.auth.ssh_key_passphrase", &cfg.Policy.Git.Auth.SSHKeyPassphrase},
		)
	}

	var errs []FieldError
	for _, f := range fields {
		if !secrets.HasReferences(*f.value) {
			continue
		}
		v, err := r.Resolve(ctx, *f.value)
		if err != nil {
			errs = append(errs, FieldError{Field: f.name, Message: fmt.Sprintf("failed to resolve secret: %v", err)})
			continue
		}
		*f.value = v
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
