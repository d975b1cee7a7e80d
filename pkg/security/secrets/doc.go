/*
Package secrets resolves credentials referenced from configuration.

Configuration values may embed ${secret:name} references instead of the
credential itself:

	audit:
	  postgres:
	    dsn: postgres://bdl:${secret:audit-db-password}@db:5432/bdl

A Resolver replaces each reference with the value returned by the first
provider that knows the name. Two providers are available:

  - EnvProvider reads BDL_SECRET_AUDIT_DB_PASSWORD for "audit-db-password".
  - FileProvider reads <dir>/audit-db-password, the layout Kubernetes and
    Docker use for mounted secrets. Files must not be readable by group or
    others.

Resolved values are cached for a configurable TTL. Secret names are
redacted in log output and values are never logged.

# Usage

	r := secrets.NewResolver(logger, secrets.CacheConfig{TTL: 5 * time.Minute},
		secrets.NewFileProvider("/run/secrets"),
		secrets.NewEnvProvider("BDL_SECRET_"),
	)
	dsn, err := r.Resolve(ctx, cfg.Audit.Postgres.DSN)
*/
package secrets
