package storage

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/bdl/pkg/audit"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend  string
	SQLite   *SQLiteConfig
	Postgres *PostgresConfig
	Redis    *RedisConfig
}

// Open creates the store named by cfg.Backend.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (audit.Store, error) {
	if cfg == nil {
		return NewMemoryStorage(), nil
	}
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStorage(), nil
	case BackendSQLite:
		s, err := NewSQLiteStorage(cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		if cfg.Postgres == nil || cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a dsn")
		}
		s, err := OpenPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		if cfg.Redis == nil || cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis backend requires an address")
		}
		s, err := NewRedisStorage(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
}
