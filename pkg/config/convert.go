package config

import (
	"strings"

	"mercator-hq/bdl/pkg/audit/recorder"
	"mercator-hq/bdl/pkg/audit/retention"
	"mercator-hq/bdl/pkg/audit/storage"
	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/policy/engine"
	"mercator-hq/bdl/pkg/policy/git"
	"mercator-hq/bdl/pkg/policy/manager"
)

// ManagerConfig returns the policy manager configuration.
func (c *Config) ManagerConfig() *manager.Config {
	loader := manager.DefaultLoaderConfig()
	loader.MaxFileSize = c.Policy.MaxFileSize
	return &manager.Config{
		Dir:              c.Policy.Dir,
		Watch:            c.Policy.Watch,
		DebounceInterval: c.Policy.DebounceInterval,
		MaxChainLength:   c.Policy.MaxChainLength,
		Loader:           loader,
	}
}

// GitConfig returns the git policy source configuration. The watcher
// debounce follows the file watcher's.
func (c *Config) GitConfig() git.Config {
	g := c.Policy.Git
	return git.Config{
		URL:          g.URL,
		Branch:       g.Branch,
		Path:         g.Path,
		LocalPath:    g.LocalPath,
		Depth:        g.Depth,
		CleanOnStart: g.CleanOnStart,
		PollInterval: g.PollInterval,
		Timeout:      g.Timeout,
		Debounce:     c.Policy.DebounceInterval,
		Auth: git.AuthConfig{
			Type:             g.Auth.Type,
			Token:            g.Auth.Token,
			SSHKeyPath:       g.Auth.SSHKeyPath,
			SSHKeyPassphrase: g.Auth.SSHKeyPassphrase,
		},
	}
}

// EngineConfig returns the engine configuration.
func (c *Config) EngineConfig() *engine.Config {
	e := c.Engine
	return engine.DefaultConfig().
		WithMaxValueDepth(e.MaxValueDepth).
		WithMaxPredicateDepth(e.MaxPredicateDepth).
		WithStrictParams(e.StrictParams).
		WithLookupNoMatch(engine.NoMatchMode(e.LookupNoMatch)).
		WithEvidenceField(e.EvidenceField).
		WithTagsInReasonCodes(e.TagsInReasonCodes).
		WithDefaultProfile(e.DefaultProfile.Profile())
}

// Profile converts the profile configuration. Statement type names are
// case-insensitive.
func (p ProfileConfig) Profile() engine.Profile {
	out := engine.DefaultProfile()
	if p.Name != "" {
		out.Name = p.Name
	}
	if len(p.EvaluateTypes) > 0 {
		out.EvaluateTypes = make([]ast.StatementType, len(p.EvaluateTypes))
		for i, t := range p.EvaluateTypes {
			out.EvaluateTypes[i] = ast.StatementType(strings.ToUpper(t))
		}
	}
	if p.MissingDataBehavior != "" {
		out.MissingDataBehavior = engine.MissingDataBehavior(p.MissingDataBehavior)
	}
	return out
}

// StorageConfig returns the trace store configuration.
func (c *Config) StorageConfig() *storage.Config {
	a := c.Audit
	return &storage.Config{
		Backend: a.Backend,
		SQLite: &storage.SQLiteConfig{
			Path:         a.SQLite.Path,
			Driver:       a.SQLite.Driver,
			MaxOpenConns: a.SQLite.MaxOpenConns,
			MaxIdleConns: a.SQLite.MaxIdleConns,
			WALMode:      a.SQLite.WALMode,
			BusyTimeout:  a.SQLite.BusyTimeout,
		},
		Postgres: &storage.PostgresConfig{
			DSN:             a.Postgres.DSN,
			MaxOpenConns:    a.Postgres.MaxOpenConns,
			ConnMaxLifetime: a.Postgres.ConnMaxLifetime,
		},
		Redis: &storage.RedisConfig{
			Addr:      a.Redis.Addr,
			Password:  a.Redis.Password,
			DB:        a.Redis.DB,
			KeyPrefix: a.Redis.KeyPrefix,
			TTL:       a.Redis.TTL,
		},
	}
}

// RecorderConfig returns the trace recorder configuration.
func (c *Config) RecorderConfig() *recorder.Config {
	return &recorder.Config{
		Enabled:      c.Audit.Enabled,
		AsyncBuffer:  c.Audit.AsyncBuffer,
		WriteTimeout: c.Audit.WriteTimeout,
	}
}

// RetentionConfig returns the retention pruner configuration.
func (c *Config) RetentionConfig() *retention.Config {
	r := c.Audit.Retention
	return &retention.Config{
		RetentionDays:       r.Days,
		PruneSchedule:       r.Schedule,
		ArchiveBeforeDelete: r.ArchiveBeforeDelete,
		ArchivePath:         r.ArchivePath,
		MaxRecords:          r.MaxRecords,
	}
}
