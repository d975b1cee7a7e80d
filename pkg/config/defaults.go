package config

import "time"

// Default values for configuration fields.
const (
	// Policy defaults
	DefaultPolicyDir              = "./policies"
	DefaultPolicyDebounceInterval = 100 * time.Millisecond
	DefaultPolicyMaxChainLength   = 16
	DefaultPolicyMaxFileSize      = int64(10 * 1024 * 1024)
	DefaultGitBranch              = "main"
	DefaultGitLocalPath           = "data/policy-repo"
	DefaultGitPollInterval        = 30 * time.Second
	DefaultGitTimeout             = 60 * time.Second
	DefaultGitAuthType            = "none"

	// Engine defaults
	DefaultEngineMaxValueDepth     = 64
	DefaultEngineMaxPredicateDepth = 64
	DefaultEngineLookupNoMatch     = "error"
	DefaultEngineEvidenceField     = "evidence"
	DefaultEngineMissingBehavior   = "enforce"

	// Audit defaults
	DefaultAuditEnabled         = true
	DefaultAuditBackend         = "memory"
	DefaultAuditWriteTimeout    = 5 * time.Second
	DefaultSQLitePath           = "data/traces.db"
	DefaultSQLiteDriver         = "sqlite3"
	DefaultSQLiteMaxOpenConns   = 10
	DefaultSQLiteMaxIdleConns   = 5
	DefaultSQLiteWALMode        = true
	DefaultSQLiteBusyTimeout    = 5 * time.Second
	DefaultPostgresMaxOpenConns = 10
	DefaultPostgresConnLifetime = 30 * time.Minute
	DefaultRedisKeyPrefix       = "bdl:trace:"
	DefaultRetentionDays        = 90
	DefaultRetentionSchedule    = "0 3 * * *"
	DefaultRetentionArchivePath = "data/archives/"

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultLogRedactPII       = true
	DefaultMetricsEnabled     = true
	DefaultMetricsNamespace   = "bdl"
	DefaultMetricsSubsystem   = "engine"
	DefaultMetricsCardinality = 1000
	DefaultTracingSampler     = "always"
	DefaultTracingRatio       = 1.0
	DefaultTracingExporter    = "otlp"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingService     = "bdl"
	DefaultOTLPTimeout        = 10 * time.Second

	// Secrets defaults
	DefaultSecretsEnvPrefix = "BDL_SECRET_"
	DefaultSecretsCacheTTL  = 5 * time.Minute
)

// Default returns a configuration with every default applied. Boolean
// defaults can only be expressed here: LoadConfig decodes YAML on top of
// this value, so an explicit false in the file still wins.
func Default() *Config {
	cfg := &Config{}
	cfg.Audit.Enabled = DefaultAuditEnabled
	cfg.Audit.SQLite.WALMode = DefaultSQLiteWALMode
	cfg.Telemetry.Logging.RedactPII = DefaultLogRedactPII
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	// Policy defaults
	if cfg.Policy.Dir == "" {
		cfg.Policy.Dir = DefaultPolicyDir
	}
	if cfg.Policy.DebounceInterval == 0 {
		cfg.Policy.DebounceInterval = DefaultPolicyDebounceInterval
	}
	if cfg.Policy.MaxChainLength == 0 {
		cfg.Policy.MaxChainLength = DefaultPolicyMaxChainLength
	}
	if cfg.Policy.MaxFileSize == 0 {
		cfg.Policy.MaxFileSize = DefaultPolicyMaxFileSize
	}
	g := &cfg.Policy.Git
	if g.Branch == "" {
		g.Branch = DefaultGitBranch
	}
	if g.LocalPath == "" {
		g.LocalPath = DefaultGitLocalPath
	}
	if g.PollInterval == 0 {
		g.PollInterval = DefaultGitPollInterval
	}
	if g.Timeout == 0 {
		g.Timeout = DefaultGitTimeout
	}
	if g.Auth.Type == "" {
		g.Auth.Type = DefaultGitAuthType
	}

	// Engine defaults
	e := &cfg.Engine
	if e.MaxValueDepth == 0 {
		e.MaxValueDepth = DefaultEngineMaxValueDepth
	}
	if e.MaxPredicateDepth == 0 {
		e.MaxPredicateDepth = DefaultEngineMaxPredicateDepth
	}
	if e.LookupNoMatch == "" {
		e.LookupNoMatch = DefaultEngineLookupNoMatch
	}
	if e.EvidenceField == "" {
		e.EvidenceField = DefaultEngineEvidenceField
	}
	if e.DefaultProfile.Name == "" {
		e.DefaultProfile.Name = "default"
	}
	if e.DefaultProfile.MissingDataBehavior == "" {
		e.DefaultProfile.MissingDataBehavior = DefaultEngineMissingBehavior
	}

	// Audit defaults
	a := &cfg.Audit
	if a.Backend == "" {
		a.Backend = DefaultAuditBackend
	}
	if a.WriteTimeout == 0 {
		a.WriteTimeout = DefaultAuditWriteTimeout
	}
	if a.SQLite.Path == "" {
		a.SQLite.Path = DefaultSQLitePath
	}
	if a.SQLite.Driver == "" {
		a.SQLite.Driver = DefaultSQLiteDriver
	}
	if a.SQLite.MaxOpenConns == 0 {
		a.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if a.SQLite.MaxIdleConns == 0 {
		a.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if a.SQLite.BusyTimeout == 0 {
		a.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if a.Postgres.MaxOpenConns == 0 {
		a.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if a.Postgres.ConnMaxLifetime == 0 {
		a.Postgres.ConnMaxLifetime = DefaultPostgresConnLifetime
	}
	if a.Redis.KeyPrefix == "" {
		a.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if a.Retention.Days == 0 {
		a.Retention.Days = DefaultRetentionDays
	}
	if a.Retention.Schedule == "" {
		a.Retention.Schedule = DefaultRetentionSchedule
	}
	if a.Retention.ArchivePath == "" {
		a.Retention.ArchivePath = DefaultRetentionArchivePath
	}

	// Telemetry defaults
	t := &cfg.Telemetry
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLogLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLogFormat
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if t.Metrics.MaxCardinality == 0 {
		t.Metrics.MaxCardinality = DefaultMetricsCardinality
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingRatio
	}
	if t.Tracing.Exporter == "" {
		t.Tracing.Exporter = DefaultTracingExporter
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingService
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}

	// Secrets defaults
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretsCacheTTL
	}
}
