package config

import "time"

// Config is the root configuration of the decision engine: where policies
// live, how the engine evaluates, where traces are stored and how the
// process reports on itself.
type Config struct {
	// Policy configures the policy directory and reload behavior.
	Policy PolicyConfig `yaml:"policy" envPrefix:"POLICY_"`

	// Engine configures evaluation semantics that are left to deployment.
	Engine EngineConfig `yaml:"engine" envPrefix:"ENGINE_"`

	// Audit configures trace persistence and retention.
	Audit AuditConfig `yaml:"audit" envPrefix:"AUDIT_"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`

	// Secrets configures resolution of ${secret:name} references.
	Secrets SecretsConfig `yaml:"secrets" envPrefix:"SECRETS_"`
}

// SecretsConfig configures where ${secret:name} references in credential
// fields are looked up. Files in Dir are consulted before the environment.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name.
	// Default: "BDL_SECRET_"
	EnvPrefix string `yaml:"env_prefix" env:"ENV_PREFIX"`

	// Dir holds one file per secret. Empty disables file lookup.
	Dir string `yaml:"dir" env:"DIR"`

	// CacheTTL is how long resolved values are reused.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// PolicyConfig contains configuration for the policy manager.
type PolicyConfig struct {
	// Dir is the policy directory, or a single document file.
	// Default: "./policies"
	Dir string `yaml:"dir" env:"DIR"`

	// Watch reloads policies when files under Dir change.
	// Default: false
	Watch bool `yaml:"watch" env:"WATCH"`

	// DebounceInterval is the quiet period after a change before reloading.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval" env:"DEBOUNCE_INTERVAL"`

	// MaxChainLength bounds extends chains.
	// Default: 16
	MaxChainLength int `yaml:"max_chain_length" env:"MAX_CHAIN_LENGTH"`

	// MaxFileSize is the largest document file accepted, in bytes.
	// Default: 10MB
	MaxFileSize int64 `yaml:"max_file_size" env:"MAX_FILE_SIZE"`

	// Git loads policies from a git repository clone instead of Dir.
	Git GitConfig `yaml:"git" envPrefix:"GIT_"`
}

// GitConfig configures a git policy source. When enabled the repository is
// cloned into LocalPath and policies are read from Path inside the clone.
type GitConfig struct {
	// Enabled switches the policy source to the repository.
	// Default: false
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// URL is the clone URL (https, ssh or a local path).
	URL string `yaml:"url" env:"URL"`

	// Branch is the branch policies are read from.
	// Default: "main"
	Branch string `yaml:"branch" env:"BRANCH"`

	// Path is the policy directory inside the repository.
	// Default: "" (repository root)
	Path string `yaml:"path" env:"PATH"`

	// LocalPath is where the repository is cloned.
	// Default: "data/policy-repo"
	LocalPath string `yaml:"local_path" env:"LOCAL_PATH"`

	// Depth limits clone history. Zero clones the full history.
	Depth int `yaml:"depth" env:"DEPTH"`

	// CleanOnStart removes LocalPath before cloning.
	CleanOnStart bool `yaml:"clean_on_start" env:"CLEAN_ON_START"`

	// PollInterval is how often the remote is checked while watching.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`

	// Timeout bounds each clone or pull.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	Auth GitAuthConfig `yaml:"auth" envPrefix:"AUTH_"`
}

// GitAuthConfig selects repository credentials.
type GitAuthConfig struct {
	// Type is "none", "token" or "ssh".
	// Default: "none"
	Type string `yaml:"type" env:"TYPE"`

	// Token authenticates https remotes. Prefer BDL_POLICY_GIT_AUTH_TOKEN
	// over the config file.
	Token string `yaml:"token" env:"TOKEN"`

	SSHKeyPath       string `yaml:"ssh_key_path" env:"SSH_KEY_PATH"`
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase" env:"SSH_KEY_PASSPHRASE"`
}

// EngineConfig contains configuration for the decision engine.
type EngineConfig struct {
	// MaxValueDepth bounds arithmetic nesting at runtime.
	// Default: 64
	MaxValueDepth int `yaml:"max_value_depth" env:"MAX_VALUE_DEPTH"`

	// MaxPredicateDepth bounds all/any/not nesting at runtime.
	// Default: 64
	MaxPredicateDepth int `yaml:"max_predicate_depth" env:"MAX_PREDICATE_DEPTH"`

	// StrictParams rejects params a document does not declare.
	// Default: false
	StrictParams bool `yaml:"strict_params" env:"STRICT_PARAMS"`

	// LookupNoMatch is "error" or "missing".
	// Default: "error"
	LookupNoMatch string `yaml:"lookup_no_match" env:"LOOKUP_NO_MATCH"`

	// EvidenceField is the Case path of the evidence list.
	// Default: "evidence"
	EvidenceField string `yaml:"evidence_field" env:"EVIDENCE_FIELD"`

	// TagsInReasonCodes appends fired TAG labels to reason codes.
	// Default: false
	TagsInReasonCodes bool `yaml:"tags_in_reason_codes" env:"TAGS_IN_REASON_CODES"`

	// ValidateCaseSchema rejects Cases that do not match the policy's
	// generated JSON Schema before evaluating them.
	// Default: false
	ValidateCaseSchema bool `yaml:"validate_case_schema" env:"VALIDATE_CASE_SCHEMA"`

	// DefaultProfile is used when a request carries no profile.
	DefaultProfile ProfileConfig `yaml:"default_profile" envPrefix:"DEFAULT_PROFILE_"`
}

// ProfileConfig names the statement types to run and the missing data
// behavior. Empty EvaluateTypes means every type except DEFINE.
type ProfileConfig struct {
	Name                string   `yaml:"name" env:"NAME"`
	EvaluateTypes       []string `yaml:"evaluate_types" env:"EVALUATE_TYPES"`
	MissingDataBehavior string   `yaml:"missing_data_behavior" env:"MISSING_DATA_BEHAVIOR"`
}

// AuditConfig contains configuration for the trace store.
type AuditConfig struct {
	// Enabled records every evaluation trace.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Backend is "memory", "sqlite", "postgres" or "redis".
	// Default: "memory"
	Backend string `yaml:"backend" env:"BACKEND"`

	// AsyncBuffer queues writes in the background. Zero writes inline.
	// Default: 0
	AsyncBuffer int `yaml:"async_buffer" env:"ASYNC_BUFFER"`

	// WriteTimeout bounds a single trace write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`

	SQLite    SQLiteConfig    `yaml:"sqlite" envPrefix:"SQLITE_"`
	Postgres  PostgresConfig  `yaml:"postgres" envPrefix:"POSTGRES_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Retention RetentionConfig `yaml:"retention" envPrefix:"RETENTION_"`
}

// SQLiteConfig contains SQLite trace store configuration.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/traces.db"
	Path string `yaml:"path" env:"PATH"`

	// Driver is "sqlite3" (cgo) or "sqlite" (pure Go).
	// Default: "sqlite3"
	Driver string `yaml:"driver" env:"DRIVER"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode" env:"WAL_MODE"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`
}

// PostgresConfig contains PostgreSQL trace store configuration.
type PostgresConfig struct {
	// DSN is a lib/pq connection string.
	DSN string `yaml:"dsn" env:"DSN"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`

	// ConnMaxLifetime recycles connections.
	// Default: 30m
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig contains Redis trace store configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`

	// KeyPrefix namespaces every key.
	// Default: "bdl:trace:"
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`

	// TTL expires traces. Zero keeps them until pruned.
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// RetentionConfig contains trace retention configuration.
type RetentionConfig struct {
	// Days keeps traces this many days. Zero keeps them forever.
	// Default: 90
	Days int `yaml:"days" env:"DAYS"`

	// Schedule is a cron expression for pruning. Empty disables scheduling.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule" env:"SCHEDULE"`

	// ArchiveBeforeDelete writes pruned traces to ArchivePath first.
	ArchiveBeforeDelete bool `yaml:"archive_before_delete" env:"ARCHIVE_BEFORE_DELETE"`

	// ArchivePath is the archive directory.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path" env:"ARCHIVE_PATH"`

	// MaxRecords caps the number of stored traces. Zero is unlimited.
	MaxRecords int64 `yaml:"max_records" env:"MAX_RECORDS"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
	Tracing TracingConfig `yaml:"tracing" envPrefix:"TRACING_"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level" env:"LEVEL"`

	// Format is "json", "text" or "console".
	// Default: "text"
	Format string `yaml:"format" env:"FORMAT"`

	// AddSource includes file and line in log entries.
	AddSource bool `yaml:"add_source" env:"ADD_SOURCE"`

	// RedactPII masks personal data in log attributes.
	// Default: true
	RedactPII bool `yaml:"redact_pii" env:"REDACT_PII"`

	// RedactPatterns adds redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns" env:"-"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are recorded.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Namespace and Subsystem prefix metric names.
	// Default: "bdl", "engine"
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	Subsystem string `yaml:"subsystem" env:"SUBSYSTEM"`

	// Addr serves /metrics while a long-running command runs. Empty
	// disables the listener.
	Addr string `yaml:"addr" env:"ADDR"`

	// DurationBuckets are the evaluation histogram buckets in seconds.
	DurationBuckets []float64 `yaml:"duration_buckets" env:"DURATION_BUCKETS"`

	// MaxCardinality caps distinct policy label values.
	// Default: 1000
	MaxCardinality int `yaml:"max_cardinality" env:"MAX_CARDINALITY"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Sampler is "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler" env:"SAMPLER"`

	// SampleRatio is used by the ratio sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`

	// Exporter is the span exporter. Only "otlp" is supported.
	// Default: "otlp"
	Exporter string `yaml:"exporter" env:"EXPORTER"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`

	// ServiceName is the service.name resource attribute.
	// Default: "bdl"
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`

	OTLP OTLPConfig `yaml:"otlp" envPrefix:"OTLP_"`
}

// OTLPConfig contains OTLP exporter options.
type OTLPConfig struct {
	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure" env:"INSECURE"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}
