package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// SQLiteSchema contains the SQL statements to create the trace database schema.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS traces (
    id TEXT PRIMARY KEY,
    trace_id TEXT NOT NULL UNIQUE,
    policy_id TEXT NOT NULL,
    version TEXT NOT NULL,
    verdict TEXT NOT NULL,
    reason_codes TEXT NOT NULL,
    required_fields TEXT NOT NULL,
    created_at INTEGER NOT NULL, -- unix nanoseconds
    duration_ns INTEGER NOT NULL,
    hash TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at);
CREATE INDEX IF NOT EXISTS idx_traces_policy ON traces(policy_id, version);
CREATE INDEX IF NOT EXISTS idx_traces_verdict ON traces(verdict);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

// PostgresSchema creates the trace table on PostgreSQL.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS traces (
    id TEXT PRIMARY KEY,
    trace_id TEXT NOT NULL UNIQUE,
    policy_id TEXT NOT NULL,
    version TEXT NOT NULL,
    verdict TEXT NOT NULL,
    reason_codes TEXT NOT NULL,
    required_fields TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    duration_ns BIGINT NOT NULL,
    hash TEXT NOT NULL,
    payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at);
CREATE INDEX IF NOT EXISTS idx_traces_policy ON traces(policy_id, version);
CREATE INDEX IF NOT EXISTS idx_traces_verdict ON traces(verdict);
`
