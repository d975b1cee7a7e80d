// Package storage provides audit.Store backends.
//
//   - MemoryStorage: map guarded by a RWMutex, for tests and one-shot CLI runs
//   - SQLiteStorage: embedded database with WAL mode and a versioned schema
//   - PostgresStorage: shared database, $n placeholders through lib/pq
//   - RedisStorage: records as JSON keys with optional TTL plus a time index
//
// The SQL backends share one implementation; created_at is stored as unix
// nanoseconds so time filters do not depend on driver time encodings.
//
//	store, err := storage.Open(ctx, &storage.Config{
//	    Backend: storage.BackendSQLite,
//	    SQLite:  &storage.SQLiteConfig{Path: "data/traces.db", WALMode: true},
//	}, logger)
package storage
