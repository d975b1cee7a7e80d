package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/bdl/pkg/audit"
)

// recordColumns is the column list shared by every SQL backend, in scan order.
const recordColumns = "id, trace_id, policy_id, version, verdict, reason_codes, required_fields, created_at, duration_ns, hash, payload"

// sqlBackend implements audit.Store over database/sql. Dialects differ only
// in their bind placeholders. created_at is stored as unix nanoseconds so
// range filters and ordering behave the same on every driver.
type sqlBackend struct {
	db      *sql.DB
	backend string
	bind    func(n int) string
	logger  *slog.Logger
}

func questionMarks(int) string { return "?" }

func dollarN(n int) string { return fmt.Sprintf("$%d", n) }

func (b *sqlBackend) placeholders(count int) string {
	ps := make([]string, count)
	for i := range ps {
		ps[i] = b.bind(i + 1)
	}
	return strings.Join(ps, ", ")
}

func (b *sqlBackend) insertSQL() string {
	return "INSERT INTO traces (" + recordColumns + ") VALUES (" + b.placeholders(11) + ")"
}

// Save inserts record.
func (b *sqlBackend) Save(ctx context.Context, record *audit.Record) error {
	reasonCodes, err := json.Marshal(nonNil(record.ReasonCodes))
	if err != nil {
		return audit.NewStorageError(b.backend, "save", err)
	}
	requiredFields, err := json.Marshal(nonNil(record.RequiredFields))
	if err != nil {
		return audit.NewStorageError(b.backend, "save", err)
	}

	_, err = b.db.ExecContext(ctx, b.insertSQL(),
		record.ID, record.TraceID, record.PolicyID, record.Version, record.Verdict,
		string(reasonCodes), string(requiredFields),
		record.CreatedAt.UnixNano(), int64(record.Duration),
		record.Hash, string(record.Payload),
	)
	if err != nil {
		return audit.NewStorageError(b.backend, "save", err)
	}
	return nil
}

// Get returns the record for traceID.
func (b *sqlBackend) Get(ctx context.Context, traceID string) (*audit.Record, error) {
	query := "SELECT " + recordColumns + " FROM traces WHERE trace_id = " + b.bind(1)
	record, err := scanRecord(b.db.QueryRowContext(ctx, query, traceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", audit.ErrTraceNotFound, traceID)
	}
	if err != nil {
		return nil, audit.NewStorageError(b.backend, "get", err)
	}
	return record, nil
}

// List returns matching records.
func (b *sqlBackend) List(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	if query == nil {
		query = &audit.Query{}
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	sqlQuery, args := b.listSQL(query)
	rows, err := b.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError(b.backend, "list", err)
	}
	defer rows.Close()

	records := []*audit.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, audit.NewStorageError(b.backend, "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError(b.backend, "list", err)
	}
	return records, nil
}

func (b *sqlBackend) listSQL(query *audit.Query) (string, []interface{}) {
	whereClause, args := b.buildWhereClause(query)

	sqlQuery := "SELECT " + recordColumns + " FROM traces"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	order := "DESC"
	if query.Ascending() {
		order = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY created_at %s, trace_id %s", order, order)
	sqlQuery += fmt.Sprintf(" LIMIT %d", query.EffectiveLimit())
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}
	return sqlQuery, args
}

// Count returns the number of matching records.
func (b *sqlBackend) Count(ctx context.Context, query *audit.Query) (int64, error) {
	if query == nil {
		query = &audit.Query{}
	}
	whereClause, args := b.buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM traces"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := b.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError(b.backend, "count", err)
	}
	return count, nil
}

// Delete removes matching records.
func (b *sqlBackend) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	if query == nil {
		query = &audit.Query{}
	}
	whereClause, args := b.buildWhereClause(query)

	sqlQuery := "DELETE FROM traces"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	result, err := b.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, audit.NewStorageError(b.backend, "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError(b.backend, "delete", err)
	}
	return count, nil
}

// buildWhereClause builds a SQL WHERE clause from query filters.
// Returns the WHERE clause (without "WHERE" keyword) and the query arguments.
func (b *sqlBackend) buildWhereClause(query *audit.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(column, op string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s %s %s", column, op, b.bind(len(args))))
	}

	if query.StartTime != nil {
		add("created_at", ">=", query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		add("created_at", "<=", query.EndTime.UnixNano())
	}
	if query.PolicyID != "" {
		add("policy_id", "=", query.PolicyID)
	}
	if query.Version != "" {
		add("version", "=", query.Version)
	}
	if query.Verdict != "" {
		add("verdict", "=", query.Verdict)
	}

	return strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans one row selected with recordColumns.
func scanRecord(row rowScanner) (*audit.Record, error) {
	var record audit.Record
	var reasonCodes, requiredFields, payload string
	var createdAt, duration int64

	err := row.Scan(
		&record.ID, &record.TraceID, &record.PolicyID, &record.Version, &record.Verdict,
		&reasonCodes, &requiredFields,
		&createdAt, &duration,
		&record.Hash, &payload,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(reasonCodes), &record.ReasonCodes); err != nil {
		return nil, fmt.Errorf("decode reason codes: %w", err)
	}
	if err := json.Unmarshal([]byte(requiredFields), &record.RequiredFields); err != nil {
		return nil, fmt.Errorf("decode required fields: %w", err)
	}
	record.CreatedAt = time.Unix(0, createdAt).UTC()
	record.Duration = time.Duration(duration)
	record.Payload = json.RawMessage(payload)
	return &record, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
