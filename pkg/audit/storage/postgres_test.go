package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/bdl/pkg/audit"
)

var columns = []string{"id", "trace_id", "policy_id", "version", "verdict", "reason_codes", "required_fields", "created_at", "duration_ns", "hash", "payload"}

func newMockStore(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStorage(db, nil), mock
}

func TestPostgresStorage_Save(t *testing.T) {
	s, mock := newMockStore(t)
	r := newRecord("t1", "p", "1.0.0", "compliant", base)

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO traces (" + recordColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)")).
		WithArgs("rec-t1", "t1", "p", "1.0.0", "compliant", `["CODE_t1"]`, `[]`,
			base.UnixNano(), int64(1500*time.Microsecond), "hash-t1", `{"trace_id":"t1"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Save(context.Background(), r)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_SaveError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO traces").WillReturnError(errors.New("connection reset"))

	err := s.Save(context.Background(), newRecord("t1", "p", "1.0.0", "compliant", base))
	var se *audit.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "postgres", se.Backend)
	assert.Equal(t, "save", se.Operation)
}

func TestPostgresStorage_Get(t *testing.T) {
	s, mock := newMockStore(t)
	query := regexp.QuoteMeta("SELECT " + recordColumns + " FROM traces WHERE trace_id = $1")

	mock.ExpectQuery(query).WithArgs("t1").WillReturnRows(
		sqlmock.NewRows(columns).AddRow("rec-t1", "t1", "p", "1.0.0", "needs_info",
			`["MISSING"]`, `["traveler.id"]`, base.UnixNano(), int64(2000), "h", `{"trace_id":"t1"}`))

	r, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "needs_info", r.Verdict)
	assert.Equal(t, []string{"MISSING"}, r.ReasonCodes)
	assert.Equal(t, []string{"traveler.id"}, r.RequiredFields)
	assert.True(t, r.CreatedAt.Equal(base))
	assert.Equal(t, 2*time.Microsecond, r.Duration)

	mock.ExpectQuery(query).WithArgs("nope").WillReturnRows(sqlmock.NewRows(columns))
	_, err = s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, audit.ErrTraceNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_List(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT "+recordColumns+" FROM traces WHERE policy_id = $1 AND verdict = $2 ORDER BY created_at ASC, trace_id ASC LIMIT 10 OFFSET 5")).
		WithArgs("p", "compliant").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("r1", "t1", "p", "1.0.0", "compliant", `[]`, `[]`, base.UnixNano(), int64(1), "h1", `{}`).
			AddRow("r2", "t2", "p", "1.0.0", "compliant", `[]`, `[]`, base.Add(time.Second).UnixNano(), int64(1), "h2", `{}`))

	records, err := s.List(context.Background(), &audit.Query{
		PolicyID: "p", Verdict: "compliant", Limit: 10, Offset: 5, SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, traceIDs(records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_CountAndDelete(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := base.Add(-24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM traces WHERE version = $1")).
		WithArgs("1.0.0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM traces WHERE created_at <= $1")).
		WithArgs(cutoff.UnixNano()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.Count(context.Background(), &audit.Query{Version: "1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	deleted, err := s.Delete(context.Background(), &audit.Query{EndTime: &cutoff})
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_EnsureSchema(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS traces").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
