package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"mercator-hq/bdl/pkg/policy/engine"
)

// Record is the persisted form of one evaluation trace.
type Record struct {
	// ID is the record identifier (UUID v4).
	ID string `json:"id"`

	// TraceID is the evaluation trace id echoed in the decision.
	TraceID string `json:"trace_id"`

	// Policy identity
	PolicyID string `json:"policy_id"`
	Version  string `json:"version"`

	// Decision summary, duplicated from the payload for filtering.
	Verdict        string   `json:"verdict"`
	ReasonCodes    []string `json:"reason_codes"`
	RequiredFields []string `json:"required_fields"`

	// CreatedAt is when the evaluation started.
	CreatedAt time.Time `json:"created_at"`

	// Duration is the evaluation time.
	Duration time.Duration `json:"duration_ns"`

	// Hash is the hex SHA-256 of Payload.
	Hash string `json:"hash"`

	// Payload is the trace in canonical JSON (RFC 8785).
	Payload json.RawMessage `json:"payload"`
}

// Trace decodes the stored payload.
func (r *Record) Trace() (*engine.Trace, error) {
	var t engine.Trace
	if err := json.Unmarshal(r.Payload, &t); err != nil {
		return nil, fmt.Errorf("decode trace %s: %w", r.TraceID, err)
	}
	return &t, nil
}

// Query defines filter parameters for listing records.
type Query struct {
	// Time range on CreatedAt
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive start time
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive end time

	// Filters
	PolicyID string `json:"policy_id,omitempty"`
	Version  string `json:"version,omitempty"`
	Verdict  string `json:"verdict,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max records to return (default 100)
	Offset int `json:"offset,omitempty"` // Skip N records

	// SortOrder is "asc" or "desc" on CreatedAt (default "desc").
	SortOrder string `json:"sort_order,omitempty"`
}

// DefaultQueryLimit applies when Query.Limit is zero.
const DefaultQueryLimit = 100

// Validate checks the query parameters.
func (q *Query) Validate() error {
	if q.Limit < 0 || q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("limit and offset must not be negative"))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return NewQueryError(q, fmt.Errorf("start time is after end time"))
	}
	switch q.SortOrder {
	case "", "asc", "desc":
	default:
		return NewQueryError(q, fmt.Errorf("invalid sort order %q", q.SortOrder))
	}
	return nil
}

// Ascending reports whether results are ordered oldest first.
func (q *Query) Ascending() bool {
	return q.SortOrder == "asc"
}

// EffectiveLimit returns Limit or DefaultQueryLimit.
func (q *Query) EffectiveLimit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	return DefaultQueryLimit
}

// Matches reports whether r satisfies the filters of q. Pagination is not
// applied. Backends that filter in memory use it.
func (q *Query) Matches(r *Record) bool {
	if q.StartTime != nil && r.CreatedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.CreatedAt.After(*q.EndTime) {
		return false
	}
	if q.PolicyID != "" && r.PolicyID != q.PolicyID {
		return false
	}
	if q.Version != "" && r.Version != q.Version {
		return false
	}
	if q.Verdict != "" && r.Verdict != q.Verdict {
		return false
	}
	return true
}

// Store defines the interface for trace storage backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists a record. Saving a trace id twice is an error.
	Save(ctx context.Context, record *Record) error

	// Get returns the record for a trace id, or ErrTraceNotFound.
	Get(ctx context.Context, traceID string) (*Record, error)

	// List returns records matching the query, newest first by default.
	List(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the query filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the query filters and returns how
	// many were removed. Pagination fields are ignored.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Exporter writes records to w in some format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
