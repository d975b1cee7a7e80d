package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/bdl/pkg/audit"
)

// MemoryStorage implements audit.Store with an in-memory map. Records are
// lost on restart.
type MemoryStorage struct {
	records map[string]*audit.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*audit.Record),
	}
}

// Save stores a copy of record.
func (s *MemoryStorage) Save(_ context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.TraceID]; ok {
		return audit.NewStorageError("memory", "save", fmt.Errorf("%w: %s", audit.ErrDuplicateTrace, record.TraceID))
	}
	s.records[record.TraceID] = copyRecord(record)
	return nil
}

// Get returns a copy of the record for traceID.
func (s *MemoryStorage) Get(_ context.Context, traceID string) (*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[traceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", audit.ErrTraceNotFound, traceID)
	}
	return copyRecord(r), nil
}

// List returns copies of the matching records.
func (s *MemoryStorage) List(_ context.Context, query *audit.Query) ([]*audit.Record, error) {
	if query == nil {
		query = &audit.Query{}
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := s.matching(query)
	s.mu.RUnlock()

	return paginate(matched, query), nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(_ context.Context, query *audit.Query) (int64, error) {
	if query == nil {
		query = &audit.Query{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matching(query))), nil
}

// Delete removes the matching records.
func (s *MemoryStorage) Delete(_ context.Context, query *audit.Query) (int64, error) {
	if query == nil {
		query = &audit.Query{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.records {
		if query.Matches(r) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) matching(query *audit.Query) []*audit.Record {
	var out []*audit.Record
	for _, r := range s.records {
		if query.Matches(r) {
			out = append(out, copyRecord(r))
		}
	}
	return out
}

// paginate orders records by creation time (trace id breaks ties) and
// applies offset and limit.
func paginate(records []*audit.Record, query *audit.Query) []*audit.Record {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if query.Ascending() {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if query.Ascending() {
			return a.TraceID < b.TraceID
		}
		return a.TraceID > b.TraceID
	})

	if query.Offset >= len(records) {
		return []*audit.Record{}
	}
	records = records[query.Offset:]
	if limit := query.EffectiveLimit(); len(records) > limit {
		records = records[:limit]
	}
	return records
}

func copyRecord(r *audit.Record) *audit.Record {
	c := *r
	c.ReasonCodes = cloneStrings(r.ReasonCodes)
	c.RequiredFields = cloneStrings(r.RequiredFields)
	c.Payload = append([]byte(nil), r.Payload...)
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
