package retention

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/bdl/pkg/audit"
	"mercator-hq/bdl/pkg/audit/storage"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, store audit.Store, ages ...time.Duration) {
	t.Helper()
	for i, age := range ages {
		r := &audit.Record{
			ID:        "id-" + string(rune('a'+i)),
			TraceID:   "trace-" + string(rune('a'+i)),
			PolicyID:  "expenses",
			Version:   "1.0.0",
			Verdict:   "ALLOW",
			CreatedAt: now.Add(-age),
			Payload:   json.RawMessage(`{}`),
		}
		if err := store.Save(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
}

func count(t *testing.T, store audit.Store) int64 {
	t.Helper()
	n, err := store.Count(context.Background(), &audit.Query{})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

type pruneCounter struct{ total int64 }

func (c *pruneCounter) RecordTracesPruned(n int64) { c.total += n }

func TestPruneByAge(t *testing.T) {
	store := storage.NewMemoryStorage()
	day := 24 * time.Hour
	seed(t, store, time.Hour, 10*day, 40*day, 100*day)

	obs := &pruneCounter{}
	p := NewPruner(store, &Config{RetentionDays: 30}, nil).
		WithClock(func() time.Time { return now }).
		WithObserver(obs)
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if obs.total != 2 {
		t.Errorf("observed = %d, want 2", obs.total)
	}
	if n := count(t, store); n != 2 {
		t.Errorf("remaining = %d, want 2", n)
	}
	if _, err := store.Get(context.Background(), "trace-a"); err != nil {
		t.Errorf("newest trace was pruned: %v", err)
	}
}

func TestPruneByCount(t *testing.T) {
	store := storage.NewMemoryStorage()
	seed(t, store, time.Minute, 2*time.Minute, 3*time.Minute, 4*time.Minute, 5*time.Minute)

	p := NewPruner(store, &Config{MaxRecords: 3}, nil)
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	for _, id := range []string{"trace-d", "trace-e"} {
		if _, err := store.Get(context.Background(), id); err == nil {
			t.Errorf("%s should have been pruned", id)
		}
	}

	// Under the limit: nothing to do.
	deleted, err = p.Prune(context.Background())
	if err != nil || deleted != 0 {
		t.Errorf("second prune = %d, %v", deleted, err)
	}
}

func TestPruneDisabled(t *testing.T) {
	store := storage.NewMemoryStorage()
	seed(t, store, 1000*24*time.Hour)

	deleted, err := NewPruner(store, &Config{}, nil).Prune(context.Background())
	if err != nil || deleted != 0 {
		t.Fatalf("Prune = %d, %v", deleted, err)
	}
}

func TestPruneArchives(t *testing.T) {
	store := storage.NewMemoryStorage()
	seed(t, store, time.Hour, 60*24*time.Hour)
	dir := filepath.Join(t.TempDir(), "archives")

	p := NewPruner(store, &Config{
		RetentionDays:       30,
		ArchiveBeforeDelete: true,
		ArchivePath:         dir,
	}, nil).WithClock(func() time.Time { return now })
	if _, err := p.Prune(context.Background()); err != nil {
		t.Fatal(err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "traces-age-*.json"))
	if err != nil || len(files) != 1 {
		t.Fatalf("archives = %v, %v", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	var archived []audit.Record
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 || archived[0].TraceID != "trace-b" {
		t.Errorf("archived = %+v", archived)
	}
}
