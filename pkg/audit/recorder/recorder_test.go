package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"mercator-hq/bdl/pkg/audit"
	"mercator-hq/bdl/pkg/audit/storage"
	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/policy/engine"
)

func testTrace(id string) *engine.Trace {
	return &engine.Trace{
		TraceID:        id,
		Policy:         ast.PolicyRef{PolicyID: "expenses", Version: "2.1.0"},
		Chain:          []ast.PolicyRef{{PolicyID: "expenses", Version: "2.1.0"}},
		Now:            time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Params:         map[string]interface{}{"limit": 25.0, "region": "EU"},
		Profile:        engine.DefaultProfile(),
		Verdict:        ast.VerdictNeedsReview,
		ReasonCodes:    []string{"ITEMIZATION_REQUIRED"},
		RequiredFields: []string{"evidence:ITEMIZED_RECEIPT"},
		StartedAt:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Duration:       250 * time.Microsecond,
	}
}

type countingObserver struct {
	ok, failed atomic.Int32
}

func (o *countingObserver) RecordTraceWrite(success bool) {
	if success {
		o.ok.Add(1)
	} else {
		o.failed.Add(1)
	}
}

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord(testTrace("t1"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.PolicyID != "expenses" || rec.Version != "2.1.0" || rec.Verdict != "needs_review" {
		t.Errorf("record summary = %+v", rec)
	}
	if len(rec.Hash) != 64 || rec.ID == "" {
		t.Errorf("hash = %q, id = %q", rec.Hash, rec.ID)
	}
	if err := Verify(rec); err != nil {
		t.Errorf("fresh record failed verification: %v", err)
	}

	again, _ := NewRecord(testTrace("t1"))
	if again.Hash != rec.Hash {
		t.Error("identical traces must hash identically")
	}

	decoded, err := rec.Trace()
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Verdict != ast.VerdictNeedsReview || decoded.RequiredFields[0] != "evidence:ITEMIZED_RECEIPT" {
		t.Errorf("decoded trace = %+v", decoded)
	}

	if _, err := NewRecord(nil); err == nil {
		t.Error("nil trace accepted")
	}
	if _, err := NewRecord(&engine.Trace{}); err == nil {
		t.Error("trace without id accepted")
	}
}

func TestVerify(t *testing.T) {
	rec, err := NewRecord(testTrace("t1"))
	if err != nil {
		t.Fatal(err)
	}

	// Re-encoding with different key order and whitespace still verifies.
	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Payload, &doc); err != nil {
		t.Fatal(err)
	}
	pretty, _ := json.MarshalIndent(doc, "", "    ")
	reencoded := *rec
	reencoded.Payload = pretty
	if err := Verify(&reencoded); err != nil {
		t.Errorf("re-encoded payload failed verification: %v", err)
	}

	doc["verdict"] = "compliant"
	tampered := *rec
	tampered.Payload, _ = json.Marshal(doc)
	var ie *audit.IntegrityError
	if err := Verify(&tampered); !errors.As(err, &ie) {
		t.Errorf("tampered payload error = %v, want IntegrityError", err)
	}
}

func TestRecordSync(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	store := storage.NewMemoryStorage()
	obs := &countingObserver{}
	r := NewRecorder(store, nil, nil).WithObserver(obs)
	defer r.Close()

	if err := r.Record(ctx, testTrace("t1")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "t1"); err != nil {
		t.Fatalf("inline write not visible: %v", err)
	}
	if err := r.Record(ctx, testTrace("t1")); err == nil {
		t.Error("duplicate trace accepted")
	}
	if obs.ok.Load() != 1 || obs.failed.Load() != 1 {
		t.Errorf("observer ok=%d failed=%d", obs.ok.Load(), obs.failed.Load())
	}
}

func TestRecordDisabled(t *testing.T) {
	store := storage.NewMemoryStorage()
	r := NewRecorder(store, &Config{Enabled: false}, nil)
	if err := r.Record(context.Background(), testTrace("t1")); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(context.Background(), nil); n != 0 {
		t.Errorf("disabled recorder wrote %d records", n)
	}
}

func TestRecordAsyncDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	store := storage.NewMemoryStorage()
	r := NewRecorder(store, &Config{Enabled: true, AsyncBuffer: 16, WriteTimeout: time.Second}, nil)

	ids := []string{"t1", "t2", "t3", "t4"}
	for _, id := range ids {
		if err := r.Record(ctx, testTrace(id)); err != nil {
			t.Fatal(err)
		}
		if _, err := r.Get(ctx, id); err != nil {
			t.Errorf("Get(%s) right after Record: %v", id, err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	n, err := store.Count(ctx, nil)
	if err != nil || n != int64(len(ids)) {
		t.Errorf("stored %d records (%v), want %d", n, err, len(ids))
	}
	if err := r.Record(ctx, testTrace("late")); err == nil {
		t.Error("Record after Close must fail")
	}
}
