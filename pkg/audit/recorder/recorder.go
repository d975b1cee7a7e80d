package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/bdl/pkg/audit"
	"mercator-hq/bdl/pkg/policy/engine"
)

// Config contains configuration for the trace recorder.
type Config struct {
	// Enabled enables trace recording.
	Enabled bool

	// AsyncBuffer is the size of the background write queue. Zero writes
	// inline, so a trace is readable as soon as Record returns.
	// Default: 0
	AsyncBuffer int

	// WriteTimeout bounds a single storage write, and in async mode how long
	// Record waits for queue space.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  0,
		WriteTimeout: 5 * time.Second,
	}
}

// WriteObserver is told about every storage write.
type WriteObserver interface {
	RecordTraceWrite(success bool)
}

// Recorder writes evaluation traces to a Store.
type Recorder struct {
	store    audit.Store
	config   *Config
	logger   *slog.Logger
	observer WriteObserver

	recordChan chan *audit.Record
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once

	// pending holds queued records until the worker has written them, so
	// Get sees a trace before it reaches the store.
	pending sync.Map // map[traceID]*audit.Record
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store audit.Store, config *Config, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:  store,
		config: config,
		logger: logger.With("component", "audit.recorder"),
		done:   make(chan struct{}),
	}

	if config.AsyncBuffer > 0 {
		r.recordChan = make(chan *audit.Record, config.AsyncBuffer)
		r.wg.Add(1)
		go r.worker()
	}

	r.logger.Info("trace recorder initialized",
		"enabled", config.Enabled,
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// WithObserver registers a write observer.
func (r *Recorder) WithObserver(o WriteObserver) *Recorder {
	r.observer = o
	return r
}

// Enabled reports whether traces are recorded.
func (r *Recorder) Enabled() bool {
	return r.config.Enabled
}

// NewRecord builds the persisted form of a trace.
func NewRecord(t *engine.Trace) (*audit.Record, error) {
	if t == nil {
		return nil, errors.New("nil trace")
	}
	if t.TraceID == "" {
		return nil, errors.New("trace has no id")
	}
	payload, err := Canonicalize(t)
	if err != nil {
		return nil, fmt.Errorf("canonicalize trace %s: %w", t.TraceID, err)
	}
	return &audit.Record{
		ID:             uuid.NewString(),
		TraceID:        t.TraceID,
		PolicyID:       t.Policy.PolicyID,
		Version:        t.Policy.Version,
		Verdict:        string(t.Verdict),
		ReasonCodes:    t.ReasonCodes,
		RequiredFields: t.RequiredFields,
		CreatedAt:      t.StartedAt.UTC(),
		Duration:       t.Duration,
		Hash:           HashContent(payload),
		Payload:        payload,
	}, nil
}

// Record persists a trace. In async mode the record is queued and Record
// returns once it is accepted.
func (r *Recorder) Record(ctx context.Context, t *engine.Trace) error {
	if !r.config.Enabled {
		return nil
	}
	rec, err := NewRecord(t)
	if err != nil {
		return err
	}

	if r.recordChan == nil {
		return r.write(ctx, rec)
	}

	select {
	case <-r.done:
		return fmt.Errorf("record trace %s: recorder closed", rec.TraceID)
	default:
	}

	r.pending.Store(rec.TraceID, rec)
	select {
	case r.recordChan <- rec:
		r.logger.Debug("trace enqueued for writing", "trace_id", rec.TraceID)
		return nil
	case <-time.After(r.config.WriteTimeout):
		r.pending.Delete(rec.TraceID)
		r.logger.Error("trace queue full, dropping record",
			"trace_id", rec.TraceID,
			"queue_capacity", r.config.AsyncBuffer,
		)
		r.observe(false)
		return fmt.Errorf("record trace %s: %w", rec.TraceID, context.DeadlineExceeded)
	case <-r.done:
		r.pending.Delete(rec.TraceID)
		return fmt.Errorf("record trace %s: recorder closed", rec.TraceID)
	case <-ctx.Done():
		r.pending.Delete(rec.TraceID)
		return ctx.Err()
	}
}

// Get returns the record of a trace, including one still queued.
func (r *Recorder) Get(ctx context.Context, traceID string) (*audit.Record, error) {
	if v, ok := r.pending.Load(traceID); ok {
		return v.(*audit.Record), nil
	}
	return r.store.Get(ctx, traceID)
}

// Store returns the underlying store.
func (r *Recorder) Store() audit.Store {
	return r.store
}

// Close drains the queue and waits for pending writes. The store is not
// closed.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.logger.Info("trace recorder shut down")
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.recordChan:
			r.writeQueued(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.recordChan:
					r.writeQueued(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeQueued(rec *audit.Record) {
	if err := r.write(context.Background(), rec); err != nil {
		r.logger.Error("failed to write trace", "trace_id", rec.TraceID, "error", err)
	}
	r.pending.Delete(rec.TraceID)
}

func (r *Recorder) write(ctx context.Context, rec *audit.Record) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.WriteTimeout)
	defer cancel()

	err := r.store.Save(ctx, rec)
	r.observe(err == nil)
	if err != nil {
		return fmt.Errorf("record trace %s: %w", rec.TraceID, err)
	}
	return nil
}

func (r *Recorder) observe(success bool) {
	if r.observer != nil {
		r.observer.RecordTraceWrite(success)
	}
}
