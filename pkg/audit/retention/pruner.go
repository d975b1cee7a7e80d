package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/bdl/pkg/audit"
	"mercator-hq/bdl/pkg/audit/export"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain traces.
	// 0 means keep traces forever (no age pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string

	// ArchiveBeforeDelete writes pruned records to ArchivePath as JSON first.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory to store archives.
	ArchivePath string

	// MaxRecords is the maximum number of records to keep.
	// 0 means unlimited.
	MaxRecords int64
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays:       90,
		PruneSchedule:       "0 3 * * *",
		ArchiveBeforeDelete: false,
		ArchivePath:         "data/archives/",
		MaxRecords:          0,
	}
}

// Observer is told how many records each prune pass removed.
type Observer interface {
	RecordTracesPruned(n int64)
}

// Pruner enforces retention on a trace store.
type Pruner struct {
	store     audit.Store
	config    *Config
	logger    *slog.Logger
	now       func() time.Time
	scheduler *Scheduler
	observer  Observer
}

// NewPruner creates a new retention pruner.
func NewPruner(store audit.Store, config *Config, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pruner{
		store:  store,
		config: config,
		logger: logger.With("component", "audit.retention"),
		now:    time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// WithClock replaces the clock used for age cutoffs.
func (p *Pruner) WithClock(now func() time.Time) *Pruner {
	if now != nil {
		p.now = now
	}
	return p
}

// WithObserver registers a prune observer.
func (p *Pruner) WithObserver(o Observer) *Pruner {
	p.observer = o
	return p
}

// Prune deletes records older than the retention period, then the oldest
// records beyond MaxRecords. Returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var totalDeleted int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by age failed: %w", err)
		}
		totalDeleted += deleted
		p.logger.Info("pruned traces by age",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
		)
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by count failed: %w", err)
		}
		totalDeleted += deleted
		p.logger.Info("pruned traces by count",
			"deleted_count", deleted,
			"max_records", p.config.MaxRecords,
		)
	}

	if totalDeleted == 0 {
		p.logger.Debug("no traces pruned")
	}
	if p.observer != nil {
		p.observer.RecordTracesPruned(totalDeleted)
	}
	return totalDeleted, nil
}

// pruneByAge deletes records created before now minus RetentionDays.
func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
	query := &audit.Query{EndTime: &cutoff}

	if p.config.ArchiveBeforeDelete {
		records, err := p.all(ctx, query)
		if err != nil {
			return 0, audit.NewRetentionError(p.config.RetentionDays, err)
		}
		if err := p.archive(ctx, records, "age"); err != nil {
			return 0, audit.NewRetentionError(p.config.RetentionDays, err)
		}
	}

	deleted, err := p.store.Delete(ctx, query)
	if err != nil {
		return 0, audit.NewRetentionError(p.config.RetentionDays, err)
	}
	return deleted, nil
}

// pruneByCount deletes the oldest records when the total exceeds
// MaxRecords. Records sharing the cutoff instant are deleted together.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.store.Count(ctx, &audit.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}
	toDelete := count - p.config.MaxRecords

	oldest, err := p.store.List(ctx, &audit.Query{SortOrder: "asc", Limit: int(toDelete)})
	if err != nil {
		return 0, fmt.Errorf("failed to list records: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	if p.config.ArchiveBeforeDelete {
		if err := p.archive(ctx, oldest, "count"); err != nil {
			return 0, fmt.Errorf("archive failed: %w", err)
		}
	}

	cutoff := oldest[len(oldest)-1].CreatedAt
	deleted, err := p.store.Delete(ctx, &audit.Query{EndTime: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return deleted, nil
}

// all pages through every record matching query.
func (p *Pruner) all(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	var out []*audit.Record
	page := *query
	page.SortOrder = "asc"
	page.Limit = 500
	for {
		records, err := p.store.List(ctx, &page)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
		if len(records) < page.Limit {
			return out, nil
		}
		page.Offset += len(records)
	}
}

// archive writes records to a timestamped JSON file under ArchivePath.
func (p *Pruner) archive(ctx context.Context, records []*audit.Record, reason string) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("traces-%s-%s.json", reason, p.now().UTC().Format("2006-01-02-150405"))
	archiveFile := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return fmt.Errorf("failed to export records to archive: %w", err)
	}

	p.logger.Info("traces archived",
		"archive_file", archiveFile,
		"record_count", len(records),
	)
	return nil
}

// Start starts the automatic pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
