package git

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ReloadFunc reloads policies from the clone's policy directory.
type ReloadFunc func(ctx context.Context) error

// Watcher polls a repository and reloads policies when a pull brings in
// changed documents or suites. Commits that touch only other files are
// skipped. Rapid successive changes are debounced into one reload.
//
// A failed reload leaves the clone at the new commit. The policy manager
// keeps serving the last good compiled form of every version that failed, so
// the next commit that fixes the documents recovers without intervention.
type Watcher struct {
	repo     *Repository
	reload   ReloadFunc
	interval time.Duration
	debounce time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	running    bool
	stop       chan struct{}
	done       chan struct{}
	timer      *time.Timer
	lastLoaded string
	stats      WatcherStats
}

// WatcherStats counts watcher activity.
type WatcherStats struct {
	Polls             int64
	SkippedChanges    int64
	SuccessfulReloads int64
	FailedReloads     int64
	LastReloadTime    time.Time
	LastReloadDur     time.Duration
}

// NewWatcher creates a watcher using the repository's poll interval and
// debounce settings.
func NewWatcher(repo *Repository, reload ReloadFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		repo:     repo,
		reload:   reload,
		interval: repo.config.PollInterval,
		debounce: repo.config.Debounce,
		logger:   logger.With("component", "git_watcher", "repository", repo.config.URL),
	}
}

// Start begins polling in the background until ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	head, err := w.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get initial commit: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.lastLoaded = head.SHA
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	w.logger.Info("git watcher started",
		"branch", w.repo.config.Branch,
		"poll_interval", w.interval,
		"commit", short(head.SHA),
	)
	go w.loop(ctx, w.stop, w.done)
	return nil
}

// Stop ends polling and cancels a pending reload. It waits for the poll
// loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	if w.timer != nil {
		w.timer.Stop()
	}
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("git watcher stopped")
}

func (w *Watcher) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := w.Check(ctx); err != nil {
				w.logger.Error("failed to check for policy changes", "error", err)
			}
		}
	}
}

// Check pulls once and schedules a reload when policy files changed.
func (w *Watcher) Check(ctx context.Context) error {
	w.mu.Lock()
	w.stats.Polls++
	w.mu.Unlock()

	res, err := w.repo.Pull(ctx)
	if err != nil {
		return err
	}
	if !res.HadChanges() {
		return nil
	}

	changed := 0
	for _, f := range res.ChangedFiles {
		if w.repo.IsPolicyChange(f) {
			changed++
		}
	}
	if changed == 0 {
		w.mu.Lock()
		w.stats.SkippedChanges++
		w.mu.Unlock()
		w.logger.Debug("commit touches no policy files",
			"from", short(res.FromSHA),
			"to", short(res.ToSHA),
			"files", len(res.ChangedFiles),
		)
		return nil
	}

	w.logger.Info("policy changes pulled",
		"from", short(res.FromSHA),
		"to", short(res.ToSHA),
		"policy_files", changed,
	)
	w.schedule(ctx, res.ToSHA)
	return nil
}

func (w *Watcher) schedule(ctx context.Context, sha string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.apply(ctx, sha) })
}

func (w *Watcher) apply(ctx context.Context, sha string) {
	start := time.Now()
	err := w.reload(ctx)
	dur := time.Since(start)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.LastReloadTime = time.Now()
	w.stats.LastReloadDur = dur
	if err != nil {
		w.stats.FailedReloads++
		w.logger.Error("reload from repository failed, keeping last good policies",
			"commit", short(sha),
			"last_loaded", short(w.lastLoaded),
			"error", err,
		)
		return
	}
	w.stats.SuccessfulReloads++
	w.logger.Info("policies reloaded from repository",
		"from", short(w.lastLoaded),
		"to", short(sha),
		"duration_ms", dur.Milliseconds(),
	)
	w.lastLoaded = sha
}

// LastLoaded returns the commit policies were last loaded from.
func (w *Watcher) LastLoaded() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastLoaded
}

// Stats returns a copy of the watcher counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
