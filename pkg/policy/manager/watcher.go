package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/bdl/pkg/policy/suite"
)

// FileWatcherConfig selects what a FileWatcher observes.
type FileWatcherConfig struct {
	// Path is a policy directory (watched recursively) or a single file.
	Path string

	// DebounceInterval is the quiet period after the last relevant event
	// before a reload runs.
	DebounceInterval time.Duration

	// Extensions of policy documents. Suite files always count.
	Extensions []string

	SkipHidden bool
}

// DefaultFileWatcherConfig watches YAML and JSON documents with a 100ms
// quiet period.
func DefaultFileWatcherConfig() *FileWatcherConfig {
	return &FileWatcherConfig{
		DebounceInterval: 100 * time.Millisecond,
		Extensions:       []string{".yaml", ".yml", ".json"},
		SkipHidden:       true,
	}
}

// FileWatcher turns fsnotify events under a policy directory into reload
// calls. Events are coalesced: a burst of writes yields one reload once the
// directory has been quiet for DebounceInterval.
type FileWatcher struct {
	fsw    *fsnotify.Watcher
	cfg    FileWatcherConfig
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	quit    chan struct{}
	exited  chan struct{}
	closeFn func() error
}

func NewFileWatcher(cfg *FileWatcherConfig, logger *slog.Logger) (*FileWatcher, error) {
	if cfg == nil {
		cfg = DefaultFileWatcherConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	fw := &FileWatcher{
		fsw:    fsw,
		cfg:    *cfg,
		logger: logger,
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	fw.closeFn = sync.OnceValue(fsw.Close)
	return fw, nil
}

// Watch runs until ctx is done or Stop is called. reload is invoked from
// the watch goroutine, so a slow reload delays the next one rather than
// overlapping it. A FileWatcher is single use.
func (fw *FileWatcher) Watch(ctx context.Context, reload func(path string) error) error {
	fw.mu.Lock()
	if fw.started {
		fw.mu.Unlock()
		return errors.New("watcher already running")
	}
	fw.started = true
	fw.mu.Unlock()
	defer close(fw.exited)
	defer fw.closeFn()

	if err := fw.watchPath(fw.cfg.Path); err != nil {
		return fmt.Errorf("watch %s: %w", fw.cfg.Path, err)
	}
	fw.logger.Info("watching policies",
		"path", fw.cfg.Path,
		"debounce", fw.cfg.DebounceInterval,
	)

	quiet := time.NewTimer(time.Hour)
	quiet.Stop()
	defer quiet.Stop()
	var pending string

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fw.quit:
			return nil

		case <-quiet.C:
			fw.logger.Info("policy files changed, reloading", "path", pending)
			if err := reload(pending); err != nil {
				fw.logger.Error("policy reload failed", "error", err)
			}
			pending = ""

		case ev, ok := <-fw.fsw.Events:
			if !ok {
				return errors.New("fsnotify event stream closed")
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := fw.watchTree(ev.Name); err != nil {
					fw.logger.Warn("cannot watch new directory", "path", ev.Name, "error", err)
				}
				continue
			}
			if !fw.relevant(ev) {
				continue
			}
			fw.logger.Debug("policy file event", "path", ev.Name, "op", ev.Op.String())
			pending = ev.Name
			quiet.Reset(fw.cfg.DebounceInterval)

		case err, ok := <-fw.fsw.Errors:
			if !ok {
				return errors.New("fsnotify error stream closed")
			}
			fw.logger.Error("fsnotify", "error", err)
		}
	}
}

// Stop ends Watch and waits for it to return. Calling Stop before Watch, or
// more than once, is allowed.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	started := fw.started
	select {
	case <-fw.quit:
	default:
		close(fw.quit)
	}
	fw.mu.Unlock()

	if started {
		<-fw.exited
		return nil
	}
	return fw.closeFn()
}

func (fw *FileWatcher) watchPath(path string) error {
	if isDir(path) {
		return fw.watchTree(path)
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	// Editors save by rename, which drops a watch on the file itself.
	return fw.fsw.Add(filepath.Dir(path))
}

func (fw *FileWatcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && fw.cfg.SkipHidden && hidden(path) {
			return filepath.SkipDir
		}
		return fw.fsw.Add(path)
	})
}

func (fw *FileWatcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if fw.cfg.SkipHidden && hidden(ev.Name) {
		return false
	}
	if suite.IsSuiteFile(ev.Name) {
		return true
	}
	ext := filepath.Ext(ev.Name)
	return slices.ContainsFunc(fw.cfg.Extensions, func(e string) bool {
		return strings.EqualFold(e, ext)
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func hidden(path string) bool { return strings.HasPrefix(filepath.Base(path), ".") }
