package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/policy/composer"
	"mercator-hq/bdl/pkg/policy/engine"
	"mercator-hq/bdl/pkg/policy/suite"
)

// ReloadObserver is notified after every load attempt.
type ReloadObserver interface {
	RecordPolicyReload(success bool, versions int)
}

// Manager loads policy documents from disk, composes and compiles every
// version eagerly and serves them from a registry. It implements
// composer.Loader over the documents it holds.
type Manager struct {
	config   *Config
	loader   *PolicyLoader
	registry *PolicyRegistry
	logger   *slog.Logger
	clock    func() time.Time

	compObserver   composer.Observer
	reloadObserver ReloadObserver

	// mu serializes loads; registry reads do not take it.
	mu            sync.Mutex
	loaded        bool
	lastLoadTime  time.Time
	lastLoadError error
	lastResult    *LoadResult

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithCompositionObserver forwards composition cache events to o.
func WithCompositionObserver(o composer.Observer) Option {
	return func(m *Manager) { m.compObserver = o }
}

// WithReloadObserver reports load outcomes to o.
func WithReloadObserver(o ReloadObserver) Option {
	return func(m *Manager) { m.reloadObserver = o }
}

// WithClock overrides the clock used for effective-window reporting.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager creates a policy manager. Policies are not read until
// LoadPolicies is called.
func NewManager(config *Config, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if config.Dir == "" {
		return nil, errors.New("policy directory must be set")
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		config:   config,
		loader:   NewPolicyLoader(config.Loader),
		registry: NewPolicyRegistry(),
		logger:   logger.With("component", "policy.manager"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// LoadPolicies performs the initial load. It fails when the directory cannot
// be read or no policy version compiles; individual broken versions are
// reported in the result and skipped.
func (m *Manager) LoadPolicies(ctx context.Context) (*LoadResult, error) {
	return m.load(ctx, "load")
}

// ReloadPolicies re-reads the policy directory. Versions that fail to load
// keep their previously compiled form (last-good), and a reload that cannot
// read the directory at all leaves the registry untouched.
func (m *Manager) ReloadPolicies(ctx context.Context) (*LoadResult, error) {
	return m.load(ctx, "reload")
}

func (m *Manager) load(ctx context.Context, op string) (*LoadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	m.logger.Info("loading policies", "operation", op, "path", m.config.Dir)

	res, entries, err := m.build(ctx)
	if err == nil && len(entries) == 0 {
		err = &ErrorList{Errors: append([]error{errors.New("no policy version could be compiled")}, res.Errors...)}
	}
	if err == nil {
		err = m.registry.Replace(entries)
	}
	res.LoadTime = time.Since(start)

	if err != nil {
		m.lastLoadError = err
		m.notify(false)
		m.logger.Error("failed to load policies, keeping previous policies",
			"operation", op,
			"error", err,
			"duration_ms", res.LoadTime.Milliseconds(),
		)
		return res, err
	}

	res.Version = m.registry.GetVersion()
	m.loaded = true
	m.lastLoadTime = time.Now()
	m.lastLoadError = nil
	m.lastResult = res
	m.notify(true)

	for _, e := range res.Errors {
		m.logger.Warn("policy version not loaded", "error", e)
	}
	m.logger.Info("policies loaded",
		"operation", op,
		"versions", len(entries),
		"retained", len(res.Retained),
		"errors", len(res.Errors),
		"version", res.Version,
		"duration_ms", res.LoadTime.Milliseconds(),
	)
	return res, nil
}

func (m *Manager) notify(success bool) {
	if m.reloadObserver != nil {
		m.reloadObserver.RecordPolicyReload(success, m.registry.Count())
	}
}

// build reads the directory and produces the next set of entries. A version
// that cannot be parsed, composed or compiled falls back to the entry
// currently in the registry, if there is one.
func (m *Manager) build(ctx context.Context) (*LoadResult, []*Entry, error) {
	res := &LoadResult{}

	bundle, err := m.loader.Load(m.config.Dir)
	if err != nil {
		res.Errors = append(res.Errors, err)
		return res, nil, err
	}
	res.FileCount = len(bundle.Sources) + countFailedDocuments(bundle)
	res.SuiteCount = len(bundle.Suites)
	res.Errors = append(res.Errors, bundle.Errors.Errors...)

	sources := make(map[ast.PolicyRef]*Source, len(bundle.Sources))
	var refs []ast.PolicyRef
	for _, src := range bundle.Sources {
		ref := src.Document.Ref()
		if prev, dup := sources[ref]; dup {
			res.Errors = append(res.Errors, &LoadError{
				FilePath: src.Path,
				Message:  fmt.Sprintf("%s is already defined in %s", ref, prev.Path),
			})
			continue
		}
		sources[ref] = src
		refs = append(refs, ref)
		res.Warnings = append(res.Warnings, src.Warnings...)
	}

	opts := []composer.Option{composer.WithLogger(m.logger)}
	if m.config.MaxChainLength > 0 {
		opts = append(opts, composer.WithMaxChainLength(m.config.MaxChainLength))
	}
	if m.compObserver != nil {
		opts = append(opts, composer.WithObserver(m.compObserver))
	}
	failed := failedFiles(bundle)
	lastGood := func(ref ast.PolicyRef) (*Entry, bool) {
		prev, ok := m.registry.Get(ref)
		if !ok || !failed[prev.SourceFile] {
			return nil, false
		}
		return prev, true
	}
	comp := composer.New(composer.LoaderFunc(func(_ context.Context, ref ast.PolicyRef) (*ast.Document, error) {
		if src, ok := sources[ref]; ok {
			return src.Document, nil
		}
		if prev, ok := lastGood(ref); ok {
			return prev.Document, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, ref)
	}), opts...)

	now := time.Now()
	built := make(map[ast.PolicyRef]*Entry, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return res, nil, err
		}
		src := sources[ref]
		eff, err := comp.Resolve(ctx, ref)
		if err != nil {
			res.Errors = append(res.Errors, &RegistryError{
				PolicyID: ref.PolicyID, Version: ref.Version,
				Operation: "compose", Message: "cannot compose", Cause: err,
			})
			continue
		}
		prog, err := engine.Compile(eff)
		if err != nil {
			res.Errors = append(res.Errors, &RegistryError{
				PolicyID: ref.PolicyID, Version: ref.Version,
				Operation: "compile", Message: "cannot compile", Cause: err,
			})
			continue
		}
		built[ref] = &Entry{
			Ref:        ref,
			Document:   src.Document,
			Effective:  eff,
			Program:    prog,
			Hash:       src.Hash,
			SourceFile: src.Path,
			LoadedAt:   now,
			Warnings:   src.Warnings,
		}
		res.Loaded = append(res.Loaded, ref)
	}

	// Last-good fallback for versions that were loaded before. A version
	// whose file was removed is dropped.
	for _, prev := range m.registry.GetAll() {
		if _, ok := built[prev.Ref]; ok {
			continue
		}
		if _, present := sources[prev.Ref]; !present && !failed[prev.SourceFile] {
			continue
		}
		retained := *prev
		retained.Suite = nil
		built[prev.Ref] = &retained
		res.Retained = append(res.Retained, prev.Ref)
	}

	for _, s := range bundle.Suites {
		e, ok := built[s.Ref()]
		if !ok {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s: suite targets %s which is not loaded", s.SourceFile, s.Ref()))
			continue
		}
		if e.Suite != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s: %s already has a suite in %s", s.SourceFile, s.Ref(), e.Suite.SourceFile))
			continue
		}
		e.Suite = s
	}

	entries := make([]*Entry, 0, len(built))
	for _, e := range built {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Ref.String() < entries[j].Ref.String() })
	return res, entries, nil
}

// failedFiles returns the paths of files that exist but failed to load, as
// opposed to files that were removed.
func failedFiles(b *Bundle) map[string]bool {
	out := make(map[string]bool)
	for _, err := range b.Errors.Errors {
		var le *LoadError
		if errors.As(err, &le) {
			out[le.FilePath] = true
		}
	}
	return out
}

func countFailedDocuments(b *Bundle) int {
	n := 0
	for _, err := range b.Errors.Errors {
		var le *LoadError
		if errors.As(err, &le) && !suite.IsSuiteFile(le.FilePath) {
			n++
		}
	}
	return n
}

// Load implements composer.Loader over the loaded documents as authored.
func (m *Manager) Load(_ context.Context, ref ast.PolicyRef) (*ast.Document, error) {
	e, err := m.registry.Lookup(ref.PolicyID, ref.Version)
	if err != nil {
		return nil, err
	}
	return e.Document, nil
}

// Get returns a loaded policy version. An empty version selects the latest.
func (m *Manager) Get(policyID, version string) (*Entry, error) {
	if !m.isLoaded() {
		return nil, ErrNotLoaded
	}
	return m.registry.Lookup(policyID, version)
}

// Default returns the latest version of the only loaded policy. It fails when
// more than one policy id is loaded.
func (m *Manager) Default() (*Entry, error) {
	if !m.isLoaded() {
		return nil, ErrNotLoaded
	}
	var id string
	for _, e := range m.registry.GetAll() {
		if id != "" && e.Ref.PolicyID != id {
			return nil, errors.New("several policies are loaded; policy_id is required")
		}
		id = e.Ref.PolicyID
	}
	if id == "" {
		return nil, ErrPolicyNotFound
	}
	return m.registry.Lookup(id, "")
}

// List describes every loaded version, sorted by policy id and version.
func (m *Manager) List() []PolicyInfo {
	now := m.clock()
	entries := m.registry.GetAll()
	out := make([]PolicyInfo, 0, len(entries))
	for i, e := range entries {
		doc := e.Effective
		info := PolicyInfo{
			PolicyID:          e.Ref.PolicyID,
			Version:           e.Ref.Version,
			Title:             doc.Title,
			Description:       doc.Description,
			Jurisdiction:      doc.Jurisdiction,
			InEffectiveWindow: doc.Effective.Contains(now),
			Latest:            i == len(entries)-1 || entries[i+1].Ref.PolicyID != e.Ref.PolicyID,
			Extends:           e.Document.Extends,
			Chain:             doc.Chain,
			Statements:        len(doc.Statements),
			Hash:              e.Hash,
			SourceFile:        e.SourceFile,
			LoadedAt:          e.LoadedAt,
		}
		if !doc.Effective.From.IsZero() {
			from := doc.Effective.From
			info.EffectiveFrom = &from
		}
		if !doc.Effective.To.IsZero() {
			to := doc.Effective.To
			info.EffectiveTo = &to
		}
		for _, p := range doc.Params {
			info.Params = append(info.Params, p.Name)
		}
		if e.Suite != nil {
			info.Tests = len(e.Suite.Tests)
		}
		out = append(out, info)
	}
	return out
}

// Registry returns the underlying policy registry.
func (m *Manager) Registry() *PolicyRegistry {
	return m.registry
}

// LastResult returns the result of the last successful load.
func (m *Manager) LastResult() *LoadResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastResult
}

// GetLastLoadTime returns the timestamp of the last successful load.
func (m *Manager) GetLastLoadTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLoadTime
}

// GetLastLoadError returns the error from the last load attempt.
func (m *Manager) GetLastLoadError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLoadError
}

func (m *Manager) isLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Watch reloads policies whenever files under the policy directory change.
// It blocks until ctx is cancelled or Close is called.
func (m *Manager) Watch(ctx context.Context) error {
	if !m.config.Watch {
		return errors.New("policy watching is not enabled in configuration")
	}

	m.watchMu.Lock()
	if m.watchCancel != nil {
		m.watchMu.Unlock()
		return errors.New("watch already started")
	}
	watchCtx, cancel := context.WithCancel(ctx)
	m.watchCancel = cancel
	m.watchMu.Unlock()
	defer func() {
		m.watchMu.Lock()
		m.watchCancel = nil
		m.watchMu.Unlock()
		cancel()
	}()

	wc := DefaultFileWatcherConfig()
	wc.Path = m.config.Dir
	if m.config.DebounceInterval > 0 {
		wc.DebounceInterval = m.config.DebounceInterval
	}
	if m.config.Loader != nil {
		wc.Extensions = m.config.Loader.AllowedExtensions
		wc.SkipHidden = m.config.Loader.SkipHidden
	}

	watcher, err := NewFileWatcher(wc, m.logger)
	if err != nil {
		return err
	}
	return watcher.Watch(watchCtx, func(path string) error {
		_, err := m.ReloadPolicies(watchCtx)
		return err
	})
}

// Close stops an active Watch.
func (m *Manager) Close() error {
	m.watchMu.Lock()
	if m.watchCancel != nil {
		m.watchCancel()
	}
	m.watchMu.Unlock()

	m.logger.Info("policy manager closed")
	return nil
}
