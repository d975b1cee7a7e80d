package composer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/validator"
)

// DefaultMaxChainLength bounds how many documents one extends chain may span.
const DefaultMaxChainLength = 16

// Loader fetches a validated document by exact reference.
type Loader interface {
	Load(ctx context.Context, ref ast.PolicyRef) (*ast.Document, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, ref ast.PolicyRef) (*ast.Document, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, ref ast.PolicyRef) (*ast.Document, error) {
	return f(ctx, ref)
}

// Observer receives cache and failure events.
type Observer interface {
	RecordCompositionCache(hit bool)
	RecordCompositionError(kind string)
}

// Composer resolves and caches effective documents.
type Composer struct {
	loader    Loader
	validator *validator.Validator
	maxChain  int
	logger    *slog.Logger
	observer  Observer

	group singleflight.Group
	mu    sync.RWMutex
	cache map[ast.PolicyRef]*ast.Document
}

// Option configures a Composer.
type Option func(*Composer)

// WithMaxChainLength overrides DefaultMaxChainLength.
func WithMaxChainLength(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.maxChain = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an observer for cache and error events.
func WithObserver(o Observer) Option {
	return func(c *Composer) {
		c.observer = o
	}
}

// New creates a composer reading ancestors through loader.
func New(loader Loader, opts ...Option) *Composer {
	c := &Composer{
		loader:    loader,
		validator: validator.NewValidator(),
		maxChain:  DefaultMaxChainLength,
		logger:    slog.Default().With("component", "policy.composer"),
		cache:     make(map[ast.PolicyRef]*ast.Document),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the effective document for ref. The first resolution of a
// ref is shared by all concurrent callers; later calls hit the cache.
func (c *Composer) Resolve(ctx context.Context, ref ast.PolicyRef) (*ast.Document, error) {
	if doc, ok := c.cached(ref); ok {
		c.recordCache(true)
		return doc, nil
	}
	c.recordCache(false)

	// The shared resolution outlives any single caller, so it must not
	// inherit one caller's cancellation.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(ref.String(), func() (interface{}, error) {
		if doc, ok := c.cached(ref); ok {
			return doc, nil
		}
		r := c.newResolution()
		return r.resolve(detached, ref, nil)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.recordError(res.Err)
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("shared composition result", "policy", ref.String())
		}
		return res.Val.(*ast.Document), nil
	}
}

// Compose merges doc with its ancestors without caching doc itself. It is
// used for documents that are not (yet) reachable through the loader, such
// as a file being linted.
func (c *Composer) Compose(ctx context.Context, doc *ast.Document) (*ast.Document, error) {
	r := c.newResolution()
	eff, err := r.compose(ctx, doc, nil)
	if err != nil {
		c.recordError(err)
	}
	return eff, err
}

// Invalidate drops every cached document whose chain contains ref, so a
// reloaded ancestor is picked up by its descendants.
func (c *Composer) Invalidate(ref ast.PolicyRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, doc := range c.cache {
		for _, r := range doc.Chain {
			if r == ref {
				delete(c.cache, key)
				break
			}
		}
	}
}

// Reset drops the whole cache.
func (c *Composer) Reset() {
	c.mu.Lock()
	c.cache = make(map[ast.PolicyRef]*ast.Document)
	c.mu.Unlock()
}

// Len returns the number of cached effective documents.
func (c *Composer) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Composer) cached(ref ast.PolicyRef) (*ast.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.cache[ref]
	return doc, ok
}

func (c *Composer) store(doc *ast.Document) {
	c.mu.Lock()
	c.cache[doc.Ref()] = doc
	c.mu.Unlock()
}

func (c *Composer) recordCache(hit bool) {
	if c.observer != nil {
		c.observer.RecordCompositionCache(hit)
	}
}

func (c *Composer) recordError(err error) {
	if c.observer == nil {
		return
	}
	kind := "unknown"
	if ce, ok := err.(*CompositionError); ok {
		kind = string(ce.Kind)
	}
	c.observer.RecordCompositionError(kind)
}

// resolution is the state of one depth-first walk: refs currently being
// resolved and the refs already merged during this walk.
type resolution struct {
	c          *Composer
	inProgress map[ast.PolicyRef]bool
	memo       map[ast.PolicyRef]*ast.Document
}

func (c *Composer) newResolution() *resolution {
	return &resolution{
		c:          c,
		inProgress: make(map[ast.PolicyRef]bool),
		memo:       make(map[ast.PolicyRef]*ast.Document),
	}
}

func (r *resolution) resolve(ctx context.Context, ref ast.PolicyRef, path []ast.PolicyRef) (*ast.Document, error) {
	if doc, ok := r.memo[ref]; ok {
		return doc, nil
	}
	if doc, ok := r.c.cached(ref); ok {
		return doc, nil
	}

	chain := append(append([]ast.PolicyRef{}, path...), ref)
	if r.inProgress[ref] {
		return nil, &CompositionError{
			Ref:     ref,
			Chain:   chain,
			Kind:    KindCircular,
			Message: "circular extends",
		}
	}
	if len(chain) > r.c.maxChain {
		return nil, &CompositionError{
			Ref:     ref,
			Chain:   chain,
			Kind:    KindChainTooLong,
			Message: fmt.Sprintf("extends chain exceeds maximum length %d", r.c.maxChain),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.inProgress[ref] = true
	defer delete(r.inProgress, ref)

	doc, err := r.c.loader.Load(ctx, ref)
	if err != nil {
		return nil, &CompositionError{Ref: ref, Chain: chain, Kind: KindLoad, Message: "cannot load document", Cause: err}
	}
	if doc.Ref() != ref {
		return nil, &CompositionError{
			Ref:     ref,
			Chain:   chain,
			Kind:    KindLoad,
			Message: fmt.Sprintf("loader returned %s", doc.Ref()),
		}
	}

	eff, err := r.compose(ctx, doc, path)
	if err != nil {
		return nil, err
	}
	r.memo[ref] = eff
	r.c.store(eff)
	return eff, nil
}

func (r *resolution) compose(ctx context.Context, doc *ast.Document, path []ast.PolicyRef) (*ast.Document, error) {
	if !doc.IsComposite() {
		return doc, nil
	}
	ref := doc.Ref()
	chain := append(append([]ast.PolicyRef{}, path...), ref)

	if !r.inProgress[ref] {
		r.inProgress[ref] = true
		defer delete(r.inProgress, ref)
	}
	base, err := r.resolve(ctx, *doc.Extends, chain)
	if err != nil {
		return nil, err
	}

	eff, err := merge(base, doc, chain)
	if err != nil {
		return nil, err
	}
	if err := r.c.validator.ValidateReferences(eff); err != nil {
		return nil, &CompositionError{
			Ref:     ref,
			Chain:   chain,
			Kind:    KindReference,
			Message: "effective document has unresolved references",
			Cause:   err,
		}
	}
	for _, s := range doc.Statements {
		if s.Override && base.GetStatement(s.ID) == nil {
			r.c.logger.Warn("override flag on statement with no inherited counterpart",
				"policy", ref.String(),
				"statement", s.ID,
			)
		}
	}
	r.c.logger.Debug("composed policy",
		"policy", ref.String(),
		"chain_length", len(eff.Chain),
		"statements", len(eff.Statements),
	)
	return eff, nil
}
