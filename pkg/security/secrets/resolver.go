package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver looks secrets up across providers in order.
type Resolver struct {
	providers []Provider
	cache     *cache
	logger    *slog.Logger
}

// NewResolver creates a resolver. Providers are consulted in the order
// given; the first one holding a name wins.
func NewResolver(logger *slog.Logger, cfg CacheConfig, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		providers: providers,
		cache:     newCache(cfg),
		logger:    logger.With("component", "secrets"),
	}
}

// Get returns the named secret.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	if v, ok := r.cache.get(name); ok {
		return v, nil
	}

	tried := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		v, err := p.GetSecret(ctx, name)
		if err == nil {
			r.logger.Debug("secret resolved", "name", redact(name), "provider", p.Name())
			r.cache.set(name, v)
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			// The provider has the name but cannot serve it.
			return "", fmt.Errorf("secret %s from %s: %w", redact(name), p.Name(), &redactedError{name: name, err: err})
		}
		tried = append(tried, p.Name())
	}
	if len(tried) == 0 {
		return "", fmt.Errorf("secret %s: %w (no providers configured)", redact(name), ErrNotFound)
	}
	return "", fmt.Errorf("secret %s: %w (tried %s)", redact(name), ErrNotFound, strings.Join(tried, ", "))
}

// redactedError masks a secret name inside a provider error while keeping
// the chain intact for errors.Is.
type redactedError struct {
	name string
	err  error
}

func (e *redactedError) Error() string {
	if e.name == "" {
		return e.err.Error()
	}
	return strings.ReplaceAll(e.err.Error(), e.name, redact(e.name))
}

func (e *redactedError) Unwrap() error { return e.err }

// Resolve replaces every ${secret:name} reference in s. Strings without
// references are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, s string) (string, error) {
	if !HasReferences(s) {
		return s, nil
	}
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		v, err := r.Get(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return v
	})
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return out, nil
}

// Refresh drops cached values.
func (r *Resolver) Refresh() {
	r.cache.clear()
}

// HasReferences reports whether s contains a ${secret:name} reference.
func HasReferences(s string) bool {
	return refPattern.MatchString(s)
}

func redact(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
