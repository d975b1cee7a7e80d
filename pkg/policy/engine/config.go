package engine

import (
	"fmt"
)

// NoMatchMode determines how a lookup with no matching row resolves.
type NoMatchMode string

const (
	// NoMatchError treats a lookup miss as an evaluation error. This is the default.
	NoMatchError NoMatchMode = "error"

	// NoMatchMissing treats a lookup miss as missing data, so the statement
	// lands in its missing bucket instead of its error bucket.
	NoMatchMissing NoMatchMode = "missing"
)

// Config contains configuration for the decision engine.
type Config struct {
	// MaxValueDepth bounds the nesting of arithmetic operands resolved at runtime.
	// Default: 64.
	MaxValueDepth int `yaml:"max_value_depth" json:"max_value_depth"`

	// MaxPredicateDepth bounds the nesting of all/any/not evaluated at runtime.
	// Default: 64.
	MaxPredicateDepth int `yaml:"max_predicate_depth" json:"max_predicate_depth"`

	// StrictParams rejects supplied params that the document does not declare.
	// Default: false (unknown params are ignored).
	StrictParams bool `yaml:"strict_params" json:"strict_params"`

	// LookupNoMatch selects how a lookup miss resolves.
	// Default: NoMatchError.
	LookupNoMatch NoMatchMode `yaml:"lookup_no_match" json:"lookup_no_match"`

	// EvidenceField is the Case path holding the evidence list read by
	// REQUIRE require_evidence.
	// Default: "evidence".
	EvidenceField string `yaml:"evidence_field" json:"evidence_field"`

	// TagsInReasonCodes appends labels from fired TAG statements to the
	// decision's reason codes after the winning code.
	// Default: false.
	TagsInReasonCodes bool `yaml:"tags_in_reason_codes" json:"tags_in_reason_codes"`

	// DefaultProfile is used when a request carries no profile.
	// Default: every non-DEFINE statement type, missing data enforced.
	DefaultProfile Profile `yaml:"default_profile" json:"default_profile"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxValueDepth:     64,
		MaxPredicateDepth: 64,
		StrictParams:      false,
		LookupNoMatch:     NoMatchError,
		EvidenceField:     "evidence",
		DefaultProfile:    DefaultProfile(),
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.MaxValueDepth <= 0 {
		return fmt.Errorf("%w: max value depth must be positive", ErrInvalidConfig)
	}
	if c.MaxPredicateDepth <= 0 {
		return fmt.Errorf("%w: max predicate depth must be positive", ErrInvalidConfig)
	}

	switch c.LookupNoMatch {
	case NoMatchError, NoMatchMissing:
		// Valid
	default:
		return fmt.Errorf("%w: invalid lookup no-match mode %q", ErrInvalidConfig, c.LookupNoMatch)
	}

	if c.EvidenceField == "" {
		return fmt.Errorf("%w: evidence field must not be empty", ErrInvalidConfig)
	}
	if err := c.DefaultProfile.Validate(); err != nil {
		return fmt.Errorf("%w: default profile: %v", ErrInvalidConfig, err)
	}
	return nil
}

// WithMaxValueDepth sets the runtime value nesting bound.
func (c *Config) WithMaxValueDepth(depth int) *Config {
	c.MaxValueDepth = depth
	return c
}

// WithMaxPredicateDepth sets the runtime predicate nesting bound.
func (c *Config) WithMaxPredicateDepth(depth int) *Config {
	c.MaxPredicateDepth = depth
	return c
}

// WithStrictParams enables or disables rejection of undeclared params.
func (c *Config) WithStrictParams(strict bool) *Config {
	c.StrictParams = strict
	return c
}

// WithLookupNoMatch sets how lookup misses resolve.
func (c *Config) WithLookupNoMatch(mode NoMatchMode) *Config {
	c.LookupNoMatch = mode
	return c
}

// WithEvidenceField sets the Case path of the evidence list.
func (c *Config) WithEvidenceField(path string) *Config {
	c.EvidenceField = path
	return c
}

// WithTagsInReasonCodes enables or disables appending TAG labels to reason codes.
func (c *Config) WithTagsInReasonCodes(enabled bool) *Config {
	c.TagsInReasonCodes = enabled
	return c
}

// WithDefaultProfile sets the profile used when a request carries none.
func (c *Config) WithDefaultProfile(p Profile) *Config {
	c.DefaultProfile = p
	return c
}
