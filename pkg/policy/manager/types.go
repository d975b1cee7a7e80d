package manager

import (
	"time"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/policy/engine"
	"mercator-hq/bdl/pkg/policy/suite"
)

// Config contains configuration for the policy manager.
type Config struct {
	// Dir is the policy directory (or a single document file).
	Dir string

	// Watch enables hot-reload on file changes.
	Watch bool

	// DebounceInterval is the quiet period before a reload (default: 100ms).
	DebounceInterval time.Duration

	// MaxChainLength bounds extends chains (default: composer.DefaultMaxChainLength).
	MaxChainLength int

	// Loader configures file discovery. Nil uses DefaultLoaderConfig.
	Loader *PolicyLoaderConfig
}

// PolicyLoaderConfig contains configuration for the policy loader.
type PolicyLoaderConfig struct {
	// MaxFileSize is the maximum file size in bytes (default: 10MB)
	MaxFileSize int64

	// AllowedExtensions is the list of document extensions (default: .yaml, .yml, .json)
	AllowedExtensions []string

	// FollowSymlinks controls whether to follow symbolic links (default: true)
	FollowSymlinks bool

	// SkipHidden controls whether to skip hidden files/directories (default: true)
	SkipHidden bool
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() *PolicyLoaderConfig {
	return &PolicyLoaderConfig{
		MaxFileSize:       10 * 1024 * 1024, // 10MB
		AllowedExtensions: []string{".yaml", ".yml", ".json"},
		FollowSymlinks:    true,
		SkipHidden:        true,
	}
}

// Entry is one loaded policy version: the document as authored, its
// effective composition and the compiled program.
type Entry struct {
	Ref ast.PolicyRef

	// Document is the validated document as written in its file.
	Document *ast.Document

	// Effective is Document merged with its extends chain.
	Effective *ast.Document

	// Program is Effective compiled for evaluation.
	Program *engine.Program

	// Hash is the hex sha256 of the source file contents.
	Hash string

	SourceFile string
	LoadedAt   time.Time

	// Suite holds the test cases targeting this version, if any.
	Suite *suite.Suite

	// Warnings are non-fatal validator findings.
	Warnings []string
}

// PolicyInfo describes a loaded policy version for listing.
type PolicyInfo struct {
	PolicyID          string          `json:"policy_id"`
	Version           string          `json:"version"`
	Title             string          `json:"title,omitempty"`
	Description       string          `json:"description,omitempty"`
	Jurisdiction      string          `json:"jurisdiction,omitempty"`
	EffectiveFrom     *time.Time      `json:"effective_from,omitempty"`
	EffectiveTo       *time.Time      `json:"effective_to,omitempty"`
	InEffectiveWindow bool            `json:"in_effective_window"`
	Latest            bool            `json:"latest"`
	Extends           *ast.PolicyRef  `json:"extends,omitempty"`
	Chain             []ast.PolicyRef `json:"chain,omitempty"`
	Statements        int             `json:"statements"`
	Params            []string        `json:"params,omitempty"`
	Tests             int             `json:"tests"`
	Hash              string          `json:"hash"`
	SourceFile        string          `json:"source_file,omitempty"`
	LoadedAt          time.Time       `json:"loaded_at"`
}

// LoadResult contains the results of a policy loading operation.
type LoadResult struct {
	// Loaded lists the versions compiled from the current files.
	Loaded []ast.PolicyRef

	// Retained lists versions that failed to load and kept their previous
	// compiled form.
	Retained []ast.PolicyRef

	// Errors is the list of errors encountered during loading
	Errors []error

	// Warnings is the list of warnings encountered during loading
	Warnings []string

	// FileCount is the number of document files processed
	FileCount int

	// SuiteCount is the number of test suite files processed
	SuiteCount int

	// LoadTime is the duration of the load operation
	LoadTime time.Duration

	// Version is the registry fingerprint after the load
	Version string
}
