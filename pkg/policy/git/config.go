package git

import (
	"fmt"
	"time"
)

// Config describes a policy repository.
type Config struct {
	// URL is the clone URL (https, ssh or a local path).
	URL string

	// Branch is the branch policies are read from.
	Branch string

	// Path is the policy directory inside the repository. Empty means the
	// repository root.
	Path string

	// LocalPath is where the repository is cloned.
	LocalPath string

	// Depth limits clone history. Zero clones the full history.
	Depth int

	// CleanOnStart removes LocalPath before cloning.
	CleanOnStart bool

	// PollInterval is how often the remote is checked for new commits.
	PollInterval time.Duration

	// Timeout bounds each clone or pull.
	Timeout time.Duration

	// Debounce is the quiet period after a detected change before reloading.
	Debounce time.Duration

	Auth AuthConfig
}

// AuthConfig selects repository credentials.
type AuthConfig struct {
	// Type is "none", "token" or "ssh".
	Type string

	// Token is a personal access or OAuth token for https remotes.
	Token string

	// SSHKeyPath is a private key file for ssh remotes.
	SSHKeyPath string

	// SSHKeyPassphrase decrypts SSHKeyPath.
	SSHKeyPassphrase string
}

// Defaults.
const (
	DefaultBranch       = "main"
	DefaultPollInterval = 30 * time.Second
	DefaultTimeout      = 60 * time.Second
	DefaultDebounce     = 100 * time.Millisecond
)

// withDefaults returns a copy of c with zero fields defaulted.
func (c Config) withDefaults() Config {
	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	return c
}

// Validate checks the fields a clone needs.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("repository URL cannot be empty")
	}
	if c.LocalPath == "" {
		return fmt.Errorf("local path cannot be empty")
	}
	if c.Depth < 0 {
		return fmt.Errorf("clone depth must be non-negative")
	}
	switch c.Auth.Type {
	case "", "none", "token", "ssh":
	default:
		return fmt.Errorf("unknown auth type: %s", c.Auth.Type)
	}
	return nil
}
