package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// current holds the process-wide configuration shared by the CLI commands.
var (
	current  atomic.Pointer[Config]
	loadOnce sync.Once
	loadErr  error
)

// Initialize reads path (plus BDL_* overrides) into the process-wide
// configuration. The file is read once per process; later calls report the
// outcome of that first load.
func Initialize(path string) error {
	loadOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			loadErr = err
			return
		}
		current.Store(cfg)
	})
	return loadErr
}

// GetConfig returns the process-wide configuration, nil until Initialize
// succeeds or SetConfig is called.
func GetConfig() *Config { return current.Load() }

// SetConfig installs cfg as the process-wide configuration.
func SetConfig(cfg *Config) { current.Store(cfg) }

// ReloadConfig loads path again and swaps it in. A config that fails to load
// or validate leaves the installed one untouched.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("reload %s: %w", path, err)
	}
	current.Store(cfg)
	return nil
}

// MustGetConfig panics when no configuration has been installed.
func MustGetConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	panic("config: Initialize has not been called")
}
