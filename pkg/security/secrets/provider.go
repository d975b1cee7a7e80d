package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no provider has a secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret returns the named secret. A missing secret wraps ErrNotFound.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs.
	Name() string
}

// EnvProvider reads secrets from environment variables. The name
// "audit-db-password" maps to <prefix>AUDIT_DB_PASSWORD.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// GetSecret implements Provider. Empty variables count as unset. Errors never
// carry the variable name, which embeds the secret name.
func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	v := os.Getenv(p.EnvVar(name))
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

// EnvVar returns the variable name consulted for a secret.
func (p *EnvProvider) EnvVar(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_")
	return p.prefix + strings.ToUpper(r.Replace(name))
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

// FileProvider reads one secret per file from a directory. Trailing
// whitespace is trimmed.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a file provider over dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// GetSecret implements Provider. Names that escape the directory, non
// regular files and files readable by group or others are refused. Errors
// name neither the secret nor its file.
func (p *FileProvider) GetSecret(_ context.Context, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", errors.New("invalid secret name")
	}
	path := filepath.Join(p.dir, name)

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat secret file: %w", pathless(err))
	}
	if !info.Mode().IsRegular() {
		return "", errors.New("secret file is not a regular file")
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return "", fmt.Errorf("secret file mode %#o is readable by group or others (want 0600 or 0400)", perm)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- name is a single path element
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", pathless(err))
	}
	return strings.TrimSpace(string(data)), nil
}

// Name returns "file".
func (p *FileProvider) Name() string { return "file" }

// pathless drops the path from an *fs.PathError, keeping the cause.
func pathless(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return fmt.Errorf("%s: %w", pe.Op, pe.Err)
	}
	return err
}
