package git

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Auth types accepted in AuthConfig.Type.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthSSH   = "ssh"
)

// AuthProvider yields the credentials used for clone and fetch. A nil
// method means anonymous access.
type AuthProvider interface {
	GetAuth() (transport.AuthMethod, error)
	Type() string
}

// NewAuthProvider picks the provider for cfg.Type; "" means none.
func NewAuthProvider(cfg AuthConfig) (AuthProvider, error) {
	switch cfg.Type {
	case "", AuthNone:
		return NoAuth{}, nil
	case AuthToken:
		if cfg.Token == "" {
			return nil, errors.New("git auth: token type needs a token")
		}
		return NewTokenAuth(cfg.Token), nil
	case AuthSSH:
		if cfg.SSHKeyPath == "" {
			return nil, errors.New("git auth: ssh type needs ssh_key_path")
		}
		return NewSSHAuth(cfg.SSHKeyPath, cfg.SSHKeyPassphrase), nil
	}
	return nil, fmt.Errorf("git auth: unsupported type %q", cfg.Type)
}

// TokenAuth sends an access token over https. GitHub, GitLab and Gitea all
// accept it as the basic auth password with any username.
type TokenAuth struct{ token string }

func NewTokenAuth(token string) *TokenAuth { return &TokenAuth{token: token} }

func (a *TokenAuth) Type() string { return AuthToken }

func (a *TokenAuth) GetAuth() (transport.AuthMethod, error) {
	if a.token == "" {
		return nil, errors.New("git auth: empty token")
	}
	return &http.BasicAuth{Username: "git", Password: a.token}, nil
}

// SSHAuth reads a private key from disk on every GetAuth, so a rotated key
// is picked up by the next fetch.
type SSHAuth struct {
	keyPath    string
	passphrase string
}

func NewSSHAuth(keyPath, passphrase string) *SSHAuth {
	return &SSHAuth{keyPath: keyPath, passphrase: passphrase}
}

func (a *SSHAuth) Type() string { return AuthSSH }

// GetAuth refuses key files that group or others can read.
func (a *SSHAuth) GetAuth() (transport.AuthMethod, error) {
	if a.keyPath == "" {
		return nil, errors.New("git auth: empty ssh key path")
	}
	info, err := os.Stat(a.keyPath)
	if err != nil {
		return nil, fmt.Errorf("git auth: ssh key: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("git auth: ssh key %s has mode %#o, want 0600 or stricter", a.keyPath, perm)
	}
	keys, err := ssh.NewPublicKeysFromFile("git", a.keyPath, a.passphrase)
	if err != nil {
		return nil, fmt.Errorf("git auth: ssh key %s: %w", a.keyPath, err)
	}
	return keys, nil
}

// NoAuth is used for public and local repositories.
type NoAuth struct{}

func (NoAuth) Type() string                           { return AuthNone }
func (NoAuth) GetAuth() (transport.AuthMethod, error) { return nil, nil }
