package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotCloned is returned by operations that need a local clone.
var ErrNotCloned = errors.New("repository not cloned, call Clone first")

// documentExts are the extensions of policy documents and test suites.
var documentExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Repository is a local clone of a policy repository.
type Repository struct {
	config Config
	auth   AuthProvider

	mu    sync.RWMutex
	repo  *gogit.Repository
	stats Stats
}

// Stats counts repository operations.
type Stats struct {
	CloneDuration   time.Duration
	PullDuration    time.Duration
	LastPullTime    time.Time
	Head            string
	SuccessfulPulls int64
	FailedPulls     int64

	// LastError is the error of the most recent pull, empty after a
	// successful one.
	LastError string
}

// NewRepository validates cfg and prepares a repository. Nothing is fetched
// until Clone.
func NewRepository(cfg Config) (*Repository, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	auth, err := NewAuthProvider(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}
	return &Repository{config: cfg, auth: auth}, nil
}

// Clone clones the repository into LocalPath, or opens an existing clone
// there unless CleanOnStart is set.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { r.stats.CloneDuration = time.Since(start) }()

	if r.config.CleanOnStart {
		if err := os.RemoveAll(r.config.LocalPath); err != nil {
			return fmt.Errorf("failed to clean existing clone: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(r.config.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.config.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		r.repo = repo
		return r.updateHead()
	}

	if err := os.MkdirAll(r.config.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}
	auth, err := r.auth.GetAuth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, r.config.LocalPath, false, &gogit.CloneOptions{
		URL:           r.config.URL,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  true,
		Depth:         r.config.Depth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", r.config.URL, err)
	}
	r.repo = repo
	return r.updateHead()
}

func (r *Repository) updateHead() error {
	ref, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	r.stats.Head = ref.Hash().String()
	return nil
}

// PullResult describes one pull.
type PullResult struct {
	FromSHA      string
	ToSHA        string
	ChangedFiles []string
}

// HadChanges reports whether HEAD moved.
func (p *PullResult) HadChanges() bool {
	return p.FromSHA != p.ToSHA
}

// Pull fast-forwards the clone. Pulls are never forced: a diverged remote
// is an error and the clone stays where it is.
func (r *Repository) Pull(ctx context.Context) (*PullResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() {
		r.stats.PullDuration = time.Since(start)
		r.stats.LastPullTime = time.Now()
	}()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	from := ref.Hash().String()

	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	auth, err := r.auth.GetAuth()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    gogit.DefaultRemoteName,
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		r.stats.FailedPulls++
		r.stats.LastError = err.Error()
		return nil, fmt.Errorf("failed to pull: %w", err)
	}
	r.stats.SuccessfulPulls++
	r.stats.LastError = ""

	if err := r.updateHead(); err != nil {
		return nil, err
	}
	res := &PullResult{FromSHA: from, ToSHA: r.stats.Head}
	if res.HadChanges() {
		files, err := r.changedFiles(from, res.ToSHA)
		if err != nil {
			return nil, err
		}
		res.ChangedFiles = files
	}
	return res, nil
}

// Commit describes a commit.
type Commit struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func toCommit(c *object.Commit) *Commit {
	return &Commit{
		SHA:       c.Hash.String(),
		Author:    c.Author.Name,
		Email:     c.Author.Email,
		Timestamp: c.Author.When,
		Message:   strings.TrimSpace(c.Message),
	}
}

// Head returns the checked out commit.
func (r *Repository) Head() (*Commit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	c, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return toCommit(c), nil
}

// History returns up to limit commits reachable from HEAD, newest first.
func (r *Repository) History(limit int) ([]*Commit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	iter, err := r.repo.Log(&gogit.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit log: %w", err)
	}
	defer iter.Close()

	var out []*Commit
	for len(out) < limit {
		c, err := iter.Next()
		if err != nil {
			break
		}
		out = append(out, toCommit(c))
	}
	return out, nil
}

// ChangedFiles lists the repository paths that differ between two commits.
func (r *Repository) ChangedFiles(fromSHA, toSHA string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	return r.changedFiles(fromSHA, toSHA)
}

func (r *Repository) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromTree, err := r.tree(fromSHA)
	if err != nil {
		return nil, err
	}
	toTree, err := r.tree(toSHA)
	if err != nil {
		return nil, err
	}
	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	files := make([]string, 0, len(changes))
	for _, ch := range changes {
		// Deleted files only have a "from" side.
		if ch.To.Name != "" {
			files = append(files, ch.To.Name)
		} else {
			files = append(files, ch.From.Name)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (r *Repository) tree(sha string) (*object.Tree, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", sha, err)
	}
	t, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", sha, err)
	}
	return t, nil
}

// Documents lists policy documents and suites under the policy directory,
// relative to it. Hidden files and directories are skipped.
func (r *Repository) Documents() ([]string, error) {
	root := r.PolicyPath()
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("policy path does not exist: %w", err)
	}

	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !documentExts[filepath.Ext(p)] {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk policy directory: %w", err)
	}
	return files, nil
}

// IsPolicyChange reports whether a repository path changed by a commit is a
// document or suite under the policy directory.
func (r *Repository) IsPolicyChange(file string) bool {
	if !documentExts[path.Ext(file)] {
		return false
	}
	dir := strings.Trim(filepath.ToSlash(r.config.Path), "/")
	if dir == "" || dir == "." {
		return true
	}
	return strings.HasPrefix(file, dir+"/")
}

// LocalPath returns the clone directory.
func (r *Repository) LocalPath() string {
	return r.config.LocalPath
}

// PolicyPath returns the policy directory inside the clone.
func (r *Repository) PolicyPath() string {
	return filepath.Join(r.config.LocalPath, filepath.FromSlash(r.config.Path))
}

// Stats returns a copy of the operation counters.
func (r *Repository) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}
