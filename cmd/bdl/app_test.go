package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"mercator-hq/bdl/pkg/config"
)

// initPolicyRepo commits the dress code policy and its suite under
// policies/ in a fresh repository.
func initPolicyRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "policies"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"dress-code.yaml", "dress-code.tests.yaml"} {
		data, err := os.ReadFile(filepath.Join(examplesDir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "policies", name), data, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add("policies/" + name); err != nil {
			t.Fatal(err)
		}
	}
	_, err = wt.Commit("add dress code", &gogit.CommitOptions{
		Author: &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestAppGitSource(t *testing.T) {
	src := initPolicyRepo(t)
	clone := filepath.Join(t.TempDir(), "clone")
	useConfig(t, func(cfg *config.Config) {
		cfg.Policy.Git.Enabled = true
		cfg.Policy.Git.URL = src
		cfg.Policy.Git.Branch = "master"
		cfg.Policy.Git.Path = "policies"
		cfg.Policy.Git.LocalPath = clone
	})

	a, err := newApp(context.Background(), appOptions{load: true})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if want := filepath.Join(clone, "policies"); a.cfg.Policy.Dir != want {
		t.Errorf("policy dir = %s, want %s", a.cfg.Policy.Dir, want)
	}
	policies := a.service.ListPolicies()
	if len(policies) != 1 || policies[0].PolicyID != "dress-code" || policies[0].Tests != 4 {
		t.Errorf("policies = %+v", policies)
	}
}

func TestAppGitSourceCloneFails(t *testing.T) {
	useConfig(t, func(cfg *config.Config) {
		cfg.Policy.Git.Enabled = true
		cfg.Policy.Git.URL = filepath.Join(t.TempDir(), "missing")
		cfg.Policy.Git.LocalPath = filepath.Join(t.TempDir(), "clone")
	})
	if _, err := newApp(context.Background(), appOptions{load: true}); err == nil {
		t.Fatal("newApp succeeded without a repository")
	}
}
