// Package git keeps a policy directory in sync with a Git repository.
//
// The repository is cloned into a local directory and the policy manager
// loads from the configured path inside the clone. A Watcher polls the
// remote, fast-forwards the clone and reloads policies when a pull changes
// documents or test suites under that path.
//
//	repo, err := git.NewRepository(git.Config{
//		URL:       "https://github.com/company/policies.git",
//		Branch:    "main",
//		Path:      "bdl/",
//		LocalPath: "/var/lib/bdl/policies",
//	})
//	if err != nil {
//		return err
//	}
//	if err := repo.Clone(ctx); err != nil {
//		return err
//	}
//
//	// manager Dir = repo.PolicyPath()
//
//	w := git.NewWatcher(repo, func(ctx context.Context) error {
//		_, err := svc.Reload(ctx)
//		return err
//	}, logger)
//	if err := w.Start(ctx); err != nil {
//		return err
//	}
//	defer w.Stop()
//
// # Authentication
//
//   - "token": https remotes with a personal access or OAuth token
//   - "ssh": a private key file (mode 0600 or stricter)
//   - "none": public or local repositories
package git
