// Package manager loads BDL policy documents and their test suites from the
// file system and keeps every version compiled and ready for evaluation.
//
// # Core Components
//
// Manager coordinates loading, composition, compilation and hot-reload. It
// also implements composer.Loader, so other components can resolve extends
// chains against the documents it holds.
//
// PolicyLoader reads documents (*.yaml, *.yml, *.json) and suites
// (*.tests.yaml) from a directory, checking size, encoding and validity.
//
// PolicyRegistry stores compiled versions keyed by (policy_id, version),
// orders versions by semantic-version precedence and swaps the whole set
// atomically on reload.
//
// FileWatcher monitors the directory with fsnotify and triggers debounced
// reloads.
//
// # Loading
//
// Every version found on disk is composed with its ancestors and compiled
// eagerly. A version that fails does not block the others; it is reported in
// LoadResult.Errors. On reload, a version whose file is present but broken
// keeps its previous compiled form (last-good); a version whose file was
// removed is dropped.
//
// # Basic Usage
//
//	mgr, err := manager.NewManager(&manager.Config{Dir: "policies", Watch: true}, logger)
//	if err != nil {
//	    return err
//	}
//	if _, err := mgr.LoadPolicies(ctx); err != nil {
//	    return err
//	}
//	go mgr.Watch(ctx)
//
//	entry, err := mgr.Get("expenses", "") // latest version
//	decision, err := eng.Evaluate(ctx, entry.Program, req)
package manager
