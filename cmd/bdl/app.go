package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"mercator-hq/bdl/pkg/audit"
	"mercator-hq/bdl/pkg/audit/recorder"
	"mercator-hq/bdl/pkg/audit/retention"
	"mercator-hq/bdl/pkg/audit/storage"
	"mercator-hq/bdl/pkg/cli"
	"mercator-hq/bdl/pkg/config"
	"mercator-hq/bdl/pkg/decision"
	"mercator-hq/bdl/pkg/policy/engine"
	"mercator-hq/bdl/pkg/policy/git"
	"mercator-hq/bdl/pkg/policy/manager"
	"mercator-hq/bdl/pkg/telemetry/health"
	"mercator-hq/bdl/pkg/telemetry/logging"
	"mercator-hq/bdl/pkg/telemetry/metrics"
	"mercator-hq/bdl/pkg/telemetry/tracing"
)

// app holds the components a command runs against.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	manager  *manager.Manager
	engine   *engine.Engine
	store    audit.Store
	recorder *recorder.Recorder
	pruner   *retention.Pruner
	service  *decision.Service

	// repo is the policy repository clone when policy.git is enabled.
	repo    *git.Repository
	watcher *git.Watcher

	metricsServer *http.Server
}

type appOptions struct {
	// audit opens the trace store.
	audit bool

	// load performs the initial policy load.
	load bool

	// serve starts the metrics listener and the retention schedule.
	serve bool

	// watch enables hot reload regardless of policy.watch.
	watch bool

	testConcurrency int
}

// loadConfig returns a copy of the process configuration with command-line
// overrides applied.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, err
	}
	global := config.GetConfig()
	if global == nil {
		return nil, errors.New("configuration not initialized")
	}
	cfg := *global
	if policyDir != "" {
		cfg.Policy.Dir = policyDir
	}
	switch {
	case verbose:
		cfg.Telemetry.Logging.Level = "debug"
	case logLevel != "":
		cfg.Telemetry.Logging.Level = logLevel
	case cfgFile == "" && os.Getenv("BDL_TELEMETRY_LOGGING_LEVEL") == "":
		// Without explicit configuration keep command output readable.
		cfg.Telemetry.Logging.Level = "warn"
	}
	return &cfg, nil
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if opts.watch {
		cfg.Policy.Watch = true
	}

	lc := cfg.Telemetry.Logging
	logger, err := logging.New(logging.Config{
		Level:          lc.Level,
		Format:         lc.Format,
		AddSource:      lc.AddSource,
		RedactPII:      lc.RedactPII,
		RedactPatterns: lc.RedactPatterns,
		Writer:         os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.Logger)

	if err := config.ResolveSecrets(ctx, cfg, cfg.SecretResolver(logger.Logger)); err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
	}

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.Policy.Git.Enabled {
		if err := a.cloneRepository(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.manager, err = manager.NewManager(cfg.ManagerConfig(), logger.Logger,
		manager.WithCompositionObserver(a.metrics),
		manager.WithReloadObserver(a.metrics),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine, err = engine.NewEngine(cfg.EngineConfig(), logger.Logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine.WithRecorder(a.metrics)

	svcOpts := []decision.Option{
		decision.WithTracer(a.tracer),
		decision.WithTestObserver(a.metrics),
		decision.WithCaseValidation(cfg.Engine.ValidateCaseSchema),
		decision.WithTestConcurrency(opts.testConcurrency),
	}
	if opts.audit && cfg.Audit.Enabled {
		a.store, err = storage.Open(ctx, cfg.StorageConfig(), logger.Logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open trace store: %w", err)
		}
		a.recorder = recorder.NewRecorder(a.store, cfg.RecorderConfig(), logger.Logger).WithObserver(a.metrics)
		a.pruner = retention.NewPruner(a.store, cfg.RetentionConfig(), logger.Logger).WithObserver(a.metrics)
		svcOpts = append(svcOpts, decision.WithRecorder(a.recorder))
	}
	a.service = decision.NewService(a.manager, a.engine, logger.Logger, svcOpts...)

	if opts.serve {
		if err := a.serve(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if opts.load {
		if _, err := a.service.Load(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to load policies from %s: %w", cfg.Policy.Dir, err)
		}
	}
	return a, nil
}

// cloneRepository clones the policy repository and points the policy
// directory at the clone. The repository watcher replaces file watching.
func (a *app) cloneRepository(ctx context.Context) error {
	repo, err := git.NewRepository(a.cfg.GitConfig())
	if err != nil {
		return cli.NewConfigError("policy.git", err.Error())
	}
	if err := repo.Clone(ctx); err != nil {
		return fmt.Errorf("failed to clone policy repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return err
	}
	a.logger.Info("policy repository ready",
		"url", a.cfg.Policy.Git.URL,
		"branch", a.cfg.Policy.Git.Branch,
		"commit", head.SHA,
	)
	a.repo = repo
	a.cfg.Policy.Dir = repo.PolicyPath()
	a.cfg.Policy.Watch = false
	return nil
}

// watch reloads policies until ctx is done, from the repository when one is
// configured and from the policy directory otherwise.
func (a *app) watch(ctx context.Context) error {
	if a.repo == nil {
		a.logger.Info("watching policies", "path", a.cfg.Policy.Dir)
		return a.service.Watch(ctx)
	}

	a.watcher = git.NewWatcher(a.repo, func(ctx context.Context) error {
		_, err := a.service.Reload(ctx)
		return err
	}, a.logger.Logger)
	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// serve starts the metrics and health endpoints and the retention
// schedule.
func (a *app) serve(ctx context.Context) error {
	mc := a.cfg.Telemetry.Metrics
	if mc.Enabled && mc.Addr != "" {
		ln, err := net.Listen("tcp", mc.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", mc.Addr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		health.Register(mux, a.healthChecker(), Version, GitCommit, BuildDate)
		a.metricsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
		a.logger.Info("serving metrics and health", "addr", ln.Addr().String())
	}

	if a.pruner != nil {
		if err := a.pruner.Start(ctx); err != nil {
			return fmt.Errorf("failed to start retention: %w", err)
		}
	}
	return nil
}

// healthChecker reports readiness of the components this app runs.
func (a *app) healthChecker() *health.Checker {
	c := health.New(5 * time.Second)
	c.Register("policies", func(context.Context) error {
		if err := a.manager.GetLastLoadError(); err != nil {
			return err
		}
		if len(a.manager.List()) == 0 {
			return errors.New("no policies loaded")
		}
		return nil
	})
	if a.store != nil {
		c.Register("trace_store", func(ctx context.Context) error {
			_, err := a.store.Count(ctx, &audit.Query{})
			return err
		})
	}
	if a.repo != nil {
		c.Register("policy_repository", func(context.Context) error {
			if msg := a.repo.Stats().LastError; msg != "" {
				return fmt.Errorf("last pull failed: %s", msg)
			}
			return nil
		})
	}
	return c
}

// Close releases every component in reverse start order.
func (a *app) Close() error {
	var errs []error
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.pruner != nil {
		a.pruner.Stop()
	}
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.metricsServer.Shutdown(ctx))
		cancel()
	}
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.manager != nil {
		errs = append(errs, a.manager.Close())
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.tracer.Shutdown(ctx))
		cancel()
	}
	return errors.Join(errs...)
}
