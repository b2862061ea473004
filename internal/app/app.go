package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ClaimScanner/internal/api"
	"ClaimScanner/internal/config"
	"ClaimScanner/internal/infrastructure/llm"
	"ClaimScanner/internal/infrastructure/parser"
	"ClaimScanner/internal/infrastructure/scheduler"
	"ClaimScanner/internal/infrastructure/storage"
	"ClaimScanner/internal/infrastructure/telegram"
	"ClaimScanner/internal/logging"
	"ClaimScanner/internal/metrics"
	"ClaimScanner/internal/ports"
	"ClaimScanner/internal/rules"
	"ClaimScanner/internal/usecase"
	"ClaimScanner/pkg/logger"
)

// ErrStoreNotOpen is returned by queue operations before OpenStore succeeded.
var ErrStoreNotOpen = errors.New("job store not open")

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	log      *slog.Logger
	metrics  *metrics.Recorder
	notifier ports.Notifier
	pipeline *usecase.Pipeline

	db   *sql.DB
	repo *storage.JobRepository
	jobs *usecase.JobService
}

// New builds the scoring pipeline and its adapters. It performs no I/O apart from
// reading an external rule pack; the job store is opened separately by OpenStore.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	ruleSet, err := loadRules(cfg.Rules.Path)
	if err != nil {
		return nil, err
	}

	var provider ports.ReportProvider
	if cfg.ChatGPT.APIKey != "" {
		provider = llm.NewChatGPTClient(cfg.ChatGPT)
	} else {
		baseLogger.Warn("chatgpt api key not set, full analysis is disabled")
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	recorder := metrics.New()
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Rules:    ruleSet,
		Provider: provider,
		Fetcher:  parser.NewPageFetcher(nil, cfg.Fetch),
		Metrics:  recorder,
		Logger:   baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:      cfg,
		log:      baseLogger,
		metrics:  recorder,
		notifier: notifier,
		pipeline: pipeline,
	}, nil
}

func loadRules(path string) (*rules.RuleSet, error) {
	if path == "" {
		return rules.Default()
	}
	rs, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load rule pack: %w", err)
	}
	return rs, nil
}

// Pipeline returns the synchronous scoring pipeline.
func (a *Application) Pipeline() *usecase.Pipeline { return a.pipeline }

// Jobs returns the submission service; nil until OpenStore succeeded.
func (a *Application) Jobs() *usecase.JobService { return a.jobs }

// OpenStore connects to the configured job store, optionally applying pending migrations first.
func (a *Application) OpenStore(ctx context.Context, migrate bool) error {
	if a.db != nil {
		return nil
	}

	dialect, err := storage.ParseDialect(a.cfg.Database.Driver)
	if err != nil {
		return err
	}
	if migrate {
		if err := storage.Migrate(dialect, a.cfg.Database.DSN, a.MigrateLogger(false)); err != nil {
			return err
		}
	}

	db, err := storage.Open(ctx, dialect, a.cfg.Database.DSN)
	if err != nil {
		return err
	}

	a.db = db
	a.repo = storage.NewJobRepository(db, dialect, a.cfg.Worker.StaleAfter, a.cfg.Worker.MaxAttempts)
	a.jobs = usecase.NewJobService(a.repo, a.log.With("component", "jobs"))
	a.log.Debug("job store opened", "driver", dialect)
	return nil
}

// MigrateLogger routes golang-migrate progress into the application logger.
func (a *Application) MigrateLogger(verbose bool) *logger.Migrate {
	return logger.NewMigrate(a.log, "migrate", verbose)
}

// NewWorker builds one worker over the open job store.
func (a *Application) NewWorker(name string) (*usecase.Worker, error) {
	if a.repo == nil {
		return nil, ErrStoreNotOpen
	}
	return usecase.NewWorker(usecase.WorkerDeps{
		Repository: a.repo,
		Analyzer:   a.pipeline,
		Notifier:   a.notifier,
		Metrics:    a.metrics,
		Logger:     a.log.With("component", "worker", "worker", name),
		JobTimeout: a.cfg.Worker.JobTimeout,
	}), nil
}

// RunWorkers starts n polling workers (worker.count when n <= 0) and blocks until
// ctx is done or one of them fails.
func (a *Application) RunWorkers(ctx context.Context, n int) error {
	if n <= 0 {
		n = max(a.cfg.Worker.Count, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		worker, err := a.NewWorker(fmt.Sprintf("w%d", i+1))
		if err != nil {
			return err
		}
		loop := usecase.NewScheduler(scheduler.NewIntervalScheduler(a.cfg.Worker.PollInterval), worker)
		g.Go(func() error {
			return loop.Run(gctx)
		})
	}

	a.log.Info("workers started", "count", n, "poll_interval", a.cfg.Worker.PollInterval)
	return g.Wait()
}

// Handler builds the HTTP API over the open job store.
func (a *Application) Handler() (*api.Handler, error) {
	if a.jobs == nil {
		return nil, ErrStoreNotOpen
	}
	return api.NewHandler(a.jobs, a.pipeline, a.metrics.Handler(), a.log.With("component", "api")), nil
}

// Serve runs the HTTP API and, when workers > 0, that many embedded workers.
func (a *Application) Serve(ctx context.Context, workers int) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	server := api.NewServer(a.cfg.Server.Addr, handler, a.log.With("component", "http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if workers > 0 {
		g.Go(func() error {
			return a.RunWorkers(gctx, workers)
		})
	}
	return g.Wait()
}

// ServeMetrics exposes only /metrics and /healthz, used by standalone worker processes.
func (a *Application) ServeMetrics(ctx context.Context, addr string) error {
	mux := api.NewMetricsMux(a.metrics.Handler())
	return api.NewServer(addr, mux, a.log.With("component", "metrics")).Run(ctx)
}

// Close releases the job store.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db, a.repo, a.jobs = nil, nil, nil
	return err
}
