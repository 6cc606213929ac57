package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"DSEReports/internal/config"
	"DSEReports/internal/extraction"
	"DSEReports/internal/infrastructure/documents"
	"DSEReports/internal/infrastructure/fetcher"
	"DSEReports/internal/infrastructure/httpclient"
	"DSEReports/internal/infrastructure/locator"
	"DSEReports/internal/infrastructure/marketdata"
	"DSEReports/internal/infrastructure/scheduler"
	"DSEReports/internal/infrastructure/sink"
	"DSEReports/internal/infrastructure/storage"
	"DSEReports/internal/infrastructure/telegram"
	"DSEReports/internal/logging"
	"DSEReports/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	db        *sql.DB
	logger    *slog.Logger
}

// New builds the runnable application. The history database is only opened
// when a DSN is configured.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	client := httpclient.New(cfg.HTTP)
	if cfg.HTTP.InsecureSkipVerify {
		baseLogger.Warn("TLS certificate verification is disabled")
	}

	registry := extraction.NewRegistry(baseLogger.With("component", "extraction"))
	registry.Register(documents.PDFReader{})
	registry.Register(documents.SheetReader{})

	deps := usecase.PipelineDeps{
		Config:  cfg,
		Locator: locator.New(client, cfg.HTTP.UserAgent, baseLogger.With("component", "locator")),
		Fetcher: fetcher.New(client, fetcher.Options{
			Root:               cfg.Reports.Root,
			UserAgent:          cfg.HTTP.UserAgent,
			DownloadsPerSecond: cfg.HTTP.DownloadsPerSecond,
			Location:           cfg.Scheduler.Location(),
		}, baseLogger.With("component", "fetcher")),
		Extractor: registry,
		Sink:      sink.CSVSink{},
		Logger:    baseLogger.With("component", "pipeline"),
	}

	var db *sql.DB
	if cfg.Database.DSN != "" {
		var err error
		db, err = storage.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		repo := storage.NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		deps.Repository = repo
	}

	if cfg.Notifications.Telegram.Enabled() {
		// The bot token travels in the URL, so this client keeps certificate checks.
		deps.Notifier = telegram.NewNotifier(cfg.Notifications.Telegram, nil)
	}

	if cfg.MarketData.Enabled {
		deps.MarketData = marketdata.NewParser(cfg.MarketData.Source, nil, baseLogger.With("component", "marketdata"))
	}

	pipeline := usecase.NewPipeline(deps)

	daily, err := scheduler.NewDaily(scheduler.Options{
		CronExpression: cfg.Scheduler.CronExpression,
		Location:       cfg.Scheduler.Location(),
		PollInterval:   cfg.Scheduler.PollInterval,
		RunOnStart:     cfg.Scheduler.RunOnStart,
	}, baseLogger.With("component", "scheduler"))
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("build scheduler: %w", err)
	}

	return &Application{
		cfg:       cfg,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(daily, pipeline, baseLogger.With("component", "scheduler")),
		db:        db,
		logger:    baseLogger,
	}, nil
}

// Run blocks on the scheduler loop until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()
	a.logger.Info("scheduler started",
		"cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Location().String(),
		"sources", len(a.cfg.Sources))
	return a.scheduler.Run(ctx)
}

// RunOnce executes a single pipeline run immediately.
func (a *Application) RunOnce(ctx context.Context) error {
	defer a.close()
	return a.pipeline.Run(ctx, time.Now().In(a.cfg.Scheduler.Location()))
}

func (a *Application) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}
