// -----------------------------------------------------------------------
// App - dependency wiring and lifecycle
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/common"
	"github.com/ternarybob/farewatch/internal/handlers"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/pricing"
	"github.com/ternarybob/farewatch/internal/services/notify"
	"github.com/ternarybob/farewatch/internal/services/quotes"
	"github.com/ternarybob/farewatch/internal/services/runner"
	"github.com/ternarybob/farewatch/internal/services/scheduler"
	"github.com/ternarybob/farewatch/internal/services/scraper"
	"github.com/ternarybob/farewatch/internal/services/travelctx"
	"github.com/ternarybob/farewatch/internal/storage/badger"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Quote chain
	PricingClient *pricing.Client
	Scraper       *scraper.Scraper
	QuoteEngine   *quotes.Engine

	// Supporting services
	ContextFetcher *travelctx.Fetcher
	Mailer         *notify.Mailer

	// Job execution
	Runner     *runner.Runner
	Executor   interfaces.JobExecutor
	JobService *runner.JobService
	Bridge     *runner.Bridge

	SchedulerService interfaces.SchedulerService

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	FlightHandler *handlers.FlightHandler
	JobHandler    *handlers.JobHandler
	AgentHandler  *handlers.AgentHandler
}

// New wires the application. Order matters: storage first, then the
// quote chain, then job execution, then the scheduler and handlers.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.PricingClient = pricing.NewClient(
		cfg.Pricing.APIKey,
		cfg.Pricing.APISecret,
		pricing.WithBaseURL(cfg.Pricing.BaseURL),
		pricing.WithTimeout(cfg.Pricing.RequestTimeout),
		pricing.WithRateLimit(cfg.Pricing.RateLimit),
		pricing.WithLogger(logger),
	)
	if !app.PricingClient.Configured() {
		logger.Warn().Msg("Pricing API credentials not set, quotes will use the scraper only")
	}

	app.Scraper = scraper.NewScraper(cfg.Scraper, logger)
	app.QuoteEngine = quotes.NewEngine(app.PricingClient, app.Scraper, logger)

	app.ContextFetcher = travelctx.NewFetcher(cfg.Context, logger)
	app.Mailer = notify.NewMailer(cfg.SMTP, logger)
	if !app.Mailer.IsConfigured() {
		logger.Warn().Msg("SMTP not configured, price drop alerts will fail on delivery")
	}

	app.Runner = runner.NewRunner(
		storageManager,
		app.QuoteEngine,
		app.ContextFetcher,
		app.Mailer,
		cfg.Jobs,
		logger,
	)

	// Execution strategy is resolved once at startup. Local mode claims
	// and runs jobs in-process; remote mode leaves them queued for the
	// polling agent behind the bridge endpoints.
	switch cfg.Jobs.ExecutionMode {
	case common.ExecutionModeRemote:
		app.Executor = runner.NewRemoteExecutor(logger)
	default:
		app.Executor = runner.NewLocalExecutor(storageManager.JobStorage(), app.Runner, logger)
	}
	app.Runner.SetOnJobCreated(app.Executor.Kick)

	app.JobService = runner.NewJobService(storageManager, app.Executor, cfg.Jobs, logger)
	app.Bridge = runner.NewBridge(storageManager, cfg.Jobs, logger)
	app.Bridge.SetOnJobCreated(app.Executor.Kick)

	app.SchedulerService = scheduler.NewService(app.JobService, storageManager.FlightStorage(), cfg.Scheduler, logger)
	app.Runner.SetNextRunAt(app.SchedulerService.NextCheckTime)

	app.APIHandler = handlers.NewAPIHandler(logger)
	app.FlightHandler = handlers.NewFlightHandler(storageManager, app.JobService, logger)
	app.JobHandler = handlers.NewJobHandler(app.JobService, storageManager.JobStorage(), app.SchedulerService, logger)
	app.AgentHandler = handlers.NewAgentHandler(app.Bridge, logger)

	logger.Info().
		Str("execution_mode", string(cfg.Jobs.ExecutionMode)).
		Bool("pricing_api", app.PricingClient.Configured()).
		Bool("smtp", app.Mailer.IsConfigured()).
		Msg("Application initialization complete")

	return app, nil
}

// Start launches the executor and the scheduler.
func (a *App) Start() error {
	if err := a.Executor.Start(); err != nil {
		return fmt.Errorf("failed to start executor: %w", err)
	}
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close stops services in reverse startup order.
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if a.Executor != nil {
		a.Executor.Stop()
		a.Logger.Info().Msg("Job executor stopped")
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
