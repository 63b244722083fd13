// -----------------------------------------------------------------------
// Application assembly: storage, services, handlers, in dependency order.
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/forms"
	"github.com/ternarybob/scriba/internal/handlers"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/services/events"
	"github.com/ternarybob/scriba/internal/services/pipeline"
	"github.com/ternarybob/scriba/internal/services/runs"
	"github.com/ternarybob/scriba/internal/services/scheduler"
	"github.com/ternarybob/scriba/internal/services/sessions"
	"github.com/ternarybob/scriba/internal/services/sheets"
	"github.com/ternarybob/scriba/internal/services/status"
	"github.com/ternarybob/scriba/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB *storage.BadgerDB

	// Core services
	EventService     interfaces.EventService
	StatusService    interfaces.StatusService
	RunService       interfaces.RunService
	SheetClient      interfaces.SheetClient
	SessionPool      interfaces.SessionPool
	Pipeline         interfaces.PipelineExecutor
	SchedulerService interfaces.SchedulerService

	// Form catalog
	Forms *forms.Definitions

	// HTTP handlers
	WSHandler     *handlers.WebSocketHandler
	StatusHandler *handlers.StatusHandler
	PollerHandler *handlers.PollerHandler
	JobHandler    *handlers.JobHandler
	StageHandler  *handlers.StageHandler
	RunHandler    *handlers.RunHandler
	LogHandler    *handlers.LogHandler

	wsWriter *handlers.WebSocketWriter
	pool     *sessions.Pool
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Event service and WebSocket handler come first so every later
	// service can publish to the dashboard from its constructor onward.
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, app.Logger, &cfg.WebSocket)

	wsWriter, err := handlers.NewWebSocketWriter(app.WSHandler, arbormodels.WriterConfiguration{
		TimeFormat: "15:04:05",
		TextOutput: true,
	}, &cfg.WebSocket)
	if err != nil {
		return nil, fmt.Errorf("failed to create websocket log writer: %w", err)
	}
	app.wsWriter = wsWriter

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if cfg.Poller.StartOnBoot {
		if err := app.SchedulerService.Start(0); err != nil {
			app.Logger.Warn().Err(err).Msg("Failed to start poller on boot")
		} else {
			app.Logger.Info().Str("schedule", cfg.Poller.Schedule).Msg("Poller started on boot")
		}
	}

	app.Logger.Info().
		Int("stages", len(app.Pipeline.StageNames())).
		Int("concurrency", cfg.Poller.Concurrency).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the storage layer (Badger)
func (a *App) initStorage() error {
	db, err := storage.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to open badger store: %w", err)
	}
	a.DB = db

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	a.StatusService = status.NewService(a.EventService, a.Logger)
	a.RunService = runs.NewService(a.DB.Store(), a.EventService, a.Logger)
	a.SheetClient = sheets.NewClient(&a.Config.Sheet, a.Logger)

	// Kill any automation hosts a crashed previous run left holding
	// profile directories, then build the pool over the clean root.
	reclaimer := sessions.NewReclaimer(a.Logger)
	a.pool = sessions.NewPool(&a.Config.Browser, reclaimer, a.Logger)
	a.pool.SweepOrphans()
	a.SessionPool = a.pool

	defs, err := forms.Load()
	if err != nil {
		return fmt.Errorf("failed to load form definitions: %w", err)
	}
	a.Forms = defs

	a.Pipeline = pipeline.NewExecutor(a.Config, defs, a.EventService, a.Logger)

	a.SchedulerService = scheduler.NewService(
		a.Config,
		a.SheetClient,
		a.SessionPool,
		a.Pipeline,
		a.RunService,
		a.StatusService,
		a.Logger,
	)

	return nil
}

// initHandlers initializes the HTTP handlers
func (a *App) initHandlers() {
	// WSHandler already initialized in New() so services could publish
	// to connected clients during startup.
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.SchedulerService, a.SessionPool, a.Logger)
	a.PollerHandler = handlers.NewPollerHandler(a.SchedulerService, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.SchedulerService, a.Logger)
	a.StageHandler = handlers.NewStageHandler(a.Pipeline, a.SessionPool, a.SheetClient, a.Config.Sheet.Columns, a.Logger)
	a.RunHandler = handlers.NewRunHandler(a.RunService, a.Logger)
	a.LogHandler = handlers.NewLogHandler(a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	// Stop the poller first so no new jobs dispatch while sessions and
	// stores are shutting down.
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.pool != nil {
		a.pool.ReleaseAll()
		a.Logger.Info().Msg("Browser sessions released")
	}

	if a.RunService != nil {
		if err := a.RunService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close run service")
		}
	}

	if a.wsWriter != nil {
		if err := a.wsWriter.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close websocket log writer")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
