package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/earnings/internal/common"
	"github.com/ternarybob/earnings/internal/interfaces"
	"github.com/ternarybob/earnings/internal/models"
	"github.com/ternarybob/earnings/internal/services/assembler"
	"github.com/ternarybob/earnings/internal/services/calendar"
	"github.com/ternarybob/earnings/internal/services/fetcher"
	"github.com/ternarybob/earnings/internal/services/llm"
	"github.com/ternarybob/earnings/internal/services/mailer"
	"github.com/ternarybob/earnings/internal/services/orchestrator"
	"github.com/ternarybob/earnings/internal/services/pdf"
	"github.com/ternarybob/earnings/internal/services/report"
	"github.com/ternarybob/earnings/internal/services/resolver"
	"github.com/ternarybob/earnings/internal/services/scheduler"
	"github.com/ternarybob/earnings/internal/services/transform"
	"github.com/ternarybob/earnings/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Calendar and resolution
	Calendar *calendar.Service
	Resolver *resolver.Resolver

	// Document pipeline
	Fetcher     *fetcher.Service
	Extractor   *pdf.Extractor
	PDFService  *pdf.Service
	Transformer *transform.Service
	Assembler   *assembler.Assembler

	// LLM service (Gemini or Claude)
	LLMService *llm.Service

	// Output
	ReportService *report.Service
	MailService   *mailer.Service // nil when the email config could not be loaded

	// Run history, nil when [storage.badger] is disabled or failed to open
	RunStorage interfaces.RunStorage

	Orchestrator     *orchestrator.Service
	SchedulerService *scheduler.Service
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Run history is optional; the pipeline runs without it
	app.initStorage()

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Debug().
		Str("provider", string(cfg.LLM.Provider)).
		Bool("history_enabled", app.RunStorage != nil).
		Bool("email_configured", app.MailService != nil && app.MailService.IsConfigured()).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens the Badger run history store
func (a *App) initStorage() {
	if !a.Config.Storage.Badger.Enabled {
		a.Logger.Debug().Msg("Run history disabled")
		return
	}

	db, err := badger.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		a.Logger.Warn().Err(err).Str("path", a.Config.Storage.Badger.Path).Msg("Run history unavailable")
		return
	}

	a.RunStorage = badger.NewRunStorage(db, a.Logger)
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
}

// initServices builds the pipeline bottom-up
func (a *App) initServices() error {
	var err error

	// 1. Release calendar
	a.Calendar, err = calendar.NewService(a.Config.Calendar.Path, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load release calendar: %w", err)
	}
	a.Resolver = resolver.NewResolver(a.Logger)

	// 2. Fetcher
	a.Fetcher, err = fetcher.NewService(&a.Config.Fetcher, &a.Config.Storage, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	// 3. Document conversion
	a.Extractor = pdf.NewExtractor(a.Logger)
	a.PDFService = pdf.NewService(a.Logger)
	a.Transformer = transform.NewService(a.Logger)

	// 4. Prompt assembly
	prompts, err := assembler.LoadPrompts(&a.Config.Prompt, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	a.Assembler = assembler.NewAssembler(a.Config.Assembler, prompts, a.Extractor, a.Transformer, a.Logger)

	// 5. LLM
	a.LLMService, err = llm.NewService(&a.Config.Gemini, &a.Config.Claude, &a.Config.LLM, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM service: %w", err)
	}

	// 6. Reports and email
	a.ReportService = report.NewService(&a.Config.Results, a.PDFService, a.Logger)

	a.MailService, err = mailer.NewService(&a.Config.Email, a.PDFService, a.Logger)
	if err != nil {
		// Email never blocks an analysis
		a.Logger.Warn().Err(err).Str("path", a.Config.Email.ConfigPath).Msg("Email configuration could not be loaded, reports will not be sent")
		a.MailService = nil
	}

	// 7. Orchestrator
	opts := []orchestrator.Option{orchestrator.WithReportWriter(a.ReportService)}
	if a.MailService != nil {
		opts = append(opts, orchestrator.WithReportSender(a.MailService))
	}
	if a.RunStorage != nil {
		opts = append(opts, orchestrator.WithRunStorage(a.RunStorage))
	}
	a.Orchestrator = orchestrator.NewService(a.Calendar, a.Resolver, a.Fetcher, a.Assembler, a.LLMService, a.Logger, opts...)

	// 8. Scheduler (started on demand)
	a.SchedulerService = scheduler.NewService(func(ctx context.Context, tickers []string) []models.BatchOutcome {
		return a.Orchestrator.RunBatch(ctx, tickers, a.RunOptions(""))
	}, a.Logger)

	return nil
}

// RunOptions builds orchestrator options from the loaded configuration
func (a *App) RunOptions(model string) orchestrator.RunOptions {
	return orchestrator.RunOptions{
		Model:     model,
		SkipEmail: a.Config.Email.Skip,
	}
}

// Close releases all resources
func (a *App) Close() error {
	if a.SchedulerService != nil && a.SchedulerService.IsRunning() {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.RunStorage != nil {
		if err := a.RunStorage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close run history")
			return err
		}
	}

	a.Logger.Debug().Msg("Application closed")
	return nil
}
