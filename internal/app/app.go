package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/api"
	"TenderScanner/internal/classify"
	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
	"TenderScanner/internal/infrastructure/browser"
	"TenderScanner/internal/infrastructure/httpfetch"
	"TenderScanner/internal/infrastructure/parser"
	"TenderScanner/internal/infrastructure/scheduler"
	"TenderScanner/internal/infrastructure/storage"
	"TenderScanner/internal/infrastructure/telegram"
	"TenderScanner/internal/matcher"
	"TenderScanner/internal/portal"
	"TenderScanner/internal/ports"
	"TenderScanner/internal/scanner"
	"TenderScanner/internal/taxonomy"
	"TenderScanner/internal/usecase"
	"TenderScanner/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

// Store is what the application needs from a storage backend.
type Store interface {
	ports.TenderStore
	ports.TenderReader
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*storage.PostgresStore)(nil)
	_ Store = (*storage.SQLiteStore)(nil)
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          *config.Config
	log          *zap.Logger
	store        Store
	portals      *portal.Registry
	orchestrator *usecase.Orchestrator
	maintenance  *usecase.Maintenance
}

// OpenStore connects the configured backend and applies its schema.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		st, err = storage.NewPostgres(ctx, cfg.DatabaseURL, storage.PoolConfig{MaxConns: cfg.MaxConns})
	case config.DriverSQLite:
		st, err = storage.NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// New opens the store and builds the batch pipeline.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if logger == nil {
		logger = zap.L()
	}
	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a, err := NewWithStore(cfg, st, logger)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return a, nil
}

// NewWithStore builds the application around an already migrated store.
func NewWithStore(cfg *config.Config, st Store, logger *zap.Logger) (*Application, error) {
	if logger == nil {
		logger = zap.L()
	}
	portals := portal.Default()
	classifier := classify.New(taxonomy.Default())

	table := parser.DefaultTable()
	for _, d := range parser.Missing(portals, table) {
		logger.Warn("portal has no extractor", zap.String("portal", d.ID))
	}
	extractors, err := table.Resolve()
	if err != nil {
		return nil, eris.Wrap(err, "resolve extractor table")
	}
	extractors.Wrap(func(_ string, ex scanner.Extractor) scanner.Extractor {
		return scanner.Guard(ex, scanner.GuardOptions{
			ItemCap:  cfg.Scan.ItemCap,
			Relevant: classifier.IsTrainingRelated,
		})
	})

	fetcher := httpfetch.New(httpfetch.Options{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.HTTP.Timeout,
		MaxRetries:  cfg.HTTP.MaxRetries,
		RatePerHost: cfg.HTTP.RatePerHost,
	}, logger.With(zap.String("component", "httpfetch")))

	browsers := browser.NewProvider(browser.Options{
		HubURL:          cfg.Browser.HubURL,
		PageLoadTimeout: cfg.Browser.PageLoadTimeout,
		ImplicitWait:    cfg.Browser.ImplicitWait,
		UserAgent:       cfg.HTTP.UserAgent,
	}, nil, logger)

	var notifier ports.Notifier
	if cfg.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	}

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Portals:         portals,
		Extractors:      extractors,
		HTTP:            fetcher,
		Browsers:        browsers,
		Enricher:        matcher.New(classifier),
		Store:           st,
		Notifier:        notifier,
		Logger:          logger,
		SourceTimeout:   cfg.Scan.SourceTimeout,
		HTTPConcurrency: cfg.Scan.HTTPConcurrency,
	})

	return &Application{
		cfg:          cfg,
		log:          logger,
		store:        st,
		portals:      portals,
		orchestrator: orchestrator,
		maintenance:  usecase.NewMaintenance(st, cfg.Retention.PurgeAfter, nil, logger),
	}, nil
}

// Store returns the opened backend.
func (a *Application) Store() Store { return a.store }

// Portals returns the portal registry.
func (a *Application) Portals() *portal.Registry { return a.portals }

// Maintenance returns the sweep and purge job.
func (a *Application) Maintenance() *usecase.Maintenance { return a.maintenance }

// Scan runs one batch over ids and waits for it.
func (a *Application) Scan(ctx context.Context, ids []string) (*domain.RunReport, error) {
	return a.orchestrator.RunBatch(ctx, ids)
}

// ScanSet runs one batch over a named portal set.
func (a *Application) ScanSet(ctx context.Context, set portal.Set) (*domain.RunReport, error) {
	ids, err := a.portals.Select(set)
	if err != nil {
		return nil, err
	}
	return a.Scan(ctx, ids)
}

// Activities exposes the use cases to a Temporal worker.
func (a *Application) Activities() *workflow.Activities {
	return &workflow.Activities{
		Runner:      a.orchestrator,
		Maintenance: a.maintenance,
		Portals:     a.portals,
		Log:         a.log.With(zap.String("component", "workflow")),
	}
}

// Scheduler builds the cron-driven job table.
func (a *Application) Scheduler() (*usecase.Scheduler, error) {
	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.Timezone, a.log)
	if err != nil {
		return nil, err
	}
	return usecase.NewScheduler(driver, a.orchestrator, a.maintenance, a.portals,
		a.cfg.Scheduler.Cron, a.cfg.Scheduler.Retry.Policy(), a.log), nil
}

// Handler builds the query API bound to trigger.
func (a *Application) Handler(trigger api.Submitter) http.Handler {
	return api.NewServer(api.Deps{
		Reader:         a.store,
		Portals:        a.portals,
		Trigger:        trigger,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Logger:         a.log,
	}).Routes()
}

// Serve runs the query API, plus the scheduler when enabled, until ctx is
// cancelled. Manual scans in flight are awaited before returning.
func (a *Application) Serve(ctx context.Context, port int) error {
	if port == 0 {
		port = a.cfg.Server.Port
	}

	trigger := usecase.NewTrigger(ctx, a.orchestrator, a.log)
	defer trigger.Wait()

	if a.cfg.Scheduler.Enabled {
		sched, err := a.Scheduler()
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return eris.Wrap(err, "start scheduler")
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				a.log.Warn("scheduler stop", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.Handler(trigger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		a.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	a.log.Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// Close releases the store.
func (a *Application) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
