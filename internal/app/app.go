package app

import (
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"eexcot/internal/config"
	"eexcot/internal/dataprocessing"
	apierrors "eexcot/internal/errors"
	"eexcot/internal/files"
	"eexcot/internal/history"
	"eexcot/internal/infrastructure"
	mw "eexcot/internal/middleware"
	"eexcot/internal/services"
	handlers "eexcot/internal/transport/http"
	"eexcot/pkg/contracts"
)

// Application holds the wired components of the ingestion engine
type Application struct {
	Config    *config.Config
	Paths     *config.Paths
	Logger    *slog.Logger
	OTel      *infrastructure.OTelProviders
	Metrics   *infrastructure.IngestMetrics
	Store     history.Store
	Processor *dataprocessing.SnapshotProcessor
	Files     *files.Manager
	Ingest    *services.IngestService
	Series    *services.SeriesService
	Export    *services.ExportService
	Health    *services.HealthService
	Router    *chi.Mux
	Server    *http.Server
}

// NewApplication wires the application from cfg. A nil logger initializes
// the global logger from cfg.Logging. Unusable paths are reported as
// configuration errors.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, apierrors.NewConfigError("failed to resolve paths", err)
	}

	if logger == nil {
		logger, err = infrastructure.InitializeLogger(loggingConfig(cfg.Logging, paths))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	if err := paths.EnsureDirectories(); err != nil {
		return nil, apierrors.NewConfigError("failed to ensure directories", err)
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config: cfg,
		Paths:  paths,
		Logger: logger,
		OTel:   providers,
	}

	if err := a.initializeServices(); err != nil {
		// The providers are global; leave them clean for the next attempt
		_ = providers.Shutdown(context.Background())
		return nil, err
	}
	a.setupRouter()
	a.createServer()

	logger.Info("Application initialized",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("history_dir", paths.HistoryDir))
	return a, nil
}

// initializeServices builds the store, the processing pipeline and the services
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.NewIngestMetrics(a.OTel.Meter)
	if err != nil {
		return fmt.Errorf("failed to create ingest metrics: %w", err)
	}
	a.Metrics = metrics

	store, err := history.NewCSVStore(a.Paths.HistoryDir, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	a.Store = store

	a.Processor = dataprocessing.NewSnapshotProcessor(processingOptions(a.Config.Ingest), a.Logger)
	a.Files = files.NewManager(a.Paths, a.Logger)

	a.Ingest = services.NewIngestService(a.Processor, a.Store, services.IngestOptions{
		Parallelism: a.Config.Ingest.Parallelism,
		Timeout:     a.Config.Ingest.Timeout,
		Metrics:     a.Metrics,
		Tracer:      a.OTel.Tracer,
		Archiver:    a.Files,
	}, a.Logger)
	a.Series = services.NewSeriesService(a.Store, a.Logger)
	a.Export = services.NewExportService(a.Series, a.Paths, a.Logger)
	a.Health = services.NewHealthService(config.AppVersion, contracts.BuildTime, a.Paths, a.Store, a.Logger)
	return nil
}

// loggingConfig places a relative log file inside the logs directory
func loggingConfig(cfg config.LoggingConfig, paths *config.Paths) config.LoggingConfig {
	if cfg.FilePath != "" && !filepath.IsAbs(cfg.FilePath) {
		cfg.FilePath = paths.GetLogPath(filepath.Base(cfg.FilePath))
	}
	return cfg
}

func processingOptions(cfg config.IngestConfig) dataprocessing.ProcessingOptions {
	opts := dataprocessing.DefaultOptions()
	if cfg.SheetName != "" {
		opts.Parser.SheetName = cfg.SheetName
	}
	if cfg.DataStartColumn > 0 {
		opts.Parser.DataStartColumn = cfg.DataStartColumn
	}
	opts.Tolerance = cfg.Tolerance
	return opts
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Use(mw.RequestID)
	r.Use(mw.RealIP)
	r.Use(apierrors.NewErrorMiddleware(errorHandler, a.Logger).Handler)

	otelMiddleware, err := mw.NewOTelMiddleware(a.OTel, a.Metrics)
	if err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}

	r.Use(mw.SecurityHeaders)
	r.Use(mw.CORS(a.getCORSConfig()))

	// Probes and scrapes stay outside the rate limit and the request timeout
	health := handlers.NewHealthHandler(a.Health, a.Logger)
	r.Get(config.HealthEndpoint, health.HealthCheck)
	r.Get(config.HealthEndpoint+"/live", health.LivenessCheck)
	r.Handle(config.MetricsEndpoint, a.OTel.PrometheusHTTP)

	r.Route(config.APIBasePath, func(r chi.Router) {
		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(mw.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}
		r.Use(mw.Timeout(a.Config.Ingest.Timeout, a.Logger))
		r.Use(mw.Compress(flate.DefaultCompression))
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/version", health.Version)
		r.Get("/stats", health.Stats)

		instruments := handlers.NewInstrumentHandler(a.Series, a.Ingest, a.Export,
			a.Config.Server.MaxUploadBytes, a.Logger, errorHandler)
		r.Mount("/instruments", instruments.Routes())
	})

	a.Router = r
}

// getCORSConfig returns the CORS configuration for the API
func (a *Application) getCORSConfig() mw.CORSConfig {
	return mw.CORSConfig{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Config.Server.Address(),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}

// Start listens on the configured address and serves in the background.
// A serve failure calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln, cancel)
}

// Serve serves on ln in the background
func (a *Application) Serve(ctx context.Context, ln net.Listener, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting server",
		slog.String("address", ln.Addr().String()),
		slog.String("version", config.AppVersion),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	status := a.Health.HealthCheck(ctx)
	if status.Status != "ok" {
		a.Logger.WarnContext(ctx, "Startup health check degraded", slog.Any("services", status.Services))
	}
	return nil
}

// Stop gracefully stops the server and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases everything but the HTTP server. Command line runs that
// never serve call it directly.
func (a *Application) Close(ctx context.Context) error {
	if a.OTel == nil {
		return nil
	}
	if err := a.OTel.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

// Run serves until SIGINT, SIGTERM or a server failure
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	// ctx is already done; shut down on a fresh one
	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
