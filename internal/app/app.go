// Package app wires configuration, logging, telemetry, the analysis
// pipeline, and the results API into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"surveykit/internal/config"
	"surveykit/internal/infrastructure"
	"surveykit/internal/pipeline"
	transport "surveykit/internal/transport/http"
)

// Application is the service container for resultsd: it runs the
// pipeline once at startup and serves the result tables until
// interrupted.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Runner *pipeline.Runner
	Store  *transport.ResultsStore
	Server *http.Server

	otel      *infrastructure.OTelProviders
	logCloser io.Closer
}

// New builds the application from the configuration file and
// environment.
func New(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(logger)

	providers, err := infrastructure.InitializeOTel(ctx, logger)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store := transport.NewResultsStore()
	app := &Application{
		Config: cfg,
		Logger: logger,
		Runner: pipeline.NewRunner(cfg, logger),
		Store:  store,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      transport.NewRouter(cfg.Server, store, logger),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		otel:      providers,
		logCloser: closer,
	}
	return app, nil
}

// Start runs the analysis pipeline, publishes its results, and begins
// serving. It returns once the listener stops.
func (a *Application) Start(ctx context.Context) error {
	results, err := a.Runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("analysis run: %w", err)
	}
	a.Store.Publish(results)
	a.Logger.InfoContext(ctx, "serving results",
		slog.String("run_id", results.RunID),
		slog.String("addr", a.Server.Addr))

	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server and telemetry down.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := a.otel.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "telemetry shutdown failed",
			slog.String("error", err.Error()))
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
	a.Logger.InfoContext(ctx, "shutdown complete")
	return nil
}

// Run starts the application and blocks until an interrupt arrives.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))
		return a.Stop(ctx)
	}
}
