package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/plugins/openai"
	"github.com/flowforge/flowforge/runtime"
)

const (
	serviceName     = "flowforge"
	shutdownTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the flow API",
		Long: `Serve starts the HTTP API used by the studio:

  POST /api/flow/run       execute a flow
  POST /api/flow/validate  validate a flow without running it
  GET  /api/flow/default   the starter flow
  GET  /api/flows          flows loaded from the flows directory
  GET  /metrics            Prometheus metrics
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if addr != "" {
				settings.Addr = addr
			}
			return serve(cmd.Context(), settings)
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides settings)")
	return serveCmd
}

func serve(ctx context.Context, settings *runtime.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := runtime.NewLogger(os.Stdout, settings.LogLevel, settings.LogFormat)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	if settings.Tracing {
		tp, err := runtime.NewTracerProvider(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	app, err := runtime.NewApp(settings.FlowsDir, flowLoaders()...)
	if err != nil {
		return fmt.Errorf("error loading flows: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	executor := runtime.NewExecutor(logger, runtime.WithMetrics(runtime.NewMetrics(registry)))
	runner := runtime.NewRunner(logger, settings, executor, openai.NewFactory(settings))
	server := runtime.NewServer(logger, app, runner, registry)

	srv := &http.Server{
		Addr:              settings.Addr,
		Handler:           server.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting flow API",
			slog.String("addr", settings.Addr),
			slog.Int("flows", len(app.Flows)),
			slog.Bool("mock_enabled", settings.MockEnabled),
			slog.Bool("default_api_key", settings.DefaultAPIKey != ""))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error running server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down flow API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
