// Command reco runs the recommendation service: it ingests lesson
// completion events relayed from the LMS and serves next-course
// recommendations.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/learnstream/learnstream"
	"github.com/learnstream/learnstream/adapters"
	"github.com/learnstream/learnstream/adapters/memory"
	"github.com/learnstream/learnstream/adapters/postgres"
	"github.com/learnstream/learnstream/internal/reco"
	"github.com/learnstream/learnstream/middleware/metrics"
	"github.com/learnstream/learnstream/middleware/tracing"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "reco",
		Short:        "Course recommendation service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := reco.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.AddCommand(serve)

	return root
}

func run(ctx context.Context, cfg *reco.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	logger := learnstream.NewSlogLogger(slogger)

	m := metrics.New(metrics.WithServiceName("reco"))
	m.MustRegister()

	var tracerOpts []tracing.TracerOption
	if cfg.Tracing {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		defer func() {
			_ = tp.Shutdown(context.Background())
		}()
		tracerOpts = append(tracerOpts, tracing.WithTracerProvider(tp))
	}
	tracer := tracing.NewTracer(append(tracerOpts, tracing.WithServiceName("reco"))...)

	var adapter adapters.EventStoreAdapter
	if cfg.DatabaseURL != "" {
		pg, err := postgres.NewAdapter(cfg.DatabaseURL, postgres.WithSchema("reco"))
		if err != nil {
			return fmt.Errorf("connect event store: %w", err)
		}
		adapter = pg
		logger.Info("using postgres event store")
	} else {
		adapter = memory.NewAdapter()
		logger.Info("using in-memory event store")
	}
	adapter = tracing.NewEventStoreMiddleware(m.WrapEventStore(adapter), tracer)

	history := reco.NewHistory()
	projector := tracing.NewProjectorMiddleware(m.WrapProjector(reco.NewProjection(history)), tracer)

	store := learnstream.New(adapter,
		learnstream.WithLogger(logger),
		learnstream.WithProjectors(projector),
	)
	store.RegisterEvents(reco.Events()...)

	if err := store.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize event store: %w", err)
	}
	defer store.Close()

	lmsClient := reco.NewLMSClient(cfg.LMSServiceURL, reco.WithLMSLogger(logger))
	engine := reco.NewEngine(history, lmsClient, cfg.Fallbacks(), logger)
	ingestor := reco.NewIngestor(store)

	mux := reco.NewServer(ingestor, engine, logger).Routes()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reco listening", "addr", cfg.ListenAddr, "lms", cfg.LMSServiceURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
