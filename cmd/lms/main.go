// Command lms runs the learning management service: the system of
// record for courses, lessons and completions.
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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/learnstream/learnstream"
	"github.com/learnstream/learnstream/adapters"
	"github.com/learnstream/learnstream/adapters/memory"
	"github.com/learnstream/learnstream/adapters/postgres"
	"github.com/learnstream/learnstream/internal/lms"
	"github.com/learnstream/learnstream/middleware/metrics"
	"github.com/learnstream/learnstream/middleware/tracing"
	"github.com/learnstream/learnstream/relay"
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
		Use:          "lms",
		Short:        "Learning management service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := lms.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.AddCommand(serve)

	return root
}

func run(ctx context.Context, cfg *lms.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	logger := learnstream.NewSlogLogger(slogger)

	m := metrics.New(metrics.WithServiceName("lms"))
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
	tracer := tracing.NewTracer(append(tracerOpts, tracing.WithServiceName("lms"))...)

	var adapter adapters.EventStoreAdapter
	if cfg.DatabaseURL != "" {
		pg, err := postgres.NewAdapter(cfg.DatabaseURL)
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

	models := lms.NewReadModels()
	projector := tracing.NewProjectorMiddleware(m.WrapProjector(lms.NewProjection(models)), tracer)

	store := learnstream.New(adapter,
		learnstream.WithLogger(logger),
		learnstream.WithProjectors(projector),
	)
	store.RegisterEvents(lms.Events()...)

	if err := store.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize event store: %w", err)
	}
	defer store.Close()

	var notifier lms.CompletionNotifier
	if cfg.RecoServiceURL != "" {
		rel := relay.New(cfg.RecoServiceURL,
			relay.WithTimeout(cfg.RelayTimeout),
			relay.WithLogger(logger),
			relay.WithRecorder(m),
		)
		notifier = lms.NewRelayNotifier(rel)
		logger.Info("relaying completion events", "target", cfg.RecoServiceURL)
	}

	bus := learnstream.NewCommandBus(learnstream.WithMiddleware(
		learnstream.RecoveryMiddleware(),
		learnstream.CorrelationIDMiddleware(uuid.NewString),
		learnstream.NewLoggingMiddleware(logger).Middleware(),
		m.CommandMiddleware(),
		tracing.CommandMiddleware(tracer),
		learnstream.ValidationMiddleware(),
		learnstream.RetryMiddleware(learnstream.ConcurrencyRetryConfig()),
	))
	defer bus.Close()

	lms.RegisterHandlers(bus, store, notifier)

	mux := lms.NewServer(bus, models, logger).Routes()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lms listening", "addr", cfg.ListenAddr)
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
