package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tariff-service/internal/config"
	"tariff-service/internal/handlers"
	"tariff-service/internal/logging"
	"tariff-service/internal/metrics"
	"tariff-service/internal/worker"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "tariff-service",
		Short:         "Insurance tariff service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newIngestCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("tariff-service exited with error", "error", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newIngestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Create tariffs from a bulk JSON file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), file, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "bulk tariff JSON document")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// setup loads configuration and installs logging. The returned func flushes
// sentry and closes the log file.
func setup() (*config.TariffServiceConfig, func(), error) {
	cfg := config.New()

	sentryEnabled := cfg.SentryDSN != ""
	if sentryEnabled {
		if err := logging.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
			slog.Warn("sentry disabled", "error", err)
			sentryEnabled = false
		}
	}

	logFile, err := logging.Setup(cfg.LogCfg, sentryEnabled)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to set up logging: %w", err)
	}

	teardown := func() {
		if sentryEnabled {
			logging.FlushSentry(2 * time.Second)
		}
		logFile.Close()
	}

	if err := cfg.Validate(); err != nil {
		teardown()
		return nil, func() {}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, teardown, nil
}

func runServe(ctx context.Context) error {
	cfg, teardown, err := setup()
	if err != nil {
		return err
	}
	defer teardown()

	deps, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	m.RegisterSink(deps.sink.Stats)

	app, err := handlers.NewApp(cfg.CORSOriginRegex, m,
		handlers.NewTariffHandler(deps.tariffService),
		handlers.NewRateHandler(deps.rateService),
		handlers.NewDefaultHandler(deps.tariffService),
	)
	if err != nil {
		deps.close(context.Background())
		return err
	}

	flushJob, err := worker.NewFlushJob(cfg.EventFlushSchedule, deps.sink, cfg.ShutdownTimeout)
	if err != nil {
		deps.close(context.Background())
		return err
	}
	flushJob.Start()

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("Tariff service listening", "port", cfg.Port, "broker", cfg.BrokerDriver)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err = <-listenErr:
		slog.Error("http server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if shutdownErr := app.ShutdownWithContext(shutdownCtx); shutdownErr != nil {
		slog.Error("http server shutdown failed", "error", shutdownErr)
	}
	flushJob.Stop(shutdownCtx)
	deps.close(shutdownCtx)

	slog.Info("Tariff service stopped")
	return err
}

func runIngest(ctx context.Context, file string, out io.Writer) error {
	cfg, teardown, err := setup()
	if err != nil {
		return err
	}
	defer teardown()

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	deps, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		deps.close(closeCtx)
	}()

	created, err := deps.tariffService.IngestBulk(ctx, raw)
	for _, group := range created {
		fmt.Fprintf(out, "%s\t%s\t%d tariffs\n", group.ID, group.PublishedAt, len(group.Tariffs))
	}
	if err != nil {
		return fmt.Errorf("ingestion stopped after %d date(s): %w", len(created), err)
	}
	return nil
}
