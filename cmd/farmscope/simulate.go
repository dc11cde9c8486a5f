package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"farmScope/internal/config"
	"farmScope/internal/metrics"
	"farmScope/internal/scenario"
	"farmScope/internal/storage"
	"farmScope/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	sc, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return err
	}
	if cfg.ChainID != 0 {
		sc.ChainID = cfg.ChainID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var server *http.Server
	if cfg.MetricsAddr != "" {
		server = serveMetrics(cfg.MetricsAddr, reg, logger)
		defer shutdown(server, logger)
	}

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.String("name", sc.Name),
		zap.Uint64("chain_id", sc.ChainID),
		zap.Int("steps", len(sc.Steps)),
		zap.String("out", cfg.Out),
		zap.String("farms_out", cfg.FarmsOut),
	)

	report, runErr := scenario.Run(sc, scenario.Options{
		Context: ctx,
		Logger:  logger,
		Metrics: metrics.NewMetrics(reg),
	})
	if report == nil {
		return runErr
	}

	if err := writeSimulation(ctx, cfg, report, logger); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	if server != nil {
		logger.Info("serving metrics until interrupted", zap.String("addr", cfg.MetricsAddr))
		<-ctx.Done()
	}
	return nil
}

func writeSimulation(ctx context.Context, cfg config.SimulateConfig, report *scenario.Report, logger *zap.Logger) error {
	if err := os.Remove(cfg.Out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset output: %w", err)
	}
	if err := storage.NewJsonlStorage(cfg.Out).PutLogBatch(report.Logs); err != nil {
		return err
	}
	if cfg.FarmsOut != "" {
		if err := (storage.FarmFile{Path: cfg.FarmsOut}).PutFarms(report.Farms); err != nil {
			return err
		}
	}
	if cfg.Report != "" {
		w, err := storage.NewWriter(cfg.Report, false)
		if err != nil {
			return err
		}
		if err := w.Write(report); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := store.UpsertFarms(ctx, report.Farms); err != nil {
			return fmt.Errorf("upsert farms: %w", err)
		}
		if err := store.InsertEvents(ctx, report.Logs); err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
		logger.Info("postgres written", zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
	}

	logger.Info("simulate complete",
		zap.Int("steps", len(report.Steps)),
		zap.Int("logs", len(report.Logs)),
		zap.Int("farms", len(report.Farms)),
	)
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return server
}

func shutdown(server *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
}
