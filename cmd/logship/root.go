package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/V4T54L/logbeacon/internal/pkg/config"
	"github.com/V4T54L/logbeacon/internal/pkg/logger"
)

var (
	flagReportURL   string
	flagAppID       string
	flagStore       string
	flagStoreDir    string
	flagLogLevel    string
	flagMetricsAddr string
)

var rootCmd = &cobra.Command{
	Use:          "logship",
	Short:        "Ship telemetry entries through a logbeacon pipeline",
	Long:         "Batches entries read from stdin, delivers them to the collector and keeps\nundeliverable batches in a durable store until the next run.",
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagReportURL, "report-url", "", "collector endpoint (env: LOGBEACON_REPORT_URL)")
	pf.StringVar(&flagAppID, "app-id", "", "application identifier (env: LOGBEACON_APP_ID)")
	pf.StringVar(&flagStore, "store", "", "durable store backend: memory, file, redis, postgres (env: LOGBEACON_STORE_BACKEND)")
	pf.StringVar(&flagStoreDir, "store-dir", "", "directory of the file store (env: LOGBEACON_STORE_DIR)")
	pf.StringVar(&flagLogLevel, "log-level", "", "diagnostic log level (env: LOGBEACON_LOG_LEVEL)")
	pf.StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (env: LOGBEACON_METRICS_ADDR)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment, applies flags the user set and builds
// the process logger. The result is not validated.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Parse()
	if err != nil {
		return config.Config{}, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("report-url") {
		cfg.ReportURL = flagReportURL
	}
	if flags.Changed("app-id") {
		cfg.AppID = flagAppID
	}
	if flags.Changed("store") {
		cfg.StoreBackend = flagStore
	}
	if flags.Changed("store-dir") {
		cfg.StoreDir = flagStoreDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = flagMetricsAddr
	}

	resolved := cfg.WithDefaults()
	level := resolved.LogLevel
	if resolved.Debug {
		level = "debug"
	}
	log := logger.New(level)
	slog.SetDefault(log)
	return resolved, log, nil
}

// serveMetrics exposes the default Prometheus registry on addr. The returned
// function shuts the server down.
func serveMetrics(addr string, log *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("starting metrics server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("metrics server shutdown failed", "error", err)
		}
	}
}
