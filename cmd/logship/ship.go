package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/V4T54L/logbeacon/pkg/telemetry"
)

const maxLineBytes = 1 << 20

var (
	shipPageURL         string
	shipRedactFields    []string
	shipShutdownTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(shipCmd)
	shipCmd.Flags().StringVar(&shipPageURL, "page-url", "", "location stamped on every entry")
	shipCmd.Flags().StringSliceVar(&shipRedactFields, "redact", nil, "payload keys to replace with [REDACTED]")
	shipCmd.Flags().DurationVar(&shipShutdownTimeout, "shutdown-timeout", 10*time.Second, "how long to wait for in-flight batches on exit")
}

var shipCmd = &cobra.Command{
	Use:   "ship",
	Short: "Submit NDJSON entries from stdin",
	Long: "Reads one JSON log entry per line from stdin and submits it to the pipeline.\n" +
		"SIGUSR1 flushes the queue. SIGINT, SIGTERM or end of input flush and exit.",
	Args: cobra.NoArgs,
	RunE: runShip,
}

func runShip(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := telemetry.NewHub(log)
	opts := []telemetry.Option{
		telemetry.WithLogger(log),
		telemetry.WithLifecycle(hub),
		telemetry.WithPageURL(shipPageURL),
	}
	if len(shipRedactFields) > 0 {
		opts = append(opts, telemetry.WithRedaction(shipRedactFields...))
	}
	if cfg.MetricsAddr != "" {
		opts = append(opts, telemetry.WithRegisterer(prometheus.DefaultRegisterer))
		defer serveMetrics(cfg.MetricsAddr, log)()
	}

	client, err := telemetry.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	if n := client.Resubmitted(); n > 0 {
		log.Info("resubmitted entries from a previous run", "count", n)
	}

	hidden := make(chan os.Signal, 1)
	notifyHidden(hidden)
	defer signal.Stop(hidden)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hidden:
				hub.Emit(telemetry.LifecycleEvent{Type: telemetry.EventHidden})
			}
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- readEntries(ctx, cmd.InOrStdin(), client, log)
	}()

	var readErr error
	select {
	case readErr = <-done:
		log.Info("input closed")
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	log.Info("shutting down pipeline...")
	hub.Emit(telemetry.LifecycleEvent{Type: telemetry.EventTeardown})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shipShutdownTimeout)
	defer cancel()
	if err := client.Shutdown(shutdownCtx); err != nil {
		log.Error("pipeline shutdown incomplete", "error", err)
	}

	if readErr != nil {
		return fmt.Errorf("read input: %w", readErr)
	}
	return nil
}

// readEntries submits every line of r as a LogEntry until r ends or ctx is
// cancelled. Lines that are not valid JSON are logged and skipped.
func readEntries(ctx context.Context, r io.Reader, client *telemetry.Client, log *slog.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var line, queued, skipped int
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var entry telemetry.LogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Warn("skipping malformed entry", "line", line, "error", err)
			skipped++
			continue
		}
		if client.Submit(ctx, entry) {
			queued++
		}
	}

	log.Info("input summary", "lines", line, "queued", queued, "malformed", skipped)
	return scanner.Err()
}
