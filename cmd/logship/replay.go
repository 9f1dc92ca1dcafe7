package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/V4T54L/logbeacon/internal/pkg/config"
	"github.com/V4T54L/logbeacon/pkg/telemetry"
)

var replayTimeout time.Duration

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().DurationVar(&replayTimeout, "timeout", 30*time.Second, "how long to wait for resubmitted batches")
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Resubmit entries left in the durable store",
	Long: "Reads and clears the failed-entry set, sends it again in batches and waits\n" +
		"for the deliveries. Batches that fail again are stored for the next run.",
	Args: cobra.NoArgs,
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.StoreBackend == config.StoreMemory {
		return fmt.Errorf("the %s store does not outlive a process; choose file, redis or postgres", cfg.StoreBackend)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), replayTimeout)
	defer cancel()

	// The beacon hands payloads off without confirmation; replay wants to
	// know whether each batch landed.
	client, err := telemetry.New(ctx, cfg, telemetry.WithLogger(log), telemetry.WithBeacon(nil))
	if err != nil {
		return err
	}
	resubmitted := client.Resubmitted()

	if err := client.Shutdown(ctx); err != nil {
		log.Error("replay did not finish", "error", err)
	}

	remaining, err := countStored(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "resubmitted %d entries, %d stored\n", resubmitted, remaining)
	return nil
}
