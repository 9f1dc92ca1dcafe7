package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/V4T54L/logbeacon/internal/adapter/repository"
	"github.com/V4T54L/logbeacon/internal/pkg/config"
	"github.com/V4T54L/logbeacon/internal/usecase"
)

var inspectFormat string

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "text", "output format (text|json)")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Report how many entries wait in the durable store",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	count, err := countStored(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	switch inspectFormat {
	case "json":
		out, err := json.MarshalIndent(map[string]any{
			"backend": cfg.StoreBackend,
			"key":     usecase.FailedLogsKey,
			"entries": count,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%s store: %d entries under %s\n", cfg.StoreBackend, count, usecase.FailedLogsKey)
	}
	return nil
}

// countStored opens the configured durable store and counts the failed
// entries without removing them.
func countStored(ctx context.Context, cfg config.Config, log *slog.Logger) (int, error) {
	store, closeStore, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return 0, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer closeStore()

	count, err := usecase.NewFailedLogStore(store, nil, log).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count stored entries: %w", err)
	}
	return count, nil
}
