package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/infra/storage/checkpoint"
)

var retryCheckpoint string

var retryFailedCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "Drop failed rows from a checkpoint so the next run retries them",
	RunE:  runRetryFailed,
}

func init() {
	retryFailedCmd.Flags().StringVar(&retryCheckpoint, "checkpoint", "", "checkpoint file (default: latest in checkpoint.dir)")
	rootCmd.AddCommand(retryFailedCmd)
}

func runRetryFailed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := retryCheckpoint
	if path == "" {
		path = cfg.Checkpoint.Path
	}
	if path == "" {
		if path, err = checkpoint.FindLatest(cfg.Checkpoint.Dir, cfg.Checkpoint.Prefix); err != nil {
			return err
		}
	}
	if path == "" {
		return fmt.Errorf("no checkpoint found in %s", cfg.Checkpoint.Dir)
	}

	rows, err := checkpoint.ReadRows(path)
	if err != nil {
		return err
	}

	kept := succeededRows(rows)
	dropped := len(rows) - len(kept)
	if dropped == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No failed rows in %s\n", path)
		return nil
	}

	// Every row failed: remove the file so the next run starts clean.
	if len(kept) == 0 {
		if err := os.Remove(path); err != nil {
			return err
		}
	} else if err := checkpoint.WriteRows(path, kept); err != nil {
		return err
	}

	slog.Info("Removed failed rows from checkpoint", "path", path, "dropped", dropped, "kept", len(kept))
	fmt.Fprintf(cmd.OutOrStdout(), "%d failed rows will be retried on the next run\n", dropped)
	return nil
}

func succeededRows(rows []domain.Row) []domain.Row {
	kept := make([]domain.Row, 0, len(rows))
	for _, row := range rows {
		if row.Succeeded() {
			kept = append(kept, row)
		}
	}
	return kept
}
