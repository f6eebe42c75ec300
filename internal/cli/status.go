package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/papersift/internal/control"
	redisclient "github.com/vietddude/papersift/internal/infra/redis"
	"github.com/vietddude/papersift/internal/infra/storage/checkpoint"
	"github.com/vietddude/papersift/internal/infra/storage/postgres"
)

var (
	statusCheckpoint string
	statusRunID      string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize a checkpoint and, with --run, the mirrored run state",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusCheckpoint, "checkpoint", "", "checkpoint file (default: latest in checkpoint.dir)")
	statusCmd.Flags().StringVar(&statusRunID, "run", "", "run id to look up in Redis and PostgreSQL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		os.Exit(1)
	}

	path := statusCheckpoint
	if path == "" {
		path = cfg.Checkpoint.Path
	}
	if path == "" {
		path, err = checkpoint.FindLatest(cfg.Checkpoint.Dir, cfg.Checkpoint.Prefix)
		if err != nil {
			slog.Error("Failed to find checkpoint", "error", err)
			os.Exit(1)
		}
	}
	if path == "" {
		slog.Warn("No checkpoint found", "dir", cfg.Checkpoint.Dir, "prefix", cfg.Checkpoint.Prefix)
		return
	}

	rows, err := checkpoint.ReadRows(path)
	if err != nil {
		slog.Error("Failed to read checkpoint", "path", path, "error", err)
		os.Exit(1)
	}
	summary := control.Summarize(rows)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CHECKPOINT\tROWS\tPOSITIVE\tFAILED")
	_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", path, summary.TotalRows, summary.Positive, summary.Failed)
	_ = w.Flush()

	if len(summary.Categories) > 0 {
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(w, "\nCATEGORY\tPAPERS")
		for _, c := range summary.Categories {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", c.Name, c.Count)
		}
		_ = w.Flush()
	}

	if len(summary.TopCited) > 0 {
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(w, "\nRECORD\tCITATIONS\tYEAR\tCONFIDENCE\tTITLE")
		for _, p := range summary.TopCited {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", p.RecordID, p.Citations, p.Year, p.Confidence, p.Title)
		}
		_ = w.Flush()
	}

	if statusRunID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	printRunState(ctx, cfg.Redis, cfg.Database, statusRunID)
}

func printRunState(ctx context.Context, rcfg redisclient.Config, dcfg postgres.Config, runID string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	defer func() { _ = w.Flush() }()
	_, _ = fmt.Fprintln(w, "\nSOURCE\tTOTAL\tCOMPLETED\tPOSITIVE\tFAILED\tUPDATED")

	if rcfg.URL != "" {
		client, err := redisclient.NewClient(rcfg)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
		} else {
			defer func() { _ = client.Close() }()
			stats, err := redisclient.NewProgressPublisher(client, 0).RunStats(ctx, runID)
			if err != nil {
				slog.Error("Failed to read run stats", "error", err)
			} else {
				_, _ = fmt.Fprintf(w, "redis\t%d\t%d\t%d\t%d\t%s\n",
					stats.Total, stats.Completed, stats.Positive, stats.Failed, stats.UpdatedAt.Format(time.RFC3339))
			}
			if queued, err := redisclient.NewFailedRecordRepo(client, 0).Count(ctx); err == nil {
				_, _ = fmt.Fprintf(w, "redis_failed_queue\t-\t-\t-\t%d\t-\n", queued)
			}
		}
	}

	if dcfg.URL != "" {
		db, err := postgres.NewDB(ctx, dcfg)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			return
		}
		defer func() { _ = db.Close() }()
		n, err := postgres.NewResultRepo(db).CountByRun(ctx, runID)
		if err != nil {
			slog.Error("Failed to count results", "error", err)
			return
		}
		_, _ = fmt.Fprintf(w, "postgres\t-\t%d\t-\t-\t-\n", n)
	}
}
