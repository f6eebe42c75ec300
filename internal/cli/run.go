package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vietddude/papersift/internal/control"
	"github.com/vietddude/papersift/internal/core/config"
	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/infra/credential"
	"github.com/vietddude/papersift/internal/infra/llm"
	redisclient "github.com/vietddude/papersift/internal/infra/redis"
	"github.com/vietddude/papersift/internal/infra/source"
	"github.com/vietddude/papersift/internal/infra/storage"
	"github.com/vietddude/papersift/internal/infra/storage/postgres"
	"github.com/vietddude/papersift/internal/pipeline/classifier"
	"github.com/vietddude/papersift/internal/pipeline/health"
	"github.com/vietddude/papersift/internal/pipeline/scheduler"
)

var (
	inputPath      string
	checkpointPath string
	fresh          bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify the input records, resuming the latest checkpoint",
	RunE:  runClassify,
}

func init() {
	runCmd.Flags().StringVar(&inputPath, "input", "", "input CSV (default: newest file matching input.pattern)")
	runCmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "checkpoint file to resume or create")
	runCmd.Flags().BoolVar(&fresh, "fresh", false, "ignore existing checkpoints and start a new one")
	rootCmd.AddCommand(runCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fatal at startup: no usable credential
	pool, err := credential.NewPool(cfg.Credentials.Keys, cfg.Credentials.CallsPerMinute)
	if err != nil {
		slog.Error("Cannot start without API credentials",
			"hint", "set credentials.keys or "+config.EnvAPIKeys,
			"error", err,
		)
		return err
	}

	records, err := loadRecords(cfg)
	if err != nil {
		slog.Error("Failed to load input", "error", err)
		return err
	}

	backend, err := llm.New(ctx, cfg.Classifier.Config)
	if err != nil {
		slog.Error("Failed to create classifier backend", "error", err)
		return err
	}
	defer func() {
		_ = backend.Close()
	}()

	policy, err := cfg.RetryPolicy()
	if err != nil {
		return err
	}
	clf, err := classifier.New(pool, backend, classifier.Config{
		Policy:         policy,
		PromptTemplate: cfg.Classifier.PromptTemplate,
	}, slog.Default())
	if err != nil {
		slog.Error("Failed to create classifier", "error", err)
		return err
	}

	runID := uuid.NewString()
	sinks, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer sinks.Close()

	monitor := health.NewMonitor(pool)
	if cfg.Server.Port > 0 {
		srv := health.NewServer(monitor, cfg.Server.Port)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Health server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
		slog.Info("Health server listening", "port", cfg.Server.Port)
	}

	workers := pool.Size() * cfg.Credentials.WorkersPerCredential
	slog.Info("Starting run",
		"run_id", runID,
		"credentials", pool.Size(),
		"workers", workers,
		"calls_per_minute", cfg.Credentials.CallsPerMinute,
		"backend", backend.Name(),
		"retry_max_attempts", policy.MaxAttempts,
		"retry_unbounded", policy.Unbounded,
	)

	ctrl, err := control.New(control.Config{
		RunID:            runID,
		IDColumn:         cfg.Input.IDColumn,
		CheckpointDir:    cfg.Checkpoint.Dir,
		CheckpointPrefix: cfg.Checkpoint.Prefix,
		PositivePath:     cfg.Output.PositivePath,
		OutputDisabled:   cfg.Output.Disabled,
		Workers:          workers,
		Classifier:       clf,
		Credentials:      pool,
		Mirrors:          sinks.mirrors,
		Reporter:         append(scheduler.MultiReporter{scheduler.NewLogReporter(nil)}, sinks.reporters...),
		Monitor:          monitor,
	})
	if err != nil {
		return err
	}

	cp := checkpointPath
	if cp == "" {
		cp = cfg.Checkpoint.Path
	}
	report, err := ctrl.Execute(ctx, records, control.Options{CheckpointPath: cp, Fresh: fresh})
	if errors.Is(err, context.Canceled) && report != nil {
		slog.Warn("Interrupted; run again to resume",
			"checkpoint", report.CheckpointPath,
			"classified", report.TotalRows,
			"remaining", report.Remaining(),
		)
		return err
	}
	if err != nil {
		slog.Error("Run failed", "error", err)
		return err
	}

	if report.PositivePath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Positive papers saved to %s\n", report.PositivePath)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint: %s\n", report.CheckpointPath)
	return nil
}

func loadRecords(cfg *config.AppConfig) ([]domain.Record, error) {
	path, err := resolveInput(cfg)
	if err != nil {
		return nil, err
	}
	records, err := source.NewCSVSource(cfg.Input.Config, slog.Default()).Load(path)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded input", "path", path, "records", len(records))
	return records, nil
}

// sinks holds the optional mirrors and reporters and their connections.
type sinks struct {
	mirrors   []storage.ResultMirror
	reporters []scheduler.Reporter
	closers   []func() error
}

func (s *sinks) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}

// openSinks connects the optional Postgres mirror and Redis publisher. A
// configured sink that cannot be reached is a startup error.
func openSinks(ctx context.Context, cfg *config.AppConfig) (*sinks, error) {
	s := &sinks{}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to init db", "error", err)
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			slog.Error("Failed to migrate db", "error", err)
			return nil, err
		}
		db.StartMetricsCollector(ctx)
		s.mirrors = append(s.mirrors, postgres.NewResultRepo(db))
		s.closers = append(s.closers, db.Close)
		slog.Info("Mirroring results to PostgreSQL")
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			s.Close()
			slog.Error("Failed to connect to redis", "error", err)
			return nil, err
		}
		s.reporters = append(s.reporters, redisclient.NewProgressPublisher(client, 0))
		s.mirrors = append(s.mirrors, redisclient.NewFailedRecordRepo(client, 0))
		s.closers = append(s.closers, client.Close)
		slog.Info("Publishing progress to Redis")
	}

	return s, nil
}

func resolveInput(cfg *config.AppConfig) (string, error) {
	if inputPath != "" {
		return inputPath, nil
	}
	if cfg.Input.Path != "" {
		return cfg.Input.Path, nil
	}
	path, err := source.FindLatestInput(cfg.Input.Dir, cfg.Input.Pattern)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("no input matching %s in %s", cfg.Input.Pattern, cfg.Input.Dir)
	}
	return path, nil
}
