// Package control wires the checkpoint, scheduler and reporting into a
// resumable run.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/infra/credential"
	"github.com/vietddude/papersift/internal/infra/storage"
	"github.com/vietddude/papersift/internal/infra/storage/checkpoint"
	"github.com/vietddude/papersift/internal/pipeline/health"
	"github.com/vietddude/papersift/internal/pipeline/metrics"
	"github.com/vietddude/papersift/internal/pipeline/scheduler"
)

// CredentialSource exposes per-credential counters for the report.
type CredentialSource interface {
	Snapshot() []credential.CredentialStats
}

// Config holds controller dependencies.
type Config struct {
	RunID            string
	IDColumn         string
	CheckpointDir    string
	CheckpointPrefix string
	PositivePath     string
	OutputDisabled   bool
	Workers          int

	Classifier  scheduler.Classifier
	Credentials CredentialSource
	Mirrors     []storage.ResultMirror
	Reporter    scheduler.Reporter
	Monitor     *health.Monitor
	Logger      *slog.Logger
}

// Options select the checkpoint for one Execute call.
type Options struct {
	// CheckpointPath forces a specific checkpoint file.
	CheckpointPath string
	// Fresh ignores existing checkpoints in CheckpointDir.
	Fresh bool
}

// Controller runs batches with resume support.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("controller requires a classifier")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.CheckpointDir == "" {
		cfg.CheckpointDir = "."
	}
	if cfg.CheckpointPrefix == "" {
		cfg.CheckpointPrefix = "papersift"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		cfg:    cfg,
		logger: logger.With("component", "controller", "run_id", cfg.RunID),
		now:    time.Now,
	}, nil
}

// RunID returns the identifier of this controller's runs.
func (c *Controller) RunID() string { return c.cfg.RunID }

// ResolveCheckpoint picks the checkpoint file for opts: the explicit path,
// else the latest in CheckpointDir unless Fresh, else a new timestamped one.
func (c *Controller) ResolveCheckpoint(opts Options) (string, error) {
	if opts.CheckpointPath != "" {
		return opts.CheckpointPath, nil
	}
	if !opts.Fresh {
		latest, err := checkpoint.FindLatest(c.cfg.CheckpointDir, c.cfg.CheckpointPrefix)
		if err != nil {
			return "", err
		}
		if latest != "" {
			return latest, nil
		}
	}
	return checkpoint.NewPath(c.cfg.CheckpointDir, c.cfg.CheckpointPrefix, c.now()), nil
}

// Execute classifies the records not already present in the checkpoint and
// returns a report over the union of prior and current results. On
// cancellation or a checkpoint failure the partial report is returned along
// with the error.
func (c *Controller) Execute(ctx context.Context, records []domain.Record, opts Options) (*Report, error) {
	start := c.now()

	path, err := c.ResolveCheckpoint(opts)
	if err != nil {
		return nil, fmt.Errorf("resolve checkpoint: %w", err)
	}

	store, err := checkpoint.Open(path, c.cfg.IDColumn)
	if err != nil {
		return nil, err
	}
	known, err := store.LoadKnownIDs()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	pending := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if _, done := known[rec.ID]; !done {
			pending = append(pending, rec)
		}
	}

	report := &Report{
		RunID:          c.cfg.RunID,
		CheckpointPath: path,
		Resumed:        len(known) > 0,
		Pending:        len(pending),
	}
	metrics.PendingRecords.Set(float64(len(pending)))

	c.logger.Info("Resolved run state",
		"checkpoint", path,
		"input", len(records),
		"known", len(known),
		"pending", len(pending),
	)

	var runErr error
	switch {
	case len(pending) == 0 && len(known) > 0:
		report.ShortCircuited = true
		c.logger.Info("All records already classified, skipping scheduler")
	case len(pending) == 0:
		c.logger.Warn("No records to classify")
	default:
		var out scheduler.Outcome
		out, runErr = c.runScheduler(ctx, store, pending)
		report.SessionProcessed = out.Completed
	}

	rows, err := store.LoadAll()
	if err != nil {
		return report, errors.Join(runErr, fmt.Errorf("reload checkpoint: %w", err))
	}
	report.Summary = Summarize(rows)
	if c.cfg.Credentials != nil {
		report.Credentials = c.cfg.Credentials.Snapshot()
	}
	report.Elapsed = c.now().Sub(start)

	if runErr != nil {
		c.logger.Warn("Run stopped early",
			"processed", report.SessionProcessed,
			"checkpoint", path,
			"error", runErr,
		)
		return report, runErr
	}

	if err := c.writePositive(report, rows); err != nil {
		return report, err
	}

	c.logSummary(report)
	return report, nil
}

func (c *Controller) runScheduler(
	ctx context.Context,
	store *checkpoint.Store,
	pending []domain.Record,
) (scheduler.Outcome, error) {
	reporters := scheduler.MultiReporter{pendingGauge{}}
	if c.cfg.Reporter != nil {
		reporters = append(reporters, c.cfg.Reporter)
	}
	if c.cfg.Monitor != nil {
		c.cfg.Monitor.Start(c.cfg.RunID, len(pending))
		reporters = append(reporters, c.cfg.Monitor)
	}

	sched, err := scheduler.New(scheduler.Config{
		RunID:      c.cfg.RunID,
		Workers:    c.cfg.Workers,
		Classifier: c.cfg.Classifier,
		Checkpoint: store,
		Mirrors:    c.cfg.Mirrors,
		Reporter:   reporters,
		Logger:     c.logger,
	})
	if err != nil {
		return scheduler.Outcome{}, err
	}
	return sched.Run(ctx, pending)
}

func (c *Controller) writePositive(report *Report, rows []domain.Row) error {
	if c.cfg.OutputDisabled {
		return nil
	}
	positive := PositiveRows(rows)
	if len(positive) == 0 {
		return nil
	}

	path := c.cfg.PositivePath
	if path == "" {
		path = checkpoint.PositivePath(c.cfg.CheckpointDir, c.cfg.CheckpointPrefix, c.now())
	}
	if err := checkpoint.WriteRows(path, positive); err != nil {
		return fmt.Errorf("write positive rows: %w", err)
	}
	report.PositivePath = path
	return nil
}

func (c *Controller) logSummary(r *Report) {
	rate := 0.0
	if r.TotalRows > 0 {
		rate = float64(r.Positive) / float64(r.TotalRows) * 100
	}

	c.logger.Info("Run complete",
		"total", r.TotalRows,
		"session_processed", r.SessionProcessed,
		"positive", r.Positive,
		"positive_pct", fmt.Sprintf("%.1f", rate),
		"failed", r.Failed,
		"elapsed", r.Elapsed.Round(time.Millisecond),
		"avg_per_record", r.AvgPerRecord().Round(time.Millisecond),
		"checkpoint", r.CheckpointPath,
		"positive_file", r.PositivePath,
	)
	for _, cat := range r.Categories {
		c.logger.Info("Category", "name", cat.Name, "papers", cat.Count)
	}
	for i, p := range r.TopCited {
		c.logger.Info("Top cited",
			"rank", i+1,
			"record", p.RecordID,
			"title", p.Title,
			"citations", p.Citations,
			"year", p.Year,
			"categories", p.Categories,
			"confidence", p.Confidence,
		)
	}
	for _, cred := range r.Credentials {
		c.logger.Info("Credential usage",
			"credential", cred.Suffix,
			"calls", cred.Calls,
			"errors", cred.Errors,
			"success_rate", fmt.Sprintf("%.1f%%", cred.SuccessRate),
		)
	}
}

// pendingGauge keeps the pending records gauge in step with progress.
type pendingGauge struct{}

func (pendingGauge) Report(_ context.Context, p scheduler.Progress) error {
	metrics.PendingRecords.Set(float64(p.Total - p.Completed))
	return nil
}
