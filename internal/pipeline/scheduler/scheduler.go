// Package scheduler runs the classification of a batch of records on a fixed
// pool of workers, persisting each result as soon as it is produced.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/infra/storage"
	"github.com/vietddude/papersift/internal/infra/storage/memory"
	"github.com/vietddude/papersift/internal/pipeline/metrics"
)

// ErrCheckpoint wraps a failed checkpoint write. It aborts the run.
var ErrCheckpoint = errors.New("checkpoint write failed")

const mirrorTimeout = 10 * time.Second

// Classifier produces one result per record. An error returned while ctx is
// still live is recorded as a failed result for that record.
type Classifier interface {
	Classify(ctx context.Context, rec domain.Record) (domain.ClassificationResult, error)
}

// Config holds scheduler dependencies.
type Config struct {
	RunID      string
	Workers    int
	Classifier Classifier
	Checkpoint storage.RowAppender
	Mirrors    []storage.ResultMirror
	Reporter   Reporter
	Logger     *slog.Logger
}

// Outcome summarizes the records finished in one Run.
type Outcome struct {
	Rows      []domain.Row
	Completed int
	Positive  int
	Failed    int
}

// Scheduler drives records through the classifier.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and creates a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("scheduler requires a classifier")
	}
	if cfg.Checkpoint == nil {
		return nil, errors.New("scheduler requires a checkpoint")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.Reporter == nil {
		cfg.Reporter = NopReporter{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cfg:    cfg,
		logger: logger.With("component", "scheduler", "run_id", cfg.RunID),
	}, nil
}

// counters is shared by the workers of one Run.
type counters struct {
	completed atomic.Int64
	positive  atomic.Int64
	failed    atomic.Int64
}

// Run classifies records and returns when all are done, ctx ends or a
// checkpoint write fails. Rows finished before an abort are returned along
// with the error. Records canceled mid-flight are not persisted.
func (s *Scheduler) Run(ctx context.Context, records []domain.Record) (Outcome, error) {
	total := len(records)
	if total == 0 {
		return Outcome{}, nil
	}

	queue := make(chan domain.Record, total)
	for _, rec := range records {
		queue <- rec
	}
	close(queue)

	workers := s.cfg.Workers
	s.logger.Info("Starting classification",
		"records", total,
		"workers", workers,
	)

	collector := memory.NewCollector()
	var c counters

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				rec, ok := <-queue
				if !ok {
					return nil
				}
				if err := s.process(gctx, rec, total, collector, &c); err != nil {
					return err
				}
			}
		})
	}

	err := g.Wait()
	out := Outcome{
		Rows:      collector.Rows(),
		Completed: int(c.completed.Load()),
		Positive:  int(c.positive.Load()),
		Failed:    int(c.failed.Load()),
	}

	if err != nil {
		return out, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.logger.Warn("Classification interrupted",
			"completed", out.Completed,
			"remaining", total-out.Completed,
		)
		return out, ctxErr
	}

	s.logger.Info("Classification finished",
		"completed", out.Completed,
		"positive", out.Positive,
		"failed", out.Failed,
	)
	return out, nil
}

func (s *Scheduler) process(
	ctx context.Context,
	rec domain.Record,
	total int,
	collector storage.ResultCollector,
	c *counters,
) error {
	res, err := s.classify(ctx, rec)
	if err != nil {
		if ctx.Err() != nil {
			// ctx ended mid-flight; the record stays pending
			return nil
		}
		s.logger.Warn("Classifier returned an error", "record", rec.ID, "error", err)
		res = domain.FailedResult(rec.ID, "", err.Error(), 0)
	}

	row := domain.MergeRow(rec, res)
	if err := s.cfg.Checkpoint.Append(row); err != nil {
		s.logger.Error("Failed to append checkpoint row", "record", rec.ID, "error", err)
		return fmt.Errorf("%w: record %s: %w", ErrCheckpoint, rec.ID, err)
	}
	metrics.CheckpointRows.Inc()
	collector.Add(row)

	completed := int(c.completed.Add(1))
	switch {
	case !res.Succeeded:
		c.failed.Add(1)
		metrics.RecordsClassified.WithLabelValues(metrics.OutcomeFailed).Inc()
	case res.IsPositive:
		c.positive.Add(1)
		metrics.RecordsClassified.WithLabelValues(metrics.OutcomePositive).Inc()
	default:
		metrics.RecordsClassified.WithLabelValues(metrics.OutcomeNegative).Inc()
	}

	// The row is durable; side sinks get their own deadline so cancellation
	// does not leave them behind the checkpoint.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()

	for _, m := range s.cfg.Mirrors {
		if err := m.Save(sideCtx, s.cfg.RunID, rec, res); err != nil {
			metrics.MirrorErrors.WithLabelValues(m.Name()).Inc()
			s.logger.Warn("Failed to mirror result", "sink", m.Name(), "record", rec.ID, "error", err)
		}
	}

	progress := Progress{RunID: s.cfg.RunID, Completed: completed, Total: total, Row: row}
	if err := s.cfg.Reporter.Report(sideCtx, progress); err != nil {
		metrics.MirrorErrors.WithLabelValues("reporter").Inc()
		s.logger.Warn("Failed to report progress", "record", rec.ID, "error", err)
	}
	return nil
}

// classify calls the classifier and turns a panic into a failed result.
func (s *Scheduler) classify(ctx context.Context, rec domain.Record) (res domain.ClassificationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Classifier panicked", "record", rec.ID, "panic", r)
			res = domain.FailedResult(rec.ID, "", fmt.Sprintf("classifier panic: %v", r), 0)
			err = nil
		}
	}()

	res, err = s.cfg.Classifier.Classify(ctx, rec)
	if err == nil && res.RecordID == "" {
		res.RecordID = rec.ID
	}
	return res, err
}
