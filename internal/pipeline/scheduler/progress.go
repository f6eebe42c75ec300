package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/papersift/internal/core/domain"
)

// Progress is reported after every finished record.
type Progress struct {
	RunID     string
	Completed int
	Total     int
	Row       domain.Row
}

// Reporter receives progress updates. Errors are logged and otherwise ignored.
type Reporter interface {
	Report(ctx context.Context, p Progress) error
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) Report(context.Context, Progress) error { return nil }

// LogReporter writes one log line per finished record.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter. A nil logger uses slog.Default().
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger.With("component", "progress")}
}

func (r *LogReporter) Report(_ context.Context, p Progress) error {
	row := p.Row
	step := fmt.Sprintf("%d/%d", p.Completed, p.Total)

	if !row.Succeeded() {
		r.logger.Warn("Record failed",
			"progress", step,
			"record", row.RecordID(),
			"credential", row.Get(domain.ColCredentialSuffix),
			"error", row.Get(domain.ColErrorDetail),
		)
		return nil
	}

	r.logger.Info("Record classified",
		"progress", step,
		"record", row.RecordID(),
		"positive", row.IsPositive(),
		"categories", row.Get(domain.ColCategories),
		"confidence", row.Get(domain.ColConfidence),
		"credential", row.Get(domain.ColCredentialSuffix),
	)
	return nil
}

// MultiReporter fans progress out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, p Progress) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
