package storage

import (
	"context"

	"github.com/vietddude/papersift/internal/core/domain"
)

// RowAppender durably persists one finished row. Implementations must be
// safe for concurrent use and must not return before the row is on disk.
type RowAppender interface {
	Append(row domain.Row) error
}

// ResultCollector gathers the rows produced in the current session.
type ResultCollector interface {
	Add(row domain.Row)
	Rows() []domain.Row
	Len() int
}

// ResultMirror receives finished results on a best-effort basis.
// A failing mirror never stops a run.
type ResultMirror interface {
	// Name identifies the sink in logs and metrics
	Name() string

	// Save upserts the result keyed by record id
	Save(ctx context.Context, runID string, rec domain.Record, res domain.ClassificationResult) error
}

// ResultRepository extends a mirror with read access for status reporting.
type ResultRepository interface {
	ResultMirror

	// CountByRun returns the number of results stored for runID
	CountByRun(ctx context.Context, runID string) (int, error)
}
