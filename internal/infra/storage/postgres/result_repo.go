package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/infra/storage"
)

// ResultRepo implements storage.ResultRepository using PostgreSQL.
type ResultRepo struct {
	db *DB
}

var _ storage.ResultRepository = (*ResultRepo)(nil)

// NewResultRepo creates a new PostgreSQL result repository.
func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// resultRow mirrors one classification_results row.
type resultRow struct {
	RecordID         string         `db:"record_id"`
	RunID            string         `db:"run_id"`
	Title            string         `db:"title"`
	IsPositive       bool           `db:"is_positive"`
	Categories       pq.StringArray `db:"categories"`
	Confidence       string         `db:"confidence"`
	Reasoning        string         `db:"reasoning"`
	Succeeded        bool           `db:"succeeded"`
	ErrorDetail      string         `db:"error_detail"`
	CredentialSuffix string         `db:"credential_suffix"`
	Attempts         int            `db:"attempts"`
}

func toResultRow(runID string, rec domain.Record, res domain.ClassificationResult) resultRow {
	categories := pq.StringArray(res.Categories)
	if categories == nil {
		categories = pq.StringArray{}
	}
	return resultRow{
		RecordID:         res.RecordID,
		RunID:            runID,
		Title:            rec.Title,
		IsPositive:       res.IsPositive,
		Categories:       categories,
		Confidence:       string(res.Confidence),
		Reasoning:        res.Reasoning,
		Succeeded:        res.Succeeded,
		ErrorDetail:      res.ErrorDetail,
		CredentialSuffix: res.CredentialSuffix,
		Attempts:         res.Attempts,
	}
}

func (r resultRow) toDomain() domain.ClassificationResult {
	return domain.ClassificationResult{
		RecordID:         r.RecordID,
		IsPositive:       r.IsPositive,
		Categories:       []string(r.Categories),
		Confidence:       domain.Confidence(r.Confidence),
		Reasoning:        r.Reasoning,
		Succeeded:        r.Succeeded,
		ErrorDetail:      r.ErrorDetail,
		CredentialSuffix: r.CredentialSuffix,
		Attempts:         r.Attempts,
	}
}

// Name identifies the sink.
func (r *ResultRepo) Name() string { return "postgres" }

// Save upserts a result keyed by record id.
func (r *ResultRepo) Save(
	ctx context.Context,
	runID string,
	rec domain.Record,
	res domain.ClassificationResult,
) error {
	query := `
		INSERT INTO classification_results (
			record_id, run_id, title, is_positive, categories, confidence,
			reasoning, succeeded, error_detail, credential_suffix, attempts
		) VALUES (
			:record_id, :run_id, :title, :is_positive, :categories, :confidence,
			:reasoning, :succeeded, :error_detail, :credential_suffix, :attempts
		)
		ON CONFLICT (record_id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			title = EXCLUDED.title,
			is_positive = EXCLUDED.is_positive,
			categories = EXCLUDED.categories,
			confidence = EXCLUDED.confidence,
			reasoning = EXCLUDED.reasoning,
			succeeded = EXCLUDED.succeeded,
			error_detail = EXCLUDED.error_detail,
			credential_suffix = EXCLUDED.credential_suffix,
			attempts = EXCLUDED.attempts,
			updated_at = NOW()
	`
	if _, err := r.db.NamedExecContext(ctx, query, toResultRow(runID, rec, res)); err != nil {
		return fmt.Errorf("failed to save result %s: %w", res.RecordID, err)
	}
	return nil
}

// Get returns the stored result for recordID, or nil when absent.
func (r *ResultRepo) Get(ctx context.Context, recordID string) (*domain.ClassificationResult, error) {
	query := `
		SELECT record_id, run_id, title, is_positive, categories, confidence,
		       reasoning, succeeded, error_detail, credential_suffix, attempts
		FROM classification_results
		WHERE record_id = $1
	`
	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, recordID); err != nil {
		return nil, fmt.Errorf("failed to get result %s: %w", recordID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	res := rows[0].toDomain()
	return &res, nil
}

// CountByRun returns the number of results last written by runID.
func (r *ResultRepo) CountByRun(ctx context.Context, runID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM classification_results WHERE run_id = $1`, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}
