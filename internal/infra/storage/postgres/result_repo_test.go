package postgres

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/vietddude/papersift/internal/core/domain"
)

func TestToResultRow(t *testing.T) {
	rec := domain.Record{ID: "W1", Title: "Bias audit"}
	res := domain.ClassificationResult{
		RecordID:         "W1",
		IsPositive:       true,
		Categories:       []string{"AI Bias", "AI Ethics"},
		Confidence:       domain.ConfidenceMedium,
		Reasoning:        "audits bias",
		Succeeded:        true,
		CredentialSuffix: "abcd",
		Attempts:         2,
	}

	row := toResultRow("run-1", rec, res)
	if row.RunID != "run-1" || row.Title != "Bias audit" || row.Confidence != "medium" {
		t.Errorf("unexpected row %+v", row)
	}
	if !reflect.DeepEqual(row.toDomain(), res) {
		t.Errorf("toDomain = %+v, want %+v", row.toDomain(), res)
	}

	failed := toResultRow("run-1", rec, domain.FailedResult("W2", "abcd", "boom", 3))
	if failed.Categories == nil {
		t.Error("categories must never be NULL")
	}
}

// TestResultRepo_Integration needs a disposable database.
func TestResultRepo_Integration(t *testing.T) {
	url := os.Getenv("PAPERSIFT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PAPERSIFT_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	repo := NewResultRepo(db)
	runA, runB := uuid.NewString(), uuid.NewString()
	recordID := "W-" + uuid.NewString()
	rec := domain.Record{ID: recordID, Title: "t"}

	if err := repo.Save(ctx, runA, rec, domain.FailedResult(recordID, "aaaa", "boom", 3)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ok := domain.ClassificationResult{
		RecordID:   recordID,
		IsPositive: true,
		Categories: []string{"AI Ethics"},
		Confidence: domain.ConfidenceHigh,
		Succeeded:  true,
		Attempts:   1,
	}
	if err := repo.Save(ctx, runB, rec, ok); err != nil {
		t.Fatalf("re-Save failed: %v", err)
	}

	got, err := repo.Get(ctx, recordID)
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if !got.Succeeded || len(got.Categories) != 1 || got.Categories[0] != "AI Ethics" {
		t.Errorf("upsert not applied: %+v", got)
	}

	if n, _ := repo.CountByRun(ctx, runA); n != 0 {
		t.Errorf("runA count = %d, want 0", n)
	}
	if n, _ := repo.CountByRun(ctx, runB); n != 1 {
		t.Errorf("runB count = %d, want 1", n)
	}
}
