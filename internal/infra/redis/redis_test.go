package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/pipeline/scheduler"
)

func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewClient(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func progressFor(runID, id string, res domain.ClassificationResult, completed int) scheduler.Progress {
	res.RecordID = id
	return scheduler.Progress{
		RunID:     runID,
		Completed: completed,
		Total:     3,
		Row:       domain.MergeRow(domain.Record{ID: id}, res),
	}
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "::not a url"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestProgressPublisher_Report(t *testing.T) {
	client, mr := setupTestClient(t)
	pub := NewProgressPublisher(client, time.Hour)
	ctx := context.Background()

	updates := []scheduler.Progress{
		progressFor("run-1", "W1", domain.ClassificationResult{Succeeded: true, IsPositive: true}, 1),
		progressFor("run-1", "W2", domain.ClassificationResult{Succeeded: true}, 2),
		progressFor("run-1", "W3", domain.FailedResult("W3", "aaaa", "boom", 3), 3),
	}
	for _, u := range updates {
		if err := pub.Report(ctx, u); err != nil {
			t.Fatalf("Report failed: %v", err)
		}
	}

	stats, err := pub.RunStats(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if stats.Total != 3 || stats.Completed != 3 || stats.Positive != 1 || stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.UpdatedAt.IsZero() {
		t.Error("expected updated_at")
	}

	done, err := pub.IsDone(ctx, "run-1", "W2")
	if err != nil || !done {
		t.Errorf("IsDone(W2) = %v, %v", done, err)
	}

	if ttl := mr.TTL(runKey("run-1")); ttl != time.Hour {
		t.Errorf("run key TTL = %v, want 1h", ttl)
	}
}

func TestFailedRecordRepo_SaveAndResolve(t *testing.T) {
	client, _ := setupTestClient(t)
	repo := NewFailedRecordRepo(client, time.Hour)
	ctx := context.Background()

	rec := domain.Record{ID: "W9", Title: "Hallucination audit"}
	if err := repo.Save(ctx, "run-1", rec, domain.FailedResult("W9", "bbbb", "http 500", 4)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Save(ctx, "run-1", domain.Record{ID: "W8"}, domain.FailedResult("W8", "cccc", "quota", 1)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].RecordID != "W8" {
		t.Fatalf("expected W8 first by attempts, got %+v", all)
	}
	if all[1].Title != "Hallucination audit" || all[1].Attempts != 4 {
		t.Errorf("unexpected payload %+v", all[1])
	}

	ok := domain.ClassificationResult{RecordID: "W9", Succeeded: true}
	if err := repo.Save(ctx, "run-2", rec, ok); err != nil {
		t.Fatalf("Save success failed: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1 after resolve", n)
	}
}
