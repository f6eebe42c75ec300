package cli

import (
	"log/slog"
	"testing"

	"github.com/vietddude/papersift/internal/core/domain"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSucceededRows(t *testing.T) {
	ok := domain.MergeRow(domain.Record{ID: "1"}, domain.ClassificationResult{RecordID: "1", Succeeded: true})
	bad := domain.MergeRow(domain.Record{ID: "2"}, domain.FailedResult("2", "abcd", "boom", 3))

	kept := succeededRows([]domain.Row{ok, bad, ok})
	if len(kept) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(kept))
	}
	for _, r := range kept {
		if r.RecordID() != "1" {
			t.Errorf("unexpected row %s kept", r.RecordID())
		}
	}
}
