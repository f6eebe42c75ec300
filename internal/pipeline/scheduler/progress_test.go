package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/vietddude/papersift/internal/core/domain"
)

type countingReporter struct {
	calls int
	err   error
}

func (c *countingReporter) Report(context.Context, Progress) error {
	c.calls++
	return c.err
}

func TestMultiReporter(t *testing.T) {
	ok := &countingReporter{}
	broken := &countingReporter{err: errors.New("redis down")}

	m := MultiReporter{ok, nil, broken, ok}
	err := m.Report(context.Background(), Progress{Completed: 1, Total: 2})
	if err == nil || !strings.Contains(err.Error(), "redis down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if ok.calls != 2 || broken.calls != 1 {
		t.Errorf("unexpected call counts: ok=%d broken=%d", ok.calls, broken.calls)
	}
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewTextHandler(&buf, nil)))

	good := domain.MergeRow(domain.Record{ID: "W1"}, domain.ClassificationResult{
		RecordID:   "W1",
		IsPositive: true,
		Confidence: domain.ConfidenceHigh,
		Succeeded:  true,
	})
	bad := domain.MergeRow(domain.Record{ID: "W2"}, domain.FailedResult("W2", "zz99", "quota exceeded", 3))

	_ = r.Report(context.Background(), Progress{Completed: 1, Total: 2, Row: good})
	_ = r.Report(context.Background(), Progress{Completed: 2, Total: 2, Row: bad})

	out := buf.String()
	for _, want := range []string{"Record classified", "progress=1/2", "record=W1", "Record failed", "credential=zz99", "quota exceeded"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
