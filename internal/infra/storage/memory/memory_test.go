package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/vietddude/papersift/internal/core/domain"
)

func TestCollector_ConcurrentAdd(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := domain.NewRow()
			row.Set(domain.ColRecordID, fmt.Sprintf("W%d", i))
			c.Add(row)
		}(i)
	}
	wg.Wait()

	if c.Len() != 100 || len(c.Rows()) != 100 {
		t.Errorf("Len = %d, Rows = %d, want 100", c.Len(), len(c.Rows()))
	}
}

func TestResultStore_UpsertByRecordID(t *testing.T) {
	s := NewResultStore()
	ctx := context.Background()
	rec := domain.Record{ID: "W1"}

	_ = s.Save(ctx, "run-a", rec, domain.FailedResult("W1", "aaaa", "boom", 3))
	_ = s.Save(ctx, "run-b", rec, domain.ClassificationResult{RecordID: "W1", Succeeded: true})
	_ = s.Save(ctx, "run-b", domain.Record{ID: "W2"}, domain.ClassificationResult{RecordID: "W2"})

	got, ok := s.Get("W1")
	if !ok || !got.Succeeded {
		t.Errorf("re-submission should overwrite, got %+v", got)
	}

	if n, _ := s.CountByRun(ctx, "run-a"); n != 0 {
		t.Errorf("run-a count = %d, want 0", n)
	}
	if n, _ := s.CountByRun(ctx, "run-b"); n != 2 {
		t.Errorf("run-b count = %d, want 2", n)
	}
}
