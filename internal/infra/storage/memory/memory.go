package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/infra/storage"
)

// -----------------------------------------------------------------------------
// Collector
// -----------------------------------------------------------------------------

// Collector keeps the rows of the current session in completion order.
type Collector struct {
	rows []domain.Row
	mu   sync.RWMutex
}

var _ storage.ResultCollector = (*Collector)(nil)

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Add(row domain.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, row)
}

func (c *Collector) Rows() []domain.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.rows)
}

func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// -----------------------------------------------------------------------------
// Result Repository
// -----------------------------------------------------------------------------

type storedResult struct {
	runID  string
	result domain.ClassificationResult
}

// ResultStore is an in-memory ResultRepository keyed by record id.
type ResultStore struct {
	results map[string]storedResult
	mu      sync.RWMutex
}

var _ storage.ResultRepository = (*ResultStore)(nil)

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]storedResult)}
}

func (s *ResultStore) Name() string { return "memory" }

func (s *ResultStore) Save(
	ctx context.Context,
	runID string,
	rec domain.Record,
	res domain.ClassificationResult,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.RecordID] = storedResult{runID: runID, result: res}
	return nil
}

func (s *ResultStore) Get(recordID string) (domain.ClassificationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[recordID]
	return r.result, ok
}

func (s *ResultStore) CountByRun(ctx context.Context, runID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.results {
		if r.runID == runID {
			n++
		}
	}
	return n, nil
}
