package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/papersift/internal/infra/credential"
	"github.com/vietddude/papersift/internal/pipeline/scheduler"
)

// CredentialSource exposes per-credential counters.
type CredentialSource interface {
	Snapshot() []credential.CredentialStats
}

// Thresholds used by CheckHealth.
const (
	criticalFailureRate = 0.5
	degradedSuccessRate = 80 // percent
	minSampleSize       = 10
	staleAfter          = 10 * time.Minute
)

// Monitor tracks run progress and derives a health status. It implements
// scheduler.Reporter so it can be fed directly by the scheduler.
type Monitor struct {
	credentials CredentialSource
	report      RunHealth
	now         func() time.Time
	mu          sync.RWMutex
}

var _ scheduler.Reporter = (*Monitor)(nil)

// NewMonitor creates a new health monitor.
func NewMonitor(credentials CredentialSource) *Monitor {
	return &Monitor{
		credentials: credentials,
		report:      RunHealth{StartedAt: time.Now()},
		now:         time.Now,
	}
}

// Start resets the monitor for a new run.
func (m *Monitor) Start(runID string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.report = RunHealth{RunID: runID, Total: total, StartedAt: m.now()}
}

// Report records one finished record.
func (m *Monitor) Report(_ context.Context, p scheduler.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.RunID != "" {
		m.report.RunID = p.RunID
	}
	m.report.Total = p.Total
	m.report.Completed++
	switch {
	case !p.Row.Succeeded():
		m.report.Failed++
	case p.Row.IsPositive():
		m.report.Positive++
	}
	m.report.LastProgressAt = m.now()
	return nil
}

// CheckHealth returns the current report with its status evaluated.
func (m *Monitor) CheckHealth(ctx context.Context) RunHealth {
	m.mu.RLock()
	report := m.report
	m.mu.RUnlock()

	if m.credentials != nil {
		report.Credentials = m.credentials.Snapshot()
	}
	if report.Completed > 0 {
		report.FailureRate = float64(report.Failed) / float64(report.Completed)
	}

	report.Status = StatusHealthy

	// 1. Failure rate of finished records
	if report.Completed >= minSampleSize && report.FailureRate > criticalFailureRate {
		report.Status = StatusCritical
		return report
	}
	if report.Failed > 0 {
		report.Status = StatusDegraded
	}

	// 2. Credentials that mostly fail
	dead := 0
	for _, c := range report.Credentials {
		if c.Calls < minSampleSize {
			continue
		}
		if c.SuccessRate == 0 {
			dead++
		}
		if c.SuccessRate < degradedSuccessRate {
			report.Status = StatusDegraded
		}
	}
	if len(report.Credentials) > 0 && dead == len(report.Credentials) {
		report.Status = StatusCritical
		return report
	}

	// 3. Stalled run
	if report.Completed < report.Total {
		last := report.LastProgressAt
		if last.IsZero() {
			last = report.StartedAt
		}
		if m.now().Sub(last) > staleAfter {
			report.Status = StatusDegraded
		}
	}

	return report
}
