// Package health provides run health monitoring and status reporting.
package health

import (
	"time"

	"github.com/vietddude/papersift/internal/infra/credential"
)

// SystemStatus represents the overall health state of a run.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// RunHealth contains progress and credential metrics for the current run.
type RunHealth struct {
	RunID          string                       `json:"run_id"`
	Status         SystemStatus                 `json:"status"`
	Total          int                          `json:"total"`
	Completed      int                          `json:"completed"`
	Positive       int                          `json:"positive"`
	Failed         int                          `json:"failed"`
	FailureRate    float64                      `json:"failure_rate"`
	StartedAt      time.Time                    `json:"started_at"`
	LastProgressAt time.Time                    `json:"last_progress_at,omitzero"`
	Credentials    []credential.CredentialStats `json:"credentials"`
}
