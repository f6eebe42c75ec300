package domain

import "strings"

// Confidence is the classifier's self-reported certainty.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceError  Confidence = "error" // sentinel for failed records
)

// ParseConfidence normalizes s and reports whether it is a known level.
// The error sentinel is not accepted here.
func ParseConfidence(s string) (Confidence, bool) {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c, true
	default:
		return "", false
	}
}

// ClassificationResult is produced exactly once per record by the classifier.
type ClassificationResult struct {
	RecordID         string     `json:"record_id"`
	IsPositive       bool       `json:"is_positive"`
	Categories       []string   `json:"categories"`
	Confidence       Confidence `json:"confidence"`
	Reasoning        string     `json:"reasoning"`
	Succeeded        bool       `json:"succeeded"`
	ErrorDetail      string     `json:"error_detail,omitempty"`
	CredentialSuffix string     `json:"credential_suffix"`
	Attempts         int        `json:"attempts"`
}

// FailedResult builds the failure value recorded when a record cannot be classified.
func FailedResult(recordID, suffix, detail string, attempts int) ClassificationResult {
	return ClassificationResult{
		RecordID:         recordID,
		Confidence:       ConfidenceError,
		Reasoning:        detail,
		Succeeded:        false,
		ErrorDetail:      detail,
		CredentialSuffix: suffix,
		Attempts:         attempts,
	}
}
