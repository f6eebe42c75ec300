package domain

import (
	"reflect"
	"testing"
)

func TestMergeRow_OrderAndOverride(t *testing.T) {
	rec := Record{
		ID:    "W1",
		Title: "Bias in LLMs",
		Fields: []Field{
			{Name: "openalex_id", Value: "W1"},
			{Name: "title", Value: "Bias in LLMs"},
			{Name: "confidence", Value: "stale"},
			{Name: "cited_by_count", Value: "42"},
		},
	}
	res := ClassificationResult{
		RecordID:         "W1",
		IsPositive:       true,
		Categories:       []string{"AI Bias", "AI Ethics"},
		Confidence:       ConfidenceHigh,
		Reasoning:        "discusses bias",
		Succeeded:        true,
		CredentialSuffix: "abcd",
		Attempts:         1,
	}

	row := MergeRow(rec, res)

	wantCols := []string{
		"openalex_id", "title", "confidence", "cited_by_count",
		ColRecordID, ColIsPositive, ColCategories, ColReasoning,
		ColSucceeded, ColErrorDetail, ColCredentialSuffix, ColAttempts,
	}
	if !reflect.DeepEqual(row.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", row.Columns, wantCols)
	}
	if got := row.Get("confidence"); got != "high" {
		t.Errorf("confidence = %q, want classification value to win", got)
	}
	if !row.IsPositive() || !row.Succeeded() {
		t.Errorf("expected positive succeeded row, got %v", row.Values)
	}
	if got := row.Categories(); !reflect.DeepEqual(got, []string{"AI Bias", "AI Ethics"}) {
		t.Errorf("categories = %v", got)
	}
	if row.Get("attempts") != "1" {
		t.Errorf("attempts = %q, want 1", row.Get("attempts"))
	}
}

func TestSplitCategories(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"AI Ethics", []string{"AI Ethics"}},
		{"AI Ethics, AI Bias", []string{"AI Ethics", "AI Bias"}},
		{"AI Ethics,, ,AI Bias", []string{"AI Ethics", "AI Bias"}},
	}
	for _, tt := range tests {
		if got := SplitCategories(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitCategories(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		in   string
		want Confidence
		ok   bool
	}{
		{"high", ConfidenceHigh, true},
		{" Medium ", ConfidenceMedium, true},
		{"LOW", ConfidenceLow, true},
		{"error", "", false},
		{"certain", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseConfidence(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseConfidence(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRecord_HasAbstract(t *testing.T) {
	if (Record{Abstract: ""}).HasAbstract() {
		t.Error("empty abstract should be missing")
	}
	if (Record{Abstract: MissingAbstract}).HasAbstract() {
		t.Error("sentinel abstract should be missing")
	}
	if !(Record{Abstract: "text"}).HasAbstract() {
		t.Error("non-empty abstract should be present")
	}
}
