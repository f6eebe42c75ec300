package domain

import (
	"strconv"
	"strings"
)

// Classification column names, in the order they are appended to a row.
const (
	ColRecordID         = "record_id"
	ColIsPositive       = "is_positive"
	ColCategories       = "categories"
	ColConfidence       = "confidence"
	ColReasoning        = "reasoning"
	ColSucceeded        = "succeeded"
	ColErrorDetail      = "error_detail"
	ColCredentialSuffix = "credential_suffix"
	ColAttempts         = "attempts"
)

// ResultColumns lists the classification columns every row carries.
var ResultColumns = []string{
	ColRecordID,
	ColIsPositive,
	ColCategories,
	ColConfidence,
	ColReasoning,
	ColSucceeded,
	ColErrorDetail,
	ColCredentialSuffix,
	ColAttempts,
}

// CategorySeparator joins categories inside a single cell.
const CategorySeparator = ", "

// Row is a flat, ordered view of a record merged with its classification.
// It is what the checkpoint file stores and what a resumed run reads back.
type Row struct {
	Columns []string
	Values  map[string]string
}

// NewRow creates an empty row.
func NewRow() Row {
	return Row{Values: make(map[string]string)}
}

// Set assigns a value, appending the column if it is new.
func (r *Row) Set(column, value string) {
	if r.Values == nil {
		r.Values = make(map[string]string)
	}
	if _, ok := r.Values[column]; !ok {
		r.Columns = append(r.Columns, column)
	}
	r.Values[column] = value
}

// Get returns the value of column, or "" when absent.
func (r Row) Get(column string) string {
	return r.Values[column]
}

// RecordID returns the classification record id of the row.
func (r Row) RecordID() string {
	return r.Values[ColRecordID]
}

// IsPositive parses the is_positive column.
func (r Row) IsPositive() bool {
	v, _ := strconv.ParseBool(r.Values[ColIsPositive])
	return v
}

// Succeeded parses the succeeded column.
func (r Row) Succeeded() bool {
	v, _ := strconv.ParseBool(r.Values[ColSucceeded])
	return v
}

// Categories splits the categories column.
func (r Row) Categories() []string {
	return SplitCategories(r.Values[ColCategories])
}

// MergeRow combines the record's passthrough fields with the classification
// fields. Record fields come first in input order; classification columns follow
// in ResultColumns order. On a name clash the classification value wins but the
// column keeps its original position.
func MergeRow(rec Record, res ClassificationResult) Row {
	row := Row{
		Columns: make([]string, 0, len(rec.Fields)+len(ResultColumns)),
		Values:  make(map[string]string, len(rec.Fields)+len(ResultColumns)),
	}
	for _, f := range rec.Fields {
		row.Set(f.Name, f.Value)
	}

	row.Set(ColRecordID, res.RecordID)
	row.Set(ColIsPositive, strconv.FormatBool(res.IsPositive))
	row.Set(ColCategories, JoinCategories(res.Categories))
	row.Set(ColConfidence, string(res.Confidence))
	row.Set(ColReasoning, res.Reasoning)
	row.Set(ColSucceeded, strconv.FormatBool(res.Succeeded))
	row.Set(ColErrorDetail, res.ErrorDetail)
	row.Set(ColCredentialSuffix, res.CredentialSuffix)
	row.Set(ColAttempts, strconv.Itoa(res.Attempts))

	return row
}

// JoinCategories serializes categories into one cell.
func JoinCategories(categories []string) string {
	return strings.Join(categories, CategorySeparator)
}

// SplitCategories is the inverse of JoinCategories, dropping blanks.
func SplitCategories(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
