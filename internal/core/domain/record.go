package domain

import "strings"

// Field is a single named input column carried through the pipeline untouched.
type Field struct {
	Name  string
	Value string
}

// Record represents one paper to be classified.
type Record struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Abstract string  `json:"abstract"`
	Fields   []Field `json:"fields"` // every input column, in input order
}

// MissingAbstract is the sentinel some exports use for an absent abstract.
const MissingAbstract = "No"

// HasAbstract reports whether the record carries a usable abstract.
func (r Record) HasAbstract() bool {
	a := strings.TrimSpace(r.Abstract)
	return a != "" && a != MissingAbstract
}
