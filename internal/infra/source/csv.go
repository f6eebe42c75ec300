// Package source loads input records from CSV exports.
package source

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vietddude/papersift/internal/core/domain"
)

// Config maps input columns onto record fields.
type Config struct {
	IDColumn       string `yaml:"id_column"`
	TitleColumn    string `yaml:"title_column"`
	AbstractColumn string `yaml:"abstract_column"`
}

const (
	DefaultIDColumn       = "openalex_id"
	DefaultTitleColumn    = "title"
	DefaultAbstractColumn = "abstract_inverted_index"
)

func (c Config) withDefaults() Config {
	if c.IDColumn == "" {
		c.IDColumn = DefaultIDColumn
	}
	if c.TitleColumn == "" {
		c.TitleColumn = DefaultTitleColumn
	}
	if c.AbstractColumn == "" {
		c.AbstractColumn = DefaultAbstractColumn
	}
	return c
}

// CSVSource reads records from a CSV file with a header row.
type CSVSource struct {
	cfg    Config
	logger *slog.Logger
}

// NewCSVSource creates a source. A nil logger uses slog.Default().
func NewCSVSource(cfg Config, logger *slog.Logger) *CSVSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSource{
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "source"),
	}
}

// IDColumn returns the configured id column.
func (s *CSVSource) IDColumn() string { return s.cfg.IDColumn }

// Load reads every record from path.
func (s *CSVSource) Load(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	records, err := s.Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s.logger.Info("Loaded records", "path", path, "count", len(records))
	return records, nil
}

// Read parses records from r. Rows without an id are skipped and duplicate
// ids keep their first occurrence.
func (s *CSVSource) Read(r io.Reader) ([]domain.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	if _, ok := index[s.cfg.IDColumn]; !ok {
		return nil, fmt.Errorf("id column %q not found in header %v", s.cfg.IDColumn, header)
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var (
		records []domain.Record
		seen    = make(map[string]struct{})
		line    = 1
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		id := strings.TrimSpace(cell(row, s.cfg.IDColumn))
		if id == "" {
			s.logger.Warn("Skipping row without id", "line", line)
			continue
		}
		if _, dup := seen[id]; dup {
			s.logger.Warn("Skipping duplicate id", "line", line, "id", id)
			continue
		}
		seen[id] = struct{}{}

		fields := make([]domain.Field, len(header))
		for i, col := range header {
			fields[i] = domain.Field{Name: col, Value: cell(row, col)}
		}
		// The id column carries the canonical id so resume lookups match.
		fields[index[s.cfg.IDColumn]].Value = id

		records = append(records, domain.Record{
			ID:       id,
			Title:    strings.TrimSpace(cell(row, s.cfg.TitleColumn)),
			Abstract: ReconstructAbstract(cell(row, s.cfg.AbstractColumn)),
			Fields:   fields,
		})
	}
	return records, nil
}

// ReconstructAbstract turns an OpenAlex inverted index ({"word": [positions]})
// back into text. Any other value is returned trimmed.
func ReconstructAbstract(cell string) string {
	cell = strings.TrimSpace(cell)
	if !strings.HasPrefix(cell, "{") {
		return cell
	}

	var inverted map[string][]int
	if err := json.Unmarshal([]byte(cell), &inverted); err != nil {
		return cell
	}

	type token struct {
		pos  int
		word string
	}
	var tokens []token
	for word, positions := range inverted {
		for _, p := range positions {
			tokens = append(tokens, token{pos: p, word: word})
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].pos < tokens[j].pos })

	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.word
	}
	return strings.Join(words, " ")
}

// FindLatestInput returns the most recently modified file in dir matching
// pattern, or "" when none matches.
func FindLatestInput(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", pattern, err)
	}

	var (
		latest   string
		latestAt time.Time
	)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if latest == "" || info.ModTime().After(latestAt) {
			latest, latestAt = m, info.ModTime()
		}
	}
	return latest, nil
}
