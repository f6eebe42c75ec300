// Package checkpoint persists finished rows to an append-only CSV file so an
// interrupted run can be resumed without reprocessing.
package checkpoint

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/infra/storage"
)

// ErrSchemaMismatch is returned when a row's columns differ from the file header.
var ErrSchemaMismatch = errors.New("checkpoint schema mismatch")

// Store is a CSV checkpoint file. The first write fixes the column set.
type Store struct {
	mu       sync.Mutex
	path     string
	idColumn string
	columns  []string
}

var _ storage.RowAppender = (*Store)(nil)

// Open prepares a store at path. An existing header fixes the column set.
// idColumn names the column holding the record id in the input data. A torn
// final row left by a crash is truncated away before any new append.
func Open(path, idColumn string) (*Store, error) {
	s := &Store{path: path, idColumn: idColumn}

	if err := repairTail(path); err != nil {
		return nil, err
	}
	header, err := readHeader(path)
	if err != nil {
		return nil, err
	}
	s.columns = header
	return s, nil
}

// Path returns the file location.
func (s *Store) Path() string { return s.path }

// Columns returns the fixed column set, or nil before the first write.
func (s *Store) Columns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.columns)
}

// Append writes one row and syncs it to disk before returning.
func (s *Store) Append(row domain.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags := os.O_WRONLY | os.O_APPEND | os.O_CREATE
	writeHeader := false
	if s.columns == nil {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
		s.columns = slices.Clone(row.Columns)
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		writeHeader = true
	} else if !sameColumns(s.columns, row.Columns) {
		return fmt.Errorf("%w: file has %v, row has %v", ErrSchemaMismatch, s.columns, row.Columns)
	}

	f, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		if writeHeader {
			s.columns = nil
		}
		return fmt.Errorf("open checkpoint: %w", err)
	}

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(s.columns); err != nil {
			f.Close()
			s.columns = nil
			return fmt.Errorf("write checkpoint header: %w", err)
		}
	}

	record := make([]string, len(s.columns))
	for i, col := range s.columns {
		record[i] = row.Values[col]
	}
	if err := w.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("write checkpoint row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush checkpoint: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	return f.Close()
}

// LoadKnownIDs returns the trimmed ids already present in the file. record_id
// is used when present, otherwise the configured id column. A missing file
// yields an empty set.
func (s *Store) LoadKnownIDs() (map[string]struct{}, error) {
	rows, err := s.LoadAll()
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.RecordID())
		if id == "" {
			id = strings.TrimSpace(row.Get(s.idColumn))
		}
		if id != "" {
			known[id] = struct{}{}
		}
	}
	return known, nil
}

// LoadAll reads every row back in file order.
func (s *Store) LoadAll() ([]domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ReadRows(s.path)
}

// ReadRows reads a CSV table written by Store or WriteRows.
// A missing file yields no rows. A torn final row is ignored.
func ReadRows(path string) ([]domain.Row, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	records, _, err := parseTable(data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]domain.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := domain.Row{
			Columns: slices.Clone(header),
			Values:  make(map[string]string, len(header)),
		}
		for i, col := range header {
			row.Values[col] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseTable returns the header and rows of data along with the byte length
// of the intact prefix. Store ends every row with a newline and fsyncs it, so
// only the final record can be torn: either it lacks the newline or it stops
// inside a quoted field. Such a record is dropped instead of failing the file.
func parseTable(data []byte) ([][]string, int64, error) {
	size := int64(len(data))
	unterminated := size > 0 && data[size-1] != '\n'

	r := csv.NewReader(bytes.NewReader(data))
	var (
		records [][]string
		good    int64
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if (unterminated || errors.Is(err, csv.ErrQuote)) && r.InputOffset() == size {
				return records, good, nil
			}
			return nil, 0, err
		}
		if unterminated && r.InputOffset() == size {
			break
		}
		records = append(records, rec)
		good = r.InputOffset()
	}
	return records, good, nil
}

// repairTail truncates a torn final row so later appends start on a fresh line.
func repairTail(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}

	// Corruption elsewhere in the file is reported by the reads.
	_, good, err := parseTable(data)
	if err != nil || good == int64(len(data)) {
		return nil
	}
	if err := os.Truncate(path, good); err != nil {
		return fmt.Errorf("truncate torn checkpoint row: %w", err)
	}
	return nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint header: %w", err)
	}
	return header, nil
}

// sameColumns compares column sets regardless of order.
func sameColumns(fixed, cols []string) bool {
	if len(fixed) != len(cols) {
		return false
	}
	set := make(map[string]struct{}, len(fixed))
	for _, c := range fixed {
		set[c] = struct{}{}
	}
	for _, c := range cols {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}
