package callsheet

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// tableSet holds rows by table name. It backs both the in-memory and the
// JSON file stores.
type tableSet map[string][][]string

// appendRow keeps position 1 for the header: an empty table gets a blank
// placeholder row first, which ensureHeader later fills.
func (t tableSet) appendRow(table string, row []string) {
	if len(t[table]) == 0 {
		t[table] = [][]string{{}}
	}
	t[table] = append(t[table], cloneRow(row))
}

func (t tableSet) readRows(table string, span ColumnSpan) ([][]string, error) {
	first, last, err := span.Bounds()
	if err != nil {
		return nil, err
	}
	rows := t[table]
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if first >= len(row) {
			out = append(out, []string{})
			continue
		}
		end := last + 1
		if end > len(row) {
			end = len(row)
		}
		out = append(out, cloneRow(row[first:end]))
	}
	return out, nil
}

func (t tableSet) updateCells(table string, position int, updates []CellUpdate) error {
	if position < 1 {
		return errors.Wrapf(ErrInvalidInput, "invalid row position %d", position)
	}
	indexes := make([]int, len(updates))
	for i, update := range updates {
		idx, err := ColumnIndex(update.Column)
		if err != nil {
			return err
		}
		indexes[i] = idx
	}
	rows := t[table]
	for len(rows) < position {
		rows = append(rows, []string{})
	}
	row := cloneRow(rows[position-1])
	for i, update := range updates {
		for len(row) <= indexes[i] {
			row = append(row, "")
		}
		row[indexes[i]] = update.Value
	}
	rows[position-1] = row
	t[table] = rows
	return nil
}

func (t tableSet) ensureHeader(table string, header []string) {
	rows := t[table]
	switch {
	case len(rows) == 0:
		t[table] = [][]string{cloneRow(header)}
	case len(rows[0]) == 0:
		rows[0] = cloneRow(header)
	}
}

// MemoryStore keeps tables in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	tables tableSet
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: tableSet{}}
}

// Seed replaces the rows of table, header included.
func (s *MemoryStore) Seed(table string, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([][]string, 0, len(rows))
	for _, row := range rows {
		copied = append(copied, cloneRow(row))
	}
	s.tables[table] = copied
}

// Rows returns a copy of every row of table.
func (s *MemoryStore) Rows(table string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, 0, len(s.tables[table]))
	for _, row := range s.tables[table] {
		out = append(out, cloneRow(row))
	}
	return out
}

func (s *MemoryStore) AppendRow(_ context.Context, table string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables.appendRow(table, row)
	return nil
}

func (s *MemoryStore) ReadRows(_ context.Context, table string, span ColumnSpan) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables.readRows(table, span)
}

func (s *MemoryStore) UpdateCells(_ context.Context, table string, position int, updates []CellUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables.updateCells(table, position, updates)
}

func (s *MemoryStore) EnsureHeader(_ context.Context, table string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables.ensureHeader(table, header)
	return nil
}

// JSONFileStore persists tables to a single JSON document. Every operation
// reloads the file, so edits made while the process runs are picked up.
type JSONFileStore struct {
	Path string

	mu sync.Mutex
}

type jsonFileDocument struct {
	Tables tableSet `json:"tables"`
}

func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{Path: strings.TrimSpace(path)}
}

func (s *JSONFileStore) AppendRow(_ context.Context, table string, row []string) error {
	return s.mutate(func(t tableSet) error {
		t.appendRow(table, row)
		return nil
	})
}

func (s *JSONFileStore) ReadRows(_ context.Context, table string, span ColumnSpan) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tables, err := s.load()
	if err != nil {
		return nil, err
	}
	return tables.readRows(table, span)
}

func (s *JSONFileStore) UpdateCells(_ context.Context, table string, position int, updates []CellUpdate) error {
	return s.mutate(func(t tableSet) error {
		return t.updateCells(table, position, updates)
	})
}

func (s *JSONFileStore) EnsureHeader(_ context.Context, table string, header []string) error {
	return s.mutate(func(t tableSet) error {
		t.ensureHeader(table, header)
		return nil
	})
}

func (s *JSONFileStore) mutate(fn func(tableSet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tables, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(tables); err != nil {
		return err
	}
	return s.save(tables)
}

func (s *JSONFileStore) load() (tableSet, error) {
	if s.Path == "" {
		return nil, errors.Wrap(ErrInvalidInput, "file store path is empty")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tableSet{}, nil
		}
		return nil, err
	}
	var doc jsonFileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decode %s", s.Path)
	}
	if doc.Tables == nil {
		doc.Tables = tableSet{}
	}
	return doc.Tables, nil
}

func (s *JSONFileStore) save(tables tableSet) error {
	data, err := json.MarshalIndent(jsonFileDocument{Tables: tables}, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}
