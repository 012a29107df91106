package callsheet

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
)

// TableStore is the key-range read/write service the tables live in.
// Positions are 1-based and include the header row.
type TableStore interface {
	AppendRow(ctx context.Context, table string, row []string) error
	ReadRows(ctx context.Context, table string, span ColumnSpan) ([][]string, error)
	// UpdateCells writes all updates to one row as a single batch.
	UpdateCells(ctx context.Context, table string, position int, updates []CellUpdate) error
}

// HeaderWriter is implemented by stores that can seed a header row into an
// empty table.
type HeaderWriter interface {
	EnsureHeader(ctx context.Context, table string, header []string) error
}

type CellUpdate struct {
	Column string
	Value  string
}

// RowMatch is a row located by FindByKey.
type RowMatch struct {
	Position int
	Row      []string
}

// FindByKey scans the table and returns the first data row whose keyIndex
// column equals key. The boolean is false when no row matches; that is not
// an error.
func FindByKey(ctx context.Context, store TableStore, table string, span ColumnSpan, keyIndex int, key string) (RowMatch, bool, error) {
	rows, err := store.ReadRows(ctx, table, span)
	if err != nil {
		return RowMatch{}, false, errors.Wrapf(err, "read %s", span.A1(table))
	}
	for i := 1; i < len(rows); i++ {
		if keyIndex < len(rows[i]) && rows[i][keyIndex] == key {
			return RowMatch{Position: i + 1, Row: rows[i]}, true, nil
		}
	}
	return RowMatch{}, false, nil
}

// AppendRow adds row as the new last row of table.
func AppendRow(ctx context.Context, store TableStore, table string, row []string) error {
	if len(row) == 0 {
		return errors.Wrap(ErrInvalidInput, "row is empty")
	}
	if err := store.AppendRow(ctx, table, row); err != nil {
		return errors.Wrapf(err, "append %s row", table)
	}
	return nil
}

// UpdateRow writes updates into the row at position. Updates are sorted by
// column and a repeated column keeps its last value.
func UpdateRow(ctx context.Context, store TableStore, table string, position int, updates map[string]string) error {
	if position < 2 {
		return errors.Wrapf(ErrInvalidInput, "position %d is not a data row", position)
	}
	if len(updates) == 0 {
		return nil
	}
	batch := make([]CellUpdate, 0, len(updates))
	for column, value := range updates {
		if _, err := ColumnIndex(column); err != nil {
			return err
		}
		batch = append(batch, CellUpdate{Column: column, Value: value})
	}
	sortCellUpdates(batch)
	if err := store.UpdateCells(ctx, table, position, batch); err != nil {
		return errors.Wrapf(err, "update %s row %d", table, position)
	}
	return nil
}

func sortCellUpdates(updates []CellUpdate) {
	sort.SliceStable(updates, func(i, j int) bool {
		a, _ := ColumnIndex(updates[i].Column)
		b, _ := ColumnIndex(updates[j].Column)
		return a < b
	})
}

func cloneRow(row []string) []string {
	return append([]string(nil), row...)
}
