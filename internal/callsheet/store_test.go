package callsheet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	*MemoryStore
	appends []string
	updates [][]CellUpdate
	reads   int
	failOn  string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore()}
}

var errBackendDown = errors.New("backend unavailable")

func (s *recordingStore) AppendRow(ctx context.Context, table string, row []string) error {
	if s.failOn == "append" {
		return errBackendDown
	}
	s.appends = append(s.appends, table)
	return s.MemoryStore.AppendRow(ctx, table, row)
}

func (s *recordingStore) ReadRows(ctx context.Context, table string, span ColumnSpan) ([][]string, error) {
	if s.failOn == "read" {
		return nil, errBackendDown
	}
	s.reads++
	return s.MemoryStore.ReadRows(ctx, table, span)
}

func (s *recordingStore) UpdateCells(ctx context.Context, table string, position int, updates []CellUpdate) error {
	if s.failOn == "update" {
		return errBackendDown
	}
	s.updates = append(s.updates, append([]CellUpdate(nil), updates...))
	return s.MemoryStore.UpdateCells(ctx, table, position, updates)
}

func TestFindByKeyReturnsFirstMatchAfterHeader(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Jobs",
		jobsHeader,
		[]string{"t1", "Other", "", "555-9999"},
		[]string{"t2", "First", "", "555-1234"},
		[]string{"t3", "Middle", "", "555-0000"},
		[]string{"t4", "Second", "", "555-1234"},
	)

	match, ok, err := FindByKey(context.Background(), store, "Jobs", JobsReadSpan, jobColPhoneNumber, "555-1234")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, match.Position)
	assert.Equal(t, "First", match.Row[jobColName])
}

func TestFindByKeyHeaderOnlyTable(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Jobs", jobsHeader)

	_, ok, err := FindByKey(context.Background(), store, "Jobs", JobsReadSpan, jobColPhoneNumber, "Phone Number")
	require.NoError(t, err)
	assert.False(t, ok, "the header row is never a match")

	_, ok, err = FindByKey(context.Background(), store, "Missing", JobsReadSpan, jobColPhoneNumber, "555")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindByKeyShortRowsAreSkipped(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Jobs", jobsHeader, []string{"t1", "Short"}, []string{"t2", "Long", "", "555"})

	match, ok, err := FindByKey(context.Background(), store, "Jobs", JobsReadSpan, jobColPhoneNumber, "555")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, match.Position)
}

func TestFindByKeyWrapsReadErrors(t *testing.T) {
	store := newRecordingStore()
	store.failOn = "read"
	_, _, err := FindByKey(context.Background(), store, "Jobs", JobsReadSpan, jobColPhoneNumber, "555")
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackendDown)
	assert.Contains(t, err.Error(), "Jobs!A:K")
}

func TestUpdateRowValidation(t *testing.T) {
	store := newRecordingStore()
	ctx := context.Background()

	err := UpdateRow(ctx, store, "Jobs", 1, map[string]string{"I": "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = UpdateRow(ctx, store, "Jobs", 2, map[string]string{"9": "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, UpdateRow(ctx, store, "Jobs", 2, nil))
	assert.Empty(t, store.updates)
}

func TestUpdateRowSendsOneSortedBatch(t *testing.T) {
	store := newRecordingStore()
	store.Seed("Jobs", jobsHeader, []string{"t1", "Ada", "", "555"})

	err := UpdateRow(context.Background(), store, "Jobs", 2, map[string]string{"I": "Cancelled", "A": "t2", "F": "noon"})
	require.NoError(t, err)
	require.Len(t, store.updates, 1)
	assert.Equal(t, []CellUpdate{{"A", "t2"}, {"F", "noon"}, {"I", "Cancelled"}}, store.updates[0])

	row := store.Rows("Jobs")[1]
	assert.Equal(t, "t2", row[0])
	assert.Equal(t, "noon", row[5])
	assert.Equal(t, "Cancelled", row[8])
}

func TestAppendRowRejectsEmptyRow(t *testing.T) {
	err := AppendRow(context.Background(), NewMemoryStore(), "Jobs", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMemoryStoreReadSlicesSpan(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Wide", []string{"a", "b", "c", "d"})

	rows, err := store.ReadRows(context.Background(), "Wide", ColumnSpan{First: "B", Last: "C"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"b", "c"}}, rows)

	rows, err = store.ReadRows(context.Background(), "Wide", ColumnSpan{First: "F", Last: "G"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{}}, rows)
}

func TestMemoryStoreEnsureHeaderOnlyOnEmptyTable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureHeader(ctx, "Jobs", jobsHeader))
	require.NoError(t, store.AppendRow(ctx, "Jobs", []string{"row"}))
	require.NoError(t, store.EnsureHeader(ctx, "Jobs", []string{"other"}))

	rows := store.Rows("Jobs")
	require.Len(t, rows, 2)
	assert.Equal(t, jobsHeader, rows[0])
}

func TestMemoryStoreAppendReservesHeaderPosition(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.AppendRow(ctx, "Jobs", []string{"t1", "Ada", "", "555-1234"}))

	rows := store.Rows("Jobs")
	require.Len(t, rows, 2)
	assert.Empty(t, rows[0])
	assert.Equal(t, "Ada", rows[1][1])

	match, ok, err := FindByKey(ctx, store, "Jobs", JobsReadSpan, jobColPhoneNumber, "555-1234")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, match.Position)

	require.NoError(t, store.EnsureHeader(ctx, "Jobs", jobsHeader))
	rows = store.Rows("Jobs")
	require.Len(t, rows, 2)
	assert.Equal(t, jobsHeader, rows[0])
}

func TestJSONFileStoreAppendReservesHeaderPosition(t *testing.T) {
	store := NewJSONFileStore(filepath.Join(t.TempDir(), "tables.json"))
	ctx := context.Background()
	require.NoError(t, store.AppendRow(ctx, "Inquiry", []string{"t1", "Alan"}))

	rows, err := store.ReadRows(ctx, "Inquiry", ColumnSpan{First: "A", Last: "B"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{}, {"t1", "Alan"}}, rows)
}

func TestMemoryStoreUpdatePadsRow(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Jobs", jobsHeader, []string{"t1"})
	require.NoError(t, store.UpdateCells(context.Background(), "Jobs", 2, []CellUpdate{{Column: "D", Value: "555"}}))
	assert.Equal(t, []string{"t1", "", "", "555"}, store.Rows("Jobs")[1])
}

func TestJSONFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tables.json")
	ctx := context.Background()

	first := NewJSONFileStore(path)
	require.NoError(t, first.EnsureHeader(ctx, "Jobs", jobsHeader))
	require.NoError(t, first.AppendRow(ctx, "Jobs", []string{"t1", "Ada", "", "555"}))
	require.NoError(t, first.UpdateCells(ctx, "Jobs", 2, []CellUpdate{{Column: "I", Value: StatusCancelled}}))

	second := NewJSONFileStore(path)
	rows, err := second.ReadRows(ctx, "Jobs", JobsReadSpan)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ada", rows[1][1])
	assert.Equal(t, StatusCancelled, rows[1][8])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestJSONFileStoreMissingFileReadsEmpty(t *testing.T) {
	store := NewJSONFileStore(filepath.Join(t.TempDir(), "absent.json"))
	rows, err := store.ReadRows(context.Background(), "Jobs", JobsReadSpan)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestJSONFileStoreRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := NewJSONFileStore(path).ReadRows(context.Background(), "Jobs", JobsReadSpan)
	assert.Error(t, err)

	_, err = NewJSONFileStore("  ").ReadRows(context.Background(), "Jobs", JobsReadSpan)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
