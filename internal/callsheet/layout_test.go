package callsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnLetterAndIndex(t *testing.T) {
	cases := map[int]string{0: "A", 3: "D", 8: "I", 10: "K", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ", 702: "AAA"}
	for index, letter := range cases {
		assert.Equal(t, letter, ColumnLetter(index))
		got, err := ColumnIndex(letter)
		require.NoError(t, err)
		assert.Equal(t, index, got)
	}
	got, err := ColumnIndex(" i ")
	require.NoError(t, err)
	assert.Equal(t, 8, got)

	_, err = ColumnIndex("A1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ColumnIndex("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRangeRendering(t *testing.T) {
	assert.Equal(t, "Jobs!A:Z", AppendSpan.A1("Jobs"))
	assert.Equal(t, "Jobs!A:K", JobsReadSpan.A1("Jobs"))
	assert.Equal(t, "Jobs!I7", CellA1("Jobs", "I", 7))
	assert.Equal(t, "'Call Log'!A:Z", AppendSpan.A1("Call Log"))
	assert.Equal(t, "'Bob''s'!A3", CellA1("Bob's", "A", 3))
}

func TestTablesValidate(t *testing.T) {
	require.NoError(t, DefaultTables().Validate())

	err := Tables{Jobs: "Jobs", Emergency: "", Inquiry: "Inquiry"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = Tables{Jobs: "Calls", Emergency: "Calls", Inquiry: "Inquiry"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestColumnSpanBounds(t *testing.T) {
	first, last, err := JobsReadSpan.Bounds()
	require.NoError(t, err)
	assert.Equal(t, 0, first)
	assert.Equal(t, 10, last)

	_, _, err = ColumnSpan{First: "K", Last: "A"}.Bounds()
	assert.ErrorIs(t, err, ErrInvalidInput)
}
