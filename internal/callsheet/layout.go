package callsheet

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrActionRequired     = errors.New("action is required")
	ErrUnknownAction      = errors.New("unknown action")
	ErrNotImplemented     = errors.New("not implemented")
	ErrUnsupportedBackend = errors.New("unsupported store backend")
)

const (
	StatusBooked      = "Booked"
	StatusRescheduled = "Rescheduled"
	StatusCancelled   = "Cancelled"
)

// Jobs column positions, zero based.
const (
	jobColTimestamp = iota
	jobColName
	jobColEmail
	jobColPhoneNumber
	jobColServiceType
	jobColPreferredTime
	jobColLocationType
	jobColLocation
	jobColStatus
	jobColCallDuration
	jobColumnCount
)

var (
	jobsHeader      = []string{"timestamp", "name", "email", "phone_number", "service_type", "preferred_time", "location_type", "location", "appointment_status", "call_duration"}
	emergencyHeader = []string{"timestamp", "name", "phone_number", "location", "emergency_details", "call_duration"}
	inquiryHeader   = []string{"timestamp", "name", "phone_number", "location", "inquiry_details", "call_duration"}
)

// AppendSpan is the range used for appends, JobsReadSpan the range used for
// full Jobs reads.
var (
	AppendSpan   = ColumnSpan{First: "A", Last: "Z"}
	JobsReadSpan = ColumnSpan{First: "A", Last: "K"}
)

// Tables names the three sheets a deployment writes to.
type Tables struct {
	Jobs      string `mapstructure:"jobs"`
	Emergency string `mapstructure:"emergency"`
	Inquiry   string `mapstructure:"inquiry"`
}

func DefaultTables() Tables {
	return Tables{Jobs: "Jobs", Emergency: "Emergency", Inquiry: "Inquiry"}
}

func (t Tables) Validate() error {
	names := map[string]string{"jobs": t.Jobs, "emergency": t.Emergency, "inquiry": t.Inquiry}
	seen := map[string]string{}
	for key, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.Wrapf(ErrInvalidInput, "table name for %s is empty", key)
		}
		if other, dup := seen[name]; dup {
			return errors.Wrapf(ErrInvalidInput, "tables %s and %s share the name %q", other, key, name)
		}
		seen[name] = key
	}
	return nil
}

// Headers returns the header row written at position 1 of each table.
func (t Tables) Headers() map[string][]string {
	return map[string][]string{
		t.Jobs:      append([]string(nil), jobsHeader...),
		t.Emergency: append([]string(nil), emergencyHeader...),
		t.Inquiry:   append([]string(nil), inquiryHeader...),
	}
}

// ColumnSpan is an inclusive range of column letters such as A:K.
type ColumnSpan struct {
	First string
	Last  string
}

func (s ColumnSpan) Bounds() (int, int, error) {
	first, err := ColumnIndex(s.First)
	if err != nil {
		return 0, 0, err
	}
	last, err := ColumnIndex(s.Last)
	if err != nil {
		return 0, 0, err
	}
	if last < first {
		return 0, 0, errors.Wrapf(ErrInvalidInput, "column span %s:%s is reversed", s.First, s.Last)
	}
	return first, last, nil
}

// A1 renders the span as an A1 range on the named sheet, e.g. Jobs!A:K.
func (s ColumnSpan) A1(table string) string {
	return fmt.Sprintf("%s!%s:%s", QuoteSheetName(table), s.First, s.Last)
}

// CellA1 renders a single cell reference, e.g. Jobs!I7.
func CellA1(table, column string, position int) string {
	return fmt.Sprintf("%s!%s%d", QuoteSheetName(table), column, position)
}

// QuoteSheetName quotes sheet names that are not plain alphanumerics.
func QuoteSheetName(name string) string {
	plain := name != ""
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// ColumnLetter converts a zero based column index to its letter form (0 -> A, 26 -> AA).
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var out []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		out = append([]byte{byte('A' + (n-1)%26)}, out...)
	}
	return string(out)
}

// ColumnIndex converts a column letter to its zero based index.
func ColumnIndex(letter string) (int, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return 0, errors.Wrap(ErrInvalidInput, "column letter is empty")
	}
	n := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, errors.Wrapf(ErrInvalidInput, "invalid column letter %q", letter)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, nil
}
