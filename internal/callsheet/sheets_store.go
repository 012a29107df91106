package callsheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const sheetsValueInputOption = "USER_ENTERED"

// SheetsStore reads and writes rows of one Google spreadsheet. Credentials
// come from Application Default Credentials unless options say otherwise.
type SheetsStore struct {
	spreadsheetID string
	values        *sheets.SpreadsheetsValuesService
}

func NewSheetsStore(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*SheetsStore, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.Wrap(ErrInvalidInput, "spreadsheet id is required")
	}
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create sheets service")
	}
	return &SheetsStore{spreadsheetID: spreadsheetID, values: svc.Spreadsheets.Values}, nil
}

func (s *SheetsStore) SpreadsheetID() string {
	return s.spreadsheetID
}

func (s *SheetsStore) AppendRow(ctx context.Context, table string, row []string) error {
	body := &sheets.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := s.values.Append(s.spreadsheetID, AppendSpan.A1(table), body).
		ValueInputOption(sheetsValueInputOption).
		Context(ctx).
		Do()
	return err
}

func (s *SheetsStore) ReadRows(ctx context.Context, table string, span ColumnSpan) ([][]string, error) {
	resp, err := s.values.Get(s.spreadsheetID, span.A1(table)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, values := range resp.Values {
		row := make([]string, len(values))
		for i, v := range values {
			if v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// UpdateCells sends every cell of the batch in one values:batchUpdate call.
func (s *SheetsStore) UpdateCells(ctx context.Context, table string, position int, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, update := range updates {
		data = append(data, &sheets.ValueRange{
			Range:  CellA1(table, update.Column, position),
			Values: [][]interface{}{{update.Value}},
		})
	}
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: sheetsValueInputOption,
		Data:             data,
	}
	_, err := s.values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}

// EnsureHeader writes header into row 1 when the sheet has no first row yet.
func (s *SheetsStore) EnsureHeader(ctx context.Context, table string, header []string) error {
	last := ColumnLetter(len(header) - 1)
	rng := fmt.Sprintf("%s!A1:%s1", QuoteSheetName(table), last)
	resp, err := s.values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	body := &sheets.ValueRange{Values: [][]interface{}{toCells(header)}}
	_, err = s.values.Update(s.spreadsheetID, rng, body).
		ValueInputOption(sheetsValueInputOption).
		Context(ctx).
		Do()
	return err
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
