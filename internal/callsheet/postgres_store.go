package callsheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
)

const (
	postgresRowsTableName    = "relaysheet_rows"
	postgresOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresStore keeps every table in one SQL table keyed by
// (table_name, row_position). Cells are stored as a JSON array.
type PostgresStore struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.Wrap(ErrInvalidInput, "postgres dsn is required")
	}
	return &PostgresStore{
		dsn:       dsn,
		tableName: postgresRowsTableName,
		openDB:    sql.Open,
	}, nil
}

// AppendRow computes the next position under a per-table advisory lock held
// for the transaction, so concurrent appends never pick the same position.
func (s *PostgresStore) AppendRow(ctx context.Context, table string, row []string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", s.tableName+"/"+table); err != nil {
		return errors.Wrapf(err, "lock %s for append", table)
	}
	// Position 1 is reserved for the header, so the first data row lands on 2.
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (table_name, row_position, cells, updated_at)
		SELECT $1, GREATEST(COALESCE(MAX(row_position), 0), 1) + 1, $2, NOW()
		FROM %[1]s WHERE table_name = $1`, postgresQuoteIdentifier(s.tableName))
	if _, err := tx.ExecContext(ctx, query, table, string(payload)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) ReadRows(ctx context.Context, table string, span ColumnSpan) ([][]string, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT row_position, cells FROM %s WHERE table_name = $1 ORDER BY row_position",
		postgresQuoteIdentifier(s.tableName),
	)
	result, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	tables := tableSet{}
	for result.Next() {
		var position int
		var payload string
		if err := result.Scan(&position, &payload); err != nil {
			return nil, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(payload), &cells); err != nil {
			return nil, errors.Wrapf(err, "decode %s row %d", table, position)
		}
		// Gaps between positions read back as empty rows.
		updates := make([]CellUpdate, len(cells))
		for i, v := range cells {
			updates[i] = CellUpdate{Column: ColumnLetter(i), Value: v}
		}
		if err := tables.updateCells(table, position, updates); err != nil {
			return nil, err
		}
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return tables.readRows(table, span)
}

// UpdateCells applies the batch inside one transaction.
func (s *PostgresStore) UpdateCells(ctx context.Context, table string, position int, updates []CellUpdate) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	selectQuery := fmt.Sprintf(
		"SELECT cells FROM %s WHERE table_name = $1 AND row_position = $2 FOR UPDATE",
		postgresQuoteIdentifier(s.tableName),
	)
	var payload string
	var cells []string
	err = tx.QueryRowContext(ctx, selectQuery, table, position).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal([]byte(payload), &cells); err != nil {
			return errors.Wrapf(err, "decode %s row %d", table, position)
		}
	}

	row := tableSet{table: [][]string{cells}}
	if err := row.updateCells(table, 1, updates); err != nil {
		return err
	}
	encoded, err := json.Marshal(row[table][0])
	if err != nil {
		return err
	}
	upsert := fmt.Sprintf(`
		INSERT INTO %s (table_name, row_position, cells, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (table_name, row_position)
		DO UPDATE SET cells = EXCLUDED.cells, updated_at = NOW()`, postgresQuoteIdentifier(s.tableName))
	if _, err := tx.ExecContext(ctx, upsert, table, position, string(encoded)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) EnsureHeader(ctx context.Context, table string, header []string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	payload, err := json.Marshal(header)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (table_name, row_position, cells, updated_at)
		VALUES ($1, 1, $2, NOW())
		ON CONFLICT (table_name, row_position) DO NOTHING`, postgresQuoteIdentifier(s.tableName))
	_, err = s.db.ExecContext(ctx, query, table, string(payload))
	return err
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureReady() error {
	if s == nil {
		return ErrInvalidInput
	}
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.dsn)
		if err != nil {
			s.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				table_name TEXT NOT NULL,
				row_position INTEGER NOT NULL,
				cells TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (table_name, row_position)
			)`, postgresQuoteIdentifier(s.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			s.initErr = err
			return
		}
		s.db = db
	})
	return s.initErr
}

func postgresQuoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "\"\""
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
