package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/domain"
)

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			row_no INTEGER NOT NULL,
			id INTEGER NOT NULL,
			stock TEXT NOT NULL,
			type TEXT NOT NULL,
			entry TEXT NOT NULL,
			target TEXT NOT NULL,
			sl TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			exit_price TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_row_no ON calls(row_no);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return s.dropIDPrimaryKey()
}

// dropIDPrimaryKey rebuilds tables created when id was still the primary key.
// Bulk edits may leave duplicate ids, so only row_no orders the sheet.
func (s *SQLiteStore) dropIDPrimaryKey() error {
	var pk int
	err := s.db.QueryRow(`SELECT pk FROM pragma_table_info('calls') WHERE name = 'id'`).Scan(&pk)
	if err != nil {
		return fmt.Errorf("failed to inspect calls table: %w", err)
	}
	if pk == 0 {
		return nil
	}

	s.logger.Info("Migrating calls table: dropping primary key on id")
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	migration := []string{
		`CREATE TABLE calls_new (
			row_no INTEGER NOT NULL,
			id INTEGER NOT NULL,
			stock TEXT NOT NULL,
			type TEXT NOT NULL,
			entry TEXT NOT NULL,
			target TEXT NOT NULL,
			sl TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			exit_price TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL DEFAULT ''
		);`,
		`INSERT INTO calls_new SELECT row_no, id, stock, type, entry, target, sl, status, exit_price, date FROM calls;`,
		`DROP TABLE calls;`,
		`ALTER TABLE calls_new RENAME TO calls;`,
		`CREATE INDEX IF NOT EXISTS idx_calls_row_no ON calls(row_no);`,
	}
	for _, q := range migration {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("failed to migrate calls table: %w", err)
		}
	}
	return tx.Commit()
}

// Load returns the sheet in row order. Cells are stored as text and parsed
// leniently, so a hand-edited bad value degrades to zero instead of failing.
func (s *SQLiteStore) Load(ctx context.Context) ([]domain.Position, error) {
	query := `SELECT id, stock, type, entry, target, sl, status, exit_price, date FROM calls ORDER BY row_no`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []domain.Position{}
	for rows.Next() {
		row := make([]string, len(domain.SheetColumns))
		dest := make([]interface{}, len(row))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		p, warnings := domain.PositionFromRow(domain.SheetColumns, row)
		for _, w := range warnings {
			s.logger.Warn("Malformed call row", zap.String("warning", w))
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Save replaces the stored sheet with positions in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, positions []domain.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM calls`); err != nil {
		return fmt.Errorf("failed to clear calls: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO calls (row_no, id, stock, type, entry, target, sl, status, exit_price, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range positions {
		row := positions[i].ToRow()
		args := make([]interface{}, 0, len(row)+1)
		args = append(args, i)
		for _, c := range row {
			args = append(args, c)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert call %d: %w", positions[i].ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ domain.PositionRepository = (*SQLiteStore)(nil)
