package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/domain"
)

// PostgresStore keeps the call sheet in a PostgreSQL table. Cells are stored
// as text, the same as the SQLite store, so both backends share parsing.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, dsn string, maxConns int, logger *zap.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	store := &PostgresStore{pool: pool, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS calls (
			row_no INTEGER NOT NULL,
			id BIGINT NOT NULL,
			stock TEXT NOT NULL,
			type TEXT NOT NULL,
			entry TEXT NOT NULL,
			target TEXT NOT NULL,
			sl TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			exit_price TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL DEFAULT ''
		);
		ALTER TABLE calls DROP CONSTRAINT IF EXISTS calls_pkey;
		CREATE INDEX IF NOT EXISTS idx_calls_row_no ON calls(row_no);`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: create calls table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]domain.Position, error) {
	const query = `SELECT id::text, stock, type, entry, target, sl, status, exit_price, date
		FROM calls ORDER BY row_no`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: load calls: %w", err)
	}
	defer rows.Close()

	positions := []domain.Position{}
	for rows.Next() {
		row := make([]string, len(domain.SheetColumns))
		dest := make([]any, len(row))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("postgres: scan call: %w", err)
		}
		p, warnings := domain.PositionFromRow(domain.SheetColumns, row)
		for _, w := range warnings {
			s.logger.Warn("Malformed call row", zap.String("warning", w))
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Save replaces the table contents in a single transaction using COPY.
func (s *PostgresStore) Save(ctx context.Context, positions []domain.Position) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM calls`); err != nil {
		return fmt.Errorf("postgres: clear calls: %w", err)
	}

	rows := make([][]any, 0, len(positions))
	for i := range positions {
		cells := positions[i].ToRow()
		row := []any{int32(i), positions[i].ID}
		for _, c := range cells[1:] {
			row = append(row, c)
		}
		rows = append(rows, row)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"calls"},
		[]string{"row_no", "id", "stock", "type", "entry", "target", "sl", "status", "exit_price", "date"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("postgres: copy calls: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ domain.PositionRepository = (*PostgresStore)(nil)
