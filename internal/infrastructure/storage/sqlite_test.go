package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/domain"
	"github.com/vitos/trade_calls/internal/usecase"
)

func setupTestDB(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "calls.db")
	store, err := NewSQLiteStore(dbPath, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func samplePositions() []domain.Position {
	return []domain.Position{
		{
			ID: 3, Symbol: "RELIANCE", Side: domain.SideBuy,
			EntryPrice:    decimal.RequireFromString("2900"),
			TargetPrice:   decimal.RequireFromString("3000"),
			StopLossPrice: decimal.RequireFromString("2850.5"),
			Status:        domain.StatusActive,
			OpenedOn:      time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: 1, Symbol: "TCS", Side: domain.SideSell,
			EntryPrice:    decimal.RequireFromString("3500"),
			TargetPrice:   decimal.RequireFromString("3400"),
			StopLossPrice: decimal.RequireFromString("3550"),
			Status:        domain.StatusStopLossHit,
			ExitPrice:     decimal.RequireFromString("3552.4"),
			OpenedOn:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestSQLiteStore_EmptyLoad(t *testing.T) {
	store := setupTestDB(t)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSQLiteStore_SaveReplacesWholeList(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, samplePositions()))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Row order is preserved, not id order
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, "RELIANCE", got[0].Symbol)
	assert.True(t, decimal.RequireFromString("2850.5").Equal(got[0].StopLossPrice))
	assert.True(t, got[0].ExitPrice.IsZero())
	assert.Equal(t, domain.StatusStopLossHit, got[1].Status)
	assert.True(t, decimal.RequireFromString("3552.4").Equal(got[1].ExitPrice))
	assert.Equal(t, "2024-03-01", got[1].OpenedOn.Format(domain.DateLayout))

	require.NoError(t, store.Save(ctx, got[1:]))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestSQLiteStore_MalformedCellsDegrade(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.db.Exec(`INSERT INTO calls (row_no, id, stock, type, entry, target, sl, status, exit_price, date)
		VALUES (0, 7, 'INFY', 'BUY', 'abc', '1600', '1450', 'Active', '', '2024-01-02')`)
	require.NoError(t, err)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].EntryPrice.IsZero())
	assert.Equal(t, domain.StatusActive, got[0].Status)
	assert.Error(t, got[0].Validate())
}

func TestSQLiteStore_BulkEditDuplicateIDPersists(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seed := []domain.Position{
		{
			ID: 1, Symbol: "INFY", Side: domain.SideBuy,
			EntryPrice:    decimal.NewFromInt(100),
			TargetPrice:   decimal.NewFromInt(110),
			StopLossPrice: decimal.NewFromInt(95),
			Status:        domain.StatusActive,
		},
		{
			ID: 2, Symbol: "TCS", Side: domain.SideBuy,
			EntryPrice:    decimal.NewFromInt(100),
			TargetPrice:   decimal.NewFromInt(110),
			StopLossPrice: decimal.NewFromInt(95),
			Status:        domain.StatusActive,
		},
	}
	require.NoError(t, store.Save(ctx, seed))

	svc := usecase.NewCallService(store, nil, zap.NewNop())
	warnings, err := svc.BulkEdit(ctx, []domain.RowEdit{
		{ID: 2, Fields: map[string]string{"id": "1", "target": "120"}},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "INFY", got[0].Symbol)
	assert.Equal(t, int64(1), got[1].ID)
	assert.Equal(t, "TCS", got[1].Symbol)
	assert.True(t, decimal.NewFromInt(120).Equal(got[1].TargetPrice))
}

func TestSQLiteStore_MigratesIDPrimaryKey(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calls.db")

	legacy, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = legacy.Exec(`CREATE TABLE calls (
		row_no INTEGER NOT NULL,
		id INTEGER PRIMARY KEY,
		stock TEXT NOT NULL,
		type TEXT NOT NULL,
		entry TEXT NOT NULL,
		target TEXT NOT NULL,
		sl TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		exit_price TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT ''
	)`)
	require.NoError(t, err)
	_, err = legacy.Exec(`INSERT INTO calls VALUES (0, 5, 'SBIN', 'BUY', '800', '850', '780', 'ACTIVE', '', '2024-02-01')`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	store, err := NewSQLiteStore(dbPath, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SBIN", got[0].Symbol)

	got = append(got, got[0])
	require.NoError(t, store.Save(ctx, got))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
