package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/castellan-labs/disburse/pkg/schedule"
	"github.com/castellan-labs/disburse/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "disburse_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := store.NewSQLiteStore(db)
	require.NoError(t, err)
	return s
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, newSQLiteStore(t))
}

func TestSQLiteStore_TriggerTimeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	at := time.Date(2026, 9, 1, 12, 30, 0, 0, time.UTC)
	id, err := s.AllocateID(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, schedule.Obligation{
		ID:        id,
		Recipient: "payee0002",
		Asset:     schedule.NewTokenAsset("token1", 42),
		Trigger:   schedule.AtTime(at),
	}))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, schedule.TriggerAtTime, got.Trigger.Kind)
	assert.True(t, got.Trigger.Time.Equal(at))
	assert.Equal(t, schedule.AssetToken, got.Asset.Kind)
	assert.Equal(t, int64(42), got.Asset.Amount)
}

func TestSQLiteStore_CounterSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "disburse_test.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	s, err := store.NewSQLiteStore(db)
	require.NoError(t, err)

	id1, err := s.AllocateID(ctx)
	require.NoError(t, err)
	id2, err := s.AllocateID(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err = store.NewSQLiteStore(db)
	require.NoError(t, err)

	id3, err := s.AllocateID(ctx)
	require.NoError(t, err)
	assert.Greater(t, id3, id2)
	assert.Equal(t, id1+2, id3, "counter must continue across restarts, never reset")
}
