package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // every :memory: connection is its own database
	s, err := NewSQLStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStores_LoadSaveLastWriteWins(t *testing.T) {
	cases := []struct {
		name  string
		store func(t *testing.T) Store
	}{
		{"memory", func(*testing.T) Store { return NewMemoryStore() }},
		{"file", func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "data", "tournament_data.json"))
		}},
		{"sqlite", func(t *testing.T) Store { return newSQLiteStore(t) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := tc.store(t)

			_, err := s.Load(ctx)
			require.ErrorIs(t, err, ErrNotFound)

			at := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
			require.NoError(t, s.Save(ctx, Snapshot{Version: 1, Payload: []byte(`{"robots":["Kipp-Bot"]}`), SavedAt: at}))
			require.NoError(t, s.Save(ctx, Snapshot{Version: 2, Payload: []byte(`{"robots":["Kipp-Bot","Bumm-Bot"]}`), SavedAt: at.Add(time.Second)}))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 2, got.Version)
			assert.JSONEq(t, `{"robots":["Kipp-Bot","Bumm-Bot"]}`, string(got.Payload))
			assert.True(t, got.SavedAt.Equal(at.Add(time.Second)), "saved_at %v", got.SavedAt)
		})
	}
}

func TestFileStore_RejectsInvalidPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournament_data.json")
	s := NewFileStore(path)

	err := s.Save(context.Background(), Snapshot{Version: 1, Payload: []byte("{not json")})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing should be written")
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournament_data.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

const legacyData = `{
  "robots": ["Wackel-Bot 3000", "Rüttel-Rex"],
  "current_match": {"robot1": "Wackel-Bot 3000", "robot2": "Rüttel-Rex", "round": "Finale"},
  "last_updated": "2025-06-01T14:03:22.123456"
}`

func TestFileStore_LegacyFlatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournament_data.json")
	require.NoError(t, os.WriteFile(path, []byte(legacyData), 0o644))

	snap, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, snap.Version)
	assert.JSONEq(t, legacyData, string(snap.Payload))
}

func TestFileStore_UnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournament_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"teams":[]}`), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFileStore_KeepsUmlauts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournament_data.json")
	s := NewFileStore(path)
	require.NoError(t, s.Save(context.Background(), Snapshot{Version: 3, Payload: []byte(`{"robots":["Rüttel-Rex"]}`)}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Rüttel-Rex")
	assert.Contains(t, string(raw), `"version": 3`)
}

func TestMemoryStore_CopiesPayload(t *testing.T) {
	s := NewMemoryStore()
	payload := []byte(`{"a":1}`)
	require.NoError(t, s.Save(context.Background(), Snapshot{Version: 1, Payload: payload}))
	payload[1] = 'X'

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got.Payload))
	assert.Equal(t, 1, s.Saves())
}
