package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err, "failed to create test database")
	shared.ConfigureDatabase(db, 1, 1)

	require.NoError(t, shared.RunMigrations(db), "failed to run migrations")
	t.Cleanup(func() { db.Close() })
	return db
}

// storeContract runs the same assertions against every [Store] implementation
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("Missing Key", func(t *testing.T) {
		s := newStore(t)
		v, ok, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("Set Then Get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "k", "v1"))
		v, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v1", v)
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "k", "v1"))
		require.NoError(t, s.Set(ctx, "k", "v2"))
		v, _, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", v)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "k", "v"))
		require.NoError(t, s.Delete(ctx, "k"))
		require.NoError(t, s.Delete(ctx, "k"), "deleting a missing key should succeed")
		_, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Clear", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "a", "1"))
		require.NoError(t, s.Set(ctx, "b", "2"))
		require.NoError(t, s.Clear(ctx))
		_, okA, _ := s.Get(ctx, "a")
		_, okB, _ := s.Get(ctx, "b")
		assert.False(t, okA)
		assert.False(t, okB)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return NewMemoryStore() })

	t.Run("Snapshot Is A Copy", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Set(context.Background(), "k", "v"))
		snap := s.Snapshot()
		snap["k"] = "changed"
		v, _, _ := s.Get(context.Background(), "k")
		assert.Equal(t, "v", v)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return NewSQLiteStore(setupTestDB(t)) })

	t.Run("Upsert Keeps Row ID", func(t *testing.T) {
		db := setupTestDB(t)
		s := NewSQLiteStore(db)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", "v1"))
		var first string
		require.NoError(t, db.QueryRow(`SELECT id FROM credentials WHERE key = 'k'`).Scan(&first))

		require.NoError(t, s.Set(ctx, "k", "v2"))
		var second string
		require.NoError(t, db.QueryRow(`SELECT id FROM credentials WHERE key = 'k'`).Scan(&second))
		assert.Equal(t, first, second)
	})

	t.Run("Values Survive Reopen", func(t *testing.T) {
		path := t.TempDir() + "/hego.db"
		cfg := shared.StorageConfig{Scope: shared.ScopeLocal, Path: path, MaxOpenConns: 1, MaxIdleConns: 1}
		ctx := context.Background()

		db, err := shared.OpenStorage(cfg)
		require.NoError(t, err)
		require.NoError(t, NewSQLiteStore(db).Set(ctx, KeyAuthToken, "persisted"))
		require.NoError(t, db.Close())

		db, err = shared.OpenStorage(cfg)
		require.NoError(t, err)
		defer db.Close()

		v, ok, err := NewSQLiteStore(db).Get(ctx, KeyAuthToken)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "persisted", v)
	})

	t.Run("Keys", func(t *testing.T) {
		s := NewSQLiteStore(setupTestDB(t))
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "a", "1"))
		require.NoError(t, s.Set(ctx, "b", "2"))

		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, keys)
	})

	t.Run("Closed Database", func(t *testing.T) {
		db, err := shared.NewDatabase(":memory:")
		require.NoError(t, err)
		db.Close()

		s := NewSQLiteStore(db)
		_, _, err = s.Get(context.Background(), "k")
		assert.Error(t, err)
		assert.Error(t, s.Set(context.Background(), "k", "v"))
	})
}

func TestSessionEventRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Record And Recent", func(t *testing.T) {
		repo := NewSessionEventRepository(setupTestDB(t))
		base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

		_, err := repo.Record(ctx, models.Session{
			User:      &models.UserProfile{ID: 1, Email: "user@example.com"},
			Reason:    models.ReasonLogin,
			ChangedAt: base,
		})
		require.NoError(t, err)

		_, err = repo.Record(ctx, models.Session{Reason: models.ReasonLogout, ChangedAt: base.Add(time.Minute)})
		require.NoError(t, err)

		events, err := repo.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)

		assert.Equal(t, models.Anonymous, events[0].State)
		assert.Equal(t, models.ReasonLogout, events[0].Reason)
		assert.Empty(t, events[0].UserEmail)

		assert.Equal(t, models.Authenticated, events[1].State)
		assert.Equal(t, "user@example.com", events[1].UserEmail)
	})

	t.Run("Zero Time Defaults To Now", func(t *testing.T) {
		repo := NewSessionEventRepository(setupTestDB(t))
		event, err := repo.Record(ctx, models.Session{Reason: models.ReasonInactivity})
		require.NoError(t, err)
		assert.False(t, event.CreatedAt.IsZero())
		assert.NotEmpty(t, event.ID)
	})

	t.Run("Prune", func(t *testing.T) {
		repo := NewSessionEventRepository(setupTestDB(t))
		old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err := repo.Record(ctx, models.Session{Reason: models.ReasonLogout, ChangedAt: old})
		require.NoError(t, err)
		_, err = repo.Record(ctx, models.Session{Reason: models.ReasonLogout, ChangedAt: time.Now().UTC()})
		require.NoError(t, err)

		removed, err := repo.Prune(ctx, old.Add(time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, removed)

		events, err := repo.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}
