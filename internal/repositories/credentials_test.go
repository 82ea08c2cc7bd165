package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore returns err from every operation
type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Set(context.Context, string, string) error         { return f.err }
func (f failingStore) Delete(context.Context, string) error              { return f.err }
func (f failingStore) Clear(context.Context) error                       { return f.err }

func TestCredentialStore(t *testing.T) {
	ctx := context.Background()
	profile := &models.UserProfile{ID: 7, Email: "user@example.com", FirstName: "Ada"}

	t.Run("Auth Token Round Trip", func(t *testing.T) {
		creds := NewCredentialStore(NewMemoryStore(), shared.Interactive, nil)
		_, ok := creds.AuthToken(ctx)
		assert.False(t, ok)

		require.NoError(t, creds.SetAuthToken(ctx, "abc123"))
		token, ok := creds.AuthToken(ctx)
		assert.True(t, ok)
		assert.Equal(t, "abc123", token)
	})

	t.Run("Sentinel Strings Read As Absent", func(t *testing.T) {
		for _, raw := range []string{"", "undefined", "null"} {
			store := NewMemoryStore()
			require.NoError(t, store.Set(ctx, KeyAuthToken, raw))

			creds := NewCredentialStore(store, shared.Interactive, nil)
			require.NoError(t, creds.SetCSRFToken(ctx, raw))
			_, ok := creds.AuthToken(ctx)
			assert.False(t, ok, "auth token %q should be absent", raw)
			_, ok = creds.CSRFToken(ctx)
			assert.False(t, ok, "csrf token %q should be absent", raw)
		}
	})

	t.Run("CSRF Token Stays In Memory", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewSQLiteStore(db)
		creds := NewCredentialStore(store, shared.Interactive, nil)
		require.NoError(t, creds.SetCSRFToken(ctx, "from-this-run"))

		token, ok := creds.CSRFToken(ctx)
		require.True(t, ok)
		assert.Equal(t, "from-this-run", token)

		_, ok, err := store.Get(ctx, "csrftoken")
		require.NoError(t, err)
		assert.False(t, ok, "csrf token must not be persisted")

		next := NewCredentialStore(NewSQLiteStore(db), shared.Interactive, nil)
		_, ok = next.CSRFToken(ctx)
		assert.False(t, ok, "a new process starts without a csrf token")
	})

	t.Run("Setting Sentinel Clears", func(t *testing.T) {
		store := NewMemoryStore()
		creds := NewCredentialStore(store, shared.Interactive, nil)
		require.NoError(t, creds.SetAuthToken(ctx, "abc"))
		require.NoError(t, creds.SetAuthToken(ctx, "undefined"))

		_, ok, _ := store.Get(ctx, KeyAuthToken)
		assert.False(t, ok)
	})

	t.Run("Profile Round Trip", func(t *testing.T) {
		creds := NewCredentialStore(NewMemoryStore(), shared.Interactive, nil)
		require.NoError(t, creds.SetProfile(ctx, profile))

		got, ok := creds.Profile(ctx)
		require.True(t, ok)
		assert.Equal(t, profile, got)

		require.NoError(t, creds.SetProfile(ctx, nil))
		_, ok = creds.Profile(ctx)
		assert.False(t, ok)
	})

	t.Run("Malformed Profile Reads As Absent", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, KeyProfile, "{not json"))
		creds := NewCredentialStore(store, shared.Interactive, nil)

		_, ok := creds.Profile(ctx)
		assert.False(t, ok)

		require.NoError(t, store.Set(ctx, KeyProfile, `{"id": 1}`))
		_, ok = creds.Profile(ctx)
		assert.False(t, ok, "profile without email should be absent")
	})

	t.Run("Clear Session Keeps CSRF", func(t *testing.T) {
		creds := NewCredentialStore(NewMemoryStore(), shared.Interactive, nil)
		require.NoError(t, creds.SetAuthToken(ctx, "abc"))
		require.NoError(t, creds.SetCSRFToken(ctx, "csrf"))
		require.NoError(t, creds.SetProfile(ctx, profile))

		require.NoError(t, creds.ClearSession(ctx))

		_, ok := creds.AuthToken(ctx)
		assert.False(t, ok)
		_, ok = creds.Profile(ctx)
		assert.False(t, ok)
		csrf, ok := creds.CSRFToken(ctx)
		assert.True(t, ok)
		assert.Equal(t, "csrf", csrf)
	})

	t.Run("Headless Is A No-op", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, KeyAuthToken, "abc"))
		creds := NewCredentialStore(store, shared.Headless, nil)

		_, ok := creds.AuthToken(ctx)
		assert.False(t, ok, "headless reads must report absent")

		require.NoError(t, creds.SetCSRFToken(ctx, "csrf"))
		require.NoError(t, creds.ClearSession(ctx))

		snap := store.Snapshot()
		assert.Equal(t, map[string]string{KeyAuthToken: "abc"}, snap, "headless writes must not reach the store")
	})

	t.Run("Store Failures Read As Absent", func(t *testing.T) {
		boom := errors.New("disk on fire")
		creds := NewCredentialStore(failingStore{err: boom}, shared.Interactive, shared.DiscardLogger())

		_, ok := creds.AuthToken(ctx)
		assert.False(t, ok)
		_, ok = creds.Profile(ctx)
		assert.False(t, ok)

		assert.ErrorIs(t, creds.SetAuthToken(ctx, "abc"), boom)
		assert.ErrorIs(t, creds.ClearSession(ctx), boom)
	})

	t.Run("Local Scope", func(t *testing.T) {
		creds := NewCredentialStore(NewSQLiteStore(setupTestDB(t)), shared.Interactive, nil)
		require.NoError(t, creds.SetAuthToken(ctx, "abc"))
		require.NoError(t, creds.SetProfile(ctx, profile))

		got, ok := creds.Profile(ctx)
		require.True(t, ok)
		assert.Equal(t, profile.Email, got.Email)

		require.NoError(t, creds.ClearSession(ctx))
		_, ok = creds.AuthToken(ctx)
		assert.False(t, ok)
	})
}
