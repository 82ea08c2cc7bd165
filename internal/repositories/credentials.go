package repositories

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/shared"
)

// Storage keys
const (
	KeyAuthToken = "auth_token"
	KeyProfile   = "userProfile"
)

// CredentialStore is a typed accessor for credential material and the cached profile.
//
// Storage failures are logged and treated as absence: a broken store degrades to anonymous, never to
// a crash. With a [shared.Headless] platform every read reports absent and every write is dropped
// without touching the underlying [Store].
//
// The CSRF token never reaches the [Store]. It is held in process memory whatever the storage
// scope, so each process starts without one until its own bootstrap fetch succeeds.
type CredentialStore struct {
	store    Store
	platform shared.Platform
	logger   *log.Logger

	mu   sync.RWMutex
	csrf string
}

// NewCredentialStore wraps store for the given platform
func NewCredentialStore(store Store, platform shared.Platform, logger *log.Logger) *CredentialStore {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &CredentialStore{store: store, platform: platform, logger: logger}
}

// Platform returns the platform the store was constructed with
func (c *CredentialStore) Platform() shared.Platform { return c.platform }

// AuthToken returns the stored session token.
//
// Blank values and the literal strings "undefined" and "null" read back as absent.
func (c *CredentialStore) AuthToken(ctx context.Context) (string, bool) {
	v, ok := c.get(ctx, KeyAuthToken)
	if !ok || !validToken(v) {
		return "", false
	}
	return v, true
}

// SetAuthToken persists token. An invalid token clears the stored value instead.
func (c *CredentialStore) SetAuthToken(ctx context.Context, token string) error {
	if !validToken(token) {
		return c.delete(ctx, KeyAuthToken)
	}
	return c.set(ctx, KeyAuthToken, token)
}

// CSRFToken returns the anti-forgery token captured by this process's bootstrap
func (c *CredentialStore) CSRFToken(context.Context) (string, bool) {
	if !c.platform.IsInteractive() {
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrf, validToken(c.csrf)
}

// SetCSRFToken replaces the in-memory token. An invalid token clears it.
func (c *CredentialStore) SetCSRFToken(_ context.Context, token string) error {
	if !c.platform.IsInteractive() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !validToken(token) {
		token = ""
	}
	c.csrf = token
	return nil
}

// Profile returns the cached profile. Malformed JSON reads back as absent.
func (c *CredentialStore) Profile(ctx context.Context) (*models.UserProfile, bool) {
	v, ok := c.get(ctx, KeyProfile)
	if !ok || v == "" {
		return nil, false
	}

	var p models.UserProfile
	if err := json.Unmarshal([]byte(v), &p); err != nil {
		c.logger.Warn("discarding malformed cached profile", "error", err)
		return nil, false
	}
	if err := p.Validate(); err != nil {
		return nil, false
	}
	return &p, true
}

// SetProfile caches p. A nil profile removes the cached value.
func (c *CredentialStore) SetProfile(ctx context.Context, p *models.UserProfile) error {
	if p == nil {
		return c.delete(ctx, KeyProfile)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.set(ctx, KeyProfile, string(data))
}

// ClearSession removes the auth token and cached profile. The CSRF token is kept for the process lifetime.
func (c *CredentialStore) ClearSession(ctx context.Context) error {
	if err := c.delete(ctx, KeyAuthToken); err != nil {
		return err
	}
	return c.delete(ctx, KeyProfile)
}

func (c *CredentialStore) get(ctx context.Context, key string) (string, bool) {
	if !c.platform.IsInteractive() {
		return "", false
	}

	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("credential read failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (c *CredentialStore) set(ctx context.Context, key, value string) error {
	if !c.platform.IsInteractive() {
		return nil
	}
	return c.store.Set(ctx, key, value)
}

func (c *CredentialStore) delete(ctx context.Context, key string) error {
	if !c.platform.IsInteractive() {
		return nil
	}
	return c.store.Delete(ctx, key)
}

func validToken(v string) bool {
	switch v {
	case "", "undefined", "null":
		return false
	}
	return true
}
