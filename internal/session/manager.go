package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hego/internal/bootstrap"
	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/repositories"
	"github.com/desertthunder/hego/internal/services"
	"github.com/desertthunder/hego/internal/shared"
)

// Backend is the subset of [services.AuthAPI] the manager calls
type Backend interface {
	Login(ctx context.Context, email, password string) (*services.LoginResponse, error)
	LoginWithAssertion(ctx context.Context, assertion models.ProviderAssertion) (*services.LoginResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserProfile, error)
}

// EventLog records session transitions
type EventLog interface {
	Record(ctx context.Context, s models.Session) (*models.SessionEvent, error)
}

// Config tunes the manager
type Config struct {
	// VerifyOnRestore forces a who-am-i call on restore even when a cached profile exists
	VerifyOnRestore bool
}

// Option configures optional collaborators of a [Manager]
type Option func(*Manager)

// WithLogger sets the component logger
func WithLogger(l *log.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithMetrics reports attempts and transitions to metrics
func WithMetrics(metrics *Metrics) Option { return func(m *Manager) { m.metrics = metrics } }

// WithEventLog persists every transition
func WithEventLog(events EventLog) Option { return func(m *Manager) { m.events = events } }

// WithClock overrides time.Now for transition timestamps
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// Manager owns the session state. It is the only writer of the session and of the stored auth
// token and profile.
//
// Concurrent logins and restores are last-writer-wins. Logout is a barrier: a login that started
// before a logout completed never commits.
type Manager struct {
	api      Backend
	creds    *repositories.CredentialStore
	gate     *bootstrap.Gate
	platform shared.Platform
	config   Config

	logger  *log.Logger
	metrics *Metrics
	events  EventLog
	now     func() time.Time

	mu         sync.RWMutex
	session    models.Session
	generation uint64
	subs       map[int]chan models.Session
	nextSub    int
}

// NewManager creates a manager in the ANONYMOUS state.
//
// gate may be nil, in which case network calls are never held back.
func NewManager(api Backend, creds *repositories.CredentialStore, gate *bootstrap.Gate, config Config, opts ...Option) *Manager {
	m := &Manager{
		api:      api,
		creds:    creds,
		gate:     gate,
		platform: creds.Platform(),
		config:   config,
		logger:   shared.DiscardLogger(),
		now:      time.Now,
		subs:     make(map[int]chan models.Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.session = models.Session{ChangedAt: m.now()}
	return m
}

// IsLoggedIn reports the last known authentication state. It never performs I/O.
func (m *Manager) IsLoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.IsLoggedIn()
}

// CurrentUser returns a copy of the signed-in profile, or nil
func (m *Manager) CurrentUser() *models.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.User.Clone()
}

// Snapshot returns a copy of the current session
func (m *Manager) Snapshot() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshot(m.session)
}

// Subscribe returns a channel that immediately yields the current session and then every
// transition. Slow readers only ever see the latest value; the manager never blocks on them.
// Call the returned func to unsubscribe and close the channel.
func (m *Manager) Subscribe() (<-chan models.Session, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan models.Session, 1)
	ch <- snapshot(m.session)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Token returns the session token for outgoing requests. A token from a login that has not
// committed yet takes precedence so the follow-up who-am-i call is authenticated.
func (m *Manager) Token(ctx context.Context) (string, bool) {
	if t, ok := ctx.Value(pendingTokenKey{}).(string); ok && t != "" {
		return t, true
	}
	return m.creds.AuthToken(ctx)
}

// RestoreSession re-establishes the session from stored credentials at startup.
//
// Without a stored token the session stays anonymous. A cached profile is trusted unless
// VerifyOnRestore is set; otherwise the backend is asked who the token belongs to. Any failure
// clears local credentials and leaves the session anonymous.
func (m *Manager) RestoreSession(ctx context.Context) error {
	if !m.platform.IsInteractive() {
		return nil
	}

	gen := m.currentGeneration()
	token, ok := m.creds.AuthToken(ctx)
	if !ok {
		m.logger.Debug("no stored session")
		return nil
	}

	if cached, ok := m.creds.Profile(ctx); ok && !m.config.VerifyOnRestore {
		m.logger.Debug("restoring session from cache", "user", cached.Email)
		_, err := m.commit(ctx, gen, "", cached, models.ReasonRestore)
		return err
	}

	if err := m.waitGate(ctx); err != nil {
		return err
	}

	profile, err := m.api.Profile(ctx)
	if err != nil {
		m.logger.Info("stored session rejected", "error", err)
		m.discardStale(ctx, token)
		return fmt.Errorf("failed to restore session: %w", err)
	}

	_, err = m.commit(ctx, gen, "", profile, models.ReasonRestore)
	return err
}

// Login signs in with an email and password.
//
// On failure the session is unchanged and the backend error is returned.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.UserProfile, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", shared.ErrInvalidInput)
	}

	gen := m.currentGeneration()
	if err := m.waitGate(ctx); err != nil {
		return nil, err
	}

	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.metrics.loginAttempt("password", false)
		return nil, err
	}
	return m.completeLogin(ctx, gen, "password", resp)
}

// LoginWithProvider exchanges a third-party assertion for a session.
func (m *Manager) LoginWithProvider(ctx context.Context, assertion models.ProviderAssertion) (*models.UserProfile, error) {
	gen := m.currentGeneration()
	if err := m.waitGate(ctx); err != nil {
		return nil, err
	}

	method := string(assertion.Provider)
	resp, err := m.api.LoginWithAssertion(ctx, assertion)
	if err != nil {
		m.metrics.loginAttempt(method, false)
		return nil, err
	}
	return m.completeLogin(ctx, gen, method, resp)
}

// Register creates an account. The session does not change.
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	if err := m.waitGate(ctx); err != nil {
		return nil, err
	}
	return m.api.Register(ctx, req)
}

// Logout ends the session.
//
// The remote call is skipped when no token is stored. Local state is cleared whatever the
// remote outcome; a remote failure is returned wrapped in [shared.ErrLoggedOutLocally].
// Calling Logout while anonymous is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	m.bumpGeneration()

	var remoteErr error
	if _, ok := m.creds.AuthToken(ctx); ok {
		if remoteErr = m.waitGate(ctx); remoteErr == nil {
			remoteErr = m.api.Logout(ctx)
		}
		if remoteErr != nil {
			m.logger.Warn("remote logout failed, clearing local session", "error", remoteErr)
		}
	}

	m.reset(ctx, models.ReasonLogout)

	if remoteErr != nil {
		return fmt.Errorf("%w: %w", shared.ErrLoggedOutLocally, remoteErr)
	}
	return nil
}

// UpdateProfile replaces the signed-in profile with the backend's answer to patch.
func (m *Manager) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserProfile, error) {
	if !m.IsLoggedIn() {
		return nil, shared.ErrNotAuthenticated
	}

	gen := m.currentGeneration()
	if err := m.waitGate(ctx); err != nil {
		return nil, err
	}

	profile, err := m.api.UpdateProfile(ctx, patch)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if gen != m.generation || !m.session.IsLoggedIn() {
		m.mu.Unlock()
		return nil, shared.ErrNotAuthenticated
	}
	if err := m.creds.SetProfile(ctx, profile); err != nil {
		m.logger.Warn("failed to cache updated profile", "error", err)
	}
	next := m.transition(profile, models.ReasonProfile)
	m.mu.Unlock()

	m.afterTransition(ctx, next)
	return profile.Clone(), nil
}

// Invalidate forces the session to ANONYMOUS, for example after a 401 or inactivity.
func (m *Manager) Invalidate(reason models.Reason) {
	m.logger.Info("session invalidated", "reason", reason)
	m.reset(context.Background(), reason)
}

func (m *Manager) completeLogin(ctx context.Context, gen uint64, method string, resp *services.LoginResponse) (*models.UserProfile, error) {
	token := resp.Token()
	profile := resp.User

	if profile == nil || profile.Validate() != nil {
		var err error
		profile, err = m.api.Profile(context.WithValue(ctx, pendingTokenKey{}, token))
		if err != nil {
			m.metrics.loginAttempt(method, false)
			return nil, fmt.Errorf("failed to load profile after login: %w", err)
		}
	}

	committed, err := m.commit(ctx, gen, token, profile, models.ReasonLogin)
	if err != nil {
		m.metrics.loginAttempt(method, false)
		return nil, err
	}
	m.metrics.loginAttempt(method, true)
	return committed, nil
}

// commit persists token (when non-empty) and profile and moves to AUTHENTICATED, unless a
// logout or invalidation happened since gen was read.
func (m *Manager) commit(ctx context.Context, gen uint64, token string, profile *models.UserProfile, reason models.Reason) (*models.UserProfile, error) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug("discarding stale session result", "reason", reason)
		return nil, shared.ErrSuperseded
	}

	if token != "" {
		if err := m.creds.SetAuthToken(ctx, token); err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("failed to store auth token: %w", err)
		}
	}
	if err := m.creds.SetProfile(ctx, profile); err != nil {
		m.logger.Warn("failed to cache profile", "error", err)
	}

	next := m.transition(profile, reason)
	m.mu.Unlock()

	m.afterTransition(ctx, next)
	return profile.Clone(), nil
}

// reset clears credentials and moves to ANONYMOUS. Results of operations started before the
// reset will not commit.
func (m *Manager) reset(ctx context.Context, reason models.Reason) {
	m.mu.Lock()
	m.generation++
	if err := m.creds.ClearSession(ctx); err != nil {
		m.logger.Warn("failed to clear stored session", "error", err)
	}

	if !m.session.IsLoggedIn() {
		m.mu.Unlock()
		return
	}
	next := m.transition(nil, reason)
	m.mu.Unlock()

	m.afterTransition(ctx, next)
}

// discardStale clears credentials after a failed restore, unless a login replaced the token meanwhile
func (m *Manager) discardStale(ctx context.Context, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.creds.AuthToken(ctx); ok && current != token {
		return
	}
	if err := m.creds.ClearSession(ctx); err != nil {
		m.logger.Warn("failed to clear stored session", "error", err)
	}
}

// transition must be called with m.mu held
func (m *Manager) transition(user *models.UserProfile, reason models.Reason) models.Session {
	m.session = models.Session{User: user.Clone(), Reason: reason, ChangedAt: m.now()}
	next := snapshot(m.session)
	for _, ch := range m.subs {
		publish(ch, next)
	}
	return next
}

func (m *Manager) afterTransition(ctx context.Context, s models.Session) {
	m.metrics.transition(s)
	m.logger.Debug("session transition", "state", s.State(), "reason", s.Reason)

	if m.events == nil {
		return
	}
	if _, err := m.events.Record(context.WithoutCancel(ctx), s); err != nil {
		m.logger.Warn("failed to record session event", "error", err)
	}
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

func (m *Manager) bumpGeneration() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
}

func (m *Manager) waitGate(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.Wait(ctx)
}

type pendingTokenKey struct{}

// publish replaces any unread value in ch with s
func publish(ch chan models.Session, s models.Session) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func snapshot(s models.Session) models.Session {
	s.User = s.User.Clone()
	return s
}
