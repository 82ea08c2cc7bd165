// Package guards decides whether navigation to a protected route may proceed
package guards

import (
	"context"
	"crypto/subtle"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hego/internal/repositories"
	"github.com/desertthunder/hego/internal/shared"
)

const (
	DefaultLoginPath = "/login"
	DefaultGatePath  = "/lavori-in-corso"

	// GateFlagKey is the session-scoped key set once the access gate is unlocked
	GateFlagKey = "is-authenticated"
)

// Decision is the outcome of a guard: allow, or redirect elsewhere
type Decision struct {
	Allow    bool
	Redirect string
}

// Allowed lets navigation proceed
func Allowed() Decision { return Decision{Allow: true} }

// RedirectTo blocks navigation and sends the user to path
func RedirectTo(path string) Decision { return Decision{Redirect: path} }

// Guard evaluates a navigation attempt
type Guard func(ctx context.Context) Decision

// All runs guards in order and returns the first non-allow decision
func All(guards ...Guard) Guard {
	return func(ctx context.Context) Decision {
		for _, g := range guards {
			if d := g(ctx); !d.Allow {
				return d
			}
		}
		return Allowed()
	}
}

// LoginState exposes the last known authentication state
type LoginState interface {
	IsLoggedIn() bool
}

// AuthGuard allows signed-in users and redirects everyone else to loginPath.
//
// It reads the last known state and never performs I/O, so a session that is still being
// restored counts as signed out.
func AuthGuard(state LoginState, loginPath string) Guard {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return func(context.Context) Decision {
		if state.IsLoggedIn() {
			return Allowed()
		}
		return RedirectTo(loginPath)
	}
}

// AccessGate is the pre-launch password gate. It is unrelated to user authentication.
type AccessGate struct {
	enabled  bool
	password string
	store    repositories.Store
	redirect string
	logger   *log.Logger
}

// NewAccessGate creates a gate backed by a session-scoped store
func NewAccessGate(cfg shared.GateConfig, store repositories.Store, redirect string, logger *log.Logger) *AccessGate {
	if redirect == "" {
		redirect = DefaultGatePath
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &AccessGate{
		enabled:  cfg.Enabled,
		password: cfg.Password,
		store:    store,
		redirect: redirect,
		logger:   logger,
	}
}

// Enabled reports whether the gate protects anything
func (g *AccessGate) Enabled() bool { return g.enabled }

// Path returns where locked-out visitors are sent
func (g *AccessGate) Path() string { return g.redirect }

// Check allows the visitor if the gate is disabled or has been unlocked in this session
func (g *AccessGate) Check(ctx context.Context) Decision {
	if !g.enabled {
		return Allowed()
	}

	v, ok, err := g.store.Get(ctx, GateFlagKey)
	if err != nil {
		g.logger.Warn("access gate flag unreadable", "error", err)
		return RedirectTo(g.redirect)
	}
	if ok && v == "true" {
		return Allowed()
	}
	return RedirectTo(g.redirect)
}

// Guard adapts [AccessGate.Check] to a [Guard]
func (g *AccessGate) Guard() Guard { return g.Check }

// Unlock records the visitor as admitted when password matches.
func (g *AccessGate) Unlock(ctx context.Context, password string) error {
	if !g.enabled {
		return nil
	}
	if g.password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) != 1 {
		return shared.ErrGateLocked
	}
	return g.store.Set(ctx, GateFlagKey, "true")
}
