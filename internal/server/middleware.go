package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hego/internal/guards"
	"github.com/desertthunder/hego/internal/repositories"
	"github.com/desertthunder/hego/internal/shared"
)

// VisitorCookie identifies a browser to the companion server
const VisitorCookie = "hego_visitor"

type visitorKey struct{}

// Guarded redirects with 303 See Other whenever guard does not allow the request.
func Guarded(guard guards.Guard) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d := guard(r.Context()); !d.Allow {
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Logging writes one line per request. Query strings and bodies are left out since they may carry
// passwords or provider codes.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start).Round(time.Millisecond),
			)
		})
	}
}

// Toucher is anything that counts a request as user activity
type Toucher interface {
	Touch()
}

// Activity touches t on every request. A nil t disables it.
func Activity(t Toucher) Middleware {
	return func(next http.Handler) http.Handler {
		if t == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Touch()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// VisitorSessions gives every browser its own session-scoped [repositories.Store].
//
// The browser is recognised by the [VisitorCookie]; [VisitorSessions.Middleware] issues it and
// puts the visitor id on the request context. Data lives in memory and is lost on restart.
type VisitorSessions struct {
	mu     sync.Mutex
	stores map[string]*repositories.MemoryStore
}

// NewVisitorSessions creates an empty set of visitor stores
func NewVisitorSessions() *VisitorSessions {
	return &VisitorSessions{stores: map[string]*repositories.MemoryStore{}}
}

// Middleware reads or issues the visitor cookie
func (v *VisitorSessions) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(VisitorCookie); err == nil && c.Value != "" {
				id = c.Value
			} else {
				id = shared.GenerateID()
				http.SetCookie(w, &http.Cookie{
					Name:     VisitorCookie,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithVisitor(r.Context(), id)))
		})
	}
}

// WithVisitor stores the visitor id on ctx
func WithVisitor(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, visitorKey{}, id)
}

// VisitorFrom returns the visitor id carried by ctx
func VisitorFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(visitorKey{}).(string)
	return id, ok && id != ""
}

func (v *VisitorSessions) store(ctx context.Context, create bool) (*repositories.MemoryStore, error) {
	id, ok := VisitorFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no visitor on request", shared.ErrMissingArgument)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.stores[id]
	if !ok && create {
		s = repositories.NewMemoryStore()
		v.stores[id] = s
	}
	return s, nil
}

// Get implements [repositories.Store] for the visitor on ctx
func (v *VisitorSessions) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := v.store(ctx, false)
	if err != nil || s == nil {
		return "", false, err
	}
	return s.Get(ctx, key)
}

// Set implements [repositories.Store] for the visitor on ctx
func (v *VisitorSessions) Set(ctx context.Context, key, value string) error {
	s, err := v.store(ctx, true)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, value)
}

// Delete implements [repositories.Store] for the visitor on ctx
func (v *VisitorSessions) Delete(ctx context.Context, key string) error {
	s, err := v.store(ctx, false)
	if err != nil || s == nil {
		return err
	}
	return s.Delete(ctx, key)
}

// Clear drops everything stored for the visitor on ctx
func (v *VisitorSessions) Clear(ctx context.Context) error {
	id, ok := VisitorFrom(ctx)
	if !ok {
		return fmt.Errorf("%w: no visitor on request", shared.ErrMissingArgument)
	}
	v.mu.Lock()
	delete(v.stores, id)
	v.mu.Unlock()
	return nil
}
