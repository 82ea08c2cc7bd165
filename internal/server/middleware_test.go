package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hego/internal/guards"
	"github.com/desertthunder/hego/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ n atomic.Int32 }

func (c *counter) Touch() { c.n.Add(1) }

func TestGuarded(t *testing.T) {
	t.Run("Redirects With See Other", func(t *testing.T) {
		h := Guarded(func(context.Context) guards.Decision { return guards.RedirectTo("/login") })(text("secret"))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.NotContains(t, rec.Body.String(), "secret")
	})

	t.Run("Allows", func(t *testing.T) {
		h := Guarded(func(context.Context) guards.Decision { return guards.Allowed() })(text("secret"))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile", nil))
		assert.Equal(t, "secret", rec.Body.String())
	})
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)

	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login?password=hunter2", nil))

	out := buf.String()
	assert.Contains(t, out, "path=/login")
	assert.Contains(t, out, "status=418")
	assert.NotContains(t, out, "hunter2")
}

func TestActivity(t *testing.T) {
	c := &counter{}
	h := Activity(c)(text("ok"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, int32(2), c.n.Load())

	rec := httptest.NewRecorder()
	Activity(nil)(text("ok")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestVisitorSessions(t *testing.T) {
	t.Run("Issues And Reuses Cookie", func(t *testing.T) {
		v := NewVisitorSessions()
		var seen string
		h := v.Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen, _ = VisitorFrom(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, VisitorCookie, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, cookies[0].Value, seen)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookies[0])
		again := httptest.NewRecorder()
		h.ServeHTTP(again, req)
		assert.Empty(t, again.Result().Cookies())
		assert.Equal(t, cookies[0].Value, seen)
	})

	t.Run("Stores Are Per Visitor", func(t *testing.T) {
		v := NewVisitorSessions()
		alice := WithVisitor(context.Background(), "alice")
		bob := WithVisitor(context.Background(), "bob")

		require.NoError(t, v.Set(alice, guards.GateFlagKey, "true"))

		val, ok, err := v.Get(alice, guards.GateFlagKey)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "true", val)

		_, ok, err = v.Get(bob, guards.GateFlagKey)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, v.Delete(bob, guards.GateFlagKey))
		require.NoError(t, v.Clear(alice))
		_, ok, _ = v.Get(alice, guards.GateFlagKey)
		assert.False(t, ok)
	})

	t.Run("Requires A Visitor", func(t *testing.T) {
		v := NewVisitorSessions()
		ctx := context.Background()

		_, _, err := v.Get(ctx, "k")
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
		assert.ErrorIs(t, v.Set(ctx, "k", "v"), shared.ErrMissingArgument)
		assert.ErrorIs(t, v.Clear(ctx), shared.ErrMissingArgument)
	})
}
