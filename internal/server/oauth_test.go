package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider hands back whatever id token the callback carried, or its own
type fakeProvider struct {
	name    string
	idToken string
	err     error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthURL(state string) string {
	return fmt.Sprintf("https://idp.example.com/%s/authorize?state=%s", p.name, url.QueryEscape(state))
}

func (p *fakeProvider) Assertion(_ context.Context, params models.CallbackParams) (models.ProviderAssertion, error) {
	if p.err != nil {
		return models.ProviderAssertion{}, p.err
	}
	token := params.IDToken
	if token == "" {
		token = p.idToken
	}
	return models.ProviderAssertion{Provider: models.Provider(p.name), IDToken: token, Code: params.Code}, nil
}

func receive(t *testing.T, h *OAuthHandler) OAuthResult {
	t.Helper()
	select {
	case r := <-h.Result():
		return r
	case <-time.After(time.Second):
		t.Fatal("no OAuth result")
		return OAuthResult{}
	}
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Query Callback", func(t *testing.T) {
		h := NewOAuthHandler(&fakeProvider{name: "google", idToken: "google-id"}, "expected")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=expected&code=abc", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Signed in")

		result := receive(t, h)
		require.NoError(t, result.Error())
		assert.Equal(t, models.ProviderGoogle, result.Assertion.Provider)
		assert.Equal(t, "google-id", result.Assertion.IDToken)
		assert.Equal(t, "abc", result.Assertion.Code)
	})

	t.Run("Form Post Callback", func(t *testing.T) {
		h := NewOAuthHandler(&fakeProvider{name: "apple"}, "expected")

		form := url.Values{"state": {"expected"}, "code": {"c1"}, "id_token": {"apple-id"}, "user": {`{"name":{}}`}}
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		result := receive(t, h)
		require.NoError(t, result.Error())
		assert.Equal(t, "apple-id", result.Assertion.IDToken)
	})

	t.Run("State Mismatch", func(t *testing.T) {
		h := NewOAuthHandler(&fakeProvider{name: "google"}, "expected")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=abc", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		result := receive(t, h)
		assert.ErrorIs(t, result.Error(), shared.ErrProviderFailed)
	})

	t.Run("Provider Error", func(t *testing.T) {
		h := NewOAuthHandler(&fakeProvider{name: "google"}, "expected")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=expected&error=access_denied", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		result := receive(t, h)
		err := result.Error()
		assert.ErrorIs(t, err, shared.ErrProviderFailed)
		assert.Contains(t, err.Error(), "access_denied")
	})

	t.Run("Assertion Failure", func(t *testing.T) {
		h := NewOAuthHandler(&fakeProvider{name: "google", err: shared.ErrProviderFailed}, "expected")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=expected&code=abc", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		result := receive(t, h)
		assert.ErrorIs(t, result.Error(), shared.ErrProviderFailed)
	})

	t.Run("Only Once", func(t *testing.T) {
		h := NewOAuthHandler(&fakeProvider{name: "google", idToken: "id"}, "expected")

		first := httptest.NewRecorder()
		h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/callback?state=expected&code=abc", nil))
		second := httptest.NewRecorder()
		h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/callback?state=expected&code=abc", nil))

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusBadRequest, second.Code)
		result := receive(t, h)
		assert.NoError(t, result.Error())

		_, open := <-h.Result()
		assert.False(t, open)
	})

	t.Run("Routes", func(t *testing.T) {
		assert.Equal(t, []string{"/callback"}, NewOAuthHandler(&fakeProvider{}, "s").Routes())
	})
}
