package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/shared"
	tu "github.com/desertthunder/hego/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthAPI(t *testing.T, backend *tu.FakeBackend, tokens TokenSource) *AuthAPI {
	t.Helper()

	stages := []Stage{}
	if tokens != nil {
		stages = append(stages, AuthStage(tokens, backend.URL()))
	}
	client, err := NewHTTPClient(0, Chain(http.DefaultTransport, stages...))
	require.NoError(t, err)
	return NewAuthAPI(NewAPIService(backend.URL(), client))
}

type staticToken string

func (s staticToken) Token(context.Context) (string, bool) { return string(s), s != "" }

func TestAuthAPI(t *testing.T) {
	ctx := context.Background()
	ada := models.UserProfile{ID: 1, FirstName: "Ada", LastName: "Lovelace"}

	t.Run("CSRF", func(t *testing.T) {
		t.Run("Token From Body", func(t *testing.T) {
			backend := tu.NewFakeBackend(t)
			token, err := newTestAuthAPI(t, backend, nil).CSRF(ctx)
			require.NoError(t, err)
			assert.Equal(t, backend.CSRFToken, token)
		})

		t.Run("Token From Cookie", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.SetCookie(w, &http.Cookie{Name: CSRFCookieName, Value: "cookie-token"})
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			token, err := NewAuthAPI(NewAPIService(server.URL, nil)).CSRF(ctx)
			require.NoError(t, err)
			assert.Equal(t, "cookie-token", token)
		})

		t.Run("Alternate Body Keys", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"csrf_token":"snake"}`))
			}))
			defer server.Close()

			token, err := NewAuthAPI(NewAPIService(server.URL, nil)).CSRF(ctx)
			require.NoError(t, err)
			assert.Equal(t, "snake", token)
		})

		t.Run("No Token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			}))
			defer server.Close()

			_, err := NewAuthAPI(NewAPIService(server.URL, nil)).CSRF(ctx)
			assert.ErrorIs(t, err, shared.ErrCSRFUnavailable)
		})

		t.Run("Server Error", func(t *testing.T) {
			backend := tu.NewFakeBackend(t)
			backend.FailWith(PathCSRF, http.StatusInternalServerError, `{"detail":"boom"}`)

			_, err := newTestAuthAPI(t, backend, nil).CSRF(ctx)
			assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("Success With Key", func(t *testing.T) {
			backend := tu.NewFakeBackend(t)
			backend.AddUser("ada@example.com", "secret", ada)

			resp, err := newTestAuthAPI(t, backend, nil).Login(ctx, "ada@example.com", "secret")
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Token())
			assert.Empty(t, resp.RawToken)
			require.NotNil(t, resp.User)
			assert.Equal(t, "Ada", resp.User.FirstName)

			req, ok := backend.Last(PathLogin)
			require.True(t, ok)
			assert.Equal(t, "ada@example.com", req.Body["email"])
			assert.Equal(t, "secret", req.Body["password"])
		})

		t.Run("Token Field Preferred", func(t *testing.T) {
			resp := &LoginResponse{RawToken: "t", Key: "k"}
			assert.Equal(t, "t", resp.Token())
			resp.RawToken = ""
			assert.Equal(t, "k", resp.Token())
		})

		t.Run("Invalid Credentials", func(t *testing.T) {
			backend := tu.NewFakeBackend(t)
			backend.AddUser("ada@example.com", "secret", ada)

			_, err := newTestAuthAPI(t, backend, nil).Login(ctx, "ada@example.com", "wrong")
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
		})

		t.Run("Missing Token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"user":{"id":1,"email":"a@b.c"}}`))
			}))
			defer server.Close()

			_, err := NewAuthAPI(NewAPIService(server.URL, nil)).Login(ctx, "a@b.c", "pw")
			assert.ErrorIs(t, err, shared.ErrAPIRequest)
		})
	})

	t.Run("Provider Login", func(t *testing.T) {
		backend := tu.NewFakeBackend(t)
		backend.AddUser("ada@example.com", "secret", ada)
		backend.AddProviderToken("google-id-token", "ada@example.com")
		backend.AddProviderToken("apple-id-token", "ada@example.com")
		api := newTestAuthAPI(t, backend, nil)

		t.Run("Google Sends Access Token", func(t *testing.T) {
			resp, err := api.LoginWithAssertion(ctx, models.ProviderAssertion{Provider: models.ProviderGoogle, IDToken: "google-id-token"})
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Token())

			req, _ := backend.Last(PathGoogle)
			assert.Equal(t, "google-id-token", req.Body["access_token"])
		})

		t.Run("Apple Sends Id Token And Code", func(t *testing.T) {
			_, err := api.LoginWithAssertion(ctx, models.ProviderAssertion{Provider: models.ProviderApple, IDToken: "apple-id-token", Code: "c0de"})
			require.NoError(t, err)

			req, _ := backend.Last(PathApple)
			assert.Equal(t, "apple-id-token", req.Body["id_token"])
			assert.Equal(t, "c0de", req.Body["code"])
		})

		t.Run("Invalid Assertion", func(t *testing.T) {
			before := backend.Count(PathGoogle)
			_, err := api.LoginWithAssertion(ctx, models.ProviderAssertion{Provider: models.ProviderGoogle})
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
			assert.Equal(t, before, backend.Count(PathGoogle), "invalid assertions must not reach the backend")
		})

		t.Run("Rejected Token", func(t *testing.T) {
			_, err := api.LoginGoogle(ctx, "forged")
			assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
		})
	})

	t.Run("Register", func(t *testing.T) {
		backend := tu.NewFakeBackend(t)
		api := newTestAuthAPI(t, backend, nil)
		req := models.RegisterRequest{Email: "new@example.com", Password: "pw", Username: "newbie", FirstName: "New"}

		resp, err := api.Register(ctx, req)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Key)
		assert.Equal(t, "Verification e-mail sent.", resp.Detail)

		recorded, _ := backend.Last(PathRegister)
		assert.Equal(t, "newbie", recorded.Body["username"])
		assert.Equal(t, "", recorded.Body["last_name"])

		_, err = api.Register(ctx, req)
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = api.Register(ctx, models.RegisterRequest{Email: "x@example.com"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("Profile", func(t *testing.T) {
		backend := tu.NewFakeBackend(t)
		backend.AddUser("ada@example.com", "secret", ada)
		token := backend.IssueToken("ada@example.com")

		t.Run("Authenticated", func(t *testing.T) {
			p, err := newTestAuthAPI(t, backend, staticToken(token)).Profile(ctx)
			require.NoError(t, err)
			assert.Equal(t, "ada@example.com", p.Email)

			req, _ := backend.Last(PathProfile)
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "Token "+token, req.Authorization)
		})

		t.Run("Anonymous", func(t *testing.T) {
			_, err := newTestAuthAPI(t, backend, nil).Profile(ctx)
			assert.ErrorIs(t, err, shared.ErrUnauthorized)
		})
	})

	t.Run("Logout", func(t *testing.T) {
		backend := tu.NewFakeBackend(t)
		backend.AddUser("ada@example.com", "secret", ada)
		token := backend.IssueToken("ada@example.com")
		api := newTestAuthAPI(t, backend, staticToken(token))

		require.NoError(t, api.Logout(ctx))
		_, err := api.Profile(ctx)
		assert.ErrorIs(t, err, shared.ErrUnauthorized, "token should be revoked")
	})

	t.Run("Update Profile", func(t *testing.T) {
		backend := tu.NewFakeBackend(t)
		backend.AddUser("ada@example.com", "secret", ada)
		api := newTestAuthAPI(t, backend, staticToken(backend.IssueToken("ada@example.com")))

		first := "Augusta"
		p, err := api.UpdateProfile(ctx, models.ProfilePatch{
			FirstName:   &first,
			Picture:     []byte("\x89PNG"),
			PictureName: "/tmp/avatar.png",
		})
		require.NoError(t, err)
		assert.Equal(t, "Augusta", p.FirstName)
		assert.Equal(t, "Lovelace", p.LastName)
		assert.Equal(t, "/media/profile_pictures/avatar.png", p.ProfilePictureURL)

		_, err = api.UpdateProfile(ctx, models.ProfilePatch{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("Encode Profile Patch", func(t *testing.T) {
		last := "L"
		buf, contentType, err := encodeProfilePatch(models.ProfilePatch{LastName: &last})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPut, "/", io.NopCloser(buf))
		req.Header.Set("Content-Type", contentType)
		require.NoError(t, req.ParseMultipartForm(1<<20))
		assert.Equal(t, "L", req.FormValue("last_name"))
		_, hasFirst := req.MultipartForm.Value["first_name"]
		assert.False(t, hasFirst, "nil fields must not be sent")
	})
}
