package services

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/shared"
)

// Backend auth endpoints, relative to the API base URL
const (
	PathCSRF          = "/auth/csrf/"
	PathLogin         = "/auth/login/"
	PathGoogle        = "/auth/google/"
	PathApple         = "/auth/apple/"
	PathRegister      = "/auth/register/"
	PathLogout        = "/auth/logout/"
	PathProfile       = "/auth/getProfile/"
	PathUpdateProfile = "/auth/update/"
)

// CSRFCookieName is the cookie the backend sets alongside the CSRF response
const CSRFCookieName = "csrftoken"

// LoginResponse is the body returned by the login and provider exchange endpoints.
type LoginResponse struct {
	RawToken string              `json:"token"`
	Key      string              `json:"key"`
	User     *models.UserProfile `json:"user"`
}

// Token returns the session token, preferring "token" over "key".
func (r *LoginResponse) Token() string {
	if r.RawToken != "" {
		return r.RawToken
	}
	return r.Key
}

// AuthAPI wraps the backend auth REST contract.
type AuthAPI struct {
	api *APIService
}

// NewAuthAPI creates an [AuthAPI] over api
func NewAuthAPI(api *APIService) *AuthAPI {
	return &AuthAPI{api: api}
}

// Service returns the underlying [APIService]
func (a *AuthAPI) Service() *APIService { return a.api }

// CSRF fetches an anti-forgery token.
//
// The token is read from the JSON body (csrfToken, csrf_token or token) and falls back to the
// csrftoken cookie set on the response.
func (a *AuthAPI) CSRF(ctx context.Context) (string, error) {
	resp, err := a.api.Get(ctx, PathCSRF)
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}

	if body, ok := resp.JSONData.(map[string]any); ok {
		for _, k := range []string{"csrfToken", "csrf_token", "token"} {
			if v, ok := body[k].(string); ok && v != "" {
				return v, nil
			}
		}
	}

	for _, c := range resp.Cookies() {
		if c.Name == CSRFCookieName && c.Value != "" {
			return c.Value, nil
		}
	}

	return "", fmt.Errorf("%w: no token in response", shared.ErrCSRFUnavailable)
}

// Login exchanges an email and password for a session token.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	payload := map[string]string{"email": email, "password": password}
	return a.login(ctx, PathLogin, payload)
}

// LoginGoogle exchanges a Google id token for a session token.
func (a *AuthAPI) LoginGoogle(ctx context.Context, idToken string) (*LoginResponse, error) {
	return a.login(ctx, PathGoogle, map[string]string{"access_token": idToken})
}

// LoginApple exchanges an Apple id token and authorization code for a session token.
func (a *AuthAPI) LoginApple(ctx context.Context, idToken, code string) (*LoginResponse, error) {
	return a.login(ctx, PathApple, map[string]string{"id_token": idToken, "code": code})
}

// LoginWithAssertion dispatches a [models.ProviderAssertion] to its provider endpoint.
func (a *AuthAPI) LoginWithAssertion(ctx context.Context, assertion models.ProviderAssertion) (*LoginResponse, error) {
	if err := assertion.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	switch assertion.Provider {
	case models.ProviderGoogle:
		return a.LoginGoogle(ctx, assertion.IDToken)
	default:
		return a.LoginApple(ctx, assertion.IDToken, assertion.Code)
	}
}

func (a *AuthAPI) login(ctx context.Context, path string, payload any) (*LoginResponse, error) {
	var resp LoginResponse
	if err := a.api.Send(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Token() == "" {
		return nil, fmt.Errorf("%w: login response carried no token", shared.ErrAPIRequest)
	}
	return &resp, nil
}

// Register creates an account. It never signs the user in.
func (a *AuthAPI) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	var resp models.RegisterResponse
	if err := a.api.Send(ctx, http.MethodPost, PathRegister, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the server-side session.
func (a *AuthAPI) Logout(ctx context.Context) error {
	return a.api.Send(ctx, http.MethodPost, PathLogout, nil, nil)
}

// Profile is the who-am-i call.
func (a *AuthAPI) Profile(ctx context.Context) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := a.api.Send(ctx, http.MethodPost, PathProfile, nil, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return &p, nil
}

// UpdateProfile sends patch as multipart form data and returns the replacement profile.
func (a *AuthAPI) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserProfile, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", shared.ErrInvalidInput)
	}

	body, contentType, err := encodeProfilePatch(patch)
	if err != nil {
		return nil, err
	}

	resp, err := a.api.Do(ctx, http.MethodPut, PathUpdateProfile, contentType, body)
	if err != nil {
		return nil, err
	}

	var p models.UserProfile
	if err := decodeResponse(resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func encodeProfilePatch(patch models.ProfilePatch) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct {
		name  string
		value *string
	}{
		{"first_name", patch.FirstName},
		{"last_name", patch.LastName},
		{"username", patch.Username},
		{"email", patch.Email},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if err := w.WriteField(f.name, *f.value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f.name, err)
		}
	}

	if len(patch.Picture) > 0 {
		name := filepath.Base(patch.PictureName)
		if name == "." || name == "/" {
			name = "profile_picture"
		}
		part, err := w.CreateFormFile("profile_picture", name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create picture part: %w", err)
		}
		if _, err := part.Write(patch.Picture); err != nil {
			return nil, "", fmt.Errorf("failed to write picture: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
