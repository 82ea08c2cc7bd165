package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/hego/internal/models"
	"github.com/google/uuid"
)

// RecordedRequest is what [FakeBackend] remembers about each call
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	CSRFToken     string
	Body          map[string]any
}

type fakeUser struct {
	password string
	profile  models.UserProfile
}

type override struct {
	status int
	body   string
}

// FakeBackend is an in-process stand-in for the Hego auth REST API.
type FakeBackend struct {
	Server *httptest.Server

	// CSRFToken is returned by /auth/csrf/ in the body and the csrftoken cookie
	CSRFToken string
	// OmitUserOnLogin drops the user object from login responses, forcing a who-am-i call
	OmitUserOnLogin bool
	// UseTokenField returns the token under "token" rather than "key"
	UseTokenField bool
	// LoginHold, when set, blocks login handlers until it is closed or receives
	LoginHold chan struct{}

	mu        sync.Mutex
	users     map[string]*fakeUser
	tokens    map[string]string
	providers map[string]string
	overrides map[string]override
	requests  []RecordedRequest
}

// NewFakeBackend starts a backend that is closed when the test finishes
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	b := &FakeBackend{
		CSRFToken: "csrf-" + uuid.NewString(),
		users:     map[string]*fakeUser{},
		tokens:    map[string]string{},
		providers: map[string]string{},
		overrides: map[string]override{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/csrf/", b.handleCSRF)
	mux.HandleFunc("POST /auth/login/", b.handleLogin)
	mux.HandleFunc("POST /auth/google/", b.handleProvider("access_token"))
	mux.HandleFunc("POST /auth/apple/", b.handleProvider("id_token"))
	mux.HandleFunc("POST /auth/register/", b.handleRegister)
	mux.HandleFunc("POST /auth/logout/", b.handleLogout)
	mux.HandleFunc("POST /auth/getProfile/", b.handleProfile)
	mux.HandleFunc("PUT /auth/update/", b.handleUpdate)

	b.Server = httptest.NewServer(b.record(mux))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the backend
func (b *FakeBackend) URL() string { return b.Server.URL }

// AddUser registers an account that can log in with email and password
func (b *FakeBackend) AddUser(email, password string, profile models.UserProfile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	profile.Email = email
	b.users[email] = &fakeUser{password: password, profile: profile}
}

// AddProviderToken maps a provider id token to an existing account
func (b *FakeBackend) AddProviderToken(idToken, email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.providers[idToken] = email
}

// IssueToken creates a valid session token for email
func (b *FakeBackend) IssueToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issue(email)
}

// RevokeAll invalidates every issued token, as a server-side expiry would
func (b *FakeBackend) RevokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.tokens)
}

// FailWith makes path answer with status and body until [FakeBackend.Reset] is called
func (b *FakeBackend) FailWith(path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[path] = override{status: status, body: body}
}

// Reset clears failure overrides
func (b *FakeBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.overrides)
}

// Count returns how many requests hit path
func (b *FakeBackend) Count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent request to path
func (b *FakeBackend) Last(path string) (RecordedRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Path == path {
			return b.requests[i], true
		}
	}
	return RecordedRequest{}, false
}

func (b *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			CSRFToken:     r.Header.Get("X-CSRFToken"),
		}

		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				rec.Body = body
			}
		}

		b.mu.Lock()
		b.requests = append(b.requests, rec)
		o, failing := b.overrides[r.URL.Path]
		b.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(o.status)
			w.Write([]byte(o.body))
			return
		}

		r = r.WithContext(withBody(r.Context(), rec.Body))
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) handleCSRF(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: b.CSRFToken, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": b.CSRFToken})
}

func (b *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !b.hold(r) {
		return
	}

	body := bodyFrom(r.Context())
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)

	b.mu.Lock()
	u, ok := b.users[email]
	if !ok || u.password != password {
		b.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"non_field_errors": {"Unable to log in with provided credentials."},
		})
		return
	}
	token := b.issue(email)
	profile := u.profile
	b.mu.Unlock()

	b.writeLogin(w, token, profile)
}

func (b *FakeBackend) handleProvider(field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !b.hold(r) {
			return
		}

		idToken, _ := bodyFrom(r.Context())[field].(string)

		b.mu.Lock()
		email, ok := b.providers[idToken]
		u := b.users[email]
		if !ok || u == nil {
			b.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string][]string{"non_field_errors": {"Invalid provider token."}})
			return
		}
		token := b.issue(email)
		profile := u.profile
		b.mu.Unlock()

		b.writeLogin(w, token, profile)
	}
}

func (b *FakeBackend) writeLogin(w http.ResponseWriter, token string, profile models.UserProfile) {
	resp := map[string]any{}
	if b.UseTokenField {
		resp["token"] = token
	} else {
		resp["key"] = token
	}
	if !b.OmitUserOnLogin {
		resp["user"] = profile
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *FakeBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r.Context())
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)
	username, _ := body["username"].(string)
	first, _ := body["first_name"].(string)
	last, _ := body["last_name"].(string)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.users[email]; exists {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"email": {"A user is already registered with this e-mail address."},
		})
		return
	}

	b.users[email] = &fakeUser{
		password: password,
		profile: models.UserProfile{
			ID:        len(b.users) + 1,
			Email:     email,
			Username:  username,
			FirstName: first,
			LastName:  last,
		},
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": uuid.NewString(), "detail": "Verification e-mail sent."})
}

func (b *FakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	delete(b.tokens, bearer(r))
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Successfully logged out."})
}

func (b *FakeBackend) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := b.authenticate(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
		return
	}

	b.mu.Lock()
	profile := u.profile
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, profile)
}

func (b *FakeBackend) handleUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := b.authenticate(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"non_field_errors": {"Malformed form data."}})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p := &u.profile
	for field, dst := range map[string]*string{
		"first_name": &p.FirstName,
		"last_name":  &p.LastName,
		"username":   &p.Username,
		"email":      &p.Email,
	} {
		if vals, ok := r.MultipartForm.Value[field]; ok && len(vals) > 0 {
			*dst = vals[0]
		}
	}
	if files := r.MultipartForm.File["profile_picture"]; len(files) > 0 {
		p.ProfilePictureURL = "/media/profile_pictures/" + files[0].Filename
	}
	writeJSON(w, http.StatusOK, *p)
}

func (b *FakeBackend) authenticate(r *http.Request) (*fakeUser, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.tokens[bearer(r)]
	if !ok {
		return nil, false
	}
	u, ok := b.users[email]
	return u, ok
}

// hold blocks on LoginHold. It reports false when the client gave up first.
func (b *FakeBackend) hold(r *http.Request) bool {
	if b.LoginHold == nil {
		return true
	}
	select {
	case <-b.LoginHold:
		return true
	case <-r.Context().Done():
		return false
	}
}

// issue must be called with b.mu held
func (b *FakeBackend) issue(email string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	b.tokens[token] = email
	return token
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Token ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
