package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"filippo.io/csrf"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/hego/internal/formatter"
	"github.com/desertthunder/hego/internal/guards"
	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/services"
	"github.com/desertthunder/hego/internal/session"
	"github.com/desertthunder/hego/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// stateTTL bounds how long a provider redirect may take to come back
const stateTTL = 10 * time.Minute

// Sessions is the part of [session.Manager] the companion server drives.
type Sessions interface {
	guards.LoginState
	CurrentUser() *models.UserProfile
	Snapshot() models.Session
	Login(ctx context.Context, email, password string) (*models.UserProfile, error)
	LoginWithProvider(ctx context.Context, assertion models.ProviderAssertion) (*models.UserProfile, error)
	Logout(ctx context.Context) error
}

// AppOptions configures [NewApp].
type AppOptions struct {
	Sessions  Sessions
	Cooldown  *session.Cooldown
	Gate      shared.GateConfig
	Providers map[string]services.Provider
	Gatherer  prometheus.Gatherer
	Activity  Toucher
	Logger    *log.Logger
}

// App is the companion web server: a browser front end for one [Sessions].
type App struct {
	sessions  Sessions
	cooldown  *session.Cooldown
	visitors  *VisitorSessions
	gate      *guards.AccessGate
	providers map[string]services.Provider
	states    *stateSet
	gatherer  prometheus.Gatherer
	activity  Toucher
	logger    *log.Logger
}

// NewApp creates the companion app. Missing cooldown, gatherer and logger get defaults.
func NewApp(opts AppOptions) *App {
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Cooldown == nil {
		opts.Cooldown = session.NewCooldown(session.DefaultLoginCooldown)
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	visitors := NewVisitorSessions()
	return &App{
		sessions:  opts.Sessions,
		cooldown:  opts.Cooldown,
		visitors:  visitors,
		gate:      guards.NewAccessGate(opts.Gate, visitors, guards.DefaultGatePath, opts.Logger),
		providers: opts.Providers,
		states:    newStateSet(stateTTL),
		gatherer:  opts.Gatherer,
		activity:  opts.Activity,
		logger:    opts.Logger,
	}
}

// Handler builds the routed handler.
//
// The gate page and /metrics sit outside the access gate. Everything but the provider callback
// is behind cross-origin protection, because Apple posts the callback from its own origin.
func (a *App) Handler() http.Handler {
	router := NewBasicRouter()
	router.Use(Logging(a.logger), a.visitors.Middleware())

	router.Handle(http.MethodGet, a.gate.Path(), http.HandlerFunc(a.gatePage))
	router.Handle(http.MethodPost, a.gate.Path(), http.HandlerFunc(a.gateUnlock))
	router.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	router.Use(Guarded(a.gate.Guard()), Activity(a.activity))

	requireLogin := Guarded(guards.AuthGuard(a.sessions, guards.DefaultLoginPath))

	router.Handle(http.MethodGet, "/{$}", http.HandlerFunc(a.home))
	router.Handle(http.MethodGet, guards.DefaultLoginPath, http.HandlerFunc(a.loginPage))
	router.Handle(http.MethodPost, guards.DefaultLoginPath, http.HandlerFunc(a.loginSubmit))
	router.Handle(http.MethodPost, "/logout", http.HandlerFunc(a.logout))
	router.Handle(http.MethodGet, "/profile", requireLogin(http.HandlerFunc(a.profile)))
	router.Handle(http.MethodGet, "/session", http.HandlerFunc(a.sessionJSON))
	router.Handle(http.MethodGet, "/auth/{provider}", http.HandlerFunc(a.providerStart))
	router.Handle(http.MethodGet, "/callback", http.HandlerFunc(a.callback))
	router.Handle(http.MethodPost, "/callback", http.HandlerFunc(a.callback))

	protected := csrf.New().Handler(router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/callback" {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
}

func (a *App) home(w http.ResponseWriter, r *http.Request) {
	s := a.sessions.Snapshot()
	render(w, http.StatusOK, "home", pageData{User: s.User, Notice: session.DescribeReason(s.Reason)})
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	if a.sessions.IsLoggedIn() {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	render(w, http.StatusOK, "login", a.loginData(r.URL.Query().Get("email"), ""))
}

func (a *App) loginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")

	if err := a.cooldown.Allow(); err != nil {
		render(w, http.StatusTooManyRequests, "login", a.loginData(email, session.Describe(err)))
		return
	}

	if _, err := a.sessions.Login(r.Context(), email, r.FormValue("password")); err != nil {
		a.cooldown.Record(err)
		a.logger.Warn("login failed", "error", err)
		render(w, statusFor(err), "login", a.loginData(email, session.Describe(err)))
		return
	}

	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Logout(r.Context()); err != nil {
		a.logger.Warn("logout", "error", err)
	}
	http.Redirect(w, r, guards.DefaultLoginPath, http.StatusSeeOther)
}

func (a *App) profile(w http.ResponseWriter, r *http.Request) {
	user := a.sessions.CurrentUser()
	if user == nil {
		http.Redirect(w, r, guards.DefaultLoginPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *App) sessionJSON(w http.ResponseWriter, r *http.Request) {
	data, err := formatter.SessionToJSON(a.sessions.Snapshot())
	if err != nil {
		http.Error(w, "failed to encode session", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (a *App) providerStart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	p, ok := a.providers[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	state := a.states.issue(name)
	http.Redirect(w, r, p.AuthURL(state), http.StatusSeeOther)
}

func (a *App) callback(w http.ResponseWriter, r *http.Request) {
	params, err := ReadCallback(r)
	if err != nil {
		a.logger.Warn("provider callback", "error", err)
		render(w, http.StatusBadRequest, "login", a.loginData("", "Sign-in was cancelled or failed."))
		return
	}

	name, ok := a.states.take(params.State)
	if !ok {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	assertion, err := a.providers[name].Assertion(r.Context(), params)
	if err != nil {
		a.logger.Warn("provider assertion", "provider", name, "error", err)
		render(w, http.StatusBadGateway, "login", a.loginData("", "Sign-in was cancelled or failed."))
		return
	}

	if _, err := a.sessions.LoginWithProvider(r.Context(), assertion); err != nil {
		render(w, statusFor(err), "login", a.loginData("", session.Describe(err)))
		return
	}

	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (a *App) gatePage(w http.ResponseWriter, r *http.Request) {
	if a.gate.Check(r.Context()).Allow {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	render(w, http.StatusOK, "gate", pageData{Action: a.gate.Path()})
}

func (a *App) gateUnlock(w http.ResponseWriter, r *http.Request) {
	if err := a.gate.Unlock(r.Context(), r.FormValue("password")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, shared.ErrGateLocked) {
			status = http.StatusUnauthorized
		}
		render(w, status, "gate", pageData{Action: a.gate.Path(), Error: "Incorrect password."})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *App) loginData(email, errMsg string) pageData {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	slices.Sort(names)

	return pageData{
		Email:     email,
		Error:     errMsg,
		Notice:    session.DescribeReason(a.sessions.Snapshot().Reason),
		Providers: names,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrCoolingDown):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, shared.ErrNetwork), errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// stateSet tracks outstanding provider redirects. Each state is accepted once.
type stateSet struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending map[string]pendingState
}

type pendingState struct {
	provider string
	issued   time.Time
}

func newStateSet(ttl time.Duration) *stateSet {
	return &stateSet{ttl: ttl, now: time.Now, pending: map[string]pendingState{}}
}

func (s *stateSet) issue(provider string) string {
	state := shared.GenerateState()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, p := range s.pending {
		if now.Sub(p.issued) > s.ttl {
			delete(s.pending, k)
		}
	}
	s.pending[state] = pendingState{provider: provider, issued: now}
	return state
}

func (s *stateSet) take(state string) (string, bool) {
	if state == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)
	if s.now().Sub(p.issued) > s.ttl {
		return "", false
	}
	return p.provider, true
}
