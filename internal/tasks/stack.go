package tasks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hego/internal/bootstrap"
	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/repositories"
	"github.com/desertthunder/hego/internal/services"
	"github.com/desertthunder/hego/internal/session"
	"github.com/desertthunder/hego/internal/shared"
)

// StackConfig describes how to build a [Stack].
type StackConfig struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials *repositories.CredentialStore
	Session     session.Config
	Options     []session.Option

	// Transport is the base transport under the interceptor chain; nil uses [http.DefaultTransport]
	Transport http.RoundTripper
	// TraceRequests adds a debug log line per backend request
	TraceRequests bool
	Logger        *log.Logger
}

// Stack is the wired client side of the backend: HTTP client, API, session manager and bootstrap.
type Stack struct {
	Client       *http.Client
	API          *services.AuthAPI
	Manager      *session.Manager
	Bootstrapper *bootstrap.Bootstrapper
}

// NewStack wires the interceptor chain to a new [session.Manager].
func NewStack(cfg StackConfig) (*Stack, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("%w: credential store", shared.ErrMissingArgument)
	}
	if cfg.Logger == nil {
		cfg.Logger = shared.DiscardLogger()
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	platform := cfg.Credentials.Platform()

	var manager *session.Manager
	stages := []services.Stage{
		services.AuthStage(tokenSource(func(ctx context.Context) (string, bool) { return manager.Token(ctx) }), cfg.BaseURL),
		services.CSRFStage(cfg.Credentials, cfg.BaseURL, platform),
		services.UnauthorizedStage(func(req *http.Request, status int) {
			cfg.Logger.Warn("backend rejected credentials", "status", status, "path", req.URL.Path)
			manager.Invalidate(models.ReasonUnauthorized)
		}),
	}
	if cfg.TraceRequests {
		stages = append(stages, services.LoggingStage(shared.WithLogger(cfg.Logger, "component", "http")))
	}

	client, err := services.NewHTTPClient(cfg.Timeout, services.Chain(base, stages...))
	if err != nil {
		return nil, err
	}

	api := services.NewAuthAPI(services.NewAPIService(cfg.BaseURL, client))
	gate := bootstrap.NewGate()

	opts := append([]session.Option{session.WithLogger(shared.WithLogger(cfg.Logger, "component", "session"))}, cfg.Options...)
	manager = session.NewManager(api, cfg.Credentials, gate, cfg.Session, opts...)

	return &Stack{
		Client:       client,
		API:          api,
		Manager:      manager,
		Bootstrapper: bootstrap.New(api, cfg.Credentials, gate, platform, shared.WithLogger(cfg.Logger, "component", "csrf")),
	}, nil
}

// Startup returns the startup sequence for this stack
func (s *Stack) Startup() *Startup {
	return NewStartup(s.Bootstrapper, s.Manager)
}

type tokenSource func(ctx context.Context) (string, bool)

func (f tokenSource) Token(ctx context.Context) (string, bool) { return f(ctx) }
