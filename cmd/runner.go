package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hego/internal/bootstrap"
	"github.com/desertthunder/hego/internal/repositories"
	"github.com/desertthunder/hego/internal/session"
	"github.com/desertthunder/hego/internal/shared"
	"github.com/desertthunder/hego/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The session stack is built lazily so that setup commands work without a reachable backend.
type Runner struct {
	config    *shared.Config
	preloaded bool
	verbose   bool
	logger    *log.Logger
	output    io.Writer
	transport http.RoundTripper
	registry  *prometheus.Registry
	metrics   *session.Metrics

	db      *sql.DB
	stack   *tasks.Stack
	startup *tasks.StartupResult
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	// Config skips loading --config when set
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
	// Transport sits under the interceptor chain; nil uses [http.DefaultTransport]
	Transport http.RoundTripper
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Runner{
		config:    opts.Config,
		preloaded: opts.Config != nil,
		logger:    opts.Logger,
		output:    opts.Output,
		transport: opts.Transport,
		registry:  registry,
		metrics:   session.NewMetrics(registry),
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, loginCommand, registerCommand, logoutCommand, whoamiCommand,
		profileCommand, apiCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads configuration and applies global flags.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if !r.preloaded {
		if err := shared.LoadEnv(); err != nil {
			r.logger.Warn("failed to load .env", "error", err)
		}

		path := cmd.String("config")
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
		shared.ApplyEnv(r.config, os.Getenv)
	}

	if cmd.Bool("headless") {
		r.config.App.Platform = shared.Headless.String()
	}
	if cmd.Bool("verbose") {
		r.verbose = true
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// After releases the credential database.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.db != nil {
		err := r.db.Close()
		r.db, r.stack, r.startup = nil, nil, nil
		return err
	}
	return nil
}

// SetLogger replaces the runner's logger. Must be called before the stack is built.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Stack builds the session stack from the loaded configuration.
func (r *Runner) Stack() (*tasks.Stack, error) {
	if r.stack != nil {
		return r.stack, nil
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	platform := r.config.Platform()
	store, err := r.openStore()
	if err != nil {
		return nil, err
	}

	creds := repositories.NewCredentialStore(store, platform, shared.WithLogger(r.logger, "component", "credentials"))
	opts := []session.Option{session.WithMetrics(r.metrics)}
	if r.db != nil {
		opts = append(opts, session.WithEventLog(repositories.NewSessionEventRepository(r.db)))
	}

	stack, err := tasks.NewStack(tasks.StackConfig{
		BaseURL:       r.config.API.BaseURL,
		Timeout:       r.config.API.Timeout(),
		Credentials:   creds,
		Session:       session.Config{VerifyOnRestore: r.config.Auth.VerifyOnRestore},
		Options:       opts,
		Transport:     r.transport,
		TraceRequests: r.verbose,
		Logger:        r.logger,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("session stack ready", "platform", platform, "scope", r.config.Storage.Scope, "api", r.config.API.BaseURL)
	r.stack = stack
	return stack, nil
}

// Start builds the stack and runs the startup sequence once: CSRF bootstrap and session restore.
func (r *Runner) Start(ctx context.Context) (*session.Manager, error) {
	stack, err := r.Stack()
	if err != nil {
		return nil, err
	}
	if r.startup != nil {
		return stack.Manager, nil
	}

	result := stack.Startup().Run(ctx, nil)
	r.startup = &result
	r.logStartup(result)
	return stack.Manager, nil
}

func (r *Runner) logStartup(result tasks.StartupResult) {
	switch result.CSRF.Status {
	case bootstrap.Degraded:
		r.logger.Warn("could not fetch CSRF token, continuing without it", "error", result.CSRF.Err)
	default:
		r.logger.Debug("csrf bootstrap finished", "status", result.CSRF.Status)
	}

	if result.RestoreErr != nil {
		r.logger.Warn("could not restore session", "error", result.RestoreErr)
	}
}

func (r *Runner) openStore() (repositories.Store, error) {
	if r.config.Storage.Scope == shared.ScopeSession {
		return repositories.NewMemoryStore(), nil
	}

	db, err := shared.OpenStorage(r.config.Storage)
	if err != nil {
		return nil, err
	}
	r.db = db
	return repositories.NewSQLiteStore(db), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
