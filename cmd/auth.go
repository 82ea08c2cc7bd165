package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/hego/internal/formatter"
	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/server"
	"github.com/desertthunder/hego/internal/services"
	"github.com/desertthunder/hego/internal/session"
	"github.com/desertthunder/hego/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// providerTimeout bounds how long the CLI waits for the browser callback
const providerTimeout = 2 * time.Minute

// readPassword prompts on stderr and reads a line from the terminal without echo.
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// openBrowser is swapped in tests
var openBrowser = shared.OpenBrowser

// Login signs in with email and password, or with the identity provider named by the first argument.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	manager, err := r.Start(ctx)
	if err != nil {
		return err
	}

	var user *models.UserProfile
	if provider := cmd.StringArg("provider"); provider != "" {
		user, err = r.loginWithProvider(ctx, manager, provider)
	} else {
		user, err = r.loginWithPassword(ctx, manager, cmd.String("email"), cmd.String("password"))
	}
	if err != nil {
		return err
	}

	r.writePlain("✓ Signed in as %s\n", user.Email)
	return nil
}

func (r *Runner) loginWithPassword(ctx context.Context, manager *session.Manager, email, password string) (*models.UserProfile, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: --email is required", shared.ErrMissingArgument)
	}
	if password == "" {
		var err error
		if password, err = readPassword("Password: "); err != nil {
			return nil, err
		}
	}

	r.logger.Info("signing in", "email", email)
	user, err := manager.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", session.Describe(err), err)
	}
	return user, nil
}

// loginWithProvider runs the browser flow against a one-shot local callback server.
func (r *Runner) loginWithProvider(ctx context.Context, manager *session.Manager, name string) (*models.UserProfile, error) {
	provider, ok := services.NewProviders(r.config.Providers, nil)[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q is not configured", shared.ErrInvalidArgument, name)
	}

	state := shared.GenerateState()
	handler := server.NewOAuthHandler(provider, state)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(handler)

	srv, err := server.Listen(r.config.Server.Addr(), router, r.logger)
	if err != nil {
		return nil, err
	}

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()
	serveErrs := make(chan error, 1)
	go func() { serveErrs <- srv.Serve(serveCtx) }()

	authURL := provider.AuthURL(state)
	r.writePlain("→ Opening browser for %s sign-in...\n", provider.Name())
	if err := openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlain("⚠ Could not open browser automatically.\n")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for sign-in (%v timeout)...\n", providerTimeout)

	timeout := time.NewTimer(providerTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serveErrs:
		if err == nil {
			err = errors.New("callback server stopped")
		}
		return nil, err
	case <-timeout.C:
		return nil, fmt.Errorf("%w: sign-in timed out after %v", shared.ErrTimeout, providerTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := result.Error(); err != nil {
		return nil, fmt.Errorf("sign-in failed: %w", err)
	}

	user, err := manager.LoginWithProvider(ctx, result.Assertion)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", session.Describe(err), err)
	}
	return user, nil
}

// Register creates an account. The user still has to sign in afterwards.
func (r *Runner) Register(ctx context.Context, cmd *cli.Command) error {
	manager, err := r.Start(ctx)
	if err != nil {
		return err
	}

	req := models.RegisterRequest{
		Email:     cmd.String("email"),
		Username:  cmd.String("username"),
		FirstName: cmd.String("first-name"),
		LastName:  cmd.String("last-name"),
		Password:  cmd.String("password"),
	}
	if req.Password == "" {
		if req.Password, err = readPassword("Password: "); err != nil {
			return err
		}
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	resp, err := manager.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", session.Describe(err), err)
	}

	r.writePlain("✓ Account created for %s\n", req.Email)
	if resp.Detail != "" {
		r.writePlain("%s\n", resp.Detail)
	}
	r.writePlain("Run 'hego login --email %s' to sign in\n", req.Email)
	return nil
}

// Logout ends the session. A failed remote call still clears local credentials.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	manager, err := r.Start(ctx)
	if err != nil {
		return err
	}

	if !manager.IsLoggedIn() {
		r.writePlain("Not signed in\n")
		return nil
	}

	if err := manager.Logout(ctx); err != nil {
		if errors.Is(err, shared.ErrLoggedOutLocally) {
			r.logger.Warn("backend logout failed", "error", err)
			r.writePlain("⚠ %s\n", session.Describe(err))
			return nil
		}
		return err
	}

	r.writePlain("✓ Signed out\n")
	return nil
}

// WhoAmI prints the current session.
func (r *Runner) WhoAmI(ctx context.Context, cmd *cli.Command) error {
	manager, err := r.Start(ctx)
	if err != nil {
		return err
	}

	snapshot := manager.Snapshot()
	if cmd.Bool("json") {
		data, err := formatter.SessionToJSON(snapshot)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	_, err = r.output.Write(formatter.SessionToText(snapshot))
	return err
}

// ProfileShow prints the signed-in profile.
func (r *Runner) ProfileShow(ctx context.Context, cmd *cli.Command) error {
	manager, err := r.Start(ctx)
	if err != nil {
		return err
	}

	user := manager.CurrentUser()
	if user == nil {
		return shared.ErrNotAuthenticated
	}

	var data []byte
	if cmd.Bool("markdown") {
		data, err = formatter.ProfileToMarkdown(user)
	} else {
		r.writePlainHeader("Profile")
		data, err = formatter.ProfileToText(user)
	}
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// ProfileUpdate sends the flags that were given as a profile patch.
func (r *Runner) ProfileUpdate(ctx context.Context, cmd *cli.Command) error {
	patch, err := profilePatch(cmd)
	if err != nil {
		return err
	}
	if patch.Empty() {
		return fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}

	manager, err := r.Start(ctx)
	if err != nil {
		return err
	}

	user, err := manager.UpdateProfile(ctx, patch)
	if err != nil {
		return fmt.Errorf("%s: %w", session.Describe(err), err)
	}

	r.writePlain("✓ Profile updated\n")
	data, err := formatter.ProfileToText(user)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

func profilePatch(cmd *cli.Command) (models.ProfilePatch, error) {
	var patch models.ProfilePatch
	set := func(name string) *string {
		if !cmd.IsSet(name) {
			return nil
		}
		v := cmd.String(name)
		return &v
	}

	patch.FirstName = set("first-name")
	patch.LastName = set("last-name")
	patch.Username = set("username")
	patch.Email = set("email")

	if path := cmd.String("picture"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return patch, fmt.Errorf("%w: failed to read picture: %v", shared.ErrInvalidInput, err)
		}
		patch.Picture = data
		patch.PictureName = filepath.Base(path)
	}
	return patch, nil
}
