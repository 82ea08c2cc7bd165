package main

import (
	"context"

	"github.com/desertthunder/hego/internal/server"
	"github.com/desertthunder/hego/internal/services"
	"github.com/desertthunder/hego/internal/session"
	"github.com/urfave/cli/v3"
)

// Serve runs the companion web server until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	manager, err := r.Start(ctx)
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	idle := session.NewInactivityTimer(manager, r.config.Auth.InactivityTimeout())
	updates, unsubscribe := manager.Subscribe()
	defer unsubscribe()
	go idle.Watch(ctx, updates)

	app := server.NewApp(server.AppOptions{
		Sessions:  manager,
		Cooldown:  session.NewCooldown(r.config.Auth.LoginCooldown()),
		Gate:      r.config.Gate,
		Providers: services.NewProviders(r.config.Providers, nil),
		Gatherer:  r.registry,
		Activity:  idle,
		Logger:    r.logger,
	})

	srv, err := server.Listen(addr, app.Handler(), r.logger)
	if err != nil {
		return err
	}

	r.writePlain("→ Serving on http://%s\n", srv.Addr())
	return srv.Serve(ctx)
}
