package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hego/internal/session"
	"github.com/desertthunder/hego/internal/shared"
	"github.com/desertthunder/hego/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal login form.
//
// The startup sequence runs inside the UI so its progress is visible.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/hego-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	stack, err := r.Stack()
	if err != nil {
		return err
	}
	manager := stack.Manager

	idle := session.NewInactivityTimer(manager, r.config.Auth.InactivityTimeout())
	updates, unsubscribe := manager.Subscribe()
	defer unsubscribe()
	go idle.Watch(ctx, updates)

	model := ui.NewModel(ctx, ui.Options{
		Sessions: manager,
		Startup:  stack.Startup(),
		Cooldown: session.NewCooldown(r.config.Auth.LoginCooldown()),
		Activity: idle,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
