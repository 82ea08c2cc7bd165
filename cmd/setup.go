package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/hego/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Wrote %s\n", path)
	r.writePlain("Set api.base_url and the [providers] credentials before signing in\n")
	return nil
}

// SetupDatabase initializes the credential database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if r.config.Storage.Scope != shared.ScopeLocal {
		return fmt.Errorf("%w: storage.scope is %q, the database is only used with %q", shared.ErrInvalidConfig, r.config.Storage.Scope, shared.ScopeLocal)
	}

	r.logger.Info("initializing database", "path", r.config.Storage.Path)

	db, err := shared.OpenStorage(r.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Storage.Path)
	r.writePlain("✓ Credential database ready at %s\n", r.config.Storage.Path)
	return nil
}
