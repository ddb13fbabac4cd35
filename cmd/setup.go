package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mediafetch/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		path = r.configPath
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Wrote %s\n", path)
}

// SetupDatabase initializes the history database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.OpenHistory(r.config.Database)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("%w: database.path is empty", shared.ErrMissingConfig)
	}
	defer db.Close()

	pending, err := shared.PendingMigrations(db)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d migrations still pending", len(pending))
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}

// SetupYTDLP reports the yt-dlp version, installing it when asked.
func (r *Runner) SetupYTDLP(ctx context.Context, cmd *cli.Command) error {
	version, err := r.checkExtractor(ctx, cmd.Bool("install"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ yt-dlp %s\n", version)
}
