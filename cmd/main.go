package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/mediafetch/internal/shared"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "err", err)
	}

	configPath := defaultConfigPath
	if v, ok := os.LookupEnv("MEDIAFETCH_CONFIG"); ok && v != "" {
		configPath = v
	}

	config, err := shared.LoadConfigOrDefault(configPath)
	if err != nil {
		logger.Fatal("failed to load config", "path", configPath, "err", err)
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		logger.Fatal("invalid environment", "err", err)
	}
	if err := shared.ConfigureLogger(logger, config.Log.Level); err != nil {
		logger.Warn("ignoring log level", "err", err)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "mediafetch",
		Usage:    "Fetch video and audio through yt-dlp, from the terminal or over HTTP",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
