// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP service.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port and PORT)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the health page in the default browser once listening",
			},
			&cli.DurationFlag{
				Name:  "sweep-after",
				Usage: "Remove abandoned partial and claimed files older than this; 0 disables",
				Value: defaultSweepAge,
			},
			&cli.BoolFlag{
				Name:  "skip-check",
				Usage: "Start without verifying the yt-dlp binary",
			},
		},
		Action: r.Serve,
	}
}

// fetchCommand downloads one or more URLs to a local directory.
func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Aliases:   []string{"get"},
		Usage:     "Download media to a local directory",
		ArgsUsage: "<url> [url...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "video or audio",
				Value:   "video",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory to save finished files in",
				Value:   ".",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"j"},
				Usage:   "Maximum simultaneous downloads",
				Value:   defaultFetchConcurrency,
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Print line-based progress instead of the interactive view",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the interactive view is shown",
				Value: "./tmp/mediafetch-fetch.log",
			},
		},
		Action: r.Fetch,
	}
}

// infoCommand prints metadata for a URL.
func infoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Show title, author, duration and views for a URL",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "thumbnail",
				Usage: "Also save the thumbnail image to this path",
			},
		},
		Action: r.Info,
	}
}

// setupCommand handles setup operations for configuration, database and yt-dlp.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "ytdlp",
				Usage: "Verify the yt-dlp binary",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "install",
						Usage: "Download yt-dlp if it is missing",
					},
				},
				Action: r.SetupYTDLP,
			},
		},
	}
}

// historyCommand reads and exports the download history.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Past downloads recorded in the database",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent downloads",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show records in this state (finished, failed, cancelled...)",
					},
					&cli.StringFlag{
						Name:  "platform",
						Usage: "Only show records from this platform",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "export",
				Usage: "Export history as csv, md, txt or json",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, md, txt or json",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (defaults to history.<format>)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records; 0 exports everything",
					},
				},
				Action: r.HistoryExport,
			},
		},
	}
}
