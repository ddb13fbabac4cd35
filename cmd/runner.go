package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediafetch/internal/artifacts"
	"github.com/desertthunder/mediafetch/internal/extractor"
	"github.com/desertthunder/mediafetch/internal/repositories"
	"github.com/desertthunder/mediafetch/internal/routes"
	"github.com/desertthunder/mediafetch/internal/shared"
	"github.com/desertthunder/mediafetch/internal/tasks"
	"github.com/urfave/cli/v3"
)

// versionChecker is implemented by [extractor.YTDLP].
type versionChecker interface {
	Check(ctx context.Context, install bool) (string, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	client     extractor.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Client     extractor.Client // defaults to yt-dlp
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath
	}
	if opts.Client == nil {
		opts.Client = extractor.NewYTDLP(opts.Config.Extractor, opts.Logger)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		client:     opts.Client,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the logger used by subsequently opened stacks.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, fetchCommand, infoCommand, setupCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// checker returns the client's version check, if it has one.
func (r *Runner) checker() (versionChecker, bool) {
	c, ok := r.client.(versionChecker)
	return c, ok
}

// stack is the set of long-lived components behind the server and fetch commands.
type stack struct {
	service *tasks.Service
	store   *artifacts.Store
	routes  *routes.Selector
	db      *sql.DB
	history *repositories.DownloadRepository
}

// stackOpts selects the optional parts of a [stack].
type stackOpts struct {
	history   bool // open the history database when a path is configured
	rateLimit bool // apply server.rate_limit to new downloads
}

// open builds the download stack from config.
func (r *Runner) open(opts stackOpts) (*stack, error) {
	store, err := artifacts.NewStore(r.config.ResolveDownloadsDir(), r.logger)
	if err != nil {
		return nil, err
	}

	st := &stack{store: store, routes: routes.NewSelector(r.config.Network)}

	svc := tasks.ServiceOpts{
		Client:  r.client,
		Store:   store,
		Routes:  st.routes,
		Logger:  r.logger,
		Timeout: r.config.Extractor.Timeout(),
	}
	if opts.rateLimit {
		svc.RateLimit = r.config.Server.RateLimit
		svc.Burst = r.config.Server.Burst
	}

	if opts.history {
		db, err := shared.OpenHistory(r.config.Database)
		if err != nil {
			return nil, err
		}
		if db != nil {
			st.db = db
			st.history = repositories.NewDownloadRepository(db)
			svc.History = st.history
		}
	}

	st.service = tasks.NewService(svc)
	r.logger.Debug("stack ready", "downloads", store.Dir(), "routes", st.routes.Describe())
	return st, nil
}

// Close stops running downloads and closes the database.
func (s *stack) Close(ctx context.Context) error {
	err := s.service.Shutdown(ctx)
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

// openHistory opens the history repository on its own, for the history commands.
func (r *Runner) openHistory() (*sql.DB, *repositories.DownloadRepository, error) {
	db, err := shared.OpenHistory(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		return nil, nil, fmt.Errorf("%w: database.path is empty, history is disabled", shared.ErrMissingConfig)
	}
	return db, repositories.NewDownloadRepository(db), nil
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

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
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
