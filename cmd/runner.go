package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/upstreamhub/csv2spotify/internal/loader"
	"github.com/upstreamhub/csv2spotify/internal/services"
	"github.com/upstreamhub/csv2spotify/internal/shared"
	"github.com/upstreamhub/csv2spotify/internal/tasks"
	"github.com/upstreamhub/csv2spotify/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	service     services.Service
	loader      tasks.RowLoader
	tokenOpts   services.TokenOpts
	spotifyOpts services.SpotifyOpts
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	painter     ui.Painter
	lookup      func(string) (string, bool)
	openBrowser func(string) error
	authTimeout time.Duration
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Service and Loader are normally built from the configuration; tests inject them.
type RunnerOpts struct {
	Config      *shared.Config
	Service     services.Service
	Loader      tasks.RowLoader
	TokenOpts   services.TokenOpts
	SpotifyOpts services.SpotifyOpts
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Painter     ui.Painter
	Lookup      func(string) (string, bool)
	OpenBrowser func(string) error
	AuthTimeout time.Duration
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Painter == nil {
		opts.Painter = ui.Default()
	}
	if opts.Lookup == nil {
		opts.Lookup = func(string) (string, bool) { return "", false }
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 2 * time.Minute
	}
	if opts.TokenOpts.Logger == nil {
		opts.TokenOpts.Logger = opts.Logger
	}

	return &Runner{
		config:      opts.Config,
		service:     opts.Service,
		loader:      opts.Loader,
		tokenOpts:   opts.TokenOpts,
		spotifyOpts: opts.SpotifyOpts,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		painter:     opts.Painter,
		lookup:      opts.Lookup,
		openBrowser: opts.OpenBrowser,
		authTimeout: opts.AuthTimeout,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){authCommand, inspectCommand, initCommand} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads configuration for every command: defaults, then the config file, then the environment, then flags.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config == nil {
		config, err := r.loadConfig(cmd.String("config"))
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	if err := r.config.ApplyEnv(r.lookup); err != nil {
		return ctx, err
	}
	if v := cmd.String("csv"); v != "" {
		r.config.CSV.Path = v
	}
	if v := cmd.String("log-level"); v != "" {
		r.config.Log.Level = v
	}

	if err := shared.SetLogLevelString(r.logger, r.config.Log.Level); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// loadConfig reads the config file at path. A missing file is not an error: the embedded defaults are used.
func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	config, err := shared.LoadConfig(path)
	switch {
	case err == nil:
		r.logger.Debug("loaded config", "path", path)
		return config, nil
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Debug("config file not found, using defaults", "path", path)
		return shared.DefaultConfig(), nil
	default:
		return nil, err
	}
}

// spotifyService returns the injected service or builds one from the configured credentials.
func (r *Runner) spotifyService(ctx context.Context, logger *log.Logger) (services.Service, error) {
	if r.service != nil {
		return r.service, nil
	}

	tokenOpts := r.tokenOpts
	tokenOpts.Logger = logger
	ts, err := services.NewTokenProvider(r.config.Credentials.Spotify, tokenOpts).TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	opts := r.spotifyOpts
	opts.Logger = logger
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = r.config.Writer.RetryAfter()
	}
	return services.NewSpotifyService(ctx, ts, opts)
}

func (r *Runner) rowLoader(logger *log.Logger) tasks.RowLoader {
	if r.loader != nil {
		return r.loader
	}
	client := &http.Client{Timeout: r.config.CSV.Timeout(), Transport: r.httpClient.Transport}
	return loader.New(client, logger)
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
