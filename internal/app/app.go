package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/swfz/gh-repos/internal/api"
	"github.com/swfz/gh-repos/internal/formatter"
	"github.com/swfz/gh-repos/internal/interactive"
	"github.com/swfz/gh-repos/internal/storage"
	"github.com/swfz/gh-repos/internal/store"
)

// App encapsulates the application logic
type App struct {
	config  *Config
	client  *api.Client
	storage storage.Storage
	store   *store.Store
	logger  *slog.Logger
	logFile *os.File

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// New creates a new application instance
func New(config *Config) (*App, error) {
	return newApp(config, os.Stdin, os.Stdout, os.Stderr)
}

func newApp(config *Config, stdin io.Reader, stdout, stderr io.Writer) (*App, error) {
	a := &App{
		config: config,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	if err := a.setupLogger(); err != nil {
		return nil, err
	}

	httpClient, authenticated, err := api.NewHTTPClient(config.Host, config.Token, config.Timeout)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = api.RESTBaseURL(config.Host)
	}

	a.client, err = api.NewClient(api.ClientConfig{
		Query:         config.Query,
		PerPage:       config.PerPage,
		HTTPClient:    httpClient,
		Authenticated: authenticated,
		BaseURL:       baseURL,
		GraphQLURL:    api.GraphQLURL(config.Host),
		RateLimit:     config.RequestRate,
		Logger:        a.logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	a.logger.Debug("client ready", "host", config.Host, "authenticated", authenticated, "query", config.Query)

	// Rate limit lookups never touch local storage
	if config.RateLimit {
		return a, nil
	}

	a.storage, err = storage.Open(config.Storage, config.DBPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a.logger.Debug("storage opened", "backend", config.Storage, "path", config.DBPath)

	a.store = store.New(a.client, a.storage,
		store.WithLogger(a.logger),
		store.WithMaxRepos(config.MaxRepos),
	)

	return a, nil
}

// setupLogger logs to --log-file when given. Otherwise one-shot modes log to
// stderr and the full-screen UI discards logs so the screen stays intact.
func (a *App) setupLogger() error {
	level := slog.LevelInfo
	if a.config.Verbose {
		level = slog.LevelDebug
	}

	var w io.Writer
	switch {
	case a.config.LogFile != "":
		f, err := os.OpenFile(a.config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.logFile = f
		w = f
	case a.usesTUI():
		w = io.Discard
	default:
		w = a.stderr
	}

	a.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *App) usesTUI() bool {
	return !a.config.NoInteractive && !a.config.Plain && !a.config.RateLimit
}

// Close releases storage and the log file
func (a *App) Close() error {
	var errs []error
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run executes the main application logic
func (a *App) Run(ctx context.Context) error {
	if a.config.RateLimit {
		return a.showRateLimits(ctx)
	}

	refetched, err := a.applyChanges(ctx)
	if err != nil {
		if a.config.NoInteractive {
			return err
		}
		// the views show the store's error line
		a.logger.Error("failed to apply changes", "error", err)
	}

	switch {
	case a.config.NoInteractive:
		return a.printRepositories(ctx, refetched)
	case a.config.Plain:
		return interactive.NewRunner(a.store, a.stdin, a.stdout, a.logger).Run(ctx)
	default:
		return interactive.RunTUI(ctx, a.store, a.logger)
	}
}

// applyChanges applies the command-line reset, sort, renames and deletions in
// that order. It reports whether the list was refetched from page 1.
func (a *App) applyChanges(ctx context.Context) (bool, error) {
	refetched := false

	if a.config.Reset {
		a.logger.Debug("resetting to defaults")
		refetched = true
		if err := a.store.ResetToDefault(ctx); err != nil {
			return refetched, fmt.Errorf("failed to reset: %w", err)
		}
	}

	if sort := a.config.Sort; sort != nil && *sort != a.store.State().Sort {
		a.logger.Debug("changing sort", "sort", sort.String())
		refetched = true
		if err := a.store.SetSort(ctx, *sort); err != nil {
			return refetched, fmt.Errorf("failed to change sort: %w", err)
		}
	}

	for _, r := range a.config.Renames {
		if !a.store.EditRepo(r.ID, r.Name) {
			a.logger.Warn("repository to rename not found", "id", r.ID)
		}
	}

	for _, id := range a.config.Deletes {
		if a.store.DeleteRepo(id) == 0 {
			a.logger.Warn("repository to delete not found", "id", id)
		}
	}

	return refetched, nil
}

// printRepositories loads up to --pages pages when the list was empty or
// refetched, then renders the table
func (a *App) printRepositories(ctx context.Context, refetched bool) error {
	if refetched || a.store.NeedsInitialFetch() {
		if err := a.loadPages(ctx); err != nil {
			return err
		}
	}

	state := a.store.State()

	// Handle empty results
	if len(state.Repos) == 0 {
		fmt.Fprintln(a.stdout, "No repositories found.")
		return nil
	}

	// Render table
	if err := formatter.RenderTable(a.stdout, state.Repos); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	// Print summary
	fmt.Fprintf(a.stdout, "\nTotal: %d repositories (sort: %s)\n", len(state.Repos), state.Sort)

	return nil
}

func (a *App) loadPages(ctx context.Context) error {
	for {
		before := a.store.State()
		if before.Page > a.config.Pages {
			return nil
		}

		if err := a.store.FetchNextPage(ctx); err != nil {
			return fmt.Errorf("failed to fetch repositories: %w", err)
		}

		after := a.store.State()
		if len(after.Repos) == len(before.Repos) {
			a.logger.Debug("no more results", "page", before.Page)
			return nil
		}
	}
}

func (a *App) showRateLimits(ctx context.Context) error {
	infos, err := a.client.CheckRateLimit(ctx)
	if err != nil {
		return err
	}

	return formatter.RenderRateLimits(a.stdout, infos, time.Now())
}
