// Package app wires configuration into the services shared by the daemon,
// the CLI and the MCP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/studycoach/internal/coach"
	"github.com/felixgeelhaar/studycoach/internal/config"
	"github.com/felixgeelhaar/studycoach/internal/docindex"
	"github.com/felixgeelhaar/studycoach/internal/events"
	"github.com/felixgeelhaar/studycoach/internal/llm"
	"github.com/felixgeelhaar/studycoach/internal/progress"
	"github.com/felixgeelhaar/studycoach/internal/quiz"
	"github.com/felixgeelhaar/studycoach/internal/storage/postgres"
	"github.com/felixgeelhaar/studycoach/internal/storage/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Options tunes what Build sets up
type Options struct {
	// SkipNotes leaves Notes nil; commands that only read progress use it
	SkipNotes bool
	// SkipEvents disables AMQP publication even when configured
	SkipEvents bool
}

// App holds the configured services
type App struct {
	Config   *config.LocalConfig
	Dir      string
	Registry *llm.Registry
	Progress *progress.Service
	Notes    *docindex.Service
	// Quizzes is nil when no LLM provider is configured
	Quizzes *coach.Service

	logger  *slog.Logger
	closers []func() error
}

// Build creates every service described by cfg. dir is the state
// directory holding the progress document, quiz sessions and the notes
// index. Close must be called to release connections.
func Build(ctx context.Context, cfg *config.LocalConfig, dir string, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Dir: dir, logger: logger}

	a.Registry = llm.NewRegistry()
	a.closers = append(a.closers, SetupLLMProviders(cfg, a.Registry, logger)...)

	store, err := a.openDocumentStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Progress = progress.NewService(store)
	a.Progress.SetLogger(logger)

	if cfg.Events.Enabled && !opts.SkipEvents {
		conn, err := events.NewConnection(cfg.Events.URL, logger)
		if err != nil {
			// Progress writes never depend on the broker
			logger.Warn("events disabled, broker unavailable", "error", err)
		} else {
			a.Progress.SetPublisher(events.NewPublisher(conn, logger))
			a.closers = append(a.closers, conn.Close)
		}
	}

	if !opts.SkipNotes {
		notes, err := a.openNotes()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Notes = notes
	}

	provider, err := a.Registry.Default()
	switch {
	case err == nil && a.Notes != nil:
		sessions, err := coach.NewStore(dir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create quiz store: %w", err)
		}
		a.Quizzes = coach.NewService(sessions, a.Progress, a.Notes,
			quiz.NewGenerator(provider, logger), quiz.NewGrader(provider, logger))
		a.Quizzes.SetLogger(logger)
		a.Quizzes.SetTopK(cfg.Notes.TopK)
	case errors.Is(err, llm.ErrNoDefaultProvider):
		logger.Warn("no LLM provider configured, quizzes unavailable")
	}

	return a, nil
}

func (a *App) openDocumentStore(ctx context.Context) (progress.DocumentStore, error) {
	switch a.Config.Storage.Backend {
	case "", BackendFile:
		path := a.Config.ProgressPath(a.Dir)
		store, err := progress.NewFileStore(ctx, path, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open progress file: %w", err)
		}
		a.logger.Debug("progress store", "backend", BackendFile, "path", path)
		return store, nil

	case BackendPostgres:
		pool, err := postgres.Open(ctx, a.Config.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closePool(pool))
		store, err := postgres.NewDocumentStore(ctx, pool, a.Config.Storage.DocumentID, a.logger)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("progress store", "backend", BackendPostgres, "document_id", a.Config.Storage.DocumentID)
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", a.Config.Storage.Backend)
}

func (a *App) openNotes() (*docindex.Service, error) {
	db, err := sqlite.Open(a.Config.NotesIndexPath(a.Dir))
	if err != nil {
		return nil, fmt.Errorf("open notes index: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate notes index: %w", err)
	}

	embedder, err := a.embedder()
	if err != nil {
		return nil, err
	}
	splitter := docindex.NewSplitter(a.Config.Notes.ChunkSize, a.Config.Notes.ChunkOverlap)
	return docindex.NewService(db.DB, embedder, splitter), nil
}

func (a *App) embedder() (docindex.Embedder, error) {
	if a.Config.Notes.Embedder != "openai" {
		return nil, nil
	}
	openaiCfg := a.Config.LLM.Providers["openai"]
	if openaiCfg == nil || openaiCfg.APIKey == "" {
		a.logger.Warn("openai embedder selected without an API key, using keyword embedder")
		return nil, nil
	}
	embedder, err := docindex.NewOpenAIEmbedder(docindex.OpenAIEmbedderConfig{
		APIKey:  openaiCfg.APIKey,
		BaseURL: openaiCfg.URL,
		Model:   a.Config.Notes.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return embedder, nil
}

// NotesDir returns the notes folder, relative paths taken from the state
// directory
func (a *App) NotesDir() string {
	return a.Config.NotesPath(a.Dir)
}

// Close releases every resource opened by Build, in reverse order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func closePool(pool *pgxpool.Pool) func() error {
	return func() error {
		pool.Close()
		return nil
	}
}
