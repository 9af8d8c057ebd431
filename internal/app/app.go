// Package app wires the coordinators together and implements the CLI commands.
package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"cookify/internal/api"
	"cookify/internal/chat"
	"cookify/internal/config"
	"cookify/internal/database"
	"cookify/internal/feedback"
	"cookify/internal/grocery"
	"cookify/internal/llm"
	"cookify/internal/metrics"
	"cookify/internal/presenter"
	"cookify/internal/recipe"
	"cookify/internal/session"
	"cookify/internal/storage"
)

// App holds the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer

	db           *database.DB
	store        *storage.Store
	metricsStore *metrics.Store
	generator    llm.TextGenerator

	Session  *session.Coordinator
	Recipes  *recipe.Coordinator
	Grocery  *grocery.Coordinator
	Chef     *chat.Service
	Feedback *feedback.Service
}

// Options customises New. Zero values fall back to a console presenter on out.
type Options struct {
	Notifier  presenter.Notifier
	Navigator presenter.Navigator
	APIOpts   []api.Option
}

// New opens the database and the client store, builds every coordinator and
// restores a stored session.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer, opts Options) (*App, error) {
	console := presenter.NewConsole(out)
	if opts.Notifier == nil {
		opts.Notifier = console
	}
	if opts.Navigator == nil {
		opts.Navigator = console
	}

	db, err := database.NewDB(cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store, err := storage.Open(ctx, cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open client store: %w", err)
	}

	generator, err := llm.NewFromConfig(ctx, cfg)
	if err != nil {
		store.Close()
		db.Close()
		return nil, fmt.Errorf("failed to initialize chat fallback: %w", err)
	}

	metricsStore := metrics.NewStore(db.SQL)
	client := api.NewClient(cfg, logger, append([]api.Option{api.WithRecorder(metricsStore)}, opts.APIOpts...)...)

	sess := session.NewCoordinator(store, client, opts.Notifier, opts.Navigator, logger)
	a := &App{
		cfg:          cfg,
		logger:       logger,
		out:          out,
		db:           db,
		store:        store,
		metricsStore: metricsStore,
		generator:    generator,
		Session:      sess,
		Recipes:      recipe.NewCoordinator(client, sess, store, opts.Notifier, logger),
		Grocery:      grocery.NewCoordinator(client, sess, store, opts.Notifier, logger),
		Chef:         chat.NewService(client, sess, generator, logger),
		Feedback:     feedback.NewService(client, sess, store, opts.Notifier, cfg.Feedback.Threshold, logger),
	}

	if err := sess.Restore(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return a, nil
}

// Close releases the fallback model, the client store and the database.
func (a *App) Close() error {
	if c, ok := a.generator.(llm.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("Failed to close chat fallback", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close client store", zap.Error(err))
	}
	return a.db.Close()
}

// Metrics exposes the call metrics store.
func (a *App) Metrics() *metrics.Store {
	return a.metricsStore
}

// DataPath is the location of local data, used for disk usage reporting.
func (a *App) DataPath() string {
	if a.cfg.Store.Backend == config.BackendFile {
		return a.cfg.Store.Dir
	}
	return a.cfg.Store.Path
}
