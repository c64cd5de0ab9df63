package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/ideashare/internal/docstore"
	"github.com/starford/ideashare/internal/feedback"
	"github.com/starford/ideashare/internal/geo"
	"github.com/starford/ideashare/internal/identity"
	"github.com/starford/ideashare/internal/ideas"
	"github.com/starford/ideashare/internal/ideaservice"
	"github.com/starford/ideashare/internal/limiter"
	"github.com/starford/ideashare/internal/localstore"
	"github.com/starford/ideashare/internal/moderation"
	"github.com/starford/ideashare/internal/votes"
)

const outboundTimeout = 5 * time.Second

// App holds the wired components shared by every command.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Local   *localstore.File
	Store   docstore.Store
	Ideas   *ideas.Repository
	Service *ideaservice.Service
}

// NewLogger builds the JSON logger for cfg and installs it as the default.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Build opens the stores and wires the services. Callers must Close the App.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	local, err := localstore.Open(cfg.Local.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("init local store: %w", err)
	}

	store, err := openDocStore(ctx, &cfg.DocStore)
	if err != nil {
		return nil, fmt.Errorf("init docstore: %w", err)
	}

	repo := ideas.New(store, logger, ideas.WithCollection(cfg.DocStore.Collection))
	ids := identity.NewProvider(local, logger)
	lim := limiter.New(local, ids, logger, limiter.WithLocation(loc))
	agg := votes.New(repo, logger,
		votes.WithMode(votes.Mode(cfg.Voting.Mode)),
		votes.WithMaxAttempts(cfg.Voting.MaxAttempts))

	client := &http.Client{Timeout: outboundTimeout}
	remoteURL := ""
	if cfg.Moderation.RemoteEnabled {
		remoteURL = cfg.Moderation.RemoteURL
	}
	opts := []ideaservice.Option{
		ideaservice.WithGeometry(cfg.Feed.Geometry()),
		ideaservice.WithPageSize(cfg.Feed.PageSize),
		ideaservice.WithMaxPageSize(cfg.Feed.MaxPageSize),
		ideaservice.WithFeedback(feedback.New(store, logger,
			feedback.WithCollection(cfg.DocStore.FeedbackCollection))),
		ideaservice.WithProfanityChecker(moderation.NewChecker(remoteURL, client, logger)),
	}
	if cfg.Geo.Enabled {
		opts = append(opts, ideaservice.WithLocator(geo.New(local, logger,
			geo.WithURLs(cfg.Geo.PrimaryURL, cfg.Geo.FallbackURL),
			geo.WithHTTPClient(client))))
	}
	svc := ideaservice.NewService(repo, agg, lim, ids, local, logger, opts...)

	if indexed, err := repo.Probe(ctx); err != nil {
		logger.Warn("ideas: store probe failed", slog.String("error", err.Error()))
	} else {
		logger.Info("ideas: listing strategy selected", slog.Bool("indexed", indexed))
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Local:   local,
		Store:   store,
		Ideas:   repo,
		Service: svc,
	}, nil
}

// Close waits for background work and closes the document store.
func (a *App) Close() error {
	a.Service.Wait()
	return a.Store.Close()
}

func openDocStore(ctx context.Context, cfg *DocStoreConfig) (docstore.Store, error) {
	indexes, err := cfg.IndexSet()
	if err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverMongo:
		return docstore.OpenMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.ConnectTimeout, indexes)
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		return docstore.OpenSQLite(cfg.SQLite.Path, indexes)
	}
	return nil, errors.New("unknown docstore driver: " + cfg.Driver)
}
