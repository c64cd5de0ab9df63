// Package ideas is the idea repository: creation, listing, view counting and
// vote writes against the document store.
package ideas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/docstore"
	"github.com/starford/ideashare/internal/models"
)

// DefaultCollection is the collection ideas are stored in.
const DefaultCollection = "ideas"

const defaultScanFactor = 5

// listing strategy states
const (
	strategyUnknown int32 = iota
	strategyIndexed
	strategyScan
)

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides time.Now for createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithCollection overrides the collection name.
func WithCollection(name string) Option {
	return func(r *Repository) { r.collection = name }
}

// WithScanFactor sets how many times the requested limit the scan strategy
// fetches before filtering in memory.
func WithScanFactor(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.scanFactor = n
		}
	}
}

// Repository reads and writes idea documents.
type Repository struct {
	store      docstore.Store
	logger     *slog.Logger
	collection string
	now        func() time.Time
	scanFactor int

	indexed  lister
	scan     lister
	strategy atomic.Int32
}

// New creates a Repository over store.
func New(store docstore.Store, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{
		store:      store,
		logger:     logger,
		collection: DefaultCollection,
		now:        time.Now,
		scanFactor: defaultScanFactor,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.indexed = indexedLister{r}
	r.scan = scanLister{r}
	return r
}

// Submit creates a new idea with no votes and no views.
func (r *Repository) Submit(ctx context.Context, text, authorID, country string) (string, error) {
	id, err := r.store.Create(ctx, r.collection, map[string]any{
		fieldText:         text,
		fieldAuthorID:     authorID,
		fieldCountry:      country,
		fieldCreatedAt:    r.now().UnixMilli(),
		fieldVotes:        []map[string]any{},
		fieldAverageStars: 0,
		fieldTotalVotes:   0,
		fieldViews:        0,
	})
	if err != nil {
		return "", fmt.Errorf("ideas: submit: %w", err)
	}
	r.logger.Info("ideas: created", slog.String("id", id), slog.String("author", authorID))
	return id, nil
}

// Get returns one idea or an error wrapping apperr.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*models.Idea, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return nil, fmt.Errorf("ideas: get %s: %w", id, err)
	}
	idea, err := fromDocument(doc)
	if err != nil {
		return nil, apperr.Read("decode", err)
	}
	return &idea, nil
}

// List returns up to limit ideas, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Idea, error) {
	docs, err := r.store.Query(ctx, r.collection, docstore.Query{
		OrderBy: &docstore.Order{Field: fieldCreatedAt, Desc: true},
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("ideas: list: %w", err)
	}
	ideas, err := fromDocuments(docs)
	if err != nil {
		return nil, apperr.Read("decode", err)
	}
	return ideas, nil
}

// ListUnvoted returns up to limit ideas without votes, newest first.
func (r *Repository) ListUnvoted(ctx context.Context, limit int) ([]models.Idea, error) {
	return r.listFiltered(ctx, models.FilterUnvoted, limit)
}

// ListVoted returns up to limit ideas with at least one vote.
func (r *Repository) ListVoted(ctx context.Context, limit int) ([]models.Idea, error) {
	return r.listFiltered(ctx, models.FilterVoted, limit)
}

// UnvotedCandidates returns the pool a random unvoted pick draws from. When
// the store filters, that is up to limit newest unvoted ideas. Under the scan
// strategy it is every unvoted idea, since a bounded page of the newest ideas
// can be fully voted while older ones are not.
func (r *Repository) UnvotedCandidates(ctx context.Context, limit int) ([]models.Idea, error) {
	return r.listFilteredScan(ctx, models.FilterUnvoted, limit, 0)
}

// ListFiltered dispatches on f.
func (r *Repository) ListFiltered(ctx context.Context, f models.Filter, limit int) ([]models.Idea, error) {
	switch f {
	case models.FilterVoted, models.FilterUnvoted:
		return r.listFiltered(ctx, f, limit)
	default:
		return r.List(ctx, limit)
	}
}

// listFiltered tries the indexed strategy unless a previous attempt showed
// the store lacks the composite index, in which case it scans.
func (r *Repository) listFiltered(ctx context.Context, f models.Filter, limit int) ([]models.Idea, error) {
	return r.listFilteredScan(ctx, f, limit, limit)
}

// listFilteredScan is listFiltered with a separate limit for the scan strategy.
// A scanLimit of 0 scans the whole collection.
func (r *Repository) listFilteredScan(ctx context.Context, f models.Filter, limit, scanLimit int) ([]models.Idea, error) {
	if r.strategy.Load() != strategyScan {
		ideas, err := r.indexed.list(ctx, f, limit)
		if err == nil {
			r.strategy.CompareAndSwap(strategyUnknown, strategyIndexed)
			return ideas, nil
		}
		if !errors.Is(err, apperr.ErrMissingIndex) {
			return nil, err
		}
		if r.strategy.Swap(strategyScan) != strategyScan {
			r.logger.Warn("ideas: composite index missing, switching to scan listing",
				slog.String("filter", string(f)),
				slog.String("error", err.Error()))
		}
	}
	return r.scan.list(ctx, f, scanLimit)
}

// Probe runs the indexed listing once and caches which strategy the store
// supports. It reports whether the indexed strategy is usable.
func (r *Repository) Probe(ctx context.Context) (bool, error) {
	_, err := r.listFiltered(ctx, models.FilterUnvoted, 1)
	if err != nil {
		return false, err
	}
	return r.strategy.Load() == strategyIndexed, nil
}

// IncrementViews adds one to the idea's view count from a snapshot read.
// Concurrent increments can be lost. Failures are logged and dropped.
func (r *Repository) IncrementViews(ctx context.Context, id string) {
	idea, err := r.Get(ctx, id)
	if err != nil {
		r.logger.Warn("ideas: view increment read failed", slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	if err := r.store.Update(ctx, r.collection, id, map[string]any{fieldViews: idea.Views + 1}); err != nil {
		r.logger.Warn("ideas: view increment write failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// HasSubmittedSince reports whether authorID created an idea at or after
// since. Any failure, including a missing index, reports false.
func (r *Repository) HasSubmittedSince(ctx context.Context, authorID string, since time.Time) bool {
	q := docstore.Query{Limit: 1}.
		Where(fieldAuthorID, docstore.OpEq, authorID).
		Where(fieldCreatedAt, docstore.OpGte, since.UnixMilli())
	docs, err := r.store.Query(ctx, r.collection, q)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, apperr.ErrMissingIndex) {
			level = slog.LevelWarn
		}
		r.logger.Log(ctx, level, "ideas: remote submission check failed, allowing",
			slog.String("author", authorID),
			slog.String("error", err.Error()))
		return false
	}
	return len(docs) > 0
}

// UpdateVotes writes the vote list and its aggregates. When expectVersion is
// negative the write is unconditional; otherwise it fails with
// apperr.ErrConflict if the idea changed since it was read.
func (r *Repository) UpdateVotes(ctx context.Context, id string, expectVersion int64, votes []models.Vote, avg float64, total int) error {
	fields := map[string]any{
		fieldVotes:        voteFields(votes),
		fieldAverageStars: avg,
		fieldTotalVotes:   total,
	}
	var err error
	if expectVersion < 0 {
		err = r.store.Update(ctx, r.collection, id, fields)
	} else {
		err = r.store.UpdateIfVersion(ctx, r.collection, id, expectVersion, fields)
	}
	if err != nil {
		return fmt.Errorf("ideas: update votes %s: %w", id, err)
	}
	return nil
}
