// Package feedback stores free-text product feedback sent by users.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/docstore"
)

// DefaultCollection is the collection feedback is stored in.
const DefaultCollection = "feedback"

// MaxLength bounds a feedback message in characters.
const MaxLength = 2000

// Document field names.
const (
	fieldText      = "text"
	fieldUserID    = "userId"
	fieldCreatedAt = "createdAt"
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

// Repository writes feedback documents.
type Repository struct {
	store      docstore.Store
	logger     *slog.Logger
	collection string
	now        func() time.Time
}

// New creates a Repository over store.
func New(store docstore.Store, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{
		store:      store,
		logger:     logger,
		collection: DefaultCollection,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit trims text and stores it with the sender and a timestamp. Blank or
// oversized text fails with apperr.ErrInvalidInput before touching the store.
func (r *Repository) Submit(ctx context.Context, text, userID string) (string, error) {
	text = strings.TrimSpace(text)
	if err := validation.Validate(text,
		validation.Required,
		validation.RuneLength(1, MaxLength),
	); err != nil {
		return "", fmt.Errorf("%w: feedback: %w", apperr.ErrInvalidInput, err)
	}

	id, err := r.store.Create(ctx, r.collection, map[string]any{
		fieldText:      text,
		fieldUserID:    userID,
		fieldCreatedAt: r.now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("feedback: submit: %w", err)
	}
	r.logger.Info("feedback: received", slog.String("id", id), slog.String("user", userID))
	return id, nil
}
