// Package ideaservice coordinates the submission, browsing and voting flows
// across the identity, limiter, repository, aggregator and feed components.
package ideaservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/feed"
	"github.com/starford/ideashare/internal/feedback"
	"github.com/starford/ideashare/internal/ideas"
	"github.com/starford/ideashare/internal/limiter"
	"github.com/starford/ideashare/internal/localstore"
	"github.com/starford/ideashare/internal/models"
	"github.com/starford/ideashare/internal/moderation"
	"github.com/starford/ideashare/internal/votes"
)

// DefaultPageSize is how many ideas a feed request loads.
const DefaultPageSize = 200

// DefaultMaxPageSize caps the limit a feed request may ask for.
const DefaultMaxPageSize = 1000

// Submission outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeBlocked  = "blocked"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Identity supplies the current client identifier.
type Identity interface {
	GetOrCreate() string
}

// Locator resolves the user's country.
type Locator interface {
	Lookup(ctx context.Context) string
}

// ProfanityChecker flags inappropriate text.
type ProfanityChecker interface {
	ContainsProfanity(ctx context.Context, text string) bool
}

// SubmitResult describes what happened to a submission.
type SubmitResult struct {
	Outcome     string   `json:"outcome"`
	IdeaID      string   `json:"idea_id,omitempty"`
	Country     string   `json:"country,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// FeedRequest selects a feed page.
type FeedRequest struct {
	Filter models.Filter
	Sort   models.SortKey
	Offset int
	Limit  int
}

// FeedPage is a rendered feed window.
type FeedPage struct {
	Filter models.Filter  `json:"filter"`
	Sort   models.SortKey `json:"sort"`
	Total  int            `json:"total"`
	Window feed.Window    `json:"window"`
	Thumb  feed.Thumb     `json:"thumb"`
	Cards  []feed.Card    `json:"cards"`
	// Degraded is set when the list could not be read and is shown empty.
	Degraded bool `json:"degraded,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithGeometry sets the feed geometry.
func WithGeometry(g feed.Geometry) Option {
	return func(s *Service) { s.geometry = g }
}

// WithPageSize sets the default feed load size.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithMaxPageSize caps requested feed limits.
func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

// WithFeedback sets where user feedback is stored.
func WithFeedback(r *feedback.Repository) Option {
	return func(s *Service) { s.feedback = r }
}

// WithLocator sets the geolocation collaborator.
func WithLocator(l Locator) Option {
	return func(s *Service) { s.geo = l }
}

// WithProfanityChecker sets the profanity collaborator.
func WithProfanityChecker(c ProfanityChecker) Option {
	return func(s *Service) { s.profanity = c }
}

// WithClock overrides time.Now for card dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs the user-facing flows.
type Service struct {
	repo      *ideas.Repository
	votes     *votes.Aggregator
	limiter   *limiter.Limiter
	ids       Identity
	local     localstore.Store
	logger    *slog.Logger
	geo       Locator
	profanity ProfanityChecker
	geometry  feed.Geometry
	pageSize  int
	now       func() time.Time

	maxPageSize int
	feedback    *feedback.Repository

	background sync.WaitGroup
	async      func(func())
}

// NewService creates a Service.
func NewService(
	repo *ideas.Repository,
	agg *votes.Aggregator,
	lim *limiter.Limiter,
	ids Identity,
	local localstore.Store,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		votes:     agg,
		limiter:   lim,
		ids:       ids,
		local:     local,
		logger:    logger,
		profanity: moderation.NewChecker("", nil, logger),
		geometry:  feed.DefaultGeometry(),
		pageSize:  DefaultPageSize,
		now:       time.Now,

		maxPageSize: DefaultMaxPageSize,
	}
	s.async = s.goBackground
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs the submission flow: daily limit, moderation, geolocation,
// create, then mark. The limiter is only advanced after a successful create.
func (s *Service) Submit(ctx context.Context, text string) (SubmitResult, error) {
	text = strings.TrimSpace(text)
	author := s.ids.GetOrCreate()

	if !s.limiter.CanSubmitToday() {
		return SubmitResult{Outcome: OutcomeBlocked}, apperr.ErrAlreadySubmitted
	}
	if s.repo.HasSubmittedSince(ctx, author, s.limiter.StartOfToday()) {
		s.logger.Info("ideaservice: store shows a submission today", slog.String("author", author))
		return SubmitResult{Outcome: OutcomeBlocked}, apperr.ErrAlreadySubmitted
	}

	if err := moderation.Validate(text); err != nil {
		return SubmitResult{Outcome: OutcomeRejected, Reason: err.Error()}, err
	}
	if !moderation.IsAcceptable(text) {
		reason := moderation.Reason(text)
		return SubmitResult{Outcome: OutcomeRejected, Reason: reason},
			fmt.Errorf("%w: %s", apperr.ErrInvalidIdea, reason)
	}
	if s.profanity.ContainsProfanity(ctx, text) {
		res := SubmitResult{Outcome: OutcomeRejected, Reason: apperr.ErrProfanity.Error()}
		for _, w := range strings.Fields(text) {
			if moderation.IsBanned(w) {
				res.Suggestions = moderation.Suggestions(w)
				break
			}
		}
		return res, apperr.ErrProfanity
	}

	country := models.UnknownCountry
	if s.geo != nil {
		country = s.geo.Lookup(ctx)
	}

	id, err := s.repo.Submit(ctx, text, author, country)
	if err != nil {
		s.logger.Error("ideaservice: submit failed",
			slog.String("author", author),
			slog.String("error", err.Error()))
		return SubmitResult{Outcome: OutcomeFailed}, err
	}
	s.limiter.MarkSubmittedToday()
	return SubmitResult{Outcome: OutcomeCreated, IdeaID: id, Country: country}, nil
}

// Feed loads, sorts and windows the idea list. Read failures produce an empty
// degraded page rather than an error.
func (s *Service) Feed(ctx context.Context, req FeedRequest) FeedPage {
	limit := req.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	limit = min(limit, s.maxPageSize)
	if req.Filter == "" {
		req.Filter = models.FilterAll
	}
	if req.Sort == "" {
		req.Sort = models.SortByDate
	}

	page := FeedPage{Filter: req.Filter, Sort: req.Sort}
	items, err := s.repo.ListFiltered(ctx, req.Filter, limit)
	if err != nil {
		s.logger.Warn("ideaservice: feed unavailable, showing empty list",
			slog.String("filter", string(req.Filter)),
			slog.String("error", err.Error()))
		items = nil
		page.Degraded = true
	}

	sorted := feed.Sort(items, req.Sort)
	vp := feed.NewViewport(s.geometry)
	vp.SetLength(len(sorted))
	page.Window = vp.Scroll(req.Offset)
	page.Thumb = feed.Scrollbar(page.Window, s.geometry)
	page.Cards = feed.Cards(sorted, page.Window, s.now())
	page.Total = len(sorted)
	return page
}

// Vote casts the current identity's vote.
func (s *Service) Vote(ctx context.Context, ideaID string, stars int) (*models.Idea, error) {
	return s.votes.CastVote(ctx, ideaID, stars, s.ids.GetOrCreate())
}

// MyVote returns the current identity's vote on the idea, or apperr.ErrNotFound.
func (s *Service) MyVote(ctx context.Context, ideaID string) (*models.Vote, error) {
	v, err := s.votes.GetVote(ctx, ideaID, s.ids.GetOrCreate())
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apperr.ErrNotFound
	}
	return v, nil
}

// RandomUnvoted picks an idea nobody has voted on. It returns nil when none
// exist or the list cannot be read.
func (s *Service) RandomUnvoted(ctx context.Context) *models.Idea {
	idea, err := s.votes.RandomUnvoted(ctx, s.pageSize)
	if err != nil {
		s.logger.Warn("ideaservice: random unvoted unavailable", slog.String("error", err.Error()))
		return nil
	}
	return idea
}

// View returns one idea and counts the view in the background.
func (s *Service) View(ctx context.Context, id string) (*models.Idea, error) {
	idea, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	bg := context.WithoutCancel(ctx)
	s.async(func() { s.repo.IncrementViews(bg, id) })
	return idea, nil
}

// Status reports the limiter state for the current identity.
func (s *Service) Status() limiter.Status {
	return s.limiter.Status()
}

// ResetSubmission clears today's submission record.
func (s *Service) ResetSubmission() limiter.Status {
	s.limiter.Reset()
	return s.limiter.Status()
}

// Preference names and their allowed values.
var preferences = map[string]struct {
	key    string
	values []any
}{
	"language": {localstore.KeyLanguage, []any{"en", "es"}},
	"theme":    {localstore.KeyTheme, []any{"light", "dark"}},
}

// SetPreference stores a UI preference.
func (s *Service) SetPreference(name, value string) error {
	pref, ok := preferences[name]
	if !ok {
		return fmt.Errorf("%w: unknown preference %q", apperr.ErrInvalidInput, name)
	}
	if err := validation.Validate(value, validation.Required, validation.In(pref.values...)); err != nil {
		return fmt.Errorf("%w: %s: %w", apperr.ErrInvalidInput, name, err)
	}
	if err := s.local.Set(pref.key, value); err != nil {
		return fmt.Errorf("ideaservice: save preference: %w", err)
	}
	return nil
}

// Preferences returns the stored UI preferences.
func (s *Service) Preferences() map[string]string {
	out := map[string]string{}
	for name, pref := range preferences {
		if v, ok, err := s.local.Get(pref.key); err == nil && ok {
			out[name] = v
		}
	}
	return out
}

// SubmitFeedback stores free-text feedback from the current identity and
// returns its id. Blank text fails with apperr.ErrInvalidInput.
func (s *Service) SubmitFeedback(ctx context.Context, text string) (string, error) {
	if s.feedback == nil {
		return "", errors.New("ideaservice: feedback storage not configured")
	}
	return s.feedback.Submit(ctx, text, s.ids.GetOrCreate())
}

// Wait blocks until background view increments finish.
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) goBackground(f func()) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		f()
	}()
}

// IsUserError reports whether err is caused by user input rather than a
// storage failure.
func IsUserError(err error) bool {
	return errors.Is(err, apperr.ErrInvalidIdea) ||
		errors.Is(err, apperr.ErrProfanity) ||
		errors.Is(err, apperr.ErrInvalidStars) ||
		errors.Is(err, apperr.ErrInvalidInput)
}
