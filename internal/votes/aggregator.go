// Package votes implements the per-voter star rating protocol and the
// aggregate recomputation stored on each idea.
package votes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/models"
)

// Mode selects how the vote write is applied.
type Mode string

const (
	// ModeCAS writes only if the idea is unchanged since it was read and
	// retries on conflict.
	ModeCAS Mode = "cas"
	// ModeOverwrite writes unconditionally. Concurrent votes can be lost.
	ModeOverwrite Mode = "overwrite"
)

// DefaultMaxAttempts bounds the CAS retry loop.
const DefaultMaxAttempts = 5

// Repository is the subset of the idea repository the aggregator needs.
type Repository interface {
	Get(ctx context.Context, id string) (*models.Idea, error)
	UnvotedCandidates(ctx context.Context, limit int) ([]models.Idea, error)
	UpdateVotes(ctx context.Context, id string, expectVersion int64, votes []models.Vote, avg float64, total int) error
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMode sets the write mode.
func WithMode(m Mode) Option {
	return func(a *Aggregator) { a.mode = m }
}

// WithMaxAttempts sets the CAS attempt bound.
func WithMaxAttempts(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithClock overrides time.Now for vote timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithRand overrides the source used by RandomUnvoted. It must return a
// value in [0, n).
func WithRand(intN func(n int) int) Option {
	return func(a *Aggregator) { a.intN = intN }
}

// Aggregator casts votes and maintains averageStars and totalVotes.
type Aggregator struct {
	repo        Repository
	logger      *slog.Logger
	mode        Mode
	maxAttempts int
	now         func() time.Time
	intN        func(n int) int
}

// New creates an Aggregator.
func New(repo Repository, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		repo:        repo,
		logger:      logger,
		mode:        ModeCAS,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		intN:        rand.IntN,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HasVoted reports whether voterID has a vote on the idea.
func (a *Aggregator) HasVoted(ctx context.Context, ideaID, voterID string) (bool, error) {
	v, err := a.GetVote(ctx, ideaID, voterID)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// GetVote returns voterID's vote on the idea, or nil.
func (a *Aggregator) GetVote(ctx context.Context, ideaID, voterID string) (*models.Vote, error) {
	idea, err := a.repo.Get(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	if v, ok := idea.VoteBy(voterID); ok {
		return &v, nil
	}
	return nil, nil
}

// CastVote records a single vote and rewrites the aggregates. It returns the
// idea as written.
func (a *Aggregator) CastVote(ctx context.Context, ideaID string, stars int, voterID string) (*models.Idea, error) {
	if stars < models.MinStars || stars > models.MaxStars {
		return nil, fmt.Errorf("%w: %d", apperr.ErrInvalidStars, stars)
	}

	attempts := a.maxAttempts
	if a.mode == ModeOverwrite {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		idea, err := a.repo.Get(ctx, ideaID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrVoteSubmission, err)
		}
		if _, ok := idea.VoteBy(voterID); ok {
			return nil, apperr.ErrAlreadyVoted
		}

		votes := append(make([]models.Vote, 0, len(idea.Votes)+1), idea.Votes...)
		votes = append(votes, models.Vote{VoterID: voterID, Stars: stars, CreatedAt: a.now()})
		avg, total := Aggregate(votes)

		expect := idea.Version
		if a.mode == ModeOverwrite {
			expect = -1
		}
		err = a.repo.UpdateVotes(ctx, ideaID, expect, votes, avg, total)
		if err == nil {
			idea.Votes = votes
			idea.AverageStars = avg
			idea.TotalVotes = total
			idea.Version++
			a.logger.Info("votes: cast",
				slog.String("idea", ideaID),
				slog.String("voter", voterID),
				slog.Int("stars", stars),
				slog.Int("attempt", attempt))
			return idea, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", apperr.ErrVoteSubmission, err)
		}
		lastErr = err
		a.logger.Debug("votes: concurrent update, retrying",
			slog.String("idea", ideaID),
			slog.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("%w: gave up after %d attempts: %w", apperr.ErrVoteSubmission, attempts, lastErr)
}

// RandomUnvoted picks uniformly among the repository's unvoted candidates:
// up to limit newest when the store filters, all of them when it scans. It
// returns nil when there are none.
func (a *Aggregator) RandomUnvoted(ctx context.Context, limit int) (*models.Idea, error) {
	ideas, err := a.repo.UnvotedCandidates(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(ideas) == 0 {
		return nil, nil
	}
	idea := ideas[a.intN(len(ideas))]
	return &idea, nil
}

// Aggregate returns the mean of the star values rounded half-up to two
// decimals, and the vote count. The mean is computed in integer hundredths so
// values like 4.665 never round down through float error.
func Aggregate(votes []models.Vote) (float64, int) {
	n := len(votes)
	if n == 0 {
		return 0, 0
	}
	sum := 0
	for _, v := range votes {
		sum += v.Stars
	}
	hundredths := (sum*200 + n) / (2 * n)
	return float64(hundredths) / 100, n
}

// DisplayStars rounds an average to one decimal for display.
func DisplayStars(avg float64) float64 {
	return math.Floor(avg*10+0.5) / 10
}
