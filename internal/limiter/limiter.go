// Package limiter enforces one idea submission per identifier per local
// calendar day. Enforcement is advisory: it lives entirely in local storage
// and fails open.
package limiter

import (
	"log/slog"
	"time"

	"github.com/starford/ideashare/internal/localstore"
)

const dateLayout = "2006-01-02"

// Identifier supplies the current client identifier.
type Identifier interface {
	GetOrCreate() string
}

// Status is the full limiter state for the current identifier.
type Status struct {
	Identity           string `json:"identity"`
	CanSubmit          bool   `json:"can_submit"`
	HasSubmittedToday  bool   `json:"has_submitted_today"`
	LastSubmissionDate string `json:"last_submission_date,omitempty"`
	Today              string `json:"today"`
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLocation sets the timezone that defines the calendar day.
func WithLocation(loc *time.Location) Option {
	return func(l *Limiter) { l.loc = loc }
}

// Limiter tracks the last submission date per identifier.
type Limiter struct {
	store  localstore.Store
	ids    Identifier
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location
}

// New creates a Limiter.
func New(store localstore.Store, ids Identifier, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		ids:    ids,
		logger: logger,
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Today returns the current calendar date as YYYY-MM-DD.
func (l *Limiter) Today() string {
	return l.now().In(l.loc).Format(dateLayout)
}

// StartOfToday returns local midnight of the current calendar day.
func (l *Limiter) StartOfToday() time.Time {
	t := l.now().In(l.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, l.loc)
}

// HasSubmittedToday reports whether a submission was recorded today.
// A storage failure reports false.
func (l *Limiter) HasSubmittedToday() bool {
	last, _ := l.lastSubmission(l.ids.GetOrCreate())
	return last == l.Today()
}

// CanSubmitToday is the negation of HasSubmittedToday.
func (l *Limiter) CanSubmitToday() bool {
	return !l.HasSubmittedToday()
}

// MarkSubmittedToday records today's date. Write failures are logged and
// swallowed.
func (l *Limiter) MarkSubmittedToday() {
	id := l.ids.GetOrCreate()
	if err := l.store.Set(localstore.SubmissionKey(id), l.Today()); err != nil {
		l.logger.Warn("limiter: mark submitted failed",
			slog.String("identity", id),
			slog.String("error", err.Error()))
	}
}

// Status returns the full limiter state.
func (l *Limiter) Status() Status {
	id := l.ids.GetOrCreate()
	last, _ := l.lastSubmission(id)
	today := l.Today()
	return Status{
		Identity:           id,
		CanSubmit:          last != today,
		HasSubmittedToday:  last == today,
		LastSubmissionDate: last,
		Today:              today,
	}
}

// Reset removes the submission record for the current identifier.
func (l *Limiter) Reset() {
	id := l.ids.GetOrCreate()
	if err := l.store.Remove(localstore.SubmissionKey(id)); err != nil {
		l.logger.Warn("limiter: reset failed",
			slog.String("identity", id),
			slog.String("error", err.Error()))
	}
}

func (l *Limiter) lastSubmission(id string) (string, bool) {
	v, ok, err := l.store.Get(localstore.SubmissionKey(id))
	if err != nil {
		l.logger.Warn("limiter: read failed, allowing submission",
			slog.String("identity", id),
			slog.String("error", err.Error()))
		return "", false
	}
	return v, ok
}
