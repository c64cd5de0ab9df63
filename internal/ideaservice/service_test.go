package ideaservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/docstore"
	"github.com/starford/ideashare/internal/feedback"
	"github.com/starford/ideashare/internal/identity"
	"github.com/starford/ideashare/internal/ideas"
	"github.com/starford/ideashare/internal/limiter"
	"github.com/starford/ideashare/internal/localstore"
	"github.com/starford/ideashare/internal/models"
	"github.com/starford/ideashare/internal/testutil"
	"github.com/starford/ideashare/internal/votes"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type fixedGeo string

func (g fixedGeo) Lookup(context.Context) string { return string(g) }

type harness struct {
	svc   *Service
	repo  *ideas.Repository
	db    *docstore.SQLite
	local *localstore.Memory
	clock *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := &clock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	db := testutil.TestDB(t, testutil.IdeaIndexes...)
	local := localstore.NewMemory()
	logger := testutil.Logger()

	ids := identity.NewProvider(local, logger)
	lim := limiter.New(local, ids, logger, limiter.WithClock(c.now), limiter.WithLocation(time.UTC))
	repo := ideas.New(db, logger, ideas.WithClock(c.now))
	agg := votes.New(repo, logger, votes.WithClock(c.now))
	svc := NewService(repo, agg, lim, ids, local, logger,
		WithLocator(fixedGeo("Uruguay")),
		WithFeedback(feedback.New(db, logger, feedback.WithClock(c.now))),
		WithClock(c.now))
	svc.async = func(f func()) { f() }
	return &harness{svc: svc, repo: repo, db: db, local: local, clock: c}
}

func TestSubmitOncePerDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Submit(ctx, "  more shade trees in the plaza ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Outcome != OutcomeCreated || res.Country != "Uruguay" {
		t.Errorf("result = %+v", res)
	}
	idea, err := h.repo.Get(ctx, res.IdeaID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if idea.Text != "more shade trees in the plaza" {
		t.Errorf("Text = %q, want trimmed", idea.Text)
	}

	res, err = h.svc.Submit(ctx, "a second idea on the same day")
	if !errors.Is(err, apperr.ErrAlreadySubmitted) || res.Outcome != OutcomeBlocked {
		t.Errorf("same day = %+v, %v; want blocked", res, err)
	}

	h.clock.t = time.Date(2024, 1, 2, 0, 0, 1, 0, time.UTC)
	res, err = h.svc.Submit(ctx, "a fresh idea for a new day")
	if err != nil || res.Outcome != OutcomeCreated {
		t.Errorf("next day = %+v, %v; want created", res, err)
	}
}

func TestSubmitBlockedByStoreRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.Submit(ctx, "more shade trees in the plaza"); err != nil {
		t.Fatal(err)
	}

	h.svc.ResetSubmission()
	if !h.svc.Status().CanSubmit {
		t.Fatal("reset should clear the local record")
	}
	_, err := h.svc.Submit(ctx, "trying again after a reset")
	if !errors.Is(err, apperr.ErrAlreadySubmitted) {
		t.Errorf("err = %v, want ErrAlreadySubmitted from the store check", err)
	}
}

func TestSubmitFailureDoesNotMark(t *testing.T) {
	h := newHarness(t)
	h.db.Close()

	res, err := h.svc.Submit(context.Background(), "more shade trees in the plaza")
	if !errors.Is(err, apperr.ErrStoreWrite) {
		t.Fatalf("err = %v, want ErrStoreWrite", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %q, want failed", res.Outcome)
	}
	if !h.svc.Status().CanSubmit {
		t.Error("failed create must not consume the daily submission")
	}
}

func TestSubmitRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		text string
		want error
	}{
		{"too short", apperr.ErrInvalidIdea},
		{"hahahahahaha hahahaha", apperr.ErrInvalidIdea},
		{"this plan is stupid but cheap", apperr.ErrProfanity},
	}
	for _, tc := range tests {
		res, err := h.svc.Submit(ctx, tc.text)
		if !errors.Is(err, tc.want) {
			t.Errorf("Submit(%q) err = %v, want %v", tc.text, err, tc.want)
		}
		if res.Outcome != OutcomeRejected || res.Reason == "" {
			t.Errorf("Submit(%q) = %+v, want rejected with reason", tc.text, res)
		}
		if !IsUserError(err) {
			t.Errorf("Submit(%q) error should be a user error", tc.text)
		}
	}

	res, _ := h.svc.Submit(ctx, "this plan is stupid but cheap")
	if len(res.Suggestions) == 0 {
		t.Error("profanity rejection should carry suggestions")
	}
	if !h.svc.Status().CanSubmit {
		t.Error("rejections must not consume the daily submission")
	}
}

func seedIdeas(t *testing.T, h *harness, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range n {
		id, err := h.repo.Submit(context.Background(), fmt.Sprintf("seeded idea number %d", i), "other", "")
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = id
		h.clock.t = h.clock.t.Add(time.Minute)
	}
	return ids
}

func TestFeed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ids := seedIdeas(t, h, 8)
	for i := 0; i < 3; i++ {
		h.repo.IncrementViews(ctx, ids[2])
	}

	page := h.svc.Feed(ctx, FeedRequest{Sort: models.SortByViews})
	if page.Degraded || page.Total != 8 {
		t.Fatalf("page = %+v", page)
	}
	if !page.Window.Virtualized || page.Window.Count != 7 {
		t.Errorf("window = %+v, want virtualized with 7 rendered", page.Window)
	}
	if page.Cards[0].ID != ids[2] || page.Cards[0].Views != 3 {
		t.Errorf("first card = %+v, want most viewed %s", page.Cards[0], ids[2])
	}
	if page.Cards[0].Country == "" {
		t.Error("card country should use the fallback pool")
	}

	unvoted := h.svc.Feed(ctx, FeedRequest{Filter: models.FilterUnvoted, Offset: 1 << 20})
	if unvoted.Window.End != 7 || unvoted.Window.Offset != 8*138-552 {
		t.Errorf("clamped window = %+v", unvoted.Window)
	}
}

func TestFeedClampsLimit(t *testing.T) {
	h := newHarness(t)
	h.svc.maxPageSize = 3
	ctx := context.Background()
	for range 5 {
		if _, err := h.repo.Submit(ctx, "a seeded idea for paging", "someone", "Peru"); err != nil {
			t.Fatal(err)
		}
	}

	for _, limit := range []int{4, math.MaxInt} {
		if page := h.svc.Feed(ctx, FeedRequest{Filter: models.FilterUnvoted, Limit: limit}); page.Total != 3 {
			t.Errorf("limit %d: total = %d, want 3", limit, page.Total)
		}
	}
	if page := h.svc.Feed(ctx, FeedRequest{Limit: 2}); page.Total != 2 {
		t.Errorf("limit 2: total = %d, want 2", page.Total)
	}
}

func TestFeedDegraded(t *testing.T) {
	h := newHarness(t)
	seedIdeas(t, h, 2)
	h.db.Close()

	page := h.svc.Feed(context.Background(), FeedRequest{})
	if !page.Degraded || page.Total != 0 || len(page.Cards) != 0 {
		t.Errorf("page = %+v, want degraded empty page", page)
	}
	if h.svc.RandomUnvoted(context.Background()) != nil {
		t.Error("RandomUnvoted should be nil when the store is down")
	}
}

func TestVoteFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := seedIdeas(t, h, 1)[0]

	if _, err := h.svc.MyVote(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("MyVote before voting err = %v, want ErrNotFound", err)
	}
	if h.svc.RandomUnvoted(ctx) == nil {
		t.Error("RandomUnvoted should find the seeded idea")
	}

	idea, err := h.svc.Vote(ctx, id, 4)
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if idea.AverageStars != 4 || idea.TotalVotes != 1 {
		t.Errorf("idea = %+v", idea)
	}
	v, err := h.svc.MyVote(ctx, id)
	if err != nil || v.Stars != 4 {
		t.Errorf("MyVote = %+v, %v", v, err)
	}
	if _, err := h.svc.Vote(ctx, id, 5); !errors.Is(err, apperr.ErrAlreadyVoted) {
		t.Errorf("second Vote err = %v, want ErrAlreadyVoted", err)
	}
	if h.svc.RandomUnvoted(ctx) != nil {
		t.Error("no unvoted ideas remain")
	}
}

func TestViewCountsInBackground(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := seedIdeas(t, h, 1)[0]

	idea, err := h.svc.View(ctx, id)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if idea.Views != 0 {
		t.Errorf("returned Views = %d, want snapshot 0", idea.Views)
	}
	stored, _ := h.repo.Get(ctx, id)
	if stored.Views != 1 {
		t.Errorf("stored Views = %d, want 1", stored.Views)
	}

	if _, err := h.svc.View(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("View(missing) err = %v, want ErrNotFound", err)
	}
}

func TestViewAsync(t *testing.T) {
	h := newHarness(t)
	h.svc.async = h.svc.goBackground
	ctx := context.Background()
	id := seedIdeas(t, h, 1)[0]

	if _, err := h.svc.View(ctx, id); err != nil {
		t.Fatal(err)
	}
	h.svc.Wait()
	stored, _ := h.repo.Get(ctx, id)
	if stored.Views != 1 {
		t.Errorf("Views = %d, want 1 after Wait", stored.Views)
	}
}

func TestPreferences(t *testing.T) {
	h := newHarness(t)
	if err := h.svc.SetPreference("theme", "dark"); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if err := h.svc.SetPreference("theme", "neon"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad value err = %v, want ErrInvalidInput", err)
	}
	if err := h.svc.SetPreference("font", "serif"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad key err = %v, want ErrInvalidInput", err)
	}
	if got := h.svc.Preferences(); got["theme"] != "dark" || len(got) != 1 {
		t.Errorf("Preferences = %v", got)
	}
	if v, _, _ := h.local.Get(localstore.KeyTheme); v != "dark" {
		t.Errorf("stored theme = %q", v)
	}
}

func TestSubmitFeedback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.svc.SubmitFeedback(ctx, "  show the top ideas of the week ")
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	doc, err := h.db.Get(ctx, feedback.DefaultCollection, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Fields["text"] != "show the top ideas of the week" || doc.Fields["userId"] != h.svc.Status().Identity {
		t.Errorf("stored = %v", doc.Fields)
	}

	if _, err := h.svc.SubmitFeedback(ctx, "\t "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("blank err = %v, want ErrInvalidInput", err)
	}
	if !h.svc.Status().CanSubmit {
		t.Error("feedback must not count as today's idea")
	}
}

func TestIdentityAndPreferencesSurviveReopen(t *testing.T) {
	logger := testutil.Logger()
	db := testutil.TestDB(t, testutil.IdeaIndexes...)
	local := testutil.TestLocal(t)

	open := func(store localstore.Store) *Service {
		ids := identity.NewProvider(store, logger)
		lim := limiter.New(store, ids, logger, limiter.WithLocation(time.UTC))
		repo := ideas.New(db, logger)
		svc := NewService(repo, votes.New(repo, logger), lim, ids, store, logger)
		t.Cleanup(svc.Wait)
		return svc
	}

	first := open(local)
	if err := first.SetPreference("language", "es"); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Submit(context.Background(), "more shade trees in the plaza"); err != nil {
		t.Fatal(err)
	}

	reopened, err := localstore.Open(local.Path(), logger)
	if err != nil {
		t.Fatal(err)
	}
	second := open(reopened)
	if got := second.Preferences()["language"]; got != "es" {
		t.Errorf("language = %q after reopen", got)
	}
	if st := second.Status(); st.CanSubmit || st.Identity != first.Status().Identity {
		t.Errorf("status after reopen = %+v, want same identity and blocked", st)
	}
}
