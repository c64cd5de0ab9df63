package votes

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/ideas"
	"github.com/starford/ideashare/internal/models"
	"github.com/starford/ideashare/internal/testutil"
)

func testSetup(t *testing.T, opts ...Option) (*Aggregator, *ideas.Repository) {
	t.Helper()
	repo := ideas.New(testutil.TestDB(t, testutil.IdeaIndexes...), testutil.Logger())
	return New(repo, testutil.Logger(), opts...), repo
}

func newIdea(t *testing.T, repo *ideas.Repository) string {
	t.Helper()
	id, err := repo.Submit(context.Background(), "a bench in every park", "author", "Spain")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return id
}

func TestAggregateScenario(t *testing.T) {
	a, repo := testSetup(t)
	ctx := context.Background()
	id := newIdea(t, repo)

	for i, s := range []int{5, 4, 5} {
		if _, err := a.CastVote(ctx, id, s, fmt.Sprintf("voter%d", i)); err != nil {
			t.Fatalf("CastVote: %v", err)
		}
	}
	idea, _ := repo.Get(ctx, id)
	if idea.AverageStars != 4.67 || idea.TotalVotes != 3 {
		t.Errorf("after 3 votes = %v/%d, want 4.67/3", idea.AverageStars, idea.TotalVotes)
	}

	got, err := a.CastVote(ctx, id, 3, "voter3")
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if got.AverageStars != 4.25 || got.TotalVotes != 4 {
		t.Errorf("after 4 votes = %v/%d, want 4.25/4", got.AverageStars, got.TotalVotes)
	}
	idea, _ = repo.Get(ctx, id)
	if idea.AverageStars != 4.25 || idea.TotalVotes != 4 || len(idea.Votes) != 4 {
		t.Errorf("stored = %v/%d/%d votes", idea.AverageStars, idea.TotalVotes, len(idea.Votes))
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		stars []int
		avg   float64
	}{
		{nil, 0},
		{[]int{5}, 5},
		{[]int{1, 2}, 1.5},
		{[]int{5, 4, 5}, 4.67},
		{[]int{1, 1, 2}, 1.33},
		{[]int{1, 2, 2}, 1.67},
		{[]int{5, 5, 4, 4, 4, 4, 4, 4}, 4.25},
	}
	for _, tc := range tests {
		votes := make([]models.Vote, len(tc.stars))
		for i, s := range tc.stars {
			votes[i] = models.Vote{Stars: s}
		}
		avg, n := Aggregate(votes)
		if avg != tc.avg || n != len(tc.stars) {
			t.Errorf("Aggregate(%v) = %v/%d, want %v/%d", tc.stars, avg, n, tc.avg, len(tc.stars))
		}
	}
}

func TestHasVotedIsStable(t *testing.T) {
	a, repo := testSetup(t)
	ctx := context.Background()
	id := newIdea(t, repo)

	first, err := a.HasVoted(ctx, id, "v")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := a.HasVoted(ctx, id, "v")
	if first || second {
		t.Errorf("HasVoted = %v, %v; want false, false", first, second)
	}

	_, _ = a.CastVote(ctx, id, 4, "v")
	first, _ = a.HasVoted(ctx, id, "v")
	second, _ = a.HasVoted(ctx, id, "v")
	if !first || !second {
		t.Errorf("HasVoted = %v, %v; want true, true", first, second)
	}

	v, err := a.GetVote(ctx, id, "v")
	if err != nil || v == nil || v.Stars != 4 {
		t.Errorf("GetVote = %+v, %v", v, err)
	}
}

func TestVoteExclusivity(t *testing.T) {
	a, repo := testSetup(t)
	ctx := context.Background()
	id := newIdea(t, repo)

	if _, err := a.CastVote(ctx, id, 2, "v"); err != nil {
		t.Fatalf("first CastVote: %v", err)
	}
	_, err := a.CastVote(ctx, id, 5, "v")
	if !errors.Is(err, apperr.ErrAlreadyVoted) {
		t.Fatalf("second CastVote err = %v, want ErrAlreadyVoted", err)
	}
	idea, _ := repo.Get(ctx, id)
	if idea.AverageStars != 2 || idea.TotalVotes != 1 {
		t.Errorf("aggregates changed: %v/%d", idea.AverageStars, idea.TotalVotes)
	}
}

func TestInvalidStars(t *testing.T) {
	a, repo := testSetup(t)
	id := newIdea(t, repo)
	for _, s := range []int{0, 6, -1} {
		if _, err := a.CastVote(context.Background(), id, s, "v"); !errors.Is(err, apperr.ErrInvalidStars) {
			t.Errorf("stars %d: err = %v, want ErrInvalidStars", s, err)
		}
	}
}

func TestVoteOnMissingIdea(t *testing.T) {
	a, _ := testSetup(t)
	_, err := a.CastVote(context.Background(), "missing", 3, "v")
	if !errors.Is(err, apperr.ErrVoteSubmission) || !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrVoteSubmission wrapping ErrNotFound", err)
	}
}

// racingRepo injects a concurrent vote before the first conflicting write.
type racingRepo struct {
	*ideas.Repository
	races int
}

func (r *racingRepo) UpdateVotes(ctx context.Context, id string, expect int64, votes []models.Vote, avg float64, total int) error {
	if r.races > 0 {
		r.races--
		idea, err := r.Repository.Get(ctx, id)
		if err != nil {
			return err
		}
		other := append(idea.Votes, models.Vote{VoterID: fmt.Sprintf("racer%d", r.races), Stars: 1})
		a, n := Aggregate(other)
		if err := r.Repository.UpdateVotes(ctx, id, -1, other, a, n); err != nil {
			return err
		}
	}
	return r.Repository.UpdateVotes(ctx, id, expect, votes, avg, total)
}

func TestCASRetriesOnConflict(t *testing.T) {
	_, repo := testSetup(t)
	ctx := context.Background()
	id := newIdea(t, repo)
	racing := &racingRepo{Repository: repo, races: 2}
	a := New(racing, testutil.Logger())

	got, err := a.CastVote(ctx, id, 5, "me")
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if got.TotalVotes != 3 {
		t.Errorf("TotalVotes = %d, want 3 (no vote lost)", got.TotalVotes)
	}
	idea, _ := repo.Get(ctx, id)
	if idea.TotalVotes != 3 || idea.AverageStars != 2.33 {
		t.Errorf("stored = %v/%d, want 2.33/3", idea.AverageStars, idea.TotalVotes)
	}
}

func TestCASGivesUp(t *testing.T) {
	_, repo := testSetup(t)
	id := newIdea(t, repo)
	a := New(&racingRepo{Repository: repo, races: 10}, testutil.Logger(), WithMaxAttempts(2))

	_, err := a.CastVote(context.Background(), id, 5, "me")
	if !errors.Is(err, apperr.ErrVoteSubmission) || !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrVoteSubmission wrapping ErrConflict", err)
	}
}

func TestOverwriteModeLosesRacingVote(t *testing.T) {
	_, repo := testSetup(t)
	ctx := context.Background()
	id := newIdea(t, repo)
	a := New(&racingRepo{Repository: repo, races: 1}, testutil.Logger(), WithMode(ModeOverwrite))

	if _, err := a.CastVote(ctx, id, 5, "me"); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	idea, _ := repo.Get(ctx, id)
	if idea.TotalVotes != 1 {
		t.Errorf("TotalVotes = %d, want 1 (overwrite drops the racing vote)", idea.TotalVotes)
	}
}

func TestRandomUnvoted(t *testing.T) {
	ctx := context.Background()
	_, repo := testSetup(t)

	a := New(repo, testutil.Logger())
	if got, err := a.RandomUnvoted(ctx, 10); err != nil || got != nil {
		t.Errorf("empty RandomUnvoted = %v, %v; want nil, nil", got, err)
	}

	voted := newIdea(t, repo)
	open := newIdea(t, repo)
	_, _ = a.CastVote(ctx, voted, 3, "v")

	picked := -1
	a = New(repo, testutil.Logger(), WithRand(func(n int) int { picked = n; return n - 1 }))
	got, err := a.RandomUnvoted(ctx, 10)
	if err != nil {
		t.Fatalf("RandomUnvoted: %v", err)
	}
	if got == nil || got.ID != open {
		t.Errorf("RandomUnvoted = %+v, want %s", got, open)
	}
	if picked != 1 {
		t.Errorf("candidate count = %d, want 1", picked)
	}
}

func TestRandomUnvotedReachesOlderIdeasWhenScanning(t *testing.T) {
	ctx := context.Background()
	repo := ideas.New(testutil.TestDB(t), testutil.Logger())
	a := New(repo, testutil.Logger())

	for range 12 {
		newIdea(t, repo)
	}
	// Without the composite index the newest-first scan page is fully voted.
	list, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, idea := range list[:10] {
		if _, err := a.CastVote(ctx, idea.ID, 4, "voter"); err != nil {
			t.Fatalf("CastVote: %v", err)
		}
	}

	got, err := a.RandomUnvoted(ctx, 2)
	if err != nil {
		t.Fatalf("RandomUnvoted: %v", err)
	}
	if got == nil || got.TotalVotes != 0 {
		t.Errorf("RandomUnvoted = %+v, want one of the 2 older unvoted ideas", got)
	}
}

func TestDisplayStars(t *testing.T) {
	for in, want := range map[float64]float64{4.67: 4.7, 4.25: 4.3, 3: 3, 0: 0, 2.33: 2.3} {
		if got := DisplayStars(in); got != want {
			t.Errorf("DisplayStars(%v) = %v, want %v", in, got, want)
		}
	}
}
