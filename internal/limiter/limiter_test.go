package limiter

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/ideashare/internal/localstore"
)

type fixedID string

func (f fixedID) GetOrCreate() string { return string(f) }

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func testLimiter(store localstore.Store, id string, c *clock) *Limiter {
	return New(store, fixedID(id), slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(c.now), WithLocation(time.UTC))
}

func TestDailyLimit(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)}
	l := testLimiter(localstore.NewMemory(), "u1", c)

	if !l.CanSubmitToday() {
		t.Fatal("fresh identifier should be eligible")
	}
	l.MarkSubmittedToday()
	if l.CanSubmitToday() {
		t.Error("should be blocked after marking on the same day")
	}

	c.t = time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC)
	if l.CanSubmitToday() {
		t.Error("should stay blocked until midnight")
	}

	c.t = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !l.CanSubmitToday() {
		t.Error("should be eligible on the next calendar day")
	}
}

func TestLimitIsPerIdentifier(t *testing.T) {
	store := localstore.NewMemory()
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	testLimiter(store, "u1", c).MarkSubmittedToday()

	if !testLimiter(store, "u2", c).CanSubmitToday() {
		t.Error("another identifier should not be blocked")
	}
	if testLimiter(store, "u1", c).CanSubmitToday() {
		t.Error("u1 should be blocked for any limiter instance sharing the store")
	}
}

func TestStatusAndReset(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)}
	l := testLimiter(localstore.NewMemory(), "u1", c)
	l.MarkSubmittedToday()

	st := l.Status()
	if st.CanSubmit || !st.HasSubmittedToday {
		t.Errorf("status = %+v, want blocked", st)
	}
	if st.LastSubmissionDate != "2024-03-05" || st.Today != "2024-03-05" {
		t.Errorf("dates = %q/%q, want 2024-03-05", st.LastSubmissionDate, st.Today)
	}

	l.Reset()
	if !l.CanSubmitToday() {
		t.Error("reset should make the identifier eligible")
	}
}

func TestFailsOpen(t *testing.T) {
	store := localstore.NewMemory()
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := testLimiter(store, "u1", c)
	l.MarkSubmittedToday()

	store.SetBroken(true)
	if !l.CanSubmitToday() {
		t.Error("storage failure should fail open")
	}
	l.MarkSubmittedToday() // must not panic
}

func TestStartOfToday(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 15, 4, 5, 0, time.UTC)}
	l := testLimiter(localstore.NewMemory(), "u1", c)
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := l.StartOfToday(); !got.Equal(want) {
		t.Errorf("StartOfToday = %v, want %v", got, want)
	}
}
