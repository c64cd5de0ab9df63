package feedback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/docstore"
	"github.com/starford/ideashare/internal/testutil"
)

func TestSubmit(t *testing.T) {
	db := testutil.TestDB(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(db, testutil.Logger(), WithClock(func() time.Time { return at }))
	ctx := context.Background()

	id, err := r.Submit(ctx, "  please add a dark map view \n", "user_1_abc")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	doc, err := db.Get(ctx, DefaultCollection, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Fields[fieldText] != "please add a dark map view" {
		t.Errorf("text = %q, want trimmed", doc.Fields[fieldText])
	}
	if doc.Fields[fieldUserID] != "user_1_abc" {
		t.Errorf("userId = %v", doc.Fields[fieldUserID])
	}
	if ms, ok := doc.Fields[fieldCreatedAt].(float64); !ok || int64(ms) != at.UnixMilli() {
		t.Errorf("createdAt = %v (%T), want %d", doc.Fields[fieldCreatedAt], doc.Fields[fieldCreatedAt], at.UnixMilli())
	}
}

func TestSubmitInvalid(t *testing.T) {
	db := testutil.TestDB(t)
	r := New(db, testutil.Logger())
	ctx := context.Background()

	for name, text := range map[string]string{
		"empty":    "",
		"blank":    " \t\n ",
		"too long": strings.Repeat("a", MaxLength+1),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := r.Submit(ctx, text, "user_1_abc"); !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
	if docs, err := db.Query(ctx, DefaultCollection, docstore.Query{}); err != nil || len(docs) != 0 {
		t.Errorf("stored = %d, %v; want nothing written", len(docs), err)
	}
}
