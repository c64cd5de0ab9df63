package ideas

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/docstore"
	"github.com/starford/ideashare/internal/models"
)

// lister is a strategy for the vote-filtered listings.
type lister interface {
	list(ctx context.Context, f models.Filter, limit int) ([]models.Idea, error)
}

// indexedLister lets the store filter and order. It needs a composite index
// over totalVotes and createdAt.
type indexedLister struct{ r *Repository }

func (l indexedLister) list(ctx context.Context, f models.Filter, limit int) ([]models.Idea, error) {
	q := docstore.Query{
		OrderBy: &docstore.Order{Field: fieldCreatedAt, Desc: true},
		Limit:   limit,
	}
	if f == models.FilterVoted {
		q = q.Where(fieldTotalVotes, docstore.OpGt, 0)
	} else {
		q = q.Where(fieldTotalVotes, docstore.OpEq, 0)
	}
	docs, err := l.r.store.Query(ctx, l.r.collection, q)
	if err != nil {
		return nil, fmt.Errorf("ideas: list %s: %w", f, err)
	}
	ideas, err := fromDocuments(docs)
	if err != nil {
		return nil, apperr.Read("decode", err)
	}
	return ideas, nil
}

// scanLister fetches a broader unfiltered page and filters in memory.
// Voted ideas are ordered by averageStars, then newest first.
type scanLister struct{ r *Repository }

func (l scanLister) list(ctx context.Context, f models.Filter, limit int) ([]models.Idea, error) {
	page := 0
	if limit > 0 && limit <= math.MaxInt/l.r.scanFactor {
		page = limit * l.r.scanFactor
	}
	all, err := l.r.List(ctx, page)
	if err != nil {
		return nil, err
	}
	out := make([]models.Idea, 0, len(all))
	for _, idea := range all {
		if (f == models.FilterVoted) == (idea.TotalVotes > 0) {
			out = append(out, idea)
		}
	}
	if f == models.FilterVoted {
		slices.SortStableFunc(out, func(a, b models.Idea) int {
			if a.AverageStars != b.AverageStars {
				if a.AverageStars > b.AverageStars {
					return -1
				}
				return 1
			}
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
