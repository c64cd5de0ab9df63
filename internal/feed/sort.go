package feed

import (
	"cmp"
	"slices"
	"strings"

	"github.com/starford/ideashare/internal/models"
)

// Sort returns a sorted copy of items. Every key orders descending; ties keep
// their input order. An unknown key returns a copy in input order.
func Sort(items []models.Idea, key models.SortKey) []models.Idea {
	out := slices.Clone(items)
	var compare func(a, b models.Idea) int
	switch key {
	case models.SortByStars:
		compare = func(a, b models.Idea) int { return cmp.Compare(b.AverageStars, a.AverageStars) }
	case models.SortByDate:
		compare = func(a, b models.Idea) int { return b.CreatedAt.Compare(a.CreatedAt) }
	case models.SortByViews:
		compare = func(a, b models.Idea) int { return cmp.Compare(b.Views, a.Views) }
	default:
		return out
	}
	slices.SortStableFunc(out, compare)
	return out
}

// ParseSortKey maps a user-supplied key to a SortKey. Empty or unknown input
// yields SortByDate and false.
func ParseSortKey(s string) (models.SortKey, bool) {
	switch k := models.SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case models.SortByStars, models.SortByDate, models.SortByViews:
		return k, true
	}
	return models.SortByDate, false
}

// ParseFilter maps a user-supplied filter name. Empty or unknown input yields
// FilterAll and false.
func ParseFilter(s string) (models.Filter, bool) {
	switch f := models.Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case models.FilterAll, models.FilterVoted, models.FilterUnvoted:
		return f, true
	}
	return models.FilterAll, false
}
