package feed

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/starford/ideashare/internal/models"
	"github.com/starford/ideashare/internal/votes"
)

// fallbackCountries is the pool a card's country is drawn from when the idea
// has none recorded.
var fallbackCountries = []string{
	"Spain", "Mexico", "Argentina", "Chile", "Colombia",
	"Peru", "United States", "France", "Italy", "Germany",
}

// Card is the display model for one rendered idea.
type Card struct {
	ID         string  `json:"id"`
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Stars      float64 `json:"stars"`
	TotalVotes int     `json:"total_votes"`
	Views      int     `json:"views"`
	Country    string  `json:"country"`
	Date       string  `json:"date"`
}

// Cards builds the cards for the window's items. items must be the full
// ordered list the window was computed over.
func Cards(items []models.Idea, w Window, now time.Time) []Card {
	visible := Slice(items, w)
	out := make([]Card, len(visible))
	for i, idea := range visible {
		out[i] = NewCard(idea, w.Start+i, now)
	}
	return out
}

// NewCard builds the card for idea at list position index.
func NewCard(idea models.Idea, index int, now time.Time) Card {
	return Card{
		ID:         idea.ID,
		Index:      index,
		Text:       idea.Text,
		Stars:      votes.DisplayStars(idea.AverageStars),
		TotalVotes: idea.TotalVotes,
		Views:      idea.Views,
		Country:    Country(idea),
		Date:       humanize.RelTime(idea.CreatedAt, now, "ago", "from now"),
	}
}

// Country returns the idea's recorded country, or a stable pick from the
// fallback pool keyed by the idea id.
func Country(idea models.Idea) string {
	if idea.Country != "" && idea.Country != models.UnknownCountry {
		return idea.Country
	}
	id := idea.ID
	if id == "" {
		id = "0"
	}
	var h int32
	for _, r := range id {
		h = h<<5 - h + int32(r)
	}
	n := int64(h)
	if n < 0 {
		n = -n
	}
	return fallbackCountries[n%int64(len(fallbackCountries))]
}
