// Package models defines the domain types for ideashare.
package models

import "time"

// Text length bounds for a submitted idea, counted in runes.
const (
	MinTextLength = 10
	MaxTextLength = 600
)

// Star rating bounds.
const (
	MinStars = 1
	MaxStars = 5
)

// UnknownCountry is stored when geolocation fails.
const UnknownCountry = "Unknown"

// Idea is a user-submitted text record.
type Idea struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	AuthorID     string    `json:"author_id,omitempty"`
	Country      string    `json:"country"`
	CreatedAt    time.Time `json:"created_at"`
	Votes        []Vote    `json:"votes"`
	AverageStars float64   `json:"average_stars"`
	TotalVotes   int       `json:"total_votes"`
	Views        int       `json:"views"`
	Version      int64     `json:"version"`
}

// Vote is one voter's star rating of one idea.
type Vote struct {
	VoterID   string    `json:"voter_id"`
	Stars     int       `json:"stars"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteBy returns the vote cast by voterID, if any.
func (i *Idea) VoteBy(voterID string) (Vote, bool) {
	for _, v := range i.Votes {
		if v.VoterID == voterID {
			return v, true
		}
	}
	return Vote{}, false
}

// SubmissionRecord is the locally persisted date of the last submission.
type SubmissionRecord struct {
	LastSubmissionDate string `json:"last_submission_date"`
}

// SortKey selects the feed ordering.
type SortKey string

const (
	SortByStars SortKey = "stars"
	SortByDate  SortKey = "date"
	SortByViews SortKey = "views"
)

// Filter selects which ideas a feed lists.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterVoted   Filter = "voted"
	FilterUnvoted Filter = "unvoted"
)
