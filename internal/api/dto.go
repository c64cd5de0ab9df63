package api

import (
	"time"

	"github.com/starford/ideashare/internal/ideaservice"
	"github.com/starford/ideashare/internal/limiter"
	"github.com/starford/ideashare/internal/models"
	"github.com/starford/ideashare/internal/votes"
)

// SubmitIdeaRequest is the request body for submitting an idea.
type SubmitIdeaRequest struct {
	Text string `json:"text" example:"Plant more trees along the river" validate:"required"`
}

// CastVoteRequest is the request body for rating an idea.
type CastVoteRequest struct {
	Stars int `json:"stars" example:"4" validate:"required"`
}

// SubmitFeedbackRequest is the request body for sending feedback.
type SubmitFeedbackRequest struct {
	Text string `json:"text" example:"Let me filter ideas by country" validate:"required"`
}

// FeedbackResponse identifies stored feedback.
type FeedbackResponse struct {
	ID string `json:"id"`
}

// SetPreferenceRequest is the request body for storing a preference.
type SetPreferenceRequest struct {
	Value string `json:"value" example:"dark" validate:"required"`
}

// SubmitResponse is returned by POST /ideas (aliased from the domain layer).
type SubmitResponse = ideaservice.SubmitResult

// FeedResponse is a windowed page of idea cards (aliased from the domain layer).
type FeedResponse = ideaservice.FeedPage

// StatusResponse is the daily limiter state (aliased from the domain layer).
type StatusResponse = limiter.Status

// IdeaResponse is a single idea without voter identities.
type IdeaResponse struct {
	ID           string  `json:"id" example:"6651f0c2a1b2c3d4e5f60718" validate:"required"`
	Text         string  `json:"text" example:"Plant more trees along the river" validate:"required"`
	Country      string  `json:"country" example:"Uruguay" validate:"required"`
	CreatedAt    string  `json:"created_at" example:"2024-01-01T09:00:00Z" validate:"required"`
	AverageStars float64 `json:"average_stars" example:"4.25" validate:"required"`
	DisplayStars float64 `json:"display_stars" example:"4.3" validate:"required"`
	TotalVotes   int     `json:"total_votes" example:"4" validate:"required"`
	Views        int     `json:"views" example:"12" validate:"required"`
}

// VoteResponse is the current identity's vote on an idea.
type VoteResponse struct {
	Stars     int    `json:"stars" example:"4" validate:"required"`
	CreatedAt string `json:"created_at" example:"2024-01-01T09:00:00Z" validate:"required"`
}

// PreferencesResponse lists stored UI preferences.
type PreferencesResponse struct {
	Preferences map[string]string `json:"preferences" validate:"required"`
}

func toVoteResponse(v *models.Vote) VoteResponse {
	return VoteResponse{Stars: v.Stars, CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339)}
}

func toIdeaResponse(i *models.Idea) IdeaResponse {
	return IdeaResponse{
		ID:           i.ID,
		Text:         i.Text,
		Country:      i.Country,
		CreatedAt:    i.CreatedAt.UTC().Format(time.RFC3339),
		AverageStars: i.AverageStars,
		DisplayStars: votes.DisplayStars(i.AverageStars),
		TotalVotes:   i.TotalVotes,
		Views:        i.Views,
	}
}
