package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/starford/ideashare/internal/ideaservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(svc *ideaservice.Service, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Submission limiter.
	r.Get("/status", h.Status)
	r.Delete("/submission", h.ResetSubmission)

	// Ideas.
	r.Get("/ideas", h.ListIdeas)
	r.Post("/ideas", h.SubmitIdea)
	r.Get("/ideas/random", h.RandomIdea)
	r.Get("/ideas/{id}", h.GetIdea)

	// Votes.
	r.Post("/ideas/{id}/votes", h.CastVote)
	r.Get("/ideas/{id}/votes/me", h.MyVote)

	// Feedback.
	r.Post("/feedback", h.SubmitFeedback)

	// Preferences.
	r.Get("/preferences", h.Preferences)
	r.Put("/preferences/{key}", h.SetPreference)

	return r
}
