package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/ideashare/internal/apperr"
	"github.com/starford/ideashare/internal/feed"
	"github.com/starford/ideashare/internal/ideaservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *ideaservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *ideaservice.Service) *Handler {
	return &Handler{svc: svc}
}

// Status handles GET /api/status.
//
//	@Summary		Daily submission state for the current identity
//	@Tags			submission
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// ResetSubmission handles DELETE /api/submission.
//
//	@Summary		Clear today's local submission record
//	@Tags			submission
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/submission [delete]
func (h *Handler) ResetSubmission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ResetSubmission())
}

// ListIdeas handles GET /api/ideas.
//
//	@Summary		Windowed idea feed
//	@Tags			ideas
//	@Produce		json
//	@Param			filter	query		string	false	"Which ideas to list"	Enums(all, voted, unvoted)
//	@Param			sort	query		string	false	"Sort key"				Enums(date, stars, views)
//	@Param			offset	query		int		false	"Scroll offset in pixels"
//	@Param			limit	query		int		false	"How many ideas to load"
//	@Success		200		{object}	FeedResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ideas [get]
func (h *Handler) ListIdeas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, ok := feed.ParseFilter(q.Get("filter"))
	if !ok && q.Get("filter") != "" {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown filter"))
		return
	}
	sortKey, ok := feed.ParseSortKey(q.Get("sort"))
	if !ok && q.Get("sort") != "" {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown sort"))
		return
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	page := h.svc.Feed(r.Context(), ideaservice.FeedRequest{
		Filter: filter,
		Sort:   sortKey,
		Offset: offset,
		Limit:  limit,
	})
	writeJSON(w, http.StatusOK, page)
}

// SubmitIdea handles POST /api/ideas.
//
//	@Summary		Submit today's idea
//	@Tags			ideas
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SubmitIdeaRequest	true	"Idea text"
//	@Success		201		{object}	SubmitResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	SubmitResponse
//	@Failure		429		{object}	SubmitResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ideas [post]
func (h *Handler) SubmitIdea(w http.ResponseWriter, r *http.Request) {
	var req SubmitIdeaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Submit(r.Context(), req.Text)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, res)
	case errors.Is(err, apperr.ErrAlreadySubmitted):
		writeJSON(w, http.StatusTooManyRequests, res)
	case ideaservice.IsUserError(err):
		writeJSON(w, http.StatusUnprocessableEntity, res)
	default:
		slog.Error("submit idea failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("could not save idea"))
	}
}

// RandomIdea handles GET /api/ideas/random.
//
//	@Summary		Pick a random idea nobody has voted on
//	@Tags			ideas
//	@Produce		json
//	@Success		200	{object}	IdeaResponse
//	@Success		204
//	@Security		BearerAuth
//	@Router			/ideas/random [get]
func (h *Handler) RandomIdea(w http.ResponseWriter, r *http.Request) {
	idea := h.svc.RandomUnvoted(r.Context())
	if idea == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toIdeaResponse(idea))
}

// GetIdea handles GET /api/ideas/{id}.
//
//	@Summary		Get one idea and count the view
//	@Tags			ideas
//	@Produce		json
//	@Param			id	path		string	true	"Idea ID"
//	@Success		200	{object}	IdeaResponse
//	@Failure		404	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ideas/{id} [get]
func (h *Handler) GetIdea(w http.ResponseWriter, r *http.Request) {
	idea, err := h.svc.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("get idea failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("could not load idea"))
		return
	}
	writeJSON(w, http.StatusOK, toIdeaResponse(idea))
}

// CastVote handles POST /api/ideas/{id}/votes.
//
//	@Summary		Rate an idea with 1 to 5 stars
//	@Tags			votes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Idea ID"
//	@Param			body	body		CastVoteRequest	true	"Star rating"
//	@Success		200		{object}	IdeaResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ideas/{id}/votes [post]
func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	idea, err := h.svc.Vote(r.Context(), chi.URLParam(r, "id"), req.Stars)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toIdeaResponse(idea))
	case errors.Is(err, apperr.ErrInvalidStars):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrAlreadyVoted):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		slog.Error("cast vote failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(apperr.ErrVoteSubmission.Error()))
	}
}

// MyVote handles GET /api/ideas/{id}/votes/me.
//
//	@Summary		The current identity's vote on an idea
//	@Tags			votes
//	@Produce		json
//	@Param			id	path		string	true	"Idea ID"
//	@Success		200	{object}	VoteResponse
//	@Failure		404	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ideas/{id}/votes/me [get]
func (h *Handler) MyVote(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.MyVote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("no vote"))
			return
		}
		slog.Error("get vote failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("could not load vote"))
		return
	}
	writeJSON(w, http.StatusOK, toVoteResponse(v))
}

// SubmitFeedback handles POST /api/feedback.
//
//	@Summary		Send free-text feedback about the app
//	@Tags			feedback
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SubmitFeedbackRequest	true	"Feedback text"
//	@Success		201		{object}	FeedbackResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/feedback [post]
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req SubmitFeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := h.svc.SubmitFeedback(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		slog.Error("submit feedback failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("could not save feedback"))
		return
	}
	writeJSON(w, http.StatusCreated, FeedbackResponse{ID: id})
}

// Preferences handles GET /api/preferences.
//
//	@Summary		Stored UI preferences
//	@Tags			preferences
//	@Produce		json
//	@Success		200	{object}	PreferencesResponse
//	@Security		BearerAuth
//	@Router			/preferences [get]
func (h *Handler) Preferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PreferencesResponse{Preferences: h.svc.Preferences()})
}

// SetPreference handles PUT /api/preferences/{key}.
//
//	@Summary		Store a UI preference
//	@Tags			preferences
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string					true	"Preference name"	Enums(language, theme)
//	@Param			body	body		SetPreferenceRequest	true	"Preference value"
//	@Success		200		{object}	PreferencesResponse
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preferences/{key} [put]
func (h *Handler) SetPreference(w http.ResponseWriter, r *http.Request) {
	var req SetPreferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetPreference(chi.URLParam(r, "key"), req.Value); err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		slog.Error("set preference failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, PreferencesResponse{Preferences: h.svc.Preferences()})
}
