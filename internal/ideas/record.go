package ideas

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/ideashare/internal/docstore"
	"github.com/starford/ideashare/internal/models"
)

// Document field names. Timestamps are stored as unix milliseconds.
const (
	fieldText         = "text"
	fieldAuthorID     = "authorId"
	fieldCountry      = "country"
	fieldCreatedAt    = "createdAt"
	fieldVotes        = "votes"
	fieldAverageStars = "averageStars"
	fieldTotalVotes   = "totalVotes"
	fieldViews        = "views"
)

type record struct {
	Text         string       `json:"text"`
	AuthorID     string       `json:"authorId"`
	Country      string       `json:"country"`
	CreatedAt    int64        `json:"createdAt"`
	Votes        []voteRecord `json:"votes"`
	AverageStars float64      `json:"averageStars"`
	TotalVotes   int          `json:"totalVotes"`
	Views        int          `json:"views"`
}

type voteRecord struct {
	VoterID   string `json:"voterId"`
	Stars     int    `json:"stars"`
	CreatedAt int64  `json:"createdAt"`
}

// fromDocument decodes a stored document. Backends return loosely typed
// fields, so they are normalised through JSON.
func fromDocument(doc docstore.Document) (models.Idea, error) {
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return models.Idea{}, fmt.Errorf("ideas: encode %s: %w", doc.ID, err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.Idea{}, fmt.Errorf("ideas: decode %s: %w", doc.ID, err)
	}
	idea := models.Idea{
		ID:           doc.ID,
		Text:         rec.Text,
		AuthorID:     rec.AuthorID,
		Country:      rec.Country,
		CreatedAt:    time.UnixMilli(rec.CreatedAt),
		Votes:        make([]models.Vote, 0, len(rec.Votes)),
		AverageStars: rec.AverageStars,
		TotalVotes:   rec.TotalVotes,
		Views:        rec.Views,
		Version:      doc.Version,
	}
	for _, v := range rec.Votes {
		idea.Votes = append(idea.Votes, models.Vote{
			VoterID:   v.VoterID,
			Stars:     v.Stars,
			CreatedAt: time.UnixMilli(v.CreatedAt),
		})
	}
	return idea, nil
}

func fromDocuments(docs []docstore.Document) ([]models.Idea, error) {
	out := make([]models.Idea, 0, len(docs))
	for _, doc := range docs {
		idea, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, idea)
	}
	return out, nil
}

// voteFields encodes votes as plain maps so every backend stores the same
// shape.
func voteFields(votes []models.Vote) []map[string]any {
	out := make([]map[string]any, len(votes))
	for i, v := range votes {
		out[i] = map[string]any{
			"voterId":   v.VoterID,
			"stars":     v.Stars,
			"createdAt": v.CreatedAt.UnixMilli(),
		}
	}
	return out
}
