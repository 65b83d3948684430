package api

import (
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
)

// CreateNoteRequest is the request body for capturing a note.
type CreateNoteRequest struct {
	Text      string `json:"text" example:"Made pasta with garlic tonight" validate:"required"`
	UserID    int64  `json:"user_id" example:"1"`
	Username  string `json:"username,omitempty" example:"sam"`
	MessageID int64  `json:"message_id,omitempty" example:"1042"`
}

// ConfirmNoteRequest resolves a pending classification. An empty category
// accepts the proposed one.
type ConfirmNoteRequest struct {
	UserID   int64  `json:"user_id" example:"1" validate:"required"`
	Category string `json:"category,omitempty" example:"gardening"`
}

// SavedNoteResponse is returned when a note was written to storage.
type SavedNoteResponse struct {
	Status     string  `json:"status" example:"saved" validate:"required"`
	Path       string  `json:"path" example:"cooking/2026-08-28_pasta_dinner.md" validate:"required"`
	Category   string  `json:"category" example:"cooking" validate:"required"`
	Filename   string  `json:"filename" example:"2026-08-28_pasta_dinner.md" validate:"required"`
	Confidence float64 `json:"confidence" example:"0.92"`
}

// PendingNoteResponse is returned when a confident new category awaits
// user confirmation.
type PendingNoteResponse struct {
	Status            string  `json:"status" example:"awaiting_confirmation" validate:"required"`
	ProposedCategory  string  `json:"proposed_category" example:"gardening" validate:"required"`
	Confidence        float64 `json:"confidence" example:"0.85"`
	SuggestedFilename string  `json:"suggested_filename" example:"tomato_planting"`
	Cancelled         bool    `json:"cancelled_previous,omitempty"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// CategoriesResponse wraps the category listing.
type CategoriesResponse struct {
	Categories []string `json:"categories" validate:"required"`
}

// StatsResponse is the stored-notes summary (aliased from the domain layer).
type StatsResponse = noteservice.Stats

// RecentResponse wraps the recent-notes listing.
type RecentResponse struct {
	Notes []models.NoteRef `json:"notes" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []noteservice.SearchHit `json:"results" validate:"required"`
}
