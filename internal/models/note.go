// Package models defines the domain types for Ansuz.
package models

import (
	"strings"
	"time"
)

// Metadata carries the identity and provenance of a note at save time.
type Metadata struct {
	Classification string
	Confidence     float64
	UserID         int64
	Username       string // optional
	MessageID      int64  // optional transport message id; 0 means unset
	CreatedAt      time.Time
}

// Note is the immutable record of a saved note.
type Note struct {
	Path     string   `json:"path"`
	Category string   `json:"category"`
	Filename string   `json:"filename"`
	Text     string   `json:"text,omitempty"`
	Metadata Metadata `json:"-"`
}

// NoteRef is a lightweight pointer to a stored note, returned by list,
// search, and recent operations.
type NoteRef struct {
	Path       string    `json:"path"`
	Category   string    `json:"category"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ClassificationResult is the outcome of one classification call, produced
// by either the backend or the keyword fallback. It is consumed immediately
// by the policy layer and never persisted; only its effect (a saved note)
// survives.
type ClassificationResult struct {
	Category          string  `json:"category"`
	Confidence        float64 `json:"confidence"`
	SuggestedFilename string  `json:"suggested_filename"`
	IsNewCategory     bool    `json:"is_new_category"`
	Raw               string  `json:"-"` // diagnostic payload, if any
}

// WithCategory returns a copy of r with the category replaced by a
// user-supplied override and IsNewCategory recomputed against known.
// The original result is left untouched.
func (r ClassificationResult) WithCategory(category string, known []string) ClassificationResult {
	out := r
	out.Category = strings.ToLower(strings.TrimSpace(category))
	out.IsNewCategory = !ContainsFold(known, out.Category)
	return out
}

// ClampConfidence forces c into [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ContainsFold reports whether set contains s, ignoring case.
func ContainsFold(set []string, s string) bool {
	for _, v := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Pending holds an unsaved note and its tentative classification while the
// user is asked to accept or override the proposed category.
type Pending struct {
	Text      string
	Result    ClassificationResult
	UserID    int64
	Username  string
	MessageID int64
	CreatedAt time.Time
}

// Expired reports whether the entry is older than ttl at the given time.
// A non-positive ttl means entries never expire.
func (p Pending) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(p.CreatedAt) > ttl
}
