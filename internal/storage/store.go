// Package storage owns the on-disk note layout: one directory per category,
// one Markdown file per note, a frontmatter header embedded in each file.
// No other component mutates note files directly.
package storage

import "github.com/starford/ansuz/internal/models"

// Store is the interface for note persistence and read-side queries.
// Consumers should depend on this interface rather than the concrete
// *NoteStore to facilitate testing with mocks.
type Store interface {
	// Save persists a note under its (sanitized) category and returns the
	// stored note. Never overwrites an existing note.
	Save(text, category, suggestedFilename string, meta models.Metadata) (models.Note, error)
	// Read returns the raw bytes of a note file (path relative to the root).
	Read(path string) ([]byte, error)
	// List returns refs for every note file in the tree.
	List() ([]models.NoteRef, error)
	// ListCategories returns the sorted category names (dot-dirs excluded).
	ListCategories() ([]string, error)
	// ClassCounts maps each category to its note count.
	ClassCounts() (map[string]int, error)
	// TotalCount returns the number of notes across all categories.
	TotalCount() (int, error)
	// Search returns notes whose full content contains query
	// (case-insensitive), most recently modified first.
	Search(query, category string) ([]models.NoteRef, error)
	// Recent returns up to limit notes, newest first.
	Recent(limit int, category string) ([]models.NoteRef, error)
}

// Verify *NoteStore satisfies Store at compile time.
var _ Store = (*NoteStore)(nil)
