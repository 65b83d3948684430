// Package noteservice orchestrates the capture pipeline: classify the text,
// decide whether the proposed category needs confirmation, and persist the
// note. Both transports (HTTP API and MCP) go through this package.
package noteservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/policy"
	"github.com/starford/ansuz/internal/sanitize"
	"github.com/starford/ansuz/internal/storage"
)

// Classifier is the slice of the classification client the service needs.
type Classifier interface {
	ClassifyOrFallback(ctx context.Context, text string, known []string) models.ClassificationResult
	IsAvailable(ctx context.Context) bool
}

// Status reports what happened to an ingested note.
type Status int

const (
	// StatusSaved means the note was written to storage immediately.
	StatusSaved Status = iota
	// StatusPending means a confident new category was proposed and the
	// note is parked until the user confirms or overrides it.
	StatusPending
)

// IngestResult is the outcome of one Ingest call.
type IngestResult struct {
	Status    Status
	Note      models.Note                 // set when Status == StatusSaved
	Proposal  models.ClassificationResult // always set
	Cancelled bool                        // an earlier pending note for this user was replaced
}

// Stats summarizes the stored notes.
type Stats struct {
	Total      int            `json:"total"`
	Categories map[string]int `json:"categories"`
}

// SearchHit is one search result, transport-agnostic.
type SearchHit struct {
	Path       string    `json:"path"`
	Category   string    `json:"category"`
	Filename   string    `json:"filename"`
	Snippet    string    `json:"snippet,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}

// NoteDetail is the full representation of a stored note.
type NoteDetail struct {
	Path           string    `json:"path"`
	Category       string    `json:"category"`
	Filename       string    `json:"filename"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Classification string    `json:"classification"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
	Username       string    `json:"username,omitempty"`
}

// Config carries the service's policy knobs.
type Config struct {
	ConfidenceThreshold float64       // new-category proposals at or above this are held for confirmation
	MaxNoteLength       int           // in runes; non-positive disables the check
	PendingTTL          time.Duration // lifetime of a parked note
}

// Service coordinates classification, policy, storage and the optional
// index.
type Service struct {
	store      storage.Store
	classifier Classifier
	idx        *index.DB // nil when the index is disabled
	pending    *policy.PendingBox
	cfg        Config
	logger     *slog.Logger
}

// NewService creates the orchestration service. idx may be nil; read
// operations then scan the store directly.
func NewService(store storage.Store, classifier Classifier, idx *index.DB, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		classifier: classifier,
		idx:        idx,
		pending:    policy.NewPendingBox(cfg.PendingTTL),
		cfg:        cfg,
		logger:     logger,
	}
}

// Ingest classifies text and either saves it immediately or parks it for
// confirmation. Classification never fails the call: when the backend is
// unreachable the keyword fallback supplies a category.
func (s *Service) Ingest(ctx context.Context, text string, meta models.Metadata) (IngestResult, error) {
	if s.cfg.MaxNoteLength > 0 && utf8.RuneCountInString(text) > s.cfg.MaxNoteLength {
		return IngestResult{}, apperr.ErrNoteTooLong
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	known, err := s.store.ListCategories()
	if err != nil {
		return IngestResult{}, err
	}

	res := s.classifier.ClassifyOrFallback(ctx, text, known)

	if policy.Decide(res, s.cfg.ConfidenceThreshold) == policy.AwaitingConfirmation {
		cancelled := s.pending.Put(models.Pending{
			Text:      text,
			Result:    res,
			UserID:    meta.UserID,
			Username:  meta.Username,
			MessageID: meta.MessageID,
			CreatedAt: meta.CreatedAt,
		})
		s.logger.Info("noteservice: awaiting confirmation",
			slog.Int64("user_id", meta.UserID),
			slog.String("proposed_category", res.Category),
			slog.Float64("confidence", res.Confidence))
		return IngestResult{Status: StatusPending, Proposal: res, Cancelled: cancelled}, nil
	}

	note, err := s.save(text, res, meta)
	if err != nil {
		return IngestResult{}, err
	}
	return IngestResult{Status: StatusSaved, Note: note, Proposal: res}, nil
}

// IngestDirect classifies and saves in one step, skipping the confirmation
// flow entirely. Used by callers without a conversational channel to ask
// the user anything.
func (s *Service) IngestDirect(ctx context.Context, text string, meta models.Metadata) (models.Note, models.ClassificationResult, error) {
	if s.cfg.MaxNoteLength > 0 && utf8.RuneCountInString(text) > s.cfg.MaxNoteLength {
		return models.Note{}, models.ClassificationResult{}, apperr.ErrNoteTooLong
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	known, err := s.store.ListCategories()
	if err != nil {
		return models.Note{}, models.ClassificationResult{}, err
	}

	res := s.classifier.ClassifyOrFallback(ctx, text, known)
	note, err := s.save(text, res, meta)
	if err != nil {
		return models.Note{}, models.ClassificationResult{}, err
	}
	return note, res, nil
}

// Confirm resolves a parked note. An empty category accepts the proposal;
// anything else overrides it (IsNewCategory is recomputed against the
// categories that exist at confirmation time). Returns apperr.ErrNoPending
// when the user has nothing parked or the entry has expired.
func (s *Service) Confirm(_ context.Context, userID int64, category string) (models.Note, error) {
	p, err := s.pending.Take(userID)
	if err != nil {
		return models.Note{}, err
	}

	res := p.Result
	if category != "" {
		known, err := s.store.ListCategories()
		if err != nil {
			return models.Note{}, err
		}
		res = res.WithCategory(category, known)
	}

	return s.save(p.Text, res, models.Metadata{
		UserID:    p.UserID,
		Username:  p.Username,
		MessageID: p.MessageID,
		CreatedAt: p.CreatedAt,
	})
}

// CancelPending discards the user's parked note, if any.
func (s *Service) CancelPending(userID int64) error {
	_, err := s.pending.Take(userID)
	return err
}

// Pending returns the user's parked note without consuming it.
func (s *Service) Pending(userID int64) (models.Pending, bool) {
	return s.pending.Peek(userID)
}

// Get reads a stored note and splits it into metadata and body.
func (s *Service) Get(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	p := frontmatter.Parse(data)
	detail := &NoteDetail{
		Path:           path,
		Title:          p.String("title"),
		Body:           p.Body,
		Classification: p.String("classification"),
		CreatedAt:      p.Time("created_at"),
		Username:       p.String("username"),
	}
	switch c := p.Fields["confidence"].(type) {
	case float64:
		detail.Confidence = c
	case int:
		detail.Confidence = float64(c)
	}
	detail.Category, detail.Filename = splitPath(path)
	return detail, nil
}

// Categories returns the sorted category names.
func (s *Service) Categories(_ context.Context) ([]string, error) {
	return s.store.ListCategories()
}

// Stats returns the total note count and the per-category breakdown.
// Total is always the sum of the category counts.
func (s *Service) Stats(_ context.Context) (Stats, error) {
	counts, err := s.store.ClassCounts()
	if err != nil {
		return Stats{}, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return Stats{Total: total, Categories: counts}, nil
}

// Recent returns up to limit notes, newest first, optionally scoped to one
// category.
func (s *Service) Recent(_ context.Context, limit int, category string) ([]models.NoteRef, error) {
	return s.store.Recent(limit, category)
}

// Search finds notes containing query. With the index enabled the query
// goes to SQLite (with snippets); otherwise the store is scanned. Either
// way results come newest first.
func (s *Service) Search(_ context.Context, query, category string, limit int) ([]SearchHit, error) {
	if s.idx != nil {
		// Categories are stored sanitized on disk and in the index; scope
		// the same way the store scan does.
		if category != "" {
			category = sanitize.Category(category)
		}
		rows, err := s.idx.Search(query, category, limit)
		if err != nil {
			return nil, err
		}
		hits := make([]SearchHit, len(rows))
		for i, r := range rows {
			hits[i] = SearchHit{Path: r.Path, Category: r.Category, Snippet: r.Snippet}
			_, hits[i].Filename = splitPath(r.Path)
		}
		return hits, nil
	}

	refs, err := s.store.Search(query, category)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	hits := make([]SearchHit, len(refs))
	for i, ref := range refs {
		hits[i] = SearchHit{
			Path:       ref.Path,
			Category:   ref.Category,
			Filename:   ref.Filename,
			ModifiedAt: ref.ModifiedAt,
		}
	}
	return hits, nil
}

// ClassifierAvailable probes the classification backend.
func (s *Service) ClassifierAvailable(ctx context.Context) bool {
	return s.classifier.IsAvailable(ctx)
}

// save persists the note and, when the index is enabled, upserts it there
// as well. Indexing is best effort; the watcher or the next Sync repairs
// any miss.
func (s *Service) save(text string, res models.ClassificationResult, meta models.Metadata) (models.Note, error) {
	meta.Classification = res.Category
	meta.Confidence = res.Confidence

	note, err := s.store.Save(text, res.Category, res.SuggestedFilename, meta)
	if err != nil {
		return models.Note{}, err
	}

	if s.idx != nil {
		data, readErr := s.store.Read(note.Path)
		if readErr == nil {
			if idxErr := index.IndexFile(s.idx, note.Path, data, time.Now()); idxErr != nil {
				s.logger.Warn("noteservice: index update failed",
					slog.String("path", note.Path),
					slog.String("error", idxErr.Error()))
			}
		}
	}
	return note, nil
}

// splitPath separates a relative note path into category and filename.
func splitPath(path string) (category, filename string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == os.PathSeparator {
			return path[:i], path[i+1:]
		}
	}
	return "", path
}
