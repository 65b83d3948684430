package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func reqMetadata(req CreateNoteRequest) models.Metadata {
	return models.Metadata{
		UserID:    req.UserID,
		Username:  req.Username,
		MessageID: req.MessageID,
	}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. work%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Capture a free-text note: classify it and save or hold for confirmation
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to capture"
//	@Success		201		{object}	SavedNoteResponse
//	@Success		202		{object}	PendingNoteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeErr(w, http.StatusBadRequest, "text is required")
		return
	}

	res, err := h.svc.Ingest(r.Context(), req.Text, reqMetadata(req))
	if err != nil {
		if errors.Is(err, apperr.ErrNoteTooLong) {
			writeErr(w, http.StatusBadRequest, "note too long")
			return
		}
		slog.Error("create note failed", slog.String("error", err.Error()))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}

	if res.Status == noteservice.StatusPending {
		writeJSON(w, http.StatusAccepted, PendingNoteResponse{
			Status:            "awaiting_confirmation",
			ProposedCategory:  res.Proposal.Category,
			Confidence:        res.Proposal.Confidence,
			SuggestedFilename: res.Proposal.SuggestedFilename,
			Cancelled:         res.Cancelled,
		})
		return
	}

	writeJSON(w, http.StatusCreated, SavedNoteResponse{
		Status:     "saved",
		Path:       res.Note.Path,
		Category:   res.Note.Category,
		Filename:   res.Note.Filename,
		Confidence: res.Proposal.Confidence,
	})
}

// ConfirmNote handles POST /api/notes/confirm.
//
//	@Summary		Resolve a pending classification: accept the proposal or override it
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConfirmNoteRequest	true	"Confirmation"
//	@Success		201		{object}	SavedNoteResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/confirm [post]
func (h *Handler) ConfirmNote(w http.ResponseWriter, r *http.Request) {
	var req ConfirmNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	note, err := h.svc.Confirm(r.Context(), req.UserID, req.Category)
	if err != nil {
		if errors.Is(err, apperr.ErrNoPending) {
			writeErr(w, http.StatusNotFound, "no pending confirmation")
			return
		}
		slog.Error("confirm note failed", slog.String("error", err.Error()))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, SavedNoteResponse{
		Status:     "saved",
		Path:       note.Path,
		Category:   note.Category,
		Filename:   note.Filename,
		Confidence: note.Metadata.Confidence,
	})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeErr(w, http.StatusBadRequest, "path is required")
		return
	}
	note, err := h.svc.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("get note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeErr(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// ListCategories handles GET /api/categories.
//
//	@Summary		List the existing categories
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	CategoriesResponse
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		slog.Error("list categories failed", slog.String("error", err.Error()))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: cats})
}

// Stats handles GET /api/stats.
//
//	@Summary		Note counts, total and per category
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		slog.Error("stats failed", slog.String("error", err.Error()))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Recent handles GET /api/recent.
//
//	@Summary		Most recently saved notes
//	@Tags			notes
//	@Produce		json
//	@Param			limit		query		int		false	"Maximum results (default 10)"
//	@Param			category	query		string	false	"Restrict to one category"
//	@Success		200			{object}	RecentResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recent [get]
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	refs, err := h.svc.Recent(r.Context(), limit, r.URL.Query().Get("category"))
	if err != nil {
		slog.Error("recent failed", slog.String("error", err.Error()))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if refs == nil {
		refs = []models.NoteRef{}
	}
	writeJSON(w, http.StatusOK, RecentResponse{Notes: refs})
}

// Search handles GET /api/search.
//
//	@Summary		Search notes by content
//	@Tags			notes
//	@Produce		json
//	@Param			q			query		string	true	"Search query"
//	@Param			category	query		string	false	"Restrict to one category"
//	@Param			limit		query		int		false	"Maximum results"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeErr(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	hits, err := h.svc.Search(r.Context(), q, r.URL.Query().Get("category"), limit)
	if err != nil {
		slog.Error("search failed", slog.String("error", err.Error()))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if hits == nil {
		hits = []noteservice.SearchHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// limitParam parses the optional limit query parameter. A present but
// non-numeric or negative value is a client error; it writes the 400 and
// reports !ok.
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
