package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/storage"
)

type fakeClassifier struct {
	res models.ClassificationResult
}

func (f *fakeClassifier) ClassifyOrFallback(_ context.Context, _ string, _ []string) models.ClassificationResult {
	return f.res
}

func (f *fakeClassifier) IsAvailable(_ context.Context) bool { return true }

func testRouter(t *testing.T, cls *fakeClassifier) (http.Handler, *noteservice.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewNoteStore(storage.Config{Root: t.TempDir()}, logger)
	if err != nil {
		t.Fatalf("NewNoteStore: %v", err)
	}
	svc := noteservice.NewService(store, cls, nil, noteservice.Config{
		ConfidenceThreshold: 0.7,
		MaxNoteLength:       4000,
		PendingTTL:          time.Minute,
	}, logger)
	return NewRouter(svc, false, "", nil), svc
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreateNote_Saved(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "work", Confidence: 0.9, SuggestedFilename: "standup",
	}}
	r, _ := testRouter(t, cls)

	w := doJSON(t, r, http.MethodPost, "/notes", `{"text":"Standup notes","user_id":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	var resp SavedNoteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Status != "saved" || resp.Category != "work" {
		t.Errorf("resp = %+v", resp)
	}
	if !strings.HasSuffix(resp.Filename, ".md") {
		t.Errorf("filename = %q, want .md suffix", resp.Filename)
	}
}

func TestCreateNote_AwaitingConfirmation(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "gardening", Confidence: 0.85, SuggestedFilename: "tomatoes", IsNewCategory: true,
	}}
	r, _ := testRouter(t, cls)

	w := doJSON(t, r, http.MethodPost, "/notes", `{"text":"Planted tomatoes","user_id":7}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", w.Code, w.Body.String())
	}
	var resp PendingNoteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Status != "awaiting_confirmation" || resp.ProposedCategory != "gardening" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateNote_Validation(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "general", Confidence: 0.5}}
	r, _ := testRouter(t, cls)

	if w := doJSON(t, r, http.MethodPost, "/notes", `{"text":"   "}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank text: status = %d, want 400", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/notes", `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", w.Code)
	}
	long := `{"text":"` + strings.Repeat("a", 4001) + `"}`
	if w := doJSON(t, r, http.MethodPost, "/notes", long); w.Code != http.StatusBadRequest {
		t.Errorf("too long: status = %d, want 400", w.Code)
	}
}

func TestConfirmNote_Flow(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "gardening", Confidence: 0.9, SuggestedFilename: "tomatoes", IsNewCategory: true,
	}}
	r, _ := testRouter(t, cls)

	if w := doJSON(t, r, http.MethodPost, "/notes", `{"text":"Planted tomatoes","user_id":7}`); w.Code != http.StatusAccepted {
		t.Fatalf("ingest status = %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/notes/confirm", `{"user_id":7,"category":"plants"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("confirm status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	var resp SavedNoteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Category != "plants" {
		t.Errorf("category = %q, want plants", resp.Category)
	}
}

func TestConfirmNote_NoPending(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "general", Confidence: 0.5}}
	r, _ := testRouter(t, cls)

	w := doJSON(t, r, http.MethodPost, "/notes/confirm", `{"user_id":42}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetNote(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "work", Confidence: 0.9, SuggestedFilename: "standup",
	}}
	r, svc := testRouter(t, cls)

	res, err := svc.Ingest(context.Background(), "Standup notes", models.Metadata{UserID: 1})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/notes/"+res.Note.Path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	var detail NoteDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if detail.Classification != "work" {
		t.Errorf("classification = %q", detail.Classification)
	}

	if w := doJSON(t, r, http.MethodGet, "/notes/work/missing.md", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing note: status = %d, want 404", w.Code)
	}
}

func TestCategoriesAndStats(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "work", Confidence: 0.9, SuggestedFilename: "n",
	}}
	r, svc := testRouter(t, cls)

	if _, err := svc.Ingest(context.Background(), "a note", models.Metadata{UserID: 1}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/categories", "")
	if w.Code != http.StatusOK {
		t.Fatalf("categories status = %d", w.Code)
	}
	var cats CategoriesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &cats); err != nil {
		t.Fatal(err)
	}
	if len(cats.Categories) != 1 || cats.Categories[0] != "work" {
		t.Errorf("categories = %v", cats.Categories)
	}

	w = doJSON(t, r, http.MethodGet, "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.Categories["work"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRecent_InvalidLimit(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "general", Confidence: 0.5}}
	r, _ := testRouter(t, cls)

	if w := doJSON(t, r, http.MethodGet, "/recent?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric limit: status = %d, want 400", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/recent?limit=-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status = %d, want 400", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/recent", ""); w.Code != http.StatusOK {
		t.Errorf("no limit: status = %d, want 200", w.Code)
	}
}

func TestSearch(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "cooking", Confidence: 0.9, SuggestedFilename: "pasta",
	}}
	r, svc := testRouter(t, cls)

	if _, err := svc.Ingest(context.Background(), "Made pasta with garlic", models.Metadata{UserID: 1}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if w := doJSON(t, r, http.MethodGet, "/search", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want 400", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/search?q=garlic", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Category != "cooking" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "general", Confidence: 0.5}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewNoteStore(storage.Config{Root: t.TempDir()}, logger)
	if err != nil {
		t.Fatal(err)
	}
	svc := noteservice.NewService(store, cls, nil, noteservice.Config{ConfidenceThreshold: 0.7}, logger)
	r := NewRouter(svc, true, "secret", nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}
}
