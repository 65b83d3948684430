package noteservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

type fakeClassifier struct {
	res       models.ClassificationResult
	available bool
}

func (f *fakeClassifier) ClassifyOrFallback(_ context.Context, _ string, _ []string) models.ClassificationResult {
	return f.res
}

func (f *fakeClassifier) IsAvailable(_ context.Context) bool { return f.available }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(t *testing.T, cls Classifier) (*Service, *storage.NoteStore) {
	t.Helper()
	store, err := storage.NewNoteStore(storage.Config{Root: t.TempDir()}, discardLogger())
	if err != nil {
		t.Fatalf("NewNoteStore: %v", err)
	}
	svc := NewService(store, cls, nil, Config{
		ConfidenceThreshold: 0.7,
		MaxNoteLength:       4000,
		PendingTTL:          10 * time.Minute,
	}, discardLogger())
	return svc, store
}

func TestIngest_DirectSave(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "work", Confidence: 0.9, SuggestedFilename: "standup", IsNewCategory: false,
	}}
	svc, store := testService(t, cls)

	res, err := svc.Ingest(context.Background(), "Standup notes for Monday", models.Metadata{UserID: 1})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != StatusSaved {
		t.Fatalf("status = %v, want StatusSaved", res.Status)
	}
	if res.Note.Category != "work" {
		t.Errorf("category = %q, want work", res.Note.Category)
	}
	if _, err := store.Read(res.Note.Path); err != nil {
		t.Errorf("saved note unreadable: %v", err)
	}
}

func TestIngest_ConfidentNewCategoryParks(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "gardening", Confidence: 0.85, SuggestedFilename: "tomatoes", IsNewCategory: true,
	}}
	svc, store := testService(t, cls)

	res, err := svc.Ingest(context.Background(), "Planted tomatoes today", models.Metadata{UserID: 7})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != StatusPending {
		t.Fatalf("status = %v, want StatusPending", res.Status)
	}
	if res.Proposal.Category != "gardening" {
		t.Errorf("proposal = %q, want gardening", res.Proposal.Category)
	}

	total, _ := store.TotalCount()
	if total != 0 {
		t.Errorf("nothing should be saved while pending, got %d notes", total)
	}
}

func TestIngest_LowConfidenceNewCategorySavesDirectly(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "gardening", Confidence: 0.5, SuggestedFilename: "tomatoes", IsNewCategory: true,
	}}
	svc, _ := testService(t, cls)

	res, err := svc.Ingest(context.Background(), "Planted tomatoes today", models.Metadata{UserID: 7})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != StatusSaved {
		t.Fatalf("status = %v, want StatusSaved", res.Status)
	}
}

func TestIngest_TooLong(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "general", Confidence: 0.5}}
	svc, _ := testService(t, cls)

	_, err := svc.Ingest(context.Background(), strings.Repeat("a", 4001), models.Metadata{UserID: 1})
	if !errors.Is(err, apperr.ErrNoteTooLong) {
		t.Fatalf("err = %v, want ErrNoteTooLong", err)
	}
}

func TestConfirm_Accept(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "gardening", Confidence: 0.9, SuggestedFilename: "tomatoes", IsNewCategory: true,
	}}
	svc, store := testService(t, cls)

	if _, err := svc.Ingest(context.Background(), "Planted tomatoes today", models.Metadata{UserID: 7}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	note, err := svc.Confirm(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if note.Category != "gardening" {
		t.Errorf("category = %q, want gardening", note.Category)
	}
	data, err := store.Read(note.Path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(string(data), "Planted tomatoes today") {
		t.Error("saved note missing original text")
	}
}

func TestConfirm_Override(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "gardening", Confidence: 0.9, SuggestedFilename: "tomatoes", IsNewCategory: true,
	}}
	svc, _ := testService(t, cls)

	if _, err := svc.Ingest(context.Background(), "Planted tomatoes today", models.Metadata{UserID: 7}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	note, err := svc.Confirm(context.Background(), 7, "Garden Projects")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if note.Category != "garden_projects" {
		t.Errorf("category = %q, want %q", note.Category, "garden_projects")
	}
}

func TestConfirm_NoPending(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "general", Confidence: 0.5}}
	svc, _ := testService(t, cls)

	_, err := svc.Confirm(context.Background(), 42, "")
	if !errors.Is(err, apperr.ErrNoPending) {
		t.Fatalf("err = %v, want ErrNoPending", err)
	}
}

func TestIngest_ReplacementCancelsPending(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "gardening", Confidence: 0.9, SuggestedFilename: "first", IsNewCategory: true,
	}}
	svc, store := testService(t, cls)

	if _, err := svc.Ingest(context.Background(), "first note", models.Metadata{UserID: 7}); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	cls.res.SuggestedFilename = "second"
	res, err := svc.Ingest(context.Background(), "second note", models.Metadata{UserID: 7})
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if !res.Cancelled {
		t.Error("expected the first pending note to be reported cancelled")
	}

	note, err := svc.Confirm(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	data, _ := store.Read(note.Path)
	if !strings.Contains(string(data), "second note") {
		t.Error("confirmation should resolve the latest note")
	}
}

func TestCancelPending(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "gardening", Confidence: 0.9, IsNewCategory: true,
	}}
	svc, _ := testService(t, cls)

	if _, err := svc.Ingest(context.Background(), "parked", models.Metadata{UserID: 7}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := svc.CancelPending(7); err != nil {
		t.Fatalf("CancelPending: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), 7, ""); !errors.Is(err, apperr.ErrNoPending) {
		t.Fatalf("err = %v, want ErrNoPending after cancel", err)
	}
}

func TestGet_RoundTrip(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{
		Category: "work", Confidence: 0.85, SuggestedFilename: "planning",
	}}
	svc, _ := testService(t, cls)

	res, err := svc.Ingest(context.Background(), "Planning the Q3 roadmap", models.Metadata{UserID: 3, Username: "sam"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	detail, err := svc.Get(context.Background(), res.Note.Path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.Classification != "work" {
		t.Errorf("classification = %q, want work", detail.Classification)
	}
	if detail.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", detail.Confidence)
	}
	if detail.Title != "Planning the Q3 roadmap" {
		t.Errorf("title = %q", detail.Title)
	}
	if !strings.Contains(detail.Body, "Planning the Q3 roadmap") {
		t.Error("body missing note text")
	}
	if detail.Category != "work" {
		t.Errorf("category = %q, want work", detail.Category)
	}
	if detail.Username != "sam" {
		t.Errorf("username = %q, want sam", detail.Username)
	}
}

func TestGet_NotFound(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "general", Confidence: 0.5}}
	svc, _ := testService(t, cls)

	_, err := svc.Get(context.Background(), "work/missing.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStats_TotalIsSumOfCategories(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "work", Confidence: 0.9, SuggestedFilename: "n"}}
	svc, _ := testService(t, cls)

	for i := 0; i < 2; i++ {
		if _, err := svc.Ingest(context.Background(), "work note", models.Metadata{UserID: 1}); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	cls.res.Category = "travel"
	if _, err := svc.Ingest(context.Background(), "travel note", models.Metadata{UserID: 1}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	sum := 0
	for _, n := range stats.Categories {
		sum += n
	}
	if stats.Total != sum || stats.Total != 3 {
		t.Errorf("total = %d, sum = %d, want both 3", stats.Total, sum)
	}
}

func TestSearch_StoreScanWhenIndexDisabled(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "cooking", Confidence: 0.9, SuggestedFilename: "pasta"}}
	svc, _ := testService(t, cls)

	if _, err := svc.Ingest(context.Background(), "Made pasta with garlic", models.Metadata{UserID: 1}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	hits, err := svc.Search(context.Background(), "GARLIC", "", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Category != "cooking" {
		t.Fatalf("hits = %+v, want one cooking hit", hits)
	}
}

// testIndexedService builds a service backed by a real temp-file index.
func testIndexedService(t *testing.T, cls Classifier) *Service {
	t.Helper()
	store, err := storage.NewNoteStore(storage.Config{Root: t.TempDir()}, discardLogger())
	if err != nil {
		t.Fatalf("NewNoteStore: %v", err)
	}
	f, err := os.CreateTemp("", "ansuz-svc-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	db, err := index.Open(f.Name())
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(store, cls, db, Config{ConfidenceThreshold: 0.7}, discardLogger())
}

func TestSearch_UsesIndexWhenEnabled(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "cooking", Confidence: 0.9, SuggestedFilename: "pasta"}}
	svc := testIndexedService(t, cls)

	if _, err := svc.Ingest(context.Background(), "Made pasta with garlic", models.Metadata{UserID: 1}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// The save path indexes synchronously, so the hit must be visible now.
	hits, err := svc.Search(context.Background(), "garlic", "", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Category != "cooking" {
		t.Fatalf("hits = %+v, want one cooking hit", hits)
	}
	if hits[0].Snippet == "" {
		t.Error("index-backed search should return a snippet")
	}
}

func TestSearch_IndexCategoryScopeIsSanitized(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "cooking", Confidence: 0.9, SuggestedFilename: "pasta"}}
	svc := testIndexedService(t, cls)

	if _, err := svc.Ingest(context.Background(), "Made pasta with garlic", models.Metadata{UserID: 1}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// Categories land on disk sanitized; a raw caller-spelled category must
	// scope the index the same way the store scan would.
	hits, err := svc.Search(context.Background(), "garlic", "Cooking", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits for category %q, want 1", len(hits), "Cooking")
	}
	if hits[0].Category != "cooking" {
		t.Errorf("hit category = %q, want %q", hits[0].Category, "cooking")
	}
}

func TestRecent(t *testing.T) {
	cls := &fakeClassifier{res: models.ClassificationResult{Category: "general", Confidence: 0.5, SuggestedFilename: "n"}}
	svc, _ := testService(t, cls)

	for i := 0; i < 3; i++ {
		if _, err := svc.Ingest(context.Background(), "note", models.Metadata{UserID: 1}); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	refs, err := svc.Recent(context.Background(), 2, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(refs) != 2 {
		t.Errorf("got %d refs, want 2", len(refs))
	}
}
