package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

func TestDecide(t *testing.T) {
	cases := []struct {
		name       string
		isNew      bool
		confidence float64
		want       Outcome
	}{
		{"confident new category is held", true, 0.88, AwaitingConfirmation},
		{"threshold boundary is held", true, 0.7, AwaitingConfirmation},
		{"low-confidence new category saves directly", true, 0.5, Direct},
		{"known category saves regardless of confidence", false, 0.99, Direct},
		{"known low confidence saves directly", false, 0.1, Direct},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := models.ClassificationResult{IsNewCategory: tc.isNew, Confidence: tc.confidence}
			if got := Decide(res, 0.7); got != tc.want {
				t.Errorf("Decide = %v, want %v", got, tc.want)
			}
		})
	}
}

func pendingFor(user int64, created time.Time) models.Pending {
	return models.Pending{
		Text:      "note text",
		UserID:    user,
		CreatedAt: created,
		Result:    models.ClassificationResult{Category: "fitness", Confidence: 0.88, IsNewCategory: true},
	}
}

func TestPendingBox_PutTake(t *testing.T) {
	b := NewPendingBox(10 * time.Minute)
	if replaced := b.Put(pendingFor(1, time.Now())); replaced {
		t.Error("first put should not report a replacement")
	}

	p, err := b.Take(1)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if p.Text != "note text" {
		t.Errorf("text = %q", p.Text)
	}

	if _, err := b.Take(1); !errors.Is(err, apperr.ErrNoPending) {
		t.Errorf("second take should fail with ErrNoPending, got %v", err)
	}
}

func TestPendingBox_ReplacementCancels(t *testing.T) {
	b := NewPendingBox(10 * time.Minute)
	b.Put(pendingFor(1, time.Now()))

	second := pendingFor(1, time.Now())
	second.Text = "a different note"
	if replaced := b.Put(second); !replaced {
		t.Error("second put for the same user should cancel the first")
	}

	p, err := b.Take(1)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if p.Text != "a different note" {
		t.Errorf("text = %q, want the newer entry", p.Text)
	}
}

func TestPendingBox_Expiry(t *testing.T) {
	b := NewPendingBox(10 * time.Minute)
	base := time.Now()
	b.now = func() time.Time { return base }
	b.Put(pendingFor(1, base))

	b.now = func() time.Time { return base.Add(11 * time.Minute) }
	if _, err := b.Take(1); !errors.Is(err, apperr.ErrNoPending) {
		t.Errorf("expired entry should yield ErrNoPending, got %v", err)
	}
}

func TestPendingBox_ZeroTTLNeverExpires(t *testing.T) {
	b := NewPendingBox(0)
	base := time.Now()
	b.Put(pendingFor(1, base.Add(-24*time.Hour)))
	if _, err := b.Take(1); err != nil {
		t.Errorf("zero ttl should keep entries indefinitely: %v", err)
	}
}

func TestPendingBox_PerUserIsolation(t *testing.T) {
	b := NewPendingBox(time.Minute)
	b.Put(pendingFor(1, time.Now()))
	b.Put(pendingFor(2, time.Now()))

	if _, err := b.Take(1); err != nil {
		t.Errorf("user 1 take: %v", err)
	}
	if _, ok := b.Peek(2); !ok {
		t.Error("user 2 entry must survive user 1 take")
	}
}
