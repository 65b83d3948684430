// Package policy decides what happens to a classified note: save it
// immediately, or park it until the user confirms a confidently proposed
// new category.
package policy

import (
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Outcome is the policy's verdict for one classified note.
type Outcome int

const (
	// Direct means the note is saved immediately with the classified category.
	Direct Outcome = iota
	// AwaitingConfirmation means the proposed category is new and confident
	// enough that the user must accept or override it before anything is
	// written.
	AwaitingConfirmation
)

// Decide applies the acceptance rule: a new category proposed with
// confidence at or above the threshold is held for confirmation; everything
// else saves directly. Low-confidence new categories are accepted without
// confirmation on purpose — confirmation is reserved for confident-but-novel
// proposals.
func Decide(res models.ClassificationResult, threshold float64) Outcome {
	if res.IsNewCategory && res.Confidence >= threshold {
		return AwaitingConfirmation
	}
	return Direct
}

// PendingBox holds at most one unsaved note per user while that user is
// asked to accept or override a proposed category. Entries are tagged with
// their creation time and expire after the configured TTL; expiry is lazy,
// applied when an entry is read. A new Put for the same user replaces (and
// thereby cancels) any earlier entry, so a fresh note is never misread as a
// confirmation reply to a stale one.
type PendingBox struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]models.Pending
	now     func() time.Time
}

// NewPendingBox creates a box with the given TTL. A non-positive TTL
// disables expiry.
func NewPendingBox(ttl time.Duration) *PendingBox {
	return &PendingBox{
		ttl:     ttl,
		entries: make(map[int64]models.Pending),
		now:     time.Now,
	}
}

// Put stores a pending entry for its user, replacing any existing one.
// It reports whether an earlier live entry was cancelled.
func (b *PendingBox) Put(p models.Pending) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, had := b.entries[p.UserID]
	b.entries[p.UserID] = p
	return had && !prev.Expired(b.ttl, b.now())
}

// Take removes and returns the user's pending entry. Absent or expired
// entries yield apperr.ErrNoPending.
func (b *PendingBox) Take(userID int64) (models.Pending, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.entries[userID]
	if !ok {
		return models.Pending{}, apperr.ErrNoPending
	}
	delete(b.entries, userID)
	if p.Expired(b.ttl, b.now()) {
		return models.Pending{}, apperr.ErrNoPending
	}
	return p, nil
}

// Peek returns the user's pending entry without removing it.
func (b *PendingBox) Peek(userID int64) (models.Pending, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.entries[userID]
	if !ok || p.Expired(b.ttl, b.now()) {
		return models.Pending{}, false
	}
	return p, true
}
