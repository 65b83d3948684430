package classifier

import (
	"strings"
	"unicode"

	"github.com/starford/ansuz/internal/models"
)

// FallbackConfidence marks fallback results as low-trust for the policy
// layer: always below the confirmation threshold.
const FallbackConfidence = 0.5

// fallbackRules are matched against the lowercased note text in priority
// order; the first rule with any keyword present wins.
var fallbackRules = []struct {
	category string
	keywords []string
}{
	{"cooking", []string{"recipe", "cooking", "food", "meal", "ingredient", "pasta", "dinner", "lunch", "breakfast", "bake"}},
	{"work", []string{"work", "meeting", "project", "deadline", "task"}},
	{"travel", []string{"travel", "trip", "vacation", "flight", "hotel"}},
	{"ideas", []string{"idea", "thought", "remember", "note"}},
}

// Fallback classifies a note without any I/O: keyword matching in priority
// order, "general" when nothing matches. Deterministic and total. The
// fallback cannot see the real category set, so IsNewCategory is
// conservatively true to route confident duplicates through confirmation —
// moot in practice since the fixed 0.5 confidence stays below the default
// threshold.
func Fallback(text string) models.ClassificationResult {
	lower := strings.ToLower(text)

	category := "general"
	for _, rule := range fallbackRules {
		if containsAny(lower, rule.keywords) {
			category = rule.category
			break
		}
	}

	return models.ClassificationResult{
		Category:          category,
		Confidence:        FallbackConfidence,
		SuggestedFilename: fallbackFilename(text),
		IsNewCategory:     true,
		Raw:               "fallback classification (backend unavailable)",
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// fallbackFilename joins the alphanumeric words among the first five words
// of the note, lowercased and underscore-separated; "note" when none remain.
func fallbackFilename(text string) string {
	words := strings.Fields(text)
	if len(words) > 5 {
		words = words[:5]
	}
	var parts []string
	for _, w := range words {
		if isAlnum(w) {
			parts = append(parts, strings.ToLower(w))
		}
	}
	if len(parts) == 0 {
		return "note"
	}
	return strings.Join(parts, "_")
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
