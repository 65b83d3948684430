// Package sanitize turns arbitrary text into file-system-safe identifiers.
// Both transforms are pure, total, and idempotent: no I/O, no error returns.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// FallbackFilename is returned when a filename sanitizes to nothing.
	FallbackFilename = "untitled"
	// FallbackCategory is returned when a category sanitizes to nothing.
	FallbackCategory = "uncategorized"
)

// Filename sanitizes raw for use as a file name: Unicode is decomposed and
// diacritics dropped, characters forbidden on common file systems
// (< > : " / \ | ? *) and anything outside [letters, digits, whitespace,
// hyphen, underscore, dot] are removed, whitespace runs become a single
// underscore, underscore runs collapse, and leading/trailing dots and
// underscores are trimmed. An empty result yields "untitled". Results longer
// than maxLength are truncated from the left of the base name, preserving
// the extension after the last dot.
func Filename(raw string, maxLength int) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range norm.NFKD.String(raw) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Combining mark left over from decomposition.
		case unicode.IsSpace(r):
			pendingSep = true
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.':
			if pendingSep {
				b.WriteRune('_')
				pendingSep = false
			}
			b.WriteRune(r)
		}
	}

	s := collapseUnderscores(b.String())
	s = strings.Trim(s, "._")
	if s == "" {
		s = FallbackFilename
	}
	return truncate(s, maxLength)
}

// Category sanitizes raw for use as a category directory name: lowercased,
// everything outside [letters, digits, whitespace, hyphen, underscore]
// removed, whitespace runs become a single underscore, underscore runs
// collapse, leading/trailing underscores trimmed. An empty result yields
// "uncategorized".
func Category(raw string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case unicode.IsSpace(r):
			pendingSep = true
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			if pendingSep {
				b.WriteRune('_')
				pendingSep = false
			}
			b.WriteRune(r)
		}
	}

	s := collapseUnderscores(b.String())
	s = strings.Trim(s, "_")
	if s == "" {
		return FallbackCategory
	}
	return s
}

func collapseUnderscores(s string) string {
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

// truncate shortens s to at most maxLength runes. When s contains a dot the
// suffix after the last dot is treated as an extension and preserved: the
// base is cut to maxLength - len(ext) - 1 so the final name still fits.
func truncate(s string, maxLength int) string {
	if maxLength <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if i := strings.LastIndex(s, "."); i >= 0 {
		base := []rune(s[:i])
		ext := []rune(s[i+1:])
		maxBase := maxLength - len(ext) - 1
		if maxBase > 0 {
			if maxBase > len(base) {
				maxBase = len(base)
			}
			return string(base[:maxBase]) + "." + string(ext)
		}
	}
	return string(runes[:maxLength])
}
