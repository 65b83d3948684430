package index

import "strings"

// ftsQuery turns raw user input into a safe FTS5 match expression: each
// whitespace-separated token becomes a quoted phrase with embedded quotes
// doubled, so MATCH operators in the input (-, *, NEAR, parentheses, stray
// quotes) cannot produce a query parse error. Tokens are implicitly ANDed.
// Empty input yields an empty expression; callers treat that as no match.
func ftsQuery(raw string) string {
	fields := strings.Fields(raw)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}
