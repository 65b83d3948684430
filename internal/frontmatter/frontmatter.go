// Package frontmatter renders and parses the metadata header embedded at the
// top of every stored note file. The header is a block of key: value lines
// between two --- fences, followed by a blank line; it stays valid YAML so
// third-party tools can read the notes.
package frontmatter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// titleLimit is the number of leading characters of the note text used as
// the title field.
const titleLimit = 50

// Fields is the metadata written into a note header, in render order.
type Fields struct {
	Title          string
	CreatedAt      time.Time
	Classification string
	Confidence     float64
	UserID         int64
	MessageID      int64  // omitted when zero
	Username       string // omitted when empty
}

// Title derives the header title from the raw note text: the first 50
// characters, with a trailing ellipsis when truncated.
func Title(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}

// Render returns the full header block, fences and trailing blank line
// included.
func Render(f Fields) string {
	var b strings.Builder
	b.WriteString(delim + "\n")
	writeString(&b, "title", f.Title)
	writeString(&b, "created_at", f.CreatedAt.Format(time.RFC3339))
	writeString(&b, "classification", f.Classification)
	fmt.Fprintf(&b, "confidence: %s\n", strconv.FormatFloat(f.Confidence, 'g', -1, 64))
	fmt.Fprintf(&b, "user_id: %d\n", f.UserID)
	if f.MessageID != 0 {
		fmt.Fprintf(&b, "message_id: %d\n", f.MessageID)
	}
	if f.Username != "" {
		writeString(&b, "username", f.Username)
	}
	b.WriteString(delim + "\n\n")
	return b.String()
}

// writeString emits a quoted string value. Values containing a quote or a
// newline get backslash and quote characters escaped first, so the header
// stays one line per key and parses as a YAML double-quoted scalar.
func writeString(b *strings.Builder, key, value string) {
	if strings.ContainsAny(value, "\\\"\n") {
		value = strings.ReplaceAll(value, `\`, `\\`)
		value = strings.ReplaceAll(value, `"`, `\"`)
		value = strings.ReplaceAll(value, "\n", `\n`)
	}
	fmt.Fprintf(b, "%s: \"%s\"\n", key, value)
}

// Parsed is the result of splitting a note file into header and body.
type Parsed struct {
	Fields map[string]any
	Body   string
}

// Parse splits raw note bytes into the metadata header and the body.
// Files without a header, or with an unparsable one, are returned whole as
// body with nil Fields rather than an error: read paths must tolerate
// foreign files dropped into the notes tree.
func Parse(data []byte) *Parsed {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return &Parsed{Body: string(data)}
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return &Parsed{Body: string(data)}
	}

	var fields map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fields); err != nil {
		return &Parsed{Body: string(data)}
	}

	after := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(after), "\n\r")
	return &Parsed{Fields: fields, Body: body}
}

// String returns the named field as a string, or "" when absent.
func (p *Parsed) String(key string) string {
	if p.Fields == nil {
		return ""
	}
	if v, ok := p.Fields[key].(string); ok {
		return v
	}
	return ""
}

// Time returns the named field parsed as RFC 3339, or the zero time.
func (p *Parsed) Time(key string) time.Time {
	t, err := time.Parse(time.RFC3339, p.String(key))
	if err != nil {
		return time.Time{}
	}
	return t
}
