package mcpserver

// NoteFormatContract describes the on-disk note file format for LLM
// consumers that read or post-process stored notes.
const NoteFormatContract = `# Ansuz Note Format

Every note is a Markdown file stored under one directory per category:

    <category>/<YYYY-MM-DD>_<slug>.md

Category names are lowercase (letters, digits, hyphen, underscore). The
date prefix is the capture date; the slug derives from the classifier's
filename suggestion. Name collisions get a numeric suffix (` + "`_1`, `_2`" + `, ...).

## Structure

` + "```" + `markdown
---
title: "First 50 characters of the note text..."
created_at: "2026-08-28T14:03:07Z"
classification: "cooking"
confidence: 0.92
user_id: 1
message_id: 1042
username: "sam"
---

The full original note text, unmodified.
` + "```" + `

## Rules

1. The ` + "`---`" + ` fences are the first thing in the file; a blank line
   separates the header from the body.
2. String values are double-quoted; backslashes, quotes and newlines are
   backslash-escaped. The header parses as YAML.
3. ` + "`title`" + `, ` + "`created_at`" + `, ` + "`classification`" + `, ` + "`confidence`" + ` and
   ` + "`user_id`" + ` are always present; ` + "`message_id`" + ` and ` + "`username`" + ` only
   when known.
4. ` + "`confidence`" + ` is in [0, 1]. ` + "`created_at`" + ` is RFC 3339.
5. Files are UTF-8 with a trailing newline. Notes are never rewritten
   after capture.
6. Hidden directories (notably ` + "`.backups`" + `) are not notes and must be
   skipped when walking the tree.
`
