package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/sanitize"
)

const (
	// NoteExt is the extension of every stored note file.
	NoteExt = ".md"
	// BackupDir is the hidden directory under the root holding backup copies.
	BackupDir = ".backups"

	// dateOverhead is what the date prefix and suffix add to a filename:
	// len("2006-01-02") plus the joining underscore and ".md".
	dateOverhead = len("2006-01-02") + 1 + len(NoteExt)
)

// Config holds note store settings.
type Config struct {
	Root              string
	BackupEnabled     bool
	MaxFilenameLength int // full filename budget including date prefix and extension
}

// NoteStore implements Store backed by the local file system.
type NoteStore struct {
	root          string // absolute path to the notes root
	backupEnabled bool
	maxNameLen    int
	logger        *slog.Logger
}

// NewNoteStore creates a store rooted at cfg.Root, creating the directory
// when absent.
func NewNoteStore(cfg Config, logger *slog.Logger) (*NoteStore, error) {
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	maxLen := cfg.MaxFilenameLength
	if maxLen <= 0 {
		maxLen = 100
	}
	return &NoteStore{
		root:          abs,
		backupEnabled: cfg.BackupEnabled,
		maxNameLen:    maxLen,
		logger:        logger,
	}, nil
}

// Root returns the absolute notes root path.
func (s *NoteStore) Root() string { return s.root }

// Save writes a note under its sanitized category. The final filename is
// <date>_<slug><ext>, with the sanitizer budget reduced by the date and
// suffix overhead so the whole name stays within the configured maximum.
// Name collisions resolve by appending _1, _2, ... — the claim uses an
// exclusive create, so concurrent saves with the same suggestion each get a
// distinct file and no note ever overwrites another.
func (s *NoteStore) Save(text, category, suggestedFilename string, meta models.Metadata) (models.Note, error) {
	cat := sanitize.Category(category)
	dir := filepath.Join(s.root, cat)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.Note{}, fmt.Errorf("storage: create category dir %s: %w", cat, err)
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	datePrefix := meta.CreatedAt.Format("2006-01-02")
	slug := sanitize.Filename(suggestedFilename, s.maxNameLen-dateOverhead)
	base := datePrefix + "_" + slug + NoteExt

	content := frontmatter.Render(frontmatter.Fields{
		Title:          frontmatter.Title(text),
		CreatedAt:      meta.CreatedAt,
		Classification: meta.Classification,
		Confidence:     meta.Confidence,
		UserID:         meta.UserID,
		MessageID:      meta.MessageID,
		Username:       meta.Username,
	}) + text + "\n"

	f, name, err := claim(dir, base)
	if err != nil {
		return models.Note{}, fmt.Errorf("storage: claim filename: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return models.Note{}, fmt.Errorf("storage: write note: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return models.Note{}, fmt.Errorf("storage: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return models.Note{}, fmt.Errorf("storage: close note: %w", err)
	}

	if s.backupEnabled {
		// Best effort: a failed backup never fails the save.
		if err := s.backup(filepath.Join(dir, name)); err != nil {
			s.logger.Warn("storage: backup failed",
				slog.String("file", name),
				slog.String("error", err.Error()))
		}
	}

	rel := filepath.Join(cat, name)
	s.logger.Info("storage: note saved",
		slog.String("path", rel),
		slog.String("category", cat))

	return models.Note{
		Path:     rel,
		Category: cat,
		Filename: name,
		Text:     text,
		Metadata: meta,
	}, nil
}

// claim exclusively creates the first free variant of base in dir: base
// itself, then <stem>_1<ext>, <stem>_2<ext>, ... At most one concurrent
// caller wins any given name.
func claim(dir, base string) (*os.File, string, error) {
	path := filepath.Join(dir, base)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		return f, base, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, "", err
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s_%d%s", stem, n, ext)
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
}

// safePath resolves a relative path against the root and rejects any result
// that escapes it (directory traversal).
func (s *NoteStore) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(s.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, s.root+string(os.PathSeparator)) && abs != s.root {
		return "", fmt.Errorf("storage: path escapes notes root: %s", rel)
	}
	return abs, nil
}

// Read returns the raw bytes of a note file.
func (s *NoteStore) Read(path string) ([]byte, error) {
	abs, err := s.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// categoryDirs returns the category directory names, ignoring dot-dirs
// (reserved for internal use, e.g. backups). A missing root means no data,
// not an error.
func (s *NoteStore) categoryDirs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read root: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// ListCategories returns the sorted set of category names.
func (s *NoteStore) ListCategories() ([]string, error) {
	cats, err := s.categoryDirs()
	if err != nil {
		return nil, err
	}
	sort.Strings(cats)
	return cats, nil
}

// notesIn returns refs for the note files directly inside one category dir.
func (s *NoteStore) notesIn(cat string) ([]models.NoteRef, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, cat))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read category %s: %w", cat, err)
	}
	var out []models.NoteRef
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), NoteExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			s.logger.Warn("storage: stat failed",
				slog.String("file", e.Name()),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, models.NoteRef{
			Path:       filepath.Join(cat, e.Name()),
			Category:   cat,
			Filename:   e.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	return out, nil
}

// List returns refs for every note in the tree.
func (s *NoteStore) List() ([]models.NoteRef, error) {
	cats, err := s.categoryDirs()
	if err != nil {
		return nil, err
	}
	var out []models.NoteRef
	for _, cat := range cats {
		refs, err := s.notesIn(cat)
		if err != nil {
			return nil, err
		}
		out = append(out, refs...)
	}
	return out, nil
}

// ClassCounts maps each category to the number of notes directly inside it.
func (s *NoteStore) ClassCounts() (map[string]int, error) {
	cats, err := s.categoryDirs()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(cats))
	for _, cat := range cats {
		refs, err := s.notesIn(cat)
		if err != nil {
			return nil, err
		}
		counts[cat] = len(refs)
	}
	return counts, nil
}

// TotalCount returns the sum of all class counts.
func (s *NoteStore) TotalCount() (int, error) {
	counts, err := s.ClassCounts()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// scope narrows an operation to one (sanitized) category when set, or to
// all categories otherwise. An unknown category yields no results.
func (s *NoteStore) scope(category string) ([]string, error) {
	if category == "" {
		return s.categoryDirs()
	}
	cat := sanitize.Category(category)
	if _, err := os.Stat(filepath.Join(s.root, cat)); err != nil {
		return nil, nil
	}
	return []string{cat}, nil
}

// Search returns notes whose content contains query, case-insensitively,
// ordered by last-modified time descending. Unreadable files are skipped
// and logged, never fatal.
func (s *NoteStore) Search(query, category string) ([]models.NoteRef, error) {
	cats, err := s.scope(category)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	var out []models.NoteRef
	for _, cat := range cats {
		refs, err := s.notesIn(cat)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			data, err := os.ReadFile(filepath.Join(s.root, ref.Path))
			if err != nil {
				s.logger.Warn("storage: search read failed",
					slog.String("path", ref.Path),
					slog.String("error", err.Error()))
				continue
			}
			if strings.Contains(strings.ToLower(string(data)), needle) {
				out = append(out, ref)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ModifiedAt.After(out[j].ModifiedAt)
	})
	return out, nil
}

// Recent returns up to limit notes ordered by creation time descending.
// Notes are immutable once saved, so the modification time is the creation
// time.
func (s *NoteStore) Recent(limit int, category string) ([]models.NoteRef, error) {
	if limit <= 0 {
		limit = 10
	}
	cats, err := s.scope(category)
	if err != nil {
		return nil, err
	}
	var out []models.NoteRef
	for _, cat := range cats {
		refs, err := s.notesIn(cat)
		if err != nil {
			return nil, err
		}
		out = append(out, refs...)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ModifiedAt.After(out[j].ModifiedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// backup copies a just-written note into the hidden backup area with a
// timestamp suffix.
func (s *NoteStore) backup(path string) error {
	dir := filepath.Join(s.root, BackupDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, NoteExt)
	name := fmt.Sprintf("%s_%s%s", stem, time.Now().Format("20060102_150405"), NoteExt)

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

// CleanupBackups deletes backup files older than the retention window.
// Advisory: failures are logged and swallowed.
func (s *NoteStore) CleanupBackups(retention time.Duration) {
	dir := filepath.Join(s.root, BackupDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-retention)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), NoteExt) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			s.logger.Warn("storage: backup cleanup failed",
				slog.String("file", e.Name()),
				slog.String("error", err.Error()))
		} else {
			s.logger.Debug("storage: old backup removed", slog.String("file", e.Name()))
		}
	}
}
