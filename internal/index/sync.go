package index

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/storage"
)

// Sync walks the notes tree and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
//
// Sync is idempotent; the whole index can be rebuilt from an empty database.
func Sync(db *DB, store storage.Store, logger *slog.Logger) error {
	refs, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		disk[ref.Path] = struct{}{}

		data, err := store.Read(ref.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", ref.Path), slog.String("error", err.Error()))
			continue
		}
		cs := checksum.Sum(data)
		if checksums[ref.Path] == cs {
			continue
		}
		if err := IndexFile(db, ref.Path, data, ref.ModifiedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", ref.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", ref.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses a note file and upserts it into the DB. The category is
// the first path element; the title and creation time come from the
// frontmatter header when present. The whole file, header included, goes
// into the searchable body so queries can hit frontmatter fields too.
func IndexFile(db *DB, path string, data []byte, modTime time.Time) error {
	p := frontmatter.Parse(data)

	createdAt := p.Time("created_at")
	if createdAt.IsZero() {
		createdAt = modTime
	}
	title := p.String("title")

	category := filepath.Dir(path)
	if category == "." {
		category = ""
	}

	return db.UpsertNote(NoteRow{
		Path:      path,
		Category:  category,
		Title:     title,
		Checksum:  checksum.Sum(data),
		CreatedAt: createdAt,
		UpdatedAt: modTime,
	}, string(data))
}
