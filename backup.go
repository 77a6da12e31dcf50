package agenda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// BackupVersion is the current version of the backup format.
const BackupVersion = "1.0"

// Backup is the JSON document written by ExportJSON.
type Backup struct {
	Version    string     `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Owner      string     `json:"owner"`
	Bookmarks  []Bookmark `json:"bookmarks"`
	Notes      []Note     `json:"notes"`
}

// MergeStrategy defines how to handle records that already exist during import.
type MergeStrategy string

const (
	// MergeStrategySkip keeps existing records.
	MergeStrategySkip MergeStrategy = "skip"
	// MergeStrategyReplace overwrites existing records with imported versions.
	MergeStrategyReplace MergeStrategy = "replace"
	// MergeStrategyMerge keeps whichever copy was updated last (default).
	MergeStrategyMerge MergeStrategy = "merge"
)

// IsValid checks if the strategy is known.
func (m MergeStrategy) IsValid() bool {
	switch m {
	case MergeStrategySkip, MergeStrategyReplace, MergeStrategyMerge:
		return true
	}
	return false
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Merged  int      `json:"merged"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// ExportJSON writes every record belonging to owner as a Backup document.
func (s *Store) ExportJSON(ctx context.Context, owner string, w io.Writer) error {
	bookmarks, err := s.Bookmarks(owner, 0)
	if err != nil {
		return fmt.Errorf("export bookmarks: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	notes, err := s.Notes(owner, 0)
	if err != nil {
		return fmt.Errorf("export notes: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Backup{
		Version:    BackupVersion,
		ExportedAt: time.Now().UTC(),
		Owner:      owner,
		Bookmarks:  bookmarks,
		Notes:      notes,
	})
}

// ImportJSON loads a Backup into the store under owner. Imported records are
// queued for upload; the server's upserts make re-uploading them harmless.
// With dryRun set nothing is written.
func (s *Store) ImportJSON(ctx context.Context, owner string, r io.Reader, strategy MergeStrategy, dryRun bool) (*ImportResult, error) {
	if strategy == "" {
		strategy = MergeStrategyMerge
	}
	if !strategy.IsValid() {
		return nil, fmt.Errorf("import: unknown strategy %q", strategy)
	}

	var backup Backup
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("import: decode: %w", err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("import: unsupported version %q", backup.Version)
	}

	result := &ImportResult{}
	for _, b := range backup.Bookmarks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Total++
		b.Owner = owner

		existing, err := s.BookmarkBySlug(owner, b.Year, b.Slug)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return result, fmt.Errorf("import: lookup bookmark: %w", err)
		}
		if existing != nil && !shouldOverwrite(strategy, existing.UpdatedAt, b.UpdatedAt) {
			result.Skipped++
			continue
		}
		if !dryRun {
			if _, err := s.SaveBookmark(b, false); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("bookmark %d/%s: %v", b.Year, b.Slug, err))
				continue
			}
		}
		if existing != nil {
			result.Merged++
		} else {
			result.Created++
		}
	}

	for _, n := range backup.Notes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Total++
		n.Owner = owner

		var existing *Note
		if n.ID != "" {
			existing, _ = s.Note(n.ID)
		}
		if existing != nil && !shouldOverwrite(strategy, existing.UpdatedAt, n.UpdatedAt) {
			result.Skipped++
			continue
		}
		if !dryRun {
			if _, err := s.SaveNote(n, false); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("note %s: %v", n.ID, err))
				continue
			}
		}
		if existing != nil {
			result.Merged++
		} else {
			result.Created++
		}
	}

	return result, nil
}

func shouldOverwrite(strategy MergeStrategy, existing, imported time.Time) bool {
	switch strategy {
	case MergeStrategySkip:
		return false
	case MergeStrategyReplace:
		return true
	default:
		return imported.After(existing)
	}
}

// ExportSQLite copies the database to destPath.
// It performs a WAL checkpoint first so the copy is self-contained.
func (s *Store) ExportSQLite(ctx context.Context, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint WAL: %w", err)
	}

	srcFile, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, srcFile); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("copy database: %w", err)
	}

	return destFile.Sync()
}
