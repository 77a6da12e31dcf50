package agenda

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/agenda/internal/store/migrations"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// Metadata keys.
const (
	metaLastSync     = "last_sync"
	metaCreatedAt    = "created_at"
	metaMigratedFrom = "migrated_from"
	metaOwner        = "owner"
)

// SyncStore is the local record store the sync engine depends on.
// Implementations must be safe for concurrent use.
type SyncStore interface {
	Bookmarks(owner string, year int) ([]Bookmark, error)
	Bookmark(id string) (*Bookmark, error)
	SaveBookmark(b Bookmark, skipSync bool) (*Bookmark, error)
	UpdateBookmark(id string, patch BookmarkPatch) (*Bookmark, error)
	RemoveBookmark(id string) error

	Notes(owner string, year int) ([]Note, error)
	Note(id string) (*Note, error)
	SaveNote(n Note, skipSync bool) (*Note, error)
	UpdateNote(id string, patch NotePatch) (*Note, error)
	RemoveNote(id string) error

	// SyncQueue lists pending uploads for category, oldest first.
	SyncQueue(category Category) ([]SyncQueueEntry, error)

	// QueueUnsyncedForSync enqueues every record not yet on the server that
	// lacks a queue entry, returning how many entries were added.
	QueueUnsyncedForSync() (int, error)

	// CompleteQueueEntry removes an entry after a confirmed upload, unless the
	// record was queued again since the entry was read.
	CompleteQueueEntry(entry SyncQueueEntry) error

	// FailQueueEntry keeps an entry, counting the failed attempt.
	FailQueueEntry(id int64, reason string) error

	GetMetadata(key string) (string, error)
	SetMetadata(key, value string) error
}

// Store is the SQLite implementation of SyncStore.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

var _ SyncStore = (*Store)(nil)

// NewStore opens or creates a local agenda store.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets readers proceed while a sync writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	now := formatTime(time.Now())
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', ?), (?, ?)
	`, schemaVersion, metaCreatedAt, now)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Bookmarks returns the owner's bookmarks for year, or for every year when year is 0.
func (s *Store) Bookmarks(owner string, year int) ([]Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE owner = ?`
	args := []any{owner}
	if year != 0 {
		query += " AND year = ?"
		args = append(args, year)
	}
	query += " ORDER BY year, slug"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query bookmarks: %w", err)
	}
	defer rows.Close()

	results := []Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *b)
	}
	return results, rows.Err()
}

// Bookmark returns a bookmark by local id.
func (s *Store) Bookmark(id string) (*Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return scanBookmark(s.db.QueryRow(`SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = ?`, id))
}

// BookmarkBySlug returns the bookmark for an identity.
func (s *Store) BookmarkBySlug(owner string, year int, slug string) (*Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return scanBookmark(s.db.QueryRow(`SELECT `+bookmarkColumns+` FROM bookmarks WHERE owner = ? AND year = ? AND slug = ?`,
		owner, year, slug))
}

// SaveBookmark inserts or replaces the bookmark for (Owner, Year, Slug),
// keeping the existing local id. Unless skipSync is set the bookmark is queued
// for upload; with skipSync it is stored as already on the server.
func (s *Store) SaveBookmark(b Bookmark, skipSync bool) (*Bookmark, error) {
	if err := ValidateSlug(b.Slug); err != nil {
		return nil, err
	}
	if err := ValidateYear(b.Year); err != nil {
		return nil, err
	}
	if b.Kind == "" {
		b.Kind = KindEvent
	}
	if !b.Kind.IsValid() {
		return nil, ErrInvalidKind
	}
	if b.Status == "" {
		b.Status = StatusFavourited
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanBookmark(tx.QueryRow(`SELECT `+bookmarkColumns+` FROM bookmarks WHERE owner = ? AND year = ? AND slug = ?`,
		b.Owner, b.Year, b.Slug))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("store: lookup bookmark: %w", err)
	}

	now := time.Now().UTC()
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	op := OpCreate
	if existing != nil {
		b.ID = existing.ID
		b.CreatedAt = existing.CreatedAt
		if !skipSync {
			b.ExistsOnServer = existing.ExistsOnServer
			b.ServerID = existing.ServerID
		}
		if b.ExistsOnServer {
			op = OpUpdate
		}
	} else {
		if b.ID == "" {
			b.ID = ulid.Make().String()
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if !skipSync {
			b.ExistsOnServer = false
			b.ServerID = ""
		}
	}
	if skipSync {
		b.ExistsOnServer = true
	}

	_, err = tx.Exec(`
		INSERT INTO bookmarks (id, owner, year, slug, kind, status, created_at, updated_at, exists_on_server, server_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			status = excluded.status,
			updated_at = excluded.updated_at,
			exists_on_server = excluded.exists_on_server,
			server_id = excluded.server_id
	`,
		b.ID, b.Owner, b.Year, b.Slug, string(b.Kind), string(b.Status),
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt), b.ExistsOnServer, nullString(b.ServerID),
	)
	if err != nil {
		return nil, fmt.Errorf("store: save bookmark: %w", err)
	}

	if !skipSync {
		if err := enqueue(tx, CategoryBookmarks, b.ID, op); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return &b, nil
}

// UpdateBookmark applies patch to a bookmark without queueing it.
func (s *Store) UpdateBookmark(id string, patch BookmarkPatch) (*Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	sets, args := []string{}, []any{}
	if patch.Kind != nil {
		if !patch.Kind.IsValid() {
			return nil, ErrInvalidKind
		}
		sets, args = append(sets, "kind = ?"), append(args, string(*patch.Kind))
	}
	if patch.Status != nil {
		sets, args = append(sets, "status = ?"), append(args, string(*patch.Status))
	}
	if patch.UpdatedAt != nil {
		sets, args = append(sets, "updated_at = ?"), append(args, formatTime(*patch.UpdatedAt))
	}
	if patch.ExistsOnServer != nil {
		sets, args = append(sets, "exists_on_server = ?"), append(args, *patch.ExistsOnServer)
	}
	if patch.ServerID != nil {
		sets, args = append(sets, "server_id = ?"), append(args, nullString(*patch.ServerID))
	}

	if err := s.applyPatch("bookmarks", id, sets, args); err != nil {
		return nil, err
	}
	return scanBookmark(s.db.QueryRow(`SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = ?`, id))
}

// RemoveBookmark deletes a bookmark and any pending upload for it.
func (s *Store) RemoveBookmark(id string) error {
	return s.remove("bookmarks", CategoryBookmarks, id)
}

// Notes returns the owner's notes for year, or for every year when year is 0.
func (s *Store) Notes(owner string, year int) ([]Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `SELECT ` + noteColumns + ` FROM notes WHERE owner = ?`
	args := []any{owner}
	if year != 0 {
		query += " AND year = ?"
		args = append(args, year)
	}
	query += " ORDER BY year, slug, created_at, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query notes: %w", err)
	}
	defer rows.Close()

	results := []Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *n)
	}
	return results, rows.Err()
}

// Note returns a note by local id.
func (s *Store) Note(id string) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return scanNote(s.db.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
}

// SaveNote inserts or replaces a note by local id. Unless skipSync is set the
// note is queued for upload; with skipSync it is stored as already on the server.
func (s *Store) SaveNote(n Note, skipSync bool) (*Note, error) {
	if err := ValidateSlug(n.Slug); err != nil {
		return nil, err
	}
	if err := ValidateYear(n.Year); err != nil {
		return nil, err
	}
	if len(n.Text) > MaxNoteLength {
		return nil, ErrNoteTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing *Note
	if n.ID != "" {
		existing, err = scanNote(tx.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, n.ID))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("store: lookup note: %w", err)
		}
	}

	now := time.Now().UTC()
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
	op := OpCreate
	if existing != nil {
		n.CreatedAt = existing.CreatedAt
		if !skipSync {
			n.ExistsOnServer = existing.ExistsOnServer
			n.ServerID = existing.ServerID
		}
		if n.ExistsOnServer {
			op = OpUpdate
		}
	} else {
		if n.ID == "" {
			n.ID = ulid.Make().String()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		if !skipSync {
			n.ExistsOnServer = false
			n.ServerID = ""
		}
	}
	if skipSync {
		n.ExistsOnServer = true
	}

	_, err = tx.Exec(`
		INSERT INTO notes (id, owner, year, slug, text, time_offset, created_at, updated_at, exists_on_server, server_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			time_offset = excluded.time_offset,
			updated_at = excluded.updated_at,
			exists_on_server = excluded.exists_on_server,
			server_id = excluded.server_id
	`,
		n.ID, n.Owner, n.Year, n.Slug, n.Text, nullInt(n.TimeOffset),
		formatTime(n.CreatedAt), formatTime(n.UpdatedAt), n.ExistsOnServer, nullString(n.ServerID),
	)
	if err != nil {
		return nil, fmt.Errorf("store: save note: %w", err)
	}

	if !skipSync {
		if err := enqueue(tx, CategoryNotes, n.ID, op); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return &n, nil
}

// UpdateNote applies patch to a note without queueing it.
func (s *Store) UpdateNote(id string, patch NotePatch) (*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	sets, args := []string{}, []any{}
	if patch.Text != nil {
		if len(*patch.Text) > MaxNoteLength {
			return nil, ErrNoteTooLong
		}
		sets, args = append(sets, "text = ?"), append(args, *patch.Text)
	}
	switch {
	case patch.ClearTimeOffset:
		sets = append(sets, "time_offset = NULL")
	case patch.TimeOffset != nil:
		sets, args = append(sets, "time_offset = ?"), append(args, *patch.TimeOffset)
	}
	if patch.UpdatedAt != nil {
		sets, args = append(sets, "updated_at = ?"), append(args, formatTime(*patch.UpdatedAt))
	}
	if patch.ExistsOnServer != nil {
		sets, args = append(sets, "exists_on_server = ?"), append(args, *patch.ExistsOnServer)
	}
	if patch.ServerID != nil {
		sets, args = append(sets, "server_id = ?"), append(args, nullString(*patch.ServerID))
	}

	if err := s.applyPatch("notes", id, sets, args); err != nil {
		return nil, err
	}
	return scanNote(s.db.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
}

// RemoveNote deletes a note locally and any pending upload for it.
func (s *Store) RemoveNote(id string) error {
	return s.remove("notes", CategoryNotes, id)
}

// SyncQueue lists pending uploads for category, oldest first.
func (s *Store) SyncQueue(category Category) ([]SyncQueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, category, record_id, operation, attempts, last_error, queued_at
		FROM sync_queue WHERE category = ? ORDER BY id
	`, string(category))
	if err != nil {
		return nil, fmt.Errorf("store: query sync queue: %w", err)
	}
	defer rows.Close()

	entries := []SyncQueueEntry{}
	for rows.Next() {
		var (
			e         SyncQueueEntry
			cat, op   string
			lastError sql.NullString
			queuedAt  string
		)
		if err := rows.Scan(&e.ID, &cat, &e.RecordID, &op, &e.Attempts, &lastError, &queuedAt); err != nil {
			return nil, err
		}
		e.Category = Category(cat)
		e.Operation = QueueOperation(op)
		e.LastError = lastError.String
		e.QueuedAt = parseTime(queuedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// QueueUnsyncedForSync enqueues records not yet on the server that have no
// queue entry.
func (s *Store) QueueUnsyncedForSync() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	now := formatTime(time.Now())
	total := 0
	for _, q := range []struct {
		category Category
		table    string
	}{
		{CategoryBookmarks, "bookmarks"},
		{CategoryNotes, "notes"},
	} {
		res, err := s.db.Exec(`
			INSERT OR IGNORE INTO sync_queue (category, record_id, operation, queued_at)
			SELECT ?, id, ?, ? FROM `+q.table+` WHERE exists_on_server = 0
		`, string(q.category), string(OpCreate), now)
		if err != nil {
			return total, fmt.Errorf("store: queue unsynced %s: %w", q.category, err)
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	return total, nil
}

// CompleteQueueEntry removes entry unless the record was queued again after
// entry was read.
func (s *Store) CompleteQueueEntry(entry SyncQueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`DELETE FROM sync_queue WHERE id = ? AND queued_at = ?`,
		entry.ID, formatTime(entry.QueuedAt))
	if err != nil {
		return fmt.Errorf("store: complete queue entry: %w", err)
	}
	return nil
}

// FailQueueEntry records a failed upload attempt.
func (s *Store) FailQueueEntry(id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`UPDATE sync_queue SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		truncateForLog(reason, 1000), id)
	if err != nil {
		return fmt.Errorf("store: fail queue entry: %w", err)
	}
	return nil
}

// AdoptOwner assigns owner to records created before an owner was known and
// queues them for upload. An owner-less bookmark whose identity already
// exists for owner is merged into the owner's row: the more recently updated
// state wins and is queued, and the owner-less row is dropped.
func (s *Store) AdoptOwner(owner string) (int, error) {
	if owner == "" {
		return 0, ErrNoOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	total, err := mergeOwnerlessBookmarks(tx, owner)
	if err != nil {
		return 0, err
	}
	for _, table := range []string{"bookmarks", "notes"} {
		res, err := tx.Exec(`UPDATE OR IGNORE `+table+` SET owner = ?, exists_on_server = 0, server_id = NULL WHERE owner = ''`, owner)
		if err != nil {
			return 0, fmt.Errorf("store: adopt %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, metaOwner, owner); err != nil {
		return 0, fmt.Errorf("store: record owner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return total, nil
}

// mergeOwnerlessBookmarks folds owner-less bookmarks that collide with one of
// owner's bookmarks into it. Callers hold s.mu and an open transaction.
func mergeOwnerlessBookmarks(tx *sql.Tx, owner string) (int, error) {
	rows, err := tx.Query(`
		SELECT o.id, o.kind, o.status, o.updated_at, a.id, a.updated_at, a.exists_on_server
		FROM bookmarks o
		JOIN bookmarks a ON a.owner = ? AND a.year = o.year AND a.slug = o.slug
		WHERE o.owner = ''
	`, owner)
	if err != nil {
		return 0, fmt.Errorf("store: find colliding bookmarks: %w", err)
	}

	type collision struct {
		orphanID, kind, status, orphanUpdated string
		ownedID, ownedUpdated                 string
		ownedOnServer                         bool
	}
	var found []collision
	for rows.Next() {
		var c collision
		if err := rows.Scan(&c.orphanID, &c.kind, &c.status, &c.orphanUpdated, &c.ownedID, &c.ownedUpdated, &c.ownedOnServer); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: scan colliding bookmark: %w", err)
		}
		found = append(found, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("store: find colliding bookmarks: %w", err)
	}

	for _, c := range found {
		if parseTime(c.orphanUpdated).After(parseTime(c.ownedUpdated)) {
			if _, err := tx.Exec(`UPDATE bookmarks SET kind = ?, status = ?, updated_at = ? WHERE id = ?`,
				c.kind, c.status, c.orphanUpdated, c.ownedID); err != nil {
				return 0, fmt.Errorf("store: merge bookmark: %w", err)
			}
			op := OpCreate
			if c.ownedOnServer {
				op = OpUpdate
			}
			if err := enqueue(tx, CategoryBookmarks, c.ownedID, op); err != nil {
				return 0, err
			}
		}
		if _, err := tx.Exec(`DELETE FROM bookmarks WHERE id = ?`, c.orphanID); err != nil {
			return 0, fmt.Errorf("store: drop merged bookmark: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM sync_queue WHERE category = ? AND record_id = ?`, string(CategoryBookmarks), c.orphanID); err != nil {
			return 0, fmt.Errorf("store: dequeue merged bookmark: %w", err)
		}
	}
	return len(found), nil
}

// GetMetadata returns a metadata value, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("store: set metadata %s: %w", key, err)
	}
	return nil
}

// SetStoreMigratedFrom records the legacy database a profile was copied from.
func (s *Store) SetStoreMigratedFrom(path string) error {
	return s.SetMetadata(metaMigratedFrom, path)
}

// GetStoreMigratedFrom returns the legacy database path, or "" if the profile
// was created fresh.
func (s *Store) GetStoreMigratedFrom() (string, error) {
	return s.GetMetadata(metaMigratedFrom)
}

// Stats returns store statistics.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var stats StoreStats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM bookmarks WHERE status = ?", string(StatusFavourited)).Scan(&stats.BookmarkCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&stats.NoteCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sync_queue").Scan(&stats.PendingSync); err != nil {
		return nil, err
	}

	var lastSync sql.NullString
	_ = s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", metaLastSync).Scan(&lastSync)
	if lastSync.Valid {
		stats.LastSync = parseTime(lastSync.String)
	}
	stats.SchemaVersion = schemaVersion

	return &stats, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func enqueue(ex execer, category Category, recordID string, op QueueOperation) error {
	_, err := ex.Exec(`
		INSERT INTO sync_queue (category, record_id, operation, queued_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category, record_id) DO UPDATE SET queued_at = excluded.queued_at
	`, string(category), recordID, string(op), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("store: enqueue sync: %w", err)
	}
	return nil
}

// applyPatch runs an UPDATE built from sets. Callers hold s.mu.
func (s *Store) applyPatch(table, id string, sets []string, args []any) error {
	if len(sets) == 0 {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	res, err := s.db.Exec(`UPDATE `+table+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`, append(args, id)...)
	if err != nil {
		return fmt.Errorf("store: update %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) remove(table string, category Category, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM sync_queue WHERE category = ? AND record_id = ?`, string(category), id); err != nil {
		return fmt.Errorf("store: dequeue %s: %w", table, err)
	}
	return tx.Commit()
}

const bookmarkColumns = `id, owner, year, slug, kind, status, created_at, updated_at, exists_on_server, server_id`

const noteColumns = `id, owner, year, slug, text, time_offset, created_at, updated_at, exists_on_server, server_id`

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanBookmark returns ErrNotFound only for sql.ErrNoRows from *sql.Row.
func scanBookmark(sc scanner) (*Bookmark, error) {
	var (
		b                    Bookmark
		kind, status         string
		createdAt, updatedAt string
		serverID             sql.NullString
	)
	err := sc.Scan(&b.ID, &b.Owner, &b.Year, &b.Slug, &kind, &status, &createdAt, &updatedAt, &b.ExistsOnServer, &serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Kind = BookmarkKind(kind)
	b.Status = BookmarkStatus(status)
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	b.ServerID = serverID.String
	return &b, nil
}

func scanNote(sc scanner) (*Note, error) {
	var (
		n                    Note
		offset               sql.NullInt64
		createdAt, updatedAt string
		serverID             sql.NullString
	)
	err := sc.Scan(&n.ID, &n.Owner, &n.Year, &n.Slug, &n.Text, &offset, &createdAt, &updatedAt, &n.ExistsOnServer, &serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if offset.Valid {
		v := int(offset.Int64)
		n.TimeOffset = &v
	}
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	n.ServerID = serverID.String
	return &n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
