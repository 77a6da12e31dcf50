package agenda

import (
	"strings"
	"time"
)

// BookmarkKind distinguishes bookmarked sessions from bookmarked tracks.
type BookmarkKind string

const (
	KindEvent BookmarkKind = "event"
	KindTrack BookmarkKind = "track"
)

// IsValid checks if the kind is a known bookmark kind.
func (k BookmarkKind) IsValid() bool {
	return k == KindEvent || k == KindTrack
}

// BookmarkStatus records whether the bookmark is currently active.
// Removing a bookmark flips the status instead of deleting the row so the
// change can be uploaded.
type BookmarkStatus string

const (
	StatusFavourited   BookmarkStatus = "favourited"
	StatusUnfavourited BookmarkStatus = "unfavourited"
)

// Bookmark is a user's bookmark on a session or track.
// Identity is (Owner, Year, Slug); the store keeps at most one per identity.
type Bookmark struct {
	ID             string         `json:"id"`
	Owner          string         `json:"owner"`
	Year           int            `json:"year"`
	Slug           string         `json:"slug"`
	Kind           BookmarkKind   `json:"kind"`
	Status         BookmarkStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ExistsOnServer bool           `json:"exists_on_server"`
	ServerID       string         `json:"server_id,omitempty"`
}

// Note is a free-text note attached to a session.
// Identity is (Owner, Year, Slug, ID); ID is generated locally and sent to the
// server so retries land on the same row.
type Note struct {
	ID             string    `json:"id"`
	Owner          string    `json:"owner"`
	Year           int       `json:"year"`
	Slug           string    `json:"slug"`
	Text           string    `json:"text"`
	TimeOffset     *int      `json:"time_offset,omitempty"` // seconds into the recording
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ExistsOnServer bool      `json:"exists_on_server"`
	ServerID       string    `json:"server_id,omitempty"`
}

// BookmarkPatch carries the fields UpdateBookmark may change. Nil fields are left alone.
type BookmarkPatch struct {
	Kind           *BookmarkKind
	Status         *BookmarkStatus
	UpdatedAt      *time.Time
	ExistsOnServer *bool
	ServerID       *string
}

// NotePatch carries the fields UpdateNote may change. Nil fields are left alone.
type NotePatch struct {
	Text            *string
	TimeOffset      *int
	ClearTimeOffset bool
	UpdatedAt       *time.Time
	ExistsOnServer  *bool
	ServerID        *string
}

// Category is a synchronized data category.
type Category string

const (
	CategoryBookmarks Category = "bookmarks"
	CategoryNotes     Category = "notes"
)

// Categories returns every synchronized category.
func Categories() []Category {
	return []Category{CategoryBookmarks, CategoryNotes}
}

// QueueOperation is the kind of upload a queue entry stands for.
type QueueOperation string

const (
	OpCreate QueueOperation = "create"
	OpUpdate QueueOperation = "update"
)

// SyncQueueEntry references a local record awaiting upload.
type SyncQueueEntry struct {
	ID        int64          `json:"id"`
	Category  Category       `json:"category"`
	RecordID  string         `json:"record_id"`
	Operation QueueOperation `json:"operation"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"last_error,omitempty"`
	QueuedAt  time.Time      `json:"queued_at"`
}

// SyncResult summarizes one category of one sync run.
type SyncResult struct {
	Success     bool     `json:"success"`
	SyncedCount int      `json:"synced_count"`
	Errors      []string `json:"errors"`
}

// SyncReport is the outcome of a full sync run.
type SyncReport struct {
	Bookmarks SyncResult `json:"bookmarks"`
	Notes     SyncResult `json:"notes"`
}

// OK reports whether both categories synced without record errors.
func (r *SyncReport) OK() bool {
	return r != nil && r.Bookmarks.Success && r.Notes.Success
}

// ServerBookmark is the server's copy of a bookmark.
type ServerBookmark struct {
	ID        string         `json:"id"`
	Owner     string         `json:"owner"`
	Year      int            `json:"year"`
	Slug      string         `json:"slug"`
	Kind      BookmarkKind   `json:"kind"`
	Status    BookmarkStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ServerNote is the server's copy of a note. LocalID echoes the id the note
// was created with on the device.
type ServerNote struct {
	ID         string    `json:"id"`
	LocalID    string    `json:"local_id"`
	Owner      string    `json:"owner"`
	Year       int       `json:"year"`
	Slug       string    `json:"slug"`
	Text       string    `json:"text"`
	TimeOffset *int      `json:"time_offset,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StoreStats contains statistics about the local store.
type StoreStats struct {
	BookmarkCount int       `json:"bookmark_count"`
	NoteCount     int       `json:"note_count"`
	PendingSync   int       `json:"pending_sync"`
	LastSync      time.Time `json:"last_sync"`
	SchemaVersion string    `json:"schema_version"`
}

// HealthStatus represents the health of the client.
type HealthStatus struct {
	Healthy         bool   `json:"healthy"`
	StoreOK         bool   `json:"store_ok"`
	ServerReachable bool   `json:"server_reachable"`
	Error           string `json:"error,omitempty"`
}

// Limits.
const (
	MaxNoteLength = 10000
	MaxSlugLength = 200
	MinYear       = 2000
	MaxYear       = 2100
)

// ValidateSlug checks that a session slug is usable as a record key.
func ValidateSlug(slug string) error {
	if strings.TrimSpace(slug) == "" || len(slug) > MaxSlugLength {
		return ErrInvalidSlug
	}
	if strings.ContainsAny(slug, " \t\r\n/") {
		return ErrInvalidSlug
	}
	return nil
}

// ValidateYear checks the conference year.
func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return ErrInvalidYear
	}
	return nil
}
