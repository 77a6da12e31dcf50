package agenda

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/agenda/internal/wire"
)

// newTestStore creates a store in a temporary directory, closed on cleanup.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fastRetry keeps retry tests quick.
var fastRetry = RetryPolicy{Attempts: 3, Timeout: time.Second, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

// fakeRemote is an in-memory server. Upserts are keyed the way the real
// server keys them. The hook fields, when set, run before the default
// behaviour and may return an error to fail the call.
type fakeRemote struct {
	mu        sync.Mutex
	bookmarks map[string]ServerBookmark // owner/year/slug
	notes     map[string]ServerNote     // local id
	nextID    int
	calls     map[string]int

	healthErr        error
	upsertBookmarkFn func(b Bookmark) error
	upsertNoteFn     func(n Note) error
	listBookmarksFn  func(owner string, year int) error
	listNotesFn      func(owner string, year int) error
}

var _ RemoteAPI = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		bookmarks: make(map[string]ServerBookmark),
		notes:     make(map[string]ServerNote),
		calls:     make(map[string]int),
	}
}

func (f *fakeRemote) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeRemote) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) HealthCheck(ctx context.Context) (*wire.HealthResponse, error) {
	f.count("health")
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	return &wire.HealthResponse{Status: "ok", Version: "test"}, nil
}

func (f *fakeRemote) UpsertBookmark(ctx context.Context, b Bookmark) (string, error) {
	f.count("upsert_bookmark")
	if f.upsertBookmarkFn != nil {
		if err := f.upsertBookmarkFn(b); err != nil {
			return "", err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s/%d/%s", b.Owner, b.Year, b.Slug)
	existing, ok := f.bookmarks[key]
	id := existing.ID
	if !ok {
		f.nextID++
		id = fmt.Sprintf("srv-b%d", f.nextID)
	}
	f.bookmarks[key] = ServerBookmark{
		ID: id, Owner: b.Owner, Year: b.Year, Slug: b.Slug,
		Kind: b.Kind, Status: b.Status, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
	return id, nil
}

func (f *fakeRemote) ListBookmarks(ctx context.Context, owner string, year int) ([]ServerBookmark, error) {
	f.count("list_bookmarks")
	if f.listBookmarksFn != nil {
		if err := f.listBookmarksFn(owner, year); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := []ServerBookmark{}
	for _, b := range f.bookmarks {
		if b.Owner == owner && (year == 0 || b.Year == year) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRemote) UpsertNote(ctx context.Context, n Note) (string, error) {
	f.count("upsert_note")
	if f.upsertNoteFn != nil {
		if err := f.upsertNoteFn(n); err != nil {
			return "", err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.notes[n.ID]
	id := existing.ID
	if !ok {
		f.nextID++
		id = fmt.Sprintf("srv-n%d", f.nextID)
	}
	f.notes[n.ID] = ServerNote{
		ID: id, LocalID: n.ID, Owner: n.Owner, Year: n.Year, Slug: n.Slug,
		Text: n.Text, TimeOffset: n.TimeOffset, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt,
	}
	return id, nil
}

func (f *fakeRemote) ListNotes(ctx context.Context, owner string, year int) ([]ServerNote, error) {
	f.count("list_notes")
	if f.listNotesFn != nil {
		if err := f.listNotesFn(owner, year); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := []ServerNote{}
	for _, n := range f.notes {
		if n.Owner == owner && (year == 0 || n.Year == year) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRemote) DeleteNote(ctx context.Context, serverID string) error {
	f.count("delete_note")

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, n := range f.notes {
		if n.ID == serverID {
			delete(f.notes, id)
		}
	}
	return nil
}

// putBookmark seeds a server-side bookmark.
func (f *fakeRemote) putBookmark(b ServerBookmark) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookmarks[fmt.Sprintf("%s/%d/%s", b.Owner, b.Year, b.Slug)] = b
}

// putNote seeds a server-side note.
func (f *fakeRemote) putNote(n ServerNote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := n.LocalID
	if key == "" {
		key = n.ID
	}
	f.notes[key] = n
}

func intPtr(v int) *int { return &v }
