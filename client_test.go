package agenda

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func newTestClient(t *testing.T, owner string, opts ...ClientOption) *Client {
	t.Helper()
	cfg := Config{
		LocalPath: filepath.Join(t.TempDir(), "agenda.db"),
		Owner:     owner,
		Retry:     fastRetry,
	}
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_ValidationErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"server without key", Config{LocalPath: filepath.Join(dir, "a.db"), ServerURL: "http://localhost"}, "APIKey"},
		{"bad owner", Config{LocalPath: filepath.Join(dir, "b.db"), Owner: "../etc"}, "Owner"},
		{"reserved owner", Config{LocalPath: filepath.Join(dir, "c.db"), Owner: "local"}, "Owner"},
		{"negative interval", Config{LocalPath: filepath.Join(dir, "d.db"), SyncInterval: -1}, "SyncInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestClient_OfflineBookmarks(t *testing.T) {
	c := newTestClient(t, "alice")
	ctx := context.Background()

	if _, err := c.Bookmark(ctx, 2025, "opening-keynote", KindEvent); err != nil {
		t.Fatalf("Bookmark: %v", err)
	}
	if _, err := c.Bookmark(ctx, 2025, "go-track", KindTrack); err != nil {
		t.Fatalf("Bookmark: %v", err)
	}
	// Bookmarking again must not create a second row.
	if _, err := c.Bookmark(ctx, 2025, "opening-keynote", KindEvent); err != nil {
		t.Fatalf("Bookmark again: %v", err)
	}

	got, err := c.Bookmarks(ctx, 2025)
	if err != nil {
		t.Fatalf("Bookmarks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bookmarks, want 2", len(got))
	}

	b, err := c.Unbookmark(ctx, 2025, "go-track")
	if err != nil {
		t.Fatalf("Unbookmark: %v", err)
	}
	if b.Status != StatusUnfavourited {
		t.Errorf("Status = %q, want unfavourited", b.Status)
	}

	got, _ = c.Bookmarks(ctx, 2025)
	if len(got) != 1 || got[0].Slug != "opening-keynote" {
		t.Errorf("after unbookmark got %+v", got)
	}

	if _, err := c.Unbookmark(ctx, 2025, "never-bookmarked"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Unbookmark unknown: err = %v, want ErrNotFound", err)
	}
}

func TestClient_Notes(t *testing.T) {
	c := newTestClient(t, "alice")
	ctx := context.Background()

	if _, err := c.AddNote(ctx, 2025, "talk", "   ", nil); !errors.Is(err, ErrEmptyNote) {
		t.Fatalf("blank note: err = %v, want ErrEmptyNote", err)
	}

	n, err := c.AddNote(ctx, 2025, "talk", "check the slides", intPtr(90))
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if _, err := c.AddNote(ctx, 2025, "other-talk", "elsewhere", nil); err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	edited, err := c.EditNote(ctx, n.ID, "slides are online", nil)
	if err != nil {
		t.Fatalf("EditNote: %v", err)
	}
	if edited.Text != "slides are online" || edited.TimeOffset != nil {
		t.Errorf("edited = %+v", edited)
	}

	notes, err := c.Notes(ctx, 2025, "talk")
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != n.ID {
		t.Fatalf("Notes(talk) = %+v", notes)
	}

	if err := c.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := c.Store().Note(n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("note still present: %v", err)
	}
}

func TestClient_DeleteServerNoteNeedsConnectivity(t *testing.T) {
	remote := newFakeRemote()
	c := newTestClient(t, "alice", WithRemote(remote))
	ctx := context.Background()

	n, err := c.Store().SaveNote(Note{Owner: "alice", Year: 2025, Slug: "talk", Text: "synced", ServerID: "srv-9"}, true)
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}

	if err := c.DeleteNote(ctx, n.ID); !errors.Is(err, ErrOffline) {
		t.Fatalf("offline delete: err = %v, want ErrOffline", err)
	}

	c.monitor.Set(true)
	if err := c.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("online delete: %v", err)
	}
	if remote.Calls("delete_note") != 1 {
		t.Errorf("delete_note calls = %d, want 1", remote.Calls("delete_note"))
	}
}

func TestClient_SyncWithoutRemote(t *testing.T) {
	c := newTestClient(t, "alice")
	if _, err := c.Sync(context.Background()); !errors.Is(err, ErrOffline) {
		t.Errorf("Sync: err = %v, want ErrOffline", err)
	}
	if _, err := c.Refresh(context.Background(), 2025); !errors.Is(err, ErrOffline) {
		t.Errorf("Refresh: err = %v, want ErrOffline", err)
	}
}

func TestClient_ComingOnlineSyncs(t *testing.T) {
	remote := newFakeRemote()
	c := newTestClient(t, "alice", WithRemote(remote))
	ctx := context.Background()

	var log eventLog
	unsubscribe := c.Subscribe(log.record)
	defer unsubscribe()

	if _, err := c.Bookmark(ctx, 2025, "keynote", KindEvent); err != nil {
		t.Fatalf("Bookmark: %v", err)
	}
	if remote.Calls("upsert_bookmark") != 0 {
		t.Fatal("offline write reached the server")
	}

	c.SetOnline(true)
	waitFor(t, func() bool { return len(log.kinds(EventSyncCompleted)) > 0 })

	if len(log.kinds(EventOnline)) != 1 {
		t.Errorf("online events = %d, want 1", len(log.kinds(EventOnline)))
	}
	b, err := c.Store().BookmarkBySlug("alice", 2025, "keynote")
	if err != nil {
		t.Fatalf("BookmarkBySlug: %v", err)
	}
	if !b.ExistsOnServer {
		t.Error("bookmark not marked as synced")
	}
}

func TestClient_ExplicitSync(t *testing.T) {
	remote := newFakeRemote()
	c := newTestClient(t, "alice", WithRemote(remote))
	ctx := context.Background()

	if _, err := c.AddNote(ctx, 2025, "talk", "hello", nil); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	report, err := c.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !report.OK() || report.Notes.SyncedCount != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestClient_SetOwnerAdoptsLocalRecords(t *testing.T) {
	remote := newFakeRemote()
	c := newTestClient(t, "", WithRemote(remote))
	ctx := context.Background()

	if _, err := c.Bookmark(ctx, 2025, "keynote", KindEvent); err != nil {
		t.Fatalf("Bookmark: %v", err)
	}
	if _, err := c.Refresh(ctx, 2025); !errors.Is(err, ErrNoOwner) {
		t.Errorf("Refresh without owner: err = %v, want ErrNoOwner", err)
	}

	if err := c.SetOwner(ctx, "local"); err == nil {
		t.Error("SetOwner(local) should fail")
	}
	if err := c.SetOwner(ctx, "alice"); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}
	if c.Owner() != "alice" {
		t.Errorf("Owner = %q", c.Owner())
	}

	got, err := c.Bookmarks(ctx, 2025)
	if err != nil {
		t.Fatalf("Bookmarks: %v", err)
	}
	if len(got) != 1 || got[0].Owner != "alice" {
		t.Errorf("adopted bookmarks = %+v", got)
	}

	report, err := c.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.Bookmarks.SyncedCount != 1 {
		t.Errorf("synced = %d, want 1", report.Bookmarks.SyncedCount)
	}
}

func TestClient_RemembersOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.db")
	ctx := context.Background()

	first, err := New(Config{LocalPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.SetOwner(ctx, "alice"); err != nil {
		t.Fatalf("SetOwner: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := New(Config{LocalPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer second.Close()
	if second.Owner() != "alice" {
		t.Errorf("Owner = %q, want alice", second.Owner())
	}
}

func TestClient_HealthCheck(t *testing.T) {
	t.Run("offline only", func(t *testing.T) {
		c := newTestClient(t, "alice")
		status := c.HealthCheck(context.Background())
		if !status.Healthy || !status.StoreOK || status.ServerReachable {
			t.Errorf("status = %+v", status)
		}
	})

	t.Run("server down", func(t *testing.T) {
		remote := newFakeRemote()
		remote.healthErr = &NetworkError{Operation: "health", Err: errors.New("refused")}
		c := newTestClient(t, "alice", WithRemote(remote))
		status := c.HealthCheck(context.Background())
		if status.ServerReachable || status.Error == "" {
			t.Errorf("status = %+v", status)
		}
		if c.Online() {
			t.Error("client should be offline after a failed health check")
		}
	})

	t.Run("server up", func(t *testing.T) {
		c := newTestClient(t, "alice", WithRemote(newFakeRemote()))
		status := c.HealthCheck(context.Background())
		if !status.ServerReachable {
			t.Errorf("status = %+v", status)
		}
		if !c.Online() {
			t.Error("client should be online after a good health check")
		}
	})
}

func TestClient_WritesInvalidateCaches(t *testing.T) {
	c := newTestClient(t, "alice")

	var log eventLog
	defer c.Subscribe(log.record)()

	if _, err := c.Bookmark(context.Background(), 2025, "keynote", KindEvent); err != nil {
		t.Fatalf("Bookmark: %v", err)
	}
	events := log.kinds(EventCacheInvalidated)
	if len(events) != 1 {
		t.Fatalf("invalidations = %d, want 1", len(events))
	}
	if events[0].Category != CategoryBookmarks || events[0].Key != "alice/2025" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestClient_ConcurrentWrites(t *testing.T) {
	c := newTestClient(t, "alice")
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.AddNote(ctx, 2025, "talk", "note", intPtr(i)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AddNote: %v", err)
	}

	notes, err := c.Notes(ctx, 2025, "talk")
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if len(notes) != 20 {
		t.Errorf("got %d notes, want 20", len(notes))
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c, err := New(Config{LocalPath: filepath.Join(t.TempDir(), "agenda.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := c.Bookmarks(context.Background(), 0); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("after close: err = %v, want ErrStoreClosed", err)
	}
}
