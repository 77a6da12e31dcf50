package agenda

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// syncBookmarks uploads every queued bookmark, then reconciles the years it
// touched against the server when owner is known.
//
// Per-record upload failures are recorded in the result and leave the entry
// queued. Only store failures reject the task.
func (o *Orchestrator) syncBookmarks(ctx context.Context, owner string) (SyncResult, error) {
	result := SyncResult{Success: true, Errors: []string{}}

	entries, err := o.store.SyncQueue(CategoryBookmarks)
	if err != nil {
		result.Success = false
		return result, fmt.Errorf("read bookmark queue: %w", err)
	}

	years := map[int]bool{}
	for _, entry := range entries {
		b, err := o.store.Bookmark(entry.RecordID)
		if errors.Is(err, ErrNotFound) {
			// Record removed after it was queued.
			_ = o.store.CompleteQueueEntry(entry)
			continue
		}
		if err != nil {
			result.Success = false
			return result, fmt.Errorf("load bookmark %s: %w", entry.RecordID, err)
		}
		if b.Owner == "" {
			o.debug.LogSync("bookmarks", fmt.Sprintf("skip %s: no owner yet", b.Slug))
			continue
		}

		serverID, err := WithRetry(ctx, o.policy("upsert_bookmark"), func(ctx context.Context) (string, error) {
			return o.remote.UpsertBookmark(ctx, *b)
		})
		if err != nil {
			o.debug.LogError("upsert_bookmark", err)
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("bookmark %s/%d/%s: %v", b.Owner, b.Year, b.Slug, err))
			if ferr := o.store.FailQueueEntry(entry.ID, err.Error()); ferr != nil {
				return result, fmt.Errorf("record bookmark failure: %w", ferr)
			}
			continue
		}

		synced := true
		_, err = o.store.UpdateBookmark(b.ID, BookmarkPatch{ExistsOnServer: &synced, ServerID: &serverID})
		if errors.Is(err, ErrNotFound) {
			// Removed locally while the upload was in flight. The server has no
			// bookmark delete, so its copy is unfavourited instead.
			result.Success = false
			msg := fmt.Sprintf("bookmark %s/%d/%s: removed during upload", b.Owner, b.Year, b.Slug)
			withdrawn := *b
			withdrawn.Status = StatusUnfavourited
			if _, werr := WithRetry(ctx, o.policy("upsert_bookmark"), func(ctx context.Context) (string, error) {
				return o.remote.UpsertBookmark(ctx, withdrawn)
			}); werr != nil {
				o.debug.LogError("upsert_bookmark", werr)
				msg = fmt.Sprintf("%s; server copy left favourited: %v", msg, werr)
			}
			result.Errors = append(result.Errors, msg)
			if err := o.store.CompleteQueueEntry(entry); err != nil {
				return result, fmt.Errorf("complete bookmark entry: %w", err)
			}
			continue
		}
		if err != nil {
			result.Success = false
			return result, fmt.Errorf("promote bookmark %s: %w", b.ID, err)
		}
		if err := o.store.CompleteQueueEntry(entry); err != nil {
			result.Success = false
			return result, fmt.Errorf("complete bookmark entry: %w", err)
		}
		result.SyncedCount++
		years[b.Year] = true
	}

	o.invalidator.Invalidate(CategoryBookmarks, cacheKey(owner, 0))
	o.debug.LogSync("bookmarks", fmt.Sprintf("pushed %d of %d", result.SyncedCount, len(entries)))

	if owner == "" {
		return result, nil
	}
	for _, year := range sortedYears(years) {
		stats, err := o.pullBookmarks(ctx, owner, year)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("pull bookmarks %d: %v", year, err))
			continue
		}
		if stats.Failed > 0 {
			result.Success = false
			result.Errors = append(result.Errors, stats.Errors...)
		}
	}
	return result, nil
}

// syncNotes is syncBookmarks for notes.
func (o *Orchestrator) syncNotes(ctx context.Context, owner string) (SyncResult, error) {
	result := SyncResult{Success: true, Errors: []string{}}

	entries, err := o.store.SyncQueue(CategoryNotes)
	if err != nil {
		result.Success = false
		return result, fmt.Errorf("read note queue: %w", err)
	}

	years := map[int]bool{}
	for _, entry := range entries {
		n, err := o.store.Note(entry.RecordID)
		if errors.Is(err, ErrNotFound) {
			_ = o.store.CompleteQueueEntry(entry)
			continue
		}
		if err != nil {
			result.Success = false
			return result, fmt.Errorf("load note %s: %w", entry.RecordID, err)
		}
		if n.Owner == "" {
			o.debug.LogSync("notes", fmt.Sprintf("skip %s: no owner yet", n.ID))
			continue
		}

		serverID, err := WithRetry(ctx, o.policy("upsert_note"), func(ctx context.Context) (string, error) {
			return o.remote.UpsertNote(ctx, *n)
		})
		if err != nil {
			o.debug.LogError("upsert_note", err)
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("note %s (%s/%d/%s): %v", n.ID, n.Owner, n.Year, n.Slug, err))
			if ferr := o.store.FailQueueEntry(entry.ID, err.Error()); ferr != nil {
				return result, fmt.Errorf("record note failure: %w", ferr)
			}
			continue
		}

		synced := true
		_, err = o.store.UpdateNote(n.ID, NotePatch{ExistsOnServer: &synced, ServerID: &serverID})
		if errors.Is(err, ErrNotFound) {
			// Deleted locally while the upload was in flight; drop the copy
			// the upload just created so a later pull does not restore it.
			result.Success = false
			msg := fmt.Sprintf("note %s: deleted during upload", n.ID)
			if _, derr := WithRetry(ctx, o.policy("delete_note"), func(ctx context.Context) (struct{}, error) {
				return struct{}{}, o.remote.DeleteNote(ctx, serverID)
			}); derr != nil {
				o.debug.LogError("delete_note", derr)
				msg = fmt.Sprintf("%s; server copy %s left behind: %v", msg, serverID, derr)
			}
			result.Errors = append(result.Errors, msg)
			if err := o.store.CompleteQueueEntry(entry); err != nil {
				return result, fmt.Errorf("complete note entry: %w", err)
			}
			continue
		}
		if err != nil {
			result.Success = false
			return result, fmt.Errorf("promote note %s: %w", n.ID, err)
		}
		if err := o.store.CompleteQueueEntry(entry); err != nil {
			result.Success = false
			return result, fmt.Errorf("complete note entry: %w", err)
		}
		result.SyncedCount++
		years[n.Year] = true
	}

	o.invalidator.Invalidate(CategoryNotes, cacheKey(owner, 0))
	o.debug.LogSync("notes", fmt.Sprintf("pushed %d of %d", result.SyncedCount, len(entries)))

	if owner == "" {
		return result, nil
	}
	for _, year := range sortedYears(years) {
		stats, err := o.pullNotes(ctx, owner, year)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("pull notes %d: %v", year, err))
			continue
		}
		if stats.Failed > 0 {
			result.Success = false
			result.Errors = append(result.Errors, stats.Errors...)
		}
	}
	return result, nil
}

// pullBookmarks reconciles the owner's bookmarks for year with the server.
// Bookmarks with an upload still queued keep their local state.
func (o *Orchestrator) pullBookmarks(ctx context.Context, owner string, year int) (ReconcileStats, error) {
	server, err := WithRetry(ctx, o.policy("list_bookmarks"), func(ctx context.Context) ([]ServerBookmark, error) {
		return o.remote.ListBookmarks(ctx, owner, year)
	})
	if err != nil {
		return ReconcileStats{}, err
	}
	local, err := o.store.Bookmarks(owner, year)
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("load bookmarks: %w", err)
	}
	pending, err := o.pendingRecords(CategoryBookmarks)
	if err != nil {
		return ReconcileStats{}, err
	}

	fromServer := func(s ServerBookmark, serverID string) Bookmark {
		y := s.Year
		if y == 0 {
			y = year
		}
		return Bookmark{
			Owner:     owner,
			Year:      y,
			Slug:      s.Slug,
			Kind:      s.Kind,
			Status:    s.Status,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
			ServerID:  serverID,
		}
	}

	return Reconcile(ctx, ReconcileParams[Bookmark, ServerBookmark]{
		Category:    CategoryBookmarks,
		LocalItems:  local,
		ServerItems: server,
		LocalKey:    func(b Bookmark) string { return bookmarkKey(b.Year, b.Slug) },
		ServerKey:   func(s ServerBookmark) string { return bookmarkKey(fromServer(s, "").Year, s.Slug) },
		ServerID:    func(s ServerBookmark) string { return s.ID },
		CreateLocal: func(_ context.Context, s ServerBookmark, serverID string) error {
			_, err := o.store.SaveBookmark(fromServer(s, serverID), true)
			return err
		},
		UpdateLocal: func(_ context.Context, l Bookmark, s ServerBookmark, serverID string) error {
			b := fromServer(s, serverID)
			b.ID = l.ID
			_, err := o.store.SaveBookmark(b, true)
			return err
		},
		NeedsUpdate: bookmarkNeedsUpdate,
		Hold:        func(b Bookmark) bool { return pending[b.ID] },
		Invalidate:  func() { o.invalidator.Invalidate(CategoryBookmarks, cacheKey(owner, year)) },
		Concurrency: o.concurrency,
		Logger:      o.debug,
	}), nil
}

// pullNotes reconciles the owner's notes for year with the server. Notes are
// matched on the local id the server echoes back.
func (o *Orchestrator) pullNotes(ctx context.Context, owner string, year int) (ReconcileStats, error) {
	server, err := WithRetry(ctx, o.policy("list_notes"), func(ctx context.Context) ([]ServerNote, error) {
		return o.remote.ListNotes(ctx, owner, year)
	})
	if err != nil {
		return ReconcileStats{}, err
	}
	local, err := o.store.Notes(owner, year)
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("load notes: %w", err)
	}
	pending, err := o.pendingRecords(CategoryNotes)
	if err != nil {
		return ReconcileStats{}, err
	}

	fromServer := func(s ServerNote, serverID string) Note {
		y := s.Year
		if y == 0 {
			y = year
		}
		return Note{
			ID:         serverNoteKey(s),
			Owner:      owner,
			Year:       y,
			Slug:       s.Slug,
			Text:       s.Text,
			TimeOffset: s.TimeOffset,
			CreatedAt:  s.CreatedAt,
			UpdatedAt:  s.UpdatedAt,
			ServerID:   serverID,
		}
	}

	return Reconcile(ctx, ReconcileParams[Note, ServerNote]{
		Category:    CategoryNotes,
		LocalItems:  local,
		ServerItems: server,
		LocalKey:    func(n Note) string { return n.ID },
		ServerKey:   serverNoteKey,
		ServerID:    func(s ServerNote) string { return s.ID },
		CreateLocal: func(_ context.Context, s ServerNote, serverID string) error {
			_, err := o.store.SaveNote(fromServer(s, serverID), true)
			return err
		},
		UpdateLocal: func(_ context.Context, l Note, s ServerNote, serverID string) error {
			n := fromServer(s, serverID)
			n.ID = l.ID
			_, err := o.store.SaveNote(n, true)
			return err
		},
		NeedsUpdate: noteNeedsUpdate,
		Hold:        func(n Note) bool { return pending[n.ID] },
		Invalidate:  func() { o.invalidator.Invalidate(CategoryNotes, cacheKey(owner, year)) },
		Concurrency: o.concurrency,
		Logger:      o.debug,
	}), nil
}

func (o *Orchestrator) pendingRecords(category Category) (map[string]bool, error) {
	entries, err := o.store.SyncQueue(category)
	if err != nil {
		return nil, fmt.Errorf("read %s queue: %w", category, err)
	}
	pending := make(map[string]bool, len(entries))
	for _, e := range entries {
		pending[e.RecordID] = true
	}
	return pending, nil
}

// bookmarkKey is the logical key of a bookmark within one owner.
func bookmarkKey(year int, slug string) string {
	return fmt.Sprintf("%d/%s", year, slug)
}

// serverNoteKey is the local id a server note maps to. Notes created
// elsewhere without a local id are keyed by their server id.
func serverNoteKey(s ServerNote) string {
	if s.LocalID != "" {
		return s.LocalID
	}
	return s.ID
}

func bookmarkNeedsUpdate(l Bookmark, s ServerBookmark) bool {
	return !l.ExistsOnServer ||
		l.ServerID != s.ID ||
		l.Kind != s.Kind ||
		l.Status != s.Status
}

func noteNeedsUpdate(l Note, s ServerNote) bool {
	if !l.ExistsOnServer || l.ServerID != s.ID || l.Text != s.Text {
		return true
	}
	switch {
	case l.TimeOffset == nil && s.TimeOffset == nil:
		return false
	case l.TimeOffset == nil || s.TimeOffset == nil:
		return true
	default:
		return *l.TimeOffset != *s.TimeOffset
	}
}

func sortedYears(years map[int]bool) []int {
	out := make([]int, 0, len(years))
	for y := range years {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}
