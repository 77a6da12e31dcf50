package agenda

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/agenda/internal/wire"
)

func TestHTTPRemote_UpsertBookmark_SendsPayload(t *testing.T) {
	var got wire.BookmarkPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/bookmarks" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id": "srv-42"}`))
	}))
	defer server.Close()

	remote := NewHTTPRemote(server.URL+"/", "test-key")
	id, err := remote.UpsertBookmark(context.Background(), Bookmark{
		Owner: "alice", Year: 2025, Slug: "backend", Kind: KindTrack, Status: StatusFavourited,
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), UpdatedAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("UpsertBookmark: %v", err)
	}
	if id != "srv-42" {
		t.Errorf("id = %q, want srv-42", id)
	}
	if got.Owner != "alice" || got.Year != 2025 || got.Slug != "backend" || got.Kind != "track" {
		t.Errorf("payload = %+v", got)
	}
	if got.UpdatedAt != "2025-06-02T09:00:00Z" {
		t.Errorf("UpdatedAt = %q", got.UpdatedAt)
	}
}

func TestHTTPRemote_UpsertNote_AcceptsResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string id", `{"id": "n-1"}`, "n-1"},
		{"numeric id", `{"id": 17}`, "17"},
		{"wrapped", `{"data": {"id": "n-2"}}`, "n-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				if !strings.Contains(string(body), `"local_id":"01ABC"`) {
					t.Errorf("payload should carry the local id: %s", body)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			id, err := NewHTTPRemote(server.URL, "k").UpsertNote(context.Background(),
				Note{ID: "01ABC", Owner: "alice", Year: 2025, Slug: "keynote", Text: "hi"})
			if err != nil {
				t.Fatalf("UpsertNote: %v", err)
			}
			if id != tt.want {
				t.Errorf("id = %q, want %q", id, tt.want)
			}
		})
	}
}

func TestHTTPRemote_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
		check     func(error) bool
	}{
		{"unauthorized", 401, `{"error": "bad key"}`, false, func(err error) bool {
			var ce *ClientError
			return errors.As(err, &ce) && ce.StatusCode == 401 && strings.Contains(err.Error(), "bad key")
		}},
		{"server error", 503, "upstream down", true, func(err error) bool {
			var se *SyncError
			return errors.As(err, &se) && se.StatusCode == 503
		}},
		{"success false", 200, `{"success": false, "message": "slug unknown"}`, true, func(err error) bool {
			var ce *ClientError
			return errors.As(err, &ce) && ce.StatusCode == 422
		}},
		{"missing id", 200, `{"ok": true}`, true, func(err error) bool {
			return errors.Is(err, wire.ErrMissingID)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPRemote(server.URL, "k").UpsertBookmark(context.Background(),
				Bookmark{Owner: "alice", Year: 2025, Slug: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error type: %T %v", err, err)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestHTTPRemote_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewHTTPRemote(url, "k").HealthCheck(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %T %v, want *NetworkError", err, err)
	}
	if !IsRetryable(err) {
		t.Error("network errors should be retryable")
	}
}

func TestHTTPRemote_ListBookmarks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("owner") != "alice" || r.URL.Query().Get("year") != "2025" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"items": [
			{"id": "b1", "owner": "alice", "year": 2025, "slug": "keynote", "updated_at": "2025-06-01T10:00:00Z"},
			{"id": "b2", "owner": "alice", "year": 2025, "slug": "backend", "kind": "track", "status": "unfavourited"}
		]}`))
	}))
	defer server.Close()

	got, err := NewHTTPRemote(server.URL, "k").ListBookmarks(context.Background(), "alice", 2025)
	if err != nil {
		t.Fatalf("ListBookmarks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bookmarks, want 2", len(got))
	}
	if got[0].Kind != KindEvent || got[0].Status != StatusFavourited {
		t.Errorf("missing kind/status should default: %+v", got[0])
	}
	if !got[0].UpdatedAt.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("UpdatedAt = %s", got[0].UpdatedAt)
	}
	if got[1].Kind != KindTrack || got[1].Status != StatusUnfavourited {
		t.Errorf("second = %+v", got[1])
	}
}

func TestHTTPRemote_ListNotes_AllYears(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("year") {
			t.Errorf("year 0 should omit the year parameter: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"id": "n1", "local_id": "01A", "owner": "alice", "year": 2024, "slug": "k", "text": "t", "time_offset": 12}]`))
	}))
	defer server.Close()

	got, err := NewHTTPRemote(server.URL, "k").ListNotes(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(got) != 1 || got[0].LocalID != "01A" || got[0].TimeOffset == nil || *got[0].TimeOffset != 12 {
		t.Errorf("notes = %+v", got)
	}
}

func TestHTTPRemote_DeleteNote(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotFound} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/notes/srv-1" {
				t.Errorf("request = %s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(status)
		}))
		if err := NewHTTPRemote(server.URL, "k").DeleteNote(context.Background(), "srv-1"); err != nil {
			t.Errorf("status %d: DeleteNote = %v", status, err)
		}
		server.Close()
	}
}

func TestHTTPRemote_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status": "ok", "version": "2.1.0"}`))
	}))
	defer server.Close()

	health, err := NewHTTPRemote(server.URL, "k").HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if health.Status != "ok" || health.Version != "2.1.0" {
		t.Errorf("health = %+v", health)
	}
}

func TestHTTPRemote_DebugLogging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "srv-1"}`))
	}))
	defer server.Close()

	var buf strings.Builder
	remote := NewHTTPRemote(server.URL, "k").WithDebugLogger(NewDebugLoggerTo(&buf))
	if _, err := remote.UpsertBookmark(context.Background(), Bookmark{Owner: "alice", Year: 2025, Slug: "x"}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "PUT") || !strings.Contains(out, "/api/v1/bookmarks") || !strings.Contains(out, "srv-1") {
		t.Errorf("debug log missing request/response:\n%s", out)
	}
}
