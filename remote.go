package agenda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperengineering/agenda/internal/wire"
)

// RemoteAPI abstracts the agenda server. Upserts are keyed by
// (owner, year, slug) for bookmarks and (owner, year, slug, local id) for
// notes, so repeating one never creates a duplicate row.
// Implementations must be safe for concurrent use.
type RemoteAPI interface {
	HealthCheck(ctx context.Context) (*wire.HealthResponse, error)

	// UpsertBookmark returns the server-assigned bookmark id.
	UpsertBookmark(ctx context.Context, b Bookmark) (string, error)
	ListBookmarks(ctx context.Context, owner string, year int) ([]ServerBookmark, error)

	// UpsertNote returns the server-assigned note id.
	UpsertNote(ctx context.Context, n Note) (string, error)
	ListNotes(ctx context.Context, owner string, year int) ([]ServerNote, error)
	DeleteNote(ctx context.Context, serverID string) error
}

// HTTPRemote implements RemoteAPI over the agenda server's HTTP API.
type HTTPRemote struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	debug      *DebugLogger
}

var _ RemoteAPI = (*HTTPRemote)(nil)

// NewHTTPRemote creates a client for the server at serverURL.
func NewHTTPRemote(serverURL, apiKey string) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient sets a custom http.Client (for testing or custom timeouts).
func (r *HTTPRemote) WithHTTPClient(client *http.Client) *HTTPRemote {
	r.httpClient = client
	return r
}

// WithDebugLogger logs every request and response to l.
func (r *HTTPRemote) WithDebugLogger(l *DebugLogger) *HTTPRemote {
	r.debug = l
	return r
}

func (r *HTTPRemote) HealthCheck(ctx context.Context) (*wire.HealthResponse, error) {
	status, body, err := r.do(ctx, "health_check", http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, classify("health_check", &wire.StatusError{StatusCode: status, Message: string(body)})
	}

	var health wire.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, &SyncError{Operation: "health_check", StatusCode: status, Err: err}
	}
	return &health, nil
}

func (r *HTTPRemote) UpsertBookmark(ctx context.Context, b Bookmark) (string, error) {
	payload := wire.BookmarkPayload{
		Owner:     b.Owner,
		Year:      b.Year,
		Slug:      b.Slug,
		Kind:      string(b.Kind),
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339),
	}
	return r.upsert(ctx, "upsert_bookmark", "/api/v1/bookmarks", payload)
}

func (r *HTTPRemote) UpsertNote(ctx context.Context, n Note) (string, error) {
	payload := wire.NotePayload{
		LocalID:    n.ID,
		Owner:      n.Owner,
		Year:       n.Year,
		Slug:       n.Slug,
		Text:       n.Text,
		TimeOffset: n.TimeOffset,
		CreatedAt:  n.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  n.UpdatedAt.UTC().Format(time.RFC3339),
	}
	return r.upsert(ctx, "upsert_note", "/api/v1/notes", payload)
}

func (r *HTTPRemote) ListBookmarks(ctx context.Context, owner string, year int) ([]ServerBookmark, error) {
	status, body, err := r.do(ctx, "list_bookmarks", http.MethodGet, "/api/v1/bookmarks?"+listQuery(owner, year), nil)
	if err != nil {
		return nil, err
	}

	entries, err := wire.NormalizeList[wire.BookmarkEntry](status, body).Unwrap()
	if err != nil {
		return nil, classify("list_bookmarks", err)
	}

	out := make([]ServerBookmark, 0, len(entries))
	for _, e := range entries {
		if e.Kind == "" {
			e.Kind = string(KindEvent)
		}
		if e.Status == "" {
			e.Status = string(StatusFavourited)
		}
		out = append(out, ServerBookmark{
			ID:        e.ID,
			Owner:     e.Owner,
			Year:      e.Year,
			Slug:      e.Slug,
			Kind:      BookmarkKind(e.Kind),
			Status:    BookmarkStatus(e.Status),
			CreatedAt: parseWireTime(e.CreatedAt),
			UpdatedAt: parseWireTime(e.UpdatedAt),
		})
	}
	return out, nil
}

func (r *HTTPRemote) ListNotes(ctx context.Context, owner string, year int) ([]ServerNote, error) {
	status, body, err := r.do(ctx, "list_notes", http.MethodGet, "/api/v1/notes?"+listQuery(owner, year), nil)
	if err != nil {
		return nil, err
	}

	entries, err := wire.NormalizeList[wire.NoteEntry](status, body).Unwrap()
	if err != nil {
		return nil, classify("list_notes", err)
	}

	out := make([]ServerNote, 0, len(entries))
	for _, e := range entries {
		out = append(out, ServerNote{
			ID:         e.ID,
			LocalID:    e.LocalID,
			Owner:      e.Owner,
			Year:       e.Year,
			Slug:       e.Slug,
			Text:       e.Text,
			TimeOffset: e.TimeOffset,
			CreatedAt:  parseWireTime(e.CreatedAt),
			UpdatedAt:  parseWireTime(e.UpdatedAt),
		})
	}
	return out, nil
}

func (r *HTTPRemote) DeleteNote(ctx context.Context, serverID string) error {
	status, body, err := r.do(ctx, "delete_note", http.MethodDelete, "/api/v1/notes/"+url.PathEscape(serverID), nil)
	if err != nil {
		return err
	}
	// Already gone counts as deleted.
	if status == http.StatusNotFound || (status >= 200 && status <= 299) {
		return nil
	}
	return classify("delete_note", &wire.StatusError{StatusCode: status, Message: string(body)})
}

func (r *HTTPRemote) upsert(ctx context.Context, op, path string, payload any) (string, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", &SyncError{Operation: op, Err: err}
	}

	status, body, err := r.do(ctx, op, http.MethodPut, path, reqBody)
	if err != nil {
		return "", err
	}

	ack, err := wire.NormalizeUpsert(status, body).Unwrap()
	if err != nil {
		return "", classify(op, err)
	}
	return ack.ID, nil
}

// do sends one request and returns the status and body. Transport failures
// are returned as *NetworkError; HTTP statuses are left to the caller.
func (r *HTTPRemote) do(ctx context.Context, op, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return 0, nil, &SyncError{Operation: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("User-Agent", "agenda-client/1.0")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	r.debug.LogRequest(method, req.URL.String(), body)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.debug.LogError(op, err)
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, &NetworkError{Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		r.debug.LogError(op, err)
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, &NetworkError{Operation: op, Err: err}
	}
	r.debug.LogResponse(resp.StatusCode, resp.Status, respBody)

	return resp.StatusCode, respBody, nil
}

// classify turns a normalization failure into the typed error the retry
// executor acts on.
func classify(op string, err error) error {
	var se *wire.StatusError
	if errors.As(err, &se) {
		if se.StatusCode >= 400 && se.StatusCode <= 499 {
			return &ClientError{Operation: op, StatusCode: se.StatusCode, Err: se}
		}
		return &SyncError{Operation: op, StatusCode: se.StatusCode, Err: se}
	}
	return &SyncError{Operation: op, Err: err}
}

func listQuery(owner string, year int) string {
	q := url.Values{}
	q.Set("owner", owner)
	if year != 0 {
		q.Set("year", strconv.Itoa(year))
	}
	return q.Encode()
}

func parseWireTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
