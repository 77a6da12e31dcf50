package agenda

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/agenda/internal/store"
)

// backgroundSyncTimeout bounds a sync started by the client itself.
const backgroundSyncTimeout = 2 * time.Minute

// Client is the main interface for bookmarks and notes. Writes land in the
// local store immediately and are uploaded when the server is reachable.
type Client struct {
	store   *Store
	remote  RemoteAPI
	orch    *Orchestrator
	monitor *Monitor
	bus     *Bus
	debug   *DebugLogger
	config  Config

	mu       sync.Mutex
	owner    string
	closed   bool
	bg       sync.WaitGroup
	stopSync chan struct{}
	syncDone chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	remote RemoteAPI
}

// WithRemote replaces the HTTP remote derived from Config.ServerURL.
func WithRemote(r RemoteAPI) ClientOption {
	return func(o *clientOptions) { o.remote = r }
}

// New creates a new agenda client.
func New(cfg Config, opts ...ClientOption) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var options clientOptions
	for _, opt := range opts {
		opt(&options)
	}

	debug, err := NewDebugLogger(cfg.Debug, cfg.DebugLogPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	s, err := NewStore(cfg.LocalPath)
	if err != nil {
		_ = debug.Close()
		return nil, fmt.Errorf("client: %w", err)
	}

	owner := cfg.Owner
	if owner == "" {
		// A profile that was signed into earlier remembers its owner.
		owner, _ = s.GetMetadata(metaOwner)
	}

	c := &Client{
		store:    s,
		bus:      NewBus(),
		debug:    debug,
		config:   cfg,
		owner:    owner,
		stopSync: make(chan struct{}),
		syncDone: make(chan struct{}),
	}

	c.remote = options.remote
	if c.remote == nil && cfg.ServerURL != "" {
		c.remote = NewHTTPRemote(cfg.ServerURL, cfg.APIKey).WithDebugLogger(debug)
	}

	if c.remote != nil {
		c.orch = NewOrchestrator(s, c.remote,
			WithBus(c.bus),
			WithRetryPolicy(cfg.Retry),
			WithOrchestratorLogger(debug),
		)
	}
	c.monitor = NewMonitor(c.remote, c.connectivityChanged)

	if c.remote != nil && cfg.AutoSync {
		go c.backgroundSync()
	} else {
		close(c.syncDone)
	}

	return c, nil
}

// Owner returns the signed-in identity, or "" if none.
func (c *Client) Owner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// Bookmark favourites a session or track for year. Bookmarking an existing
// identity updates it in place.
func (c *Client) Bookmark(ctx context.Context, year int, slug string, kind BookmarkKind) (*Bookmark, error) {
	owner := c.Owner()
	b, err := c.store.SaveBookmark(Bookmark{
		Owner:  owner,
		Year:   year,
		Slug:   slug,
		Kind:   kind,
		Status: StatusFavourited,
	}, false)
	if err != nil {
		return nil, err
	}
	c.bus.Invalidate(CategoryBookmarks, cacheKey(owner, year))
	c.syncSoon()
	return b, nil
}

// Unbookmark marks a bookmark as no longer favourited. The change is uploaded
// like any other write.
func (c *Client) Unbookmark(ctx context.Context, year int, slug string) (*Bookmark, error) {
	owner := c.Owner()
	existing, err := c.store.BookmarkBySlug(owner, year, slug)
	if err != nil {
		return nil, err
	}

	existing.Status = StatusUnfavourited
	existing.UpdatedAt = time.Time{}
	b, err := c.store.SaveBookmark(*existing, false)
	if err != nil {
		return nil, err
	}
	c.bus.Invalidate(CategoryBookmarks, cacheKey(owner, year))
	c.syncSoon()
	return b, nil
}

// Bookmarks returns favourited bookmarks for year, or every year when year is 0.
func (c *Client) Bookmarks(ctx context.Context, year int) ([]Bookmark, error) {
	all, err := c.store.Bookmarks(c.Owner(), year)
	if err != nil {
		return nil, err
	}
	active := make([]Bookmark, 0, len(all))
	for _, b := range all {
		if b.Status == StatusFavourited {
			active = append(active, b)
		}
	}
	return active, nil
}

// AddNote attaches a note to a session. offset is the optional position in
// the session recording, in seconds.
func (c *Client) AddNote(ctx context.Context, year int, slug, text string, offset *int) (*Note, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("note: %w", ErrEmptyNote)
	}
	owner := c.Owner()
	n, err := c.store.SaveNote(Note{
		Owner:      owner,
		Year:       year,
		Slug:       slug,
		Text:       text,
		TimeOffset: offset,
	}, false)
	if err != nil {
		return nil, err
	}
	c.bus.Invalidate(CategoryNotes, cacheKey(owner, year))
	c.syncSoon()
	return n, nil
}

// EditNote replaces a note's text and offset.
func (c *Client) EditNote(ctx context.Context, id, text string, offset *int) (*Note, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("note: %w", ErrEmptyNote)
	}
	n, err := c.store.Note(id)
	if err != nil {
		return nil, err
	}

	n.Text = text
	n.TimeOffset = offset
	n.UpdatedAt = time.Time{}
	saved, err := c.store.SaveNote(*n, false)
	if err != nil {
		return nil, err
	}
	c.bus.Invalidate(CategoryNotes, cacheKey(saved.Owner, saved.Year))
	c.syncSoon()
	return saved, nil
}

// DeleteNote removes a note. A note already on the server is deleted there
// first, which requires connectivity.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	n, err := c.store.Note(id)
	if err != nil {
		return err
	}

	if n.ExistsOnServer && n.ServerID != "" {
		if c.remote == nil || !c.monitor.Online() {
			return ErrOffline
		}
		_, err := WithRetry(ctx, c.policy("delete_note"), func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.remote.DeleteNote(ctx, n.ServerID)
		})
		if err != nil {
			return fmt.Errorf("delete note: %w", err)
		}
	}

	if err := c.store.RemoveNote(id); err != nil {
		return err
	}
	c.bus.Invalidate(CategoryNotes, cacheKey(n.Owner, n.Year))
	return nil
}

// Notes returns notes for year (0 for every year), limited to slug when set.
func (c *Client) Notes(ctx context.Context, year int, slug string) ([]Note, error) {
	all, err := c.store.Notes(c.Owner(), year)
	if err != nil {
		return nil, err
	}
	if slug == "" {
		return all, nil
	}
	out := make([]Note, 0, len(all))
	for _, n := range all {
		if n.Slug == slug {
			out = append(out, n)
		}
	}
	return out, nil
}

// Sync uploads pending records now. Concurrent calls share one run.
func (c *Client) Sync(ctx context.Context) (*SyncReport, error) {
	if c.orch == nil {
		return nil, ErrOffline
	}
	return c.orch.SyncAllOfflineData(ctx, c.Owner())
}

// Refresh pulls the owner's records for year from the server.
func (c *Client) Refresh(ctx context.Context, year int) (*RefreshReport, error) {
	if c.orch == nil {
		return nil, ErrOffline
	}
	owner := c.Owner()
	if owner == "" {
		return nil, ErrNoOwner
	}
	return c.orch.Refresh(ctx, owner, year)
}

// SetOnline reports a connectivity change observed by the host platform.
// Coming online with a known owner starts a sync.
func (c *Client) SetOnline(online bool) {
	c.monitor.Set(online)
}

// Online reports the last observed connectivity.
func (c *Client) Online() bool {
	return c.monitor.Online()
}

// SetOwner signs owner in. Records created while signed out are assigned to
// owner and queued, and a sync starts if the server is reachable.
func (c *Client) SetOwner(ctx context.Context, owner string) error {
	if err := store.ValidateOwnerIDForSignIn(owner); err != nil {
		return &ValidationError{Field: "Owner", Message: err.Error()}
	}

	adopted, err := c.store.AdoptOwner(owner)
	if err != nil {
		return fmt.Errorf("set owner: %w", err)
	}

	c.mu.Lock()
	c.owner = owner
	c.mu.Unlock()

	c.debug.LogSync("owner", fmt.Sprintf("signed in %s, adopted %d records", owner, adopted))
	c.bus.Invalidate(CategoryBookmarks, cacheKey(owner, 0))
	c.bus.Invalidate(CategoryNotes, cacheKey(owner, 0))
	c.syncSoon()
	return nil
}

// Subscribe registers fn for sync, connectivity and invalidation events.
func (c *Client) Subscribe(fn func(Event)) (unsubscribe func()) {
	return c.bus.Subscribe(fn)
}

// Stats returns store statistics.
func (c *Client) Stats() (*StoreStats, error) {
	return c.store.Stats()
}

// Store returns the client's local store.
func (c *Client) Store() *Store {
	return c.store
}

// HealthCheck returns the health status of the client.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		StoreOK: true,
	}

	if _, err := c.store.Stats(); err != nil {
		status.StoreOK = false
		status.Healthy = false
		status.Error = err.Error()
		return status
	}

	if c.remote != nil {
		status.ServerReachable = c.monitor.Check(ctx)
		if !status.ServerReachable {
			status.Error = "server unreachable"
		}
	}

	return status
}

// Close stops background work, makes a last upload attempt when online and
// closes the store.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stopSync)

	select {
	case <-c.syncDone:
	case <-time.After(5 * time.Second):
	}
	c.bg.Wait()

	if c.orch != nil && c.monitor.Online() && c.Owner() != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, _ = c.orch.SyncAllOfflineData(ctx, c.Owner())
		cancel()
	}

	err := c.store.Close()
	_ = c.debug.Close()
	return err
}

func (c *Client) connectivityChanged(online bool) {
	if online {
		c.bus.Publish(Event{Kind: EventOnline})
		c.syncSoon()
		return
	}
	c.bus.Publish(Event{Kind: EventOffline})
}

// syncSoon starts a background sync when the server is reachable and an
// owner is known.
func (c *Client) syncSoon() {
	if c.orch == nil || !c.monitor.Online() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.owner == "" {
		return
	}
	owner := c.owner

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundSyncTimeout)
		defer cancel()
		if _, err := c.orch.SyncAllOfflineData(ctx, owner); err != nil {
			c.debug.LogError("sync", err)
		}
	}()
}

func (c *Client) backgroundSync() {
	defer close(c.syncDone)

	c.monitor.Check(context.Background())

	ticker := time.NewTicker(c.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopSync:
			return
		case <-ticker.C:
			if c.monitor.Check(context.Background()) {
				c.syncSoon()
			}
		}
	}
}

func (c *Client) policy(operation string) RetryPolicy {
	p := c.config.Retry
	p.Operation = operation
	return p
}
