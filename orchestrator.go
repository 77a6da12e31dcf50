package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator converges the local store with the server. Runs are
// single-flight and serialized by a SyncLock; a started run always completes.
type Orchestrator struct {
	store       SyncStore
	remote      RemoteAPI
	lock        *SyncLock
	flight      flightGuard
	bus         *Bus
	invalidator Invalidator
	retry       RetryPolicy
	concurrency int
	debug       *DebugLogger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRetryPolicy overrides the retry policy for remote calls.
func WithRetryPolicy(p RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) { o.retry = p }
}

// WithBus publishes sync and invalidation events on b.
func WithBus(b *Bus) OrchestratorOption {
	return func(o *Orchestrator) { o.bus = b }
}

// WithInvalidator routes cache invalidations to inv instead of the bus.
func WithInvalidator(inv Invalidator) OrchestratorOption {
	return func(o *Orchestrator) { o.invalidator = inv }
}

// WithSyncLock shares l with other users of the store.
func WithSyncLock(l *SyncLock) OrchestratorOption {
	return func(o *Orchestrator) { o.lock = l }
}

// WithReconcileConcurrency bounds concurrent reconcile work per category.
func WithReconcileConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.concurrency = n }
}

// WithOrchestratorLogger sets the debug logger.
func WithOrchestratorLogger(l *DebugLogger) OrchestratorOption {
	return func(o *Orchestrator) { o.debug = l }
}

// NewOrchestrator creates an orchestrator over store and remote.
func NewOrchestrator(store SyncStore, remote RemoteAPI, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		remote:      remote,
		retry:       DefaultRetryPolicy(),
		concurrency: DefaultReconcileConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.lock == nil {
		o.lock = NewSyncLock()
	}
	if o.bus == nil {
		o.bus = NewBus()
	}
	if o.invalidator == nil {
		o.invalidator = o.bus
	}
	return o
}

// Bus returns the bus sync events are published on.
func (o *Orchestrator) Bus() *Bus { return o.bus }

// InFlight reports whether a sync run is executing.
func (o *Orchestrator) InFlight() bool { return o.flight.InFlight() }

// SyncAllOfflineData uploads every locally pending record.
//
// Records without a queue entry are queued first. The bookmark and note
// categories then sync concurrently; a failure in one does not stop the
// other. If either fails, the joined error is returned once both have
// settled, alongside the report carrying each category's result.
//
// Concurrent callers share one run and receive the same *SyncReport.
// A caller that joins a run in flight gets the outcome of that run, which
// syncs for the owner passed by the caller that started it; the joiner's
// owner is not used. The run is detached from ctx cancellation.
func (o *Orchestrator) SyncAllOfflineData(ctx context.Context, owner string) (*SyncReport, error) {
	runCtx := context.WithoutCancel(ctx)
	report, shared, err := o.flight.do(func() (*SyncReport, error) {
		return WithLock(runCtx, o.lock, func(ctx context.Context) (*SyncReport, error) {
			return o.run(ctx, owner)
		})
	})
	if shared {
		o.debug.LogSync("sync", "joined in-flight run")
	}
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, owner string) (report *SyncReport, err error) {
	started := time.Now()
	report = &SyncReport{
		Bookmarks: SyncResult{Success: true, Errors: []string{}},
		Notes:     SyncResult{Success: true, Errors: []string{}},
	}
	defer func() { o.publish(report, err, time.Since(started)) }()

	queued, err := o.store.QueueUnsyncedForSync()
	if err != nil {
		return report, fmt.Errorf("sync: queue unsynced records: %w", err)
	}
	if queued > 0 {
		o.debug.LogSync("sync", fmt.Sprintf("queued %d unsynced records", queued))
	}

	pending := 0
	for _, cat := range Categories() {
		entries, err := o.store.SyncQueue(cat)
		if err != nil {
			return report, fmt.Errorf("sync: read %s queue: %w", cat, err)
		}
		pending += len(entries)
	}
	if pending == 0 {
		o.debug.LogSync("sync", "nothing to upload")
		return report, o.markSynced()
	}

	var (
		g                    errgroup.Group
		bookmarkErr, noteErr error
		bookmarkRes, noteRes SyncResult
	)
	g.Go(func() error {
		bookmarkRes, bookmarkErr = o.syncBookmarks(ctx, owner)
		return nil
	})
	g.Go(func() error {
		noteRes, noteErr = o.syncNotes(ctx, owner)
		return nil
	})
	_ = g.Wait()

	report.Bookmarks = bookmarkRes
	report.Notes = noteRes

	var errs []error
	if bookmarkErr != nil {
		errs = append(errs, fmt.Errorf("sync bookmarks: %w", bookmarkErr))
	}
	if noteErr != nil {
		errs = append(errs, fmt.Errorf("sync notes: %w", noteErr))
	}
	if err := errors.Join(errs...); err != nil {
		return report, err
	}
	if report.OK() {
		return report, o.markSynced()
	}
	return report, nil
}

// RefreshReport summarizes a Refresh.
type RefreshReport struct {
	Bookmarks ReconcileStats `json:"bookmarks"`
	Notes     ReconcileStats `json:"notes"`
}

// Refresh pulls the owner's records for year from the server and reconciles
// them into the store. Year 0 pulls every year.
func (o *Orchestrator) Refresh(ctx context.Context, owner string, year int) (*RefreshReport, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}

	return WithLock(ctx, o.lock, func(ctx context.Context) (*RefreshReport, error) {
		var (
			g                    errgroup.Group
			report               RefreshReport
			bookmarkErr, noteErr error
		)
		g.Go(func() error {
			report.Bookmarks, bookmarkErr = o.pullBookmarks(ctx, owner, year)
			return nil
		})
		g.Go(func() error {
			report.Notes, noteErr = o.pullNotes(ctx, owner, year)
			return nil
		})
		_ = g.Wait()

		var errs []error
		if bookmarkErr != nil {
			errs = append(errs, fmt.Errorf("refresh bookmarks: %w", bookmarkErr))
		}
		if noteErr != nil {
			errs = append(errs, fmt.Errorf("refresh notes: %w", noteErr))
		}
		return &report, errors.Join(errs...)
	})
}

func (o *Orchestrator) policy(operation string) RetryPolicy {
	p := o.retry
	p.Operation = operation
	return p
}

func (o *Orchestrator) markSynced() error {
	if err := o.store.SetMetadata(metaLastSync, formatTime(time.Now())); err != nil {
		return fmt.Errorf("sync: record last sync: %w", err)
	}
	return nil
}

func (o *Orchestrator) publish(report *SyncReport, err error, took time.Duration) {
	if err != nil || !report.OK() {
		o.debug.LogSync("sync", fmt.Sprintf("failed after %s: bookmarks=%d notes=%d err=%v",
			took.Round(time.Millisecond), report.Bookmarks.SyncedCount, report.Notes.SyncedCount, err))
		if err == nil {
			err = errors.New("sync: some records failed to upload")
		}
		o.bus.Publish(Event{Kind: EventSyncFailed, Report: report, Err: err})
		return
	}
	o.debug.LogSync("sync", fmt.Sprintf("completed in %s: bookmarks=%d notes=%d",
		took.Round(time.Millisecond), report.Bookmarks.SyncedCount, report.Notes.SyncedCount))
	o.bus.Publish(Event{Kind: EventSyncCompleted, Report: report})
}
