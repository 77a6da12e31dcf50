package agenda

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultReconcileConcurrency bounds concurrent per-item reconcile work.
const DefaultReconcileConcurrency = 8

// ReconcileParams configures one Reconcile pass from server items of type S
// into local items of type L.
type ReconcileParams[L, S any] struct {
	Category    Category
	LocalItems  []L
	ServerItems []S

	// LocalKey and ServerKey return the logical key shared by both copies.
	LocalKey  func(L) string
	ServerKey func(S) string

	// ServerID returns the server-assigned identifier of a server item.
	ServerID func(S) string

	// CreateLocal stores a server item with no local counterpart, already synced.
	CreateLocal func(ctx context.Context, server S, serverID string) error

	// UpdateLocal overwrites a local item from its server version, already synced.
	UpdateLocal func(ctx context.Context, local L, server S, serverID string) error

	// NeedsUpdate reports whether the server version differs from the local one.
	NeedsUpdate func(local L, server S) bool

	// Hold, when set, leaves a local item untouched (for example while it has
	// an upload pending).
	Hold func(local L) bool

	// Invalidate is called once after every item has settled.
	Invalidate func()

	// Concurrency bounds concurrent item work. Defaults to DefaultReconcileConcurrency.
	Concurrency int

	Logger *DebugLogger
}

// ReconcileStats counts the outcome of a Reconcile pass.
type ReconcileStats struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Held      int      `json:"held"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Reconcile converges local items toward the server's version. Server items
// without a local counterpart are created locally; counterparts for which
// NeedsUpdate reports true are overwritten. Per-item failures are logged and
// counted without stopping the other items.
func Reconcile[L, S any](ctx context.Context, p ReconcileParams[L, S]) ReconcileStats {
	var (
		mu    sync.Mutex
		stats ReconcileStats
	)
	record := func(apply func(*ReconcileStats)) {
		mu.Lock()
		apply(&stats)
		mu.Unlock()
	}

	locals := make(map[string]L, len(p.LocalItems))
	for _, l := range p.LocalItems {
		locals[p.LocalKey(l)] = l
	}

	limit := p.Concurrency
	if limit <= 0 {
		limit = DefaultReconcileConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, server := range p.ServerItems {
		g.Go(func() error {
			key := p.ServerKey(server)
			serverID := p.ServerID(server)

			local, ok := locals[key]
			switch {
			case !ok:
				if err := p.CreateLocal(gctx, server, serverID); err != nil {
					p.fail(record, "create", key, err)
					return nil
				}
				record(func(s *ReconcileStats) { s.Created++ })
			case p.Hold != nil && p.Hold(local):
				record(func(s *ReconcileStats) { s.Held++ })
			case p.NeedsUpdate(local, server):
				if err := p.UpdateLocal(gctx, local, server, serverID); err != nil {
					p.fail(record, "update", key, err)
					return nil
				}
				record(func(s *ReconcileStats) { s.Updated++ })
			default:
				record(func(s *ReconcileStats) { s.Unchanged++ })
			}
			return nil
		})
	}
	_ = g.Wait()

	if p.Invalidate != nil {
		p.Invalidate()
	}

	p.Logger.LogSync("reconcile", fmt.Sprintf("%s: created=%d updated=%d unchanged=%d held=%d failed=%d",
		p.Category, stats.Created, stats.Updated, stats.Unchanged, stats.Held, stats.Failed))
	return stats
}

func (p ReconcileParams[L, S]) fail(record func(func(*ReconcileStats)), op, key string, err error) {
	msg := fmt.Sprintf("%s %s %s: %v", op, p.Category, key, err)
	p.Logger.LogError("reconcile", fmt.Errorf("%s", msg))
	record(func(s *ReconcileStats) {
		s.Failed++
		s.Errors = append(s.Errors, msg)
	})
}
