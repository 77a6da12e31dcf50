package agenda

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// syncFlightKey is the single key all sync runs share.
const syncFlightKey = "sync-all-offline-data"

// flightGuard ensures at most one sync run is in progress. Callers arriving
// while a run is active receive that run's outcome.
type flightGuard struct {
	group singleflight.Group

	mu     sync.Mutex
	active bool
}

// do runs fn unless a run is already in flight, in which case it waits for
// and returns the in-flight run's result. shared reports whether the result
// was handed to more than one caller.
func (g *flightGuard) do(fn func() (*SyncReport, error)) (*SyncReport, bool, error) {
	v, err, shared := g.group.Do(syncFlightKey, func() (any, error) {
		g.setActive(true)
		defer g.setActive(false)
		return fn()
	})
	report, _ := v.(*SyncReport)
	return report, shared, err
}

// InFlight reports whether a run is currently executing.
func (g *flightGuard) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *flightGuard) setActive(active bool) {
	g.mu.Lock()
	g.active = active
	g.mu.Unlock()
}
