package agenda

import (
	"context"
	"sync"
	"time"
)

// DefaultCheckTimeout bounds one connectivity check.
const DefaultCheckTimeout = 5 * time.Second

// Monitor tracks whether the server is reachable and reports transitions.
// State changes come from Check, which calls the server's health endpoint,
// or from Set, for platforms that learn about connectivity some other way.
type Monitor struct {
	remote   RemoteAPI
	onChange func(online bool)

	mu     sync.Mutex
	online bool
	known  bool
}

// NewMonitor creates a monitor. onChange runs on every transition, including
// the first observation.
func NewMonitor(remote RemoteAPI, onChange func(online bool)) *Monitor {
	return &Monitor{remote: remote, onChange: onChange}
}

// Online reports the last observed state. Before any observation it reports false.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records an externally observed state.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	changed := !m.known || m.online != online
	m.online = online
	m.known = true
	m.mu.Unlock()

	if changed && m.onChange != nil {
		m.onChange(online)
	}
}

// Check calls the server once and records the outcome.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.remote == nil {
		m.Set(false)
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultCheckTimeout)
	defer cancel()

	_, err := m.remote.HealthCheck(ctx)
	online := err == nil
	m.Set(online)
	return online
}

// Run checks connectivity every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
