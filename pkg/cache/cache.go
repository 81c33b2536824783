// Package cache holds the latest aggregation snapshot behind a TTL. The
// snapshot is immutable and swapped as a whole, so readers never observe a
// partially built result; concurrent refresh triggers collapse into a single
// aggregation cycle.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/singleflight"

	"newsmux/pkg/domain"
)

// Refresher runs one aggregation cycle
type Refresher interface {
	Run(ctx context.Context) *domain.Snapshot
}

// Manager owns the current snapshot
type Manager struct {
	refresher Refresher
	ttl       time.Duration

	mu   sync.RWMutex
	snap *domain.Snapshot

	group singleflight.Group
}

// New creates a cache manager with the given TTL
func New(refresher Refresher, ttl time.Duration) *Manager {
	return &Manager{refresher: refresher, ttl: ttl}
}

// Snapshot returns the current snapshot, refreshing first when it is absent,
// older than the TTL, or force is set. Concurrent callers needing a refresh
// join the in-flight cycle instead of starting duplicate fetch storms.
func (m *Manager) Snapshot(ctx context.Context, force bool) *domain.Snapshot {
	if snap := m.Current(); !force && m.fresh(snap) {
		return snap
	}

	result, _, shared := m.group.Do("refresh", func() (interface{}, error) {
		// a joiner may arrive after the previous cycle finished; without
		// force a fresh snapshot is good enough
		if snap := m.Current(); !force && m.fresh(snap) {
			return snap, nil
		}

		// the cycle outlives the request that triggered it: a client
		// disconnect must not cancel the fetches and poison the cache
		// with an empty snapshot for the rest of the TTL
		snap := m.refresher.Run(context.WithoutCancel(ctx))
		m.mu.Lock()
		m.snap = snap
		m.mu.Unlock()
		return snap, nil
	})
	if shared {
		lgr.Printf("[DEBUG] refresh joined in-flight aggregation cycle")
	}

	return result.(*domain.Snapshot)
}

// Current returns the stored snapshot without triggering a refresh; nil when
// no cycle has completed yet
func (m *Manager) Current() *domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// TTL returns the configured time-to-live
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// fresh reports whether the snapshot is within the TTL
func (m *Manager) fresh(snap *domain.Snapshot) bool {
	return snap != nil && snap.Age() < m.ttl
}
