package live

import (
	"context"
	"sync"

	"github.com/linkdeck/linkdeck/internal/domain"
	"github.com/linkdeck/linkdeck/internal/pubsub"
)

// Manager owns the set of active aggregates, one per profile. Views acquire
// an aggregate by username and release it when they are done; the aggregate
// stays live while at least one view holds it.
type Manager struct {
	store domain.ProfileStore
	bus   pubsub.Publisher

	mu      sync.Mutex
	entries map[string]*managedAggregate
}

type managedAggregate struct {
	agg  *Aggregate
	refs int
}

// NewManager creates a Manager backed by the given store. The bus may be nil,
// in which case aggregates do not publish update notices.
func NewManager(store domain.ProfileStore, bus pubsub.Publisher) *Manager {
	return &Manager{
		store:   store,
		bus:     bus,
		entries: make(map[string]*managedAggregate),
	}
}

// Acquire returns the live aggregate for username, activating one if no view
// currently holds it. Every successful Acquire must be paired with a Release.
func (m *Manager) Acquire(ctx context.Context, username string) (*Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[username]; ok {
		entry.refs++
		return entry.agg, nil
	}

	agg := NewAggregate(m.store, m.bus, username)
	if err := agg.Activate(ctx); err != nil {
		return nil, err
	}
	m.entries[username] = &managedAggregate{agg: agg, refs: 1}
	return agg, nil
}

// Release drops one reference to username's aggregate. When the last view
// releases it, the aggregate is deactivated and its change feeds are closed.
func (m *Manager) Release(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[username]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(m.entries, username)
	entry.agg.Deactivate()
}

// Close deactivates every live aggregate regardless of reference counts.
// Intended for server shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*managedAggregate)
	m.mu.Unlock()

	for _, entry := range entries {
		entry.agg.Deactivate()
	}
}
