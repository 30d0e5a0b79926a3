package db

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/richd0tcom/trashbin/internal/domain"
)

// MemoryStore keeps events, counters and snapshots in process. It backs
// tests and single-node development runs.
type MemoryStore struct {
	mu        sync.RWMutex
	events    map[domain.Category][]domain.Event
	counters  map[domain.Category]domain.LiveCounter
	snapshots map[domain.Category][]domain.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[domain.Category][]domain.Event),
		counters:  make(map[domain.Category]domain.LiveCounter),
		snapshots: make(map[domain.Category][]domain.Snapshot),
	}
}

func (m *MemoryStore) InsertBatch(_ context.Context, events []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range events {
		m.events[e.Category] = append(m.events[e.Category], e)
	}
	return nil
}

func (m *MemoryStore) Query(_ context.Context, category domain.Category, start, end time.Time) ([]domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Event
	for _, e := range m.events[category] {
		if !e.OccurredAt.Before(start) && e.OccurredAt.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) QueryAll(ctx context.Context, categories []domain.Category, start, end time.Time) (map[domain.Category][]domain.Event, error) {
	out := make(map[domain.Category][]domain.Event, len(categories))
	for _, c := range categories {
		events, err := m.Query(ctx, c, start, end)
		if err != nil {
			return nil, err
		}
		out[c] = events
	}
	return out, nil
}

func (m *MemoryStore) Read(_ context.Context, category domain.Category) (domain.LiveCounter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.counters[category]
	if !ok {
		return domain.LiveCounter{}, domain.ErrCounterNotFound
	}
	return c, nil
}

// Seed sets a counter directly.
func (m *MemoryStore) Seed(c domain.LiveCounter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[c.Category] = c
}

func (m *MemoryStore) ConditionalReset(_ context.Context, category domain.Category, expected, today domain.Date, archivedAt time.Time) (domain.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[category]
	if !ok || c.LastResetDate != expected {
		return domain.Snapshot{}, false, nil
	}

	snap := domain.Snapshot{Category: category, Count: c.Count, Day: expected, ArchivedAt: archivedAt}
	m.snapshots[category] = append(m.snapshots[category], snap)
	m.counters[category] = domain.LiveCounter{Category: category, LastResetDate: today}
	return snap, true, nil
}

func (m *MemoryStore) Increment(_ context.Context, category domain.Category, n int64, today domain.Date) (domain.LiveCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[category]
	if !ok {
		c = domain.LiveCounter{Category: category, LastResetDate: today}
	}
	c.Count += n
	m.counters[category] = c
	return c, nil
}

func (m *MemoryStore) Snapshots(_ context.Context, category domain.Category) ([]domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.snapshots[category]), nil
}

func (m *MemoryStore) Close() error { return nil }
