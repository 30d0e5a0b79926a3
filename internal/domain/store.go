package domain

import (
	"context"
	"time"
)

// EventStore is the append-only detection log the aggregations read from.
// Query bounds are half-open: start <= occurred_at < end.
type EventStore interface {
	InsertBatch(ctx context.Context, events []Event) error
	Query(ctx context.Context, category Category, start, end time.Time) ([]Event, error)
	QueryAll(ctx context.Context, categories []Category, start, end time.Time) (map[Category][]Event, error)
	Close() error
}

// CounterStore keeps one LiveCounter per category.
type CounterStore interface {
	// Read returns ErrCounterNotFound for a category that was never counted.
	Read(ctx context.Context, category Category) (LiveCounter, error)

	// ConditionalReset archives the counter's current count as the total of
	// expected and resets it to zero for today, as one atomic unit. It only
	// applies while the stored last_reset_date still equals expected; if
	// another caller got there first it returns ok=false and no error.
	// The snapshot goes to a daily-totals log kept apart from the event log,
	// so aggregation never counts a day's total as one detection.
	ConditionalReset(ctx context.Context, category Category, expected, today Date, archivedAt time.Time) (snap Snapshot, ok bool, err error)

	// Increment adds n to the counter, creating it with today as its reset
	// date if it does not exist yet.
	Increment(ctx context.Context, category Category, n int64, today Date) (LiveCounter, error)
	Snapshots(ctx context.Context, category Category) ([]Snapshot, error)
	Close() error
}
