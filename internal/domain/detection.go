package domain

import "time"

// Event is a single recorded detection. Events are append-only.
type Event struct {
	Category   Category  `json:"object_type"`
	OccurredAt time.Time `json:"created_at"`
}

// BulkDetections is the ingest payload a detector posts.
type BulkDetections struct {
	Data []Event `json:"data"`
}

// Change tells listeners that new events were recorded for a category.
type Change struct {
	Category Category  `json:"object_type"`
	Count    int       `json:"count"`
	Latest   time.Time `json:"latest"`
}

// ChangeListener is notified after a batch of events has been stored.
// Listeners re-run aggregation on their side; the core keeps no subscriptions.
type ChangeListener interface {
	Notify(changes []Change) error
}

// ChangesFor groups a batch into one Change per category, in legend order.
func ChangesFor(events []Event) []Change {
	var byCat [len(Categories)]Change
	for _, e := range events {
		if !e.Category.Valid() {
			continue
		}
		ch := &byCat[e.Category]
		ch.Category = e.Category
		ch.Count++
		if e.OccurredAt.After(ch.Latest) {
			ch.Latest = e.OccurredAt
		}
	}

	changes := make([]Change, 0, len(Categories))
	for _, ch := range byCat {
		if ch.Count > 0 {
			changes = append(changes, ch)
		}
	}
	return changes
}
