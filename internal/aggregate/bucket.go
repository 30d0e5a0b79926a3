// Package aggregate turns raw detection events into dense bucket series.
package aggregate

import (
	"github.com/richd0tcom/trashbin/internal/calendar"
	"github.com/richd0tcom/trashbin/internal/domain"
)

// Bucket is one labelled count slot.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Series is a dense, ordered bucket sequence covering a whole window.
type Series []Bucket

func (s Series) Labels() []string {
	labels := make([]string, len(s))
	for i, b := range s {
		labels[i] = b.Label
	}
	return labels
}

func (s Series) Counts() []int {
	counts := make([]int, len(s))
	for i, b := range s {
		counts[i] = b.Count
	}
	return counts
}

func (s Series) Total() int {
	total := 0
	for _, b := range s {
		total += b.Count
	}
	return total
}

// Aggregate buckets events into the window. Every unit of the window is
// present in the result, zero-filled where nothing happened, in calendar
// order. Events outside [start, end) or whose bucket key is not one of the
// window's labels are skipped. The second return value is how many events
// were counted.
func Aggregate(events []domain.Event, w calendar.Window, opts calendar.Options) (Series, int, error) {
	r, err := w.Resolve(opts)
	if err != nil {
		return nil, 0, err
	}
	series, counted := bucketize(events, w.Granularity, r)
	return series, counted, nil
}

func bucketize(events []domain.Event, g calendar.Granularity, r calendar.Range) (Series, int) {
	labels := calendar.BucketLabels(g, r)

	series := make(Series, len(labels))
	index := make(map[string]int, len(labels))
	for i, label := range labels {
		series[i] = Bucket{Label: label}
		index[label] = i
	}

	loc := r.Start.Location()
	counted := 0
	for _, e := range events {
		at := e.OccurredAt.In(loc)
		if !r.Contains(at) {
			continue
		}
		i, ok := index[calendar.BucketKey(g, at)]
		if !ok {
			continue
		}
		series[i].Count++
		counted++
	}
	return series, counted
}
