package aggregate

import (
	"github.com/richd0tcom/trashbin/internal/calendar"
	"github.com/richd0tcom/trashbin/internal/domain"
)

// Result holds one series per category over a shared label axis.
type Result struct {
	Window calendar.Window `json:"window"`
	Range  calendar.Range  `json:"range"`
	Labels []string        `json:"labels"`
	// Series[c][i] is the count of category c in bucket Labels[i].
	Series map[domain.Category][]int `json:"series"`
	// Events is how many source events were counted across all series.
	Events int `json:"events"`
}

// AggregateAll runs Aggregate for every category against the same resolved
// window. Categories missing from eventsByCategory still get a zero series.
func AggregateAll(eventsByCategory map[domain.Category][]domain.Event, w calendar.Window, opts calendar.Options) (Result, error) {
	r, err := w.Resolve(opts)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Window: w,
		Range:  r,
		Labels: calendar.BucketLabels(w.Granularity, r),
		Series: make(map[domain.Category][]int, len(domain.Categories)),
	}
	for _, c := range domain.Categories {
		series, counted := bucketize(eventsByCategory[c], w.Granularity, r)
		res.Series[c] = series.Counts()
		res.Events += counted
	}
	return res, nil
}

// Split groups a mixed event list by category, as returned by a single
// query over several categories.
func Split(events []domain.Event) map[domain.Category][]domain.Event {
	out := make(map[domain.Category][]domain.Event, len(domain.Categories))
	for _, e := range events {
		out[e.Category] = append(out[e.Category], e)
	}
	return out
}

// Count returns the count of c at bucket i, or 0 when either is missing.
func (r Result) Count(c domain.Category, i int) int {
	s := r.Series[c]
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

// Totals sums each category across all buckets.
func (r Result) Totals() map[domain.Category]int {
	totals := make(map[domain.Category]int, len(domain.Categories))
	for _, c := range domain.Categories {
		for _, n := range r.Series[c] {
			totals[c] += n
		}
	}
	return totals
}
