package domain

import "time"

// DateLayout is the wire form of a Date.
const DateLayout = "2006-01-02"

// Date is a civil calendar date in YYYY-MM-DD form. Dates in that form
// compare correctly as strings.
type Date string

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func (d Date) String() string { return string(d) }

func (d Date) Before(o Date) bool { return d < o }

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, string(d), loc)
}

// LiveCounter is the running total for the current day of one category.
type LiveCounter struct {
	Category      Category `json:"object_type"`
	Count         int64    `json:"count"`
	LastResetDate Date     `json:"last_reset_date"`
}

// Stale reports whether the counter still holds a previous day's total.
func (c LiveCounter) Stale(today Date) bool {
	return c.LastResetDate.Before(today)
}

// Snapshot is the archived total of one category for one day.
type Snapshot struct {
	Category   Category  `json:"object_type"`
	Count      int64     `json:"count"`
	Day        Date      `json:"day"`
	ArchivedAt time.Time `json:"archived_at"`
}
