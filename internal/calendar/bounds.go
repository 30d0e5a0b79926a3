package calendar

import (
	"fmt"
	"strconv"
	"time"
)

// Default options.
const (
	DefaultEpochYear = 2025
	DefaultStartHour = 7
	DefaultEndHour   = 22
)

// Options holds the configurable parts of windowing.
type Options struct {
	// EpochYear is the first year of the yearly series.
	EpochYear int
	// StartHour and EndHour clip the hourly day view to [StartHour, EndHour).
	StartHour int
	EndHour   int
}

func DefaultOptions() Options {
	return Options{
		EpochYear: DefaultEpochYear,
		StartHour: DefaultStartHour,
		EndHour:   DefaultEndHour,
	}
}

func (o Options) Validate() error {
	if o.StartHour < 0 || o.EndHour > 24 || o.StartHour >= o.EndHour {
		return fmt.Errorf("%w: hour span [%d, %d)", ErrInvalidWindow, o.StartHour, o.EndHour)
	}
	if o.EpochYear <= 0 {
		return fmt.Errorf("%w: epoch year %d", ErrInvalidWindow, o.EpochYear)
	}
	return nil
}

// Range is a half-open interval [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Describe renders the range the way the week navigator shows it,
// e.g. "October 12 - October 18". The end day is inclusive here.
func (r Range) Describe() string {
	last := r.End.Add(-time.Nanosecond)
	return r.Start.Format("January 2") + " - " + last.Format("January 2")
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekBounds returns the ISO week (Monday to Sunday) containing ref, shifted
// by offsetWeeks whole weeks.
func WeekBounds(ref time.Time, offsetWeeks int) Range {
	day := midnight(ref)
	sinceMonday := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -sinceMonday+7*offsetWeeks)
	return Range{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthBounds returns the calendar month containing ref.
func MonthBounds(ref time.Time) Range {
	y, m, _ := ref.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, ref.Location())
	return Range{Start: start, End: start.AddDate(0, 1, 0)}
}

// YearBounds returns the calendar year containing ref.
func YearBounds(ref time.Time) Range {
	start := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location())
	return Range{Start: start, End: start.AddDate(1, 0, 0)}
}

// YearSpan runs from the start of epochYear to the end of ref's year. If ref
// predates the epoch the span starts at ref's year instead.
func YearSpan(epochYear int, ref time.Time) Range {
	first := min(epochYear, ref.Year())
	start := time.Date(first, time.January, 1, 0, 0, 0, 0, ref.Location())
	return Range{Start: start, End: YearBounds(ref).End}
}

// HourBounds clips ref's day to [startHour, endHour).
func HourBounds(ref time.Time, startHour, endHour int) Range {
	y, m, d := ref.Date()
	loc := ref.Location()
	return Range{
		Start: time.Date(y, m, d, startHour, 0, 0, 0, loc),
		End:   time.Date(y, m, d, endHour, 0, 0, 0, loc),
	}
}

// BucketKey places t into its bucket. BucketLabels uses the same rule, so a
// key is always comparable with the canonical labels.
func BucketKey(g Granularity, t time.Time) string {
	switch g {
	case Hourly:
		return t.Format("3 PM")
	case Daily:
		return t.Format("Mon")
	case Weekly:
		return "Week " + strconv.Itoa(WeekOfMonth(t))
	case Monthly:
		return t.Format("Jan")
	case Yearly:
		return strconv.Itoa(t.Year())
	}
	return ""
}

// WeekOfMonth is floor((day-1)/7)+1. It is not clamped: days 29-31 fall in
// week 5.
func WeekOfMonth(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

// next returns the start of the unit after t.
func next(g Granularity, t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch g {
	case Hourly:
		return time.Date(y, m, d, t.Hour()+1, 0, 0, 0, loc)
	case Daily:
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	case Weekly:
		return time.Date(y, m, d+7, 0, 0, 0, 0, loc)
	case Monthly:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	default: // Yearly
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, loc)
	}
}

// BucketLabels returns the label of every unit in r, in calendar order.
// Daily ranges yield Mon..Sun, weekly ranges Week 1..Week 4 or 5, monthly
// ranges Jan..Dec, yearly ranges one entry per year and hourly ranges
// "7 AM".."9 PM".
func BucketLabels(g Granularity, r Range) []string {
	if !g.Valid() || !r.End.After(r.Start) {
		return nil
	}

	var labels []string
	seen := make(map[string]struct{})
	for t := r.Start; t.Before(r.End); t = next(g, t) {
		key := BucketKey(g, t)
		// a repeated wall-clock hour on a DST change gets one bucket
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		labels = append(labels, key)
	}
	return labels
}
