package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richd0tcom/trashbin/internal/calendar"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekBounds(t *testing.T) {
	t.Parallel()

	// Thursday 2026-10-22 belongs to the week of Monday 2026-10-19.
	ref := time.Date(2026, time.October, 22, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		offset int
		start  time.Time
	}{
		{"current", 0, day(2026, time.October, 19)},
		{"previous", -1, day(2026, time.October, 12)},
		{"three back", -3, day(2026, time.September, 28)},
		{"next", 1, day(2026, time.October, 26)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := calendar.WeekBounds(ref, tt.offset)
			assert.Equal(t, tt.start, r.Start)
			assert.Equal(t, tt.start.AddDate(0, 0, 7), r.End)
			assert.Equal(t, time.Monday, r.Start.Weekday())
		})
	}
}

func TestWeekBoundsSundayBelongsToPreviousMonday(t *testing.T) {
	t.Parallel()

	r := calendar.WeekBounds(time.Date(2026, time.October, 25, 23, 59, 0, 0, time.UTC), 0)
	assert.Equal(t, day(2026, time.October, 19), r.Start)
	assert.True(t, r.Contains(time.Date(2026, time.October, 25, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(day(2026, time.October, 26)))
}

func TestMonthAndYearBounds(t *testing.T) {
	t.Parallel()

	ref := time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)

	m := calendar.MonthBounds(ref)
	assert.Equal(t, day(2024, time.February, 1), m.Start)
	assert.Equal(t, day(2024, time.March, 1), m.End)

	y := calendar.YearBounds(ref)
	assert.Equal(t, day(2024, time.January, 1), y.Start)
	assert.Equal(t, day(2025, time.January, 1), y.End)
}

func TestHourBounds(t *testing.T) {
	t.Parallel()

	r := calendar.HourBounds(time.Date(2026, time.October, 19, 3, 30, 0, 0, time.UTC), 7, 22)
	assert.Equal(t, time.Date(2026, time.October, 19, 7, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2026, time.October, 19, 22, 0, 0, 0, time.UTC), r.End)
}

func TestBucketLabels(t *testing.T) {
	t.Parallel()

	ref := time.Date(2026, time.October, 22, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		g    calendar.Granularity
		r    calendar.Range
		want []string
	}{
		{
			name: "daily week",
			g:    calendar.Daily,
			r:    calendar.WeekBounds(ref, 0),
			want: []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
		},
		{
			name: "weekly 31 day month",
			g:    calendar.Weekly,
			r:    calendar.MonthBounds(ref),
			want: []string{"Week 1", "Week 2", "Week 3", "Week 4", "Week 5"},
		},
		{
			name: "weekly 28 day february",
			g:    calendar.Weekly,
			r:    calendar.MonthBounds(day(2026, time.February, 10)),
			want: []string{"Week 1", "Week 2", "Week 3", "Week 4"},
		},
		{
			name: "monthly",
			g:    calendar.Monthly,
			r:    calendar.YearBounds(ref),
			want: []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		},
		{
			name: "yearly from epoch",
			g:    calendar.Yearly,
			r:    calendar.YearSpan(2025, ref),
			want: []string{"2025", "2026"},
		},
		{
			name: "hourly",
			g:    calendar.Hourly,
			r:    calendar.HourBounds(ref, 7, 22),
			want: []string{
				"7 AM", "8 AM", "9 AM", "10 AM", "11 AM", "12 PM", "1 PM", "2 PM",
				"3 PM", "4 PM", "5 PM", "6 PM", "7 PM", "8 PM", "9 PM",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, calendar.BucketLabels(tt.g, tt.r))
		})
	}
}

func TestBucketLabelsEmptyRange(t *testing.T) {
	t.Parallel()

	r := calendar.Range{Start: day(2026, time.May, 2), End: day(2026, time.May, 1)}
	assert.Empty(t, calendar.BucketLabels(calendar.Daily, r))
	assert.Empty(t, calendar.BucketLabels("fortnightly", calendar.WeekBounds(r.Start, 0)))
}

func TestBucketKeyWeekOfMonthIsUnclamped(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Week 1", calendar.BucketKey(calendar.Weekly, day(2026, time.October, 7)))
	assert.Equal(t, "Week 2", calendar.BucketKey(calendar.Weekly, day(2026, time.October, 8)))
	assert.Equal(t, "Week 4", calendar.BucketKey(calendar.Weekly, day(2026, time.October, 28)))
	assert.Equal(t, "Week 5", calendar.BucketKey(calendar.Weekly, day(2026, time.October, 29)))
	assert.Equal(t, "Week 5", calendar.BucketKey(calendar.Weekly, day(2026, time.October, 31)))
}

func TestWindowResolve(t *testing.T) {
	t.Parallel()

	ref := time.Date(2026, time.October, 22, 9, 0, 0, 0, time.UTC)
	opts := calendar.DefaultOptions()

	tests := []struct {
		name string
		w    calendar.Window
		want calendar.Range
	}{
		{
			name: "hourly yesterday",
			w:    calendar.Window{Granularity: calendar.Hourly, Reference: ref, Offset: -1},
			want: calendar.Range{
				Start: time.Date(2026, time.October, 21, 7, 0, 0, 0, time.UTC),
				End:   time.Date(2026, time.October, 21, 22, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "daily last week",
			w:    calendar.Window{Granularity: calendar.Daily, Reference: ref, Offset: -1},
			want: calendar.Range{Start: day(2026, time.October, 12), End: day(2026, time.October, 19)},
		},
		{
			name: "weekly previous month across year",
			w:    calendar.Window{Granularity: calendar.Weekly, Reference: day(2026, time.January, 31), Offset: -1},
			want: calendar.Range{Start: day(2025, time.December, 1), End: day(2026, time.January, 1)},
		},
		{
			name: "monthly current year",
			w:    calendar.Current(calendar.Monthly, ref),
			want: calendar.Range{Start: day(2026, time.January, 1), End: day(2027, time.January, 1)},
		},
		{
			name: "yearly ignores offset",
			w:    calendar.Window{Granularity: calendar.Yearly, Reference: ref, Offset: -4},
			want: calendar.Range{Start: day(2025, time.January, 1), End: day(2027, time.January, 1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.w.Resolve(opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWindowResolveInvalid(t *testing.T) {
	t.Parallel()

	ref := time.Date(2026, time.October, 22, 9, 0, 0, 0, time.UTC)

	_, err := calendar.Window{Granularity: "fortnightly", Reference: ref}.Resolve(calendar.DefaultOptions())
	require.ErrorIs(t, err, calendar.ErrInvalidWindow)

	_, err = calendar.Window{Granularity: calendar.Daily}.Resolve(calendar.DefaultOptions())
	require.ErrorIs(t, err, calendar.ErrInvalidWindow)

	_, err = calendar.Window{Granularity: calendar.Hourly, Reference: ref}.Resolve(calendar.Options{
		EpochYear: 2025, StartHour: 22, EndHour: 7,
	})
	require.ErrorIs(t, err, calendar.ErrInvalidWindow)
}

func TestWindowBrowsable(t *testing.T) {
	t.Parallel()

	ref := time.Now()
	require.NoError(t, calendar.Window{Granularity: calendar.Daily, Reference: ref, Offset: -2}.Browsable())
	require.NoError(t, calendar.Window{Granularity: calendar.Daily, Reference: ref}.Browsable())
	require.ErrorIs(t, calendar.Window{Granularity: calendar.Daily, Reference: ref, Offset: 1}.Browsable(),
		calendar.ErrFutureWindow)
}

func TestRangeDescribe(t *testing.T) {
	t.Parallel()

	r := calendar.WeekBounds(time.Date(2026, time.October, 22, 9, 0, 0, 0, time.UTC), 0)
	assert.Equal(t, "October 19 - October 25", r.Describe())
}

func TestParseGranularity(t *testing.T) {
	t.Parallel()

	g, err := calendar.ParseGranularity(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, calendar.Weekly, g)
	assert.Equal(t, "Weekly", g.Title())

	_, err = calendar.ParseGranularity("minute")
	require.ErrorIs(t, err, calendar.ErrInvalidWindow)
}
