package calendar

import (
	"fmt"
	"time"
)

// Window is a navigable chart or export range. Offset counts whole units
// away from Reference: days for hourly, weeks for daily, months for weekly
// and years for monthly. The yearly span is fixed and ignores Offset.
type Window struct {
	Granularity Granularity `json:"granularity"`
	Reference   time.Time   `json:"reference"`
	Offset      int         `json:"offset"`
}

// Current returns the unshifted window of g around now.
func Current(g Granularity, now time.Time) Window {
	return Window{Granularity: g, Reference: now}
}

// Resolve turns the window into an absolute half-open range.
func (w Window) Resolve(opts Options) (Range, error) {
	if w.Reference.IsZero() {
		return Range{}, fmt.Errorf("%w: zero reference instant", ErrInvalidWindow)
	}

	ref := w.Reference
	var r Range
	switch w.Granularity {
	case Hourly:
		if err := opts.Validate(); err != nil {
			return Range{}, err
		}
		r = HourBounds(ref.AddDate(0, 0, w.Offset), opts.StartHour, opts.EndHour)
	case Daily:
		r = WeekBounds(ref, w.Offset)
	case Weekly:
		y, m, _ := ref.Date()
		r = MonthBounds(time.Date(y, m+time.Month(w.Offset), 1, 0, 0, 0, 0, ref.Location()))
	case Monthly:
		r = YearBounds(time.Date(ref.Year()+w.Offset, time.January, 1, 0, 0, 0, 0, ref.Location()))
	case Yearly:
		if opts.EpochYear <= 0 {
			opts.EpochYear = DefaultEpochYear
		}
		r = YearSpan(opts.EpochYear, ref)
	default:
		return Range{}, fmt.Errorf("%w: unknown granularity %q", ErrInvalidWindow, w.Granularity)
	}

	if !r.End.After(r.Start) {
		return Range{}, fmt.Errorf("%w: end %s not after start %s", ErrInvalidWindow, r.End, r.Start)
	}
	return r, nil
}

// Browsable rejects windows that navigate past the current unit. Chart views
// never look into the future; export ranges are not restricted.
func (w Window) Browsable() error {
	if w.Offset > 0 {
		return fmt.Errorf("%w: offset %d", ErrFutureWindow, w.Offset)
	}
	return nil
}
