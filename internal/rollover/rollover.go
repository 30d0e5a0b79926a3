// Package rollover archives and resets the live counters once per calendar
// day.
package rollover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/richd0tcom/trashbin/internal/domain"
	"github.com/richd0tcom/trashbin/internal/metrics"
)

// Decision is what Decide concluded about a counter.
type Decision struct {
	// Roll is set when the counter belongs to an earlier day.
	Roll bool
	// Future is set when the counter claims a reset date after today. Such a
	// counter is left alone.
	Future   bool
	Expected domain.Date
	Today    domain.Date
}

// Decide is the pure part of the rollover policy.
func Decide(c domain.LiveCounter, today domain.Date) Decision {
	d := Decision{Expected: c.LastResetDate, Today: today}
	switch {
	case c.LastResetDate == today:
	case today.Before(c.LastResetDate):
		d.Future = true
	default:
		d.Roll = true
	}
	return d
}

// Outcome is the result of one RolloverIfStale call.
type Outcome struct {
	Archived bool               `json:"archived"`
	Counter  domain.LiveCounter `json:"counter"`
}

type Service struct {
	store  domain.CounterStore
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone whose midnight starts a new day.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store domain.CounterStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		loc:    time.Local,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Location() *time.Location { return s.loc }

// Today returns the current calendar date in the service's location.
func (s *Service) Today() domain.Date {
	return domain.DateOf(s.now().In(s.loc))
}

// RolloverIfStale archives and resets the counter of category if it still
// holds an earlier day's total. The archive and the reset are applied by the
// store as one conditional write; losing that race to another caller is a
// no-op and is not retried.
func (s *Service) RolloverIfStale(ctx context.Context, category domain.Category) (Outcome, error) {
	now := s.now().In(s.loc)
	today := domain.DateOf(now)
	log := s.logger.With(slog.String("category", category.String()), slog.String("today", today.String()))

	counter, err := s.store.Read(ctx, category)
	if errors.Is(err, domain.ErrCounterNotFound) {
		// nothing has been counted yet, so there is nothing to archive
		return Outcome{Counter: domain.LiveCounter{Category: category, LastResetDate: today}}, nil
	}
	if err != nil {
		metrics.RolloverTotal.WithLabelValues(category.String(), metrics.RolloverError).Inc()
		return Outcome{}, &domain.FetchError{Op: "read counter", Categories: []domain.Category{category}, Err: err}
	}

	d := Decide(counter, today)
	if d.Future {
		log.WarnContext(ctx, "counter reset date is ahead of the clock",
			slog.String("last_reset_date", counter.LastResetDate.String()))
	}
	if !d.Roll {
		metrics.RolloverTotal.WithLabelValues(category.String(), metrics.RolloverFresh).Inc()
		return Outcome{Counter: counter}, nil
	}

	snap, ok, err := s.store.ConditionalReset(ctx, category, d.Expected, today, now)
	switch {
	case errors.Is(err, domain.ErrInconsistentRollover):
		metrics.RolloverTotal.WithLabelValues(category.String(), metrics.RolloverInconsistent).Inc()
		log.ErrorContext(ctx, "rollover left counter and archive out of step",
			slog.String("expected", d.Expected.String()), slog.Any("error", err))
		return Outcome{Counter: counter}, err
	case err != nil:
		metrics.RolloverTotal.WithLabelValues(category.String(), metrics.RolloverError).Inc()
		return Outcome{}, fmt.Errorf("rollover %s: %w", category, err)
	case !ok:
		metrics.RolloverTotal.WithLabelValues(category.String(), metrics.RolloverRaceLost).Inc()
		log.DebugContext(ctx, "rollover already applied by another caller")
		fresh, err := s.store.Read(ctx, category)
		if err != nil {
			return Outcome{}, &domain.FetchError{Op: "read counter", Categories: []domain.Category{category}, Err: err}
		}
		return Outcome{Counter: fresh}, nil
	}

	metrics.RolloverTotal.WithLabelValues(category.String(), metrics.RolloverArchived).Inc()
	log.InfoContext(ctx, "archived live counter",
		slog.String("day", snap.Day.String()), slog.Int64("count", snap.Count))

	return Outcome{
		Archived: true,
		Counter:  domain.LiveCounter{Category: category, LastResetDate: today},
	}, nil
}

// RolloverAll runs RolloverIfStale for every category. A failure for one
// category does not stop the others; all errors are joined.
func (s *Service) RolloverAll(ctx context.Context) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(domain.Categories))
	var errs []error
	for _, c := range domain.Categories {
		out, err := s.RolloverIfStale(ctx, c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		metrics.LiveCount.WithLabelValues(c.String()).Set(float64(out.Counter.Count))
		outcomes = append(outcomes, out)
	}
	return outcomes, errors.Join(errs...)
}
