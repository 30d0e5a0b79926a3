// Package summary serves chart series, CSV exports and live counters on top
// of the event and counter stores.
package summary

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/richd0tcom/trashbin/internal/aggregate"
	"github.com/richd0tcom/trashbin/internal/calendar"
	"github.com/richd0tcom/trashbin/internal/domain"
	"github.com/richd0tcom/trashbin/internal/export"
	"github.com/richd0tcom/trashbin/internal/metrics"
	"github.com/richd0tcom/trashbin/internal/rollover"
)

const tracerName = "github.com/richd0tcom/trashbin/internal/summary"

type Service struct {
	events   domain.EventStore
	counters domain.CounterStore
	rollover *rollover.Service
	opts     calendar.Options
	loc      *time.Location
	now      func() time.Time
	tracer   trace.Tracer
	logger   *slog.Logger
}

type Option func(*Service)

func WithCalendar(opts calendar.Options) Option {
	return func(s *Service) { s.opts = opts }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(events domain.EventStore, counters domain.CounterStore, rs *rollover.Service, opts ...Option) *Service {
	s := &Service{
		events:   events,
		counters: counters,
		rollover: rs,
		opts:     calendar.DefaultOptions(),
		loc:      time.Local,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the window of g shifted by offset units from now.
func (s *Service) Window(g calendar.Granularity, offset int) calendar.Window {
	return calendar.Window{Granularity: g, Reference: s.now().In(s.loc), Offset: offset}
}

// Series fetches every category's events for w concurrently and aggregates
// them. If any fetch fails nothing is aggregated and the error is returned.
func (s *Service) Series(ctx context.Context, w calendar.Window) (aggregate.Result, error) {
	res, err := s.series(ctx, w)
	metrics.AggregationsTotal.WithLabelValues(string(w.Granularity), status(err)).Inc()
	return res, err
}

func (s *Service) series(ctx context.Context, w calendar.Window) (aggregate.Result, error) {
	r, err := w.Resolve(s.opts)
	if err != nil {
		return aggregate.Result{}, err
	}

	fetched := make([][]domain.Event, len(domain.Categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range domain.Categories {
		g.Go(func() error {
			events, err := s.fetch(gctx, c, r)
			fetched[i] = events
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return aggregate.Result{}, err
	}

	byCategory := make(map[domain.Category][]domain.Event, len(domain.Categories))
	for i, c := range domain.Categories {
		byCategory[c] = fetched[i]
	}
	return aggregate.AggregateAll(byCategory, w, s.opts)
}

func (s *Service) fetch(ctx context.Context, c domain.Category, r calendar.Range) ([]domain.Event, error) {
	ctx, span := s.tracer.Start(ctx, "summary.fetch", trace.WithAttributes(
		attribute.String("category", c.String()),
		attribute.String("start", r.Start.Format(time.RFC3339)),
		attribute.String("end", r.End.Format(time.RFC3339)),
	))
	defer span.End()

	start := time.Now()
	events, err := s.events.Query(ctx, c, r.Start, r.End)
	metrics.FetchDuration.WithLabelValues(c.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, &domain.FetchError{Op: "query events", Categories: []domain.Category{c}, Start: r.Start, End: r.End, Err: err}
	}

	span.SetAttributes(attribute.Int("events", len(events)))
	return events, nil
}

// Export fetches all categories of w in one batch query and renders the
// aggregate as CSV. It returns export.ErrNothingToExport when the window
// holds no events.
func (s *Service) Export(ctx context.Context, w calendar.Window, nameHint string) (export.File, error) {
	f, err := s.export(ctx, w, nameHint)
	metrics.ExportsTotal.WithLabelValues(string(w.Granularity), status(err)).Inc()
	return f, err
}

func (s *Service) export(ctx context.Context, w calendar.Window, nameHint string) (export.File, error) {
	r, err := w.Resolve(s.opts)
	if err != nil {
		return export.File{}, err
	}

	ctx, span := s.tracer.Start(ctx, "summary.export", trace.WithAttributes(
		attribute.String("granularity", string(w.Granularity)),
	))
	defer span.End()

	events, err := s.events.QueryAll(ctx, domain.Categories[:], r.Start, r.End)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return export.File{}, &domain.FetchError{Op: "query all events", Categories: domain.Categories[:], Start: r.Start, End: r.End, Err: err}
	}

	res, err := aggregate.AggregateAll(events, w, s.opts)
	if err != nil {
		return export.File{}, err
	}

	f, err := export.Build(res, nameHint)
	if err != nil {
		return export.File{}, err
	}
	s.logger.InfoContext(ctx, "built export",
		slog.String("name", f.Name), slog.Int("rows", len(f.Rows)), slog.Int("events", res.Events))
	return f, nil
}

// Counters rolls stale counters over and returns the current ones.
func (s *Service) Counters(ctx context.Context) ([]rollover.Outcome, error) {
	return s.rollover.RolloverAll(ctx)
}

// History returns the archived daily totals of c, oldest first.
func (s *Service) History(ctx context.Context, c domain.Category) ([]domain.Snapshot, error) {
	snaps, err := s.counters.Snapshots(ctx, c)
	if err != nil {
		return nil, &domain.FetchError{Op: "read history", Categories: []domain.Category{c}, Err: err}
	}
	return snaps, nil
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, export.ErrNothingToExport):
		return "empty"
	case errors.Is(err, calendar.ErrInvalidWindow):
		return "invalid"
	}
	return "error"
}
