package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/richd0tcom/trashbin/internal/broker"
	"github.com/richd0tcom/trashbin/internal/domain"
	"github.com/richd0tcom/trashbin/internal/metrics"
	"github.com/richd0tcom/trashbin/internal/rollover"
)

const defaultFlushInterval = 5 * time.Second

// Worker drains detection batches from the queue, appends them to the event
// log, bumps today's live counters and tells the listener what changed.
type Worker struct {
	store    domain.EventStore
	counters domain.CounterStore
	rollover *rollover.Service
	listener domain.ChangeListener

	workerCount   int
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
}

type Option func(*Worker)

func WithFlushInterval(d time.Duration) Option {
	return func(w *Worker) { w.flushInterval = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func NewWorker(store domain.EventStore, counters domain.CounterStore, rs *rollover.Service, listener domain.ChangeListener, workerCount, batchSize int, opts ...Option) *Worker {
	w := &Worker{
		store:         store,
		counters:      counters,
		rollover:      rs,
		listener:      listener,
		workerCount:   max(workerCount, 1),
		batchSize:     max(batchSize, 1),
		flushInterval: defaultFlushInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start consumes mq until ctx is done. Messages the queue still holds and
// pending batches are stored before it returns.
func (w *Worker) Start(ctx context.Context, mq broker.MessageQueue) error {
	if err := mq.Subscribe(); err != nil {
		return err
	}

	jobs := make(chan []domain.Event, w.workerCount)

	var wg sync.WaitGroup
	for i := range w.workerCount {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.worker(ctx, workerID, jobs)
		}(i)
	}

	err := mq.Consume(ctx, func(data []byte) error {
		events, err := decode(data)
		if err != nil {
			return err
		}
		// workers only exit after close(jobs), so this cannot block forever
		jobs <- events
		return nil
	})
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func decode(data []byte) ([]domain.Event, error) {
	var bulk domain.BulkDetections
	if err := json.Unmarshal(data, &bulk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return bulk.Data, nil
}

func (w *Worker) worker(ctx context.Context, workerID int, jobs <-chan []domain.Event) {
	log := w.logger.With(slog.Int("worker", workerID))
	log.Debug("worker started")
	defer log.Debug("worker stopped")

	batch := make([]domain.Event, 0, w.batchSize)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// a cancelled ctx must not drop what is already buffered
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := w.ProcessBatch(fctx, batch); err != nil {
			log.ErrorContext(fctx, "failed to process batch", slog.Int("size", len(batch)), slog.Any("error", err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case events, ok := <-jobs:
			if !ok {
				flush()
				return
			}
			batch = append(batch, events...)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// ProcessBatch stores one batch. Events with an unknown category or no
// timestamp are dropped.
func (w *Worker) ProcessBatch(ctx context.Context, batch []domain.Event) error {
	start := time.Now()

	valid := make([]domain.Event, 0, len(batch))
	for _, e := range batch {
		if e.Category.Valid() && !e.OccurredAt.IsZero() {
			valid = append(valid, e)
		}
	}
	if dropped := len(batch) - len(valid); dropped > 0 {
		w.logger.WarnContext(ctx, "dropped invalid detections", slog.Int("count", dropped))
	}
	if len(valid) == 0 {
		return nil
	}

	if err := w.store.InsertBatch(ctx, valid); err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}

	// the events are stored either way, so listeners still hear about them
	countErr := w.countToday(ctx, valid)

	changes := domain.ChangesFor(valid)
	for _, ch := range changes {
		metrics.IngestedTotal.WithLabelValues(ch.Category.String()).Add(float64(ch.Count))
	}
	if w.listener != nil {
		if err := w.listener.Notify(changes); err != nil {
			w.logger.WarnContext(ctx, "change listener failed", slog.Any("error", err))
		}
	}

	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	w.logger.DebugContext(ctx, "processed batch",
		slog.Int("size", len(valid)), slog.Duration("took", time.Since(start)))
	return countErr
}

// countToday adds the events that happened today to the live counters,
// rolling yesterday's total over first. A category that fails does not stop
// the others; each miss is logged with the count the counter is now behind
// the event log by.
func (w *Worker) countToday(ctx context.Context, events []domain.Event) error {
	today := w.rollover.Today()
	loc := w.rollover.Location()

	var perCategory [len(domain.Categories)]int64
	for _, e := range events {
		if domain.DateOf(e.OccurredAt.In(loc)) == today {
			perCategory[e.Category]++
		}
	}

	var errs []error
	for _, c := range domain.Categories {
		n := perCategory[c]
		if n == 0 {
			continue
		}
		if err := w.increment(ctx, c, n, today); err != nil {
			w.logger.ErrorContext(ctx, "live counter not updated",
				slog.String("category", c.String()),
				slog.Int64("missed", n),
				slog.String("day", today.String()),
				slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Worker) increment(ctx context.Context, c domain.Category, n int64, today domain.Date) error {
	if _, err := w.rollover.RolloverIfStale(ctx, c); err != nil {
		return err
	}
	counter, err := w.counters.Increment(ctx, c, n, today)
	if err != nil {
		return fmt.Errorf("increment %s: %w", c, err)
	}
	metrics.LiveCount.WithLabelValues(c.String()).Set(float64(counter.Count))
	return nil
}
