package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrQueueClosed = errors.New("queue closed")

// ChannelQueue is an in-process MessageQueue for single-node runs and tests.
type ChannelQueue struct {
	messages chan []byte
	logger   *slog.Logger

	once sync.Once
	done chan struct{}
}

func NewChannelQueue(size int, logger *slog.Logger) *ChannelQueue {
	return &ChannelQueue{
		messages: make(chan []byte, size),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (q *ChannelQueue) Publish(ctx context.Context, data []byte) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.messages <- data:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ChannelQueue) Subscribe() error { return nil }

// Consume hands messages to handler until ctx is done or the queue is
// closed. Messages already published when it stops are still delivered.
func (q *ChannelQueue) Consume(ctx context.Context, handler func([]byte) error) error {
	for {
		select {
		case <-ctx.Done():
			q.drain(ctx, handler)
			return ctx.Err()
		case <-q.done:
			q.drain(ctx, handler)
			return nil
		case data := <-q.messages:
			q.handle(ctx, handler, data)
		}
	}
}

func (q *ChannelQueue) drain(ctx context.Context, handler func([]byte) error) {
	for {
		select {
		case data := <-q.messages:
			q.handle(ctx, handler, data)
		default:
			return
		}
	}
}

func (q *ChannelQueue) handle(ctx context.Context, handler func([]byte) error, data []byte) {
	if err := handler(data); err != nil {
		q.logger.ErrorContext(ctx, "error processing message", slog.Any("error", err))
	}
}

func (q *ChannelQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
