package broker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richd0tcom/trashbin/internal/broker"
)

func newQueue(size int) *broker.ChannelQueue {
	return broker.NewChannelQueue(size, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestChannelQueueDeliversInOrder(t *testing.T) {
	t.Parallel()

	q := newQueue(4)
	require.NoError(t, q.Subscribe())

	ctx := context.Background()
	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, q.Publish(ctx, []byte(m)))
	}

	var got []string
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, func(data []byte) error {
			got = append(got, string(data))
			if len(got) == 2 {
				return errors.New("handler errors are logged, not fatal")
			}
			if len(got) == 3 {
				q.Close()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consume did not return after close")
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestChannelQueueClosed(t *testing.T) {
	t.Parallel()

	q := newQueue(1)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), []byte("x"))
	require.ErrorIs(t, err, broker.ErrQueueClosed)
}

func TestChannelQueuePublishHonoursContext(t *testing.T) {
	t.Parallel()

	q := newQueue(1)
	require.NoError(t, q.Publish(context.Background(), []byte("fills the buffer")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Publish(ctx, []byte("blocked")), context.DeadlineExceeded)
}

func TestChannelQueueConsumeStopsOnCancel(t *testing.T) {
	t.Parallel()

	q := newQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Consume(ctx, func([]byte) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
