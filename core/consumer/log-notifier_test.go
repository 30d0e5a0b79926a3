package consumer_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richd0tcom/trashbin/core/consumer"
	"github.com/richd0tcom/trashbin/internal/domain"
)

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := consumer.NewLogNotifier("dashboard", slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.Notify([]domain.Change{
		{Category: domain.PetBottle, Count: 3, Latest: time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC)},
	}))

	out := buf.String()
	assert.Contains(t, out, "listener=dashboard")
	assert.Contains(t, out, "category=pet_bottle")
	assert.Contains(t, out, "count=3")
	assert.Contains(t, out, "latest=2026-10-19T08:00:00Z")
}
