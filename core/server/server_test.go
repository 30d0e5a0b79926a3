package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richd0tcom/trashbin/core/server"
	"github.com/richd0tcom/trashbin/internal/calendar"
	"github.com/richd0tcom/trashbin/internal/db"
	"github.com/richd0tcom/trashbin/internal/domain"
)

var now = time.Date(2026, time.October, 22, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, store server.Store) *server.Server {
	t.Helper()

	srv, err := server.NewServer(
		server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		server.WithStore(store),
		server.WithChannelQueue(8),
		server.WithCalendar(calendar.DefaultOptions(), time.UTC),
		server.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func seeded(t *testing.T) *db.MemoryStore {
	t.Helper()

	store := db.NewMemoryStore()
	require.NoError(t, store.InsertBatch(context.Background(), []domain.Event{
		{Category: domain.Paper, OccurredAt: time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC)},
		{Category: domain.Can, OccurredAt: time.Date(2026, time.October, 22, 9, 30, 0, 0, time.UTC)},
		{Category: domain.Can, OccurredAt: time.Date(2026, time.October, 22, 9, 45, 0, 0, time.UTC)},
	}))
	return store
}

func do(t *testing.T, srv *server.Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresStore(t *testing.T) {
	t.Parallel()

	_, err := server.NewServer(server.WithChannelQueue(1))
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, newServer(t, db.NewMemoryStore()), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestIngest(t *testing.T) {
	t.Parallel()

	srv := newServer(t, db.NewMemoryStore())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"accepted", `{"data":[{"object_type":"can","created_at":"2026-10-22T09:00:00Z"},{"object_type":"pet bottle"}]}`, http.StatusAccepted},
		{"unknown category", `{"data":[{"object_type":"glass"}]}`, http.StatusBadRequest},
		{"empty", `{"data":[]}`, http.StatusBadRequest},
		{"malformed", `{"data":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		rec := do(t, srv, http.MethodPost, "/api/v1/ingest", tt.body)
		assert.Equal(t, tt.want, rec.Code, tt.name)
	}
}

func TestSeries(t *testing.T) {
	t.Parallel()

	srv := newServer(t, seeded(t))

	rec := do(t, srv, http.MethodGet, "/api/v1/series?granularity=daily", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Description string           `json:"description"`
		Labels      []string         `json:"labels"`
		Series      map[string][]int `json:"series"`
		Events      int              `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "October 19 - October 25", body.Description)
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, body.Labels)
	assert.Equal(t, []int{1, 0, 0, 0, 0, 0, 0}, body.Series["paper"])
	assert.Equal(t, []int{0, 0, 0, 2, 0, 0, 0}, body.Series["can"])
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0}, body.Series["pet_bottle"])
	assert.Equal(t, 3, body.Events)
}

func TestSeriesHourly(t *testing.T) {
	t.Parallel()

	srv := newServer(t, seeded(t))

	rec := do(t, srv, http.MethodGet, "/api/v1/series?granularity=hourly", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Labels []string         `json:"labels"`
		Series map[string][]int `json:"series"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Labels, 15)
	assert.Equal(t, "9 AM", body.Labels[2])
	assert.Equal(t, 2, body.Series["can"][2])
}

func TestSeriesRejectsBadWindows(t *testing.T) {
	t.Parallel()

	srv := newServer(t, seeded(t))

	for _, target := range []string{
		"/api/v1/series?granularity=daily&offset=1",
		"/api/v1/series?granularity=fortnightly",
		"/api/v1/series?offset=abc",
	} {
		rec := do(t, srv, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

type failingStore struct {
	*db.MemoryStore
}

func (failingStore) Query(context.Context, domain.Category, time.Time, time.Time) ([]domain.Event, error) {
	return nil, errors.New("connection reset")
}

func TestSeriesFetchFailure(t *testing.T) {
	t.Parallel()

	srv := newServer(t, failingStore{db.NewMemoryStore()})

	rec := do(t, srv, http.MethodGet, "/api/v1/series?granularity=weekly", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection reset")
}

func TestExport(t *testing.T) {
	t.Parallel()

	srv := newServer(t, seeded(t))

	rec := do(t, srv, http.MethodGet, "/api/v1/export?granularity=daily", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Trash_Collection_Summary_daily.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "label,paper,can,pet bottle\n"+
		"Mon,1,0,0\nTue,0,0,0\nWed,0,0,0\nThu,0,2,0\nFri,0,0,0\nSat,0,0,0\nSun,0,0,0\n"+
		"total,1,2,0", rec.Body.String())
}

func TestExportNamedHourly(t *testing.T) {
	t.Parallel()

	srv := newServer(t, seeded(t))

	rec := do(t, srv, http.MethodGet, "/api/v1/export?granularity=hourly", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="October-22-2026_Hourly_Collection_hourly.csv"`, rec.Header().Get("Content-Disposition"))

	rec = do(t, srv, http.MethodGet, "/api/v1/export?granularity=daily&name=week43", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="week43_daily.csv"`, rec.Header().Get("Content-Disposition"))
}

func TestExportNothingToExport(t *testing.T) {
	t.Parallel()

	srv := newServer(t, seeded(t))

	rec := do(t, srv, http.MethodGet, "/api/v1/export?granularity=monthly&offset=-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no data to export")
}

func TestCountersRollOverOnRead(t *testing.T) {
	t.Parallel()

	store := db.NewMemoryStore()
	store.Seed(domain.LiveCounter{Category: domain.Paper, Count: 9, LastResetDate: "2026-10-21"})
	store.Seed(domain.LiveCounter{Category: domain.Can, Count: 4, LastResetDate: "2026-10-22"})
	srv := newServer(t, store)

	rec := do(t, srv, http.MethodGet, "/api/v1/counters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"counters":[
		{"object_type":"paper","count":0,"last_reset_date":"2026-10-22"},
		{"object_type":"can","count":4,"last_reset_date":"2026-10-22"},
		{"object_type":"pet_bottle","count":0,"last_reset_date":"2026-10-22"}
	]}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/v1/counters/paper/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Category string            `json:"category"`
		History  []domain.Snapshot `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "paper", body.Category)
	require.Len(t, body.History, 1)
	assert.Equal(t, int64(9), body.History[0].Count)
	assert.Equal(t, domain.Date("2026-10-21"), body.History[0].Day)
}

func TestHistoryUnknownCategory(t *testing.T) {
	t.Parallel()

	rec := do(t, newServer(t, db.NewMemoryStore()), http.MethodGet, "/api/v1/counters/glass/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartStoresIngestedDetectionsBeforeReturning(t *testing.T) {
	t.Parallel()

	store := db.NewMemoryStore()
	srv, err := server.NewServer(
		server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		server.WithStore(store),
		server.WithChannelQueue(8),
		server.WithPort("0"),
		server.WithCalendar(calendar.DefaultOptions(), time.UTC),
		server.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	for range 3 {
		rec := do(t, srv, http.MethodPost, "/api/v1/ingest", `{"data":[{"object_type":"paper","created_at":"2026-10-22T09:00:00Z"}]}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, srv.Start(ctx))

	events, err := store.Query(context.Background(), domain.Paper, now.Add(-12*time.Hour), now)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	require.NoError(t, srv.Close())
}
