// Command load-testing posts synthetic detections to a running trashbin and
// then reads every chart series back.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/richd0tcom/trashbin/internal/calendar"
	"github.com/richd0tcom/trashbin/internal/domain"
)

type loadConfig struct {
	target   string
	users    int
	duration time.Duration
	rate     int
	maxBatch int
}

// stats aggregates request outcomes across users.
type stats struct {
	mu       sync.Mutex
	requests int
	failed   int
	events   int
	total    time.Duration
	min, max time.Duration
	errors   map[string]int
}

func (s *stats) record(events int, latency time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests++
	s.total += latency
	if s.min == 0 || latency < s.min {
		s.min = latency
	}
	s.max = max(s.max, latency)

	if err != nil {
		s.failed++
		if s.errors == nil {
			s.errors = make(map[string]int)
		}
		s.errors[err.Error()]++
		return
	}
	s.events += events
}

func (s *stats) render(w io.Writer, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"metric", "value"})
	tbl.AppendRows([]table.Row{
		{"requests", s.requests},
		{"failed", s.failed},
		{"detections accepted", s.events},
		{"requests/sec", fmt.Sprintf("%.2f", float64(s.requests)/elapsed.Seconds())},
		{"latency avg", s.avg().Round(time.Millisecond)},
		{"latency min", s.min.Round(time.Millisecond)},
		{"latency max", s.max.Round(time.Millisecond)},
	})
	for msg, n := range s.errors {
		tbl.AppendRow(table.Row{"error: " + msg, n})
	}
	tbl.Render()
}

func (s *stats) avg() time.Duration {
	if s.requests == 0 {
		return 0
	}
	return s.total / time.Duration(s.requests)
}

// detectionMix skews towards paper; PET bottles are the rarest on a line.
var detectionMix = []domain.Category{
	domain.Paper, domain.Paper, domain.Paper,
	domain.Can, domain.Can,
	domain.PetBottle,
}

func generateDetections(rng *rand.Rand, count int, now time.Time) domain.BulkDetections {
	data := make([]domain.Event, count)
	for i := range data {
		data[i] = domain.Event{
			Category:   detectionMix[rng.Intn(len(detectionMix))],
			OccurredAt: now.Add(-time.Duration(rng.Intn(3600)) * time.Second),
		}
	}
	return domain.BulkDetections{Data: data}
}

func ingest(ctx context.Context, client *http.Client, target string, bulk domain.BulkDetections) error {
	body, err := json.Marshal(bulk)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target+"/api/v1/ingest", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("ingest returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func user(ctx context.Context, id int, cfg loadConfig, client *http.Client, st *stats) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	ticker := time.NewTicker(time.Second / time.Duration(max(cfg.rate, 1)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bulk := generateDetections(rng, rng.Intn(cfg.maxBatch)+1, time.Now())
			start := time.Now()
			err := ingest(ctx, client, cfg.target, bulk)
			if ctx.Err() != nil {
				return
			}
			st.record(len(bulk.Data), time.Since(start), err)
		}
	}
}

type seriesBody struct {
	Description string           `json:"description"`
	Labels      []string         `json:"labels"`
	Series      map[string][]int `json:"series"`
	Events      int              `json:"events"`
}

func readSeries(ctx context.Context, client *http.Client, target string, w io.Writer) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"granularity", "window", "buckets", "events", "took"})

	for _, g := range calendar.Granularities {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+"/api/v1/series?granularity="+string(g), nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("series %s: %w", g, err)
		}

		var body seriesBody
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("series %s returned HTTP %d", g, resp.StatusCode)
		}
		if err != nil {
			return fmt.Errorf("decode series %s: %w", g, err)
		}

		tbl.AppendRow(table.Row{g, body.Description, len(body.Labels), body.Events, time.Since(start).Round(time.Millisecond)})
	}
	tbl.Render()
	return nil
}

func waitReady(ctx context.Context, client *http.Client, target string, logger *slog.Logger) error {
	for attempt := 1; attempt <= 30; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+"/health", nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		logger.Info("waiting for service", slog.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("%s never became healthy", target)
}

func run(ctx context.Context, cfg loadConfig, out io.Writer, logger *slog.Logger) error {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(cfg.users, 10),
			IdleConnTimeout:     90 * time.Second,
		},
	}

	if err := waitReady(ctx, client, cfg.target, logger); err != nil {
		return err
	}

	logger.Info("starting load",
		slog.String("target", cfg.target),
		slog.Int("users", cfg.users),
		slog.Int("rate", cfg.rate),
		slog.Duration("duration", cfg.duration))

	loadCtx, cancel := context.WithTimeout(ctx, cfg.duration)
	defer cancel()

	st := &stats{}
	started := time.Now()
	var wg sync.WaitGroup
	for i := range cfg.users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user(loadCtx, i, cfg, client, st)
		}()
	}
	wg.Wait()

	st.render(out, time.Since(started))
	return readSeries(ctx, client, cfg.target, out)
}

func newCommand() *cobra.Command {
	var cfg loadConfig

	cmd := &cobra.Command{
		Use:          "load-testing",
		Short:        "Post synthetic detections to trashbin and read the series back",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			return run(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVar(&cfg.target, "target", "http://localhost:8080", "trashbin base URL")
	cmd.Flags().IntVar(&cfg.users, "users", 10, "concurrent detectors")
	cmd.Flags().DurationVar(&cfg.duration, "duration", time.Minute, "how long to send detections")
	cmd.Flags().IntVar(&cfg.rate, "rate", 5, "requests per second per detector")
	cmd.Flags().IntVar(&cfg.maxBatch, "max-batch", 60, "largest detection batch per request")
	return cmd
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
