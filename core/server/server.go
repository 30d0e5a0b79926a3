package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richd0tcom/trashbin/core/consumer"
	"github.com/richd0tcom/trashbin/internal/aggregate"
	"github.com/richd0tcom/trashbin/internal/calendar"
	"github.com/richd0tcom/trashbin/internal/domain"
	"github.com/richd0tcom/trashbin/internal/export"
	"github.com/richd0tcom/trashbin/internal/rollover"
	"github.com/richd0tcom/trashbin/internal/summary"
	"github.com/richd0tcom/trashbin/internal/worker"
)

const requestTimeout = 30 * time.Second

var errNoStore = errors.New("server: no store configured")

type Server struct {
	config  *ServerConfig
	worker  *worker.Worker
	summary *summary.Service
	router  *gin.Engine
}

func NewServer(options ...ConfigOption) (*Server, error) {
	config := &ServerConfig{
		WorkerCount:   4,
		BatchSize:     100,
		FlushInterval: time.Second,
		Port:          "8080",
		Calendar:      calendar.DefaultOptions(),
		Location:      time.Local,
		Clock:         time.Now,
		Logger:        slog.Default(),
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return nil, err
		}
	}

	if config.Store == nil {
		return nil, errNoStore
	}
	if config.MessageQueue == nil {
		if err := WithChannelQueue(1024)(config); err != nil {
			return nil, err
		}
	}
	if config.Listener == nil {
		config.Listener = consumer.NewLogNotifier("default", config.Logger)
	}

	rs := rollover.NewService(config.Store,
		rollover.WithClock(config.Clock),
		rollover.WithLocation(config.Location),
		rollover.WithLogger(config.Logger),
	)
	processor := worker.NewWorker(config.Store, config.Store, rs, config.Listener, config.WorkerCount, config.BatchSize,
		worker.WithFlushInterval(config.FlushInterval),
		worker.WithLogger(config.Logger),
	)
	summaries := summary.NewService(config.Store, config.Store, rs,
		summary.WithCalendar(config.Calendar),
		summary.WithLocation(config.Location),
		summary.WithClock(config.Clock),
		summary.WithLogger(config.Logger),
	)

	server := &Server{
		config:  config,
		worker:  processor,
		summary: summaries,
		router:  gin.Default(),
	}

	server.setupRoutes()
	return server, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Summary returns the read side used by the HTTP handlers.
func (s *Server) Summary() *summary.Service { return s.summary }

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	{
		api.POST("/ingest", s.handleIngest)
		api.GET("/series", s.handleSeries)
		api.GET("/export", s.handleExport)
		api.GET("/counters", s.handleCounters)
		api.GET("/counters/:category/history", s.handleHistory)
	}
}

func (s *Server) handleIngest(c *gin.Context) {
	var bulk domain.BulkDetections
	if err := c.ShouldBindJSON(&bulk); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(bulk.Data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	// detectors that omit created_at are stamped on arrival
	now := s.config.Clock()
	for i := range bulk.Data {
		if bulk.Data[i].OccurredAt.IsZero() {
			bulk.Data[i].OccurredAt = now
		}
	}

	data, err := json.Marshal(bulk)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize data"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.config.MessageQueue.Publish(ctx, data); err != nil {
		s.config.Logger.ErrorContext(ctx, "publish detections", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish data"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "data accepted for processing",
		"count":   len(bulk.Data),
	})
}

type seriesResponse struct {
	Granularity calendar.Granularity      `json:"granularity"`
	Offset      int                       `json:"offset"`
	Start       time.Time                 `json:"start"`
	End         time.Time                 `json:"end"`
	Description string                    `json:"description"`
	Labels      []string                  `json:"labels"`
	Series      map[domain.Category][]int `json:"series"`
	Events      int                       `json:"events"`
}

func newSeriesResponse(res aggregate.Result) seriesResponse {
	return seriesResponse{
		Granularity: res.Window.Granularity,
		Offset:      res.Window.Offset,
		Start:       res.Range.Start,
		End:         res.Range.End,
		Description: res.Range.Describe(),
		Labels:      res.Labels,
		Series:      res.Series,
		Events:      res.Events,
	}
}

// window reads ?granularity= (default daily) and ?offset= (default 0).
func (s *Server) window(c *gin.Context) (calendar.Window, error) {
	g, err := calendar.ParseGranularity(c.DefaultQuery("granularity", string(calendar.Daily)))
	if err != nil {
		return calendar.Window{}, err
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return calendar.Window{}, fmt.Errorf("%w: offset %q", calendar.ErrInvalidWindow, c.Query("offset"))
	}
	return s.summary.Window(g, offset), nil
}

func (s *Server) handleSeries(c *gin.Context) {
	w, err := s.window(c)
	if err == nil {
		err = w.Browsable()
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	res, err := s.summary.Series(ctx, w)
	if err != nil {
		s.fail(c, "series", err)
		return
	}

	c.JSON(http.StatusOK, newSeriesResponse(res))
}

// handleExport renders the window as CSV. Future windows are allowed here;
// they simply hold no events.
func (s *Server) handleExport(c *gin.Context) {
	w, err := s.window(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	f, err := s.summary.Export(ctx, w, c.Query("name"))
	if err != nil {
		s.fail(c, "export", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	c.Data(http.StatusOK, export.ContentType, []byte(f.Content))
}

func (s *Server) handleCounters(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	outcomes, err := s.summary.Counters(ctx)
	if err != nil {
		s.fail(c, "counters", err)
		return
	}

	counters := make([]domain.LiveCounter, 0, len(outcomes))
	for _, out := range outcomes {
		counters = append(counters, out.Counter)
	}
	c.JSON(http.StatusOK, gin.H{"counters": counters})
}

func (s *Server) handleHistory(c *gin.Context) {
	category, err := domain.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	history, err := s.summary.History(ctx, category)
	if err != nil {
		s.fail(c, "history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category, "history": history})
}

// fail maps service errors to status codes.
func (s *Server) fail(c *gin.Context, op string, err error) {
	var fetchErr *domain.FetchError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, calendar.ErrInvalidWindow):
		status = http.StatusBadRequest
	case errors.Is(err, export.ErrNothingToExport):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInconsistentRollover):
		status = http.StatusInternalServerError
	case errors.As(err, &fetchErr):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.config.Logger.ErrorContext(c.Request.Context(), op+" failed", slog.Any("error", err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Start serves HTTP and runs the ingest worker until ctx is done. The worker
// is stopped only after in-flight requests have finished, and Start returns
// only after it has stored everything already accepted, so Close can safely
// release the store afterwards.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := s.worker.Start(workerCtx, s.config.MessageQueue); err != nil {
			s.config.Logger.Error("worker stopped", slog.Any("error", err))
		}
	}()

	server := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.config.Logger.Warn("http shutdown", slog.Any("error", err))
		}
	}()

	s.config.Logger.Info("server starting", slog.String("port", s.config.Port))
	err := server.ListenAndServe()

	cancel()
	<-shutdownDone
	stopWorker()
	<-workerDone

	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Close() error {
	var errs []error
	if s.config.MessageQueue != nil {
		errs = append(errs, s.config.MessageQueue.Close())
	}
	if s.config.Store != nil {
		errs = append(errs, s.config.Store.Close())
	}
	return errors.Join(errs...)
}
