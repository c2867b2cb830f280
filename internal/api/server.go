// Package api serves the administrative HTTP surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/muster/internal/event"
)

// Engine is the lifecycle surface the API drives.
type Engine interface {
	TryStart(ctx context.Context, id int64, force bool) error
	Skip(ctx context.Context, id int64) (bool, error)
	RecordAttendance(ctx context.Context, id int64, ids []string) error
	UpdateParticipantCount(ctx context.Context, id int64, count int) error
	CreateTestEvent(ctx context.Context) (*event.Record, error)
	CheckManualStart(r *event.Record, admin bool) error
	CheckSkip(r *event.Record) error
}

// Store is the read side of the event store.
type Store interface {
	Get(ctx context.Context, id int64) (*event.Record, error)
	All(ctx context.Context) ([]*event.Record, error)
}

// Settings persists a runtime setting and applies it to the running
// service.
type Settings interface {
	SetSetting(ctx context.Context, key, value string) error
}

// Server routes admin requests.
type Server struct {
	engine   Engine
	store    Store
	settings Settings
	logger   *slog.Logger
	router   *gin.Engine
}

// New builds the router.
func New(engine Engine, store Store, settings Settings, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, store: store, settings: settings, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	r.GET("/events", s.listEvents)
	r.POST("/events/test", s.createTestEvent)
	r.GET("/events/:id", s.getEvent)
	r.POST("/events/:id/start", s.startEvent)
	r.POST("/events/:id/skip", s.skipEvent)
	r.PUT("/events/:id/attendance", s.setAttendance)
	r.PUT("/events/:id/participants", s.setParticipants)
	r.PUT("/settings/:key", s.putSetting)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("admin api listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin api: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("admin request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
