// Package queueapi exposes the scheduler over HTTP: admission,
// cancellation, and read views, in the same request/response idiom as
// the teacher's master API.
package queueapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/forgeci/buildqueue/internal/queue"
)

// Server adapts a *queue.Queue to HTTP handlers. It carries no state of
// its own beyond the queue and a task resolver for name-based lookups
// (schedule-by-name, since Task itself is opaque and can't cross the
// wire).
type Server struct {
	q                  *queue.Queue
	resolve            queue.TaskResolver
	logger             *slog.Logger
	feed               *Feed
	defaultQuietPeriod time.Duration
}

// NewServer returns a Server over q. resolve is used to turn a task
// name from a request body into a queue.Task; feed may be nil to
// disable the live websocket broadcast.
func NewServer(q *queue.Queue, resolve queue.TaskResolver, feed *Feed, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{q: q, resolve: resolve, feed: feed, logger: logger}
}

// SetDefaultQuietPeriod installs the quiet period applied to a Schedule
// request whose quiet period is omitted or zero (declarative policy,
// queueconfig.Policy.DefaultQuietPeriod); an explicit zero is not told
// apart from an omitted value.
func (s *Server) SetDefaultQuietPeriod(d time.Duration) {
	s.defaultQuietPeriod = d
}

// RegisterRoutes wires every endpoint under /api/v1/queue.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	v1 := e.Group("/api/v1/queue")

	v1.POST("/schedule", s.Schedule)
	v1.POST("/cancel", s.Cancel)
	v1.GET("/items", s.Items)
	v1.GET("/items/approximate", s.ApproximateItems)
	v1.GET("/items/:id", s.ItemByID)
	v1.POST("/items/:id/complete", s.Complete)
	v1.GET("/healthz", s.Healthz)

	if s.feed != nil {
		v1.GET("/live", s.feed.HandleWebsocket)
	}
}

// Healthz reports liveness for load balancers / orchestrators.
func (s *Server) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "buildqueue-scheduler"})
}
