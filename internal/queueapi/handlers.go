package queueapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/forgeci/buildqueue/internal/queue"
)

// ScheduleRequest requests admission of a previously-registered task by
// name (the task itself is opaque and can't cross the wire).
type ScheduleRequest struct {
	TaskName          string `json:"taskName" validate:"required"`
	QuietPeriodSeconds int   `json:"quietPeriodSeconds"`
}

// CancelRequest requests cancellation of a previously-registered task
// by name.
type CancelRequest struct {
	TaskName string `json:"taskName" validate:"required"`
}

// ItemView is the wire representation of a queue.Item.
type ItemView struct {
	ID          uint64    `json:"id"`
	Task        string    `json:"task"`
	Stage       string    `json:"stage"`
	Label       string    `json:"label,omitempty"`
	QueuedSince time.Time `json:"queuedSince"`
}

func toItemView(it queue.Item) ItemView {
	return ItemView{
		ID:          it.ID(),
		Task:        it.Task().FullDisplayName(),
		Stage:       it.Stage().String(),
		Label:       it.Label(),
		QueuedSince: it.QueuedSince(),
	}
}

// Schedule handles POST /api/v1/queue/schedule.
func (s *Server) Schedule(c echo.Context) error {
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.TaskName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "taskName is required"})
	}

	task, ok := s.resolve(req.TaskName)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown task"})
	}

	quietPeriod := time.Duration(req.QuietPeriodSeconds) * time.Second
	if req.QuietPeriodSeconds == 0 {
		quietPeriod = s.defaultQuietPeriod
	}
	item := s.q.Schedule(task, quietPeriod)
	if item == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "vetoed_or_coalesced"})
	}

	if s.feed != nil {
		s.feed.broadcast(itemEvent{Type: "scheduled", Item: toItemView(item)})
	}
	return c.JSON(http.StatusCreated, toItemView(item))
}

// Cancel handles POST /api/v1/queue/cancel.
func (s *Server) Cancel(c echo.Context) error {
	var req CancelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	task, ok := s.resolve(req.TaskName)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown task"})
	}

	cancelled := s.q.Cancel(task)
	if s.feed != nil && cancelled {
		s.feed.broadcast(itemEvent{Type: "cancelled", Task: req.TaskName})
	}
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// Items handles GET /api/v1/queue/items.
func (s *Server) Items(c echo.Context) error {
	items := s.q.Items()
	views := make([]ItemView, len(items))
	for i, it := range items {
		views[i] = toItemView(it)
	}
	return c.JSON(http.StatusOK, views)
}

// ApproximateItems handles GET /api/v1/queue/items/approximate.
func (s *Server) ApproximateItems(c echo.Context) error {
	items := s.q.ApproximateItems()
	views := make([]ItemView, len(items))
	for i, it := range items {
		views[i] = toItemView(it)
	}
	return c.JSON(http.StatusOK, views)
}

// Complete handles POST /api/v1/queue/items/:id/complete. An executor
// (or whatever fronts it once a build actually finishes) calls this to
// release any resources the item reserved, so conflicting tasks queued
// behind it can be dispatched.
func (s *Server) Complete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	released := s.q.Complete(id)
	return c.JSON(http.StatusOK, map[string]bool{"released": released})
}

// ItemByID handles GET /api/v1/queue/items/:id.
func (s *Server) ItemByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	item, ok := s.q.ItemByID(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "item not found"})
	}
	return c.JSON(http.StatusOK, toItemView(item))
}
