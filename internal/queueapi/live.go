package queueapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// itemEvent is broadcast to every connected live feed subscriber
// whenever a schedule or cancel changes the item set. UI consumers use
// this alongside ApproximateItems for a responsive view without
// polling on every keystroke.
type itemEvent struct {
	Type string   `json:"type"`
	Item ItemView `json:"item,omitempty"`
	Task string   `json:"task,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Feed fans schedule/cancel notifications out to every connected
// websocket client.
type Feed struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan itemEvent
}

// NewFeed returns an empty Feed.
func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{logger: logger, clients: make(map[*websocket.Conn]chan itemEvent)}
}

// HandleWebsocket upgrades the connection and streams events until the
// client disconnects.
func (f *Feed) HandleWebsocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ch := make(chan itemEvent, 32)
	f.mu.Lock()
	f.clients[conn] = ch
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.clients, conn)
		f.mu.Unlock()
		conn.Close()
	}()

	for ev := range ch {
		payload, err := json.Marshal(ev)
		if err != nil {
			f.logger.Error("failed to marshal queue event", "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return nil
		}
	}
	return nil
}

// broadcast sends ev to every connected client's buffer, dropping it
// for any client whose buffer is full rather than blocking the caller.
func (f *Feed) broadcast(ev itemEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn, ch := range f.clients {
		select {
		case ch <- ev:
		default:
			f.logger.Warn("dropping queue event for slow live-feed client", "remote", conn.RemoteAddr())
		}
	}
}
