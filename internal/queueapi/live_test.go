package queueapi

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func newLiveTestServer(t *testing.T) (*Feed, *httptest.Server) {
	t.Helper()
	feed := NewFeed(nil)
	e := echo.New()
	e.GET("/live", feed.HandleWebsocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return feed, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial live feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestFeedBroadcastsToConnectedClient(t *testing.T) {
	feed, srv := newLiveTestServer(t)
	conn := dial(t, srv)

	// Give HandleWebsocket a moment to register the client before
	// broadcasting, since the upgrade happens in its own goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for {
		feed.mu.Lock()
		n := len(feed.clients)
		feed.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	feed.broadcast(itemEvent{Type: "scheduled", Item: ItemView{ID: 1, Task: "build-a"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected a broadcast message, got error: %v", err)
	}

	var ev itemEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if ev.Type != "scheduled" || ev.Item.Task != "build-a" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestFeedBroadcastDropsForFullBuffer(t *testing.T) {
	feed, srv := newLiveTestServer(t)
	dial(t, srv) // never read from this connection, so its buffer fills up

	deadline := time.Now().Add(2 * time.Second)
	for {
		feed.mu.Lock()
		n := len(feed.clients)
		feed.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The client's buffer holds 32 events; sending well past that must
	// not block the broadcaster even though nobody is draining it.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			feed.broadcast(itemEvent{Type: "flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected broadcast to drop events for a full buffer instead of blocking")
	}
}
