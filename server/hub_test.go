package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(hub)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("Websocket dial failed: %v", err)
	}
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func clientCount(hub *Hub) int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for clientCount(hub) != want {
		if time.Now().After(deadline) {
			t.Fatalf("Hub never reached %d clients, have %d", want, clientCount(hub))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastDeliversEvent(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	conn, cleanup := dialHub(t, hub)
	defer cleanup()
	waitForClients(t, hub, 1)

	hub.Broadcast(map[string]string{"event": "note_saved"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]string
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if event["event"] != "note_saved" {
		t.Errorf("Expected note_saved event, got %+v", event)
	}
}

func TestBroadcastDropsStalledClient(t *testing.T) {
	saved := writeTimeout
	writeTimeout = 50 * time.Millisecond
	defer func() { writeTimeout = saved }()

	hub := NewHub()
	defer hub.Close()

	// The client never reads, so repeated large broadcasts fill the
	// connection buffers until a write times out.
	_, cleanup := dialHub(t, hub)
	defer cleanup()
	waitForClients(t, hub, 1)

	payload := map[string]string{"data": strings.Repeat("x", 1<<20)}
	for i := 0; i < 64 && clientCount(hub) > 0; i++ {
		hub.Broadcast(payload)
	}
	if n := clientCount(hub); n != 0 {
		t.Errorf("Expected stalled client to be dropped, %d still connected", n)
	}
}
