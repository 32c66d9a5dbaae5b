package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// RouteEventsWSHandler streams route events over a WebSocket as an
// alternative to the SSE endpoint for clients behind buffering proxies.
func (s *Server) RouteEventsWSHandler(w http.ResponseWriter, r *http.Request, routeID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ch := s.Broker.Subscribe(routeID)
	defer s.Broker.Unsubscribe(routeID, ch)

	// drain client frames so pongs and close messages are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	_ = conn.WriteJSON(wsEvent{Type: "connected", Data: map[string]any{"routeId": routeID}})
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if err := conn.WriteJSON(wsEvent{Type: evt.Type, Data: evt.Data}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
