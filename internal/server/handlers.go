// Package server exposes the HTTP handlers: the WebSocket upgrade endpoint
// and the health check.
package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/atlaschat/presence/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler returns the handler for WebSocket upgrade requests. It
// upgrades the connection, mints a Client with a fresh connection id, and
// registers it with the hub; the hub launches the pump goroutines.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		hub.register <- client
	}
}

// HealthHandler responds with a plain text message indicating the server is
// running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "server is running")
}
