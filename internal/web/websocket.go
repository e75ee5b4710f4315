package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roasbeef/marquee/internal/browse"
)

// WebSocket message types for real-time updates.
const (
	WSMsgTypeSnapshot  = "snapshot"
	WSMsgTypePong      = "pong"
	WSMsgTypeConnected = "connected"
	WSMsgTypeError     = "error"
)

// WSMessage represents a WebSocket message sent to clients.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub maintains the set of active WebSocket clients and broadcasts stream
// snapshots to them.
type Hub struct {
	// Registered clients.
	clients map[*WSClient]struct{}

	// Register requests from clients.
	register chan *WSClient

	// Unregister requests from clients.
	unregister chan *WSClient

	// Broadcast messages for all clients.
	broadcastAll chan *WSMessage

	// Mutex for thread-safe access.
	mu sync.RWMutex

	// Context for shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:      make(map[*WSClient]struct{}),
		register:     make(chan *WSClient),
		unregister:   make(chan *WSClient),
		broadcastAll: make(chan *WSMessage, 256),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			// Clean up all clients on shutdown.
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			log.Debugf("WebSocket client registered (total=%d)",
				h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()
			log.Debugf("WebSocket client unregistered (total=%d)",
				h.ClientCount())

		case msg := <-h.broadcastAll:
			h.mu.RLock()
			for client := range h.clients {
				client.Send(msg)
			}
			h.mu.RUnlock()
		}
	}
}

// Stop shuts down the hub.
func (h *Hub) Stop() {
	h.cancel()
}

// BroadcastToAll sends a message to all connected clients.
func (h *Hub) BroadcastToAll(msg *WSMessage) {
	select {
	case h.broadcastAll <- msg:
	default:
		log.Warnf("WebSocket broadcast buffer full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// upgrader specifies parameters for upgrading an HTTP connection to
// WebSocket.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Check origin to prevent CSRF attacks.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow if no origin header (same-origin requests).
		if origin == "" {
			return true
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// handleWebSocket handles WebSocket connections at /ws.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "WebSocket not available",
			http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewWSClient(s.hub, conn)

	s.hub.register <- client

	client.Send(&WSMessage{
		Type: WSMsgTypeConnected,
		Payload: map[string]any{
			"time": time.Now().UTC().Format(time.RFC3339),
		},
	})

	// Seed the new client with the current stream view so it does not
	// have to wait for the next change.
	if snap, err := s.askStream(
		r.Context(), browse.SnapshotRequest{},
	); err == nil {
		client.Send(&WSMessage{
			Type:    WSMsgTypeSnapshot,
			Payload: snapshotView(snap),
		})
	}

	go client.writePump()
	go client.readPump()
}

// handleIncomingMessage processes messages received from WebSocket clients.
func (h *Hub) handleIncomingMessage(client *WSClient, messageType int,
	data []byte) {

	if messageType != websocket.TextMessage {
		return
	}

	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		client.Send(&WSMessage{
			Type: WSMsgTypeError,
			Payload: map[string]any{
				"message": "Invalid message format",
			},
		})
		return
	}

	switch msg.Type {
	case "ping":
		client.Send(&WSMessage{
			Type: WSMsgTypePong,
			Payload: map[string]any{
				"time": time.Now().UTC().Format(time.RFC3339),
			},
		})

	default:
		client.Send(&WSMessage{
			Type: WSMsgTypeError,
			Payload: map[string]any{
				"message": "Unknown message type: " + msg.Type,
			},
		})
	}
}
