package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/stereorig/internal/grabber"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StatsHandler broadcasts acquisition stats via WebSocket.
type StatsHandler struct {
	stats   func() grabber.Stats
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewStatsHandler creates a new StatsHandler reading from the given
// stats source.
func NewStatsHandler(stats func() grabber.Stats) *StatsHandler {
	h := &StatsHandler{
		stats:   stats,
		clients: make(map[*websocket.Conn]bool),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends stats snapshots to all connected clients.
func (h *StatsHandler) broadcast() {
	ticker := time.NewTicker(500 * time.Millisecond) // 2 Hz
	defer ticker.Stop()

	for range ticker.C {
		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}
		h.mu.RUnlock()

		snapshot := h.stats()

		h.mu.RLock()
		for conn := range h.clients {
			conn.WriteJSON(snapshot)
		}
		h.mu.RUnlock()
	}
}
