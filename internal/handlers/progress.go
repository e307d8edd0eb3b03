package handlers

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"

	"github.com/altlab/recval/internal/types"
)

// ProgressHub fans extraction progress events out to websocket clients.
type ProgressHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewProgressHub creates an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{clients: make(map[*websocket.Conn]struct{})}
}

// Publish sends the event to every connected client. Clients that fail
// to receive are dropped.
func (h *ProgressHub) Publish(ev types.ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("progress event marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("dropping progress client: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Handle keeps a websocket connection registered until it closes.
func (h *ProgressHub) Handle(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	log.Printf("progress client connected")
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.Close()
	}()

	// Drain control frames; the feed is one-way.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
