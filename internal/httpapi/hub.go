package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

const clientSendBuffer = 32

// Hub manages the set of live-feed subscribers and fans session events out
// to them. All writes to a connection go through that client's single
// writePump goroutine; the hub only ever touches the send channels.
type Hub struct {
	clients    map[*feedClient]struct{}
	mu         sync.RWMutex
	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan FeedEvent
	done       chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*feedClient]struct{}),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		broadcast:  make(chan FeedEvent, 16),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It must be run in a separate goroutine.
func (h *Hub) Run(ctx context.Context) {
	slog.Info("feed hub started")
	defer slog.Info("feed hub stopped")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			slog.Debug("feed client registered", "remoteAddr", c.conn.RemoteAddr())
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			slog.Debug("feed client unregistered", "remoteAddr", c.conn.RemoteAddr())
		case ev := <-h.broadcast:
			h.broadcastEvent(ev)
		}
	}
}

// Broadcast queues a session event for all subscribers. Non-blocking: if
// the hub is saturated the event is dropped, the next mutation supersedes it.
func (h *Hub) Broadcast(ev FeedEvent) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	default:
		slog.Debug("feed hub saturated, dropping event", "type", ev.Type)
	}
}

// ClientCount reports the number of registered subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcastEvent enqueues the event onto every client's send channel. A
// client that cannot keep up has the event dropped; its writePump stays the
// only goroutine writing to the connection.
func (h *Hub) broadcastEvent(ev FeedEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to encode feed event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slog.Debug("slow feed client, dropping event", "remoteAddr", c.conn.RemoteAddr())
		}
	}
}

// closeAllClients shuts every writePump down during hub shutdown; closing
// the send channel makes the pump exit and close its connection.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
