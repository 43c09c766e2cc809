// Package websocket pushes change events to connected dashboards so every
// family device stays in sync without polling.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Event is a real-time notification broadcast to all connected clients.
type Event struct {
	Event   string         `json:"event"`
	Entity  string         `json:"entity,omitempty"`
	ID      int64          `json:"id,omitempty"`
	KidID   int64          `json:"kid_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// EntityEvent describes a create/update/delete on a named entity.
func EntityEvent(entity, action string, id int64) Event {
	return Event{
		Event:  fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		ID:     id,
	}
}

// BalanceEvent announces a kid's new point balance after a ledger change.
func BalanceEvent(kidID int64, balance int) Event {
	return Event{
		Event:   "balance_changed",
		KidID:   kidID,
		Payload: map[string]any{"balance": balance},
	}
}

// QueueEvent announces the new size of the parent approval queue.
func QueueEvent(pending int) Event {
	return Event{
		Event:   "queue_changed",
		Payload: map[string]any{"pending": pending},
	}
}

// Hub tracks the active connections and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every connected client. Clients whose send
// buffer is full are skipped rather than blocking the caller.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "event", ev.Event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("dropping event for slow client", "event", ev.Event)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
