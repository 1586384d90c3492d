// Package hub fans session and message events out to WebSocket viewers
// grouped into rooms.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/soyeahso/dialogs/internal/logging"
)

// Hub tracks connected clients and their room memberships. Membership is
// per connection and not preserved across reconnects; clients re-join.
type Hub struct {
	log *logging.Logger
	seq atomic.Int64

	mu      sync.RWMutex
	clients map[string]*Client            // connID -> client
	rooms   map[string]map[string]*Client // room -> connID -> client
}

// New creates an empty hub.
func New(log *logging.Logger) *Hub {
	return &Hub{
		log:     log.Sub("hub"),
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Add registers a connected client.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ConnID] = c
	h.log.Info().Str("connId", c.ConnID).Msg("viewer connected")
}

// Remove unregisters a client and drops it from every room.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connID)
	for room, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Info().Str("connId", connID).Msg("viewer disconnected")
}

// Join adds a client to a room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.ConnID] = c
	h.log.Debug().Str("connId", c.ConnID).Str("room", room).Msg("joined room")
}

// Leave removes a client from a room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c.ConnID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	h.log.Debug().Str("connId", c.ConnID).Str("room", room).Msg("left room")
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of clients in a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Emit sends an event to every client in a room. Send failures are
// logged and never interrupt delivery to the remaining members. Each
// write is bounded by the client's write deadline; a viewer that stops
// reading fails its write and is dropped, so later emits are not stalled.
func (h *Hub) Emit(room, event string, payload any) {
	seq := h.seq.Add(1)

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if err := c.SendEvent(event, payload, seq); err != nil {
			h.log.Warn().Err(err).Str("connId", c.ConnID).Str("event", event).Msg("emit failed, dropping viewer")
			c.Close()
			h.Remove(c.ConnID)
		}
	}
}

// Serve runs the read loop for one client, handling join/leave actions
// until the connection drops. It removes the client on exit.
func (h *Hub) Serve(c *Client) {
	h.Add(c)
	defer func() {
		h.Remove(c.ConnID)
		c.Close()
	}()

	for {
		frame, err := c.ReadFrame()
		if err != nil {
			return
		}
		if frame.Type != FrameTypeAction || frame.Room == "" {
			continue
		}
		switch frame.Action {
		case ActionJoin:
			h.Join(c, frame.Room)
		case ActionLeave:
			h.Leave(c, frame.Room)
		}
	}
}

// CloseAll closes every connected client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
	h.rooms = make(map[string]map[string]*Client)
}
