// Package wsgateway fans per-tenant session event channels out to connected
// dashboard websocket clients. Grounded on a teacher-adjacent example's
// gorilla/websocket hub shape (register/unregister/broadcast over channels,
// one send buffer per client), generalized from a single global room to one
// room per tenant so a client only ever receives its own tenant's events.
package wsgateway

import "sync"

// clientSendBuffer bounds how many pending broadcasts a slow client can
// queue before it is dropped.
const clientSendBuffer = 256

// Client is one connected dashboard websocket.
type Client struct {
	tenantID string
	send     chan []byte
}

// Hub tracks connected clients per tenant and fans tenant-scoped broadcasts
// out to exactly that tenant's clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool // tenantID -> client set
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: map[string]map[*Client]bool{}}
}

// Register adds client to its tenant's room.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.clients[client.tenantID]
	if !ok {
		room = map[*Client]bool{}
		h.clients[client.tenantID] = room
	}
	room[client] = true
}

// Unregister removes client from its tenant's room and closes its send
// channel. Safe to call more than once for the same client.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.clients[client.tenantID]
	if !ok {
		return
	}
	if _, ok := room[client]; ok {
		delete(room, client)
		close(client.send)
	}
	if len(room) == 0 {
		delete(h.clients, client.tenantID)
	}
}

// Broadcast delivers message to every client registered under tenantID. A
// client whose send buffer is full is dropped rather than allowed to block
// the broadcast for every other client.
func (h *Hub) Broadcast(tenantID string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.clients[tenantID]
	for client := range room {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(room, client)
		}
	}
}

// ClientCount returns the number of connected clients for tenantID.
func (h *Hub) ClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tenantID])
}
