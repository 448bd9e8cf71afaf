package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event is a message pushed to the admin's browser.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// sessionEvent routes an event to one admin session's room.
type sessionEvent struct {
	SessionID uuid.UUID
	Event     Event
}

// Hub keeps the websocket clients of every admin session and fans session
// events out to them. One admin may have several tabs open.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *sessionEvent
	drop       chan uuid.UUID

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *sessionEvent, 256),
		drop:       make(chan uuid.UUID),
	}
}

// Run is the hub's main loop; it returns when ctx is done.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.sessionID] == nil {
				h.rooms[client.sessionID] = make(map[*Client]bool)
			}
			h.rooms[client.sessionID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case sessionID := <-h.drop:
			h.mu.Lock()
			for client := range h.rooms[sessionID] {
				h.removeLocked(client)
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[ev.SessionID] {
				select {
				case client.send <- message:
				default:
					// Slow reader; disconnect it.
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.sessionID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.sessionID)
	}
}

// BroadcastToSession queues event for every client of sessionID. Events are
// dropped when the queue is full rather than blocking the caller.
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &sessionEvent{SessionID: sessionID, Event: event}:
	default:
		log.Printf("WARNING: websocket queue full, dropped %s for session %s", event.Type, sessionID)
	}
}

// Publish marshals payload and broadcasts it. It satisfies service.Notifier.
func (h *Hub) Publish(sessionID uuid.UUID, eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.BroadcastToSession(sessionID, Event{Type: eventType, Payload: raw})
}

// DropSession disconnects every client of sessionID, e.g. on logout.
func (h *Hub) DropSession(sessionID uuid.UUID) {
	h.drop <- sessionID
}
