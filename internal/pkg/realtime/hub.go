// Package realtime delivers group change events to connected websocket
// clients so they can reload their listings, mirroring a hosted
// change-feed subscription.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types published on the group change feed.
const (
	EventGroupCreated = "group.created"
	EventGroupUpdated = "group.updated"
	EventMemberJoined = "member.joined"
	EventMemberLeft   = "member.left"
)

// Event represents a single change on the groups collection.
type Event struct {
	// Type of event: group.created, group.updated, member.joined, member.left
	Type string `json:"type"`

	// Group the event refers to
	GroupID int64 `json:"groupId"`

	// User who triggered the change
	ActorID int64 `json:"actorId,omitempty"`

	// Timestamp when the event was published
	Timestamp time.Time `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts change events to
// all of them. There is one feed; every subscriber sees every group event.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Channel for events to broadcast
	broadcast chan *Event

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for concurrent access to clients map
	mu sync.RWMutex

	// Logger for Hub operations
	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan *Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run starts the hub, handling client registrations and broadcasts.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Publish enqueues an event for broadcast. It never blocks the caller;
// if the hub is saturated the event is dropped and logged.
func (h *Hub) Publish(eventType string, groupID, actorID int64) {
	event := &Event{
		Type:      eventType,
		GroupID:   groupID,
		ActorID:   actorID,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().
			Str("type", eventType).
			Int64("groupID", groupID).
			Msg("Change feed saturated, event dropped")
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// registerClient registers a new client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	h.logger.Info().
		Int64("userID", client.userID).
		Str("addr", client.conn.RemoteAddr().String()).
		Msg("Change feed client registered")
}

// unregisterClient unregisters a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)

		h.logger.Info().
			Int64("userID", client.userID).
			Str("addr", client.conn.RemoteAddr().String()).
			Msg("Change feed client unregistered")
	}
}

// broadcastEvent broadcasts an event to all connected clients
func (h *Hub) broadcastEvent(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		h.logger.Debug().
			Str("type", event.Type).
			Int64("groupID", event.GroupID).
			Msg("No clients connected for broadcast")
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("type", event.Type).
			Msg("Failed to marshal event for broadcast")
		return
	}

	for client := range h.clients {
		select {
		case client.send <- data:
			// Event queued for this client
		default:
			// Client's send buffer is full, drop the event for them.
			// The write pump will close the connection if they stay slow.
			h.logger.Warn().
				Int64("userID", client.userID).
				Msg("Dropped event for slow change feed client")
		}
	}

	h.logger.Debug().
		Str("type", event.Type).
		Int64("groupID", event.GroupID).
		Int("clientCount", len(h.clients)).
		Msg("Event broadcasted")
}
