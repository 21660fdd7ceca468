package websocket

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/zerodha/logf"
)

// Message types exchanged with dashboard clients
const (
	TypeNewMessage          = "new_message"
	TypeConversationUpdated = "conversation_updated"
	TypeSetConversation     = "set_conversation"
	TypePing                = "ping"
	TypePong                = "pong"
)

// WSMessage is the envelope for all WebSocket frames
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// SetConversationPayload selects the conversation a client is viewing
type SetConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

// broadcast couples a serialized message with its target organization. A
// non-nil conversationID marks thread traffic, which only reaches clients
// watching that conversation (or watching nothing).
type broadcast struct {
	organizationID uuid.UUID
	conversationID *uuid.UUID
	data           []byte
}

// Hub maintains the set of connected dashboard clients and fans out
// organization-scoped events to them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcasts chan broadcast
	done       chan struct{}
	closeOnce  sync.Once
	log        logf.Logger
}

// NewHub creates a new Hub instance
func NewHub(log logf.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcasts: make(chan broadcast, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes register/unregister/broadcast events until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug("WebSocket client connected", "user_id", client.userID, "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug("WebSocket client disconnected", "user_id", client.userID, "clients", len(h.clients))
			}

		case b := <-h.broadcasts:
			for client := range h.clients {
				if client.organizationID != b.organizationID {
					continue
				}
				if b.conversationID != nil && !client.watches(*b.conversationID) {
					continue
				}
				select {
				case client.send <- b.data:
				default:
					// Slow client, drop it
					delete(h.clients, client)
					close(client.send)
				}
			}

		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients
func (h *Hub) Stop() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// BroadcastToOrganization sends a message to every client of an organization
func (h *Hub) BroadcastToOrganization(organizationID uuid.UUID, msg WSMessage) {
	h.enqueue(broadcast{organizationID: organizationID}, msg)
}

// BroadcastToConversation sends thread traffic to the organization's clients
// watching that conversation, plus those on the overview screen.
func (h *Hub) BroadcastToConversation(organizationID, conversationID uuid.UUID, msg WSMessage) {
	h.enqueue(broadcast{organizationID: organizationID, conversationID: &conversationID}, msg)
}

func (h *Hub) enqueue(b broadcast, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("Failed to marshal WS message", "error", err, "type", msg.Type)
		return
	}
	b.data = data

	select {
	case h.broadcasts <- b:
	default:
		h.log.Warn("WS broadcast queue full, dropping message", "type", msg.Type)
	}
}
