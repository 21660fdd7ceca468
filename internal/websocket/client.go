package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
)

// Liveness and sizing for dashboard connections. Frames coming from the
// browser are small control messages, so the read limit stays tight.
const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	readLimit    = 512
)

// Client is one authenticated dashboard connection. A client belongs to
// exactly one organization and may watch one conversation at a time.
// Watching narrows the thread feed to that conversation; a client watching
// nothing is on the overview screen and receives every thread in its
// organization.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID         uuid.UUID
	organizationID uuid.UUID

	mu      sync.Mutex
	watched *uuid.UUID
}

// NewClient wraps an upgraded connection for the given user
func NewClient(hub *Hub, conn *websocket.Conn, userID, orgID uuid.UUID) *Client {
	return &Client{
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, 256),
		userID:         userID,
		organizationID: orgID,
	}
}

// watches reports whether the client should receive thread traffic for a
// conversation. Called from the hub loop while ReadPump mutates the watch,
// hence the lock.
func (c *Client) watches(conversationID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watched == nil || *c.watched == conversationID
}

// setWatched points the client's thread feed at one conversation, or back
// at the overview when id is nil.
func (c *Client) setWatched(id *uuid.UUID) {
	c.mu.Lock()
	c.watched = id
	c.mu.Unlock()
}

// ReadPump consumes control frames from the browser until the connection
// drops, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		if r := recover(); r != nil {
			c.hub.log.Error("Recovered from panic in ReadPump", "error", r, "user_id", c.userID)
		}
		c.hub.unregister <- c
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("WebSocket read error", "error", err, "user_id", c.userID)
			}
			return
		}
		c.handleFrame(frame)
	}
}

// WritePump drains the send queue to the connection and keeps the peer
// alive with periodic pings. The hub signals shutdown by closing the queue.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		if r := recover(); r != nil {
			c.hub.log.Error("Recovered from panic in WritePump", "error", r, "user_id", c.userID)
		}
		ticker.Stop()
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if c.conn == nil {
				return
			}
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.writeFrame(frame) {
				return
			}
			// Flush whatever queued up behind this frame
			for range len(c.send) {
				if !c.writeFrame(<-c.send) {
					return
				}
			}

		case <-ticker.C:
			if c.conn == nil {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeFrame writes one text frame, reporting whether the connection is
// still usable.
func (c *Client) writeFrame(frame []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, frame) == nil
}

// handleFrame dispatches one control frame from the browser. Unknown types
// are dropped, old dashboard builds may still send them.
func (c *Client) handleFrame(frame []byte) {
	var msg WSMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.hub.log.Error("Failed to unmarshal client frame", "error", err, "user_id", c.userID)
		return
	}

	switch msg.Type {
	case TypeSetConversation:
		c.handleSetConversation(msg.Payload)
	case TypePing:
		c.enqueue(WSMessage{Type: TypePong})
	}
}

// handleSetConversation moves the client's watch. An empty conversation ID
// means the user navigated back to the overview.
func (c *Client) handleSetConversation(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	var sel SetConversationPayload
	if err := json.Unmarshal(data, &sel); err != nil {
		return
	}

	if sel.ConversationID == "" {
		c.setWatched(nil)
		c.hub.log.Debug("Client back on overview", "user_id", c.userID)
		return
	}

	conversationID, err := uuid.Parse(sel.ConversationID)
	if err != nil {
		c.hub.log.Debug("Ignoring watch request with bad conversation ID",
			"user_id", c.userID,
			"conversation_id", sel.ConversationID)
		return
	}
	c.setWatched(&conversationID)
	c.hub.log.Debug("Client watching conversation",
		"user_id", c.userID,
		"conversation_id", conversationID)
}

// enqueue queues a frame for the client, dropping it if the queue is full
func (c *Client) enqueue(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
