package handlers

import (
	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/sagarjadhav/tablemate/internal/websocket"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
)

// AutoReplyRequest toggles automatic replies for a conversation
type AutoReplyRequest struct {
	AutoReplyDisabled *bool `json:"auto_reply_disabled"`
}

// ListConversations returns conversations for the organization, most recent first
func (a *App) ListConversations(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var conversations []models.Conversation
	if err := a.DB.Where("organization_id = ?", orgID).
		Order("last_message_at DESC NULLS LAST").
		Limit(200).
		Find(&conversations).Error; err != nil {
		a.Log.Error("Failed to list conversations", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to list conversations", nil, "")
	}

	return r.SendEnvelope(map[string]interface{}{
		"conversations": conversations,
	})
}

// GetConversation returns a conversation with its message history
func (a *App) GetConversation(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid conversation ID", nil, "")
	}

	var conv models.Conversation
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&conv).Error; err != nil {
		return sendNotFound(r, "Conversation")
	}

	var messages []models.ConversationMessage
	if err := a.DB.Where("conversation_id = ?", conv.ID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		a.Log.Error("Failed to load conversation messages", "error", err, "conversation_id", conv.ID)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to load messages", nil, "")
	}
	conv.Messages = messages

	return r.SendEnvelope(conv)
}

// SetConversationAutoReply enables or disables automatic replies so an
// operator can take over a conversation from the dashboard.
func (a *App) SetConversationAutoReply(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid conversation ID", nil, "")
	}

	var conv models.Conversation
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&conv).Error; err != nil {
		return sendNotFound(r, "Conversation")
	}

	var req AutoReplyRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}
	if req.AutoReplyDisabled == nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "auto_reply_disabled is required", nil, "")
	}

	conv.AutoReplyDisabled = *req.AutoReplyDisabled
	if err := a.DB.Model(&conv).Update("auto_reply_disabled", conv.AutoReplyDisabled).Error; err != nil {
		a.Log.Error("Failed to update conversation", "error", err, "conversation_id", conv.ID)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to update conversation", nil, "")
	}

	if a.WSHub != nil {
		a.WSHub.BroadcastToOrganization(conv.OrganizationID, websocket.WSMessage{
			Type:    websocket.TypeConversationUpdated,
			Payload: conv,
		})
	}

	return r.SendEnvelope(conv)
}
