package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sagarjadhav/tablemate/internal/config"
	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/sagarjadhav/tablemate/internal/websocket"
	"github.com/sagarjadhav/tablemate/pkg/whatsapp"
	"gorm.io/gorm"
)

// keyedMutex serializes work per conversation key. Entries are refcounted
// and removed once the last holder releases, so the table stays bounded by
// in-flight deliveries.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for a key and returns its release func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry := k.locks[key]
	if entry == nil {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// normalizePhone strips the leading + so lookups are stable regardless of
// how the provider formats the sender address.
func normalizePhone(phone string) string {
	return strings.TrimPrefix(phone, "+")
}

// getOrCreateConversation resolves the conversation for a (chatbot, phone)
// pair, creating it on first contact, and records the inbound message.
func (a *App) getOrCreateConversation(ctx context.Context, channel *models.Channel, from, messageID, userText string) (*models.Conversation, error) {
	phone := normalizePhone(from)

	var conv models.Conversation
	err := a.DB.Where("chatbot_id = ? AND phone_number = ?", channel.ChatbotID, phone).First(&conv).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		conv = models.Conversation{
			OrganizationID: channel.OrganizationID,
			ChatbotID:      channel.ChatbotID,
			ChannelID:      channel.ID,
			PhoneNumber:    phone,
			Metadata:       models.JSONB{},
		}
		if err := a.DB.Create(&conv).Error; err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		a.Log.Info("Conversation created", "conversation_id", conv.ID, "phone", phone)
	}

	now := time.Now()
	msg := models.ConversationMessage{
		OrganizationID:    conv.OrganizationID,
		ConversationID:    conv.ID,
		WhatsAppMessageID: messageID,
		Role:              "user",
		MessageType:       "interactive",
		Content:           userText,
		Status:            "sent",
	}
	if err := a.DB.Create(&msg).Error; err != nil {
		a.Log.Error("Failed to save incoming message", "error", err, "conversation_id", conv.ID)
	}

	conv.LastMessageAt = &now
	if err := a.DB.Model(&models.Conversation{}).Where("id = ?", conv.ID).Update("last_message_at", now).Error; err != nil {
		a.Log.Error("Failed to update conversation timestamp", "error", err, "conversation_id", conv.ID)
	}

	a.broadcastMessage(&conv, &msg)
	a.DispatchWebhook(conv.OrganizationID, EventMessageIncoming, ConversationEventData{
		ConversationID: conv.ID.String(),
		Phone:          conv.PhoneNumber,
		Role:           msg.Role,
		Content:        msg.Content,
	})

	return &conv, nil
}

// saveConversationMeta persists metadata mutated in memory during a turn
func (a *App) saveConversationMeta(conv *models.Conversation) error {
	return a.DB.Model(&models.Conversation{}).Where("id = ?", conv.ID).Update("metadata", conv.Metadata).Error
}

// getSessionHistory returns the last messages of a conversation in
// chronological order.
func (a *App) getSessionHistory(conv *models.Conversation, limit int) []models.ConversationMessage {
	if limit <= 0 {
		limit = 10
	}

	var messages []models.ConversationMessage
	if err := a.DB.Where("conversation_id = ?", conv.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		a.Log.Error("Failed to load conversation history", "error", err, "conversation_id", conv.ID)
		return nil
	}

	// Reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages
}

// saveOutboundMessage records a sent (or failed) assistant message and fans
// it out to dashboard clients and outbound webhooks.
func (a *App) saveOutboundMessage(conv *models.Conversation, messageType, content, mediaURL, waMessageID string, sendErr error) {
	msg := models.ConversationMessage{
		OrganizationID:    conv.OrganizationID,
		ConversationID:    conv.ID,
		WhatsAppMessageID: waMessageID,
		Role:              "assistant",
		MessageType:       messageType,
		Content:           content,
		MediaURL:          mediaURL,
		Status:            "sent",
	}
	if sendErr != nil {
		msg.Status = "failed"
		msg.ErrorMessage = sendErr.Error()
	}

	if err := a.DB.Create(&msg).Error; err != nil {
		a.Log.Error("Failed to save outbound message", "error", err, "conversation_id", conv.ID)
		return
	}

	if sendErr == nil {
		a.broadcastMessage(conv, &msg)
		a.DispatchWebhook(conv.OrganizationID, EventMessageOutgoing, ConversationEventData{
			ConversationID: conv.ID.String(),
			Phone:          conv.PhoneNumber,
			Role:           msg.Role,
			Content:        msg.Content,
		})
	}
}

// broadcastMessage pushes a message to the dashboard clients on its thread
// and nudges the organization's conversation list.
func (a *App) broadcastMessage(conv *models.Conversation, msg *models.ConversationMessage) {
	if a.WSHub == nil {
		return
	}
	a.WSHub.BroadcastToConversation(conv.OrganizationID, conv.ID, websocket.WSMessage{
		Type:    websocket.TypeNewMessage,
		Payload: msg,
	})
	a.WSHub.BroadcastToOrganization(conv.OrganizationID, websocket.WSMessage{
		Type:    websocket.TypeConversationUpdated,
		Payload: conv,
	})
}

// sendAndSaveTextMessage sends a text message and records it
func (a *App) sendAndSaveTextMessage(ctx context.Context, channel *models.Channel, conv *models.Conversation, text string) (string, error) {
	msgID, err := a.WhatsApp.SendTextMessage(ctx, channelAccount(channel), conv.PhoneNumber, text)
	a.saveOutboundMessage(conv, "text", text, "", msgID, err)
	return msgID, err
}

// sendAndSaveImageMessage sends an image by URL and records it
func (a *App) sendAndSaveImageMessage(ctx context.Context, channel *models.Channel, conv *models.Conversation, imageURL, caption string) (string, error) {
	msgID, err := a.WhatsApp.SendImageByLink(ctx, channelAccount(channel), conv.PhoneNumber, imageURL, caption)
	a.saveOutboundMessage(conv, "image", caption, imageURL, msgID, err)
	return msgID, err
}

// sendAndSaveInteractiveButtons sends reply buttons and records them
func (a *App) sendAndSaveInteractiveButtons(ctx context.Context, channel *models.Channel, conv *models.Conversation, bodyText string, buttons []whatsapp.Button) (string, error) {
	msgID, err := a.WhatsApp.SendInteractiveButtons(ctx, channelAccount(channel), conv.PhoneNumber, bodyText, buttons)
	a.saveOutboundMessage(conv, "interactive", bodyText, "", msgID, err)
	return msgID, err
}

// sendAndSaveInteractiveList sends a list message and records it
func (a *App) sendAndSaveInteractiveList(ctx context.Context, channel *models.Channel, conv *models.Conversation, bodyText, footerText, buttonLabel string, sections []whatsapp.ListSection) (string, error) {
	msgID, err := a.WhatsApp.SendInteractiveList(ctx, channelAccount(channel), conv.PhoneNumber, bodyText, footerText, buttonLabel, sections)
	a.saveOutboundMessage(conv, "interactive", bodyText, "", msgID, err)
	return msgID, err
}

// sendPipelineError tells the customer something went wrong, according to
// the configured visibility policy. Internal detail never leaks unless the
// operator opted into it.
func (a *App) sendPipelineError(ctx context.Context, channel *models.Channel, conv *models.Conversation, cause error) {
	var text string
	switch a.Config.Chatbot.ErrorVisibility {
	case config.ErrorVisibilitySilent:
		return
	case config.ErrorVisibilityDetailed:
		text = fmt.Sprintf("Sorry, something went wrong on our end. Please try again. (%v)", cause)
	default:
		text = "Sorry, something went wrong on our end. Please try again."
	}

	if _, err := a.sendAndSaveTextMessage(ctx, channel, conv, text); err != nil {
		a.Log.Error("Failed to send error message", "error", err, "conversation_id", conv.ID)
	}
}
