package handlers

import (
	"context"
	"fmt"

	"github.com/sagarjadhav/tablemate/internal/models"
)

// IncomingMessage is the message object of the Cloud API webhook payload,
// reduced to the fields the pipeline reads.
type IncomingMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

// HandleInteractiveMessage normalizes a webhook message into a button reply
// and runs the pipeline. Button and list replies are the same thing to the
// rest of the system. Unsupported payloads fail here before any send.
func (a *App) HandleInteractiveMessage(ctx context.Context, phoneID string, msg IncomingMessage, profileName string) Result {
	if msg.Type != "interactive" || msg.Interactive == nil {
		return Result{Success: false, Message: fmt.Sprintf("unsupported message type: %q", msg.Type)}
	}

	var buttonID, buttonTitle string
	switch msg.Interactive.Type {
	case "button_reply":
		if msg.Interactive.ButtonReply == nil {
			return Result{Success: false, Message: "missing button_reply payload"}
		}
		buttonID = msg.Interactive.ButtonReply.ID
		buttonTitle = msg.Interactive.ButtonReply.Title
	case "list_reply":
		if msg.Interactive.ListReply == nil {
			return Result{Success: false, Message: "missing list_reply payload"}
		}
		buttonID = msg.Interactive.ListReply.ID
		buttonTitle = msg.Interactive.ListReply.Title
	default:
		return Result{Success: false, Message: fmt.Sprintf("unsupported interactive type: %q", msg.Interactive.Type)}
	}

	return a.HandleButtonReply(ctx, phoneID, msg.From, msg.ID, buttonID, buttonTitle, profileName)
}

// HandleButtonReply is the pipeline entry point for a tapped button. It
// never panics out to the transport and always returns a Result.
func (a *App) HandleButtonReply(ctx context.Context, phoneID, from, messageID, buttonID, buttonTitle, profileName string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			a.Log.Error("Recovered from panic in button reply pipeline", "error", r, "button_id", buttonID)
			res = Result{Success: false, Message: fmt.Sprintf("Error: %v", r)}
		}
	}()

	a.Log.Info("Processing button reply",
		"phone_id", phoneID,
		"from", from,
		"button_id", buttonID,
	)

	channel, err := a.getChannelByPhoneID(ctx, phoneID)
	if err != nil {
		a.Log.Error("Channel lookup failed", "error", err, "phone_id", phoneID)
		return Result{Success: false, Message: "channel lookup failed"}
	}
	if channel == nil {
		// Unregistered number. Config problem on the operator side, the
		// customer gets nothing.
		a.Log.Warn("No channel registered for phone ID", "phone_id", phoneID)
		return Result{Success: false, Message: "no channel registered for phone ID"}
	}

	// One turn at a time per conversation, so rapid taps don't interleave
	// their message sequences.
	unlock := a.convLocks.Lock(phoneID + ":" + normalizePhone(from))
	defer unlock()

	a.sleep(ctx, a.replyDelay(channel))

	if err := a.WhatsApp.MarkMessageRead(ctx, channelAccount(channel), messageID); err != nil {
		a.Log.Debug("Failed to mark message read", "error", err, "message_id", messageID)
	}

	conv, err := a.getOrCreateConversation(ctx, channel, from, messageID, buttonTitle)
	if err != nil {
		a.Log.Error("Conversation lookup failed", "error", err, "from", from)
		return Result{Success: false, Message: "conversation lookup failed"}
	}

	if profileName != "" && conv.ProfileName != profileName {
		conv.ProfileName = profileName
		if err := a.DB.Model(&models.Conversation{}).Where("id = ?", conv.ID).Update("profile_name", profileName).Error; err != nil {
			a.Log.Error("Failed to update profile name", "error", err, "conversation_id", conv.ID)
		}
	}

	// Operator muted the bot for this conversation. The tap is recorded
	// above but nothing goes out.
	if conv.AutoReplyDisabled {
		a.Log.Info("Auto-reply disabled, skipping", "conversation_id", conv.ID)
		return Result{Success: true, Message: "auto-reply disabled for conversation"}
	}

	if IsOrderManagementID(buttonID) {
		return a.handleOrderManagement(ctx, channel, conv, buttonID)
	}

	nodeID, optionIndex, err := ParseFlowReplyID(buttonID)
	if err != nil {
		// Not a flow reply either. The ID is malformed, so there is
		// nothing sensible to answer. The tap is recorded and dropped.
		a.Log.Warn("Unrecognized button ID, ignoring", "button_id", buttonID)
		return Result{Success: false, Message: "unrecognized button ID"}
	}

	return a.handleFlowReply(ctx, channel, conv, nodeID, optionIndex)
}

// handleFlowReply advances the question flow for a conversation
func (a *App) handleFlowReply(ctx context.Context, channel *models.Channel, conv *models.Conversation, nodeID string, optionIndex int) Result {
	flow, err := a.getQuestionFlowCached(ctx, channel.ChatbotID)
	if err != nil {
		a.Log.Error("Question flow lookup failed", "error", err, "chatbot_id", channel.ChatbotID)
		a.sendPipelineError(ctx, channel, conv, err)
		return Result{Success: false, Message: "question flow lookup failed"}
	}
	if flow == nil || !flow.IsEnabled {
		// Buttons from a since-disabled flow are acknowledged, not answered
		a.Log.Info("Question flow disabled, ignoring reply", "chatbot_id", channel.ChatbotID)
		return Result{Success: true, Message: "question flow disabled"}
	}

	advanced := a.processFlowReply(ctx, channel, conv, flow, nodeID, optionIndex)
	if !advanced {
		a.DispatchWebhook(conv.OrganizationID, EventFlowCompleted, FlowEventData{
			ConversationID: conv.ID.String(),
			Phone:          conv.PhoneNumber,
			FlowID:         flow.ID.String(),
			NodeID:         nodeID,
		})
		if flow.AIResponseOnComplete {
			return a.respondWithAI(ctx, channel, conv, "")
		}
	}

	return Result{Success: true, Message: "flow reply processed"}
}
