package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/internal/config"
	"github.com/sagarjadhav/tablemate/internal/models"
)

// maxToolIterations bounds the tool-calling loop so a model that keeps
// requesting tools cannot spin forever.
const maxToolIterations = 5

const defaultSystemPrompt = "You are a friendly restaurant assistant helping customers order food over WhatsApp. Keep replies short and conversational."

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type toolDef struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

func newToolDef(name, description string, parameters map[string]any) toolDef {
	var t toolDef
	t.Type = "function"
	t.Function.Name = name
	t.Function.Description = description
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	t.Function.Parameters = parameters
	return t
}

// chatComplete makes a single completion call against the configured
// provider. Tool calling is OpenAI-protocol only.
func chatComplete(ctx context.Context, cfg config.AIConfig, messages []chatMessage, tools []toolDef) (*chatMessage, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("AI API key not configured")
	}

	timeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch cfg.Provider {
	case "anthropic":
		if len(tools) > 0 {
			return nil, errors.New("tool calling requires the openai provider")
		}
		return anthropicComplete(ctx, client, cfg, messages)
	default:
		return openaiComplete(ctx, client, cfg, messages, tools)
	}
}

func openaiComplete(ctx context.Context, client *http.Client, cfg config.AIConfig, messages []chatMessage, tools []toolDef) (*chatMessage, error) {
	payload := map[string]any{
		"model":      cfg.Model,
		"messages":   messages,
		"max_tokens": cfg.MaxTokens,
	}
	if len(tools) > 0 {
		payload["tools"] = tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI API error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("AI returned no choices")
	}
	return &parsed.Choices[0].Message, nil
}

func anthropicComplete(ctx context.Context, client *http.Client, cfg config.AIConfig, messages []chatMessage) (*chatMessage, error) {
	// Anthropic takes the system prompt out of band
	var system string
	converted := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		converted = append(converted, map[string]string{"role": m.Role, "content": m.Content})
	}

	payload := map[string]any{
		"model":      cfg.Model,
		"max_tokens": cfg.MaxTokens,
		"messages":   converted,
	}
	if system != "" {
		payload["system"] = system
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI API error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, err
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return &chatMessage{Role: "assistant", Content: block.Text}, nil
		}
	}
	return nil, errors.New("AI returned no text content")
}

// buildConversationMessages assembles the prompt from the chatbot's system
// prompt and recent history.
func (a *App) buildConversationMessages(conv *models.Conversation, systemPrompt, userText string) []chatMessage {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	messages := []chatMessage{{Role: "system", Content: systemPrompt}}
	for _, m := range a.getSessionHistory(conv, 10) {
		if m.Content == "" {
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Content})
	}
	if userText != "" {
		messages = append(messages, chatMessage{Role: "user", Content: userText})
	}
	return messages
}

// chatbotSystemPrompt loads the chatbot's configured system prompt
func (a *App) chatbotSystemPrompt(chatbotID uuid.UUID) string {
	var chatbot models.Chatbot
	if err := a.DB.First(&chatbot, "id = ?", chatbotID).Error; err != nil {
		return ""
	}
	return chatbot.SystemPrompt
}

// getConversationAIResponse produces a plain-text reply for the caller to
// send. A single call, failures propagate.
func (a *App) getConversationAIResponse(ctx context.Context, channel *models.Channel, conv *models.Conversation, userText string) (string, error) {
	messages := a.buildConversationMessages(conv, a.chatbotSystemPrompt(channel.ChatbotID), userText)
	reply, err := chatComplete(ctx, a.Config.AI, messages, nil)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// respondWithAI is the simple fallback: generate a reply and send it
func (a *App) respondWithAI(ctx context.Context, channel *models.Channel, conv *models.Conversation, userText string) Result {
	text, err := a.getConversationAIResponse(ctx, channel, conv, userText)
	if err != nil {
		a.Log.Error("AI response failed", "error", err, "conversation_id", conv.ID)
		return Result{Success: false, Message: "AI response failed"}
	}
	if text == "" {
		a.Log.Warn("AI returned empty response", "conversation_id", conv.ID)
		return Result{Success: false, Message: "AI returned empty response"}
	}

	if _, err := a.sendAndSaveTextMessage(ctx, channel, conv, text); err != nil {
		return Result{Success: false, Message: "failed to send AI response"}
	}
	return Result{Success: true, Message: "AI response sent"}
}

// processOrderManagementWithAI runs the tool-calling variant: the model
// sees the cart and menu through tools and decides what to do, including
// placing the order. This path sends its own messages.
func (a *App) processOrderManagementWithAI(ctx context.Context, channel *models.Channel, conv *models.Conversation, action *models.OrderAction, ba *ButtonAction, userText string) Result {
	systemPrompt := a.chatbotSystemPrompt(channel.ChatbotID)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	systemPrompt += fmt.Sprintf(
		"\n\nThe customer is ordering at table %q. Use the tools to inspect the menu and cart. "+
			"Call confirm_order only when the customer clearly wants to finalize. "+
			"After confirming, tell the customer their order is placed.", ba.Table)

	tools := []toolDef{
		newToolDef("get_menu_items", "List the menu items of a category.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category_id": map[string]any{"type": "string", "description": "Category ID to list. Empty for all items."},
			},
		}),
		newToolDef("get_cart", "Get the customer's current cart with items and total.", nil),
		newToolDef("confirm_order", "Place the order for everything in the cart.", nil),
	}

	messages := a.buildConversationMessages(conv, systemPrompt, userText)

	for i := 0; i < maxToolIterations; i++ {
		reply, err := chatComplete(ctx, a.Config.AI, messages, tools)
		if err != nil {
			a.Log.Error("AI tool call failed", "error", err, "conversation_id", conv.ID)
			return Result{Success: false, Message: "AI tool call failed"}
		}

		if len(reply.ToolCalls) == 0 {
			if reply.Content == "" {
				return Result{Success: false, Message: "AI returned empty response"}
			}
			if _, err := a.sendAndSaveTextMessage(ctx, channel, conv, reply.Content); err != nil {
				return Result{Success: false, Message: "failed to send AI response"}
			}
			return Result{Success: true, Message: "order AI response sent"}
		}

		messages = append(messages, *reply)
		for _, call := range reply.ToolCalls {
			output := a.executeOrderTool(ctx, channel, conv, ba, call)
			messages = append(messages, chatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    output,
			})
		}
	}

	a.Log.Warn("AI tool loop exhausted", "conversation_id", conv.ID)
	return Result{Success: false, Message: "AI tool loop exhausted"}
}

// executeOrderTool runs one tool call against the menu service and returns
// the JSON (or error text) the model sees.
func (a *App) executeOrderTool(ctx context.Context, channel *models.Channel, conv *models.Conversation, ba *ButtonAction, call toolCall) string {
	chatbotID := channel.ChatbotID.String()

	switch call.Function.Name {
	case "get_menu_items":
		var args struct {
			CategoryID string `json:"category_id"`
		}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return fmt.Sprintf("invalid arguments: %v", err)
			}
		}
		resp, err := a.Menu.GetMenus(ctx, chatbotID, args.CategoryID)
		if err != nil {
			return fmt.Sprintf("menu lookup failed: %v", err)
		}
		data, _ := json.Marshal(resp)
		return string(data)

	case "get_cart":
		resp, err := a.Menu.GetCart(ctx, chatbotID)
		if err != nil {
			return fmt.Sprintf("cart lookup failed: %v", err)
		}
		data, _ := json.Marshal(resp)
		return string(data)

	case "confirm_order":
		resp, err := a.Menu.ConfirmOrder(ctx, chatbotID, ba.Table)
		if err != nil {
			return fmt.Sprintf("order confirmation failed: %v", err)
		}

		conv.ClearMeta(models.MetaCartQuantity)
		if err := a.saveConversationMeta(conv); err != nil {
			a.Log.Error("Failed to clear cart quantity", "error", err, "conversation_id", conv.ID)
		}
		a.DispatchWebhook(conv.OrganizationID, EventOrderConfirmed, OrderEventData{
			ConversationID: conv.ID.String(),
			Phone:          conv.PhoneNumber,
			TableName:      ba.Table,
			OrderID:        resp.OrderID,
		})

		data, _ := json.Marshal(resp)
		return string(data)
	}

	return fmt.Sprintf("unknown tool: %s", call.Function.Name)
}
