package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/internal/models"
)

// WebhookEvent types
const (
	EventMessageIncoming = "message.incoming"
	EventMessageOutgoing = "message.outgoing"
	EventFlowCompleted   = "flow.completed"
	EventOrderConfirmed  = "order.confirmed"
)

// OutboundWebhookPayload represents the structure sent to external webhook endpoints
type OutboundWebhookPayload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ConversationEventData represents data for message events
type ConversationEventData struct {
	ConversationID string `json:"conversation_id"`
	Phone          string `json:"phone"`
	Role           string `json:"role"`
	Content        string `json:"content"`
}

// FlowEventData represents data for question-flow events
type FlowEventData struct {
	ConversationID string `json:"conversation_id"`
	Phone          string `json:"phone"`
	FlowID         string `json:"flow_id"`
	NodeID         string `json:"node_id"`
}

// OrderEventData represents data for order events
type OrderEventData struct {
	ConversationID string `json:"conversation_id"`
	Phone          string `json:"phone"`
	TableName      string `json:"table_name"`
	OrderID        string `json:"order_id,omitempty"`
}

// DispatchWebhook sends an event to all matching webhook endpoints for the organization
func (a *App) DispatchWebhook(orgID uuid.UUID, eventType string, data interface{}) {
	go a.dispatchWebhookAsync(orgID, eventType, data)
}

func (a *App) dispatchWebhookAsync(orgID uuid.UUID, eventType string, data interface{}) {
	// Find all active endpoints for this org that subscribe to this event
	var endpoints []models.WebhookEndpoint
	if err := a.DB.Where("organization_id = ? AND is_active = ?", orgID, true).Find(&endpoints).Error; err != nil {
		a.Log.Error("failed to fetch webhook endpoints", "error", err)
		return
	}

	for _, endpoint := range endpoints {
		if !containsEvent(endpoint.Events, eventType) {
			continue
		}

		// Send webhook asynchronously
		go a.sendWebhook(endpoint, eventType, data)
	}
}

func containsEvent(events models.StringArray, event string) bool {
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}

func (a *App) sendWebhook(endpoint models.WebhookEndpoint, eventType string, data interface{}) {
	payload := OutboundWebhookPayload{
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		a.Log.Error("failed to marshal webhook payload", "error", err, "webhook_id", endpoint.ID)
		return
	}

	// Retry logic with exponential backoff
	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			time.Sleep(time.Duration(1<<attempt) * time.Second)
		}

		if err := a.sendWebhookRequest(endpoint, jsonData); err != nil {
			a.Log.Warn("webhook delivery failed",
				"error", err,
				"webhook_id", endpoint.ID,
				"attempt", attempt+1,
				"max_retries", maxRetries,
			)
			continue
		}

		// Success
		a.Log.Debug("webhook delivered",
			"webhook_id", endpoint.ID,
			"event", eventType,
			"url", endpoint.URL,
		)
		return
	}

	a.Log.Error("webhook delivery failed after all retries",
		"webhook_id", endpoint.ID,
		"event", eventType,
		"url", endpoint.URL,
	)
}

func (a *App) sendWebhookRequest(endpoint models.WebhookEndpoint, jsonData []byte) error {
	req, err := http.NewRequest("POST", endpoint.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Tablemate-Webhook/1.0")

	// Add custom headers from endpoint config
	if endpoint.Headers != nil {
		for key, value := range endpoint.Headers {
			if strValue, ok := value.(string); ok {
				req.Header.Set(key, strValue)
			}
		}
	}

	// Add HMAC signature if secret is configured
	if endpoint.Secret != "" {
		signature := computeHMACSignature(jsonData, endpoint.Secret)
		req.Header.Set("X-Tablemate-Signature", signature)
	}

	// Send request with timeout
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Check for successful status code (2xx)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &WebhookError{StatusCode: resp.StatusCode}
	}

	return nil
}

func computeHMACSignature(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// WebhookError represents a webhook delivery error
type WebhookError struct {
	StatusCode int
}

func (e *WebhookError) Error() string {
	return "webhook returned non-2xx status: " + http.StatusText(e.StatusCode)
}
