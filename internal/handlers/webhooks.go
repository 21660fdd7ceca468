package handlers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
)

// WebhookRequest represents the request body for creating/updating a webhook endpoint
type WebhookRequest struct {
	Name     string            `json:"name"`
	URL      string            `json:"url"`
	Events   []string          `json:"events"`
	Headers  map[string]string `json:"headers"`
	Secret   string            `json:"secret"`
	IsActive bool              `json:"is_active"`
}

// WebhookResponse represents the API response for a webhook endpoint
type WebhookResponse struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Events    []string          `json:"events"`
	Headers   map[string]string `json:"headers"`
	IsActive  bool              `json:"is_active"`
	HasSecret bool              `json:"has_secret"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// AvailableWebhookEvents returns the list of available webhook event types
var AvailableWebhookEvents = []map[string]string{
	{"value": EventMessageIncoming, "label": "Message Incoming", "description": "When a customer message is received"},
	{"value": EventMessageOutgoing, "label": "Message Outgoing", "description": "When the chatbot sends a message"},
	{"value": EventFlowCompleted, "label": "Flow Completed", "description": "When a question flow reaches a terminal node"},
	{"value": EventOrderConfirmed, "label": "Order Confirmed", "description": "When a customer's order is placed"},
}

// ListWebhooks returns all webhook endpoints for the organization
func (a *App) ListWebhooks(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var endpoints []models.WebhookEndpoint
	if err := a.DB.Where("organization_id = ?", orgID).Order("created_at DESC").Find(&endpoints).Error; err != nil {
		a.Log.Error("Failed to list webhooks", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to list webhooks", nil, "")
	}

	result := make([]WebhookResponse, len(endpoints))
	for i, ep := range endpoints {
		result[i] = webhookToResponse(ep)
	}

	return r.SendEnvelope(map[string]interface{}{
		"webhooks":         result,
		"available_events": AvailableWebhookEvents,
	})
}

// GetWebhook returns a single webhook endpoint by ID
func (a *App) GetWebhook(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	webhookID, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid webhook ID", nil, "")
	}

	var endpoint models.WebhookEndpoint
	if err := a.DB.Where("id = ? AND organization_id = ?", webhookID, orgID).First(&endpoint).Error; err != nil {
		return sendNotFound(r, "Webhook")
	}

	return r.SendEnvelope(webhookToResponse(endpoint))
}

// CreateWebhook creates a new webhook endpoint
func (a *App) CreateWebhook(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var req WebhookRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}

	if req.Name == "" || req.URL == "" {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "name and url are required", nil, "")
	}

	if len(req.Events) == 0 {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "at least one event must be selected", nil, "")
	}

	// Convert headers to JSONB
	headers := models.JSONB{}
	for k, v := range req.Headers {
		headers[k] = v
	}

	endpoint := models.WebhookEndpoint{
		OrganizationID: orgID,
		Name:           req.Name,
		URL:            req.URL,
		Events:         req.Events,
		Headers:        headers,
		Secret:         req.Secret,
		IsActive:       true,
	}

	if err := a.DB.Create(&endpoint).Error; err != nil {
		a.Log.Error("Failed to create webhook", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to create webhook", nil, "")
	}

	return r.SendEnvelope(webhookToResponse(endpoint))
}

// UpdateWebhook updates an existing webhook endpoint
func (a *App) UpdateWebhook(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	webhookID, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid webhook ID", nil, "")
	}

	var endpoint models.WebhookEndpoint
	if err := a.DB.Where("id = ? AND organization_id = ?", webhookID, orgID).First(&endpoint).Error; err != nil {
		return sendNotFound(r, "Webhook")
	}

	var req WebhookRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}

	if req.Name != "" {
		endpoint.Name = req.Name
	}
	if req.URL != "" {
		endpoint.URL = req.URL
	}
	if len(req.Events) > 0 {
		endpoint.Events = req.Events
	}

	// Update headers if provided
	if req.Headers != nil {
		headers := models.JSONB{}
		for k, v := range req.Headers {
			headers[k] = v
		}
		endpoint.Headers = headers
	}

	// Update secret if provided
	if req.Secret != "" {
		endpoint.Secret = req.Secret
	}

	endpoint.IsActive = req.IsActive

	if err := a.DB.Save(&endpoint).Error; err != nil {
		a.Log.Error("Failed to update webhook", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to update webhook", nil, "")
	}

	return r.SendEnvelope(webhookToResponse(endpoint))
}

// DeleteWebhook deletes a webhook endpoint
func (a *App) DeleteWebhook(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	webhookID, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid webhook ID", nil, "")
	}

	result := a.DB.Where("id = ? AND organization_id = ?", webhookID, orgID).Delete(&models.WebhookEndpoint{})
	if result.Error != nil {
		a.Log.Error("Failed to delete webhook", "error", result.Error)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to delete webhook", nil, "")
	}
	if result.RowsAffected == 0 {
		return sendNotFound(r, "Webhook")
	}

	return r.SendEnvelope(map[string]string{"message": "Webhook deleted successfully"})
}

// TestWebhook sends a test event to a webhook endpoint
func (a *App) TestWebhook(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	webhookID, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid webhook ID", nil, "")
	}

	var endpoint models.WebhookEndpoint
	if err := a.DB.Where("id = ? AND organization_id = ?", webhookID, orgID).First(&endpoint).Error; err != nil {
		return sendNotFound(r, "Webhook")
	}

	// Send a test event synchronously
	testData := map[string]interface{}{
		"test":      true,
		"message":   "This is a test webhook from Tablemate",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	payload := OutboundWebhookPayload{
		Event:     "test",
		Timestamp: time.Now().UTC(),
		Data:      testData,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to create test payload", nil, "")
	}

	if err := a.sendWebhookRequest(endpoint, jsonData); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadGateway, "Webhook test failed: "+err.Error(), nil, "")
	}

	return r.SendEnvelope(map[string]string{"message": "Test webhook sent successfully"})
}

func webhookToResponse(ep models.WebhookEndpoint) WebhookResponse {
	events := make([]string, len(ep.Events))
	copy(events, ep.Events)

	headers := make(map[string]string)
	for k, v := range ep.Headers {
		if strVal, ok := v.(string); ok {
			headers[k] = strVal
		}
	}

	return WebhookResponse{
		ID:        ep.ID,
		Name:      ep.Name,
		URL:       ep.URL,
		Events:    events,
		Headers:   headers,
		IsActive:  ep.IsActive,
		HasSecret: ep.Secret != "",
		CreatedAt: ep.CreatedAt.Format(time.RFC3339),
		UpdatedAt: ep.UpdatedAt.Format(time.RFC3339),
	}
}
