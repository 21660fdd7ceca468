package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
)

// ChannelRequest represents the request body for creating/updating a channel
type ChannelRequest struct {
	Name           string `json:"name" validate:"required"`
	ChatbotID      string `json:"chatbot_id"`
	PhoneID        string `json:"phone_id" validate:"required"`
	BusinessID     string `json:"business_id"`
	AccessToken    string `json:"access_token" validate:"required"`
	APIVersion     string `json:"api_version"`
	ReplyDelaySecs int    `json:"reply_delay_secs"`
}

// ChannelResponse represents the response for a channel (without sensitive data)
type ChannelResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	ChatbotID      uuid.UUID `json:"chatbot_id"`
	PhoneID        string    `json:"phone_id"`
	BusinessID     string    `json:"business_id"`
	APIVersion     string    `json:"api_version"`
	ReplyDelaySecs int       `json:"reply_delay_secs"`
	Status         string    `json:"status"`
	HasAccessToken bool      `json:"has_access_token"`
	CreatedAt      string    `json:"created_at"`
	UpdatedAt      string    `json:"updated_at"`
}

// ListChannels returns all channels for the organization
func (a *App) ListChannels(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var channels []models.Channel
	if err := a.DB.Where("organization_id = ?", orgID).Order("created_at DESC").Find(&channels).Error; err != nil {
		a.Log.Error("Failed to list channels", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to list channels", nil, "")
	}

	// Convert to response format (hide sensitive data)
	response := make([]ChannelResponse, len(channels))
	for i, ch := range channels {
		response[i] = channelToResponse(ch)
	}

	return r.SendEnvelope(map[string]interface{}{
		"channels": response,
	})
}

// CreateChannel creates a new channel
func (a *App) CreateChannel(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var req ChannelRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}

	if req.Name == "" || req.PhoneID == "" || req.AccessToken == "" {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Name, phone_id, and access_token are required", nil, "")
	}

	chatbotID, err := uuid.Parse(req.ChatbotID)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid chatbot_id", nil, "")
	}

	// The chatbot must belong to the same organization
	var chatbot models.Chatbot
	if err := a.DB.Where("id = ? AND organization_id = ?", chatbotID, orgID).First(&chatbot).Error; err != nil {
		return sendNotFound(r, "Chatbot")
	}

	apiVersion := req.APIVersion
	if apiVersion == "" {
		apiVersion = a.Config.WhatsApp.APIVersion
	}

	channel := models.Channel{
		OrganizationID: orgID,
		ChatbotID:      chatbotID,
		Name:           req.Name,
		PhoneID:        req.PhoneID,
		BusinessID:     req.BusinessID,
		AccessToken:    req.AccessToken,
		APIVersion:     apiVersion,
		ReplyDelaySecs: req.ReplyDelaySecs,
		Status:         "active",
	}

	if err := a.DB.Create(&channel).Error; err != nil {
		a.Log.Error("Failed to create channel", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to create channel", nil, "")
	}

	return r.SendEnvelope(channelToResponse(channel))
}

// GetChannel returns a single channel
func (a *App) GetChannel(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid channel ID", nil, "")
	}

	var channel models.Channel
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&channel).Error; err != nil {
		return sendNotFound(r, "Channel")
	}

	return r.SendEnvelope(channelToResponse(channel))
}

// UpdateChannel updates a channel
func (a *App) UpdateChannel(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid channel ID", nil, "")
	}

	var channel models.Channel
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&channel).Error; err != nil {
		return sendNotFound(r, "Channel")
	}

	var req ChannelRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}

	// Update fields if provided
	if req.Name != "" {
		channel.Name = req.Name
	}
	if req.PhoneID != "" {
		channel.PhoneID = req.PhoneID
	}
	if req.BusinessID != "" {
		channel.BusinessID = req.BusinessID
	}
	if req.AccessToken != "" {
		channel.AccessToken = req.AccessToken
	}
	if req.APIVersion != "" {
		channel.APIVersion = req.APIVersion
	}
	if req.ReplyDelaySecs >= 0 {
		channel.ReplyDelaySecs = req.ReplyDelaySecs
	}
	if req.ChatbotID != "" {
		chatbotID, err := uuid.Parse(req.ChatbotID)
		if err != nil {
			return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid chatbot_id", nil, "")
		}
		var chatbot models.Chatbot
		if err := a.DB.Where("id = ? AND organization_id = ?", chatbotID, orgID).First(&chatbot).Error; err != nil {
			return sendNotFound(r, "Chatbot")
		}
		channel.ChatbotID = chatbotID
	}

	if err := a.DB.Save(&channel).Error; err != nil {
		a.Log.Error("Failed to update channel", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to update channel", nil, "")
	}

	// Invalidate cache
	a.invalidateChannelCache(r.RequestCtx, channel.PhoneID)

	return r.SendEnvelope(channelToResponse(channel))
}

// DeleteChannel deletes a channel
func (a *App) DeleteChannel(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid channel ID", nil, "")
	}

	// Get channel first for cache invalidation
	var channel models.Channel
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&channel).Error; err != nil {
		return sendNotFound(r, "Channel")
	}

	if err := a.DB.Delete(&channel).Error; err != nil {
		a.Log.Error("Failed to delete channel", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to delete channel", nil, "")
	}

	// Invalidate cache
	a.invalidateChannelCache(r.RequestCtx, channel.PhoneID)

	return r.SendEnvelope(map[string]string{"message": "Channel deleted successfully"})
}

// TestChannelConnection tests the WhatsApp API connection
func (a *App) TestChannelConnection(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid channel ID", nil, "")
	}

	var channel models.Channel
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&channel).Error; err != nil {
		return sendNotFound(r, "Channel")
	}

	// Test the connection by fetching phone number details from Meta API
	url := fmt.Sprintf("https://graph.facebook.com/%s/%s?fields=display_phone_number,verified_name,quality_rating",
		channel.APIVersion, channel.PhoneID)

	req, _ := http.NewRequest("GET", url, nil)
	req.Header.Set("Authorization", "Bearer "+channel.AccessToken)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return r.SendEnvelope(map[string]interface{}{
			"success": false,
			"error":   "Failed to connect to WhatsApp API: " + err.Error(),
		})
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != 200 {
		var errorResp map[string]interface{}
		_ = json.Unmarshal(body, &errorResp)
		return r.SendEnvelope(map[string]interface{}{
			"success": false,
			"error":   "API error",
			"details": errorResp,
		})
	}

	var result map[string]interface{}
	_ = json.Unmarshal(body, &result)

	return r.SendEnvelope(map[string]interface{}{
		"success":              true,
		"display_phone_number": result["display_phone_number"],
		"verified_name":        result["verified_name"],
		"quality_rating":       result["quality_rating"],
	})
}

func channelToResponse(ch models.Channel) ChannelResponse {
	return ChannelResponse{
		ID:             ch.ID,
		Name:           ch.Name,
		ChatbotID:      ch.ChatbotID,
		PhoneID:        ch.PhoneID,
		BusinessID:     ch.BusinessID,
		APIVersion:     ch.APIVersion,
		ReplyDelaySecs: ch.ReplyDelaySecs,
		Status:         ch.Status,
		HasAccessToken: ch.AccessToken != "",
		CreatedAt:      ch.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      ch.UpdatedAt.Format(time.RFC3339),
	}
}
