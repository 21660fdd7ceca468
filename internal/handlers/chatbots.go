package handlers

import (
	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
)

// ChatbotRequest represents the request body for creating/updating a chatbot
type ChatbotRequest struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	GreetingText string `json:"greeting_text"`
	IsActive     *bool  `json:"is_active"`
}

// ListChatbots returns all chatbots for the organization
func (a *App) ListChatbots(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var chatbots []models.Chatbot
	if err := a.DB.Where("organization_id = ?", orgID).Order("created_at DESC").Find(&chatbots).Error; err != nil {
		a.Log.Error("Failed to list chatbots", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to list chatbots", nil, "")
	}

	return r.SendEnvelope(map[string]interface{}{
		"chatbots": chatbots,
	})
}

// GetChatbot returns a single chatbot
func (a *App) GetChatbot(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid chatbot ID", nil, "")
	}

	var chatbot models.Chatbot
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&chatbot).Error; err != nil {
		return sendNotFound(r, "Chatbot")
	}

	return r.SendEnvelope(chatbot)
}

// CreateChatbot creates a new chatbot
func (a *App) CreateChatbot(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var req ChatbotRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}

	if req.Name == "" {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "name is required", nil, "")
	}

	chatbot := models.Chatbot{
		OrganizationID: orgID,
		Name:           req.Name,
		SystemPrompt:   req.SystemPrompt,
		GreetingText:   req.GreetingText,
		IsActive:       true,
	}
	if req.IsActive != nil {
		chatbot.IsActive = *req.IsActive
	}

	if err := a.DB.Create(&chatbot).Error; err != nil {
		a.Log.Error("Failed to create chatbot", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to create chatbot", nil, "")
	}

	return r.SendEnvelope(chatbot)
}

// UpdateChatbot updates a chatbot
func (a *App) UpdateChatbot(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid chatbot ID", nil, "")
	}

	var chatbot models.Chatbot
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&chatbot).Error; err != nil {
		return sendNotFound(r, "Chatbot")
	}

	var req ChatbotRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}

	if req.Name != "" {
		chatbot.Name = req.Name
	}
	if req.SystemPrompt != "" {
		chatbot.SystemPrompt = req.SystemPrompt
	}
	if req.GreetingText != "" {
		chatbot.GreetingText = req.GreetingText
	}
	if req.IsActive != nil {
		chatbot.IsActive = *req.IsActive
	}

	if err := a.DB.Save(&chatbot).Error; err != nil {
		a.Log.Error("Failed to update chatbot", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to update chatbot", nil, "")
	}

	return r.SendEnvelope(chatbot)
}

// DeleteChatbot deletes a chatbot
func (a *App) DeleteChatbot(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid chatbot ID", nil, "")
	}

	var chatbot models.Chatbot
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&chatbot).Error; err != nil {
		return sendNotFound(r, "Chatbot")
	}

	var channelCount int64
	if err := a.DB.Model(&models.Channel{}).Where("chatbot_id = ?", chatbot.ID).Count(&channelCount).Error; err == nil && channelCount > 0 {
		return r.SendErrorEnvelope(fasthttp.StatusConflict, "Chatbot still has channels attached", nil, "")
	}

	if err := a.DB.Delete(&chatbot).Error; err != nil {
		a.Log.Error("Failed to delete chatbot", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to delete chatbot", nil, "")
	}

	return r.SendEnvelope(map[string]string{"message": "Chatbot deleted successfully"})
}
