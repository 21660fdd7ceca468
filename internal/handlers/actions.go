package handlers

import (
	"strings"

	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
)

// OrderActionRequest represents the request body for creating/updating an order action
type OrderActionRequest struct {
	Name       string                  `json:"name"`
	Slug       string                  `json:"slug"`
	ChatbotID  string                  `json:"chatbot_id"`
	Categories models.MenuCategoryList `json:"categories"`
	MenuItems  models.MenuItemList     `json:"menu_items"`
	Language   string                  `json:"language"`
	Currency   string                  `json:"currency"`
	IsActive   *bool                   `json:"is_active"`
}

// The slug rides inside hyphen-delimited button IDs, so it must never
// contain a hyphen itself.
func validActionSlug(slug string) bool {
	if slug == "" || strings.Contains(slug, "-") {
		return false
	}
	for _, r := range slug {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ListOrderActions returns all order actions for the organization
func (a *App) ListOrderActions(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var actions []models.OrderAction
	if err := a.DB.Where("organization_id = ?", orgID).Order("created_at DESC").Find(&actions).Error; err != nil {
		a.Log.Error("Failed to list order actions", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to list order actions", nil, "")
	}

	return r.SendEnvelope(map[string]interface{}{
		"order_actions": actions,
	})
}

// GetOrderAction returns a single order action
func (a *App) GetOrderAction(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid action ID", nil, "")
	}

	var action models.OrderAction
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&action).Error; err != nil {
		return sendNotFound(r, "Order action")
	}

	return r.SendEnvelope(action)
}

// CreateOrderAction creates a new order action
func (a *App) CreateOrderAction(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var req OrderActionRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}

	if req.Name == "" {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "name is required", nil, "")
	}
	if !validActionSlug(req.Slug) {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "slug must be lowercase alphanumeric without hyphens", nil, "")
	}

	chatbotID, err := uuid.Parse(req.ChatbotID)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid chatbot_id", nil, "")
	}
	var chatbot models.Chatbot
	if err := a.DB.Where("id = ? AND organization_id = ?", chatbotID, orgID).First(&chatbot).Error; err != nil {
		return sendNotFound(r, "Chatbot")
	}

	var existing models.OrderAction
	if err := a.DB.Where("slug = ?", req.Slug).First(&existing).Error; err == nil {
		return r.SendErrorEnvelope(fasthttp.StatusConflict, "slug already exists", nil, "")
	}

	language := req.Language
	if language == "" {
		language = "en"
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	action := models.OrderAction{
		OrganizationID: orgID,
		ChatbotID:      chatbotID,
		Name:           req.Name,
		Slug:           req.Slug,
		Categories:     req.Categories,
		MenuItems:      req.MenuItems,
		Language:       language,
		Currency:       currency,
		IsActive:       true,
	}

	if err := a.DB.Create(&action).Error; err != nil {
		a.Log.Error("Failed to create order action", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to create order action", nil, "")
	}

	return r.SendEnvelope(action)
}

// UpdateOrderAction updates an order action
func (a *App) UpdateOrderAction(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid action ID", nil, "")
	}

	var action models.OrderAction
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&action).Error; err != nil {
		return sendNotFound(r, "Order action")
	}

	var req OrderActionRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}

	if req.Name != "" {
		action.Name = req.Name
	}
	if req.Slug != "" && req.Slug != action.Slug {
		if !validActionSlug(req.Slug) {
			return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "slug must be lowercase alphanumeric without hyphens", nil, "")
		}
		var existing models.OrderAction
		if err := a.DB.Where("slug = ? AND id != ?", req.Slug, id).First(&existing).Error; err == nil {
			return r.SendErrorEnvelope(fasthttp.StatusConflict, "slug already exists", nil, "")
		}
		// Drop the old slug's cache entry too
		a.invalidateActionCache(r.RequestCtx, action.Slug)
		action.Slug = req.Slug
	}
	if req.Categories != nil {
		action.Categories = req.Categories
	}
	if req.MenuItems != nil {
		action.MenuItems = req.MenuItems
	}
	if req.Language != "" {
		action.Language = req.Language
	}
	if req.Currency != "" {
		action.Currency = req.Currency
	}
	if req.IsActive != nil {
		action.IsActive = *req.IsActive
	}

	if err := a.DB.Save(&action).Error; err != nil {
		a.Log.Error("Failed to update order action", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to update order action", nil, "")
	}

	a.invalidateActionCache(r.RequestCtx, action.Slug)

	return r.SendEnvelope(action)
}

// DeleteOrderAction deletes an order action
func (a *App) DeleteOrderAction(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid action ID", nil, "")
	}

	var action models.OrderAction
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&action).Error; err != nil {
		return sendNotFound(r, "Order action")
	}

	if err := a.DB.Delete(&action).Error; err != nil {
		a.Log.Error("Failed to delete order action", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to delete order action", nil, "")
	}

	a.invalidateActionCache(r.RequestCtx, action.Slug)

	return r.SendEnvelope(map[string]string{"message": "Order action deleted successfully"})
}
