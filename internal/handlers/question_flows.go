package handlers

import (
	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
)

// QuestionFlowRequest represents the request body for creating/updating a flow
type QuestionFlowRequest struct {
	Name                 string             `json:"name"`
	ChatbotID            string             `json:"chatbot_id"`
	IsEnabled            *bool              `json:"is_enabled"`
	EntryNodeID          string             `json:"entry_node_id"`
	Nodes                models.FlowNodeMap `json:"nodes"`
	AIResponseOnComplete *bool              `json:"ai_response_on_complete"`
}

// validateFlowGraph checks node references so broken graphs are rejected at
// write time instead of surfacing as dead ends mid-conversation.
func validateFlowGraph(entryNodeID string, nodes models.FlowNodeMap) string {
	if len(nodes) == 0 {
		return "at least one node is required"
	}
	if entryNodeID == "" {
		return "entry_node_id is required"
	}
	if _, ok := nodes[entryNodeID]; !ok {
		return "entry_node_id does not exist in nodes"
	}
	for nodeID, node := range nodes {
		for _, opt := range node.Options {
			if opt.Label == "" {
				return "node " + nodeID + " has an option without a label"
			}
			if opt.NextNodeID == "" {
				continue // terminal option
			}
			if _, ok := nodes[opt.NextNodeID]; !ok {
				return "node " + nodeID + " references missing node " + opt.NextNodeID
			}
		}
	}
	return ""
}

// ListQuestionFlows returns all question flows for the organization
func (a *App) ListQuestionFlows(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var flows []models.QuestionFlow
	if err := a.DB.Where("organization_id = ?", orgID).Order("created_at DESC").Find(&flows).Error; err != nil {
		a.Log.Error("Failed to list question flows", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to list question flows", nil, "")
	}

	return r.SendEnvelope(map[string]interface{}{
		"question_flows": flows,
	})
}

// GetQuestionFlow returns a single question flow
func (a *App) GetQuestionFlow(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid flow ID", nil, "")
	}

	var flow models.QuestionFlow
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&flow).Error; err != nil {
		return sendNotFound(r, "Question flow")
	}

	return r.SendEnvelope(flow)
}

// CreateQuestionFlow creates a new question flow
func (a *App) CreateQuestionFlow(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	var req QuestionFlowRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}

	if req.Name == "" {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "name is required", nil, "")
	}
	if msg := validateFlowGraph(req.EntryNodeID, req.Nodes); msg != "" {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, msg, nil, "")
	}

	chatbotID, err := uuid.Parse(req.ChatbotID)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid chatbot_id", nil, "")
	}
	var chatbot models.Chatbot
	if err := a.DB.Where("id = ? AND organization_id = ?", chatbotID, orgID).First(&chatbot).Error; err != nil {
		return sendNotFound(r, "Chatbot")
	}

	// One flow per chatbot
	var existing models.QuestionFlow
	if err := a.DB.Where("chatbot_id = ?", chatbotID).First(&existing).Error; err == nil {
		return r.SendErrorEnvelope(fasthttp.StatusConflict, "Chatbot already has a question flow", nil, "")
	}

	flow := models.QuestionFlow{
		OrganizationID: orgID,
		ChatbotID:      chatbotID,
		Name:           req.Name,
		IsEnabled:      true,
		EntryNodeID:    req.EntryNodeID,
		Nodes:          req.Nodes,
	}
	if req.IsEnabled != nil {
		flow.IsEnabled = *req.IsEnabled
	}
	if req.AIResponseOnComplete != nil {
		flow.AIResponseOnComplete = *req.AIResponseOnComplete
	}

	if err := a.DB.Create(&flow).Error; err != nil {
		a.Log.Error("Failed to create question flow", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to create question flow", nil, "")
	}

	return r.SendEnvelope(flow)
}

// UpdateQuestionFlow updates a question flow
func (a *App) UpdateQuestionFlow(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid flow ID", nil, "")
	}

	var flow models.QuestionFlow
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&flow).Error; err != nil {
		return sendNotFound(r, "Question flow")
	}

	var req QuestionFlowRequest
	if err := r.Decode(&req, "json"); err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid request body", nil, "")
	}

	if req.Name != "" {
		flow.Name = req.Name
	}
	if req.Nodes != nil {
		entry := req.EntryNodeID
		if entry == "" {
			entry = flow.EntryNodeID
		}
		if msg := validateFlowGraph(entry, req.Nodes); msg != "" {
			return r.SendErrorEnvelope(fasthttp.StatusBadRequest, msg, nil, "")
		}
		flow.Nodes = req.Nodes
		flow.EntryNodeID = entry
	} else if req.EntryNodeID != "" {
		if msg := validateFlowGraph(req.EntryNodeID, flow.Nodes); msg != "" {
			return r.SendErrorEnvelope(fasthttp.StatusBadRequest, msg, nil, "")
		}
		flow.EntryNodeID = req.EntryNodeID
	}
	if req.IsEnabled != nil {
		flow.IsEnabled = *req.IsEnabled
	}
	if req.AIResponseOnComplete != nil {
		flow.AIResponseOnComplete = *req.AIResponseOnComplete
	}

	if err := a.DB.Save(&flow).Error; err != nil {
		a.Log.Error("Failed to update question flow", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to update question flow", nil, "")
	}

	a.invalidateFlowCache(r.RequestCtx, flow.ChatbotID)

	return r.SendEnvelope(flow)
}

// DeleteQuestionFlow deletes a question flow
func (a *App) DeleteQuestionFlow(r *fastglue.Request) error {
	orgID, err := getOrganizationID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusUnauthorized, "Unauthorized", nil, "")
	}

	id, err := pathID(r)
	if err != nil {
		return r.SendErrorEnvelope(fasthttp.StatusBadRequest, "Invalid flow ID", nil, "")
	}

	var flow models.QuestionFlow
	if err := a.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&flow).Error; err != nil {
		return sendNotFound(r, "Question flow")
	}

	if err := a.DB.Delete(&flow).Error; err != nil {
		a.Log.Error("Failed to delete question flow", "error", err)
		return r.SendErrorEnvelope(fasthttp.StatusInternalServerError, "Failed to delete question flow", nil, "")
	}

	a.invalidateFlowCache(r.RequestCtx, flow.ChatbotID)

	return r.SendEnvelope(map[string]string{"message": "Question flow deleted successfully"})
}
