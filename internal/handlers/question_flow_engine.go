package handlers

import (
	"context"
	"time"

	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/sagarjadhav/tablemate/pkg/whatsapp"
)

// processFlowReply resolves the option the customer picked and walks the
// flow to the next node. Returns true while the flow is still live, false
// once it has terminated (including stale or dangling references, which
// clear the flow position instead of erroring).
func (a *App) processFlowReply(ctx context.Context, channel *models.Channel, conv *models.Conversation, flow *models.QuestionFlow, nodeID string, optionIndex int) bool {
	node, ok := flow.Nodes[nodeID]
	if !ok {
		// Reply to a node that no longer exists, the flow was edited
		// under the customer.
		a.Log.Warn("Flow node not found, terminating flow", "node_id", nodeID, "flow_id", flow.ID)
		a.clearFlowPosition(conv)
		return false
	}

	if optionIndex >= len(node.Options) {
		a.Log.Warn("Flow option out of range, terminating flow",
			"node_id", nodeID,
			"option_index", optionIndex,
			"options", len(node.Options),
		)
		a.clearFlowPosition(conv)
		return false
	}

	nextNodeID := node.Options[optionIndex].NextNodeID
	if nextNodeID == "" {
		a.clearFlowPosition(conv)
		return false
	}

	nextNode, ok := flow.Nodes[nextNodeID]
	if !ok {
		a.Log.Warn("Flow references missing node, terminating flow", "next_node_id", nextNodeID, "flow_id", flow.ID)
		a.clearFlowPosition(conv)
		return false
	}

	return a.sendFlowNode(ctx, channel, conv, nextNodeID, &nextNode)
}

// StartQuestionFlow sends a flow's entry node to a conversation. Used when
// a customer first engages and the chatbot has an enabled flow.
func (a *App) StartQuestionFlow(ctx context.Context, channel *models.Channel, conv *models.Conversation, flow *models.QuestionFlow) bool {
	entry, ok := flow.Nodes[flow.EntryNodeID]
	if !ok {
		a.Log.Warn("Flow entry node not found", "entry_node_id", flow.EntryNodeID, "flow_id", flow.ID)
		return false
	}
	return a.sendFlowNode(ctx, channel, conv, flow.EntryNodeID, &entry)
}

// sendFlowNode delivers one node: its message, then its image, then its
// question with option buttons. A node without options is terminal and
// clears the flow position.
func (a *App) sendFlowNode(ctx context.Context, channel *models.Channel, conv *models.Conversation, nodeID string, node *models.FlowNode) bool {
	if node.Message != "" {
		if _, err := a.sendAndSaveTextMessage(ctx, channel, conv, node.Message); err != nil {
			a.Log.Error("Failed to send flow message", "error", err, "node_id", nodeID)
		}
	}

	if node.Image != "" {
		if _, err := a.sendAndSaveImageMessage(ctx, channel, conv, node.Image, ""); err != nil {
			a.Log.Error("Failed to send flow image", "error", err, "node_id", nodeID)
		} else {
			// Give the image time to render before the buttons arrive
			a.sleep(ctx, time.Duration(a.Config.Chatbot.FlowImageDelaySecs)*time.Second)
		}
	}

	if len(node.Options) == 0 {
		a.clearFlowPosition(conv)
		return false
	}

	buttons := make([]whatsapp.Button, 0, len(node.Options))
	for i, opt := range node.Options {
		buttons = append(buttons, whatsapp.Button{
			ID:    FlowReplyID(nodeID, i),
			Title: opt.Label,
		})
	}

	body := node.Question
	if body == "" {
		body = node.Message
	}

	if _, err := a.sendAndSaveInteractiveButtons(ctx, channel, conv, body, buttons); err != nil {
		// Transient send failure, not a terminal node. The position is
		// left where it was so the customer can tap again.
		a.Log.Error("Failed to send flow options", "error", err, "node_id", nodeID)
		return true
	}

	conv.SetMeta(models.MetaCurrentNodeID, nodeID)
	if err := a.saveConversationMeta(conv); err != nil {
		a.Log.Error("Failed to save flow position", "error", err, "conversation_id", conv.ID)
	}
	return true
}

// clearFlowPosition forgets where the conversation was in the flow
func (a *App) clearFlowPosition(conv *models.Conversation) {
	conv.ClearMeta(models.MetaCurrentNodeID)
	if err := a.saveConversationMeta(conv); err != nil {
		a.Log.Error("Failed to clear flow position", "error", err, "conversation_id", conv.ID)
	}
}
