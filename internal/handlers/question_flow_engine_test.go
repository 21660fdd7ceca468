package handlers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sagarjadhav/tablemate/internal/handlers"
	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/sagarjadhav/tablemate/pkg/whatsapp"
	fixtures "github.com/sagarjadhav/tablemate/test/fixtures/models"
	"github.com/sagarjadhav/tablemate/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// branchingNodes is a three-node graph whose entry option leads to a node
// carrying a message, an image and follow-up options.
func branchingNodes() models.FlowNodeMap {
	return models.FlowNodeMap{
		"welcome": {
			Question: "What can we do for you?",
			Options: []models.FlowOption{
				{Label: "Specials", NextNodeID: "specials"},
				{Label: "Nothing", NextNodeID: ""},
			},
		},
		"specials": {
			Message:  "Today's specials:",
			Image:    "https://cdn.example.com/specials.jpg",
			Question: "Want to hear more?",
			Options: []models.FlowOption{
				{Label: "Done", NextNodeID: ""},
			},
		},
	}
}

func TestFlowReply_AdvancesAndSendsInOrder(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, func(b *fixtures.QuestionFlowBuilder) {
		b.WithNodes("welcome", branchingNodes())
	})
	phone := uniquePhone()

	res := env.tapButton(t, phone, handlers.FlowReplyID("welcome", 0), "Specials")
	require.True(t, res.Success)

	// Message first, then the image, buttons last
	assert.Equal(t, []string{"text", "image", "buttons"}, env.wa.MessageTypes())

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 3)
	assert.Equal(t, "Today's specials:", sent[0].Content)

	image := sent[1].Content.(map[string]interface{})
	assert.Equal(t, "https://cdn.example.com/specials.jpg", image["image_url"])

	buttons := sent[2].Content.(map[string]interface{})
	assert.Equal(t, "Want to hear more?", buttons["body"])
	opts := buttons["buttons"].([]whatsapp.Button)
	require.Len(t, opts, 1)
	assert.Equal(t, handlers.FlowReplyID("specials", 0), opts[0].ID)
	assert.Equal(t, "Done", opts[0].Title)

	// The conversation now points at the node it was shown
	conv := env.loadConversation(t, phone)
	assert.Equal(t, "specials", conv.MetaString(models.MetaCurrentNodeID))
}

func TestFlowReply_TerminalOptionClearsPosition(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, func(b *fixtures.QuestionFlowBuilder) {
		b.WithNodes("welcome", branchingNodes())
	})
	phone := uniquePhone()
	env.createConversation(t, phone, func(b *fixtures.ConversationBuilder) {
		b.WithMeta(models.MetaCurrentNodeID, "welcome")
	})

	res := env.tapButton(t, phone, handlers.FlowReplyID("welcome", 1), "Nothing")
	require.True(t, res.Success)

	// Terminal option, nothing more to say
	assert.Equal(t, 0, env.wa.MessageCount())
	conv := env.loadConversation(t, phone)
	assert.Empty(t, conv.MetaString(models.MetaCurrentNodeID))
}

func TestFlowReply_TerminalNodeEndsFlow(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, nil)
	phone := uniquePhone()

	// Option 0 of the default fixture flow leads to the hours node, which
	// has no options and therefore ends the flow after its message.
	res := env.tapButton(t, phone, handlers.FlowReplyID("welcome", 0), "See hours")
	require.True(t, res.Success)

	assert.Equal(t, []string{"text"}, env.wa.MessageTypes())
	conv := env.loadConversation(t, phone)
	assert.Empty(t, conv.MetaString(models.MetaCurrentNodeID))
}

func TestFlowReply_StaleNodeTerminatesGracefully(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, nil)
	phone := uniquePhone()
	env.createConversation(t, phone, func(b *fixtures.ConversationBuilder) {
		b.WithMeta(models.MetaCurrentNodeID, "ghost")
	})

	// The flow was edited and the node the customer is replying to is gone
	res := env.tapButton(t, phone, handlers.FlowReplyID("ghost", 0), "Old option")
	require.True(t, res.Success)

	assert.Equal(t, 0, env.wa.MessageCount())
	conv := env.loadConversation(t, phone)
	assert.Empty(t, conv.MetaString(models.MetaCurrentNodeID))
}

func TestFlowReply_OptionIndexOutOfRange(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, nil)
	phone := uniquePhone()

	res := env.tapButton(t, phone, handlers.FlowReplyID("welcome", 9), "Phantom option")
	require.True(t, res.Success)
	assert.Equal(t, 0, env.wa.MessageCount())
}

func TestFlowReply_SendFailureDoesNotEndFlow(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, func(b *fixtures.QuestionFlowBuilder) {
		b.WithNodes("welcome", branchingNodes()).WithAIResponseOnComplete()
	})
	phone := uniquePhone()
	env.createConversation(t, phone, func(b *fixtures.ConversationBuilder) {
		b.WithMeta(models.MetaCurrentNodeID, "welcome")
	})

	env.wa.SendInteractiveButtonsFunc = func(_ context.Context, _ *whatsapp.Account, _, _ string, _ []whatsapp.Button) (string, error) {
		return "", errors.New("provider timeout")
	}

	res := env.tapButton(t, phone, handlers.FlowReplyID("welcome", 0), "Specials")

	// A failed option send is not flow completion: no completion webhook
	// side effects, no AI takeover, and the customer can tap again from
	// where they were.
	require.True(t, res.Success)
	assert.NotContains(t, res.Message, "AI")

	conv := env.loadConversation(t, phone)
	assert.Equal(t, "welcome", conv.MetaString(models.MetaCurrentNodeID))
}

func TestFlowReply_DisabledFlowIsIgnored(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, func(b *fixtures.QuestionFlowBuilder) {
		b.Disabled()
	})
	phone := uniquePhone()

	res := env.tapButton(t, phone, handlers.FlowReplyID("welcome", 0), "See hours")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "question flow disabled")
	assert.Equal(t, 0, env.wa.MessageCount())
}

func TestStartQuestionFlow_SendsEntryNode(t *testing.T) {
	env := newPipelineEnv(t)
	flow := env.createFlow(t, nil)
	phone := uniquePhone()
	conv := env.createConversation(t, phone, nil)
	ctx := testutil.TestContext(t)

	live := env.app.StartQuestionFlow(ctx, &env.channel, &conv, &flow)
	assert.True(t, live)

	// The fixture entry node has a message and two options
	assert.Equal(t, []string{"text", "buttons"}, env.wa.MessageTypes())

	sent := env.wa.GetMessagesSentTo(phone)
	buttons := sent[1].Content.(map[string]interface{})
	assert.Equal(t, "What can we do for you?", buttons["body"])
}

func TestStartQuestionFlow_MissingEntryNode(t *testing.T) {
	env := newPipelineEnv(t)
	flow := env.createFlow(t, func(b *fixtures.QuestionFlowBuilder) {
		b.WithNodes("nonexistent", branchingNodes())
	})
	phone := uniquePhone()
	conv := env.createConversation(t, phone, nil)
	ctx := testutil.TestContext(t)

	live := env.app.StartQuestionFlow(ctx, &env.channel, &conv, &flow)
	assert.False(t, live)
	assert.Equal(t, 0, env.wa.MessageCount())
}
