package handlers_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sagarjadhav/tablemate/internal/handlers"
	"github.com/sagarjadhav/tablemate/pkg/whatsapp"
	fixtures "github.com/sagarjadhav/tablemate/test/fixtures/models"
	"github.com/sagarjadhav/tablemate/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleInteractiveMessage_UnsupportedMessageType(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := testutil.TestContext(t)

	msg := handlers.IncomingMessage{From: uniquePhone(), ID: "wamid.x", Type: "text"}

	res := env.app.HandleInteractiveMessage(ctx, env.channel.PhoneID, msg, "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "unsupported message type")

	// Rejected before any network or database I/O
	assert.Equal(t, 0, env.wa.MessageCount())
	assert.Empty(t, env.wa.ReadMessages)
}

func TestHandleInteractiveMessage_UnsupportedInteractiveType(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := testutil.TestContext(t)

	msg := interactiveMessage(t, uniquePhone(), "nfm_reply", "some-id", "Some title")

	res := env.app.HandleInteractiveMessage(ctx, env.channel.PhoneID, msg, "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "unsupported interactive type")
	assert.Equal(t, 0, env.wa.MessageCount())
	assert.Empty(t, env.wa.ReadMessages)
}

func TestHandleInteractiveMessage_MissingReplyPayload(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := testutil.TestContext(t)

	raw := []byte(`{"from":"15550000001","id":"wamid.x","type":"interactive","interactive":{"type":"button_reply"}}`)
	var msg handlers.IncomingMessage
	require.NoError(t, json.Unmarshal(raw, &msg))

	res := env.app.HandleInteractiveMessage(ctx, env.channel.PhoneID, msg, "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "missing button_reply payload")
	assert.Equal(t, 0, env.wa.MessageCount())
}

func TestHandleInteractiveMessage_ListReplyIsHandledLikeButtonReply(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, nil)
	ctx := testutil.TestContext(t)
	phone := uniquePhone()

	// Option 0 of the welcome node leads to the terminal hours node
	msg := interactiveMessage(t, phone, "list_reply", handlers.FlowReplyID("welcome", 0), "See hours")

	res := env.app.HandleInteractiveMessage(ctx, env.channel.PhoneID, msg, "Test Customer")
	assert.True(t, res.Success)

	sent := env.wa.GetMessagesSentTo(phone)
	require.Len(t, sent, 1)
	assert.Equal(t, "We are open 9-5.", sent[0].Content)
}

func TestHandleButtonReply_UnknownPhoneID(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := testutil.TestContext(t)

	res := env.app.HandleButtonReply(ctx, "phone-never-registered", uniquePhone(), "wamid.x", "welcome-option-0", "See hours", "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "no channel registered")
	assert.Equal(t, 0, env.wa.MessageCount())
}

func TestHandleButtonReply_AutoReplyDisabled(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, nil)
	phone := uniquePhone()
	env.createConversation(t, phone, func(b *fixtures.ConversationBuilder) {
		b.AutoReplyDisabled()
	})

	res := env.tapButton(t, phone, handlers.FlowReplyID("welcome", 0), "See hours")

	// The tap is recorded, the bot stays quiet
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "auto-reply disabled")
	assert.Equal(t, 0, env.wa.MessageCount())
}

func TestHandleButtonReply_RecordsIncomingMessage(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, nil)
	phone := uniquePhone()

	res := env.tapButton(t, phone, handlers.FlowReplyID("welcome", 0), "See hours")
	require.True(t, res.Success)

	conv := env.loadConversation(t, phone)
	assert.Equal(t, "Test Customer", conv.ProfileName)
	assert.NotNil(t, conv.LastMessageAt)

	var count int64
	require.NoError(t, env.app.DB.Table("conversation_messages").
		Where("conversation_id = ? AND role = ?", conv.ID, "user").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHandleButtonReply_MarksMessageRead(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, nil)
	phone := uniquePhone()

	env.tapButton(t, phone, handlers.FlowReplyID("welcome", 0), "See hours")

	require.Len(t, env.wa.ReadMessages, 1)
	assert.Equal(t, "wamid.incoming-"+phone, env.wa.ReadMessages[0])
}

func TestHandleButtonReply_MalformedButtonIsDropped(t *testing.T) {
	env := newPipelineEnv(t)
	phone := uniquePhone()

	// Neither an ordering button nor a flow reply. The tap is recorded and
	// dropped without answering the customer, and without consulting the AI
	// (which would report its own failure here, having no provider key).
	res := env.tapButton(t, phone, "legacy-button", "Old label")
	assert.False(t, res.Success)
	assert.Equal(t, "unrecognized button ID", res.Message)
	assert.Equal(t, 0, env.wa.MessageCount())
}

func TestHandleButtonReply_NeverPanicsToCaller(t *testing.T) {
	env := newPipelineEnv(t)
	phone := uniquePhone()

	// A send override that panics must be converted into a failed Result.
	env.wa.SendTextMessageFunc = func(_ context.Context, _ *whatsapp.Account, _, _ string) (string, error) {
		panic("transport exploded")
	}

	env.createOrderAction(t, func(b *fixtures.OrderActionBuilder) { b.WithSlug("panicslug") })

	res := env.tapButton(t, phone, "om-menu-t1-panicslug-item1", "Margherita")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "transport exploded")
}
