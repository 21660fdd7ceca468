package handlers_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/internal/config"
	"github.com/sagarjadhav/tablemate/internal/handlers"
	"github.com/sagarjadhav/tablemate/internal/models"
	fixtures "github.com/sagarjadhav/tablemate/test/fixtures/models"
	"github.com/sagarjadhav/tablemate/test/testutil"
	"github.com/stretchr/testify/require"
)

// pipelineEnv wires an App against mocks and a persisted chatbot/channel
// pair, ready to feed webhook-shaped input through the button pipeline.
// All pacing delays are zeroed so tests run at full speed.
type pipelineEnv struct {
	app     *handlers.App
	wa      *testutil.MockWhatsAppClient
	menu    *testutil.MockMenuService
	tr      *testutil.MockTranslator
	org     models.Organization
	chatbot models.Chatbot
	channel models.Channel
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)

	env := &pipelineEnv{
		wa:   testutil.NewMockWhatsAppClient(),
		menu: testutil.NewMockMenuService(),
		tr:   testutil.NewMockTranslator(),
	}

	cfg := &config.Config{
		App: config.AppConfig{Name: "Tablemate"},
		JWT: config.JWTConfig{Secret: testJWTSecret},
		WhatsApp: config.WhatsAppConfig{
			WebhookVerifyToken: "verify-token",
		},
		Chatbot: config.ChatbotConfig{
			ErrorVisibility: config.ErrorVisibilityGeneric,
		},
	}

	env.app = handlers.New(cfg, db, nil, testutil.NopLogger(), env.wa, env.menu, env.tr, nil)

	env.org = fixtures.NewOrganization().Build()
	require.NoError(t, db.Create(&env.org).Error)

	env.chatbot = fixtures.NewChatbot(env.org.ID).Build()
	require.NoError(t, db.Create(&env.chatbot).Error)

	env.channel = fixtures.NewChannel(env.org.ID, env.chatbot.ID).Build()
	require.NoError(t, db.Create(&env.channel).Error)

	return env
}

// uniquePhone returns a customer phone number unused by other tests
func uniquePhone() string {
	return fmt.Sprintf("1555%010d", uuid.New().ID())
}

// createConversation persists a conversation for a phone number, applying
// any builder tweaks first.
func (e *pipelineEnv) createConversation(t *testing.T, phone string, tweak func(*fixtures.ConversationBuilder)) models.Conversation {
	t.Helper()

	b := fixtures.NewConversation(e.org.ID, e.chatbot.ID, e.channel.ID).WithPhone(phone)
	if tweak != nil {
		tweak(b)
	}
	conv := b.Build()
	require.NoError(t, e.app.DB.Create(&conv).Error)
	return conv
}

// createFlow persists a question flow for the env's chatbot.
func (e *pipelineEnv) createFlow(t *testing.T, tweak func(*fixtures.QuestionFlowBuilder)) models.QuestionFlow {
	t.Helper()

	b := fixtures.NewQuestionFlow(e.org.ID, e.chatbot.ID)
	if tweak != nil {
		tweak(b)
	}
	flow := b.Build()
	require.NoError(t, e.app.DB.Create(&flow).Error)
	return flow
}

// createOrderAction persists an order action with the sample menu.
func (e *pipelineEnv) createOrderAction(t *testing.T, tweak func(*fixtures.OrderActionBuilder)) models.OrderAction {
	t.Helper()

	b := fixtures.NewOrderAction(e.org.ID, e.chatbot.ID)
	if tweak != nil {
		tweak(b)
	}
	action := b.Build()
	require.NoError(t, e.app.DB.Create(&action).Error)
	return action
}

// loadConversation reloads the pipeline's conversation for a phone number.
func (e *pipelineEnv) loadConversation(t *testing.T, phone string) models.Conversation {
	t.Helper()

	var conv models.Conversation
	require.NoError(t, e.app.DB.
		Where("chatbot_id = ? AND phone_number = ?", e.chatbot.ID, phone).
		First(&conv).Error)
	return conv
}

// tapButton runs a button reply through the full pipeline entry point.
func (e *pipelineEnv) tapButton(t *testing.T, phone, buttonID, buttonTitle string) handlers.Result {
	t.Helper()
	ctx := testutil.TestContext(t)
	return e.app.HandleButtonReply(ctx, e.channel.PhoneID, phone, "wamid.incoming-"+phone, buttonID, buttonTitle, "Test Customer")
}

// interactiveMessage builds an IncomingMessage the way the Cloud API
// delivers it, via the wire format rather than anonymous struct literals.
func interactiveMessage(t *testing.T, from, interactiveType, replyID, title string) handlers.IncomingMessage {
	t.Helper()

	field := "button_reply"
	if interactiveType == "list_reply" {
		field = "list_reply"
	}

	raw := map[string]any{
		"from":      from,
		"id":        "wamid.incoming-" + from,
		"timestamp": "1700000000",
		"type":      "interactive",
		"interactive": map[string]any{
			"type": interactiveType,
			field: map[string]string{
				"id":    replyID,
				"title": title,
			},
		},
	}

	data, err := json.Marshal(raw)
	require.NoError(t, err)

	var msg handlers.IncomingMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}
