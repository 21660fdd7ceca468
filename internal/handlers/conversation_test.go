package handlers_test

import (
	"errors"
	"os"
	"testing"

	"github.com/sagarjadhav/tablemate/internal/config"
	"github.com/sagarjadhav/tablemate/internal/handlers"
	"github.com/sagarjadhav/tablemate/internal/models"
	fixtures "github.com/sagarjadhav/tablemate/test/fixtures/models"
	"github.com/sagarjadhav/tablemate/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestHandleButtonReply_ExistingConversationIsReused(t *testing.T) {
	env := newPipelineEnv(t)
	env.createFlow(t, nil)
	phone := uniquePhone()
	existing := env.createConversation(t, phone, func(b *fixtures.ConversationBuilder) {
		b.WithMeta(models.MetaTableName, "dining-room-5")
	})

	res := env.tapButton(t, phone, handlers.FlowReplyID("welcome", 0), "See hours")
	require.True(t, res.Success)

	var count int64
	require.NoError(t, env.app.DB.Model(&models.Conversation{}).
		Where("chatbot_id = ? AND phone_number = ?", env.chatbot.ID, phone).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	conv := env.loadConversation(t, phone)
	assert.Equal(t, existing.ID, conv.ID)
	assert.Equal(t, "dining-room-5", conv.MetaString(models.MetaTableName))
}

func TestHandleButtonReply_ConversationLookupErrorIsNotFirstContact(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	env := newPipelineEnv(t)
	env.createFlow(t, nil)
	phone := uniquePhone()

	// A second connection whose conversation reads fail, standing in for a
	// database hiccup mid-pipeline. Channel lookups still work, so the
	// failure lands exactly on the conversation fetch.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Callback().Query().Before("gorm:query").
		Register("conversation_read_failure", func(tx *gorm.DB) {
			if _, ok := tx.Statement.Model.(*models.Conversation); ok {
				tx.AddError(errors.New("connection reset by peer"))
			}
		}))

	cfg := &config.Config{
		App: config.AppConfig{Name: "Tablemate"},
		Chatbot: config.ChatbotConfig{
			ErrorVisibility: config.ErrorVisibilityGeneric,
		},
	}
	wa := testutil.NewMockWhatsAppClient()
	app := handlers.New(cfg, db, nil, testutil.NopLogger(), wa, testutil.NewMockMenuService(), testutil.NewMockTranslator(), nil)

	res := app.HandleButtonReply(testutil.TestContext(t), env.channel.PhoneID, phone, "wamid.x",
		handlers.FlowReplyID("welcome", 0), "See hours", "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "conversation lookup failed")

	// The read failure must not be mistaken for first contact
	var count int64
	require.NoError(t, env.app.DB.Model(&models.Conversation{}).
		Where("phone_number = ?", phone).
		Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, 0, wa.MessageCount())
}
