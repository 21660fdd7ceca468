// Package models provides factory functions for creating test data.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultPassword is the default password for test users.
	DefaultPassword = "password123"
)

// defaultPasswordHash returns a bcrypt hash of the default test password.
func defaultPasswordHash() string {
	hash, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	return string(hash)
}

// OrganizationBuilder provides a fluent interface for creating test organizations.
type OrganizationBuilder struct {
	org models.Organization
}

// NewOrganization creates a new organization builder with default values.
func NewOrganization() *OrganizationBuilder {
	id := uuid.New()
	return &OrganizationBuilder{
		org: models.Organization{
			BaseModel: models.BaseModel{
				ID:        id,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
			Name:     "Test Organization",
			Slug:     "test-org-" + id.String()[:8],
			Settings: models.JSONB{},
		},
	}
}

// WithID sets the organization ID.
func (b *OrganizationBuilder) WithID(id uuid.UUID) *OrganizationBuilder {
	b.org.ID = id
	return b
}

// WithName sets the organization name.
func (b *OrganizationBuilder) WithName(name string) *OrganizationBuilder {
	b.org.Name = name
	return b
}

// WithSlug sets the organization slug.
func (b *OrganizationBuilder) WithSlug(slug string) *OrganizationBuilder {
	b.org.Slug = slug
	return b
}

// Build returns the built organization.
func (b *OrganizationBuilder) Build() models.Organization {
	return b.org
}

// UserBuilder provides a fluent interface for creating test users.
type UserBuilder struct {
	user models.User
}

// NewUser creates a new user builder with default values.
func NewUser(orgID uuid.UUID) *UserBuilder {
	id := uuid.New()
	return &UserBuilder{
		user: models.User{
			BaseModel: models.BaseModel{
				ID:        id,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
			OrganizationID: orgID,
			Email:          "test-" + id.String()[:8] + "@example.com",
			PasswordHash:   defaultPasswordHash(),
			FullName:       "Test User",
			Role:           "agent",
			IsActive:       true,
		},
	}
}

// WithID sets the user ID.
func (b *UserBuilder) WithID(id uuid.UUID) *UserBuilder {
	b.user.ID = id
	return b
}

// WithEmail sets the user email.
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.user.Email = email
	return b
}

// WithPassword sets the user password (hashes it).
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	b.user.PasswordHash = string(hash)
	return b
}

// AsAdmin sets the user role to admin.
func (b *UserBuilder) AsAdmin() *UserBuilder {
	b.user.Role = "admin"
	return b
}

// Inactive sets the user as inactive.
func (b *UserBuilder) Inactive() *UserBuilder {
	b.user.IsActive = false
	return b
}

// Build returns the built user.
func (b *UserBuilder) Build() models.User {
	return b.user
}

// ChatbotBuilder provides a fluent interface for creating test chatbots.
type ChatbotBuilder struct {
	chatbot models.Chatbot
}

// NewChatbot creates a new chatbot builder with default values.
func NewChatbot(orgID uuid.UUID) *ChatbotBuilder {
	id := uuid.New()
	return &ChatbotBuilder{
		chatbot: models.Chatbot{
			BaseModel: models.BaseModel{
				ID:        id,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
			OrganizationID: orgID,
			Name:           "Test Chatbot " + id.String()[:8],
			SystemPrompt:   "You are a helpful restaurant assistant.",
			IsActive:       true,
		},
	}
}

// WithID sets the chatbot ID.
func (b *ChatbotBuilder) WithID(id uuid.UUID) *ChatbotBuilder {
	b.chatbot.ID = id
	return b
}

// WithName sets the chatbot name.
func (b *ChatbotBuilder) WithName(name string) *ChatbotBuilder {
	b.chatbot.Name = name
	return b
}

// WithSystemPrompt sets the system prompt.
func (b *ChatbotBuilder) WithSystemPrompt(prompt string) *ChatbotBuilder {
	b.chatbot.SystemPrompt = prompt
	return b
}

// Build returns the built chatbot.
func (b *ChatbotBuilder) Build() models.Chatbot {
	return b.chatbot
}

// ChannelBuilder provides a fluent interface for creating test channels.
type ChannelBuilder struct {
	channel models.Channel
}

// NewChannel creates a new channel builder with default values.
func NewChannel(orgID, chatbotID uuid.UUID) *ChannelBuilder {
	id := uuid.New()
	return &ChannelBuilder{
		channel: models.Channel{
			BaseModel: models.BaseModel{
				ID:        id,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
			OrganizationID: orgID,
			ChatbotID:      chatbotID,
			Name:           "test-channel-" + id.String()[:8],
			PhoneID:        "phone-" + id.String()[:8],
			BusinessID:     "111222333",
			AccessToken:    "test-access-token",
			APIVersion:     "v21.0",
			Status:         "active",
		},
	}
}

// WithID sets the channel ID.
func (b *ChannelBuilder) WithID(id uuid.UUID) *ChannelBuilder {
	b.channel.ID = id
	return b
}

// WithPhoneID sets the phone ID.
func (b *ChannelBuilder) WithPhoneID(phoneID string) *ChannelBuilder {
	b.channel.PhoneID = phoneID
	return b
}

// WithReplyDelay sets the per-channel reply delay.
func (b *ChannelBuilder) WithReplyDelay(secs int) *ChannelBuilder {
	b.channel.ReplyDelaySecs = secs
	return b
}

// Inactive sets the channel status to inactive.
func (b *ChannelBuilder) Inactive() *ChannelBuilder {
	b.channel.Status = "inactive"
	return b
}

// Build returns the built channel.
func (b *ChannelBuilder) Build() models.Channel {
	return b.channel
}

// ConversationBuilder provides a fluent interface for creating test conversations.
type ConversationBuilder struct {
	conv models.Conversation
}

// NewConversation creates a new conversation builder with default values.
func NewConversation(orgID, chatbotID, channelID uuid.UUID) *ConversationBuilder {
	id := uuid.New()
	return &ConversationBuilder{
		conv: models.Conversation{
			BaseModel: models.BaseModel{
				ID:        id,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
			OrganizationID: orgID,
			ChatbotID:      chatbotID,
			ChannelID:      channelID,
			PhoneNumber:    "1234567890",
			ProfileName:    "Test Customer",
			Metadata:       models.JSONB{},
		},
	}
}

// WithID sets the conversation ID.
func (b *ConversationBuilder) WithID(id uuid.UUID) *ConversationBuilder {
	b.conv.ID = id
	return b
}

// WithPhone sets the customer phone number.
func (b *ConversationBuilder) WithPhone(phone string) *ConversationBuilder {
	b.conv.PhoneNumber = phone
	return b
}

// WithMeta sets one metadata key.
func (b *ConversationBuilder) WithMeta(key, value string) *ConversationBuilder {
	b.conv.Metadata[key] = value
	return b
}

// AutoReplyDisabled disables automatic replies.
func (b *ConversationBuilder) AutoReplyDisabled() *ConversationBuilder {
	b.conv.AutoReplyDisabled = true
	return b
}

// Build returns the built conversation.
func (b *ConversationBuilder) Build() models.Conversation {
	return b.conv
}

// QuestionFlowBuilder provides a fluent interface for creating test flows.
type QuestionFlowBuilder struct {
	flow models.QuestionFlow
}

// NewQuestionFlow creates a question flow builder with a two-node graph.
func NewQuestionFlow(orgID, chatbotID uuid.UUID) *QuestionFlowBuilder {
	id := uuid.New()
	return &QuestionFlowBuilder{
		flow: models.QuestionFlow{
			BaseModel: models.BaseModel{
				ID:        id,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
			OrganizationID: orgID,
			ChatbotID:      chatbotID,
			Name:           "Test Flow " + id.String()[:8],
			IsEnabled:      true,
			EntryNodeID:    "welcome",
			Nodes: models.FlowNodeMap{
				"welcome": {
					Message:  "Welcome!",
					Question: "What can we do for you?",
					Options: []models.FlowOption{
						{Label: "See hours", NextNodeID: "hours"},
						{Label: "Nothing", NextNodeID: ""},
					},
				},
				"hours": {
					Message: "We are open 9-5.",
				},
			},
		},
	}
}

// WithNodes replaces the flow graph.
func (b *QuestionFlowBuilder) WithNodes(entryNodeID string, nodes models.FlowNodeMap) *QuestionFlowBuilder {
	b.flow.EntryNodeID = entryNodeID
	b.flow.Nodes = nodes
	return b
}

// Disabled sets the flow as disabled.
func (b *QuestionFlowBuilder) Disabled() *QuestionFlowBuilder {
	b.flow.IsEnabled = false
	return b
}

// WithAIResponseOnComplete enables the AI follow-up after the flow ends.
func (b *QuestionFlowBuilder) WithAIResponseOnComplete() *QuestionFlowBuilder {
	b.flow.AIResponseOnComplete = true
	return b
}

// Build returns the built question flow.
func (b *QuestionFlowBuilder) Build() models.QuestionFlow {
	return b.flow
}

// OrderActionBuilder provides a fluent interface for creating test order actions.
type OrderActionBuilder struct {
	action models.OrderAction
}

// NewOrderAction creates an order action builder with a small sample menu.
func NewOrderAction(orgID, chatbotID uuid.UUID) *OrderActionBuilder {
	id := uuid.New()
	return &OrderActionBuilder{
		action: models.OrderAction{
			BaseModel: models.BaseModel{
				ID:        id,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
			OrganizationID: orgID,
			ChatbotID:      chatbotID,
			Name:           "Test Menu",
			Slug:           "menu" + id.String()[:6],
			Categories: models.MenuCategoryList{
				{ID: "cat1", Name: "Pizza"},
				{ID: "cat2", Name: "Drinks"},
			},
			MenuItems: models.MenuItemList{
				{ID: "item1", Name: "Margherita", Category: "cat1", Price: 9.50, Description: "Tomato, mozzarella, basil", Image: "https://cdn.example.com/margherita.jpg"},
				{ID: "item2", Name: "Cola", Category: "cat2", Price: 2.50},
			},
			Language: "en",
			Currency: "USD",
			IsActive: true,
		},
	}
}

// WithSlug sets the action slug.
func (b *OrderActionBuilder) WithSlug(slug string) *OrderActionBuilder {
	b.action.Slug = slug
	return b
}

// WithLanguage sets the action language.
func (b *OrderActionBuilder) WithLanguage(lang string) *OrderActionBuilder {
	b.action.Language = lang
	return b
}

// WithCurrency sets the action currency.
func (b *OrderActionBuilder) WithCurrency(currency string) *OrderActionBuilder {
	b.action.Currency = currency
	return b
}

// WithMenuItems replaces the cached menu items.
func (b *OrderActionBuilder) WithMenuItems(items models.MenuItemList) *OrderActionBuilder {
	b.action.MenuItems = items
	return b
}

// Inactive sets the action as inactive.
func (b *OrderActionBuilder) Inactive() *OrderActionBuilder {
	b.action.IsActive = false
	return b
}

// Build returns the built order action.
func (b *OrderActionBuilder) Build() models.OrderAction {
	return b.action
}

// WebhookEndpointBuilder provides a fluent interface for creating test webhook endpoints.
type WebhookEndpointBuilder struct {
	endpoint models.WebhookEndpoint
}

// NewWebhookEndpoint creates a webhook endpoint builder with default values.
func NewWebhookEndpoint(orgID uuid.UUID) *WebhookEndpointBuilder {
	id := uuid.New()
	return &WebhookEndpointBuilder{
		endpoint: models.WebhookEndpoint{
			BaseModel: models.BaseModel{
				ID:        id,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
			OrganizationID: orgID,
			Name:           "Test Webhook " + id.String()[:8],
			URL:            "https://example.com/hook",
			Events:         models.StringArray{"order.confirmed"},
			Headers:        models.JSONB{},
			IsActive:       true,
		},
	}
}

// WithEvents sets the subscribed events.
func (b *WebhookEndpointBuilder) WithEvents(events ...string) *WebhookEndpointBuilder {
	b.endpoint.Events = models.StringArray(events)
	return b
}

// WithSecret sets the HMAC secret.
func (b *WebhookEndpointBuilder) WithSecret(secret string) *WebhookEndpointBuilder {
	b.endpoint.Secret = secret
	return b
}

// Build returns the built webhook endpoint.
func (b *WebhookEndpointBuilder) Build() models.WebhookEndpoint {
	return b.endpoint
}
