package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// StringArray is a custom type for string lists stored as JSONB
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, s)
}

// FlowOption is one answer choice on a flow node. An empty NextNodeID marks
// a terminal edge.
type FlowOption struct {
	Label      string `json:"label"`
	NextNodeID string `json:"next_node_id,omitempty"`
}

// FlowNode is one step of a question flow: a message, an optional image and
// an optional multiple-choice question.
type FlowNode struct {
	Message  string       `json:"message"`
	Image    string       `json:"image,omitempty"`
	Question string       `json:"question,omitempty"`
	Options  []FlowOption `json:"options,omitempty"`
}

// FlowNodeMap stores a question-flow graph keyed by node ID as JSONB
type FlowNodeMap map[string]FlowNode

func (m FlowNodeMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *FlowNodeMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, m)
}

// MenuCategory is one browsable section of a digital menu
type MenuCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MenuItem is one orderable item of a digital menu
type MenuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	Image       string  `json:"image,omitempty"`
}

// MenuCategoryList stores menu categories as JSONB
type MenuCategoryList []MenuCategory

func (l MenuCategoryList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *MenuCategoryList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, l)
}

// MenuItemList stores menu items as JSONB
type MenuItemList []MenuItem

func (l MenuItemList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *MenuItemList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, l)
}

// BaseModel contains common fields for all models
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// Organization represents a tenant (typically one restaurant or group)
type Organization struct {
	BaseModel
	Name     string `gorm:"size:255;not null" json:"name"`
	Slug     string `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Settings JSONB  `gorm:"type:jsonb;default:'{}'" json:"settings"`

	// Relations
	Users    []User    `gorm:"foreignKey:OrganizationID" json:"users,omitempty"`
	Chatbots []Chatbot `gorm:"foreignKey:OrganizationID" json:"chatbots,omitempty"`
}

func (Organization) TableName() string {
	return "organizations"
}

// User represents a dashboard user
type User struct {
	BaseModel
	OrganizationID uuid.UUID `gorm:"type:uuid;index" json:"organization_id"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash   string    `gorm:"size:255" json:"-"`
	FullName       string    `gorm:"size:255" json:"full_name"`
	Role           string    `gorm:"size:50;default:'agent'" json:"role"` // admin, agent
	IsActive       bool      `gorm:"default:true" json:"is_active"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Chatbot is one configured ordering assistant. Channels, question flows and
// order actions all hang off a chatbot.
type Chatbot struct {
	BaseModel
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	SystemPrompt   string    `gorm:"type:text" json:"system_prompt"`
	GreetingText   string    `gorm:"type:text" json:"greeting_text"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Channels     []Channel     `gorm:"foreignKey:ChatbotID" json:"channels,omitempty"`
}

func (Chatbot) TableName() string {
	return "chatbots"
}

// Channel is a registered WhatsApp Business phone number bound to a chatbot
type Channel struct {
	BaseModel
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	ChatbotID      uuid.UUID `gorm:"type:uuid;index;not null" json:"chatbot_id"`
	Name           string    `gorm:"size:100;uniqueIndex:idx_channel_org_name;not null" json:"name"`
	PhoneID        string    `gorm:"size:100;uniqueIndex;not null" json:"phone_id"`
	BusinessID     string    `gorm:"size:100" json:"business_id"`
	AccessToken    string    `gorm:"type:text;not null" json:"-"`
	APIVersion     string    `gorm:"size:20;default:'v21.0'" json:"api_version"`
	ReplyDelaySecs int       `gorm:"default:0" json:"reply_delay_secs"` // 0 = use the global default
	Status         string    `gorm:"size:20;default:'active'" json:"status"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Chatbot      *Chatbot      `gorm:"foreignKey:ChatbotID" json:"chatbot,omitempty"`
}

func (Channel) TableName() string {
	return "channels"
}

// Conversation metadata keys. The bag also carries anything the menu
// service round-trips.
const (
	MetaTableName     = "table_name"
	MetaOrderActionID = "order_action_id"
	MetaCurrentNodeID = "current_node_id"
	MetaCartQuantity  = "cart_quantity"
	MetaLanguage      = "language"
	MetaCurrency      = "currency"
)

// Conversation tracks one (chatbot, customer phone, channel) thread
type Conversation struct {
	BaseModel
	OrganizationID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"organization_id"`
	ChatbotID         uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_conv_chatbot_phone;not null" json:"chatbot_id"`
	ChannelID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"channel_id"`
	PhoneNumber       string     `gorm:"size:20;uniqueIndex:idx_conv_chatbot_phone;not null" json:"phone_number"`
	ProfileName       string     `gorm:"size:255" json:"profile_name"`
	AutoReplyDisabled bool       `gorm:"default:false" json:"auto_reply_disabled"`
	Metadata          JSONB      `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty"`

	// Relations
	Organization *Organization         `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Chatbot      *Chatbot              `gorm:"foreignKey:ChatbotID" json:"chatbot,omitempty"`
	Channel      *Channel              `gorm:"foreignKey:ChannelID" json:"channel,omitempty"`
	Messages     []ConversationMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// MetaString reads a string value from the metadata bag
func (c *Conversation) MetaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	if v, ok := c.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// SetMeta writes a value into the metadata bag, allocating it if needed
func (c *Conversation) SetMeta(key string, value interface{}) {
	if c.Metadata == nil {
		c.Metadata = JSONB{}
	}
	c.Metadata[key] = value
}

// ClearMeta removes a key from the metadata bag
func (c *Conversation) ClearMeta(key string) {
	if c.Metadata != nil {
		delete(c.Metadata, key)
	}
}

// ConversationMessage is one turn of a conversation's history
type ConversationMessage struct {
	BaseModel
	OrganizationID    uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	ConversationID    uuid.UUID `gorm:"type:uuid;index;not null" json:"conversation_id"`
	WhatsAppMessageID string    `gorm:"column:whatsapp_message_id;size:255;index" json:"whatsapp_message_id"`
	Role              string    `gorm:"size:10;not null" json:"role"`         // user, assistant
	MessageType       string    `gorm:"size:20;not null" json:"message_type"` // text, image, interactive
	Content           string    `gorm:"type:text" json:"content"`
	MediaURL          string    `gorm:"type:text" json:"media_url"`
	InteractiveData   JSONB     `gorm:"type:jsonb" json:"interactive_data"`
	Confidence        *float64  `json:"confidence,omitempty"`
	Status            string    `gorm:"size:20;default:'pending'" json:"status"` // pending, sent, failed
	ErrorMessage      string    `gorm:"type:text" json:"error_message"`

	// Relations
	Conversation *Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
}

func (ConversationMessage) TableName() string {
	return "conversation_messages"
}

// QuestionFlow is the directed-graph state machine walked one node per
// button reply. There is at most one flow per chatbot.
type QuestionFlow struct {
	BaseModel
	OrganizationID       uuid.UUID   `gorm:"type:uuid;index;not null" json:"organization_id"`
	ChatbotID            uuid.UUID   `gorm:"type:uuid;uniqueIndex;not null" json:"chatbot_id"`
	Name                 string      `gorm:"size:255;not null" json:"name"`
	IsEnabled            bool        `gorm:"default:true" json:"is_enabled"`
	EntryNodeID          string      `gorm:"size:100" json:"entry_node_id"`
	Nodes                FlowNodeMap `gorm:"type:jsonb;default:'{}'" json:"nodes"`
	AIResponseOnComplete bool        `gorm:"default:false" json:"ai_response_on_complete"`

	// Relations
	Chatbot *Chatbot `gorm:"foreignKey:ChatbotID" json:"chatbot,omitempty"`
}

func (QuestionFlow) TableName() string {
	return "question_flows"
}

// OrderAction is one digital-menu binding: the categories and items the
// ordering buttons address, plus presentation settings.
type OrderAction struct {
	BaseModel
	OrganizationID uuid.UUID        `gorm:"type:uuid;index;not null" json:"organization_id"`
	ChatbotID      uuid.UUID        `gorm:"type:uuid;index;not null" json:"chatbot_id"`
	Name           string           `gorm:"size:255;not null" json:"name"`
	Slug           string           `gorm:"size:100;uniqueIndex;not null" json:"slug"` // embedded in button IDs, never contains hyphens
	Categories     MenuCategoryList `gorm:"type:jsonb;default:'[]'" json:"categories"`
	MenuItems      MenuItemList     `gorm:"type:jsonb;default:'[]'" json:"menu_items"`
	Language       string           `gorm:"size:10;default:'en'" json:"language"`
	Currency       string           `gorm:"size:3;default:'USD'" json:"currency"`
	IsActive       bool             `gorm:"default:true" json:"is_active"`

	// Relations
	Chatbot *Chatbot `gorm:"foreignKey:ChatbotID" json:"chatbot,omitempty"`
}

func (OrderAction) TableName() string {
	return "order_actions"
}

// FindMenuItem resolves an item from the action's cached menu by ID
func (a *OrderAction) FindMenuItem(itemID string) *MenuItem {
	for i := range a.MenuItems {
		if a.MenuItems[i].ID == itemID {
			return &a.MenuItems[i]
		}
	}
	return nil
}

// FindCategory resolves a category from the action's cached list by ID
func (a *OrderAction) FindCategory(categoryID string) *MenuCategory {
	for i := range a.Categories {
		if a.Categories[i].ID == categoryID {
			return &a.Categories[i]
		}
	}
	return nil
}

// WebhookEndpoint is an outbound webhook subscription for pipeline events
type WebhookEndpoint struct {
	BaseModel
	OrganizationID uuid.UUID   `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name           string      `gorm:"size:255;not null" json:"name"`
	URL            string      `gorm:"type:text;not null" json:"url"`
	Events         StringArray `gorm:"type:jsonb;default:'[]'" json:"events"` // ["message.incoming", "order.confirmed"]
	Headers        JSONB       `gorm:"type:jsonb;default:'{}'" json:"headers"`
	Secret         string      `gorm:"size:255" json:"-"` // For HMAC signature
	IsActive       bool        `gorm:"default:true" json:"is_active"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (WebhookEndpoint) TableName() string {
	return "webhook_endpoints"
}
