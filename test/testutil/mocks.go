package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/pkg/menuservice"
	"github.com/sagarjadhav/tablemate/pkg/whatsapp"
)

// MockSentMessage records a message sent through the mock WhatsApp client.
type MockSentMessage struct {
	Type        string
	PhoneNumber string
	Content     interface{}
	Account     *whatsapp.Account
	MessageID   string
}

// MockWhatsAppClient is a mock implementation of the outbound WhatsApp
// surface. Messages are recorded in send order so tests can assert on
// sequencing, not just counts.
type MockWhatsAppClient struct {
	mu sync.Mutex

	// Recorded calls
	SentMessages []MockSentMessage
	ReadMessages []string

	// Configurable behavior
	SendTextMessageFunc        func(ctx context.Context, account *whatsapp.Account, phone, text string) (string, error)
	SendImageByLinkFunc        func(ctx context.Context, account *whatsapp.Account, phone, imageURL, caption string) (string, error)
	SendInteractiveButtonsFunc func(ctx context.Context, account *whatsapp.Account, phone, body string, buttons []whatsapp.Button) (string, error)
	SendInteractiveListFunc    func(ctx context.Context, account *whatsapp.Account, phone, body, footer, buttonLabel string, sections []whatsapp.ListSection) (string, error)
	MarkMessageReadFunc        func(ctx context.Context, account *whatsapp.Account, messageID string) error

	// Error to return (if set, overrides function)
	Error error

	messageCounter int
}

// NewMockWhatsAppClient creates a new mock WhatsApp client.
func NewMockWhatsAppClient() *MockWhatsAppClient {
	return &MockWhatsAppClient{
		SentMessages: make([]MockSentMessage, 0),
	}
}

func (m *MockWhatsAppClient) nextMessageID() string {
	m.messageCounter++
	return "wamid.mock-" + uuid.New().String()[:8]
}

// SendTextMessage mocks sending a text message.
func (m *MockWhatsAppClient) SendTextMessage(ctx context.Context, account *whatsapp.Account, phone, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Error != nil {
		return "", m.Error
	}
	if m.SendTextMessageFunc != nil {
		return m.SendTextMessageFunc(ctx, account, phone, text)
	}

	msgID := m.nextMessageID()
	m.SentMessages = append(m.SentMessages, MockSentMessage{
		Type:        "text",
		PhoneNumber: phone,
		Content:     text,
		Account:     account,
		MessageID:   msgID,
	})
	return msgID, nil
}

// SendImageByLink mocks sending an image message by URL.
func (m *MockWhatsAppClient) SendImageByLink(ctx context.Context, account *whatsapp.Account, phone, imageURL, caption string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Error != nil {
		return "", m.Error
	}
	if m.SendImageByLinkFunc != nil {
		return m.SendImageByLinkFunc(ctx, account, phone, imageURL, caption)
	}

	msgID := m.nextMessageID()
	m.SentMessages = append(m.SentMessages, MockSentMessage{
		Type:        "image",
		PhoneNumber: phone,
		Content:     map[string]interface{}{"image_url": imageURL, "caption": caption},
		Account:     account,
		MessageID:   msgID,
	})
	return msgID, nil
}

// SendInteractiveButtons mocks sending a reply-button message.
func (m *MockWhatsAppClient) SendInteractiveButtons(ctx context.Context, account *whatsapp.Account, phone, body string, buttons []whatsapp.Button) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Error != nil {
		return "", m.Error
	}
	if m.SendInteractiveButtonsFunc != nil {
		return m.SendInteractiveButtonsFunc(ctx, account, phone, body, buttons)
	}

	msgID := m.nextMessageID()
	m.SentMessages = append(m.SentMessages, MockSentMessage{
		Type:        "buttons",
		PhoneNumber: phone,
		Content:     map[string]interface{}{"body": body, "buttons": buttons},
		Account:     account,
		MessageID:   msgID,
	})
	return msgID, nil
}

// SendInteractiveList mocks sending a list message.
func (m *MockWhatsAppClient) SendInteractiveList(ctx context.Context, account *whatsapp.Account, phone, body, footer, buttonLabel string, sections []whatsapp.ListSection) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Error != nil {
		return "", m.Error
	}
	if m.SendInteractiveListFunc != nil {
		return m.SendInteractiveListFunc(ctx, account, phone, body, footer, buttonLabel, sections)
	}

	msgID := m.nextMessageID()
	m.SentMessages = append(m.SentMessages, MockSentMessage{
		Type:        "list",
		PhoneNumber: phone,
		Content:     map[string]interface{}{"body": body, "footer": footer, "button": buttonLabel, "sections": sections},
		Account:     account,
		MessageID:   msgID,
	})
	return msgID, nil
}

// SendCTAURLButton mocks sending a call-to-action URL button message.
func (m *MockWhatsAppClient) SendCTAURLButton(ctx context.Context, account *whatsapp.Account, phone, body, buttonText, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Error != nil {
		return "", m.Error
	}

	msgID := m.nextMessageID()
	m.SentMessages = append(m.SentMessages, MockSentMessage{
		Type:        "cta_url",
		PhoneNumber: phone,
		Content:     map[string]interface{}{"body": body, "button_text": buttonText, "url": url},
		Account:     account,
		MessageID:   msgID,
	})
	return msgID, nil
}

// MarkMessageRead mocks marking a message as read.
func (m *MockWhatsAppClient) MarkMessageRead(ctx context.Context, account *whatsapp.Account, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Error != nil {
		return m.Error
	}
	if m.MarkMessageReadFunc != nil {
		return m.MarkMessageReadFunc(ctx, account, messageID)
	}

	m.ReadMessages = append(m.ReadMessages, messageID)
	return nil
}

// Reset clears all recorded messages.
func (m *MockWhatsAppClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = m.SentMessages[:0]
	m.ReadMessages = m.ReadMessages[:0]
	m.Error = nil
	m.messageCounter = 0
}

// MessageCount returns the number of messages sent.
func (m *MockWhatsAppClient) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentMessages)
}

// GetMessagesSentTo returns all messages sent to a specific phone number.
func (m *MockWhatsAppClient) GetMessagesSentTo(phone string) []MockSentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var messages []MockSentMessage
	for _, msg := range m.SentMessages {
		if msg.PhoneNumber == phone {
			messages = append(messages, msg)
		}
	}
	return messages
}

// MessageTypes returns the types of all sent messages, in send order.
func (m *MockWhatsAppClient) MessageTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make([]string, len(m.SentMessages))
	for i, msg := range m.SentMessages {
		types[i] = msg.Type
	}
	return types
}

// MockMenuService is a mock implementation of the ordering backend.
type MockMenuService struct {
	mu sync.Mutex

	// Recorded calls
	GetMenusCalls     []string
	AddToCartCalls    []AddToCartCall
	GetCartCalls      int
	ConfirmOrderCalls []string

	// Configurable behavior
	GetMenusFunc     func(ctx context.Context, chatbotID, categoryID string) (*menuservice.MenusResponse, error)
	GetMenuItemFunc  func(ctx context.Context, chatbotID, menuID, categoryID string) (*menuservice.MenuItem, error)
	AddToCartFunc    func(ctx context.Context, chatbotID, menuID string, qty int) (*menuservice.CartResponse, error)
	GetCartFunc      func(ctx context.Context, chatbotID string) (*menuservice.CartResponse, error)
	ConfirmOrderFunc func(ctx context.Context, chatbotID, tableName string) (*menuservice.ConfirmResponse, error)

	// Error to return (if set, overrides functions)
	Error error
}

// AddToCartCall records one AddToCart invocation.
type AddToCartCall struct {
	MenuID string
	Qty    int
}

// NewMockMenuService creates a new mock menu service.
func NewMockMenuService() *MockMenuService {
	return &MockMenuService{}
}

// GetMenus mocks a category browse.
func (m *MockMenuService) GetMenus(ctx context.Context, chatbotID, categoryID string) (*menuservice.MenusResponse, error) {
	m.mu.Lock()
	m.GetMenusCalls = append(m.GetMenusCalls, categoryID)
	m.mu.Unlock()

	if m.Error != nil {
		return nil, m.Error
	}
	if m.GetMenusFunc != nil {
		return m.GetMenusFunc(ctx, chatbotID, categoryID)
	}
	return &menuservice.MenusResponse{Text: "No menu configured"}, nil
}

// GetMenuItem mocks a single-item lookup.
func (m *MockMenuService) GetMenuItem(ctx context.Context, chatbotID, menuID, categoryID string) (*menuservice.MenuItem, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	if m.GetMenuItemFunc != nil {
		return m.GetMenuItemFunc(ctx, chatbotID, menuID, categoryID)
	}
	return nil, nil
}

// AddToCart mocks adding an item to the cart.
func (m *MockMenuService) AddToCart(ctx context.Context, chatbotID, menuID string, qty int) (*menuservice.CartResponse, error) {
	m.mu.Lock()
	m.AddToCartCalls = append(m.AddToCartCalls, AddToCartCall{MenuID: menuID, Qty: qty})
	m.mu.Unlock()

	if m.Error != nil {
		return nil, m.Error
	}
	if m.AddToCartFunc != nil {
		return m.AddToCartFunc(ctx, chatbotID, menuID, qty)
	}
	return &menuservice.CartResponse{Text: "Added to cart"}, nil
}

// GetCart mocks fetching the cart.
func (m *MockMenuService) GetCart(ctx context.Context, chatbotID string) (*menuservice.CartResponse, error) {
	m.mu.Lock()
	m.GetCartCalls++
	m.mu.Unlock()

	if m.Error != nil {
		return nil, m.Error
	}
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx, chatbotID)
	}
	return &menuservice.CartResponse{Cart: &menuservice.Cart{}}, nil
}

// ConfirmOrder mocks finalizing an order.
func (m *MockMenuService) ConfirmOrder(ctx context.Context, chatbotID, tableName string) (*menuservice.ConfirmResponse, error) {
	m.mu.Lock()
	m.ConfirmOrderCalls = append(m.ConfirmOrderCalls, tableName)
	m.mu.Unlock()

	if m.Error != nil {
		return nil, m.Error
	}
	if m.ConfirmOrderFunc != nil {
		return m.ConfirmOrderFunc(ctx, chatbotID, tableName)
	}
	return &menuservice.ConfirmResponse{Text: "Order confirmed", OrderID: "order-1"}, nil
}

// MockTranslator is a pass-through translator that records requests.
type MockTranslator struct {
	mu sync.Mutex

	Calls []TranslateCall

	// TranslateFunc overrides the default pass-through behavior.
	TranslateFunc func(ctx context.Context, text, targetLanguage string) (string, error)
	Error         error
}

// TranslateCall records one translation request.
type TranslateCall struct {
	Text     string
	Language string
}

// NewMockTranslator creates a new mock translator.
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{}
}

// TranslateText records the call and returns the text unchanged unless
// TranslateFunc is set.
func (m *MockTranslator) TranslateText(ctx context.Context, text, targetLanguage string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, TranslateCall{Text: text, Language: targetLanguage})
	m.mu.Unlock()

	if m.Error != nil {
		return "", m.Error
	}
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, text, targetLanguage)
	}
	return text, nil
}
