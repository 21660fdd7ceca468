package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sagarjadhav/tablemate/internal/config"
	"github.com/sagarjadhav/tablemate/internal/middleware"
	"github.com/sagarjadhav/tablemate/internal/models"
	"github.com/sagarjadhav/tablemate/internal/websocket"
	"github.com/sagarjadhav/tablemate/pkg/menuservice"
	"github.com/sagarjadhav/tablemate/pkg/whatsapp"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
	"github.com/zerodha/logf"
	"gorm.io/gorm"
)

// WhatsAppSender is the outbound messaging surface of the WhatsApp client
type WhatsAppSender interface {
	SendTextMessage(ctx context.Context, account *whatsapp.Account, phoneNumber, text string) (string, error)
	SendImageByLink(ctx context.Context, account *whatsapp.Account, phoneNumber, imageURL, caption string) (string, error)
	SendInteractiveButtons(ctx context.Context, account *whatsapp.Account, phoneNumber, bodyText string, buttons []whatsapp.Button) (string, error)
	SendInteractiveList(ctx context.Context, account *whatsapp.Account, phoneNumber, bodyText, footerText, buttonLabel string, sections []whatsapp.ListSection) (string, error)
	SendCTAURLButton(ctx context.Context, account *whatsapp.Account, phoneNumber, bodyText, buttonText, url string) (string, error)
	MarkMessageRead(ctx context.Context, account *whatsapp.Account, messageID string) error
}

// MenuService is the external ordering backend that owns menus and carts
type MenuService interface {
	GetMenus(ctx context.Context, chatbotID, categoryID string) (*menuservice.MenusResponse, error)
	GetMenuItem(ctx context.Context, chatbotID, menuID, categoryID string) (*menuservice.MenuItem, error)
	AddToCart(ctx context.Context, chatbotID, menuID string, qty int) (*menuservice.CartResponse, error)
	GetCart(ctx context.Context, chatbotID string) (*menuservice.CartResponse, error)
	ConfirmOrder(ctx context.Context, chatbotID, tableName string) (*menuservice.ConfirmResponse, error)
}

// Translator converts customer-facing text to a target language
type Translator interface {
	TranslateText(ctx context.Context, text, targetLanguage string) (string, error)
}

// App holds application-wide dependencies
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Log        logf.Logger
	WhatsApp   WhatsAppSender
	Menu       MenuService
	Translator Translator
	WSHub      *websocket.Hub

	convLocks *keyedMutex
}

// New creates an App with its per-conversation lock table initialized
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, log logf.Logger, wa WhatsAppSender, menu MenuService, tr Translator, hub *websocket.Hub) *App {
	return &App{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Log:        log,
		WhatsApp:   wa,
		Menu:       menu,
		Translator: tr,
		WSHub:      hub,
		convLocks:  newKeyedMutex(),
	}
}

// Result is what every pipeline entry point returns to its caller. The
// webhook transport acknowledges receipt regardless, so errors surface here
// instead of propagating.
type Result struct {
	Success bool
	Message string
}

// HealthCheck returns service health status
func (a *App) HealthCheck(r *fastglue.Request) error {
	return r.SendEnvelope(map[string]string{
		"status": "healthy",
		"app":    a.Config.App.Name,
	})
}

// getOrganizationID extracts the organization ID set by the auth middleware
func getOrganizationID(r *fastglue.Request) (uuid.UUID, error) {
	orgID, ok := middleware.GetOrganizationID(r)
	if !ok {
		return uuid.Nil, fmt.Errorf("organization not found in context")
	}
	return orgID, nil
}

// getUserID extracts the user ID set by the auth middleware
func getUserID(r *fastglue.Request) (uuid.UUID, error) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		return uuid.Nil, fmt.Errorf("user not found in context")
	}
	return userID, nil
}

// pathID parses the "id" path parameter as a UUID
func pathID(r *fastglue.Request) (uuid.UUID, error) {
	raw, _ := r.RequestCtx.UserValue("id").(string)
	return uuid.Parse(raw)
}

// sendNotFound is the common 404 envelope
func sendNotFound(r *fastglue.Request, what string) error {
	return r.SendErrorEnvelope(fasthttp.StatusNotFound, what+" not found", nil, "")
}

// channelAccount builds the Cloud API credentials for a channel
func channelAccount(channel *models.Channel) *whatsapp.Account {
	return &whatsapp.Account{
		PhoneID:     channel.PhoneID,
		BusinessID:  channel.BusinessID,
		APIVersion:  channel.APIVersion,
		AccessToken: channel.AccessToken,
	}
}

// replyDelay returns the channel's configured typing delay
func (a *App) replyDelay(channel *models.Channel) time.Duration {
	secs := channel.ReplyDelaySecs
	if secs <= 0 {
		secs = a.Config.Chatbot.DefaultReplyDelaySecs
	}
	return time.Duration(secs) * time.Second
}

// sleep pauses for outbound message pacing, ending early on cancellation
func (a *App) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
