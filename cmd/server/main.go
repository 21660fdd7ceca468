package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sagarjadhav/tablemate/internal/config"
	"github.com/sagarjadhav/tablemate/internal/database"
	"github.com/sagarjadhav/tablemate/internal/handlers"
	"github.com/sagarjadhav/tablemate/internal/middleware"
	"github.com/sagarjadhav/tablemate/internal/websocket"
	"github.com/sagarjadhav/tablemate/pkg/menuservice"
	"github.com/sagarjadhav/tablemate/pkg/whatsapp"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
	"github.com/zerodha/logf"
)

var (
	configPath = flag.String("config", "config.toml", "Path to config file")
	migrate    = flag.Bool("migrate", false, "Run database migrations")
)

func main() {
	flag.Parse()

	// Initialize logger
	lo := logf.New(logf.Opts{
		EnableColor:     true,
		Level:           logf.DebugLevel,
		EnableCaller:    true,
		TimestampFormat: "2006-01-02 15:04:05",
		DefaultFields:   []any{"app", "tablemate"},
	})

	lo.Info("Starting Tablemate server...")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		lo.Fatal("Failed to load config", "error", err)
	}

	// Set log level based on environment
	if cfg.App.Environment == "production" {
		lo = logf.New(logf.Opts{
			Level:           logf.InfoLevel,
			TimestampFormat: "2006-01-02 15:04:05",
			DefaultFields:   []any{"app", "tablemate"},
		})
	}

	// Connect to PostgreSQL
	db, err := database.NewPostgres(&cfg.Database, cfg.App.Debug)
	if err != nil {
		lo.Fatal("Failed to connect to database", "error", err)
	}
	lo.Info("Connected to PostgreSQL")

	// Run migrations if requested
	if *migrate {
		if err := database.AutoMigrate(db); err != nil {
			lo.Fatal("Migration failed", "error", err)
		}
		if err := database.CreateIndexes(db); err != nil {
			lo.Fatal("Index creation failed", "error", err)
		}
		if err := database.CreateDefaultAdmin(db); err != nil {
			lo.Fatal("Default admin creation failed", "error", err)
		}
		lo.Info("Migrations complete")
	}

	// Connect to Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		lo.Fatal("Failed to connect to Redis", "error", err)
	}
	lo.Info("Connected to Redis")

	// Initialize Fastglue
	g := fastglue.NewGlue()

	// Initialize WhatsApp client
	waClient := whatsapp.New(lo)

	// Initialize menu-service client
	menuClient := menuservice.New(
		cfg.MenuService.BaseURL,
		cfg.MenuService.APIKey,
		time.Duration(cfg.MenuService.RequestTimeoutSecs)*time.Second,
		lo,
	)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(lo)
	go wsHub.Run()
	lo.Info("WebSocket hub started")

	// Initialize app with dependencies
	app := handlers.New(cfg, db, rdb, lo, waClient, menuClient, handlers.NewAITranslator(cfg.AI, lo), wsHub)

	// Setup middleware
	g.Before(middleware.RequestLogger(lo))
	g.Before(middleware.CORS())
	g.Before(middleware.Recovery(lo))

	// Setup routes
	setupRoutes(g, app)

	// Create server
	server := &fasthttp.Server{
		Handler:      g.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		Name:         "Tablemate",
	}

	// Start server in goroutine
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		lo.Info("Server listening", "address", addr)
		if err := server.ListenAndServe(addr); err != nil {
			lo.Fatal("Server failed", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lo.Info("Shutting down server...")
	if err := server.Shutdown(); err != nil {
		lo.Error("Server shutdown error", "error", err)
	}
	wsHub.Stop()
	lo.Info("Server stopped")
}

func setupRoutes(g *fastglue.Fastglue, app *handlers.App) {
	// Health check
	g.GET("/health", app.HealthCheck)

	// Auth routes (public)
	g.POST("/api/auth/login", app.Login)
	g.POST("/api/auth/register", app.Register)

	// Meta webhook routes (public)
	g.GET("/webhooks/whatsapp", app.VerifyWhatsAppWebhook)
	g.POST("/webhooks/whatsapp", app.ReceiveWhatsAppWebhook)

	// WebSocket route (auth handled in handler via query param)
	g.GET("/ws", app.WebSocketHandler)

	// Auth middleware for everything else under /api
	g.Before(func(r *fastglue.Request) *fastglue.Request {
		path := string(r.RequestCtx.Path())
		if path == "/health" ||
			path == "/api/auth/login" || path == "/api/auth/register" ||
			path == "/webhooks/whatsapp" || path == "/ws" {
			return r
		}
		if len(path) > 4 && path[:4] == "/api" {
			if r = middleware.Auth(app.Config.JWT.Secret)(r); r == nil {
				return nil
			}
			return middleware.OrganizationContext(app.DB)(r)
		}
		return r
	})

	// Current User
	g.GET("/api/me", app.GetCurrentUser)
	g.PUT("/api/me/password", app.ChangePassword)

	// Chatbots
	g.GET("/api/chatbots", app.ListChatbots)
	g.POST("/api/chatbots", app.CreateChatbot)
	g.GET("/api/chatbots/{id}", app.GetChatbot)
	g.PUT("/api/chatbots/{id}", app.UpdateChatbot)
	g.DELETE("/api/chatbots/{id}", app.DeleteChatbot)

	// Channels
	g.GET("/api/channels", app.ListChannels)
	g.POST("/api/channels", app.CreateChannel)
	g.GET("/api/channels/{id}", app.GetChannel)
	g.PUT("/api/channels/{id}", app.UpdateChannel)
	g.DELETE("/api/channels/{id}", app.DeleteChannel)
	g.POST("/api/channels/{id}/test", app.TestChannelConnection)

	// Question Flows
	g.GET("/api/question-flows", app.ListQuestionFlows)
	g.POST("/api/question-flows", app.CreateQuestionFlow)
	g.GET("/api/question-flows/{id}", app.GetQuestionFlow)
	g.PUT("/api/question-flows/{id}", app.UpdateQuestionFlow)
	g.DELETE("/api/question-flows/{id}", app.DeleteQuestionFlow)

	// Order Actions
	g.GET("/api/order-actions", app.ListOrderActions)
	g.POST("/api/order-actions", app.CreateOrderAction)
	g.GET("/api/order-actions/{id}", app.GetOrderAction)
	g.PUT("/api/order-actions/{id}", app.UpdateOrderAction)
	g.DELETE("/api/order-actions/{id}", app.DeleteOrderAction)

	// Conversations
	g.GET("/api/conversations", app.ListConversations)
	g.GET("/api/conversations/{id}", app.GetConversation)
	g.PUT("/api/conversations/{id}/auto-reply", app.SetConversationAutoReply)

	// Outbound Webhooks
	g.GET("/api/webhooks", app.ListWebhooks)
	g.POST("/api/webhooks", app.CreateWebhook)
	g.GET("/api/webhooks/{id}", app.GetWebhook)
	g.PUT("/api/webhooks/{id}", app.UpdateWebhook)
	g.DELETE("/api/webhooks/{id}", app.DeleteWebhook)
	g.POST("/api/webhooks/{id}/test", app.TestWebhook)
}
