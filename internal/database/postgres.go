package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/internal/config"
	"github.com/sagarjadhav/tablemate/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgres creates a new PostgreSQL connection
func NewPostgres(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

// AutoMigrate runs auto migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Chatbot{},
		&models.Channel{},
		&models.Conversation{},
		&models.ConversationMessage{},
		&models.QuestionFlow{},
		&models.OrderAction{},
		&models.WebhookEndpoint{},
	)
}

// CreateIndexes creates additional indexes not handled by GORM tags
func CreateIndexes(db *gorm.DB) error {
	indexes := []string{
		// Conversation messages by conversation, newest first
		`CREATE INDEX IF NOT EXISTS idx_conv_messages_conv_created ON conversation_messages(conversation_id, created_at DESC)`,

		// Conversation listing per org
		`CREATE INDEX IF NOT EXISTS idx_conversations_org_last_msg ON conversations(organization_id, last_message_at DESC)`,

		// Webhook-path lookups
		`CREATE INDEX IF NOT EXISTS idx_channels_phone_status ON channels(phone_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_question_flows_chatbot_enabled ON question_flows(chatbot_id, is_enabled)`,
		`CREATE INDEX IF NOT EXISTS idx_order_actions_slug_active ON order_actions(slug, is_active)`,

		// Webhook endpoints
		`CREATE INDEX IF NOT EXISTS idx_webhook_endpoints_org_active ON webhook_endpoints(organization_id, is_active)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// CreateDefaultAdmin creates a default admin user if no users exist
// This should only be called once during initial setup
func CreateDefaultAdmin(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}

	if count > 0 {
		return nil
	}

	org := models.Organization{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Name:      "Default Organization",
		Slug:      "default",
		Settings:  models.JSONB{},
	}
	if err := db.Create(&org).Error; err != nil {
		return fmt.Errorf("failed to create default organization: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := models.User{
		BaseModel:      models.BaseModel{ID: uuid.New()},
		OrganizationID: org.ID,
		Email:          "admin@admin.com",
		PasswordHash:   string(passwordHash),
		FullName:       "Admin",
		Role:           "admin",
		IsActive:       true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create default admin user: %w", err)
	}

	return nil
}
