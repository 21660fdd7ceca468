package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application
type Config struct {
	App         AppConfig         `koanf:"app"`
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Redis       RedisConfig       `koanf:"redis"`
	JWT         JWTConfig         `koanf:"jwt"`
	WhatsApp    WhatsAppConfig    `koanf:"whatsapp"`
	Chatbot     ChatbotConfig     `koanf:"chatbot"`
	AI          AIConfig          `koanf:"ai"`
	MenuService MenuServiceConfig `koanf:"menu_service"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`
	WriteTimeout int    `koanf:"write_timeout"`
}

type DatabaseConfig struct {
	Host            string `koanf:"host"`
	Port            int    `koanf:"port"`
	User            string `koanf:"user"`
	Password        string `koanf:"password"`
	Name            string `koanf:"name"`
	SSLMode         string `koanf:"ssl_mode"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type JWTConfig struct {
	Secret           string `koanf:"secret"`
	AccessExpiryMins int    `koanf:"access_expiry_mins"`
}

type WhatsAppConfig struct {
	WebhookVerifyToken string `koanf:"webhook_verify_token"`
	APIVersion         string `koanf:"api_version"`
}

// ChatbotConfig tunes the conversational pipeline: outbound pacing,
// customer-facing error verbosity and translation behavior.
type ChatbotConfig struct {
	DefaultReplyDelaySecs int    `koanf:"default_reply_delay_secs"`
	FlowImageDelaySecs    int    `koanf:"flow_image_delay_secs"`
	MenuImageDelaySecs    int    `koanf:"menu_image_delay_secs"`
	ErrorVisibility       string `koanf:"error_visibility"` // silent, generic, detailed
	TranslateMenuRows     bool   `koanf:"translate_menu_rows"`
	ConfigCacheTTLSecs    int    `koanf:"config_cache_ttl_secs"`
}

type AIConfig struct {
	Provider           string `koanf:"provider"` // openai, anthropic
	APIKey             string `koanf:"api_key"`
	Model              string `koanf:"model"`
	BaseURL            string `koanf:"base_url"`
	MaxTokens          int    `koanf:"max_tokens"`
	RequestTimeoutSecs int    `koanf:"request_timeout_secs"`
}

type MenuServiceConfig struct {
	BaseURL            string `koanf:"base_url"`
	APIKey             string `koanf:"api_key"`
	RequestTimeoutSecs int    `koanf:"request_timeout_secs"`
}

// Error visibility policies for customer-facing failure messages.
const (
	ErrorVisibilitySilent   = "silent"
	ErrorVisibilityGeneric  = "generic"
	ErrorVisibilityDetailed = "detailed"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Load from config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// Load from environment variables (TABLEMATE_ prefix)
	// e.g., TABLEMATE_DATABASE_HOST -> database.host
	if err := k.Load(env.Provider("TABLEMATE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "TABLEMATE_")), "_", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "Tablemate"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessExpiryMins == 0 {
		cfg.JWT.AccessExpiryMins = 60
	}
	if cfg.WhatsApp.APIVersion == "" {
		cfg.WhatsApp.APIVersion = "v21.0"
	}
	if cfg.Chatbot.DefaultReplyDelaySecs == 0 {
		cfg.Chatbot.DefaultReplyDelaySecs = 1
	}
	if cfg.Chatbot.FlowImageDelaySecs == 0 {
		cfg.Chatbot.FlowImageDelaySecs = 2
	}
	if cfg.Chatbot.MenuImageDelaySecs == 0 {
		cfg.Chatbot.MenuImageDelaySecs = 4
	}
	if cfg.Chatbot.ErrorVisibility == "" {
		cfg.Chatbot.ErrorVisibility = ErrorVisibilityGeneric
	}
	if cfg.Chatbot.ConfigCacheTTLSecs == 0 {
		cfg.Chatbot.ConfigCacheTTLSecs = 300
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.openai.com"
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 1024
	}
	if cfg.AI.RequestTimeoutSecs == 0 {
		cfg.AI.RequestTimeoutSecs = 60
	}
	if cfg.MenuService.RequestTimeoutSecs == 0 {
		cfg.MenuService.RequestTimeoutSecs = 15
	}
}

func validate(cfg *Config) error {
	switch cfg.Chatbot.ErrorVisibility {
	case ErrorVisibilitySilent, ErrorVisibilityGeneric, ErrorVisibilityDetailed:
	default:
		return fmt.Errorf("invalid chatbot.error_visibility %q", cfg.Chatbot.ErrorVisibility)
	}
	if cfg.App.Environment == "production" && cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required in production")
	}
	return nil
}
