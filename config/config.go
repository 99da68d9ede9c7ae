package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. AUTOREPLY_AI_TIMEOUT sets ai.timeout
const EnvPrefix = "AUTOREPLY_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Mongo     MongoConfig     `koanf:"mongo"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Admin     AdminConfig     `koanf:"admin"`
	AI        AIConfig        `koanf:"ai"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Reports   ReportsConfig   `koanf:"reports"`
	WhatsApp  WhatsAppConfig  `koanf:"whatsapp"`
	Graph     GraphConfig     `koanf:"graph"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
}

type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type WebhookConfig struct {
	VerifyToken string `koanf:"verify_token"`
}

type AdminConfig struct {
	Username  string        `koanf:"username"`
	Password  string        `koanf:"password"`
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type AIConfig struct {
	Timeout         time.Duration `koanf:"timeout"`
	OpenAIBaseURL   string        `koanf:"openai_base_url"`
	DeepSeekBaseURL string        `koanf:"deepseek_base_url"`
}

type DispatchConfig struct {
	Workers          int `koanf:"workers"`
	QueueSize        int `koanf:"queue_size"`
	RepliesPerMinute int `koanf:"replies_per_minute"`
}

type KnowledgeConfig struct {
	// File is an optional YAML file overriding the built-in knowledge base
	File string `koanf:"file"`
}

type ReportsConfig struct {
	AdminPhone string `koanf:"admin_phone"`
	DailyAt    string `koanf:"daily_at"`
}

type WhatsAppConfig struct {
	PhoneNumberID string `koanf:"phone_number_id"`
}

type GraphConfig struct {
	BaseURL string `koanf:"base_url"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":                 "8080",
		"mongo.uri":                   "mongodb://localhost:27017",
		"mongo.database":              "autoreply_bot",
		"webhook.verify_token":        "webhook_verify_token",
		"admin.username":              "admin",
		"admin.token_ttl":             "24h",
		"ai.timeout":                  "10s",
		"dispatch.workers":            4,
		"dispatch.queue_size":         100,
		"dispatch.replies_per_minute": 60,
		"reports.daily_at":            "09:00",
	}
}

// legacyEnv maps the plain environment names used by older deployments
var legacyEnv = map[string]string{
	"PORT":                 "server.port",
	"MONGO_URI":            "mongo.uri",
	"MONGO_DB_NAME":        "mongo.database",
	"WEBHOOK_VERIFY_TOKEN": "webhook.verify_token",
}

// LoadConfig builds the configuration from defaults, the optional TOML file at path,
// legacy environment names and AUTOREPLY_ environment variables, in that order.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	legacy := map[string]interface{}{}
	for name, key := range legacyEnv {
		if v := os.Getenv(name); v != "" {
			legacy[key] = v
		}
	}
	if err := k.Load(confmap.Provider(legacy, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading legacy environment: %w", err)
	}

	// AUTOREPLY_WEBHOOK_VERIFY_TOKEN -> webhook.verify_token
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot run without
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Webhook.VerifyToken == "" {
		return fmt.Errorf("webhook.verify_token is required")
	}
	if c.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwt_secret is required")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive")
	}
	if c.Dispatch.Workers < 1 || c.Dispatch.QueueSize < 1 {
		return fmt.Errorf("dispatch.workers and dispatch.queue_size must be at least 1")
	}
	return nil
}
