package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	APIURL             string        `mapstructure:"api_url"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Port               string        `mapstructure:"port"`

	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Gemini   APIKeyConfig   `mapstructure:"gemini"`
	Groq     APIKeyConfig   `mapstructure:"groq"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// StoreConfig selects where client state (token, saved recipes, grocery list) lives.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	Dir     string `mapstructure:"dir"`
}

// RedisConfig is only read when Store.Backend is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Development bool   `mapstructure:"development"`
}

// FeedbackConfig controls how often the review prompt is shown.
type FeedbackConfig struct {
	Threshold int `mapstructure:"threshold"`
}

// ChatConfig selects the generator used when the backend chat endpoint fails.
type ChatConfig struct {
	Fallback string `mapstructure:"fallback"`
}

// APIKeyConfig holds a single provider key.
type APIKeyConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// TelegramConfig is required by the bot binary only.
type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	WebhookURL  string `mapstructure:"webhook_url"`
	AllowUserID int64  `mapstructure:"allow_user_id"`
}

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"

	FallbackNone   = "none"
	FallbackGemini = "gemini"
	FallbackGroq   = "groq"
)

// NewFromEnv creates a new Config object from COOKIFY_* environment variables and,
// when COOKIFY_CONFIG points at one, a YAML file.
func NewFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COOKIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("COOKIFY_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.Store.Backend = strings.ToLower(cfg.Store.Backend)
	cfg.Chat.Fallback = strings.ToLower(cfg.Chat.Fallback)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "https://localhost:5001")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("insecure_skip_verify", false)
	v.SetDefault("port", "8080")

	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.path", "data/cookify.db")
	v.SetDefault("store.dir", "data/store")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.development", false)

	v.SetDefault("feedback.threshold", 3)

	v.SetDefault("chat.fallback", FallbackNone)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("groq.api_key", "")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.allow_user_id", 0)
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url must be an absolute URL, got %q", c.APIURL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case BackendFile:
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of sqlite, file, redis, got %q", c.Store.Backend)
	}

	if c.Feedback.Threshold < 1 {
		return fmt.Errorf("feedback.threshold must be at least 1")
	}

	switch c.Chat.Fallback {
	case FallbackNone, "":
	case FallbackGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key is required when chat.fallback is gemini")
		}
	case FallbackGroq:
		if c.Groq.APIKey == "" {
			return fmt.Errorf("groq.api_key is required when chat.fallback is groq")
		}
	default:
		return fmt.Errorf("chat.fallback must be one of none, gemini, groq, got %q", c.Chat.Fallback)
	}

	return nil
}

// RequireTelegram reports whether the bot settings are complete.
func (c *Config) RequireTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("COOKIFY_TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.Telegram.WebhookURL == "" {
		return fmt.Errorf("COOKIFY_TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	if c.Telegram.AllowUserID == 0 {
		return fmt.Errorf("COOKIFY_TELEGRAM_ALLOW_USER_ID environment variable not set")
	}
	return nil
}
