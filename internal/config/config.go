// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling" env:"LOG_SAMPLING"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int    `yaml:"max_conns" env:"DATABASE_MAX_CONNS"`
	Migrate  bool   `yaml:"migrate" env:"DATABASE_MIGRATE"`
}

type RedisConfig struct {
	URL      string `yaml:"url" env:"REDIS_URL"` // empty disables rate limiting
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// WhatsAppConfig holds the Cloud API credentials. A missing token or sender id
// disables outbound messages but not ingestion.
type WhatsAppConfig struct {
	AccessToken   string        `yaml:"access_token" env:"WHATSAPP_ACCESS_TOKEN"`
	PhoneNumberID string        `yaml:"phone_number_id" env:"WHATSAPP_PHONE_NUMBER_ID"`
	VerifyToken   string        `yaml:"verify_token" env:"WHATSAPP_VERIFY_TOKEN"`
	BaseURL       string        `yaml:"base_url" env:"WHATSAPP_BASE_URL"`
	NotifyTimeout time.Duration `yaml:"notify_timeout" env:"WHATSAPP_NOTIFY_TIMEOUT"`
	Language      string        `yaml:"language" env:"WHATSAPP_LANGUAGE"` // reply locale, see i18n/locales
}

func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

type SubscriptionConfig struct {
	Price              string        `yaml:"price" env:"SUBSCRIPTION_PRICE"` // decimal, e.g. "3.00"
	CodeTTL            time.Duration `yaml:"code_ttl" env:"CODE_TTL"`
	UnlockKeyTTL       time.Duration `yaml:"unlock_key_ttl" env:"UNLOCK_KEY_TTL"`
	GrantWindow        time.Duration `yaml:"grant_window" env:"GRANT_WINDOW"`
	SubscriptionWindow time.Duration `yaml:"subscription_window" env:"SUBSCRIPTION_WINDOW"`

	price decimal.Decimal
}

// PriceDecimal returns the validated subscription price.
func (c SubscriptionConfig) PriceDecimal() decimal.Decimal { return c.price }

type RedeemConfig struct {
	RateLimit  int           `yaml:"rate_limit" env:"REDEEM_RATE_LIMIT"` // attempts per window per client; 0 disables
	RateWindow time.Duration `yaml:"rate_window" env:"REDEEM_RATE_WINDOW"`
}

type AdminConfig struct {
	APIKey string `yaml:"api_key" env:"ADMIN_API_KEY"`
	// SessionSecret signs admin session tokens; sessions are off when empty.
	SessionSecret string        `yaml:"session_secret" env:"ADMIN_SESSION_SECRET"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"ADMIN_SESSION_TTL"`
	SecureCookie  bool          `yaml:"secure_cookie" env:"ADMIN_SECURE_COOKIE"`
}

type AlertsConfig struct {
	TelegramToken string  `yaml:"telegram_token" env:"ALERTS_TELEGRAM_TOKEN"`
	ChatIDs       []int64 `yaml:"chat_ids" env:"ALERTS_TELEGRAM_CHAT_IDS"`
}

type SchedulerConfig struct {
	StatsInterval time.Duration `yaml:"stats_interval" env:"STATS_INTERVAL"`
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	WhatsApp     WhatsAppConfig     `yaml:"whatsapp"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Redeem       RedeemConfig       `yaml:"redeem"`
	Admin        AdminConfig        `yaml:"admin"`
	Alerts       AlertsConfig       `yaml:"alerts"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig resolves configuration once: YAML file (optional), then a local
// .env file (optional), then process environment. Later sources win.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// environment-only deployments have no file
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.WhatsApp.BaseURL == "" {
		cfg.WhatsApp.BaseURL = "https://graph.facebook.com/v18.0"
	}
	cfg.WhatsApp.NotifyTimeout = normalize(cfg.WhatsApp.NotifyTimeout, 10*time.Second)
	if cfg.WhatsApp.Language == "" {
		cfg.WhatsApp.Language = "en"
	}

	if cfg.Subscription.Price == "" {
		cfg.Subscription.Price = "3.00"
	}
	cfg.Subscription.CodeTTL = normalize(cfg.Subscription.CodeTTL, 20*time.Minute)
	cfg.Subscription.UnlockKeyTTL = normalize(cfg.Subscription.UnlockKeyTTL, 5*time.Minute)
	cfg.Subscription.GrantWindow = normalize(cfg.Subscription.GrantWindow, 5*time.Minute)
	cfg.Subscription.SubscriptionWindow = normalize(cfg.Subscription.SubscriptionWindow, 30*24*time.Hour)

	cfg.Admin.SessionTTL = normalize(cfg.Admin.SessionTTL, 30*time.Minute)

	cfg.Redeem.RateWindow = normalize(cfg.Redeem.RateWindow, time.Minute)
	cfg.Scheduler.StatsInterval = normalize(cfg.Scheduler.StatsInterval, 30*time.Second)
}

func (cfg *Config) validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.WhatsApp.VerifyToken == "" {
		return errors.New("whatsapp.verify_token is required")
	}
	price, err := decimal.NewFromString(cfg.Subscription.Price)
	if err != nil {
		return fmt.Errorf("subscription.price: %w", err)
	}
	if !price.IsPositive() {
		return errors.New("subscription.price must be positive")
	}
	cfg.Subscription.price = price
	if cfg.Redeem.RateLimit < 0 {
		return errors.New("redeem.rate_limit must not be negative")
	}
	return nil
}

func normalize(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
