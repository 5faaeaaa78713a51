package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	DatabaseURL         string
	RedisURL            string
	LockBackend         string        // "local" (in-process) or "redis" (multi-instance)
	LockTTL             time.Duration // how long a per-Sol redis lock may be held
	LockWait            time.Duration // how long a caller waits for a busy Sol before failing
	StripeSecretKey     string
	StripeWebhookSecret string
	DefaultCurrency     string // ISO code of Sols created without one
	FrontendURLEndsWith string
	DevPassword         string
	HealthAdminKey      string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOCK_BACKEND", "local")
	viper.SetDefault("LOCK_TTL", "10s")
	viper.SetDefault("LOCK_WAIT", "5s")
	viper.SetDefault("DEFAULT_CURRENCY", "USD")

	lockBackend := strings.ToLower(strings.TrimSpace(viper.GetString("LOCK_BACKEND")))
	if lockBackend != "redis" {
		lockBackend = "local"
	}

	return &Config{
		Env:                 viper.GetString("APP_ENV"),
		Port:                viper.GetString("PORT"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		DatabaseURL:         viper.GetString("DATABASE_URL"),
		RedisURL:            viper.GetString("REDIS_URL"),
		LockBackend:         lockBackend,
		LockTTL:             viper.GetDuration("LOCK_TTL"),
		LockWait:            viper.GetDuration("LOCK_WAIT"),
		StripeSecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
		DefaultCurrency:     strings.ToUpper(viper.GetString("DEFAULT_CURRENCY")),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
	}, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
