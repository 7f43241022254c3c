package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the himera-swap bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Bot       BotConfig       `mapstructure:"bot" validate:"required"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Redis     RedisConfig     `mapstructure:"redis" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Session   SessionConfig   `mapstructure:"session"`
	Orders    OrdersConfig    `mapstructure:"orders" validate:"required"`
	Market    MarketConfig    `mapstructure:"market" validate:"required"`
	Executor  ExecutorConfig  `mapstructure:"executor" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// BotConfig configures the telegram transport.
type BotConfig struct {
	Token          string        `mapstructure:"token" validate:"required"`
	Mode           string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout        time.Duration `mapstructure:"timeout"`
	WebhookListen  string        `mapstructure:"webhook_listen"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	DefaultLang    string        `mapstructure:"default_lang"`
	LocalesDir     string        `mapstructure:"locales_dir"`
}

// HTTPConfig configures the metrics and health server.
type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig mirrors pkg/redis.Config for viper decoding.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// DatabaseConfig describes the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// LoggerConfig configures slog output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig toggles error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// SessionConfig controls Step persistence. A zero TTL keeps steps until cleared.
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// OrdersConfig holds the two trigger-loop cadences and execution bounds.
type OrdersConfig struct {
	Scheduler        string        `mapstructure:"scheduler" validate:"oneof=ticker asynq"`
	LimitInterval    time.Duration `mapstructure:"limit_interval" validate:"required"`
	DCAInterval      time.Duration `mapstructure:"dca_interval" validate:"required"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`
	MarketTimeout    time.Duration `mapstructure:"market_timeout"`
	StoreTimeout     time.Duration `mapstructure:"store_timeout"`
}

// MarketConfig configures the price API and chain RPC endpoints.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	RPCURL         string        `mapstructure:"rpc_url" validate:"required"`
	NativeSymbol   string        `mapstructure:"native_symbol"`
	NativeToken    string        `mapstructure:"native_token"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	BalanceTimeout time.Duration `mapstructure:"balance_timeout"`
}

// ExecutorConfig points at the swap execution service.
type ExecutorConfig struct {
	URL     string        `mapstructure:"url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateLimitRule is a "<limit> per <window>" pair.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// RateLimitConfig configures per-user limits.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PerUser   RateLimitRule `mapstructure:"per_user"`
	Submit    RateLimitRule `mapstructure:"submit"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		sslMode,
	)
}
