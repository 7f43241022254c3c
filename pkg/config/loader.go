// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagBindings maps CLI flag names to config keys.
var flagBindings = map[string]string{
	"limit-interval": "orders.limit_interval",
	"dca-interval":   "orders.dca_interval",
	"log-level":      "logger.level",
}

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
// Flags present in fs override file and environment values.
func Load(configDir string, fs *pflag.FlagSet) (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// env files are optional
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if configDir == "" {
		configDir = "./configs"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Join(configDir, env+".yaml"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flagName, key := range flagBindings {
			if flag := fs.Lookup(flagName); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, nil, fmt.Errorf("bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

// Watch re-decodes the configuration whenever the backing file changes.
// Invalid revisions are reported through onError and otherwise ignored.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	if v == nil || onChange == nil {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload config %s: %w", e.Name, err))
			}
			return
		}

		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.timeout", 10*time.Second)
	v.SetDefault("bot.handler_timeout", 15*time.Second)
	v.SetDefault("bot.default_lang", "en")
	v.SetDefault("bot.locales_dir", "")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 14)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.max_idle", 5)

	v.SetDefault("orders.scheduler", "ticker")
	v.SetDefault("orders.limit_interval", 30*time.Second)
	v.SetDefault("orders.dca_interval", time.Minute)
	v.SetDefault("orders.execution_timeout", 45*time.Second)
	v.SetDefault("orders.market_timeout", 8*time.Second)
	v.SetDefault("orders.store_timeout", 5*time.Second)

	v.SetDefault("market.native_symbol", "ETH")
	v.SetDefault("market.timeout", 8*time.Second)
	v.SetDefault("market.cache_ttl", 15*time.Second)
	v.SetDefault("market.balance_timeout", 5*time.Second)

	v.SetDefault("executor.timeout", 40*time.Second)

	v.SetDefault("rate_limit.per_user.limit", 30)
	v.SetDefault("rate_limit.per_user.window", "1m")
	v.SetDefault("rate_limit.submit.limit", 5)
	v.SetDefault("rate_limit.submit.window", "1m")
}
