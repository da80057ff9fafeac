// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Workers  int     `yaml:"workers"`   // polling update workers
	AdminIDs []int64 `yaml:"admin_ids"` // may use admin-only bot commands
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port         int           `yaml:"port"`
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	Password     string        `yaml:"password"` // admin login password
	SecureCookie bool          `yaml:"secure_cookie"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type BroadcastConfig struct {
	Concurrency int           `yaml:"concurrency"`  // worker pool size per run
	RatePerSec  int           `yaml:"rate_per_sec"` // global pacing ceiling
	MaxRetries  int           `yaml:"max_retries"`  // retries per recipient; negative disables
	BackoffBase time.Duration `yaml:"backoff_base"` // doubles per retry
}

type AutoSendConfig struct {
	Cron        string `yaml:"cron"` // schedule of the auto-message pass
	Concurrency int    `yaml:"concurrency"`
	RatePerSec  int    `yaml:"rate_per_sec"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	AutoSend  AutoSendConfig  `yaml:"autosend"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Broadcast.Concurrency <= 0 {
		cfg.Broadcast.Concurrency = 4
	}
	if cfg.Broadcast.RatePerSec <= 0 {
		cfg.Broadcast.RatePerSec = 25
	}
	// Zero means unset; spell "no retries" as a negative value.
	if cfg.Broadcast.MaxRetries == 0 {
		cfg.Broadcast.MaxRetries = 2
	}
	if cfg.Broadcast.MaxRetries < 0 {
		cfg.Broadcast.MaxRetries = 0
	}
	if cfg.Broadcast.BackoffBase <= 0 {
		cfg.Broadcast.BackoffBase = 500 * time.Millisecond
	}
	if cfg.AutoSend.Cron == "" {
		cfg.AutoSend.Cron = "*/5 * * * *" // every five minutes
	}
	if cfg.AutoSend.Concurrency <= 0 {
		cfg.AutoSend.Concurrency = 2
	}
	if cfg.AutoSend.RatePerSec <= 0 {
		cfg.AutoSend.RatePerSec = 10
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation. Dev mode swaps the real messenger for a noop one,
	// so the bot token is only required outside it.
	if cfg.Bot.Token == "" && !dev {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Admin.JWTSecret == "" && !dev {
		return nil, errors.New("admin.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
