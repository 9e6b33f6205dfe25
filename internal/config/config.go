package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBSource   string `yaml:"db_source"`
	Port       string `yaml:"port"`
	Env        string `yaml:"environment"`
	AdminToken string `yaml:"admin_token"`
	Currency   string `yaml:"currency"`

	Log   LogConfig   `yaml:"log"`
	Redis RedisConfig `yaml:"redis"`
	SMTP  SMTPConfig  `yaml:"smtp"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// RedisConfig enables the payment method cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// SMTPConfig enables fulfillment alert mail when Host is set.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

func defaults() *Config {
	return &Config{
		Port:     "8080",
		Env:      "development",
		Currency: "USD",
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Redis: RedisConfig{TTL: 5 * time.Minute},
		SMTP:  SMTPConfig{Port: 587},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE, then the environment (including a .env file when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.DBSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}
	if cfg.AdminToken == "" {
		return nil, fmt.Errorf("ADMIN_TOKEN environment variable is required")
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.DBSource, "DB_SOURCE")
	setString(&c.Port, "SERVER_PORT")
	setString(&c.Env, "ENVIRONMENT")
	setString(&c.AdminToken, "ADMIN_TOKEN")
	setString(&c.Currency, "CURRENCY")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Log.File, "LOG_FILE")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.User, "SMTP_USER")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.From, "SMTP_FROM")
	setString(&c.SMTP.To, "ALERT_EMAIL")

	for _, v := range []struct {
		dst *int
		key string
	}{
		{&c.Log.MaxSizeMB, "LOG_MAX_SIZE_MB"},
		{&c.Log.MaxBackups, "LOG_MAX_BACKUPS"},
		{&c.Log.MaxAgeDays, "LOG_MAX_AGE_DAYS"},
		{&c.Redis.DB, "REDIS_DB"},
		{&c.SMTP.Port, "SMTP_PORT"},
	} {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}

	if raw := os.Getenv("REDIS_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("REDIS_TTL: %w", err)
		}
		c.Redis.TTL = ttl
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
