// Package config loads server settings from defaults, an optional YAML file,
// a .env file and GARDEROBA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. GARDEROBA_SERVER_ADDR.
const EnvPrefix = "GARDEROBA"

// Config is the server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Advice  AdviceConfig  `mapstructure:"advice"`
	Mail    MailConfig    `mapstructure:"mail"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Session SessionConfig `mapstructure:"session"`
}

type ServerConfig struct {
	DBPath     string `mapstructure:"db_path"`
	Addr       string `mapstructure:"addr"`
	AdminEmail string `mapstructure:"admin_email"`
	LogPath    string `mapstructure:"log_path"`
}

// RedisConfig selects Redis for local state and the change feed. An empty
// Addr keeps both in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// AdviceConfig points at an OpenAI-compatible chat completion API. Without
// an API key outfit suggestions are disabled.
type AdviceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MailConfig selects SES for sign-up codes. An empty Sender logs codes
// instead of mailing them.
type MailConfig struct {
	Sender string `mapstructure:"sender"`
	Region string `mapstructure:"region"`
}

type ScanConfig struct {
	MinDuration time.Duration `mapstructure:"min_duration"`
}

type SessionConfig struct {
	CodeTTL        time.Duration `mapstructure:"code_ttl"`
	ResendCooldown time.Duration `mapstructure:"resend_cooldown"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.db_path", "garderoba.sqlite3")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.admin_email", "admin@garderoba.local")
	v.SetDefault("server.log_path", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "garderoba:changes")
	v.SetDefault("advice.base_url", "")
	v.SetDefault("advice.model", "gpt-4o-mini")
	v.SetDefault("advice.api_key", "")
	v.SetDefault("advice.timeout", 30*time.Second)
	v.SetDefault("mail.sender", "")
	v.SetDefault("mail.region", "eu-central-1")
	v.SetDefault("scan.min_duration", 1200*time.Millisecond)
	v.SetDefault("session.code_ttl", 10*time.Minute)
	v.SetDefault("session.resend_cooldown", 120*time.Second)
}

// Load reads configuration. path names an optional YAML file; when empty,
// garderoba.yaml is looked up in the working directory and ./configs. A .env
// file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("garderoba")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.DBPath == "" {
		return errors.New("server.db_path is required")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Scan.MinDuration < 0 {
		return errors.New("scan.min_duration must not be negative")
	}
	if c.Mail.Sender != "" && c.Mail.Region == "" {
		return errors.New("mail.region is required when mail.sender is set")
	}
	return nil
}
