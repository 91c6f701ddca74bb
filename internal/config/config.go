// Package config loads service settings from the environment, with a .env
// file honoured outside production.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string

	LogLevel  string
	LogPretty bool

	PollInterval time.Duration

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	Storage StorageConfig
	WS      WSConfig
}

// StorageConfig selects where submission exports are written.
type StorageConfig struct {
	Type    string // "local" or "s3"
	Dir     string
	BaseURL string

	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PublicURL       string
}

// WSConfig holds the player WebSocket keepalive settings.
type WSConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads the configuration. Outside production a .env file in the
// working directory is loaded first; a missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if v.GetString("APP_ENV") != "production" {
		// Production injects env vars through infra; .env is a dev convenience
		_ = godotenv.Load()
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8083")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("POLL_INTERVAL", "250ms")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CHANNEL", "clip-submissions")
	v.SetDefault("STORAGE_TYPE", "local")
	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("BASE_URL", "http://localhost:8083")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_USE_PATH_STYLE", false)
	v.SetDefault("WS_PING_INTERVAL", "50s")
	v.SetDefault("WS_PONG_WAIT", "60s")
	v.SetDefault("WS_WRITE_WAIT", "10s")
	v.SetDefault("WS_MAX_MESSAGE_SIZE", 4096)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:         v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogPretty:      v.GetBool("LOG_PRETTY"),
		PollInterval:   v.GetDuration("POLL_INTERVAL"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		RedisDB:        v.GetInt("REDIS_DB"),
		RedisChannel:   v.GetString("REDIS_CHANNEL"),
		Storage: StorageConfig{
			Type:            strings.ToLower(v.GetString("STORAGE_TYPE")),
			Dir:             v.GetString("EXPORT_DIR"),
			BaseURL:         v.GetString("BASE_URL"),
			Bucket:          v.GetString("AWS_BUCKET"),
			Region:          v.GetString("AWS_REGION"),
			Endpoint:        v.GetString("AWS_ENDPOINT"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			UsePathStyle:    v.GetBool("AWS_USE_PATH_STYLE"),
			PublicURL:       v.GetString("AWS_PUBLIC_URL"),
		},
		WS: WSConfig{
			PingInterval:   v.GetDuration("WS_PING_INTERVAL"),
			PongWait:       v.GetDuration("WS_PONG_WAIT"),
			WriteWait:      v.GetDuration("WS_WRITE_WAIT"),
			MaxMessageSize: v.GetInt64("WS_MAX_MESSAGE_SIZE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("AWS_BUCKET is required when STORAGE_TYPE=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q", c.Storage.Type)
	}
	if c.WS.PingInterval >= c.WS.PongWait {
		return fmt.Errorf("WS_PING_INTERVAL (%s) must be shorter than WS_PONG_WAIT (%s)", c.WS.PingInterval, c.WS.PongWait)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
