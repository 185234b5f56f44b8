package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL string `mapstructure:"DATABASE_URL" validate:"required,url|uri"`

	// Redis backs the asynq mail queue and, with NOTIFIER=redis, the notification queue.
	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL time.Duration `mapstructure:"ACCESS_TOKEN_TTL" validate:"required"`
	SessionKey     string        `mapstructure:"SESSION_KEY"`
	SessionIdleTTL time.Duration `mapstructure:"SESSION_IDLE_TTL" validate:"required"`

	// SiteURL is the email redirect target sent with sign-up confirmations.
	SiteURL         string `mapstructure:"SITE_URL" validate:"required,url"`
	AuthAutoConfirm bool   `mapstructure:"AUTH_AUTOCONFIRM"`

	Notifier string `mapstructure:"NOTIFIER" validate:"required,oneof=memory redis"`

	StorageDriver      string `mapstructure:"STORAGE_DRIVER" validate:"required,oneof=local gcs"`
	StorageDir         string `mapstructure:"STORAGE_DIR"`
	StoragePublicURL   string `mapstructure:"STORAGE_PUBLIC_URL"`
	GCSBucket          string `mapstructure:"GCS_BUCKET" validate:"required_if=StorageDriver gcs"`
	GCSCredentialsFile string `mapstructure:"GCS_CREDENTIALS_FILE"`

	ProfileResolveTimeout time.Duration `mapstructure:"PROFILE_RESOLVE_TIMEOUT" validate:"required"`

	// CORSAllowedOrigins is a comma separated allowlist; empty allows any origin.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var durationKeys = []string{
	"SHUTDOWN_TIMEOUT",
	"ACCESS_TOKEN_TTL",
	"SESSION_IDLE_TTL",
	"PROFILE_RESOLVE_TIMEOUT",
}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	// Defaults
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("ACCESS_TOKEN_TTL", "1h")
	v.SetDefault("SESSION_IDLE_TTL", "30m")
	v.SetDefault("SITE_URL", "http://localhost:8080/")
	v.SetDefault("AUTH_AUTOCONFIRM", false)
	v.SetDefault("NOTIFIER", "memory")
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_DIR", "./media")
	v.SetDefault("STORAGE_PUBLIC_URL", "/media")
	v.SetDefault("PROFILE_RESOLVE_TIMEOUT", "5s")

	// Optional config file
	_ = v.ReadInConfig()

	// Bind env without prefix for convenience
	keys := []string{
		"APP_ENV",
		"HTTP_ADDR",
		"SHUTDOWN_TIMEOUT",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_URL",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"ASYNQ_CONCURRENCY",
		"GOMAXPROCS",
		"JWT_SECRET",
		"ACCESS_TOKEN_TTL",
		"SESSION_KEY",
		"SESSION_IDLE_TTL",
		"SITE_URL",
		"AUTH_AUTOCONFIRM",
		"NOTIFIER",
		"STORAGE_DRIVER",
		"STORAGE_DIR",
		"STORAGE_PUBLIC_URL",
		"GCS_BUCKET",
		"GCS_CREDENTIALS_FILE",
		"PROFILE_RESOLVE_TIMEOUT",
		"CORS_ALLOWED_ORIGINS",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Parse duration types that may come as string
	for _, key := range durationKeys {
		s := v.GetString(key)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		switch key {
		case "SHUTDOWN_TIMEOUT":
			c.ShutdownTimeout = d
		case "ACCESS_TOKEN_TTL":
			c.AccessTokenTTL = d
		case "SESSION_IDLE_TTL":
			c.SessionIdleTTL = d
		case "PROFILE_RESOLVE_TIMEOUT":
			c.ProfileResolveTimeout = d
		}
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Notifier == "redis" && c.RedisAddr == "" {
		return nil, fmt.Errorf("invalid configuration: NOTIFIER=redis requires REDIS_ADDR")
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}

// AllowedOrigins splits CORSAllowedOrigins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// IsProduction reports whether the process runs with APP_ENV=production.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }
