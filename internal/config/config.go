package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "KoloPay"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Config captures application runtime configuration loaded from environment
// variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	PaystackSecretKey string
	PaystackBaseURL   string
}

// Load reads configuration values from the environment (and a local .env
// file when present) and populates a Config instance.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		JWTSecret:         os.Getenv("JWT_SECRET"),
		RefreshSecret:     os.Getenv("JWT_REFRESH_SECRET"),
		AccessTokenTTL:    defaultAccessTokenTTL,
		RefreshTokenTTL:   defaultRefreshTokenTTL,
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   os.Getenv("PAYSTACK_BASE_URL"),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = durationEnv("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.JWTSecret
	}
	if cfg.PaystackSecretKey == "" {
		return Config{}, fmt.Errorf("PAYSTACK_SECRET_KEY must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
