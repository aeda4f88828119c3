package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLength = 32

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Service Ports
	HTTPPort int `env:"HTTP_PORT" default:"8080"`

	// Database
	DatabaseURL string `env:"DATABASE_URL" default:"roomchat.db"`

	// Authentication
	JWTSecret string `env:"JWT_SECRET" required:"production"`

	// Token TTLs
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" default:"24h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" default:"720h"`

	// Redis (optional, enables the shared HTTP rate limiter)
	RedisURL           string `env:"REDIS_URL"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" default:"120"`

	// WebSocket
	WSMessagesPerSecond int `env:"WS_MESSAGES_PER_SECOND" default:"10"`
	WSBurst             int `env:"WS_BURST" default:"20"`

	// Development
	LogLevel    string   `env:"LOG_LEVEL" default:"info"`
	LogFormat   string   `env:"LOG_FORMAT" default:"text"`
	CORSOrigins []string `env:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`

	// File Storage
	UploadDir       string `env:"UPLOAD_DIR" default:"./data/uploads"`
	UploadBaseURL   string `env:"UPLOAD_BASE_URL" default:"/files"`
	UploadMaxSizeMB int    `env:"UPLOAD_MAX_SIZE_MB" default:"10"`

	// Admin bootstrap
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// set when DATABASE_URL / JWT_SECRET came from the environment rather than a default
	databaseURLSet bool
	jwtSecretSet   bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// .env is optional, system env vars still apply without it
	if err := godotenv.Load(".env"); err != nil {
		slog.Debug("dotenv_not_loaded", "error", err.Error())
	}

	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 8080); err != nil {
		return nil, err
	}

	// Database
	config.databaseURLSet = os.Getenv("DATABASE_URL") != ""
	if err := loadEnvString(&config.DatabaseURL, "DATABASE_URL", "roomchat.db"); err != nil {
		return nil, err
	}

	// Authentication
	if config.IsProduction() {
		if err := loadEnvStringRequired(&config.JWTSecret, "JWT_SECRET"); err != nil {
			return nil, err
		}
		config.jwtSecretSet = true
	} else {
		config.jwtSecretSet = os.Getenv("JWT_SECRET") != ""
		if config.jwtSecretSet {
			config.JWTSecret = os.Getenv("JWT_SECRET")
		} else {
			// no hardcoded fallback: tokens just don't survive a restart in development
			secret, err := randomSecret()
			if err != nil {
				return nil, err
			}
			config.JWTSecret = secret
			slog.Warn("jwt_secret_generated", "reason", "JWT_SECRET not set, using a per-process secret")
		}
	}
	if err := loadEnvDuration(&config.AccessTokenTTL, "ACCESS_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.RefreshTokenTTL, "REFRESH_TOKEN_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}

	// Redis
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}

	// WebSocket
	if err := loadEnvInt(&config.WSMessagesPerSecond, "WS_MESSAGES_PER_SECOND", 10); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.WSBurst, "WS_BURST", 20); err != nil {
		return nil, err
	}

	// Development
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}
	if err := loadEnvStringSlice(&config.CORSOrigins, "CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}); err != nil {
		return nil, err
	}

	// File Storage
	if err := loadEnvString(&config.UploadDir, "UPLOAD_DIR", "./data/uploads"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.UploadBaseURL, "UPLOAD_BASE_URL", "/files"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.UploadMaxSizeMB, "UPLOAD_MAX_SIZE_MB", 10); err != nil {
		return nil, err
	}

	// Admin bootstrap
	if err := loadEnvString(&config.AdminUsername, "ADMIN_USERNAME", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.AdminPassword, "ADMIN_PASSWORD", ""); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringRequired(target *string, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return fmt.Errorf("required environment variable %s is not set", key)
	}
	*target = value
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringSlice(target *[]string, key string, defaultValue []string) error {
	if value := os.Getenv(key); value != "" {
		*target = strings.Split(value, ",")
		for i, v := range *target {
			(*target)[i] = strings.TrimSpace(v)
		}
	} else {
		*target = defaultValue
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, minSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errors = append(errors, "HTTP_PORT must be between 1 and 65535")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errors = append(errors, "ACCESS_TOKEN_TTL and REFRESH_TOKEN_TTL must be positive")
	}
	if c.UploadMaxSizeMB < 1 {
		errors = append(errors, "UPLOAD_MAX_SIZE_MB must be at least 1")
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, "RATE_LIMIT_PER_MINUTE must be at least 1")
	}
	if c.WSMessagesPerSecond < 1 || c.WSBurst < 1 {
		errors = append(errors, "WS_MESSAGES_PER_SECOND and WS_BURST must be at least 1")
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		errors = append(errors, "ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}

	if len(c.JWTSecret) < minSecretLength {
		errors = append(errors, "JWT_SECRET should be at least 32 characters long")
	}

	// production fails closed on anything that silently fell back to a default
	if c.IsProduction() {
		if !c.jwtSecretSet {
			errors = append(errors, "JWT_SECRET must be set in production")
		}
		if !c.databaseURLSet {
			errors = append(errors, "DATABASE_URL must be set in production")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsPostgres reports whether DATABASE_URL points at a Postgres server instead of a SQLite file.
func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// UploadMaxBytes returns the default upload cap in bytes.
func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) * 1024 * 1024
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
