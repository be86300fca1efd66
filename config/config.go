package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Gateway  GatewayConfig
	AWS      AWSConfig
	Email    EmailConfig
	Sweep    SweepConfig
	LogLevel string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL           string // if set, used as-is
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MaxConns      int
	RunMigrations bool
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds the secret shared with the storefront account system.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// GatewayConfig holds payment gateway credentials and webhook settings.
type GatewayConfig struct {
	BaseURL          string
	ShopID           string
	SecretKey        string
	Timeout          time.Duration
	WebhookSecret    string // empty rejects every webhook
	SignatureHeader  string
	DefaultReturnURL string // storefront base; /orders/{id}/success is appended
	Currency         string
}

// AWSConfig holds S3 settings for the webhook archive. An empty bucket disables it.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	ArchiveBucket   string
}

// EmailConfig holds SMTP settings for order confirmations.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// SweepConfig controls the stale payment sweeper.
type SweepConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:           getEnv("DATABASE_URL", ""),
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", "postgres"),
			DBName:        getEnv("DB_NAME", "checkout"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MaxConns:      getEnvInt("DB_MAX_CONNS", 20),
			RunMigrations: getEnvBool("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Gateway: GatewayConfig{
			BaseURL:          getEnv("GATEWAY_BASE_URL", "https://api.yookassa.ru/v3"),
			ShopID:           getEnv("GATEWAY_SHOP_ID", ""),
			SecretKey:        getEnv("GATEWAY_SECRET_KEY", ""),
			Timeout:          getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
			WebhookSecret:    getEnv("GATEWAY_WEBHOOK_SECRET", ""),
			SignatureHeader:  getEnv("GATEWAY_SIGNATURE_HEADER", "X-Webhook-Signature"),
			DefaultReturnURL: getEnv("GATEWAY_DEFAULT_RETURN_URL", "http://localhost:3000"),
			Currency:         getEnv("ORDER_CURRENCY", "RUB"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			ArchiveBucket:   getEnv("AWS_S3_WEBHOOK_ARCHIVE_BUCKET", ""),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Course Store"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Sweep: SweepConfig{
			Interval:   getEnvDuration("SWEEP_INTERVAL", time.Minute),
			StaleAfter: getEnvDuration("SWEEP_STALE_AFTER", 15*time.Minute),
			BatchSize:  getEnvInt("SWEEP_BATCH_SIZE", 50),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	if cfg.Gateway.ShopID == "" || cfg.Gateway.SecretKey == "" {
		return cfg, fmt.Errorf("GATEWAY_SHOP_ID and GATEWAY_SECRET_KEY are required")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
