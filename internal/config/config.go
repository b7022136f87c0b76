package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port         string
	Env          string
	LogLevel     string
	BusinessName string
	Timezone     string
	CatalogFile  string

	// Scheduling policy
	MinAdvanceHours int
	SearchWindow    time.Duration

	// Sessions
	SessionStore  string
	SessionTTL    time.Duration
	SessionsTable string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Inbound processing
	Queue           string
	InboundQueueURL string
	WorkerCount     int
	DatabaseURL     string

	// ProcessedRetention bounds how long inbound message ids are remembered.
	ProcessedRetention time.Duration

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// NLU
	NLUProvider            string
	NLUConfidenceThreshold float64
	NLUTimeout             time.Duration
	GeminiAPIKey           string
	GeminiModel            string
	BedrockModelID         string

	// Calendar
	CalendarBackend       string
	GoogleCredentialsFile string
	GoogleTokenFile       string

	// Transports
	WhatsAppEnabled  bool
	WhatsAppDBPath   string
	TelegramBotToken string
	WebchatEnabled   bool
	WebchatOrigins   []string
	ChatRateLimit    float64
	ChatBurst        int

	// Admin surface
	AdminJWTSecret string
	AdminEmail     string
	AdminPhone     string
	AlertInterval  time.Duration

	// Email alerts
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		BusinessName: getEnv("BUSINESS_NAME", "Caballeros"),
		Timezone:     getEnv("TIMEZONE", "America/Bogota"),
		CatalogFile:  getEnv("CATALOG_FILE", ""),

		MinAdvanceHours: getEnvAsInt("MIN_ADVANCE_HOURS", 1),
		SearchWindow:    getEnvAsDuration("SEARCH_WINDOW", 30*24*time.Hour),

		SessionStore:  strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", "memory"))),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		SessionsTable: getEnv("SESSIONS_TABLE", "booking_sessions"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		Queue:           strings.ToLower(strings.TrimSpace(getEnv("QUEUE", "memory"))),
		InboundQueueURL: getEnv("INBOUND_QUEUE_URL", ""),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 4),
		DatabaseURL:     getEnv("DATABASE_URL", ""),

		ProcessedRetention: getEnvAsDuration("PROCESSED_RETENTION", 72*time.Hour),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		NLUProvider:            strings.ToLower(strings.TrimSpace(getEnv("NLU_PROVIDER", "gemini"))),
		NLUConfidenceThreshold: getEnvAsFloat("NLU_CONFIDENCE_THRESHOLD", 0.7),
		NLUTimeout:             getEnvAsDuration("NLU_TIMEOUT", 8*time.Second),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		BedrockModelID:         getEnv("BEDROCK_MODEL_ID", ""),

		CalendarBackend:       strings.ToLower(strings.TrimSpace(getEnv("CALENDAR_BACKEND", "google"))),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		GoogleTokenFile:       getEnv("GOOGLE_TOKEN_FILE", "token.json"),

		WhatsAppEnabled:  getEnvAsBool("WHATSAPP_ENABLED", true),
		WhatsAppDBPath:   getEnv("WHATSAPP_DB_PATH", "whatsapp.db"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebchatEnabled:   getEnvAsBool("WEBCHAT_ENABLED", false),
		WebchatOrigins:   getEnvAsList("WEBCHAT_ALLOWED_ORIGINS"),
		ChatRateLimit:    getEnvAsFloat("CHAT_RATE_LIMIT", 2),
		ChatBurst:        getEnvAsInt("CHAT_RATE_BURST", 5),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPhone:     getEnv("ADMIN_PHONE", ""),
		AlertInterval:  getEnvAsDuration("ADMIN_ALERT_INTERVAL", time.Hour),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Barbería"),
	}
}

// LoadDotEnv populates the environment from .env style files without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// Location resolves the configured business timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
