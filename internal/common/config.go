package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig
	Database DatabaseConfig
	Server   ServerConfig
	Extract  ExtractConfig
	Tagging  TaggingConfig
	Retry    RetryConfig
	Queue    QueueConfig
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string // json | text
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr      string
	InboxDir      string
	InboxDebounce time.Duration
}

// ExtractConfig selects and locates the extractors.
type ExtractConfig struct {
	StructuredMode         string // embedded | remote | off
	StructuredURL          string
	OCRURL                 string
	ReceiptTotalCorrection bool
}

// TaggingConfig selects the tagging backend.
type TaggingConfig struct {
	Backend           string // remote | openai | off
	URL               string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAITemperature float32
	Timeout           time.Duration
}

// RetryConfig parameterizes the fault tolerant client.
type RetryConfig struct {
	CallTimeout   time.Duration
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	MaxElapsed    time.Duration
	Jitter        float64
	RatePerSecond float64
}

// QueueConfig holds async processing settings.
type QueueConfig struct {
	Workers        int
	Size           int
	RunTimeout     time.Duration
	ResultCacheTTL time.Duration
}

var envFiles = []string{".env", "../.env"}

// LoadConfig loads configuration from environment variables. A .env file is
// optional; values already present in the environment win.
func LoadConfig() *Config {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			break
		}
	}

	return &Config{
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", "file:records.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:      getEnv("GRPC_ADDR", ":8080"),
			InboxDir:      getEnv("INBOX_DIR", ""),
			InboxDebounce: getEnvAsDuration("INBOX_DEBOUNCE", 750*time.Millisecond),
		},
		Extract: ExtractConfig{
			StructuredMode:         strings.ToLower(getEnv("STRUCTURED_MODE", "embedded")),
			StructuredURL:          getEnv("STRUCTURED_URL", ""),
			OCRURL:                 getEnv("OCR_URL", ""),
			ReceiptTotalCorrection: getEnvAsBool("RECEIPT_TOTAL_CORRECTION", true),
		},
		Tagging: TaggingConfig{
			Backend:           strings.ToLower(getEnv("TAGGER", "remote")),
			URL:               getEnv("TAGGER_URL", ""),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			OpenAITemperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:           getEnvAsDuration("TAGGING_TIMEOUT", time.Minute),
		},
		Retry: RetryConfig{
			CallTimeout:   getEnvAsDuration("CALL_TIMEOUT", 30*time.Second),
			MaxAttempts:   getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:     getEnvAsDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
			MaxDelay:      getEnvAsDuration("RETRY_MAX_DELAY", 5*time.Second),
			MaxElapsed:    getEnvAsDuration("RETRY_MAX_ELAPSED", 90*time.Second),
			Jitter:        getEnvAsFloat64("RETRY_JITTER", 0.5),
			RatePerSecond: getEnvAsFloat64("OUTBOUND_RPS", 0),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			RunTimeout:     getEnvAsDuration("RUN_TIMEOUT", 3*time.Minute),
			ResultCacheTTL: getEnvAsDuration("RESULT_CACHE_TTL", 15*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("DB_URL", c.Database.DSN, Required).
		Field("DB_DRIVER", c.Database.Driver, OneOf("postgres", "sqlite")).
		Field("OCR_URL", c.Extract.OCRURL, Required, URL).
		Field("STRUCTURED_MODE", c.Extract.StructuredMode, OneOf("embedded", "remote", "off")).
		Field("TAGGER", c.Tagging.Backend, OneOf("remote", "openai", "off")).
		Field("RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts, Positive).
		Field("CALL_TIMEOUT", c.Retry.CallTimeout, Positive)

	if c.Extract.StructuredMode == "remote" {
		v.Field("STRUCTURED_URL", c.Extract.StructuredURL, Required, URL)
	}
	switch c.Tagging.Backend {
	case "remote":
		v.Field("TAGGER_URL", c.Tagging.URL, Required, URL)
	case "openai":
		v.Field("OPENAI_API_KEY", c.Tagging.OpenAIAPIKey, Required)
	}
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
