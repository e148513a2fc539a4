package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration read from the environment at startup.
type Config struct {
	AppEnv   string
	LogLevel string

	HTTPListenAddr   string
	MetricsNamespace string

	// StoreDriver selects the payment store backend: "postgres" or "sqlite".
	StoreDriver    string
	DatabaseURL    string
	DatabaseSchema string
	SQLitePath     string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration

	ExtractCacheTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	WhatsAppStorePath string
	WhatsAppLogLevel  string
}

// Load reads configuration from environment variables, applying defaults
// where sensible and failing on missing required values.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPListenAddr:   getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "expense_bot"),

		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DatabaseSchema: getEnv("DATABASE_SCHEMA", "public"),
		SQLitePath:     getEnv("SQLITE_PATH", "data/payments.db"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTimeout: getDuration("GEMINI_TIMEOUT", 30*time.Second),

		ExtractCacheTTL: getDuration("EXTRACT_CACHE_TTL", 10*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		RedisTLS:      getBool("REDIS_TLS", false),

		WhatsAppStorePath: getEnv("WA_STORE_PATH", "data/whatsapp.db"),
		WhatsAppLogLevel:  getEnv("WA_LOG_LEVEL", "WARN"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q (expected postgres or sqlite)", cfg.StoreDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
