package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	ContextCacheTTL time.Duration

	// OpenRouter carries chat/vision/summary traffic; the direct OpenAI key
	// is only needed for Whisper, which OpenRouter does not expose.
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenAIAPIKey      string
	ChatModel         string
	VisionModel       string
	SummaryModel      string

	GoogleClientID     string
	GoogleClientSecret string

	ZAPIBaseURL string

	ClinicTimezone string
	ReadingPause   time.Duration
	DedupWindow    time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		ContextCacheTTL: getEnvAsDuration("CONTEXT_CACHE_TTL", time.Minute),

		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		ChatModel:         getEnv("CHAT_MODEL", "openai/gpt-4o-mini"),
		VisionModel:       getEnv("VISION_MODEL", "openai/gpt-4o-mini"),
		SummaryModel:      getEnv("SUMMARY_MODEL", "openai/gpt-4o-mini"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		ZAPIBaseURL: getEnv("ZAPI_BASE_URL", "https://api.z-api.io"),

		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "America/Sao_Paulo"),
		ReadingPause:   getEnvAsDuration("READING_PAUSE", 1500*time.Millisecond),
		DedupWindow:    getEnvAsDuration("DEDUP_WINDOW", 15*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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
