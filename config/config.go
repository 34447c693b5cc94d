// Package config provides configuration for the chat relay.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the relay configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Upstream provider
	GroqURL     string
	GroqAPIKey  string
	LLMTimeout  time.Duration

	// Generation defaults applied when a request omits them
	DefaultModel       string
	DefaultTemperature float64
	DefaultMaxTokens   int

	// Session defaults
	SessionMaxTokens   int
	DefaultSessionName string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:        getEnv("DATABASE_URL", ":memory:"),
		GroqURL:            getEnv("GROQ_URL", "https://api.groq.com/openai"),
		GroqAPIKey:         getEnv("GROQ_API_KEY", ""),
		LLMTimeout:         time.Duration(getEnvInt("LLM_TIMEOUT_MS", 0)) * time.Millisecond,
		DefaultModel:       getEnv("DEFAULT_MODEL", "llama3-70b-8192"),
		DefaultTemperature: getEnvFloat("DEFAULT_TEMPERATURE", 0.7),
		DefaultMaxTokens:   getEnvInt("DEFAULT_MAX_TOKENS", 1024),
		SessionMaxTokens:   getEnvInt("SESSION_MAX_TOKENS", 4096),
		DefaultSessionName: getEnv("DEFAULT_SESSION_NAME", "Cuộc trò chuyện mới"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}
