package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port           int
	Host           string
	RedisURL       string
	RedisPassword  string
	MaxSessions    int
	SessionTimeout time.Duration
	AllowedOrigins []string
	HistoryCap     int // Retained conversation messages per session

	// Upstream credentials. Absence is not an error here: a missing key
	// surfaces as an initialization failure when a session starts.
	DeepgramAPIKey   string
	OpenRouterAPIKey string
	ElevenLabsAPIKey string
	GeminiAPIKey     string

	// LLMProvider selects the completion backend: "openrouter" or "gemini"
	LLMProvider string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:           3001,
		Host:           "0.0.0.0",
		RedisURL:       "localhost:6379",
		RedisPassword:  "",
		MaxSessions:    100,
		SessionTimeout: 30 * time.Minute,
		AllowedOrigins: []string{"*"},
		HistoryCap:     10,
		LLMProvider:    "openrouter",
	}

	config.DeepgramAPIKey = os.Getenv("DEEPGRAM_API_KEY")
	config.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	config.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: HOST
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: MAX_SESSIONS
	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = m
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: HISTORY_CAP
	if cap := os.Getenv("HISTORY_CAP"); cap != "" {
		c, err := strconv.Atoi(cap)
		if err != nil {
			return nil, fmt.Errorf("invalid HISTORY_CAP: %w", err)
		}
		if c <= 0 {
			return nil, fmt.Errorf("invalid HISTORY_CAP: must be positive")
		}
		config.HistoryCap = c
	}

	// Optional: LLM_PROVIDER ("openrouter" or "gemini")
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		switch provider {
		case "openrouter", "gemini":
			config.LLMProvider = provider
		default:
			return nil, fmt.Errorf("invalid LLM_PROVIDER: must be 'openrouter' or 'gemini'")
		}
	}

	return config, nil
}
