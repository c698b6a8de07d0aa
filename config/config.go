package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort     string
	FrontendOrigin string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// Vision analysis configuration
	OpenAIAPIKey    string
	OpenAIAPIURL    string
	OpenAIModel     string
	AnalysisTimeout time.Duration

	// Meal photo fetch timeout
	FetchTimeout time.Duration

	// Telegram configuration
	TelegramBotToken string
	AdminTelegramID  int64
	AdminChatID      int64

	// Admin HTTP API (JWT signing secret)
	AdminAPISecret string

	// Moderation policy
	BanThreshold int

	// S3 photo archive
	S3Bucket  string
	AWSRegion string
}

// Load builds a Config from environment variables. The OpenAI key may come
// from OPENAI_API_KEY_FILE instead of the environment, matching how secrets
// are mounted in production.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "3000"),
		FrontendOrigin: os.Getenv("FRONTEND_ORIGIN"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "mealwise"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisURL:      os.Getenv("REDIS_URL"),

		OpenAIAPIURL: getEnv("OPENAI_API_URL", "https://api.openai.com/v1/chat/completions"),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4.1-mini"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminAPISecret:   os.Getenv("ADMIN_API_SECRET"),

		S3Bucket:  os.Getenv("S3_BUCKET_NAME"),
		AWSRegion: os.Getenv("AWS_REGION"),
	}

	apiKey, err := loadAPIKey()
	if err != nil {
		return nil, err
	}
	cfg.OpenAIAPIKey = apiKey

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.RedisDB = db
		}
	}

	if idStr := os.Getenv("ADMIN_TELEGRAM_ID"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
		cfg.AdminTelegramID = id
	}
	if idStr := os.Getenv("ADMIN_CHAT_ID"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_CHAT_ID: %w", err)
		}
		cfg.AdminChatID = id
	}

	cfg.BanThreshold = getEnvInt("BAN_THRESHOLD", 0)
	cfg.AnalysisTimeout = getEnvDuration("ANALYSIS_TIMEOUT", 60*time.Second)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)

	return cfg, nil
}

// loadAPIKey reads the OpenAI key from the environment or from a key file.
func loadAPIKey() (string, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}

	keyFile := os.Getenv("OPENAI_API_KEY_FILE")
	if keyFile == "" {
		// The key is only required when the bot actually runs; tests and
		// offline tooling construct services with explicit options.
		return "", nil
	}

	keyBytes, err := os.ReadFile(keyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read API key file: %w", err)
	}

	key := strings.TrimSpace(string(keyBytes))
	if key == "" {
		return "", fmt.Errorf("API key file is empty")
	}
	return key, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
