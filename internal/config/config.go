package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is read once at startup and passed into the components that need
// it. Nothing re-reads the environment mid-process.
type Config struct {
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIMaxTokens   int
	OpenAITemperature float32

	HTTPPort string
	LogLevel string

	// StoragePath is the file backend location; RedisURL/RedisToken, when
	// both present, select the remote backend instead.
	StoragePath string
	RedisURL    string
	RedisToken  string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIMaxTokens:   getEnvAsInt("OPENAI_MAX_TOKENS", 1000),
		OpenAITemperature: getEnvAsFloat("OPENAI_TEMPERATURE", 0.7),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		StoragePath:       getEnv("STORAGE_PATH", "data/student_responses.json"),
		// Managed deployments export the UPSTASH_ prefix; prefer it.
		RedisURL:   firstEnv("UPSTASH_REDIS_URL", "REDIS_URL"),
		RedisToken: firstEnv("UPSTASH_REDIS_TOKEN", "REDIS_TOKEN"),
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float32) float32 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 32); err == nil {
		return float32(value)
	}
	return defaultValue
}
