package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const defaultSystemInstruction = "You are Rafi, a friendly and knowledgeable AI assistant. " +
	"When asked who you are, introduce yourself as Rafi. Answer clearly and concisely."

type Config struct {
	// Server
	Port string
	Env  string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL string
	DBMaxConns  int

	// Redis
	RedisURL string

	// Auth
	JWTSecret string

	// Gemini AI
	GeminiAPIKey            string
	GeminiModel             string
	GeminiBaseURL           string
	GeminiSystemInstruction string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                    getEnvOrDefault("PORT", "8080"),
		Env:                     getEnvOrDefault("ENV", "development"),
		LogLevel:                getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:               getEnvOrDefault("LOG_FORMAT", "pretty"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		DBMaxConns:              getEnvAsIntOrDefault("DB_MAX_CONNS", 25),
		RedisURL:                os.Getenv("REDIS_URL"),
		JWTSecret:               os.Getenv("SUPABASE_JWT_SECRET"),
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		GeminiModel:             getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:           getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiSystemInstruction: getEnvOrDefault("GEMINI_SYSTEM_INSTRUCTION", defaultSystemInstruction),
	}

	return cfg
}

// Validate reports settings that only make sense together. A missing Gemini
// key is not an error here: the chat endpoint reports it per request.
func (c *Config) Validate() error {
	if c.DatabaseURL != "" && c.JWTSecret == "" {
		return errors.New("SUPABASE_JWT_SECRET is required when DATABASE_URL is set")
	}
	if c.RedisURL != "" && c.DatabaseURL == "" {
		return errors.New("REDIS_URL requires DATABASE_URL")
	}
	return nil
}

// PersistenceEnabled reports whether the conversation API should be mounted.
func (c *Config) PersistenceEnabled() bool {
	return c.DatabaseURL != ""
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
