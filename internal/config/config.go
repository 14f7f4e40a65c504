package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	IdentityAPIURL     string // base URL of the identity platform REST API
	IdentityAPIKey     string
	DatabaseURL        string
	RedisURL           string
	GoogleClientID     string
	GoogleClientSecret string
	CallbackAddr       string // loopback listener for the desktop Google flow
	HomeURL            string
	LoginURL           string
	UserAgent          string // device-class detection input
	Page               string // page this engine instance backs: index, login, signup
	LogLevel           string
	Environment        string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		IdentityAPIURL:     getEnv("IDENTITY_API_URL", "https://identitytoolkit.googleapis.com"),
		IdentityAPIKey:     getEnv("IDENTITY_API_KEY", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		CallbackAddr:       getEnv("CALLBACK_ADDR", "127.0.0.1:8417"),
		HomeURL:            getEnv("HOME_URL", "index.html"),
		LoginURL:           getEnv("LOGIN_URL", "login.html"),
		UserAgent:          getEnv("USER_AGENT", ""),
		Page:               getEnv("PAGE", "index"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Environment:        getEnv("ENVIRONMENT", "production"),
	}, nil
}

// IsAuthPage reports whether this instance backs the login or signup page
func (c *Config) IsAuthPage() bool {
	page := strings.ToLower(c.Page)
	return page == "login" || page == "signup"
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
