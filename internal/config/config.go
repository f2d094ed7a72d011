package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Server
	Env  string
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Session
	SessionSecret   string
	SessionDuration time.Duration

	// Identity provider
	GoogleClientID string

	// Insights
	GeminiAPIKey string
	GeminiModel  string
}

var appConfig *Config

// Load loads configuration from environment variables, consulting a .env
// file when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "valuemetrix"),
		DBPassword: getEnv("DB_PASSWORD", "valuemetrix"),
		DBName:     getEnv("DB_NAME", "valuemetrix"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		SessionSecret:  getEnv("SESSION_SECRET", "fallback-secret-key-for-dev-only"),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
	}

	durStr := getEnv("SESSION_DURATION", "168h")
	dur, err := time.ParseDuration(durStr)
	if err != nil {
		log.Printf("Warning: invalid SESSION_DURATION value '%s', falling back to 168h\n", durStr)
		dur = 7 * 24 * time.Hour
	}
	config.SessionDuration = dur

	appConfig = config
	return config, nil
}

// Get returns the application configuration, loading it on first use.
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
