package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	ServerPort  string
	Environment string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisAddress string

	// JWT configuration
	JWTSecret string

	// Sync engine config
	SyncServerAddress string

	// internal secret used for server-to-server calls (sync engine, maintenance)
	InternalSecret string

	// how often the flusher persists live canvas state
	SnapshotInterval time.Duration

	FrontendAddress string
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file. The result is passed explicitly to every component;
// nothing keeps a package-level copy.
func Load() Config {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	return Config{
		ServerPort:        getEnv("PORT", "8080"),
		Environment:       getEnv("ENV", "development"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "canvas_backend"),
		RedisAddress:      getEnv("REDIS_ADDRESS", "localhost:6379"),
		SyncServerAddress: getEnv("SYNC_ADDRESS", "http://localhost:8787"),
		JWTSecret:         getEnv("JWT_SECRET", "canvas-dev-secret"),
		InternalSecret:    getEnv("INTERNAL_SECRET", "canvas-internal-secret"),
		SnapshotInterval:  getEnvSeconds("SNAPSHOT_INTERVAL_SECONDS", 10),
		FrontendAddress:   getEnv("FRONTEND_ADDRESS", "https://production-frontend.com"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	value := os.Getenv(key)
	if value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		log.Printf("Warning: invalid %s=%q, using default\n", key, value)
	}
	return time.Duration(defaultSeconds) * time.Second
}
