package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config - all environment-driven settings for the studio server
type Config struct {
	// Server
	Port string

	// Collaborator services. Both default to this process so a single
	// binary serves the engine and its collaborators.
	RenderBaseURL string
	ParserBaseURL string

	// Static assets
	StaticRoot  string
	DownloadDir string

	// Library persistence backend: "file", "redis" or "memory"
	StoreBackend string
	StoreRoot    string

	// Redis (only used when StoreBackend == "redis")
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Gemini (optional; text-to-creative previews fall back to a local
	// placeholder when no key is configured)
	GeminiAPIKey string
	GeminiModel  string

	// Minimum spacing between sequential asset downloads
	DownloadDelay time.Duration
}

var globalConfig *Config

// LoadConfig - load environment variables (with optional .env file)
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	useTLS := false
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			useTLS = parsed
		}
	}

	delay := 500 * time.Millisecond
	if delayStr := os.Getenv("DOWNLOAD_DELAY_MS"); delayStr != "" {
		if parsed, err := strconv.Atoi(delayStr); err == nil && parsed >= 0 {
			delay = time.Duration(parsed) * time.Millisecond
		}
	}

	port := getEnv("PORT", "8080")

	globalConfig = &Config{
		Port: port,

		RenderBaseURL: getEnv("RENDER_BASE_URL", "http://localhost:"+port),
		ParserBaseURL: getEnv("PARSER_BASE_URL", "http://localhost:"+port),

		StaticRoot:  getEnv("STATIC_ROOT", "./static"),
		DownloadDir: getEnv("DOWNLOAD_DIR", "./static/downloads"),

		StoreBackend: getEnv("STORE_BACKEND", "file"),
		StoreRoot:    getEnv("STORE_ROOT", "./data"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		DownloadDelay: delay,
	}

	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Store: %s (%s)", globalConfig.StoreBackend, globalConfig.StoreRoot)
	log.Printf("   Render service: %s", globalConfig.RenderBaseURL)
	log.Printf("   Parser service: %s", globalConfig.ParserBaseURL)
	log.Printf("   Gemini configured: %v", globalConfig.GeminiAPIKey != "")

	return globalConfig, nil
}

// GetConfig - access the loaded configuration
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - check required/consistent settings
func (c *Config) validate() error {
	switch c.StoreBackend {
	case "file", "memory":
	case "redis":
		if c.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required when STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %s", c.StoreBackend)
	}
	if c.StoreBackend == "file" && c.StoreRoot == "" {
		return fmt.Errorf("STORE_ROOT is required when STORE_BACKEND=file")
	}
	return nil
}

// getEnv - read an environment variable with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetRedisAddr - build the Redis connection string
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
