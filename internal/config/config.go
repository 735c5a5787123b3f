package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	GeminiAPIKey  string
	GeminiModel   string
	JWTSecret     string
	HTTPPort      string
	LogLevel      string
	LogPretty     bool
	HistoryWindow int

	StoreBackend string // "s3", "sqlite" or "bolt"
	DatabaseURL  string
	BoltPath     string

	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string // optional, for S3-compatible stores
}

var AppConfig Config

func LoadConfig() {
	load(Config.Validate)
}

// LoadAuthConfig is LoadConfig for commands that only sign tokens: only JWT_SECRET is required.
func LoadAuthConfig() {
	load(Config.ValidateAuth)
}

func load(validate func(Config) error) {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}

	AppConfig = FromEnv()

	if err := validate(AppConfig); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
}

// FromEnv reads the configuration from the process environment without validating it.
func FromEnv() Config {
	return Config{
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		LogPretty:     getEnvAsBool("LOG_PRETTY", false),
		HistoryWindow: getEnvAsInt("HISTORY_WINDOW", 5),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		DatabaseURL:  getEnv("DATABASE_URL", "tweetsmith.db"),
		BoltPath:     getEnv("BOLT_PATH", "tweetsmith.bolt"),

		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
	}
}

// ValidateAuth checks only what token signing needs.
func (c Config) ValidateAuth() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return nil
}

func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if err := c.ValidateAuth(); err != nil {
		return err
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("HISTORY_WINDOW must not be negative")
	}

	switch c.StoreBackend {
	case "s3":
		if c.S3Bucket == "" || c.S3Region == "" {
			return fmt.Errorf("S3_BUCKET and S3_REGION are required for the s3 store backend")
		}
		if c.S3AccessKeyID == "" || c.S3SecretAccessKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 store backend")
		}
	case "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the sqlite store backend")
		}
	case "bolt":
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required for the bolt store backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
