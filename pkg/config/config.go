package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// DevJWTSecret is the signing key used when JWT_SECRET is unset. It is only
// accepted in development.
const DevJWTSecret = "supersecretjwtkey"

type Config struct {
	Port                     string
	Env                      string
	LogLevel                 string
	DBDriver                 string
	PostgresConnStr          string
	SQLitePath               string
	JWTSecret                string
	TokenTTL                 time.Duration
	FirebaseCredentialsPath  string
	WSAllowedOrigins         []string
	ConversationHistoryLimit int
}

// Load reads configuration from the environment, after loading an optional .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                     getEnv("PORT", "8080"),
		Env:                      getEnv("ENV", "development"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		DBDriver:                 strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		PostgresConnStr:          getEnv("POSTGRES_CONN_STR", ""),
		SQLitePath:               getEnv("SQLITE_PATH", "social.db"),
		JWTSecret:                getEnv("JWT_SECRET", DevJWTSecret),
		TokenTTL:                 time.Duration(getEnvInt("JWT_TTL_HOURS", 72)) * time.Hour,
		FirebaseCredentialsPath:  getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		WSAllowedOrigins:         splitList(getEnv("WS_ALLOWED_ORIGINS", "*")),
		ConversationHistoryLimit: getEnvInt("CONVERSATION_HISTORY_LIMIT", 50),
	}
}

// Validate rejects settings that are only safe for local development.
func (c *Config) Validate() error {
	if c.Env != "development" && (c.JWTSecret == "" || c.JWTSecret == DevJWTSecret) {
		return errors.Errorf("JWT_SECRET must be set when ENV is %q", c.Env)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("Ignoring invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
