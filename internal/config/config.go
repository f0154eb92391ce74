package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	Port        string
	Environment string // development, production

	MongoURL string
	DBName   string

	JWTSecret   string
	TokenExpiry time.Duration

	GoogleClientID          string
	FirebaseCredentialsPath string

	CORSOrigins []string
	GuestMode   bool

	LogLevel string
	LogFile  string

	ReconcileSchedule string
	StaticDir         string
}

var defaultCORSOrigins = []string{
	"http://127.0.0.1:3000",
	"http://localhost:3000",
	"http://127.0.0.1:5173",
	"http://localhost:5173",
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "3030"),
		Environment: getEnv("APP_ENV", "development"),

		MongoURL: getEnv("MONGO_URL", "mongodb://localhost:27017"),
		DBName:   getEnv("DB_NAME", "bladder_db"),

		JWTSecret:   getEnv("SECRET", "Secret-Puk-1234"),
		TokenExpiry: time.Duration(getEnvAsInt("TOKEN_EXPIRY_HOURS", 720)) * time.Hour,

		GoogleClientID:          getEnv("GOOGLE_CLIENT_ID", ""),
		FirebaseCredentialsPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),

		CORSOrigins: getEnvAsList("CORS_ORIGINS", defaultCORSOrigins),
		GuestMode:   getEnvAsBool("GUEST_MODE", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "./logs/backend.log"),

		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@hourly"),
		StaticDir:         getEnv("STATIC_DIR", "public"),
	}

	return cfg
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
