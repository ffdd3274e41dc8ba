package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Port       string
	CORSOrigin string
	LogLevel   string
	LogFormat  string

	// Spreadsheet
	SpreadsheetID         string
	SheetName             string
	GoogleCredentialsFile string

	// Sync scheduler. SyncEnabled runs the schedule; SyncOnStart only adds a
	// cycle at startup ahead of the first interval.
	SyncEnabled  bool
	SyncInterval time.Duration
	SyncOnStart  bool

	// Mirror store
	MirrorBackend string
	DBPath        string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	RedisURL      string

	// WhatsApp session
	AuthFolder           string
	ReconnectDelay       time.Duration
	ReconnectMaxAttempts int
	DefaultCountryCode   string
	MediaDir             string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:       getEnv("PORT", "8080"),
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "console"),

		SpreadsheetID:         getEnv("SPREADSHEET_ID", ""),
		SheetName:             getEnv("SHEET_NAME", "Página1"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "./service-account-key.json"),

		SyncEnabled:  getEnvBool("SYNC_ENABLED", true),
		SyncInterval: time.Duration(getEnvInt("SYNC_INTERVAL_SECONDS", 300)) * time.Second,
		SyncOnStart:  getEnvBool("SYNC_ON_START", true),

		MirrorBackend: strings.ToLower(getEnv("MIRROR_BACKEND", BackendSQLite)),
		DBPath:        getEnv("DB_PATH", "./leadboard.db"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "leadboard"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),

		AuthFolder:           getEnv("AUTH_FOLDER", "auth_info"),
		ReconnectDelay:       time.Duration(getEnvInt("RECONNECT_DELAY_MS", 3000)) * time.Millisecond,
		ReconnectMaxAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 0),
		DefaultCountryCode:   getEnv("DEFAULT_COUNTRY_CODE", "55"),
		MediaDir:             getEnv("MEDIA_DIR", "./media"),
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("SPREADSHEET_ID is required")
	}
	if c.SheetName == "" {
		return fmt.Errorf("SHEET_NAME is required")
	}
	switch c.MirrorBackend {
	case BackendSQLite, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown MIRROR_BACKEND %q", c.MirrorBackend)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL_SECONDS must be positive")
	}
	return nil
}

// PostgresDSN builds the connection string for the postgres mirror backend.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid integer for %s: %q", key, value)
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
