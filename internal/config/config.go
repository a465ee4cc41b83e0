package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/stemsi/listening-survey/internal/storeerr"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// DefaultTokenURL is Google's OAuth2 token endpoint for service accounts.
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	StorageBackend string

	// Google Sheets backend.
	SpreadsheetID  string
	ClientEmail    string
	PrivateKey     string
	TokenURL       string
	SheetsEndpoint string

	// Postgres backend.
	DatabaseURL  string
	MaxDBConns   int32
	WorkbookName string

	RedisURL        string
	SubmitRateLimit int // per minute per client IP; 0 disables
	// AllowedOrigins controls HTTP CORS.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error, .env is optional

	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "pretty"),
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", BackendSheets)),
		SpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		ClientEmail:     getEnv("GOOGLE_CLIENT_EMAIL", ""),
		PrivateKey:      NormalizePrivateKey(getEnv("GOOGLE_PRIVATE_KEY", "")),
		TokenURL:        getEnv("GOOGLE_TOKEN_URL", DefaultTokenURL),
		SheetsEndpoint:  getEnv("SHEETS_ENDPOINT", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MaxDBConns:      int32(getEnvInt("MAX_DB_CONNS", 8)),
		WorkbookName:    getEnv("WORKBOOK_NAME", "default"),
		RedisURL:        getEnv("REDIS_URL", ""),
		SubmitRateLimit: getEnvInt("SUBMIT_RATE_LIMIT", 0),
		AllowedOrigins:  parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

// Validate reports every missing setting required by the selected storage
// backend. The returned error wraps storeerr.ErrConfiguration.
func (c *Config) Validate() error {
	var missing []string
	switch c.StorageBackend {
	case BackendSheets:
		if c.SpreadsheetID == "" {
			missing = append(missing, "GOOGLE_SPREADSHEET_ID")
		}
		if c.ClientEmail == "" {
			missing = append(missing, "GOOGLE_CLIENT_EMAIL")
		}
		if c.PrivateKey == "" {
			missing = append(missing, "GOOGLE_PRIVATE_KEY")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown STORAGE_BACKEND %q", storeerr.ErrConfiguration, c.StorageBackend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", storeerr.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// NormalizePrivateKey turns literal "\n" sequences, as found in env files and
// CI secrets, into real newlines.
func NormalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
