package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseDBURL   string
	SupabaseKey     string // Service role key, used only by cmd/seed
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string
	// Storage
	Store      string // "postgres" or "memory"
	RedisURL   string // Empty disables the comment list cache
	CacheTTL   time.Duration
	AutoSchema bool // Create tables on startup
	// Anchoring
	HighlightStylesFile string // Optional YAML override for marker styles
	ContextWindow       int    // Characters captured before/after a selection
	FuzzyRelocation     bool   // Relocate drifted highlights using their context windows
	// Sessions
	SessionIdleTTL time.Duration // Idle annotation sessions are dropped after this long
	// Dev-only user when no JWKS is configured
	DevUserID string
	// Logging
	LogDir      string // Empty logs to stdout only
	MaxLogFiles int
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	jwksURL := ""
	if supabaseURL != "" {
		jwksURL = supabaseURL + "/auth/v1/.well-known/jwks.json"
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         env,
		SupabaseURL:         supabaseURL,
		SupabaseDBURL:       getEnv("SUPABASE_DB_URL", ""),
		SupabaseKey:         getEnv("SUPABASE_KEY", ""),
		SupabaseJWKSURL:     jwksURL,
		CORSOrigins:         getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:         tablePrefix,
		Store:               getEnv("STORE", "postgres"),
		RedisURL:            getEnv("REDIS_URL", ""),
		CacheTTL:            getDuration("CACHE_TTL", 10*time.Minute),
		AutoSchema:          getEnv("AUTO_SCHEMA", "false") == "true",
		HighlightStylesFile: getEnv("HIGHLIGHT_STYLES_FILE", ""),
		ContextWindow:       getInt("CONTEXT_WINDOW", DefaultContextWindow),
		FuzzyRelocation:     getEnv("FUZZY_RELOCATION", "true") == "true",
		SessionIdleTTL:      getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		DevUserID:           getEnv("DEV_USER_ID", ""),
		LogDir:              getEnv("LOG_DIR", ""),
		MaxLogFiles:         getInt("MAX_LOG_FILES", 5),
		Debug:               getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
