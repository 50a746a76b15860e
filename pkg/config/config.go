package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Scanner
	Scanner        ScannerConfig
	MarketTimezone string

	// Quote providers
	QuoteProvider string // finnhub, yahoo, alphavantage
	Finnhub       FinnhubConfig
	Yahoo         YahooConfig
	AlphaVantage  AlphaVantageConfig

	// LLM
	Groq GroqConfig

	// Universe storage
	Universe UniverseConfig

	// Database (optional: universe overrides + alert history)
	Database         DatabaseConfig
	HistoryRetention time.Duration

	// Redis (optional: scan snapshot mirror + shared rate limits)
	Redis RedisConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// ScannerConfig holds scan scheduling and alert selection parameters
type ScannerConfig struct {
	Interval          time.Duration
	DefaultUniverse   string
	Universes         []string // round-robin rotation order
	NormalThreshold   float64  // percent
	StrongThreshold   float64  // percent
	MinForceScanGap   time.Duration
	MaxSymbolsPerScan int
	RequestDelay      time.Duration
	MinPrice          float64
	FetchTimeout      time.Duration
	RateLimitRetries  int
	RateLimitBackoff  time.Duration
}

// FinnhubConfig holds Finnhub API configuration
type FinnhubConfig struct {
	APIKey  string
	BaseURL string
}

// YahooConfig holds Yahoo Finance configuration
type YahooConfig struct {
	BaseURL string
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string
}

// GroqConfig holds Groq (OpenAI-compatible) API configuration
type GroqConfig struct {
	APIKey       string
	BaseURL      string
	ChatModel    string
	InsightModel string
	InsightLangs []string // languages refreshed by the hourly job
}

// UniverseConfig holds universe override storage configuration
type UniverseConfig struct {
	Store   string // file, postgres
	DataDir string
	Catalog string // optional YAML catalogue path
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database connection is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	defaultUniverse := getEnv("DEFAULT_UNIVERSE", "SP100")

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "3000"),
		Env:  getEnv("ENV", "development"),

		// Scanner
		Scanner: ScannerConfig{
			Interval:          time.Duration(getEnvAsInt("SCAN_INTERVAL", 15)) * time.Minute,
			DefaultUniverse:   defaultUniverse,
			Universes:         getEnvAsList("SCAN_UNIVERSES", []string{defaultUniverse}),
			NormalThreshold:   getEnvAsFloat("NORMAL_THRESHOLD", 3),
			StrongThreshold:   getEnvAsFloat("STRONG_THRESHOLD", 5),
			MinForceScanGap:   time.Duration(getEnvAsInt("MIN_FORCE_SCAN_GAP", 3)) * time.Minute,
			MaxSymbolsPerScan: getEnvAsInt("MAX_SYMBOLS_PER_SCAN", 100),
			RequestDelay:      time.Duration(getEnvAsInt("DELAY_MS", 350)) * time.Millisecond,
			MinPrice:          getEnvAsFloat("MIN_PRICE", 5),
			FetchTimeout:      getEnvAsDuration("FETCH_TIMEOUT", "10s"),
			RateLimitRetries:  getEnvAsInt("RATE_LIMIT_RETRIES", 3),
			RateLimitBackoff:  getEnvAsDuration("RATE_LIMIT_BACKOFF", "500ms"),
		},
		MarketTimezone: getEnv("MARKET_TIMEZONE", "America/New_York"),

		// Quote providers
		QuoteProvider: strings.ToLower(getEnv("QUOTE_PROVIDER", "finnhub")),
		Finnhub: FinnhubConfig{
			APIKey:  getEnv("FINNHUB_KEY", ""),
			BaseURL: getEnv("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
		},
		Yahoo: YahooConfig{
			BaseURL: getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:  getEnv("ALPHA_VANTAGE_KEY", ""),
			BaseURL: getEnv("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co"),
		},

		// LLM
		Groq: GroqConfig{
			APIKey:       getEnv("GROQ_API_KEY", ""),
			BaseURL:      getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			ChatModel:    getEnv("GROQ_CHAT_MODEL", "llama-3.1-8b-instant"),
			InsightModel: getEnv("GROQ_INSIGHT_MODEL", "llama-3.3-70b-versatile"),
			InsightLangs: getEnvAsList("INSIGHT_LANGS", []string{"en", "es"}),
		},

		// Universe storage
		Universe: UniverseConfig{
			Store:   strings.ToLower(getEnv("UNIVERSE_STORE", "file")),
			DataDir: getEnv("DATA_DIR", "data"),
			Catalog: getEnv("UNIVERSE_CATALOG", ""),
		},

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},
		HistoryRetention: getEnvAsDuration("HISTORY_RETENTION", "720h"),

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.QuoteProvider {
	case "finnhub", "yahoo", "alphavantage":
	default:
		return fmt.Errorf("QUOTE_PROVIDER must be one of: finnhub, yahoo, alphavantage")
	}

	switch c.Universe.Store {
	case "file":
	case "postgres":
		if !c.Database.Enabled() {
			return fmt.Errorf("UNIVERSE_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("UNIVERSE_STORE must be one of: file, postgres")
	}

	s := c.Scanner
	if s.Interval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive")
	}
	if s.MinForceScanGap <= 0 {
		return fmt.Errorf("MIN_FORCE_SCAN_GAP must be positive")
	}
	if s.MaxSymbolsPerScan <= 0 {
		return fmt.Errorf("MAX_SYMBOLS_PER_SCAN must be positive")
	}
	if s.RequestDelay < 0 {
		return fmt.Errorf("DELAY_MS must not be negative")
	}
	if s.NormalThreshold < 0 {
		return fmt.Errorf("NORMAL_THRESHOLD must not be negative")
	}
	// A strong threshold below the normal one would label alerts "high" that
	// are weaker than the cutoff itself; reject instead of clamping.
	if s.StrongThreshold < s.NormalThreshold {
		return fmt.Errorf("STRONG_THRESHOLD (%.2f) must be >= NORMAL_THRESHOLD (%.2f)", s.StrongThreshold, s.NormalThreshold)
	}
	if len(s.Universes) == 0 {
		return fmt.Errorf("SCAN_UNIVERSES must list at least one universe")
	}
	if c.HistoryRetention <= 0 {
		return fmt.Errorf("HISTORY_RETENTION must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, trimming blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
