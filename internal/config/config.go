// Package config loads runtime settings from the environment and the static
// reference tables from YAML.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Reference data
	ReferencePath string

	// Fetch settings
	FetchTimeout        time.Duration
	FetchConcurrency    int
	MaxEntriesPerSource int // 0 = unlimited
	UserAgent           string

	// Text settings
	ExcerptMaxRunes     int
	SummaryMaxSentences int

	// Dedup settings
	DedupThreshold float64 // similarity in 0..1
	DedupWindow    time.Duration

	// Recency decay
	RecencyCurve      string // linear | exponential | step
	RecencyMaxBonus   float64
	RecencyFullWindow time.Duration
	RecencyHorizon    time.Duration
	RecencyHalfLife   time.Duration
	StarDivisor       float64

	// Query settings
	ResultLimit int

	// Sentiment settings
	SentimentBackend  string // lexicon | gemini
	GeminiAPIKey      string
	GeminiModel       string
	MaxGeminiRequests int // per refresh cycle, 0 = unlimited
	GeminiRPS         float64
	GeminiTimeout     time.Duration // per model request attempt
	SentimentCacheTTL time.Duration // 0 disables the result cache

	// App settings
	HTTPAddr        string
	RefreshSchedule string
	Debug           bool
	LogLevel        string
}

// Load reads a .env file when present, then the environment, and validates
// the result. Values that do not parse are reported, never replaced by their
// default. The returned error is a *ConfigurationError.
func Load() (*Config, error) {
	_ = godotenv.Load()

	errs := &ConfigurationError{Source: "environment"}
	cfg := &Config{
		ReferencePath:       getEnvOrDefault("REFERENCE_CONFIG_PATH", "configs/reference.yaml"),
		FetchTimeout:        getEnvDurationOrDefault(errs, "FETCH_TIMEOUT", 8*time.Second),
		FetchConcurrency:    getEnvIntOrDefault(errs, "FETCH_CONCURRENCY", 6),
		MaxEntriesPerSource: getEnvIntOrDefault(errs, "MAX_ENTRIES_PER_SOURCE", 25),
		UserAgent:           getEnvOrDefault("FETCH_USER_AGENT", "pacwatch/1.0 (+rss)"),
		ExcerptMaxRunes:     getEnvIntOrDefault(errs, "EXCERPT_MAX_RUNES", 600),
		SummaryMaxSentences: getEnvIntOrDefault(errs, "SUMMARY_MAX_SENTENCES", 3),
		DedupThreshold:      getEnvFloatOrDefault(errs, "DEDUP_THRESHOLD", 0.8),
		DedupWindow:         getEnvDurationOrDefault(errs, "DEDUP_WINDOW", 6*time.Hour),
		RecencyCurve:        strings.ToLower(getEnvOrDefault("RECENCY_CURVE", "linear")),
		RecencyMaxBonus:     getEnvFloatOrDefault(errs, "RECENCY_MAX_BONUS", 20),
		RecencyFullWindow:   getEnvDurationOrDefault(errs, "RECENCY_FULL_WINDOW", 6*time.Hour),
		RecencyHorizon:      getEnvDurationOrDefault(errs, "RECENCY_HORIZON", 72*time.Hour),
		RecencyHalfLife:     getEnvDurationOrDefault(errs, "RECENCY_HALF_LIFE", 12*time.Hour),
		StarDivisor:         getEnvFloatOrDefault(errs, "STAR_DIVISOR", 20),
		ResultLimit:         getEnvIntOrDefault(errs, "RESULT_LIMIT", 50),
		SentimentBackend:    strings.ToLower(getEnvOrDefault("SENTIMENT_BACKEND", "lexicon")),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		MaxGeminiRequests:   getEnvIntOrDefault(errs, "MAX_GEMINI_REQUESTS", 40),
		GeminiRPS:           getEnvFloatOrDefault(errs, "GEMINI_RPS", 2),
		GeminiTimeout:       getEnvDurationOrDefault(errs, "GEMINI_TIMEOUT", 20*time.Second),
		SentimentCacheTTL:   getEnvDurationOrDefault(errs, "SENTIMENT_CACHE_TTL", 24*time.Hour),
		HTTPAddr:            getEnvOrDefault("HTTP_ADDR", ":8080"),
		RefreshSchedule:     getEnvOrDefault("REFRESH_SCHEDULE", "@every 15m"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}

	var invalid *ConfigurationError
	if err := cfg.Validate(); errors.As(err, &invalid) {
		errs.Problems = append(errs.Problems, invalid.Problems...)
	}
	if err := errs.orNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(errs *ConfigurationError, key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.Atoi(value)
		if err != nil {
			errs.add("%s: invalid integer %q", key, value)
			return defaultValue
		}
		return intValue
	}
	return defaultValue
}

func getEnvFloatOrDefault(errs *ConfigurationError, key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			errs.add("%s: invalid number %q", key, value)
			return defaultValue
		}
		return f
	}
	return defaultValue
}

func getEnvDurationOrDefault(errs *ConfigurationError, key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			errs.add("%s: invalid duration %q", key, value)
			return defaultValue
		}
		return d
	}
	return defaultValue
}

// Validate reports every invalid tunable at once.
func (c *Config) Validate() error {
	errs := &ConfigurationError{Source: "environment"}

	if c.ReferencePath == "" {
		errs.add("REFERENCE_CONFIG_PATH is required")
	}
	if c.FetchTimeout <= 0 {
		errs.add("FETCH_TIMEOUT must be positive")
	}
	if c.FetchConcurrency < 1 {
		errs.add("FETCH_CONCURRENCY must be at least 1")
	}
	if c.MaxEntriesPerSource < 0 {
		errs.add("MAX_ENTRIES_PER_SOURCE must not be negative")
	}
	if c.ExcerptMaxRunes < 1 {
		errs.add("EXCERPT_MAX_RUNES must be at least 1")
	}
	if c.SummaryMaxSentences < 1 {
		errs.add("SUMMARY_MAX_SENTENCES must be at least 1")
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		errs.add("DEDUP_THRESHOLD must be in (0, 1]")
	}
	if c.DedupWindow < 0 {
		errs.add("DEDUP_WINDOW must not be negative")
	}
	switch c.RecencyCurve {
	case "linear", "exponential", "step":
	default:
		errs.add("RECENCY_CURVE must be 'linear', 'exponential' or 'step'")
	}
	if c.RecencyMaxBonus < 0 {
		errs.add("RECENCY_MAX_BONUS must not be negative")
	}
	if c.RecencyFullWindow < 0 || c.RecencyHorizon < c.RecencyFullWindow {
		errs.add("RECENCY_FULL_WINDOW must be within 0..RECENCY_HORIZON")
	}
	if c.RecencyCurve == "exponential" && c.RecencyHalfLife <= 0 {
		errs.add("RECENCY_HALF_LIFE must be positive for the exponential curve")
	}
	if c.StarDivisor <= 0 {
		errs.add("STAR_DIVISOR must be positive")
	}
	if c.ResultLimit < 0 {
		errs.add("RESULT_LIMIT must not be negative")
	}
	switch c.SentimentBackend {
	case "lexicon":
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs.add("GEMINI_API_KEY is required when SENTIMENT_BACKEND=gemini")
		}
		if c.GeminiRPS <= 0 {
			errs.add("GEMINI_RPS must be positive")
		}
		if c.GeminiTimeout <= 0 {
			errs.add("GEMINI_TIMEOUT must be positive")
		}
		if c.SentimentCacheTTL < 0 {
			errs.add("SENTIMENT_CACHE_TTL must not be negative")
		}
	default:
		errs.add("SENTIMENT_BACKEND must be 'lexicon' or 'gemini'")
	}

	return errs.orNil()
}
