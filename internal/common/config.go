package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production" - production routes all console logs to stderr
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Logging     LoggingConfig   `toml:"logging"`
	Auth        AuthConfig      `toml:"auth"`
	Gmail       GmailConfig     `toml:"gmail"`
	Analysis    AnalysisConfig  `toml:"analysis"`
	Scheduler   SchedulerConfig `toml:"scheduler"`

	// Rule definitions arrive as untyped bags and are parsed into typed
	// variants by the rules package (unknown types fail fast there).
	Rules []map[string]interface{} `toml:"rules"`
}

type StorageConfig struct {
	// Path is the root directory for per-user databases and token files.
	// Overridable via STORAGE_PATH.
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete databases on startup for clean test runs
}

type QueueConfig struct {
	PollInterval string `toml:"poll_interval"` // e.g., "100ms" - worker sleep when queue is empty
	Workers      int    `toml:"workers"`       // Number of concurrent workers
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stderr", "file"
}

type AuthConfig struct {
	MultiUser          bool   `toml:"multi_user"`           // MULTI_USER_MODE enables multi-tenant behavior
	DefaultUser        string `toml:"default_user"`         // User bound by authenticate in single-user mode
	SessionTTL         string `toml:"session_ttl"`          // e.g., "24h"
	TokenEncryptionKey string `toml:"token_encryption_key"` // Symmetric key for token-at-rest encryption (TOKEN_ENCRYPTION_KEY)
}

type GmailConfig struct {
	BatchSize      int    `toml:"batch_size"`      // Page size for vendor batch fetches (GMAIL_BATCH_SIZE)
	RequestTimeout string `toml:"request_timeout"` // Client-level timeout per Gmail call
	RatePerSecond  int    `toml:"rate_per_second"` // Token-bucket rate for vendor calls
	MaxRetries     int    `toml:"max_retries"`     // Bounded backoff retries on transient failures
}

// AnalysisConfig drives the categorization pipeline.
type AnalysisConfig struct {
	HighThreshold       float64 `toml:"high_threshold"`       // Importance score >= this is "high"
	LowThreshold        float64 `toml:"low_threshold"`        // Importance score <= this is "low"
	RecentDays          int     `toml:"recent_days"`          // Age <= this many days is "recent"
	ModerateDays        int     `toml:"moderate_days"`        // Age <= this many days is "moderate"
	SmallMaxBytes       int64   `toml:"small_max_bytes"`      // Size <= this is "small"
	MediumMaxBytes      int64   `toml:"medium_max_bytes"`     // Size <= this is "medium"
	RecencyWeight       float64 `toml:"recency_weight"`       // Weight of recency in the date/size score
	SizeWeight          float64 `toml:"size_weight"`          // Weight of size in the date/size score
	SpamThreshold       float64 `toml:"spam_threshold"`       // Spam score above this downgrades to low
	PromoThreshold      float64 `toml:"promo_threshold"`      // Promotional score above this downgrades to low
	Parallel            bool    `toml:"parallel"`             // Run analyzers concurrently per email
	AnalyzerTimeout     string  `toml:"analyzer_timeout"`     // Per-analyzer timeout in parallel mode
	CacheEnabled        bool    `toml:"cache_enabled"`        // Cache importance results
	CacheTTL            string  `toml:"cache_ttl"`            // Importance result cache TTL
	FingerprintStrategy string  `toml:"fingerprint_strategy"` // "partial" or "full"

	// Legacy keyword-list categorization. Entries are auto-translated into
	// keyword rules by the rules config builder.
	LegacyHighKeywords []string `toml:"legacy_high_keywords"`
	LegacyLowKeywords  []string `toml:"legacy_low_keywords"`
}

type SchedulerConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns a config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Path: "./data",
		},
		Queue: QueueConfig{
			PollInterval: "100ms",
			Workers:      2,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Output: []string{"stderr"},
		},
		Auth: AuthConfig{
			DefaultUser: "default",
			SessionTTL:  "24h",
		},
		Gmail: GmailConfig{
			BatchSize:      100,
			RequestTimeout: "30s",
			RatePerSecond:  10,
			MaxRetries:     3,
		},
		Analysis: AnalysisConfig{
			HighThreshold:       10,
			LowThreshold:        -5,
			RecentDays:          7,
			ModerateDays:        30,
			SmallMaxBytes:       100 * 1024,
			MediumMaxBytes:      1024 * 1024,
			RecencyWeight:       0.6,
			SizeWeight:          0.4,
			SpamThreshold:       0.7,
			PromoThreshold:      0.6,
			Parallel:            true,
			AnalyzerTimeout:     "10s",
			CacheEnabled:        true,
			CacheTTL:            "5m",
			FingerprintStrategy: "partial",
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
	}
}

// LoadFromFile loads configuration from a TOML file, then applies environment
// overrides. A missing file is not an error - defaults plus environment apply.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies the recognized environment variables on top of
// file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("MULTI_USER_MODE"); v != "" {
		c.Auth.MultiUser = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NODE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("GMAIL_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Gmail.BatchSize = n
		}
	}
	if v := os.Getenv("TOKEN_ENCRYPTION_KEY"); v != "" {
		c.Auth.TokenEncryptionKey = v
	}
}

// Validate checks configuration invariants that would otherwise surface as
// runtime failures deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be at least 1")
	}
	if _, err := time.ParseDuration(c.Queue.PollInterval); err != nil {
		return fmt.Errorf("invalid queue.poll_interval: %w", err)
	}
	if c.Analysis.FingerprintStrategy != "partial" && c.Analysis.FingerprintStrategy != "full" {
		return fmt.Errorf("analysis.fingerprint_strategy must be \"partial\" or \"full\", got %q", c.Analysis.FingerprintStrategy)
	}
	if c.Analysis.SmallMaxBytes >= c.Analysis.MediumMaxBytes {
		return fmt.Errorf("analysis.small_max_bytes must be below medium_max_bytes")
	}
	return nil
}

// PollIntervalDuration returns the parsed worker poll interval.
func (c *QueueConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// SessionTTLDuration returns the parsed session lifetime.
func (c *AuthConfig) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// RequestTimeoutDuration returns the parsed Gmail client timeout.
func (c *GmailConfig) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// AnalyzerTimeoutDuration returns the parsed per-analyzer timeout.
func (c *AnalysisConfig) AnalyzerTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.AnalyzerTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// CacheTTLDuration returns the parsed importance cache TTL.
func (c *AnalysisConfig) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
