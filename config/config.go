package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MaxModelTokens is the position limit of the classification models.
const MaxModelTokens = 512

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendValkey = "valkey"
)

// ServerConfig holds HTTP server options
type ServerConfig struct {
	Port           string  `json:"port"`
	UIPath         string  `json:"ui_path"`
	MaxTextBytes   int     `json:"max_text_bytes"`
	RateLimitRPS   float64 `json:"rate_limit_rps"`   // Classification requests per second per client IP, 0 disables limiting
	RateLimitBurst int     `json:"rate_limit_burst"` // Burst size for each client
	ReadTimeout    int     `json:"read_timeout"`     // Seconds
	WriteTimeout   int     `json:"write_timeout"`    // Seconds
}

// ModelsConfig describes where the binary and multilabel models come from
type ModelsConfig struct {
	BinaryRepo     string   `json:"bin_repo"`
	MultilabelRepo string   `json:"ml_repo"`
	Revision       string   `json:"revision"`
	HubToken       string   `json:"hub_token,omitempty"`
	HubURL         string   `json:"hub_url"`
	CacheDir       string   `json:"cache_dir"`
	ModelFiles     []string `json:"model_files"` // ONNX file candidates, tried in order
	RuntimeLibPath string   `json:"runtime_lib_path"`
	MaxTokens      int      `json:"max_tokens"`
	DownloadRetry  int      `json:"download_retry"`
}

// SegmentationConfig holds sentence segmentation options
type SegmentationConfig struct {
	StripMarkdown bool `json:"strip_markdown"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled      bool   `json:"enabled"`        // Whether to persist history in PostgreSQL
	Host         string `json:"host"`           // Database host
	Port         int    `json:"port"`           // Database port
	Database     string `json:"database"`       // Database name
	Username     string `json:"username"`       // Database username
	Password     string `json:"password"`       // Database password
	SSLMode      string `json:"ssl_mode"`       // SSL mode (disable, require, etc.)
	MaxOpenConns int    `json:"max_open_conns"` // Maximum open connections
	MaxIdleConns int    `json:"max_idle_conns"` // Maximum idle connections
	MaxLifetime  int    `json:"max_lifetime"`   // Connection max lifetime in seconds
}

// HistoryConfig holds session history retention options
type HistoryConfig struct {
	MaxEntries   int `json:"max_entries"`   // Per session, in-memory store only
	MaxSessions  int `json:"max_sessions"`  // Sessions kept by the in-memory store, least recently written dropped first
	CleanupHours int `json:"cleanup_hours"` // Entries older than this are purged, 0 disables
}

// CacheConfig holds result cache options
type CacheConfig struct {
	Enabled        bool   `json:"enabled"`
	Backend        string `json:"backend"`
	TTLSeconds     int    `json:"ttl_seconds"`
	MaxEntries     int    `json:"max_entries"`
	ValkeyAddress  string `json:"valkey_address"`
	ValkeyPassword string `json:"valkey_password,omitempty"`
	ValkeyTLS      bool   `json:"valkey_tls"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level     string `json:"level"`      // debug, info, warn, error
	AddSource bool   `json:"add_source"` // Include file:line in log lines
	LogText   bool   `json:"log_text"`   // Log submitted text instead of its length
}

// SentryConfig holds error reporting options
type SentryConfig struct {
	DSN              string  `json:"dsn,omitempty"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
}

// Config holds all configuration for the classifier service
type Config struct {
	Server       ServerConfig       `json:"server"`
	Models       ModelsConfig       `json:"models"`
	Segmentation SegmentationConfig `json:"segmentation"`
	Database     DatabaseConfig     `json:"database"`
	History      HistoryConfig      `json:"history"`
	Cache        CacheConfig        `json:"cache"`
	Logging      LoggingConfig      `json:"logging"`
	Sentry       SentryConfig       `json:"sentry"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	cacheDir := "models"
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "nlpinitiative", "models")
	}

	return &Config{
		Server: ServerConfig{
			Port:           ":8501",
			UIPath:         "./ui/dist",
			MaxTextBytes:   64 * 1024,
			RateLimitRPS:   5,
			RateLimitBurst: 10,
			ReadTimeout:    15,
			WriteTimeout:   120, // Long inputs run many forward passes
		},
		Models: ModelsConfig{
			BinaryRepo:     "dlsmallw/Binary-Classification-testing",
			MultilabelRepo: "dlsmallw/Multilabel-Regression-testing",
			Revision:       "main",
			HubURL:         "https://huggingface.co",
			CacheDir:       cacheDir,
			ModelFiles:     []string{"onnx/model.onnx", "model.onnx"},
			MaxTokens:      MaxModelTokens,
			DownloadRetry:  3,
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "nlpinitiative",
			Username:     "postgres",
			Password:     "",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 25,
			MaxLifetime:  300,
		},
		History: HistoryConfig{
			MaxEntries:   200,
			MaxSessions:  1000,
			CleanupHours: 24,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Backend:       CacheBackendMemory,
			TTLSeconds:    3600,
			MaxEntries:    1000,
			ValkeyAddress: "localhost:6379",
		},
		Logging: LoggingConfig{
			Level:     "info",
			AddSource: true,
			LogText:   false,
		},
		Sentry: SentryConfig{
			Environment:      "dev",
			TracesSampleRate: 0,
		},
	}
}

// Validate checks the configuration for values the service cannot start with
func (c *Config) Validate() error {
	if err := validatePort(c.Server.Port, "Server.Port"); err != nil {
		return err
	}
	if strings.TrimSpace(c.Models.BinaryRepo) == "" {
		return fmt.Errorf("Models.BinaryRepo: repository cannot be empty")
	}
	if strings.TrimSpace(c.Models.MultilabelRepo) == "" {
		return fmt.Errorf("Models.MultilabelRepo: repository cannot be empty")
	}
	if c.Models.MaxTokens < 2 || c.Models.MaxTokens > MaxModelTokens {
		return fmt.Errorf("Models.MaxTokens: must be between 2 and %d (current value: %d)", MaxModelTokens, c.Models.MaxTokens)
	}
	if len(c.Models.ModelFiles) == 0 {
		return fmt.Errorf("Models.ModelFiles: at least one ONNX file name is required")
	}
	if c.Server.MaxTextBytes <= 0 {
		return fmt.Errorf("Server.MaxTextBytes: must be positive (current value: %d)", c.Server.MaxTextBytes)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("Server.RateLimitRPS: cannot be negative (current value: %g)", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("Server.RateLimitBurst: must be positive when rate limiting is enabled")
	}
	if c.History.MaxEntries <= 0 || c.History.MaxSessions <= 0 {
		return fmt.Errorf("History: max_entries and max_sessions must be positive")
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case CacheBackendMemory, CacheBackendValkey:
		default:
			return fmt.Errorf("Cache.Backend: unknown backend %q", c.Cache.Backend)
		}
	}
	return nil
}

// validatePort checks that a listen address has the form ":PORT"
func validatePort(port, fieldName string) error {
	if port == "" {
		return fmt.Errorf("%s: port cannot be empty", fieldName)
	}
	if !strings.HasPrefix(port, ":") {
		return fmt.Errorf("%s: port must be in format ':PORT' where PORT is numeric (current value: %s)", fieldName, port)
	}
	n, err := strconv.Atoi(port[1:])
	if err != nil {
		return fmt.Errorf("%s: port must be in format ':PORT' where PORT is numeric (current value: %s)", fieldName, port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("%s: port must be between 1 and 65535 (current value: %d)", fieldName, n)
	}
	return nil
}
