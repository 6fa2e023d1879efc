package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const envTrue = "true"

// LoadFromFile decodes a JSON config file over cfg. Fields absent from the
// file keep their current values.
func LoadFromFile(path string, cfg *Config) error {
	// #nosec G304 - Config file path is supplied by the operator
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("[Config] Failed to close config file", slog.String("error", err.Error()))
		}
	}()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides configuration with environment variables
func ApplyEnv(cfg *Config) {
	loadServerConfig(cfg)
	loadModelsConfig(cfg)
	loadSegmentationConfig(cfg)
	loadDatabaseConfig(cfg)
	loadHistoryConfig(cfg)
	loadCacheConfig(cfg)
	loadLoggingConfig(cfg)
	loadSentryConfig(cfg)
}

func loadServerConfig(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
	}

	if uiPath := os.Getenv("UI_PATH"); uiPath != "" {
		cfg.Server.UIPath = uiPath
	}

	if rps := os.Getenv("RATE_LIMIT_RPS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.Server.RateLimitRPS = v
		}
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.Server.RateLimitBurst = v
		}
	}
}

func loadSegmentationConfig(cfg *Config) {
	if strip := os.Getenv("STRIP_MARKDOWN"); strip != "" {
		cfg.Segmentation.StripMarkdown = strip == envTrue
	}
}

func loadModelsConfig(cfg *Config) {
	if repo := os.Getenv("BIN_REPO"); repo != "" {
		cfg.Models.BinaryRepo = repo
	}

	if repo := os.Getenv("ML_REPO"); repo != "" {
		cfg.Models.MultilabelRepo = repo
	}

	if rev := os.Getenv("MODEL_REVISION"); rev != "" {
		cfg.Models.Revision = rev
	}

	if token := os.Getenv("HF_TOKEN"); token != "" {
		cfg.Models.HubToken = token
		slog.Info("[Config] Loaded HF_TOKEN from environment", slog.Int("length", len(token)))
	}

	if hubURL := os.Getenv("HF_HUB_URL"); hubURL != "" {
		cfg.Models.HubURL = hubURL
	}

	if dir := os.Getenv("MODEL_CACHE_DIR"); dir != "" {
		cfg.Models.CacheDir = dir
	}

	if lib := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); lib != "" {
		cfg.Models.RuntimeLibPath = lib
	}
}

func loadDatabaseConfig(cfg *Config) {
	if dbEnabled := os.Getenv("DB_ENABLED"); dbEnabled != "" {
		cfg.Database.Enabled = dbEnabled == envTrue
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.Username = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}

	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}
}

func loadHistoryConfig(cfg *Config) {
	if cleanupHours := os.Getenv("DB_CLEANUP_HOURS"); cleanupHours != "" {
		if hours, err := strconv.Atoi(cleanupHours); err == nil {
			cfg.History.CleanupHours = hours
		}
	}

	if maxEntries := os.Getenv("HISTORY_MAX_ENTRIES"); maxEntries != "" {
		if n, err := strconv.Atoi(maxEntries); err == nil {
			cfg.History.MaxEntries = n
		}
	}

	if maxSessions := os.Getenv("HISTORY_MAX_SESSIONS"); maxSessions != "" {
		if n, err := strconv.Atoi(maxSessions); err == nil {
			cfg.History.MaxSessions = n
		}
	}
}

func loadCacheConfig(cfg *Config) {
	if enabled := os.Getenv("CACHE_ENABLED"); enabled != "" {
		cfg.Cache.Enabled = enabled == envTrue
	}

	if backend := os.Getenv("CACHE_BACKEND"); backend != "" {
		cfg.Cache.Backend = backend
	}

	if ttl := os.Getenv("CACHE_TTL_SECONDS"); ttl != "" {
		if n, err := strconv.Atoi(ttl); err == nil {
			cfg.Cache.TTLSeconds = n
		}
	}

	if addr := os.Getenv("VALKEY_INIT_ADDRESS"); addr != "" {
		cfg.Cache.ValkeyAddress = addr
	}

	if password := os.Getenv("VALKEY_PASSWORD"); password != "" {
		cfg.Cache.ValkeyPassword = password
	}

	if useTLS := os.Getenv("VALKEY_TLS"); useTLS != "" {
		cfg.Cache.ValkeyTLS = useTLS == envTrue
	}
}

func loadLoggingConfig(cfg *Config) {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if logText := os.Getenv("LOG_TEXT"); logText != "" {
		cfg.Logging.LogText = logText == envTrue
	}
}

func loadSentryConfig(cfg *Config) {
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		cfg.Sentry.DSN = dsn
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Sentry.Environment = env
	}
}
