package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePort(t *testing.T) {
	testCases := []struct {
		name      string
		port      string
		fieldName string
		expectErr bool
		errString string
	}{
		{
			name:      "valid port",
			port:      ":8501",
			fieldName: "Server.Port",
			expectErr: false,
		},
		{
			name:      "empty port",
			port:      "",
			fieldName: "Server.Port",
			expectErr: true,
			errString: "Server.Port: port cannot be empty",
		},
		{
			name:      "no colon",
			port:      "8501",
			fieldName: "Server.Port",
			expectErr: true,
			errString: "Server.Port: port must be in format ':PORT' where PORT is numeric (current value: 8501)",
		},
		{
			name:      "non-numeric",
			port:      ":abcd",
			fieldName: "Server.Port",
			expectErr: true,
			errString: "Server.Port: port must be in format ':PORT' where PORT is numeric (current value: :abcd)",
		},
		{
			name:      "port out of range (low)",
			port:      ":0",
			fieldName: "Server.Port",
			expectErr: true,
			errString: "Server.Port: port must be between 1 and 65535 (current value: 0)",
		},
		{
			name:      "port out of range (high)",
			port:      ":65536",
			fieldName: "Server.Port",
			expectErr: true,
			errString: "Server.Port: port must be between 1 and 65535 (current value: 65536)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePort(tc.port, tc.fieldName)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if err.Error() != tc.errString {
					t.Errorf("expected error %q, got %q", tc.errString, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid, got %v", err)
	}
	if cfg.Models.MaxTokens != MaxModelTokens {
		t.Errorf("expected MaxTokens %d, got %d", MaxModelTokens, cfg.Models.MaxTokens)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{
			name:      "empty binary repo",
			mutate:    func(c *Config) { c.Models.BinaryRepo = " " },
			errSubstr: "Models.BinaryRepo",
		},
		{
			name:      "empty multilabel repo",
			mutate:    func(c *Config) { c.Models.MultilabelRepo = "" },
			errSubstr: "Models.MultilabelRepo",
		},
		{
			name:      "max tokens above model limit",
			mutate:    func(c *Config) { c.Models.MaxTokens = 1024 },
			errSubstr: "Models.MaxTokens",
		},
		{
			name:      "max tokens leaves no room for special tokens",
			mutate:    func(c *Config) { c.Models.MaxTokens = 1 },
			errSubstr: "Models.MaxTokens",
		},
		{
			name:      "unbounded history sessions",
			mutate:    func(c *Config) { c.History.MaxSessions = 0 },
			errSubstr: "max_sessions",
		},
		{
			name:      "no model files",
			mutate:    func(c *Config) { c.Models.ModelFiles = nil },
			errSubstr: "Models.ModelFiles",
		},
		{
			name:      "negative rate limit",
			mutate:    func(c *Config) { c.Server.RateLimitRPS = -1 },
			errSubstr: "Server.RateLimitRPS",
		},
		{
			name: "rate limit without burst",
			mutate: func(c *Config) {
				c.Server.RateLimitRPS = 2
				c.Server.RateLimitBurst = 0
			},
			errSubstr: "Server.RateLimitBurst",
		},
		{
			name:      "unknown cache backend",
			mutate:    func(c *Config) { c.Cache.Backend = "memcached" },
			errSubstr: "Cache.Backend",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.errSubstr) {
				t.Errorf("expected error mentioning %q, got %q", tc.errSubstr, err.Error())
			}
		})
	}

	t.Run("disabled cache ignores backend", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Cache.Enabled = false
		cfg.Cache.Backend = "anything"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BIN_REPO", "org/binary")
	t.Setenv("ML_REPO", "org/multilabel")
	t.Setenv("HF_TOKEN", "hf_secret")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("CACHE_BACKEND", "valkey")
	t.Setenv("VALKEY_TLS", "true")
	t.Setenv("STRIP_MARKDOWN", "true")
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")
	t.Setenv("HISTORY_MAX_SESSIONS", "50")

	cfg := DefaultConfig()
	ApplyEnv(cfg)

	if cfg.Models.BinaryRepo != "org/binary" {
		t.Errorf("BinaryRepo = %q", cfg.Models.BinaryRepo)
	}
	if cfg.Models.MultilabelRepo != "org/multilabel" {
		t.Errorf("MultilabelRepo = %q", cfg.Models.MultilabelRepo)
	}
	if cfg.Models.HubToken != "hf_secret" {
		t.Errorf("HubToken not loaded")
	}
	if cfg.Server.Port != ":9000" {
		t.Errorf("Port = %q, want :9000", cfg.Server.Port)
	}
	if !cfg.Database.Enabled || cfg.Database.Port != 6543 {
		t.Errorf("database env not applied: %+v", cfg.Database)
	}
	if cfg.Cache.Backend != CacheBackendValkey || !cfg.Cache.ValkeyTLS {
		t.Errorf("cache env not applied: %+v", cfg.Cache)
	}
	if !cfg.Segmentation.StripMarkdown {
		t.Error("STRIP_MARKDOWN not applied")
	}
	if cfg.History.MaxSessions != 50 {
		t.Errorf("MaxSessions = %d, want 50", cfg.History.MaxSessions)
	}
	if cfg.Server.RateLimitRPS != DefaultConfig().Server.RateLimitRPS {
		t.Errorf("invalid RATE_LIMIT_RPS should be ignored, got %g", cfg.Server.RateLimitRPS)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"models": {"bin_repo": "local/bin", "max_tokens": 256}, "server": {"port": ":7000"}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := LoadFromFile(path, cfg); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Models.BinaryRepo != "local/bin" {
		t.Errorf("BinaryRepo = %q", cfg.Models.BinaryRepo)
	}
	if cfg.Models.MaxTokens != 256 {
		t.Errorf("MaxTokens = %d", cfg.Models.MaxTokens)
	}
	if cfg.Server.Port != ":7000" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
	// Untouched fields keep defaults
	if cfg.Models.MultilabelRepo != DefaultConfig().Models.MultilabelRepo {
		t.Errorf("MultilabelRepo should keep default, got %q", cfg.Models.MultilabelRepo)
	}

	t.Run("missing file", func(t *testing.T) {
		if err := LoadFromFile(filepath.Join(dir, "nope.json"), DefaultConfig()); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(bad, []byte("{"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := LoadFromFile(bad, DefaultConfig()); err == nil {
			t.Error("expected decode error")
		}
	})
}
