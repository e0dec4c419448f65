package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validSecret = "valid-secret-that-is-long-enough-for-testing"

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"FLOWTRACK_CONFIG", "FLOWTRACK_API_URL", "FLOWTRACK_SESSION_FILE", "NOTIFY_TTL",
		"HTTP_TIMEOUT", "ROLLBACK_POLICY", "STRICT_STATUS", "LOG_LEVEL", "LISTEN_ADDR",
		"DB_DSN", "JWT_SECRET", "JWT_ISS", "JWT_AUD", "JWT_EXPIRY", "ENABLE_METRICS",
		"REQUIRE_AUTH", "IMPORT_MAPPING", "ENVIRONMENT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	// Check defaults
	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Errorf("Expected default API URL, got %s", cfg.APIBaseURL)
	}
	if cfg.NotifyTTL != 3500*time.Millisecond {
		t.Errorf("Expected default notification TTL, got %v", cfg.NotifyTTL)
	}
	if cfg.RollbackPolicy != RollbackDiverge {
		t.Errorf("Expected default rollback policy, got %s", cfg.RollbackPolicy)
	}
	if cfg.ListenAddr != ":8000" {
		t.Errorf("Expected default listen address, got %s", cfg.ListenAddr)
	}
	if cfg.JWTSecret != defaultJWTSecret {
		t.Errorf("Expected default JWT_SECRET, got %s", cfg.JWTSecret)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("Expected default JWT_EXPIRY, got %v", cfg.JWTExpiry)
	}
	if cfg.StrictStatus || cfg.EnableMetrics || cfg.RequireAuth {
		t.Error("Expected boolean switches to default to false")
	}
}

func TestLoadWithEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLOWTRACK_API_URL", "http://assets.internal:9000/")
	t.Setenv("NOTIFY_TTL", "2s")
	t.Setenv("ROLLBACK_POLICY", "REVERT")
	t.Setenv("STRICT_STATUS", "true")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("ENABLE_METRICS", "1")

	cfg := Load()

	if cfg.APIBaseURL != "http://assets.internal:9000" {
		t.Errorf("Expected trailing slash to be trimmed, got %s", cfg.APIBaseURL)
	}
	if cfg.NotifyTTL != 2*time.Second {
		t.Errorf("Expected NOTIFY_TTL from env, got %v", cfg.NotifyTTL)
	}
	if cfg.RollbackPolicy != RollbackRevert {
		t.Errorf("Expected lowercased ROLLBACK_POLICY, got %s", cfg.RollbackPolicy)
	}
	if !cfg.StrictStatus {
		t.Error("Expected STRICT_STATUS from env")
	}
	if cfg.JWTSecret != "test-secret-key" {
		t.Errorf("Expected JWT_SECRET from env, got %s", cfg.JWTSecret)
	}
	if cfg.JWTExpiry != 2*time.Hour {
		t.Errorf("Expected JWT_EXPIRY from env, got %v", cfg.JWTExpiry)
	}
	if !cfg.EnableMetrics {
		t.Error("Expected ENABLE_METRICS from env")
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "flowtrack.yaml")
	content := []byte("api_url: http://file-host:8001\nnotify_ttl: 5s\nrollback_policy: revert\nrequire_auth: true\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLOWTRACK_CONFIG", path)
	t.Setenv("NOTIFY_TTL", "1s")

	cfg := Load()

	if cfg.APIBaseURL != "http://file-host:8001" {
		t.Errorf("Expected api_url from file, got %s", cfg.APIBaseURL)
	}
	if cfg.NotifyTTL != time.Second {
		t.Errorf("Expected environment to override file, got %v", cfg.NotifyTTL)
	}
	if cfg.RollbackPolicy != RollbackRevert {
		t.Errorf("Expected rollback_policy from file, got %s", cfg.RollbackPolicy)
	}
	if !cfg.RequireAuth {
		t.Error("Expected require_auth from file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			APIBaseURL:     "http://localhost:8000",
			NotifyTTL:      3500 * time.Millisecond,
			RollbackPolicy: RollbackDiverge,
			LogLevel:       "info",
			JWTSecret:      validSecret,
			JWTIssuer:      "test-issuer",
			JWTAudience:    "test-audience",
			JWTExpiry:      time.Hour,
		}
	}

	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, expectError: false},
		{name: "empty api url", mutate: func(c *Config) { c.APIBaseURL = "" }, expectError: true},
		{name: "non http api url", mutate: func(c *Config) { c.APIBaseURL = "ftp://x" }, expectError: true},
		{name: "zero ttl", mutate: func(c *Config) { c.NotifyTTL = 0 }, expectError: true},
		{name: "negative timeout", mutate: func(c *Config) { c.HTTPTimeout = -time.Second }, expectError: true},
		{name: "unknown rollback policy", mutate: func(c *Config) { c.RollbackPolicy = "sometimes" }, expectError: true},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, expectError: true},
		{name: "empty secret", mutate: func(c *Config) { c.JWTSecret = "" }, expectError: true},
		{name: "secret too short", mutate: func(c *Config) { c.JWTSecret = "short" }, expectError: true},
		{name: "empty issuer", mutate: func(c *Config) { c.JWTIssuer = "" }, expectError: true},
		{name: "empty audience", mutate: func(c *Config) { c.JWTAudience = "" }, expectError: true},
		{name: "expiry too short", mutate: func(c *Config) { c.JWTExpiry = 30 * time.Second }, expectError: true},
		{name: "expiry too long", mutate: func(c *Config) { c.JWTExpiry = 31 * 24 * time.Hour }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("Validate() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestLoadAndValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "test-secret-key-that-is-long-enough-for-testing")

	cfg, err := LoadAndValidate()
	if err != nil {
		t.Errorf("LoadAndValidate() failed with valid config: %v", err)
	}
	if cfg == nil {
		t.Error("LoadAndValidate() returned nil config with valid config")
	}

	t.Setenv("ROLLBACK_POLICY", "never")
	if _, err := LoadAndValidate(); err == nil {
		t.Error("LoadAndValidate() should fail with invalid config")
	}
}

func TestProductionSecretValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	cfg := Load()
	if err := cfg.Validate(); err == nil {
		t.Error("Production validation should fail with default secret")
	}

	t.Setenv("JWT_SECRET", "proper-production-secret-that-is-long-enough")
	cfg = Load()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Production validation should pass with proper secret: %v", err)
	}
}
