package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Rollback policies for failed board mutations
const (
	RollbackDiverge = "diverge"
	RollbackRevert  = "revert"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	// Client side
	APIBaseURL     string
	SessionFile    string
	NotifyTTL      time.Duration
	HTTPTimeout    time.Duration
	RollbackPolicy string
	StrictStatus   bool
	LogLevel       string

	// Backend
	ListenAddr    string
	DBDSN         string
	JWTSecret     string
	JWTIssuer     string
	JWTAudience   string
	JWTExpiry     time.Duration
	EnableMetrics bool
	RequireAuth   bool
	ImportMapping string
}

// fileConfig is the optional YAML file named by FLOWTRACK_CONFIG. Every key
// is a default that the environment can override.
type fileConfig struct {
	APIURL         string `yaml:"api_url"`
	SessionFile    string `yaml:"session_file"`
	NotifyTTL      string `yaml:"notify_ttl"`
	HTTPTimeout    string `yaml:"http_timeout"`
	RollbackPolicy string `yaml:"rollback_policy"`
	StrictStatus   *bool  `yaml:"strict_status"`
	LogLevel       string `yaml:"log_level"`
	ListenAddr     string `yaml:"listen_addr"`
	DBDSN          string `yaml:"db_dsn"`
	EnableMetrics  *bool  `yaml:"enable_metrics"`
	RequireAuth    *bool  `yaml:"require_auth"`
	ImportMapping  string `yaml:"import_mapping"`
}

func Load() *Config {
	config := &Config{
		APIBaseURL:     "http://localhost:8000",
		SessionFile:    defaultSessionFile(),
		NotifyTTL:      3500 * time.Millisecond,
		HTTPTimeout:    0, // transport default
		RollbackPolicy: RollbackDiverge,
		LogLevel:       "info",
		ListenAddr:     ":8000",
		JWTSecret:      defaultJWTSecret,
		JWTIssuer:      "flowtrack-api",
		JWTAudience:    "flowtrack-board",
		JWTExpiry:      24 * time.Hour, // Default to 24 hours
	}

	if path := os.Getenv("FLOWTRACK_CONFIG"); path != "" {
		if err := config.applyFile(path); err != nil {
			slog.Warn("ignoring config file", "path", path, "err", err)
		}
	}

	config.APIBaseURL = strings.TrimRight(getEnv("FLOWTRACK_API_URL", config.APIBaseURL), "/")
	config.SessionFile = getEnv("FLOWTRACK_SESSION_FILE", config.SessionFile)
	config.NotifyTTL = getEnvDuration("NOTIFY_TTL", config.NotifyTTL)
	config.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", config.HTTPTimeout)
	config.RollbackPolicy = strings.ToLower(getEnv("ROLLBACK_POLICY", config.RollbackPolicy))
	config.StrictStatus = getEnvBool("STRICT_STATUS", config.StrictStatus)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)

	config.ListenAddr = getEnv("LISTEN_ADDR", config.ListenAddr)
	config.DBDSN = getEnv("DB_DSN", config.DBDSN)
	config.JWTSecret = getEnv("JWT_SECRET", config.JWTSecret)
	config.JWTIssuer = getEnv("JWT_ISS", config.JWTIssuer)
	config.JWTAudience = getEnv("JWT_AUD", config.JWTAudience)
	config.JWTExpiry = getEnvDuration("JWT_EXPIRY", config.JWTExpiry)
	config.EnableMetrics = getEnvBool("ENABLE_METRICS", config.EnableMetrics)
	config.RequireAuth = getEnvBool("REQUIRE_AUTH", config.RequireAuth)
	config.ImportMapping = getEnv("IMPORT_MAPPING", config.ImportMapping)

	return config
}

// LoadAndValidate loads the configuration and validates it
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("api base url cannot be empty")
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("api base url must be http(s): %q", c.APIBaseURL)
	}
	if c.NotifyTTL <= 0 {
		return errors.New("notification ttl must be positive")
	}
	if c.HTTPTimeout < 0 {
		return errors.New("http timeout cannot be negative")
	}
	switch c.RollbackPolicy {
	case RollbackDiverge, RollbackRevert:
	default:
		return fmt.Errorf("unknown rollback policy %q", c.RollbackPolicy)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.JWTSecret == "" {
		return errors.New("JWT secret cannot be empty")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT secret must be at least 32 characters long")
	}
	if os.Getenv("ENVIRONMENT") == "production" && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT secret must be changed in production")
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT issuer cannot be empty")
	}
	if c.JWTAudience == "" {
		return errors.New("JWT audience cannot be empty")
	}
	if c.JWTExpiry < time.Minute {
		return errors.New("JWT expiry must be at least one minute")
	}
	if c.JWTExpiry > 30*24*time.Hour {
		return errors.New("JWT expiry cannot exceed 30 days")
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL string to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// NewLogger builds the process logger writing text records to stderr
func (c *Config) NewLogger() *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	setString(&c.APIBaseURL, fc.APIURL)
	setString(&c.SessionFile, fc.SessionFile)
	setString(&c.RollbackPolicy, fc.RollbackPolicy)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.DBDSN, fc.DBDSN)
	setString(&c.ImportMapping, fc.ImportMapping)
	if d, err := time.ParseDuration(fc.NotifyTTL); err == nil {
		c.NotifyTTL = d
	}
	if d, err := time.ParseDuration(fc.HTTPTimeout); err == nil {
		c.HTTPTimeout = d
	}
	if fc.StrictStatus != nil {
		c.StrictStatus = *fc.StrictStatus
	}
	if fc.EnableMetrics != nil {
		c.EnableMetrics = *fc.EnableMetrics
	}
	if fc.RequireAuth != nil {
		c.RequireAuth = *fc.RequireAuth
	}
	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".flowtrack-session.json"
	}
	return filepath.Join(dir, "flowtrack", "storage.json")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return defaultValue
}
