// Package config loads the studio's configuration from a YAML file,
// applies STUDIO_* environment overrides, then validates the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/user/browserstudio/internal/logger"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Chrome     ChromeConfig     `yaml:"chrome"`
	Budget     BudgetConfig     `yaml:"budget"`
	Perception PerceptionConfig `yaml:"perception"`
	Logging    LoggingConfig    `yaml:"logging"`
	Auth       AuthConfig       `yaml:"auth"`
}

// ServerConfig contains HTTP and CDP transport settings.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	CDPPort int    `yaml:"cdp_port"`
	Timeout int    `yaml:"timeout"`
}

// ChromeConfig contains browser launch settings.
type ChromeConfig struct {
	Headless  bool `yaml:"headless"`
	NoSandbox bool `yaml:"no_sandbox"`
}

// BudgetConfig mirrors types.BudgetLimits for YAML/env configurability.
type BudgetConfig struct {
	MaxCycles     int     `yaml:"max_cycles"`
	MaxTokens     int     `yaml:"max_tokens"`
	MaxCostUSD    float64 `yaml:"max_cost_usd"`
	MaxDurationMs int64   `yaml:"max_duration_ms"`
}

// PerceptionConfig contains the perception loop's tunables.
type PerceptionConfig struct {
	Model                string   `yaml:"model"`
	ViewportWidth        int      `yaml:"viewport_width"`
	ViewportHeight       int      `yaml:"viewport_height"`
	Quality              int      `yaml:"quality"`
	MaxCycles            int      `yaml:"max_cycles"`
	MaxConsecutiveErrors int      `yaml:"max_consecutive_errors"`
	SettleTimeMs         int64    `yaml:"settle_time_ms"`
	APITimeoutSeconds    int      `yaml:"api_timeout_seconds"`
	AriaCharCap          int      `yaml:"aria_char_cap"`
	AuditDir             string   `yaml:"audit_dir"`
	ReadOnlyMode         bool     `yaml:"read_only_mode"`
	BlockedURLPatterns   []string `yaml:"blocked_url_patterns"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// AuthConfig contains the optional bearer-token auth settings for the HTTP
// control plane.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SecretKey string `yaml:"secret_key"`
}

// Default values.
const (
	defaultHost    = "0.0.0.0"
	defaultPort    = 9222
	defaultCDPPort = 9223
	defaultTimeout = 30

	defaultLogLevel  = logger.LevelInfo
	defaultLogFormat = logger.FormatJSON

	defaultModel                = "claude-sonnet-4-20250514"
	defaultViewportWidth        = 1024
	defaultViewportHeight       = 768
	defaultQuality              = 70
	defaultMaxCycles            = 50
	defaultMaxConsecutiveErrors = 5
	defaultSettleTimeMs         = 300
	defaultAPITimeoutSeconds    = 30
	defaultAriaCharCap          = 40000
	defaultAuditDir             = "./recordings"

	defaultBudgetMaxCycles     = 100
	defaultBudgetMaxTokens     = 500000
	defaultBudgetMaxCostUSD    = 5.00
	defaultBudgetMaxDurationMs = 600000
)

// Validation constraints.
const (
	minPort = 1
	maxPort = 65535
)

var validLogLevels = map[string]bool{
	logger.LevelDebug: true,
	logger.LevelInfo:  true,
	logger.LevelWarn:  true,
	logger.LevelError: true,
}

var validLogFormats = map[string]bool{
	logger.FormatJSON:    true,
	logger.FormatConsole: true,
}

// Load reads configuration from a YAML file, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unset fields.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.CDPPort == 0 {
		c.Server.CDPPort = defaultCDPPort
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = defaultTimeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}

	if c.Perception.Model == "" {
		c.Perception.Model = defaultModel
	}
	if c.Perception.ViewportWidth == 0 {
		c.Perception.ViewportWidth = defaultViewportWidth
	}
	if c.Perception.ViewportHeight == 0 {
		c.Perception.ViewportHeight = defaultViewportHeight
	}
	if c.Perception.Quality == 0 {
		c.Perception.Quality = defaultQuality
	}
	if c.Perception.MaxCycles == 0 {
		c.Perception.MaxCycles = defaultMaxCycles
	}
	if c.Perception.MaxConsecutiveErrors == 0 {
		c.Perception.MaxConsecutiveErrors = defaultMaxConsecutiveErrors
	}
	if c.Perception.SettleTimeMs == 0 {
		c.Perception.SettleTimeMs = defaultSettleTimeMs
	}
	if c.Perception.APITimeoutSeconds == 0 {
		c.Perception.APITimeoutSeconds = defaultAPITimeoutSeconds
	}
	if c.Perception.AriaCharCap == 0 {
		c.Perception.AriaCharCap = defaultAriaCharCap
	}
	if c.Perception.AuditDir == "" {
		c.Perception.AuditDir = defaultAuditDir
	}

	if c.Budget.MaxCycles == 0 {
		c.Budget.MaxCycles = defaultBudgetMaxCycles
	}
	if c.Budget.MaxTokens == 0 {
		c.Budget.MaxTokens = defaultBudgetMaxTokens
	}
	if c.Budget.MaxCostUSD == 0 {
		c.Budget.MaxCostUSD = defaultBudgetMaxCostUSD
	}
	if c.Budget.MaxDurationMs == 0 {
		c.Budget.MaxDurationMs = defaultBudgetMaxDurationMs
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("STUDIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if cdpPort := os.Getenv("STUDIO_CDP_PORT"); cdpPort != "" {
		if p, err := strconv.Atoi(cdpPort); err == nil {
			c.Server.CDPPort = p
		}
	}
	if logLevel := os.Getenv("STUDIO_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("STUDIO_LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}
	if model := os.Getenv("STUDIO_MODEL"); model != "" {
		c.Perception.Model = model
	}
	if auditDir := os.Getenv("STUDIO_AUDIT_DIR"); auditDir != "" {
		c.Perception.AuditDir = auditDir
	}
	if readOnly := os.Getenv("STUDIO_READ_ONLY_MODE"); readOnly != "" {
		c.Perception.ReadOnlyMode = strings.ToLower(readOnly) == "true"
	}
	if blocked := os.Getenv("STUDIO_BLOCKED_URL_PATTERNS"); blocked != "" {
		var patterns []string
		for _, p := range strings.Split(blocked, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				patterns = append(patterns, trimmed)
			}
		}
		if len(patterns) > 0 {
			c.Perception.BlockedURLPatterns = patterns
		}
	}
	if authEnabled := os.Getenv("STUDIO_AUTH_ENABLED"); authEnabled != "" {
		c.Auth.Enabled = strings.ToLower(authEnabled) == "true"
	}
	if secret := os.Getenv("STUDIO_AUTH_SECRET_KEY"); secret != "" {
		c.Auth.SecretKey = secret
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < minPort || c.Server.Port > maxPort {
		return fmt.Errorf("invalid port: %d (must be %d-%d)", c.Server.Port, minPort, maxPort)
	}
	if c.Server.CDPPort < minPort || c.Server.CDPPort > maxPort {
		return fmt.Errorf("invalid cdp_port: %d (must be %d-%d)", c.Server.CDPPort, minPort, maxPort)
	}
	if c.Server.Port == c.Server.CDPPort {
		return fmt.Errorf("port and cdp_port must be distinct, both are %d", c.Server.Port)
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.Logging.Level)
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be one of: json, console)", c.Logging.Format)
	}

	if c.Auth.Enabled && c.Auth.SecretKey == "" {
		return fmt.Errorf("auth is enabled but secret_key is not set")
	}

	return nil
}

// APITimeout returns the perception loop's model-call timeout as a
// time.Duration.
func (c *PerceptionConfig) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}
