package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9000
  cdp_port: 9001
chrome:
  headless: true
logging:
  level: "debug"
  format: "console"
`
	path := createTempConfig(t, content)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, 9001, cfg.Server.CDPPort)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	content := `
server: {}
chrome: {}
logging: {}
perception: {}
budget: {}
`
	path := createTempConfig(t, content)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, defaultHost, cfg.Server.Host)
	require.Equal(t, defaultPort, cfg.Server.Port)
	require.Equal(t, defaultCDPPort, cfg.Server.CDPPort)
	require.Equal(t, defaultLogLevel, cfg.Logging.Level)
	require.Equal(t, defaultLogFormat, cfg.Logging.Format)
	require.Equal(t, defaultModel, cfg.Perception.Model)
	require.Equal(t, defaultViewportWidth, cfg.Perception.ViewportWidth)
	require.Equal(t, defaultAuditDir, cfg.Perception.AuditDir)
	require.Equal(t, defaultBudgetMaxCycles, cfg.Budget.MaxCycles)
	require.Equal(t, defaultBudgetMaxCostUSD, cfg.Budget.MaxCostUSD)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	content := `
server:
  port: 8080
  cdp_port: 8081
logging:
  level: "info"
`
	path := createTempConfig(t, content)

	t.Setenv("STUDIO_PORT", "9999")
	t.Setenv("STUDIO_LOG_LEVEL", "debug")
	t.Setenv("STUDIO_BLOCKED_URL_PATTERNS", "internal.corp, 169.254.*")
	t.Setenv("STUDIO_AUTH_ENABLED", "true")
	t.Setenv("STUDIO_AUTH_SECRET_KEY", "a-secret-at-least-32-bytes-long!")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, []string{"internal.corp", "169.254.*"}, cfg.Perception.BlockedURLPatterns)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "a-secret-at-least-32-bytes-long!", cfg.Auth.SecretKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := createTempConfig(t, "server: [this is not valid: yaml")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_RejectsOutOfRangePort(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Server.Port = 70000
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsEqualPorts(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Server.CDPPort = cfg.Server.Port
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Logging.Level = "verbose"
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsAuthEnabledWithoutSecret(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Auth.Enabled = true
	cfg.Auth.SecretKey = ""
	require.Error(t, cfg.Validate())
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	require.NoError(t, cfg.Validate())
}

func TestPerceptionConfig_APITimeout(t *testing.T) {
	pc := PerceptionConfig{APITimeoutSeconds: 45}
	require.Equal(t, float64(45e9), float64(pc.APITimeout()))
}
