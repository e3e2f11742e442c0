package ankigen

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAnkiConnectURL, cfg.AnkiConnectURL)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "model: gemini-2.5-pro\nconcurrency: 8\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DefaultAnkiConnectURL, cfg.AnkiConnectURL, "unset keys keep their defaults")
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: from-file\n"), 0o644))
	t.Setenv("ANKIGEN_MODEL", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestSetConfigValueRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, SetConfigValue(path, "model", "gemini-2.0-flash"))
	require.NoError(t, SetConfigValue(path, "concurrency", "12"))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Equal(t, 12, cfg.Concurrency)
}

func TestSetConfigValueUnknownKey(t *testing.T) {
	err := SetConfigValue(filepath.Join(t.TempDir(), "config.yaml"), "modle", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestSetConfigValueRejectsInvalidValue(t *testing.T) {
	err := SetConfigValue(filepath.Join(t.TempDir(), "config.yaml"), "log_level", "loud")
	require.Error(t, err)
}

func TestConfigRetryPolicy(t *testing.T) {
	cfg := &Config{MaxAttempts: 4, RetryBackoff: 100 * time.Millisecond}
	p := cfg.RetryPolicy()
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3))
}

func TestConfigEntriesMasksAPIKey(t *testing.T) {
	cfg := &Config{GeminiAPIKey: "secret", RetryBackoff: time.Second}
	for _, entry := range cfg.ConfigEntries() {
		if entry[0] == "gemini_api_key" {
			assert.NotContains(t, entry[1], "secret")
			return
		}
	}
	t.Fatal("gemini_api_key entry not found")
}
