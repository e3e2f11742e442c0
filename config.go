package ankigen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds the tool-level settings. Values are resolved from (highest
// precedence first) environment variables with the ANKIGEN_ prefix, the YAML
// config file, and built-in defaults.
type Config struct {
	AnkiConnectURL string        `mapstructure:"anki_connect_url" validate:"required,url"`
	GeminiAPIKey   string        `mapstructure:"gemini_api_key"`
	Model          string        `mapstructure:"model" validate:"required"`
	CheckModel     string        `mapstructure:"check_model"`
	Concurrency    int           `mapstructure:"concurrency" validate:"min=1"`
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"min=1"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" validate:"min=0"`
	LogLevel       string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// RetryPolicy derives the per-call retry policy from the configured attempt
// budget and base backoff.
func (c *Config) RetryPolicy() RetryPolicy {
	base := c.RetryBackoff
	return RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		Backoff: func(attempt int) time.Duration {
			return base << (attempt - 1)
		},
	}
}

const envPrefix = "ANKIGEN"

// configKeys lists every key Set accepts, in display order.
var configKeys = []string{
	"anki_connect_url",
	"gemini_api_key",
	"model",
	"check_model",
	"concurrency",
	"max_attempts",
	"retry_backoff",
	"log_level",
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("anki_connect_url", DefaultAnkiConnectURL)
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("model", "gemini-2.5-flash")
	v.SetDefault("check_model", "")
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("retry_backoff", time.Second)
	v.SetDefault("log_level", "info")
}

// DefaultConfigFile returns the per-user config file path.
func DefaultConfigFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "ankigen", "config.yaml"), nil
}

func newConfigViper(configFile string) *viper.Viper {
	v := viper.New()
	setConfigDefaults(v)
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from configFile (empty → the default per-user
// location). A missing file is not an error; defaults and environment
// variables still apply.
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		var err error
		configFile, err = DefaultConfigFile()
		if err != nil {
			return nil, err
		}
	}

	v := newConfigViper(configFile)
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", configFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// SetConfigValue persists a single key to the config file, creating the file
// and its directory if needed. Unknown keys are rejected so a typo never
// silently lands in the file. The merged config is validated before writing.
func SetConfigValue(configFile, key, value string) error {
	if configFile == "" {
		var err error
		configFile, err = DefaultConfigFile()
		if err != nil {
			return err
		}
	}

	known := false
	for _, k := range configKeys {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(configKeys, ", "))
	}

	v := newConfigViper(configFile)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	v.Set(key, value)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return fmt.Errorf("invalid config after setting %q: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return err
	}
	return v.WriteConfigAs(configFile)
}

// ConfigEntries returns the effective configuration as ordered key/value
// pairs for display. The API key is masked.
func (c *Config) ConfigEntries() [][2]string {
	apiKey := c.GeminiAPIKey
	if apiKey != "" {
		apiKey = "********"
	}
	return [][2]string{
		{"anki_connect_url", c.AnkiConnectURL},
		{"gemini_api_key", apiKey},
		{"model", c.Model},
		{"check_model", c.CheckModel},
		{"concurrency", fmt.Sprintf("%d", c.Concurrency)},
		{"max_attempts", fmt.Sprintf("%d", c.MaxAttempts)},
		{"retry_backoff", c.RetryBackoff.String()},
		{"log_level", c.LogLevel},
	}
}
