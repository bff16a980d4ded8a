// Package config loads settings shared by the filesctl and files-sandbox
// binaries from defaults, an optional YAML file, FILES_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sitekit/files_sdk_go/pkg/files"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "FILES"

// Config holds the resolved settings.
type Config struct {
	APIURL           string        `mapstructure:"api_url"`
	Mode             string        `mapstructure:"mode"`
	Seed             string        `mapstructure:"seed"`
	SiteID           int           `mapstructure:"site_id"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Retries          int           `mapstructure:"retries"`
	AntiForgeryToken string        `mapstructure:"antiforgery_token"`
	PollAttempts     int           `mapstructure:"poll_attempts"`
	PollDelay        time.Duration `mapstructure:"poll_delay"`
	Debug            bool          `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "")
	v.SetDefault("mode", "auto")
	v.SetDefault("seed", "")
	v.SetDefault("site_id", 1)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("retries", 2)
	v.SetDefault("antiforgery_token", "")
	v.SetDefault("poll_attempts", files.DefaultConfirmPolicy.Attempts)
	v.SetDefault("poll_delay", files.DefaultConfirmPolicy.Delay)
	v.SetDefault("debug", false)
}

// Load resolves the configuration held by v. Flags should already be bound
// to v. When no config file was set explicitly, filesctl.yaml is looked up
// in the working directory and in $HOME/.config/filesctl.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// The library's runtime variables are accepted as aliases.
	if err := v.BindEnv("mode", "FILES_MODE", "FILES_RUNTIME_MODE"); err != nil {
		return nil, fmt.Errorf("config: bind mode: %w", err)
	}
	if err := v.BindEnv("seed", "FILES_SEED", "FILES_MOCK_SEED"); err != nil {
		return nil, fmt.Errorf("config: bind seed: %w", err)
	}

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("filesctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/filesctl")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	switch c.Mode {
	case "", "auto", "http", "mock":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}
	if c.Mode == "http" && strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("config: mode http requires api_url")
	}
	if c.PollAttempts <= 0 {
		return fmt.Errorf("config: poll_attempts must be positive, got %d", c.PollAttempts)
	}
	if c.PollDelay < 0 {
		return fmt.Errorf("config: poll_delay must not be negative")
	}
	if c.Retries < 0 {
		return fmt.Errorf("config: retries must not be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative")
	}
	return nil
}

// ConfirmPolicy returns the upload confirmation poll described by c.
func (c *Config) ConfirmPolicy() files.ConfirmPolicy {
	return files.ConfirmPolicy{
		Attempts: c.PollAttempts,
		Delay:    c.PollDelay,
	}
}
