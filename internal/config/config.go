// Package config handles muon runtime configuration using Viper.
//
// Runtime configuration covers process knobs, not user preferences; those
// live in the settings document.
//
// Configuration sources (in priority order):
//  1. Environment variables (MUON_*)
//  2. Config file (~/muon-ssh/config.yaml)
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/muon-ssh/muon/internal/paths"
)

const (
	// DefaultEditorPollInterval is the editor change-detection poll period.
	DefaultEditorPollInterval = 2 * time.Second
	// MinEditorPollInterval bounds configured poll periods from below.
	MinEditorPollInterval = 50 * time.Millisecond
)

// Config holds the muon runtime configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	v.SetDefault("editor.poll_interval", DefaultEditorPollInterval.String())
	v.SetDefault("editor.temp_dir", "")
	v.SetDefault("warmup.enabled", true)
	v.SetDefault("ui.alt_screen", true)

	if root, err := paths.ConfigRoot(); err == nil {
		v.AddConfigPath(root)
		v.SetConfigName(paths.RuntimeConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MUON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, but warn on other errors)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// Get returns a configuration value.
func (c *Config) Get(key string) any {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetBool returns a configuration value as bool.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// Set sets a configuration value and persists it to config.yaml.
func (c *Config) Set(key string, value any) error {
	c.v.Set(key, value)

	configFile, err := paths.RuntimeConfigFile()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return err
	}

	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]any {
	return c.v.AllSettings()
}

// EditorPollInterval returns the editor poll period, clamped to
// MinEditorPollInterval. Unparseable values fall back to the default.
func (c *Config) EditorPollInterval() time.Duration {
	d := c.v.GetDuration("editor.poll_interval")
	if d <= 0 {
		return DefaultEditorPollInterval
	}

	return max(d, MinEditorPollInterval)
}

// EditorTempDir returns the parent directory for editor temp copies. Empty
// means the "edit" directory in the configuration root.
func (c *Config) EditorTempDir() string {
	return c.GetString("editor.temp_dir")
}

// WarmupEnabled reports whether the terminal warm-up runs at startup.
func (c *Config) WarmupEnabled() bool {
	return c.GetBool("warmup.enabled")
}

// AltScreen reports whether the window uses the alternate screen.
func (c *Config) AltScreen() bool {
	return c.GetBool("ui.alt_screen")
}
