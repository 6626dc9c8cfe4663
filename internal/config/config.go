// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for agnt.
//
// Values come from built-in defaults, overlaid by ~/.agnt/config.toml when
// present, overlaid by environment variables. The resulting Config is
// validated once at startup and never mutated afterwards.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete agnt configuration.
type Config struct {
	// API settings.
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`

	// BaseURL is the Messages/Files API endpoint.
	BaseURL string `toml:"base_url"`

	// SandboxURL is the code-execution endpoint; defaults to BaseURL.
	SandboxURL string `toml:"sandbox_url"`

	// CodeExecution enables the execution tool on new sessions.
	CodeExecution bool `toml:"code_execution"`

	// OutputDir is where execution artifacts are saved.
	OutputDir string `toml:"output_dir"`

	// Debug enables the debug log file under the config dir.
	Debug bool `toml:"debug"`

	UI UIConfig `toml:"ui"`
}

// UIConfig holds terminal UI preferences.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme string `toml:"theme"`

	// MouseWheelLines is how many lines one wheel notch scrolls.
	MouseWheelLines int `toml:"mouse_wheel_lines"`
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 4096,
		BaseURL:   "https://api.anthropic.com",
		OutputDir: "output",
		UI: UIConfig{
			Theme:           "auto",
			MouseWheelLines: 3,
		},
	}
}

// Dir returns the agnt config directory (~/.agnt), creating nothing.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".agnt"), nil
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load builds the effective configuration: defaults, then the config file
// if present, then environment overrides. The result is validated.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path, for tests.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("ANTHROPIC_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("AGNT_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if os.Getenv("AGNT_DEBUG") != "" {
		cfg.Debug = true
	}
}

// Validate checks internal consistency. A missing API key is reported by
// the client at request time with a friendlier message, so it is allowed
// here.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("config: model must not be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("config: max_tokens must be positive, got %d", c.MaxTokens)
	}
	if _, err := url.Parse(c.BaseURL); err != nil || c.BaseURL == "" {
		return fmt.Errorf("config: invalid base_url %q", c.BaseURL)
	}
	if c.OutputDir == "" {
		return errors.New("config: output_dir must not be empty")
	}
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("config: unknown theme %q", c.UI.Theme)
	}
	if c.UI.MouseWheelLines <= 0 {
		c.UI.MouseWheelLines = 3
	}
	return nil
}
