// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for tootur.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.tootur/config.toml
//   - ~/.tootur/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete tootur configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// User identifies the owner of the guides on this machine.
	User UserConfig `toml:"user" json:"user"`

	// Remote selects where guides are stored.
	Remote RemoteConfig `toml:"remote" json:"remote"`

	Storage StorageConfig `toml:"storage" json:"storage"`
	LLM     LLMConfig     `toml:"llm" json:"llm"`
	Reveal  RevealConfig  `toml:"reveal" json:"reveal"`
	Server  ServerConfig  `toml:"server" json:"server"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// UserConfig holds the profile registered with the store.
type UserConfig struct {
	Email          string `toml:"email" json:"email"`
	Name           string `toml:"name" json:"name"`
	Role           string `toml:"role" json:"role"`
	EducationLevel string `toml:"education_level" json:"education_level"`
	UsagePurpose   string `toml:"usage_purpose" json:"usage_purpose"`
}

// RemoteConfig selects the store of record.
type RemoteConfig struct {
	// Mode is "local" (in-process store and generator) or "http" (a
	// running tootur server at URL).
	Mode string `toml:"mode" json:"mode"`
	URL  string `toml:"url" json:"url"`

	// TimeoutSecs bounds every remote operation, generation included.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	MaxRetries int `toml:"max_retries" json:"max_retries"`

	// RateLimit caps client requests per second (0 = unlimited).
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
}

// StorageConfig locates the SQLite database used in local mode and by the
// server.
type StorageConfig struct {
	Path string `toml:"path" json:"path"`
}

// LLMConfig configures guide generation.
type LLMConfig struct {
	// Provider is "openai" or "offline".
	Provider     string `toml:"provider" json:"provider"`
	Model        string `toml:"model" json:"model"`
	APIKey       string `toml:"api_key" json:"api_key"`
	BaseURL      string `toml:"base_url" json:"base_url"`
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
}

// RevealConfig controls the progressive display of responses.
type RevealConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`

	// Granularity is "char" or "word".
	Granularity string `toml:"granularity" json:"granularity"`

	// Rate is the number of units revealed per tick.
	Rate int `toml:"rate" json:"rate"`

	// IntervalMs is the tick interval in milliseconds.
	IntervalMs int `toml:"interval_ms" json:"interval_ms"`
}

// ServerConfig configures "tootur serve".
type ServerConfig struct {
	Addr               string   `toml:"addr" json:"addr"`
	CORSOrigins        []string `toml:"cors_origins" json:"cors_origins"`
	RateLimit          float64  `toml:"rate_limit" json:"rate_limit"`
	RateBurst          int      `toml:"rate_burst" json:"rate_burst"`
	RequestTimeoutSecs int      `toml:"request_timeout_secs" json:"request_timeout_secs"`
	MaxBodyBytes       int64    `toml:"max_body_bytes" json:"max_body_bytes"`
}

// LogConfig configures the log file.
type LogConfig struct {
	// Path is the log file; "-" logs to stderr.
	Path  string `toml:"path" json:"path"`
	Debug bool   `toml:"debug" json:"debug"`
}

// Remote modes.
const (
	ModeLocal = "local"
	ModeHTTP  = "http"
)

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with default values. Paths are left empty and
// resolved under ConfigDir by SetDefaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Remote: RemoteConfig{
			Mode:        ModeLocal,
			URL:         "http://127.0.0.1:8000",
			TimeoutSecs: 90,
			MaxRetries:  3,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Reveal: RevealConfig{
			Enabled:     true,
			Granularity: "char",
			Rate:        1,
			IntervalMs:  10,
		},
		Server: ServerConfig{
			Addr:               "127.0.0.1:8000",
			CORSOrigins:        []string{"*"},
			RateLimit:          5,
			RateBurst:          20,
			RequestTimeoutSecs: 120,
			MaxBodyBytes:       1 << 20,
		},
	}
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Remote.Mode == "" {
		c.Remote.Mode = d.Remote.Mode
	}
	if c.Remote.URL == "" {
		c.Remote.URL = d.Remote.URL
	}
	if c.Remote.TimeoutSecs == 0 {
		c.Remote.TimeoutSecs = d.Remote.TimeoutSecs
	}
	if c.Remote.MaxRetries == 0 {
		c.Remote.MaxRetries = d.Remote.MaxRetries
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.Reveal.Granularity == "" {
		c.Reveal.Granularity = d.Reveal.Granularity
	}
	if c.Reveal.Rate == 0 {
		c.Reveal.Rate = d.Reveal.Rate
	}
	if c.Reveal.IntervalMs == 0 {
		c.Reveal.IntervalMs = d.Reveal.IntervalMs
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.CORSOrigins == nil {
		c.Server.CORSOrigins = d.Server.CORSOrigins
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = d.Server.RequestTimeoutSecs
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}

	if dir, err := ConfigDir(); err == nil {
		if c.Storage.Path == "" {
			c.Storage.Path = filepath.Join(dir, "tootur.db")
		}
		if c.Log.Path == "" {
			c.Log.Path = filepath.Join(dir, "logs", "tootur.log")
		}
	}
}

// RemoteTimeout returns the remote timeout as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSecs) * time.Second
}

// RevealInterval returns the reveal tick interval as a duration.
func (c *Config) RevealInterval() time.Duration {
	return time.Duration(c.Reveal.IntervalMs) * time.Millisecond
}

// RequestTimeout returns the server request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the tootur configuration directory. TOOTUR_HOME
// overrides the default ~/.tootur.
func ConfigDir() (string, error) {
	if dir := os.Getenv("TOOTUR_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".tootur"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Server.CORSOrigins != nil {
		clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	}
	return &clone
}

// Redacted returns a copy with secrets masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.LLM.APIKey != "" {
		safe.LLM.APIKey = "[REDACTED]"
	}
	return safe
}

// String returns the config as indented JSON with secrets redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
