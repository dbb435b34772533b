// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/manovay/AP-Study-Guide-Generator/internal/util"
)

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default location.
// Tries TOML first, then JSON, and falls back to defaults. .env files and
// environment overrides are applied last.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err == nil && fileExists(tomlPath) {
		return LoadFromPath(tomlPath)
	}
	jsonPath, err := ConfigPathJSON()
	if err == nil && fileExists(jsonPath) {
		return LoadFromPath(jsonPath)
	}
	return finish(Default())
}

// LoadFromPath loads configuration from a specific file. The format is
// chosen by extension; anything but .json is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// finish applies .env files, environment overrides, defaults and validation.
func finish(cfg *Config) (*Config, error) {
	LoadDotEnv()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env from the working directory and from ConfigDir.
// Variables already set in the environment win. Missing files are ignored.
func LoadDotEnv() {
	candidates := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		if !fileExists(path) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", path, err)
		}
	}
}

// ensureSecurePermissions restricts config files to the owner, since they
// may hold an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# tootur configuration file\n")
	buf.WriteString("# Environment variables TOOTUR_* and OPENAI_PROJECT_API_KEY override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg to path atomically with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - TOOTUR_EMAIL: user.email
//   - TOOTUR_REMOTE_MODE: remote.mode
//   - TOOTUR_REMOTE_URL: remote.url
//   - TOOTUR_TIMEOUT: remote.timeout_secs
//   - TOOTUR_DB: storage.path
//   - TOOTUR_LLM_PROVIDER: llm.provider
//   - TOOTUR_MODEL: llm.model
//   - OPENAI_PROJECT_API_KEY, TOOTUR_OPENAI_KEY: llm.api_key
//   - OPENAI_BASE_URL: llm.base_url
//   - TOOTUR_SERVER_ADDR: server.addr
//   - TOOTUR_LOG: log.path
//   - TOOTUR_DEBUG: log.debug ("1" or "true")
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TOOTUR_EMAIL"); v != "" {
		c.User.Email = v
	}
	if v := os.Getenv("TOOTUR_REMOTE_MODE"); v != "" {
		c.Remote.Mode = v
	}
	if v := os.Getenv("TOOTUR_REMOTE_URL"); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv("TOOTUR_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Remote.TimeoutSecs = n
		}
	}
	if v := os.Getenv("TOOTUR_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("TOOTUR_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("TOOTUR_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("OPENAI_PROJECT_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("TOOTUR_OPENAI_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("TOOTUR_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TOOTUR_LOG"); v != "" {
		c.Log.Path = v
	}
	if v := os.Getenv("TOOTUR_DEBUG"); v != "" {
		c.Log.Debug = v == "1" || strings.EqualFold(v, "true")
	}
}
