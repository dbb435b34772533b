// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - RemoteConfig: local or http store of record
//   - LLMConfig: generation provider and credentials
//   - RevealConfig: progressive display cadence
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (TOOTUR_*, OPENAI_PROJECT_API_KEY)
//   - .env in the working directory, then ~/.tootur/.env
//   - ~/.tootur/config.toml
//   - ~/.tootur/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	timeout := cfg.RemoteTimeout()
//
// Watch reloads a config file on change:
//
//	go config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
package config
