// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for nexora.
//
// Supports TOML, YAML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation and hot reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Backend kind, URL and streaming parameters
//   - ModelsConfig: Selectable model ids and the startup default
//   - ValidateErrors: Every problem found by Validate
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NEXORA_*)
//   - ~/.nexora/config.toml
//   - ~/.nexora/config.yaml
//   - ~/.nexora/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//
// Reload on change:
//
//	go config.Watch(ctx, path, config.DefaultDebounce, func(cfg *config.Config, err error) {
//	    // apply cfg.Log.Level, cfg.Backend.URL
//	})
package config
