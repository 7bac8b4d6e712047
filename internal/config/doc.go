// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for batchrun.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - RunnerConfig: Worker count, duplicate policy and default arguments
//   - ExecConfig: Interpreter table and process environment
//   - WatchConfig, HistoryConfig, MetricsConfig: Optional components
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (BATCHRUN_*)
//   - $BATCHRUN_HOME/config.toml
//   - $BATCHRUN_HOME/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	workers := cfg.Runner.MaxParallel
package config
