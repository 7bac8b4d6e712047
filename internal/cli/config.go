// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
// Short:   View and modify configuration
// Aliases: cfg
//
// Subcommands:
//
//	show (default)      Display the effective configuration
//	get <key>           Print one value
//	set <key> <value>   Set a value in the config file
//	keys                List every key
//	init                Write a default config file if none exists
//	reset               Overwrite the config file with defaults
//	path                Show the config file location
//
// Examples:
//
//	batchrun config set runner.max_parallel 4
//	batchrun config set runner.default_args "--dry-run"
//	batchrun config set watch.extensions .sh,.py
//	batchrun config set metrics.addr 127.0.0.1:9464
//	batchrun config get history.keep_runs
//	batchrun config show --json
//
// set and reset edit the file as written; BATCHRUN_* environment overrides
// only apply to show and get.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/batchrun/internal/config"
)

// HandleConfig handles the "config" command.
func HandleConfig(args Args) error {
	p := NewArgParser(args.Raw, "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	path, err := configFilePath(args)
	if err != nil {
		return err
	}

	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "show":
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		return configShow(os.Stdout, cfg, path, jsonMode)

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "batchrun config get runner.max_parallel")
		}
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		return configGet(os.Stdout, cfg, key, jsonMode)

	case "set":
		key := p.Positional(1)
		if key == "" || p.PositionalCount() < 3 {
			return ErrMissingArgument("key and value", "batchrun config set runner.max_parallel 4")
		}
		if err := configSet(path, key, JoinPositionalArgs(p, 2)); err != nil {
			return err
		}
		if jsonMode {
			return NewJSONResponse("config", ConfigData{Path: path, Exists: true}, nil).Print(os.Stdout)
		}
		fmt.Printf("%s %s updated in %s\n", RenderConditional(SuccessStyle, "[OK]"), key, path)
		return nil

	case "keys":
		for _, k := range config.Keys() {
			fmt.Println(k)
		}
		return nil

	case "init", "reset":
		created, err := configWriteDefault(path, sub == "reset")
		if err != nil {
			return err
		}
		switch {
		case jsonMode:
			return NewJSONResponse("config", ConfigData{Path: path, Exists: true}, nil).Print(os.Stdout)
		case created:
			fmt.Printf("%s wrote defaults to %s\n", RenderConditional(SuccessStyle, "[OK]"), path)
		default:
			fmt.Printf("%s already exists\n", path)
		}
		return nil

	case "path":
		_, statErr := os.Stat(path)
		if jsonMode {
			return NewJSONResponse("config", ConfigData{Path: path, Exists: statErr == nil}, nil).Print(os.Stdout)
		}
		fmt.Println(path)
		return nil

	default:
		return NewValidationErrorWithExample("subcommand", sub,
			"unknown config subcommand", "batchrun config [show|get|set|keys|init|reset|path]")
	}
}

// configFilePath is --config when given, otherwise the existing default file
// (TOML preferred) or the TOML path for a new one.
func configFilePath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	tomlPath, err := config.PathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := config.PathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

func isJSONPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".json")
}

func configShow(w io.Writer, cfg *config.Config, path string, jsonMode bool) error {
	_, statErr := os.Stat(path)
	if jsonMode {
		values := make(map[string]any)
		for _, k := range config.Keys() {
			if v, err := cfg.Get(k); err == nil {
				values[k] = v
			}
		}
		return NewJSONResponse("config", ConfigData{Path: path, Exists: statErr == nil, Values: values}, nil).Print(w)
	}

	fmt.Fprintln(w, TitleStyle.Render("batchrun configuration"))
	source := path
	if statErr != nil {
		source += RenderConditional(DimStyle, " (not created, showing defaults)")
	}
	printField(w, "File", source)
	fmt.Fprintln(w, RenderSeparator(50))
	fmt.Fprint(w, cfg.String())
	return nil
}

func configGet(w io.Writer, cfg *config.Config, key string, jsonMode bool) error {
	v, err := cfg.Get(key)
	if err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), "batchrun config keys")
	}
	if jsonMode {
		return NewJSONResponse("config", map[string]any{key: v}, nil).Print(w)
	}
	switch val := v.(type) {
	case []string:
		fmt.Fprintln(w, strings.Join(val, ","))
	default:
		fmt.Fprintln(w, val)
	}
	return nil
}

// configSet updates one key in the file at path, creating it from defaults
// when missing. The result is validated before it is written.
func configSet(path, key, value string) error {
	cfg, err := readConfigFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), "batchrun config keys")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return writeConfigFile(cfg, path)
}

// configWriteDefault writes defaults to path. Without overwrite an existing
// file is left alone and created is false.
func configWriteDefault(path string, overwrite bool) (created bool, err error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := writeConfigFile(config.Default(), path); err != nil {
		return false, err
	}
	return true, nil
}

// readConfigFile decodes path without environment overrides.
func readConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	load := config.LoadTOML
	if isJSONPath(path) {
		load = config.LoadJSON
	}
	if err := load(cfg, path); err != nil {
		return nil, WrapError(err, "config")
	}
	return cfg, nil
}

func writeConfigFile(cfg *config.Config, path string) error {
	if path == "" {
		return config.Save(cfg)
	}
	if isJSONPath(path) {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
