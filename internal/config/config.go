// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete batchrun configuration.
type Config struct {
	Runner  RunnerConfig  `toml:"runner" json:"runner"`
	Exec    ExecConfig    `toml:"exec" json:"exec"`
	Watch   WatchConfig   `toml:"watch" json:"watch"`
	History HistoryConfig `toml:"history" json:"history"`
	Metrics MetricsConfig `toml:"metrics" json:"metrics"`
	Log     LogConfig     `toml:"log" json:"log"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// RunnerConfig controls the worker pool and the batch list.
type RunnerConfig struct {
	// MaxParallel is the number of workers started per run
	MaxParallel int `toml:"max_parallel" json:"max_parallel"`
	// AllowDuplicates lets the same absolute path appear more than once
	AllowDuplicates bool `toml:"allow_duplicates" json:"allow_duplicates"`
	// DefaultArgs is applied to newly added entries
	DefaultArgs string `toml:"default_args" json:"default_args"`
	// AutoFinish closes the queue once a run has nothing queued or executing
	AutoFinish bool `toml:"auto_finish" json:"auto_finish"`
}

// ExecConfig controls how processes are launched.
type ExecConfig struct {
	// Interpreters maps an extension (".py") to a command line ("python3 -u")
	Interpreters map[string]string `toml:"interpreters" json:"interpreters"`
	// UseScriptDir runs each task from its own directory
	UseScriptDir bool `toml:"use_script_dir" json:"use_script_dir"`
	// Env is appended to the inherited environment
	Env []string `toml:"env" json:"env"`
}

// WatchConfig controls the drop folder.
type WatchConfig struct {
	Dir          string   `toml:"dir" json:"dir"`
	Extensions   []string `toml:"extensions" json:"extensions"`
	DebounceMS   int      `toml:"debounce_ms" json:"debounce_ms"`
	MaxPerSecond float64  `toml:"max_per_second" json:"max_per_second"`
}

// HistoryConfig controls the run journal.
type HistoryConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path of the SQLite database (empty = <config dir>/history.db)
	Path     string `toml:"path" json:"path"`
	KeepRuns int    `toml:"keep_runs" json:"keep_runs"`
}

// MetricsConfig controls the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `toml:"addr" json:"addr"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// File receives log output in headless mode (empty = stderr)
	File string `toml:"file" json:"file"`
}

// UIConfig contains interface preferences.
type UIConfig struct {
	Theme    string `toml:"theme" json:"theme"`
	ShowHelp bool   `toml:"show_help" json:"show_help"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Runner: RunnerConfig{
			MaxParallel:     2,
			AllowDuplicates: false,
			AutoFinish:      false,
		},
		Exec: ExecConfig{
			Interpreters: map[string]string{},
		},
		Watch: WatchConfig{
			Extensions:   []string{".sh", ".py", ".bat", ".cmd", ".ps1", ".exe"},
			DebounceMS:   500,
			MaxPerSecond: 20,
		},
		History: HistoryConfig{
			Enabled:  true,
			KeepRuns: 200,
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme:    "dark",
			ShowHelp: true,
		},
	}
}

// fillDefaults sets zero values that have a non-zero default.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Runner.MaxParallel == 0 {
		cfg.Runner.MaxParallel = defaults.Runner.MaxParallel
	}
	if cfg.Exec.Interpreters == nil {
		cfg.Exec.Interpreters = defaults.Exec.Interpreters
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = defaults.Watch.Extensions
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = defaults.Watch.DebounceMS
	}
	if cfg.Watch.MaxPerSecond == 0 {
		cfg.Watch.MaxPerSecond = defaults.Watch.MaxPerSecond
	}
	if cfg.History.KeepRuns == 0 {
		cfg.History.KeepRuns = defaults.History.KeepRuns
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the batchrun configuration directory.
// BATCHRUN_HOME overrides the default of ~/.batchrun.
func Dir() (string, error) {
	if home := os.Getenv("BATCHRUN_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".batchrun"), nil
}

// PathTOML returns the path to the TOML config file.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the path to the JSON config file.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// HistoryPath returns the journal database path, resolving the default.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	tomlPath, err := PathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	jsonPath, err := PathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadFromPath loads a specific file. Files ending in .json are read as JSON,
// everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := PathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file atomically.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# batchrun configuration file\n")
	buf.WriteString("# Generated by batchrun - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration to a JSON file atomically.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Runner.MaxParallel < 1 {
		errs = append(errs, ValidationError{
			Field:   "runner.max_parallel",
			Message: fmt.Sprintf("must be greater than 0, got %d", c.Runner.MaxParallel),
		})
	}

	for ext, cmdline := range c.Exec.Interpreters {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, ValidationError{
				Field:   "exec.interpreters",
				Message: fmt.Sprintf("extension %q must start with '.'", ext),
			})
		}
		if strings.TrimSpace(cmdline) == "" {
			errs = append(errs, ValidationError{
				Field:   "exec.interpreters",
				Message: fmt.Sprintf("empty command for %q", ext),
			})
		}
	}
	for _, kv := range c.Exec.Env {
		if !strings.Contains(kv, "=") {
			errs = append(errs, ValidationError{
				Field:   "exec.env",
				Message: fmt.Sprintf("entry %q must be KEY=value", kv),
			})
		}
	}

	if c.Watch.DebounceMS < 0 {
		errs = append(errs, ValidationError{Field: "watch.debounce_ms", Message: "must not be negative"})
	}
	if c.Watch.MaxPerSecond < 0 {
		errs = append(errs, ValidationError{Field: "watch.max_per_second", Message: "must not be negative"})
	}
	if c.Watch.Dir != "" {
		if info, err := os.Stat(c.Watch.Dir); err != nil || !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "watch.dir",
				Message: fmt.Sprintf("%q is not a directory", c.Watch.Dir),
			})
		}
	}

	if c.History.KeepRuns < 0 {
		errs = append(errs, ValidationError{Field: "history.keep_runs", Message: "must not be negative"})
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{Field: "log.level", Message: err.Error()})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies BATCHRUN_* environment variables. Values that do
// not parse are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("BATCHRUN_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Runner.MaxParallel = n
		}
	}
	if v := os.Getenv("BATCHRUN_ALLOW_DUPLICATES"); v != "" {
		c.Runner.AllowDuplicates = parseBool(v)
	}
	if v, ok := os.LookupEnv("BATCHRUN_DEFAULT_ARGS"); ok {
		c.Runner.DefaultArgs = v
	}
	if v := os.Getenv("BATCHRUN_WATCH_DIR"); v != "" {
		c.Watch.Dir = v
	}
	if v := os.Getenv("BATCHRUN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BATCHRUN_HISTORY"); v != "" {
		c.History.Enabled = parseBool(v)
	}
	if v := os.Getenv("BATCHRUN_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "runner.max_parallel").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type; lists are comma separated.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks key through the struct using the toml tags.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tomlName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(f reflect.StructField) string {
	tag := f.Tag.Get("toml")
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	return strings.Split(tag, ",")[0]
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every scalar configuration key in dot notation, sorted.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		st := section.Type
		for j := 0; j < st.NumField(); j++ {
			keys = append(keys, tomlName(section)+"."+tomlName(st.Field(j)))
		}
	}
	sort.Strings(keys)
	return keys
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Exec.Interpreters != nil {
		clone.Exec.Interpreters = make(map[string]string, len(c.Exec.Interpreters))
		for k, v := range c.Exec.Interpreters {
			clone.Exec.Interpreters[k] = v
		}
	}
	clone.Exec.Env = append([]string(nil), c.Exec.Env...)
	clone.Watch.Extensions = append([]string(nil), c.Watch.Extensions...)
	return &clone
}

// String returns the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
