// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/nexora-labs/nexora-tui/internal/model"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete nexora configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	// Backend selects and addresses the chat backend
	Backend BackendConfig `toml:"backend" json:"backend" yaml:"backend"`

	// Models is the selectable model set
	Models ModelsConfig `toml:"models" json:"models" yaml:"models"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui" yaml:"ui"`

	// Log configuration
	Log LogConfig `toml:"log" json:"log" yaml:"log"`
}

// BackendConfig contains backend connection settings.
type BackendConfig struct {
	// Kind is the backend type: "relay" or "ollama"
	Kind string `toml:"kind" json:"kind" yaml:"kind"`
	// URL is the backend base URL
	URL string `toml:"url" json:"url" yaml:"url"`
	// ChatPath is the relay chat endpoint (ignored for ollama)
	ChatPath string `toml:"chat_path" json:"chat_path" yaml:"chat_path"`
	// ConnectTimeoutSecs bounds connecting and waiting for response headers
	ConnectTimeoutSecs int `toml:"connect_timeout_secs" json:"connect_timeout_secs" yaml:"connect_timeout_secs"`
	// ChunkSize is the maximum response chunk size in bytes
	ChunkSize int `toml:"chunk_size" json:"chunk_size" yaml:"chunk_size"`
}

// ModelsConfig contains the model catalog settings.
type ModelsConfig struct {
	// Available lists the selectable model ids in display order
	Available []string `toml:"available" json:"available" yaml:"available"`
	// Default is the model selected at startup
	Default string `toml:"default" json:"default" yaml:"default"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// MaxFPS caps transcript redraws per second while streaming
	MaxFPS int `toml:"max_fps" json:"max_fps" yaml:"max_fps"`
	// ShowTimestamps prints turn times next to speaker labels
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps" yaml:"show_timestamps"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level" yaml:"level"`
	// File is the log file path (default: <config dir>/nexora.log)
	File string `toml:"file" json:"file" yaml:"file"`
}

// Backend kinds.
const (
	BackendRelay  = "relay"
	BackendOllama = "ollama"
)

const (
	defaultRelayURL  = "http://127.0.0.1:8000"
	defaultOllamaURL = "http://127.0.0.1:11434"
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	catalog := model.DefaultCatalog()
	available := make([]string, 0, len(catalog))
	for _, id := range catalog.IDs() {
		available = append(available, string(id))
	}

	return &Config{
		Version: "1.0.0",

		Backend: BackendConfig{
			Kind:               BackendRelay,
			URL:                defaultRelayURL,
			ChatPath:           "/chat",
			ConnectTimeoutSecs: 10,
			ChunkSize:          4096,
		},

		Models: ModelsConfig{
			Available: available,
			Default:   available[0],
		},

		UI: UIConfig{
			MaxFPS:         30,
			ShowTimestamps: false,
		},

		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the nexora configuration directory path.
// NEXORA_HOME overrides the default ~/.nexora.
func ConfigDir() (string, error) {
	if dir := os.Getenv("NEXORA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".nexora"), nil
}

func configPath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) { return configPath("config.toml") }

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) { return configPath("config.yaml") }

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) { return configPath("config.json") }

// HistoryPath returns the path of the plain-mode input history file.
func HistoryPath() (string, error) { return configPath("history") }

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ActivePath returns the config file Load would read, or the TOML path when
// none exists yet.
func ActivePath() (string, error) {
	for _, fn := range []func() (string, error){ConfigPathTOML, ConfigPathYAML, ConfigPathJSON} {
		path, err := fn()
		if err != nil {
			return "", err
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return path, nil
		}
	}
	return ConfigPathTOML()
}

// LogPath returns the configured log file, defaulting into the config dir.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	return configPath("nexora.log")
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the first config file found (TOML, YAML,
// then JSON) and falls back to defaults. Environment overrides are applied
// last.
func Load() (*Config, error) {
	path, err := ActivePath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return LoadFromPath(path)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
// The format follows the file extension; anything unknown is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ReadFile decodes a config file and fills missing values, without
// environment overrides or validation. Use it when the file itself is
// about to be edited and saved back.
func ReadFile(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	case ".yaml", ".yml":
		err = LoadYAML(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Backend
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = defaults.Backend.Kind
	}
	cfg.Backend.Kind = strings.ToLower(cfg.Backend.Kind)
	if cfg.Backend.URL == "" {
		if cfg.Backend.Kind == BackendOllama {
			cfg.Backend.URL = defaultOllamaURL
		} else {
			cfg.Backend.URL = defaults.Backend.URL
		}
	}
	if cfg.Backend.ChatPath == "" {
		cfg.Backend.ChatPath = defaults.Backend.ChatPath
	}
	if cfg.Backend.ConnectTimeoutSecs == 0 {
		cfg.Backend.ConnectTimeoutSecs = defaults.Backend.ConnectTimeoutSecs
	}
	if cfg.Backend.ChunkSize == 0 {
		cfg.Backend.ChunkSize = defaults.Backend.ChunkSize
	}

	// Models
	if len(cfg.Models.Available) == 0 {
		cfg.Models.Available = defaults.Models.Available
	}
	if cfg.Models.Default == "" {
		cfg.Models.Default = strings.TrimSpace(cfg.Models.Available[0])
	}

	// UI
	if cfg.UI.MaxFPS == 0 {
		cfg.UI.MaxFPS = defaults.UI.MaxFPS
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	return nil
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

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# nexora configuration file\n")
	buf.WriteString("# Environment overrides: NEXORA_URL, NEXORA_BACKEND, NEXORA_MODEL, NEXORA_LOG_LEVEL\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := atomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveYAML saves the configuration to a YAML file.
func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := atomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := atomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveToPath saves the configuration in the format implied by the file
// extension (.toml, .yaml/.yml or .json).
func SaveToPath(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return SaveTOML(cfg, path)
	case ".yaml", ".yml":
		return SaveYAML(cfg, path)
	case ".json":
		return SaveJSON(cfg, path)
	default:
		return fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it into place, so a reader (or the watcher) never sees a partial file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync data to disk: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
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

	// Backend
	switch c.Backend.Kind {
	case BackendRelay, BackendOllama:
	default:
		errs = append(errs, ValidationError{
			Field:   "backend.kind",
			Message: fmt.Sprintf("invalid kind '%s', must be one of: relay, ollama", c.Backend.Kind),
		})
	}

	if u, err := url.Parse(c.Backend.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http(s) URL", c.Backend.URL),
		})
	}

	if !strings.HasPrefix(c.Backend.ChatPath, "/") {
		errs = append(errs, ValidationError{
			Field:   "backend.chat_path",
			Message: fmt.Sprintf("invalid path '%s', must start with /", c.Backend.ChatPath),
		})
	}

	if c.Backend.ConnectTimeoutSecs < 1 || c.Backend.ConnectTimeoutSecs > 300 {
		errs = append(errs, ValidationError{
			Field:   "backend.connect_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 300, got %d", c.Backend.ConnectTimeoutSecs),
		})
	}

	if c.Backend.ChunkSize < 1 || c.Backend.ChunkSize > 1<<20 {
		errs = append(errs, ValidationError{
			Field:   "backend.chunk_size",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", 1<<20, c.Backend.ChunkSize),
		})
	}

	// Models
	catalog := c.Catalog()
	if err := catalog.Validate(); err != nil {
		errs = append(errs, ValidationError{Field: "models.available", Message: err.Error()})
	} else if !catalog.Contains(model.ID(strings.TrimSpace(c.Models.Default))) {
		errs = append(errs, ValidationError{
			Field:   "models.default",
			Message: fmt.Sprintf("'%s' is not in models.available", c.Models.Default),
		})
	}

	// UI
	if c.UI.MaxFPS < 1 || c.UI.MaxFPS > 120 {
		errs = append(errs, ValidationError{
			Field:   "ui.max_fps",
			Message: fmt.Sprintf("must be between 1 and 120, got %d", c.UI.MaxFPS),
		})
	}

	// Log
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// MODEL HELPERS
// =============================================================================

// Catalog builds the model catalog from models.available.
func (c *Config) Catalog() model.Catalog {
	return model.CatalogFromIDs(c.Models.Available)
}

// NewSelector returns a selector over the configured catalog with the
// configured default selected.
func (c *Config) NewSelector() (*model.Selector, error) {
	catalog := c.Catalog()
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	sel := model.NewSelector(catalog)
	if err := sel.Select(model.ID(strings.TrimSpace(c.Models.Default))); err != nil {
		return nil, err
	}
	return sel, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - NEXORA_URL: overrides backend.url
//   - NEXORA_BACKEND: overrides backend.kind
//   - NEXORA_MODEL: overrides models.default
//   - NEXORA_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if kind := os.Getenv("NEXORA_BACKEND"); kind != "" {
		if !strings.EqualFold(kind, c.Backend.Kind) && os.Getenv("NEXORA_URL") == "" {
			// the URL belonged to the other backend
			c.Backend.URL = ""
		}
		c.Backend.Kind = strings.ToLower(kind)
	}

	if u := os.Getenv("NEXORA_URL"); u != "" {
		c.Backend.URL = u
	}

	if m := os.Getenv("NEXORA_MODEL"); m != "" {
		c.Models.Default = m
	}

	if level := os.Getenv("NEXORA_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "backend.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookupField(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.max_fps").
// String values are converted to the field's type; lists are comma separated.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookupField(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookupField(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field, nil
		}

		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}

	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"backend.kind",
		"backend.url",
		"backend.chat_path",
		"backend.connect_timeout_secs",
		"backend.chunk_size",
		"models.available",
		"models.default",
		"ui.max_fps",
		"ui.show_timestamps",
		"log.level",
		"log.file",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Models.Available = append([]string(nil), c.Models.Available...)
	return &clone
}

// String returns a string representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
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
