// Package config handles loading and resolving timedeck configuration.
// Resolution order (later layers win):
//  1. built-in defaults
//  2. config.json in the current working directory
//  3. environment variables TIMEDECK_*
//  4. CLI flags
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/derickschaefer/timedeck/internal/clock"
)

const (
	DefaultConfigFile      = "config.json"
	DefaultFormat          = "table"
	DefaultStorage         = StorageBolt
	DefaultHTTPAddress     = "127.0.0.1:8080"
	DefaultRefreshInterval = time.Second
	DefaultSourceTimezone  = "America/New_York"
	DefaultLogLevel        = "warn"
	DefaultLogFormat       = "text"

	EnvDBPath     = "TIMEDECK_DB_PATH"
	EnvStorage    = "TIMEDECK_STORAGE"
	EnvValkeyAddr = "TIMEDECK_VALKEY_ADDR"
	EnvLogLevel   = "TIMEDECK_LOG_LEVEL"
	EnvTZ         = "TIMEDECK_TZ"
)

// Storage backends.
const (
	StorageBolt   = "bolt"
	StorageValkey = "valkey"
	StorageMemory = "memory"
)

var (
	formats    = []string{"table", "json", "jsonl", "csv", "tsv", "md"}
	storages   = []string{StorageBolt, StorageValkey, StorageMemory}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// File is the on-disk representation of config.json.
type File struct {
	DefaultFormat   string `json:"default_format,omitempty"`
	DBPath          string `json:"db_path,omitempty"`
	Storage         string `json:"storage,omitempty"`
	ValkeyAddr      string `json:"valkey_addr,omitempty"`
	CatalogPath     string `json:"catalog_path,omitempty"`
	SourceTimezone  string `json:"source_timezone,omitempty"`
	ViewerTimezone  string `json:"viewer_timezone,omitempty"`
	HTTPAddress     string `json:"http_address,omitempty"`
	RefreshInterval string `json:"refresh_interval,omitempty"`
	LogLevel        string `json:"log_level,omitempty"`
	LogFormat       string `json:"log_format,omitempty"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	Format          string
	DBPath          string
	Storage         string
	ValkeyAddr      string
	CatalogPath     string
	SourceTimezone  string
	ViewerTimezone  string // empty means the host's local zone
	HTTPAddress     string
	RefreshInterval time.Duration
	LogLevel        string
	LogFormat       string
	ConfigPath      string // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Quiet   bool
	Verbose bool
}

// Overrides carries CLI flag values. Empty fields leave lower layers alone.
type Overrides struct {
	Format   string
	DBPath   string
	Storage  string
	LogLevel string
}

// Load resolves configuration from all sources. A config.json that exists
// but cannot be parsed is an error; a missing one is not.
func Load(flags Overrides) (*Config, error) {
	cfg := &Config{
		Format:          DefaultFormat,
		Storage:         DefaultStorage,
		SourceTimezone:  DefaultSourceTimezone,
		HTTPAddress:     DefaultHTTPAddress,
		RefreshInterval: DefaultRefreshInterval,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
	}

	// Layer 1: config.json (lowest priority)
	f, path, err := loadFile()
	switch {
	case err == nil:
		if err := applyFile(cfg, f, path); err != nil {
			return nil, err
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	// Layer 2: environment variables
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvStorage); v != "" {
		cfg.Storage = v
	}
	if v := os.Getenv(EnvValkeyAddr); v != "" {
		cfg.ValkeyAddr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvTZ); v != "" {
		cfg.ViewerTimezone = v
	}

	// Layer 3: CLI flags (highest priority)
	if flags.Format != "" {
		cfg.Format = flags.Format
	}
	if flags.DBPath != "" {
		cfg.DBPath = flags.DBPath
	}
	if flags.Storage != "" {
		cfg.Storage = flags.Storage
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".timedeck", "timedeck.db")
		} else {
			cfg.DBPath = filepath.Join(".timedeck", "timedeck.db")
		}
	}

	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if !oneOf(c.Format, formats) {
		return fmt.Errorf("invalid format %q (valid: %s)", c.Format, strings.Join(formats, ", "))
	}
	if !oneOf(c.Storage, storages) {
		return fmt.Errorf("invalid storage %q (valid: %s)", c.Storage, strings.Join(storages, ", "))
	}
	if c.Storage == StorageValkey && c.ValkeyAddr == "" {
		return fmt.Errorf("storage %q needs valkey_addr (or %s)", StorageValkey, EnvValkeyAddr)
	}
	if !clock.IsValidTimezone(c.SourceTimezone) {
		return fmt.Errorf("invalid source_timezone %q", c.SourceTimezone)
	}
	if c.ViewerTimezone != "" && !clock.IsValidTimezone(c.ViewerTimezone) {
		return fmt.Errorf("invalid viewer_timezone %q", c.ViewerTimezone)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive")
	}
	if !oneOf(c.LogLevel, logLevels) {
		return fmt.Errorf("invalid log_level %q (valid: %s)", c.LogLevel, strings.Join(logLevels, ", "))
	}
	if !oneOf(c.LogFormat, logFormats) {
		return fmt.Errorf("invalid log_format %q (valid: %s)", c.LogFormat, strings.Join(logFormats, ", "))
	}
	return nil
}

// ViewerLocation returns the zone whose calendar defines "today" for
// conversions: ViewerTimezone when set, the host's zone otherwise.
func (c *Config) ViewerLocation() *time.Location {
	if c.ViewerTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ViewerTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Settings returns the resolved values as key/value pairs in key order,
// for `config get`.
func (c *Config) Settings() [][2]string {
	viewer := c.ViewerTimezone
	if viewer == "" {
		viewer = "(local: " + time.Local.String() + ")"
	}
	src := "(not found)"
	if c.ConfigPath != "" {
		src = c.ConfigPath
	}
	valkey := c.ValkeyAddr
	if valkey == "" {
		valkey = "(not set)"
	}
	catalog := c.CatalogPath
	if catalog == "" {
		catalog = "(built in)"
	}
	return [][2]string{
		{"catalog_path", catalog},
		{"db_path", c.DBPath},
		{"default_format", c.Format},
		{"http_address", c.HTTPAddress},
		{"log_format", c.LogFormat},
		{"log_level", c.LogLevel},
		{"refresh_interval", c.RefreshInterval.String()},
		{"source_timezone", c.SourceTimezone},
		{"storage", c.Storage},
		{"valkey_addr", valkey},
		{"viewer_timezone", viewer},
		{"config_file", src},
	}
}

// loadFile attempts to read config.json from the current working directory.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	f, err := ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// ReadFile parses the config file at path. A missing file yields an error
// satisfying os.IsNotExist.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) error {
	cfg.ConfigPath = path
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.Storage != "" {
		cfg.Storage = f.Storage
	}
	if f.ValkeyAddr != "" {
		cfg.ValkeyAddr = f.ValkeyAddr
	}
	if f.CatalogPath != "" {
		cfg.CatalogPath = f.CatalogPath
	}
	if f.SourceTimezone != "" {
		cfg.SourceTimezone = f.SourceTimezone
	}
	if f.ViewerTimezone != "" {
		cfg.ViewerTimezone = f.ViewerTimezone
	}
	if f.HTTPAddress != "" {
		cfg.HTTPAddress = f.HTTPAddress
	}
	if f.RefreshInterval != "" {
		d, err := time.ParseDuration(f.RefreshInterval)
		if err != nil {
			return fmt.Errorf("%s: refresh_interval: %w", path, err)
		}
		cfg.RefreshInterval = d
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.LogFormat = f.LogFormat
	}
	return nil
}

// setters maps each config.json key to its validated assignment.
var setters = map[string]func(f *File, v string) error{
	"default_format": func(f *File, v string) error {
		if !oneOf(v, formats) {
			return fmt.Errorf("must be one of %s", strings.Join(formats, ", "))
		}
		f.DefaultFormat = v
		return nil
	},
	"db_path": func(f *File, v string) error { f.DBPath = v; return nil },
	"storage": func(f *File, v string) error {
		if !oneOf(v, storages) {
			return fmt.Errorf("must be one of %s", strings.Join(storages, ", "))
		}
		f.Storage = v
		return nil
	},
	"valkey_addr":  func(f *File, v string) error { f.ValkeyAddr = v; return nil },
	"catalog_path": func(f *File, v string) error { f.CatalogPath = v; return nil },
	"source_timezone": func(f *File, v string) error {
		if !clock.IsValidTimezone(v) {
			return fmt.Errorf("unknown timezone %q", v)
		}
		f.SourceTimezone = v
		return nil
	},
	"viewer_timezone": func(f *File, v string) error {
		if v != "" && !clock.IsValidTimezone(v) {
			return fmt.Errorf("unknown timezone %q", v)
		}
		f.ViewerTimezone = v
		return nil
	},
	"http_address": func(f *File, v string) error { f.HTTPAddress = v; return nil },
	"refresh_interval": func(f *File, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("must be a positive duration such as 1s")
		}
		f.RefreshInterval = v
		return nil
	},
	"log_level": func(f *File, v string) error {
		if !oneOf(v, logLevels) {
			return fmt.Errorf("must be one of %s", strings.Join(logLevels, ", "))
		}
		f.LogLevel = v
		return nil
	},
	"log_format": func(f *File, v string) error {
		if !oneOf(v, logFormats) {
			return fmt.Errorf("must be one of %s", strings.Join(logFormats, ", "))
		}
		f.LogFormat = v
		return nil
	},
}

// Keys returns every settable config.json key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to key after validating it. "format" is accepted as an
// alias for default_format.
func (f *File) Set(key, value string) error {
	key = strings.ToLower(key)
	if key == "format" {
		key = "default_format"
	}
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, strings.Join(Keys(), ", "))
	}
	if err := set(f, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `timedeck config init`.
func Template() File {
	return File{
		DefaultFormat:   DefaultFormat,
		Storage:         DefaultStorage,
		SourceTimezone:  DefaultSourceTimezone,
		HTTPAddress:     DefaultHTTPAddress,
		RefreshInterval: DefaultRefreshInterval.String(),
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

func oneOf(v string, options []string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
