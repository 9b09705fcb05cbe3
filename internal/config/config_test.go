package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/timedeck/internal/config"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// chdir changes the working directory to dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

// writeConfig writes a config.json into dir and changes the working directory
// to dir so config.Load() finds it.
func writeConfig(t *testing.T, dir string, f config.File) {
	t.Helper()
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), append(data, '\n'), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	chdir(t, dir)
}

// clearEnv blanks every TIMEDECK_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvDBPath, config.EnvStorage, config.EnvValkeyAddr, config.EnvLogLevel, config.EnvTZ} {
		t.Setenv(k, "")
	}
}

// ─── Defaults ─────────────────────────────────────────────────────────────────

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Format != config.DefaultFormat {
		t.Errorf("Format: expected %q, got %q", config.DefaultFormat, cfg.Format)
	}
	if cfg.Storage != config.StorageBolt {
		t.Errorf("Storage: expected %q, got %q", config.StorageBolt, cfg.Storage)
	}
	if cfg.SourceTimezone != "America/New_York" {
		t.Errorf("SourceTimezone: got %q", cfg.SourceTimezone)
	}
	if cfg.RefreshInterval != time.Second {
		t.Errorf("RefreshInterval: got %v", cfg.RefreshInterval)
	}
	if cfg.ViewerTimezone != "" {
		t.Errorf("ViewerTimezone should default to empty, got %q", cfg.ViewerTimezone)
	}
	if !strings.HasSuffix(cfg.DBPath, filepath.Join(".timedeck", "timedeck.db")) {
		t.Errorf("DBPath default: got %q", cfg.DBPath)
	}
	if cfg.ConfigPath != "" {
		t.Errorf("ConfigPath should be empty without config.json, got %q", cfg.ConfigPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// ─── Layering ─────────────────────────────────────────────────────────────────

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, config.File{
		DefaultFormat:   "json",
		Storage:         "memory",
		SourceTimezone:  "Europe/Berlin",
		ViewerTimezone:  "Asia/Tokyo",
		RefreshInterval: "250ms",
		LogFormat:       "json",
	})

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Format != "json" || cfg.Storage != "memory" || cfg.SourceTimezone != "Europe/Berlin" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.RefreshInterval != 250*time.Millisecond {
		t.Errorf("RefreshInterval: got %v", cfg.RefreshInterval)
	}
	if cfg.ViewerLocation().String() != "Asia/Tokyo" {
		t.Errorf("ViewerLocation: got %s", cfg.ViewerLocation())
	}
	if !strings.HasSuffix(cfg.ConfigPath, "config.json") {
		t.Errorf("ConfigPath: got %q", cfg.ConfigPath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	writeConfig(t, t.TempDir(), config.File{Storage: "bolt", DBPath: "/from/file.db", LogLevel: "info"})
	t.Setenv(config.EnvStorage, "valkey")
	t.Setenv(config.EnvValkeyAddr, "localhost:6379")
	t.Setenv(config.EnvDBPath, "/from/env.db")
	t.Setenv(config.EnvTZ, "Europe/Paris")

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage != "valkey" || cfg.ValkeyAddr != "localhost:6379" {
		t.Errorf("env storage not applied: %q %q", cfg.Storage, cfg.ValkeyAddr)
	}
	if cfg.DBPath != "/from/env.db" {
		t.Errorf("DBPath: got %q", cfg.DBPath)
	}
	if cfg.ViewerTimezone != "Europe/Paris" {
		t.Errorf("ViewerTimezone: got %q", cfg.ViewerTimezone)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel from file should survive: got %q", cfg.LogLevel)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv(config.EnvDBPath, "/from/env.db")
	t.Setenv(config.EnvLogLevel, "error")

	cfg, err := config.Load(config.Overrides{DBPath: "/from/flag.db", LogLevel: "debug", Format: "csv", Storage: "memory"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/from/flag.db" || cfg.LogLevel != "debug" || cfg.Format != "csv" || cfg.Storage != "memory" {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	if _, err := config.Load(config.Overrides{}); err == nil {
		t.Fatal("expected error for malformed config.json")
	}
}

func TestLoadBadInterval(t *testing.T) {
	clearEnv(t)
	writeConfig(t, t.TempDir(), config.File{RefreshInterval: "soon"})
	_, err := config.Load(config.Overrides{})
	if err == nil || !strings.Contains(err.Error(), "refresh_interval") {
		t.Fatalf("expected refresh_interval error, got %v", err)
	}
}

// ─── Validate ─────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			Format: "table", Storage: "bolt", SourceTimezone: "UTC",
			RefreshInterval: time.Second, LogLevel: "warn", LogFormat: "text",
		}
	}
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"ok", func(*config.Config) {}, ""},
		{"format", func(c *config.Config) { c.Format = "xml" }, "invalid format"},
		{"storage", func(c *config.Config) { c.Storage = "s3" }, "invalid storage"},
		{"valkey without addr", func(c *config.Config) { c.Storage = "valkey" }, "valkey_addr"},
		{"source tz", func(c *config.Config) { c.SourceTimezone = "Mars/Olympus" }, "source_timezone"},
		{"viewer tz", func(c *config.Config) { c.ViewerTimezone = "Nope/Nope" }, "viewer_timezone"},
		{"interval", func(c *config.Config) { c.RefreshInterval = 0 }, "refresh_interval"},
		{"log level", func(c *config.Config) { c.LogLevel = "loud" }, "log_level"},
		{"log format", func(c *config.Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

// ─── Set / Template / WriteFile ───────────────────────────────────────────────

func TestFileSet(t *testing.T) {
	var f config.File
	if err := f.Set("format", "md"); err != nil {
		t.Fatalf("Set format: %v", err)
	}
	if f.DefaultFormat != "md" {
		t.Errorf("format alias: got %q", f.DefaultFormat)
	}
	if err := f.Set("SOURCE_TIMEZONE", "Asia/Kolkata"); err != nil {
		t.Fatalf("Set source_timezone: %v", err)
	}
	if f.SourceTimezone != "Asia/Kolkata" {
		t.Errorf("source_timezone: got %q", f.SourceTimezone)
	}
	if err := f.Set("viewer_timezone", ""); err != nil {
		t.Errorf("clearing viewer_timezone: %v", err)
	}

	for key, value := range map[string]string{
		"storage":          "floppy",
		"source_timezone":  "Mars/Olympus",
		"refresh_interval": "-1s",
		"log_level":        "chatty",
	} {
		if err := f.Set(key, value); err == nil {
			t.Errorf("Set(%q, %q) should fail", key, value)
		}
	}
	err := f.Set("api_key", "x")
	if err == nil || !strings.Contains(err.Error(), "Valid keys") {
		t.Errorf("unknown key error: %v", err)
	}
}

func TestKeysSorted(t *testing.T) {
	keys := config.Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
}

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := config.WriteFile(path, config.Template()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode: got %v, want 0600", info.Mode().Perm())
	}
	f, err := config.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if *f != config.Template() {
		t.Errorf("round trip mismatch: %+v", f)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := config.ReadFile(filepath.Join(t.TempDir(), "absent.json"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestSettingsIncludesSource(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, kv := range cfg.Settings() {
		if kv[0] == "config_file" {
			found = true
			if kv[1] != "(not found)" {
				t.Errorf("config_file: got %q", kv[1])
			}
		}
	}
	if !found {
		t.Error("Settings missing config_file")
	}
}
