// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/invowk/buildorch/internal/issue"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.BuildRoot != "../build" {
		t.Errorf("BuildRoot = %q", cfg.BuildRoot)
	}
	if cfg.PropertiesFile != "key.properties" {
		t.Errorf("PropertiesFile = %q", cfg.PropertiesFile)
	}
	if cfg.LogLevel != LogLevelInfo || cfg.UI.ColorScheme != ColorSchemeAuto || cfg.UI.Verbose {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("defaults invalid: %v", errs)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, path, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want none", path)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := writeConfig(t, dir, `
build_root: "out"
log_level:  "debug"
ui: verbose: true
`)

	cfg, path, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if path != want {
		t.Errorf("resolved path = %q, want %q", path, want)
	}
	if cfg.BuildRoot != "out" || cfg.LogLevel != LogLevelDebug || !cfg.UI.Verbose {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PropertiesFile != "key.properties" || cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("defaults lost for unset keys: %+v", cfg)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), `default_task: "assemble"`)
	cfg, got, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigFilePath: path,
		ConfigDirPath:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != path || cfg.DefaultTask != "assemble" {
		t.Errorf("path = %q, cfg = %+v", got, cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		missing bool
		want    string
	}{
		{name: "explicit file missing", missing: true, want: "config file not found"},
		{name: "syntax error", content: `build_root: "out`, want: "load configuration"},
		{name: "unknown key", content: `colour: "red"`, want: "colour"},
		{name: "bad log level", content: `log_level: "trace"`, want: "log_level"},
		{name: "bad color scheme", content: `ui: color_scheme: "neon"`, want: "color_scheme"},
		{name: "empty build root", content: `build_root: ""`, want: "build_root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "missing.cue")
			if !tt.missing {
				path = writeConfig(t, t.TempDir(), tt.content)
			}

			_, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || ae.Issue != issue.ConfigLoadFailedId {
				t.Errorf("expected actionable config error, got %T", err)
			}
		})
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// Not parallel: uses t.Setenv.
func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `build_root: "from-file"`)

	t.Setenv("BUILDORCH_BUILD_ROOT", "from-env")
	t.Setenv("BUILDORCH_UI_VERBOSE", "true")
	t.Setenv("BUILDORCH_DEFAULT_TASK", "clean")

	cfg, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BuildRoot != "from-env" {
		t.Errorf("BuildRoot = %q, env should win over file", cfg.BuildRoot)
	}
	if !cfg.UI.Verbose || cfg.DefaultTask != "clean" {
		t.Errorf("cfg = %+v", cfg)
	}
}

// Not parallel: uses t.Setenv.
func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Setenv("BUILDORCH_LOG_LEVEL", "loud")

	_, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidLogLevel) || !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected invalid log level, got %v", err)
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"blank build root", func(c *Config) { c.BuildRoot = "  " }, ErrInvalidBuildRoot},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
		{"color scheme", func(c *Config) { c.UI.ColorScheme = "neon" }, ErrInvalidColorScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			valid, errs := cfg.IsValid()
			if valid || len(errs) != 1 {
				t.Fatalf("IsValid() = %v, %v", valid, errs)
			}
			var invalid *InvalidConfigError
			if !errors.As(errs[0], &invalid) || len(invalid.FieldErrors) != 1 {
				t.Fatalf("expected InvalidConfigError, got %v", errs[0])
			}
			if !errors.Is(invalid.FieldErrors[0], tt.target) {
				t.Errorf("field error = %v, want %v", invalid.FieldErrors[0], tt.target)
			}
		})
	}
}
