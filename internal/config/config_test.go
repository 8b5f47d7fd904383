package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[library]
path = "/music"

[playback]
repeat = true
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Library.Path != "/music" {
		t.Errorf("Library.Path = %q, want /music", cfg.Library.Path)
	}
	if !cfg.Playback.Repeat {
		t.Error("Playback.Repeat = false, want true")
	}
	if cfg.Playback.Volume != 0.7 {
		t.Errorf("Playback.Volume = %v, want 0.7", cfg.Playback.Volume)
	}
	if cfg.Audio.Driver != "speaker" {
		t.Errorf("Audio.Driver = %q, want speaker", cfg.Audio.Driver)
	}
	if got := cfg.Playback.LoadTimeoutDuration(); got != 10*time.Second {
		t.Errorf("LoadTimeoutDuration() = %v, want 10s", got)
	}
	if len(cfg.Library.Formats) != 3 {
		t.Errorf("Library.Formats = %v, want 3 defaults", cfg.Library.Formats)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[audio]
driver = "speaker"
`)

	t.Setenv("CADENCE_AUDIO_DRIVER", "NULL")
	t.Setenv("CADENCE_PLAYBACK_VOLUME", "0.25")
	t.Setenv("CADENCE_LOG_LEVEL", "debug")
	t.Setenv("CADENCE_LIBRARY_WATCH", "true")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Audio.Driver != "null" {
		t.Errorf("Audio.Driver = %q, want null", cfg.Audio.Driver)
	}
	if cfg.Playback.Volume != 0.25 {
		t.Errorf("Playback.Volume = %v, want 0.25", cfg.Playback.Volume)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if !cfg.Library.Watch {
		t.Error("Library.Watch = false, want true")
	}
}

func TestLoadFromInvalidTOML(t *testing.T) {
	path := writeConfig(t, "[library\npath = ")
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() expected error for malformed TOML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("CADENCE_TUI_THEME=latte\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("CADENCE_TUI_THEME", "")
	os.Unsetenv("CADENCE_TUI_THEME")

	LoadDotEnv(envPath, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("CADENCE_TUI_THEME"); got != "latte" {
		t.Errorf("CADENCE_TUI_THEME = %q, want latte", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad format", func(c *Config) { c.Library.Formats = []string{".ogg"} }, "library: unsupported format"},
		{"negative timeout", func(c *Config) { c.Playback.LoadTimeout = -1 }, "load_timeout"},
		{"volume too high", func(c *Config) { c.Playback.Volume = 1.5 }, "volume must be between 0 and 1"},
		{"bad driver", func(c *Config) { c.Audio.Driver = "alsa" }, "invalid driver"},
		{"bad theme", func(c *Config) { c.TUI.Theme = "neon" }, "invalid theme"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestFindConfigFileXDG(t *testing.T) {
	home := t.TempDir()
	xdg := filepath.Join(home, "xdg")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if got := FindConfigFile(); got != "" {
		t.Errorf("FindConfigFile() = %q, want empty", got)
	}

	path := filepath.Join(xdg, "cadence", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if got := FindConfigFile(); got != path {
		t.Errorf("FindConfigFile() = %q, want %q", got, path)
	}
}
