package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultConfig(t *testing.T) {
	tempDir := t.TempDir()
	restore := overrideConfigEnv(tempDir)
	defer restore()

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath error: %v", err)
	}
	if !strings.HasPrefix(path, tempDir) {
		t.Fatalf("ConfigPath = %q, want it under %q", path, tempDir)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Audio.Backend != AudioVLC {
		t.Errorf("Audio.Backend = %q, want %q", cfg.Audio.Backend, AudioVLC)
	}
	if cfg.Audio.NetworkCachingMS != DefaultNetworkCaching {
		t.Errorf("NetworkCachingMS = %d, want %d", cfg.Audio.NetworkCachingMS, DefaultNetworkCaching)
	}
	if got := cfg.Audio.PlayTimeout(); got != 15*time.Second {
		t.Errorf("PlayTimeout = %v, want 15s", got)
	}
	if cfg.Preferences.Backend != PrefsAuto {
		t.Errorf("Preferences.Backend = %q, want %q", cfg.Preferences.Backend, PrefsAuto)
	}
	if !cfg.Metadata.Enabled || cfg.Metadata.PollInterval() != 10*time.Second {
		t.Errorf("Metadata = %+v", cfg.Metadata)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file at %s, got error: %v", path, err)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[audio]
backend = " BEEP "
network_caching_ms = 0

[preferences]
backend = "sqlite"
path = "/tmp/lofi.db"

[metadata]
enabled = false

[log]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audio.Backend != AudioBeep {
		t.Errorf("Audio.Backend = %q, want beep", cfg.Audio.Backend)
	}
	if cfg.Audio.NetworkCachingMS != DefaultNetworkCaching {
		t.Errorf("NetworkCachingMS = %d, want default", cfg.Audio.NetworkCachingMS)
	}
	if cfg.Metadata.Enabled {
		t.Error("Metadata.Enabled should be false")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	p, err := cfg.PreferencesPath(cfg.Preferences.Backend)
	if err != nil || p != "/tmp/lofi.db" {
		t.Errorf("PreferencesPath = %q, %v", p, err)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "[audio\nbackend = "},
		{"unknown key", "[audio]\nvolume = 3\n"},
		{"unknown audio backend", "[audio]\nbackend = \"gstreamer\"\n"},
		{"unknown prefs backend", "[preferences]\nbackend = \"redis\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Audio.Backend = AudioBeep
	cfg.Catalog.Path = "/srv/stations.yaml"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *cfg {
		t.Fatalf("round trip = %+v, want %+v", got, cfg)
	}
}

func TestDefaultPaths(t *testing.T) {
	tempDir := t.TempDir()
	restore := overrideConfigEnv(tempDir)
	defer restore()

	cfg := Default()
	dir, _ := ConfigDir()
	if p, _ := cfg.PreferencesPath(PrefsSQLite); p != filepath.Join(dir, "preferences.db") {
		t.Errorf("sqlite path = %q", p)
	}
	if p, _ := cfg.PreferencesPath(PrefsFile); p != filepath.Join(dir, "preferences.json") {
		t.Errorf("file path = %q", p)
	}
	if p, _ := cfg.LogPath(false); p != "" {
		t.Errorf("LogPath(false) = %q, want stderr", p)
	}
	if p, _ := cfg.LogPath(true); p != filepath.Join(dir, "lofiradio.log") {
		t.Errorf("LogPath(true) = %q", p)
	}
}

func overrideConfigEnv(tempDir string) func() {
	originals := map[string]string{
		"APPDATA":         os.Getenv("APPDATA"),
		"LOCALAPPDATA":    os.Getenv("LOCALAPPDATA"),
		"USERPROFILE":     os.Getenv("USERPROFILE"),
		"XDG_CONFIG_HOME": os.Getenv("XDG_CONFIG_HOME"),
		"HOME":            os.Getenv("HOME"),
	}

	if runtime.GOOS == "windows" {
		os.Setenv("APPDATA", tempDir)
		os.Setenv("LOCALAPPDATA", tempDir)
		os.Setenv("USERPROFILE", tempDir)
	} else {
		xdg := filepath.Join(tempDir, "xdg")
		_ = os.MkdirAll(xdg, 0o755)
		os.Setenv("XDG_CONFIG_HOME", xdg)
		os.Setenv("HOME", tempDir)
	}

	return func() {
		for k, v := range originals {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}
}
