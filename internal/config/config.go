// Package config defines the LofiRadio configuration file and helpers for
// loading or saving it.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// AppID is the stable application identifier used by the GUI framework.
	AppID = "io.github.edward-ap.lofiradio"
	// AppConfigSubdir is the directory under os.UserConfigDir.
	AppConfigSubdir = "LofiRadio"
	// AppConfigName is the TOML file stored on disk.
	AppConfigName = "config.toml"

	// DefaultNetworkCaching is the libVLC caching in milliseconds.
	DefaultNetworkCaching = 1500
	// DefaultPlayTimeout bounds a single play attempt.
	DefaultPlayTimeout = 15
	// DefaultPollInterval is the status-json refresh period in seconds.
	DefaultPollInterval = 10
)

// Audio backends.
const (
	AudioVLC  = "vlc"
	AudioBeep = "beep"
)

// Preference backends.
const (
	PrefsAuto   = "auto"
	PrefsFile   = "file"
	PrefsSQLite = "sqlite"
	PrefsMemory = "memory"
)

//go:embed default.toml
var defaultConf []byte

// Config is the content of config.toml.
type Config struct {
	Audio       AudioConfig       `toml:"audio"`
	Preferences PreferencesConfig `toml:"preferences"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Metadata    MetadataConfig    `toml:"metadata"`
	Log         LogConfig         `toml:"log"`
}

// AudioConfig selects and tunes the audio device.
type AudioConfig struct {
	Backend            string `toml:"backend"`
	NetworkCachingMS   int    `toml:"network_caching_ms"`
	PlayTimeoutSeconds int    `toml:"play_timeout_seconds"`
}

// PreferencesConfig selects where volume, favorites and the last station live.
type PreferencesConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// CatalogConfig points at an alternative station list.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// MetadataConfig controls "now playing" lookups.
type MetadataConfig struct {
	Enabled             bool `toml:"enabled"`
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// PlayTimeout returns the play attempt timeout.
func (a AudioConfig) PlayTimeout() time.Duration {
	return time.Duration(a.PlayTimeoutSeconds) * time.Second
}

// PollInterval returns the status-json refresh period.
func (m MetadataConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSeconds) * time.Second
}

// ConfigDir resolves the writable directory that holds the config file.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppConfigSubdir), nil
}

// ConfigPath returns the full path to config.toml.
func ConfigPath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, AppConfigName), nil
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg := &Config{}
	if _, err := toml.Decode(string(defaultConf), cfg); err != nil {
		panic(fmt.Sprintf("config: embedded default: %v", err))
	}
	cfg.applyRuntimeDefaults()
	return cfg
}

// Load reads the config at path, or at ConfigPath when path is empty. A
// missing file yields the defaults, which are written out as a starting
// point; failing to write them is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			_ = writeDefault(path)
			return cfg, nil
		}
		return nil, err
	}

	cfg := Default()
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, fmt.Errorf("config parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown keys %v in %s", undecoded, path)
	}
	cfg.applyRuntimeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, defaultConf, 0o644)
}

// Save writes the configuration to path, creating directories as needed.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("config encode: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate rejects backends this build does not know.
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case AudioVLC, AudioBeep:
	default:
		return fmt.Errorf("config: unknown audio backend %q", c.Audio.Backend)
	}
	switch c.Preferences.Backend {
	case PrefsAuto, PrefsFile, PrefsSQLite, PrefsMemory:
	default:
		return fmt.Errorf("config: unknown preferences backend %q", c.Preferences.Backend)
	}
	return nil
}

// PreferencesPath returns the preference file for backend, defaulting to a
// file inside ConfigDir.
func (c *Config) PreferencesPath(backend string) (string, error) {
	if p := strings.TrimSpace(c.Preferences.Path); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if backend == PrefsSQLite {
		return filepath.Join(dir, "preferences.db"), nil
	}
	return filepath.Join(dir, "preferences.json"), nil
}

// LogPath returns the configured log file, or logPath inside ConfigDir when
// fallback is set and none is configured.
func (c *Config) LogPath(fallback bool) (string, error) {
	if p := strings.TrimSpace(c.Log.File); p != "" || !fallback {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "lofiradio.log"), nil
}

// applyRuntimeDefaults normalizes values after a load so callers always see
// sane inputs.
func (c *Config) applyRuntimeDefaults() {
	c.Audio.Backend = strings.ToLower(strings.TrimSpace(c.Audio.Backend))
	if c.Audio.Backend == "" {
		c.Audio.Backend = AudioVLC
	}
	if c.Audio.NetworkCachingMS <= 0 {
		c.Audio.NetworkCachingMS = DefaultNetworkCaching
	}
	if c.Audio.PlayTimeoutSeconds <= 0 {
		c.Audio.PlayTimeoutSeconds = DefaultPlayTimeout
	}
	c.Preferences.Backend = strings.ToLower(strings.TrimSpace(c.Preferences.Backend))
	if c.Preferences.Backend == "" {
		c.Preferences.Backend = PrefsAuto
	}
	if c.Metadata.PollIntervalSeconds <= 0 {
		c.Metadata.PollIntervalSeconds = DefaultPollInterval
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
