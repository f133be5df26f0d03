// Package config loads and saves codetrail configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all codetrail configuration.
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Daemon   DaemonConfig   `toml:"daemon"`
	Analyzer AnalyzerConfig `toml:"analyzer"`
	Search   SearchConfig   `toml:"search"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DataDir string `toml:"data_dir,omitempty"`
}

// DaemonConfig holds daemon runtime settings.
type DaemonConfig struct {
	Addr            string       `toml:"addr"`
	IdleTimeout     tomlDuration `toml:"idle_timeout"`
	CleanupInterval tomlDuration `toml:"cleanup_interval"`
}

// AnalyzerConfig holds the external insight-provider settings.
type AnalyzerConfig struct {
	APIKey  string `toml:"api_key,omitempty"`
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model,omitempty"`
}

// SearchConfig holds search tuning knobs.
type SearchConfig struct {
	HighlightStart string `toml:"highlight_start"`
	HighlightEnd   string `toml:"highlight_end"`
	MaxResults     int    `toml:"max_results"`
}

// tomlDuration lets durations be written as "15m" in the config file.
type tomlDuration time.Duration

func (d *tomlDuration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = tomlDuration(parsed)
	return nil
}

func (d tomlDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// IdleTimeout returns the configured idle shutdown duration.
func (c Config) IdleTimeout() time.Duration { return time.Duration(c.Daemon.IdleTimeout) }

// SetIdleTimeout sets the idle shutdown duration.
func (c *Config) SetIdleTimeout(d time.Duration) { c.Daemon.IdleTimeout = tomlDuration(d) }

// CleanupInterval returns the minimum gap between empty-session sweeps.
func (c Config) CleanupInterval() time.Duration { return time.Duration(c.Daemon.CleanupInterval) }

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Daemon: DaemonConfig{
			Addr:            "127.0.0.1:7377",
			IdleTimeout:     tomlDuration(30 * time.Minute),
			CleanupInterval: tomlDuration(10 * time.Minute),
		},
		Analyzer: AnalyzerConfig{
			BaseURL: "https://api.anthropic.com",
			Model:   "claude-haiku-4-5",
		},
		Search: SearchConfig{
			HighlightStart: "<mark>",
			HighlightEnd:   "</mark>",
			MaxResults:     100,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codetrail")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "codetrail")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the per-user data directory holding the database and
// daemon runtime files.
func DataDir(cfg Config) string {
	if cfg.General.DataDir != "" {
		return cfg.General.DataDir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "codetrail")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "codetrail")
}

// DatabasePath returns the embedded database file location.
func DatabasePath(cfg Config) string {
	return filepath.Join(DataDir(cfg), "codetrail.db")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// AnalyzerAPIKey returns the analyzer key from env var or config, in that order.
func AnalyzerAPIKey(cfg Config) string {
	if key := os.Getenv("CODETRAIL_API_KEY"); key != "" {
		return key
	}
	return cfg.Analyzer.APIKey
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
