package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	WriteKey string `toml:"write_key"`
	Host     string `toml:"host"`
	Gzip     *bool  `toml:"gzip"`
	Timeout  string `toml:"timeout"`
	LogLevel string `toml:"log_level"`
	WatchDir string `toml:"watch_dir"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.hubble/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".hubble", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("write-key", fc.WriteKey, &cfg.WriteKey)
	s.setString("host", fc.Host, &cfg.Host)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("dir", fc.WatchDir, &cfg.WatchDir)
	s.setBool("gzip", fc.Gzip, &cfg.Gzip)

	return s.setDuration("timeout", fc.Timeout, &cfg.Timeout)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
