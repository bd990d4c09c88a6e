package cliconfig

import "os"

// ApplyEnvConfig applies HUBBLE_* environment variables. They override the
// config file but not explicitly set flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("write-key", os.Getenv("HUBBLE_WRITE_KEY"), &cfg.WriteKey)
	s.setString("host", os.Getenv("HUBBLE_HOST"), &cfg.Host)
	s.setString("log-level", os.Getenv("HUBBLE_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("dir", os.Getenv("HUBBLE_WATCH_DIR"), &cfg.WatchDir)

	if err := s.setBoolFromString("gzip", os.Getenv("HUBBLE_GZIP"), &cfg.Gzip); err != nil {
		return err
	}
	return s.setDuration("timeout", os.Getenv("HUBBLE_TIMEOUT"), &cfg.Timeout)
}
