package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Driver         string   `toml:"driver"`
	Address        string   `toml:"address"`
	User           string   `toml:"user"`
	PasswordB64    string   `toml:"password_b64"`
	Libraries      []string `toml:"libraries"`
	MaxSessions    int      `toml:"max_sessions"`
	IdleTimeout    string   `toml:"idle_timeout"`
	AcquireTimeout string   `toml:"acquire_timeout"`
	InvokeTimeout  string   `toml:"invoke_timeout"`
	TemplateDir    string   `toml:"template_dir"`
	WatchTemplates *bool    `toml:"watch_templates"`
	Extractor      string   `toml:"extractor"`
	LogLevel       string   `toml:"log_level"`
	MetricsAddr    string   `toml:"metrics_addr"`
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

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.hostcall/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".hostcall", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("driver", fc.Driver, &cfg.Driver)
	s.setString("address", fc.Address, &cfg.Address)
	s.setString("user", fc.User, &cfg.User)
	s.setString("password-b64", fc.PasswordB64, &cfg.PasswordB64)
	s.setString("template-dir", fc.TemplateDir, &cfg.TemplateDir)
	s.setString("extractor", fc.Extractor, &cfg.Extractor)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setStrings("libl", fc.Libraries, &cfg.Libraries)

	if err := s.setDuration("idle-timeout", fc.IdleTimeout, &cfg.IdleTimeout); err != nil {
		return err
	}
	if err := s.setDuration("acquire-timeout", fc.AcquireTimeout, &cfg.AcquireTimeout); err != nil {
		return err
	}
	if err := s.setDuration("invoke-timeout", fc.InvokeTimeout, &cfg.InvokeTimeout); err != nil {
		return err
	}

	s.setInt("max-sessions", fc.MaxSessions, &cfg.MaxSessions)
	s.setBool("watch-templates", fc.WatchTemplates, &cfg.WatchTemplates)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
