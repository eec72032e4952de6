package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported values for Config.Driver and Config.Extractor.
const (
	DriverLoopback = "loopback"

	ExtractorStructural = "structural"
	ExtractorTextual    = "textual"
)

// DefaultAddress is the host address used by the loopback driver.
const DefaultAddress = "loopback"

// Config holds CLI configuration for hostcall.
type Config struct {
	Driver      string
	Address     string
	User        string
	PasswordB64 string

	// Libraries is the library list applied to every new session.
	Libraries []string

	MaxSessions    int
	IdleTimeout    time.Duration
	AcquireTimeout time.Duration
	InvokeTimeout  time.Duration

	TemplateDir    string
	WatchTemplates bool
	Extractor      string

	LogLevel    string
	MetricsAddr string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Driver:         DriverLoopback,
		Address:        DefaultAddress,
		MaxSessions:    4,
		IdleTimeout:    5 * time.Minute,
		AcquireTimeout: 30 * time.Second,
		InvokeTimeout:  60 * time.Second,
		TemplateDir:    "templates",
		Extractor:      ExtractorStructural,
		LogLevel:       "info",
		PasswordB64:    os.Getenv("HOSTCALL_PASSWORD_B64"),
	}
}

// Validate checks the configuration for errors and normalizes values.
// Driver names other than DriverLoopback are accepted; they name a driver
// supplied by the caller and are checked when the dialer is chosen.
func (c *Config) Validate() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DriverLoopback
	}

	c.Address = strings.TrimSpace(c.Address)
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}

	if c.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout must not be negative")
	}
	if c.AcquireTimeout <= 0 {
		return fmt.Errorf("acquire timeout must be positive")
	}
	if c.InvokeTimeout <= 0 {
		return fmt.Errorf("invoke timeout must be positive")
	}

	if c.TemplateDir == "" {
		return fmt.Errorf("template-dir is required")
	}

	c.Extractor = strings.ToLower(strings.TrimSpace(c.Extractor))
	switch c.Extractor {
	case "":
		c.Extractor = ExtractorStructural
	case ExtractorStructural, ExtractorTextual:
	default:
		return fmt.Errorf("unknown extractor %q (want %s or %s)", c.Extractor, ExtractorStructural, ExtractorTextual)
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// SplitList splits a library list given as "A,B" or "A B".
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
