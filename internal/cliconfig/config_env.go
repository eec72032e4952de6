package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (HOSTCALL_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("driver", os.Getenv("HOSTCALL_DRIVER"), &cfg.Driver)
	s.setString("address", os.Getenv("HOSTCALL_ADDRESS"), &cfg.Address)
	s.setString("user", os.Getenv("HOSTCALL_USER"), &cfg.User)
	s.setString("password-b64", os.Getenv("HOSTCALL_PASSWORD_B64"), &cfg.PasswordB64)
	s.setString("template-dir", os.Getenv("HOSTCALL_TEMPLATE_DIR"), &cfg.TemplateDir)
	s.setString("extractor", os.Getenv("HOSTCALL_EXTRACTOR"), &cfg.Extractor)
	s.setString("log-level", os.Getenv("HOSTCALL_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", os.Getenv("HOSTCALL_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setStrings("libl", SplitList(os.Getenv("HOSTCALL_LIBRARIES")), &cfg.Libraries)

	if err := s.setDuration("idle-timeout", os.Getenv("HOSTCALL_IDLE_TIMEOUT"), &cfg.IdleTimeout); err != nil {
		return err
	}
	if err := s.setDuration("acquire-timeout", os.Getenv("HOSTCALL_ACQUIRE_TIMEOUT"), &cfg.AcquireTimeout); err != nil {
		return err
	}
	if err := s.setDuration("invoke-timeout", os.Getenv("HOSTCALL_INVOKE_TIMEOUT"), &cfg.InvokeTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("max-sessions", os.Getenv("HOSTCALL_MAX_SESSIONS"), &cfg.MaxSessions); err != nil {
		return err
	}

	s.setBoolFromString("watch-templates", os.Getenv("HOSTCALL_WATCH_TEMPLATES"), &cfg.WatchTemplates)

	return nil
}
