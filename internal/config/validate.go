package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

var reSlot = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
var reDaily = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// Validate checks what can be checked without building services. Schedule
// strings are checked later by the scheduler.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if lvl := strings.ToLower(strings.TrimSpace(cfg.Logging.Level)); lvl != "" {
		switch lvl {
		case "trace", "debug", "info", "warn", "warning", "error":
		default:
			errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
		}
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path is required when file logging is enabled"))
	}
	if cfg.Logging.SamplePerSec < 0 {
		errs = append(errs, errors.New("logging.sample_per_sec must be >= 0"))
	}

	if s := cfg.Storage; s != nil {
		switch d := strings.ToLower(strings.TrimSpace(s.Driver)); d {
		case "", "none":
		case "file", "sqlite", "badger":
			if strings.TrimSpace(s.Path) == "" {
				errs = append(errs, fmt.Errorf("storage.path is required for driver %q", d))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	if slot := strings.TrimSpace(cfg.Save.Slot); slot != "" && !reSlot.MatchString(slot) {
		errs = append(errs, fmt.Errorf("save.slot: invalid slot %q", cfg.Save.Slot))
	}
	if b := strings.TrimSpace(cfg.Save.Backup); b != "" && !reDaily.MatchString(b) {
		errs = append(errs, fmt.Errorf("save.backup: expected HH:MM, got %q", cfg.Save.Backup))
	}

	if _, err := cfg.Engine.Durations(); err != nil {
		errs = append(errs, err)
	}

	if te := cfg.TaskEngine; te != nil {
		if te.Workers < 0 || te.QueueSize < 0 || te.HistorySize < 0 || te.RetryMax < 0 {
			errs = append(errs, errors.New("task_engine: counts must be >= 0"))
		}
		if _, err := ParseDurationField("task_engine.default_timeout", te.DefaultTimeout); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.HTTP.Enabled {
		if addr := strings.TrimSpace(cfg.HTTP.Addr); addr != "" {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				errs = append(errs, fmt.Errorf("http.addr: %w", err))
			}
		}
		if cfg.HTTP.StartRate < 0 || cfg.HTTP.StartBurst < 0 {
			errs = append(errs, errors.New("http: start_rate and start_burst must be >= 0"))
		}
	}
	return errors.Join(errs...)
}

// SaveSlot returns the configured slot or "main".
func (c *Config) SaveSlot() string {
	if s := strings.TrimSpace(c.Save.Slot); s != "" {
		return s
	}
	return "main"
}

// AutosaveSpec returns the autosave schedule, "" when disabled.
func (c *Config) AutosaveSpec() string {
	switch s := strings.TrimSpace(c.Save.Autosave); strings.ToLower(s) {
	case "":
		return "@every 30s"
	case "off", "none", "disabled":
		return ""
	default:
		return s
	}
}

// TaskEngineEnabled defaults to true when the section or key is omitted.
func (c *Config) TaskEngineEnabled() bool {
	if c.TaskEngine == nil || c.TaskEngine.Enabled == nil {
		return true
	}
	return *c.TaskEngine.Enabled
}

func (c *Config) HTTPAddr() string {
	if a := strings.TrimSpace(c.HTTP.Addr); a != "" {
		return a
	}
	return "127.0.0.1:8088"
}
