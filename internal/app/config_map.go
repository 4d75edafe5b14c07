package app

import (
	"fmt"
	"strings"
	"time"

	"idlecraft/internal/config"
	"idlecraft/internal/production"
	"idlecraft/internal/task/engine"
	"idlecraft/internal/task/scheduler"
	"idlecraft/internal/transport/httpapi"
	logx "idlecraft/pkg/logx"
)

// mapLogConfig builds the logx config. The TUI owns the terminal, so its
// logs go to a file.
func mapLogConfig(cfg *config.Config, tui bool) logx.Config {
	lc := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		SamplePerSec: cfg.Logging.SamplePerSec,
	}
	if tui {
		lc.Console = false
		if !lc.File.Enabled {
			lc.File = logx.FileConfig{Enabled: true, Path: "./idlecraft.log"}
		}
	}
	return lc
}

func mapProductionConfig(cfg *config.Config) (production.Config, error) {
	d, err := cfg.Engine.Durations()
	if err != nil {
		return production.Config{}, err
	}
	return production.Config{
		PollInterval:    d.PollInterval,
		MinAction:       d.MinAction,
		MinTick:         d.MinTick,
		TomeCancelGrace: d.TomeCancelGrace,
		AFKWindow:       d.AFKWindow,
		AutoCookWindow:  d.AutoCookWindow,
		AutoCookEvery:   d.AutoCookEvery,
	}, nil
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	out := engine.Config{
		Enabled:        cfg.TaskEngineEnabled(),
		Workers:        1,
		QueueSize:      64,
		DefaultTimeout: 10 * time.Second,
	}
	te := cfg.TaskEngine
	if te == nil {
		return out, nil
	}
	if te.Workers > 0 {
		out.Workers = te.Workers
	}
	if te.QueueSize > 0 {
		out.QueueSize = te.QueueSize
	}
	out.HistorySize = te.HistorySize
	out.RetryMax = te.RetryMax

	timeout, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	if timeout > 0 {
		out.DefaultTimeout = timeout
	}
	out.MaxQueueDelay, err = config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay)
	if err != nil {
		return engine.Config{}, err
	}
	return out, nil
}

func mapHTTPConfig(cfg *config.Config) httpapi.Config {
	return httpapi.Config{
		Enabled:      cfg.HTTP.Enabled,
		Addr:         cfg.HTTPAddr(),
		Token:        cfg.HTTP.Token,
		Pprof:        cfg.HTTP.Pprof,
		StartRate:    cfg.HTTP.StartRate,
		StartBurst:   cfg.HTTP.StartBurst,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  time.Minute,
	}
}

// validateRuntime is the reload validator: checks that need the service
// packages on top of config.Validate.
func validateRuntime(cfg *config.Config) error {
	if spec := cfg.AutosaveSpec(); spec != "" {
		if _, err := scheduler.ParseSchedule(spec); err != nil {
			return fmt.Errorf("save.autosave: %w", err)
		}
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapTaskEngineConfig(cfg); err != nil {
		return err
	}
	_, err := mapProductionConfig(cfg)
	return err
}
