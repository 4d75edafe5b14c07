package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// EngineDurations is EngineConfig parsed. Zero fields mean "use the default".
type EngineDurations struct {
	PollInterval    time.Duration
	MinAction       time.Duration
	MinTick         time.Duration
	TomeCancelGrace time.Duration
	AFKWindow       time.Duration
	AutoCookWindow  time.Duration
	AutoCookEvery   time.Duration
}

func (e EngineConfig) Durations() (EngineDurations, error) {
	var out EngineDurations
	fields := []struct {
		path string
		raw  string
		dst  *time.Duration
	}{
		{"engine.poll_interval", e.PollInterval, &out.PollInterval},
		{"engine.min_action", e.MinAction, &out.MinAction},
		{"engine.min_tick", e.MinTick, &out.MinTick},
		{"engine.tome_cancel_grace", e.TomeCancelGrace, &out.TomeCancelGrace},
		{"engine.afk_window", e.AFKWindow, &out.AFKWindow},
		{"engine.autocook_window", e.AutoCookWindow, &out.AutoCookWindow},
		{"engine.autocook_every", e.AutoCookEvery, &out.AutoCookEvery},
	}
	var errs []error
	for _, f := range fields {
		d, err := ParseDurationField(f.path, f.raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f.dst = d
	}
	return out, errors.Join(errs...)
}
