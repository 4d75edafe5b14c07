package app

import (
	"context"
	"reflect"

	"idlecraft/internal/config"
	"idlecraft/internal/task/scheduler"
	logx "idlecraft/pkg/logx"
)

// reloadLoop applies published configs to the live services. Storage and the
// catalog are bound at startup; changes to them only warn.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config, prev *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(ctx, prev, cfg)
			prev = cfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, cfg *config.Config) {
	changes, fields := config.SummarizeConfigChange(prev, cfg)
	if len(changes) == 0 {
		a.log.Debug("config published without effective changes")
		return
	}

	a.logs.Apply(mapLogConfig(cfg, a.opts.TUI))
	a.tickLog.SetRate(a.logs.SamplePerSec())

	if pc, err := mapProductionConfig(cfg); err == nil {
		a.prod.SetConfig(pc)
	} else {
		a.log.Warn("production config not applied", logx.Err(err))
	}
	if ec, err := mapTaskEngineConfig(cfg); err == nil {
		a.engine.Apply(ctx, ec)
	} else {
		a.log.Warn("task engine config not applied", logx.Err(err))
	}

	a.sched.Apply(scheduler.Config{Timezone: cfg.Scheduler.Timezone})
	if err := a.registerSchedules(cfg); err != nil {
		a.log.Warn("schedules not updated", logx.Err(err))
	}
	a.http.Reconfigure(ctx, mapHTTPConfig(cfg))

	if !reflect.DeepEqual(prev.Storage, cfg.Storage) {
		a.log.Warn("storage changes need a restart")
	}
	if prev.Catalog != cfg.Catalog {
		a.log.Warn("catalog changes need a restart")
	}

	fields = append(fields, logx.Int("changes", len(changes)))
	a.log.Info("config applied", fields...)
}
