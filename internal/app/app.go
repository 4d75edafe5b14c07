package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"idlecraft/internal/catalog"
	"idlecraft/internal/clock"
	"idlecraft/internal/config"
	"idlecraft/internal/eventbus"
	"idlecraft/internal/game"
	"idlecraft/internal/production"
	rtsup "idlecraft/internal/runtime/supervisor"
	"idlecraft/internal/storage"
	"idlecraft/internal/task/engine"
	"idlecraft/internal/task/scheduler"
	"idlecraft/internal/transport/console"
	"idlecraft/internal/transport/httpapi"
	"idlecraft/internal/tui"
	logx "idlecraft/pkg/logx"
)

// Options select the front end. The zero value runs headless.
type Options struct {
	// TUI runs the terminal UI instead of the line console.
	TUI bool
	// In and Out are the console streams. A nil In leaves the console idle.
	In  io.Reader
	Out io.Writer
	// Clock overrides the wall clock (tests).
	Clock clock.Clock
}

type App struct {
	opts    Options
	cfgm    *config.ConfigManager
	sup     *rtsup.Supervisor
	session string

	log     logx.Logger
	logs    *logx.Service
	tickLog *logx.Sampler
	bus     eventbus.Bus
	store   storage.Store

	prod   *production.Service
	engine *engine.Service
	sched  *scheduler.Service
	http   *httpapi.Service
	con    *console.Console
	lines  *tui.LineSink
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateRuntime(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg, opts.TUI))
	a := &App{
		opts:    opts,
		cfgm:    cfgm,
		session: uuid.NewString(),
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		tickLog: logx.NewSampler(log.With(logx.String("comp", "autorun")), logSvc.SamplePerSec()),
		bus:     eventbus.New(),
	}
	cfgm.SetLogger(log)

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, a.session, log)
		if err != nil {
			return nil, err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("session", a.session))
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		a.closeStore()
		return nil, err
	}
	prodCfg, err := mapProductionConfig(cfg)
	if err != nil {
		a.closeStore()
		return nil, err
	}
	saved, err := a.loadSave(cfg.SaveSlot())
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.prod, err = production.New(production.Options{
		Catalog:   cat,
		Clock:     opts.Clock,
		Bus:       a.bus,
		Log:       log,
		TickLog:   a.tickLog,
		Config:    prodCfg,
		State:     saved,
		OnSettled: a.onSettled,
	})
	if err != nil {
		a.closeStore()
		return nil, err
	}

	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.engine = engine.New(engCfg, log, a.bus)
	a.sched = scheduler.New(scheduler.Config{Timezone: cfg.Scheduler.Timezone}, a.engine, log)
	a.http = httpapi.New(httpapi.Options{Production: a.prod, Save: a.SaveNow, Log: log})

	out := opts.Out
	if opts.TUI {
		a.lines = tui.NewLineSink(64)
		out = a.lines
	}
	a.con = console.New(console.Options{
		Production: a.prod,
		Save:       a.SaveNow,
		In:         opts.In,
		Out:        out,
		Log:        log,
	})
	return a, nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if p := strings.TrimSpace(cfg.Catalog.Path); p != "" {
		return catalog.Load(p)
	}
	return catalog.Default()
}

func (a *App) loadSave(slot string) (*game.State, error) {
	if a.store == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, ok, err := a.store.LoadSave(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("load save %q: %w", slot, err)
	}
	if !ok {
		a.log.Info("no save found, starting fresh", logx.String("slot", slot))
		return nil, nil
	}
	a.log.Info("save loaded", logx.String("slot", slot), logx.Uint64("job_seq", st.JobSeq))
	return st, nil
}

func (a *App) closeStore() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

func (a *App) Production() *production.Service { return a.prod }
func (a *App) Console() *console.Console       { return a.con }

// Done is closed when the app context is cancelled: a fatal error, the
// user quitting the TUI, or Stop.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return validateRuntime(c) })

	a.engine.Start(a.sup.Context())
	if err := a.registerSchedules(cfg); err != nil {
		return err
	}
	a.sched.Start(a.sup.Context())
	a.http.Reconfigure(a.sup.Context(), mapHTTPConfig(cfg))

	a.sup.Go("production.poll", a.prod.Run)

	if a.store != nil {
		events, unsub := a.bus.Subscribe(256)
		a.sup.Go0("journal", func(c context.Context) {
			defer unsub()
			a.journalLoop(c, events)
		})
	}

	if a.opts.TUI {
		events, unsub := a.bus.Subscribe(64)
		a.sup.Go0("tui", func(c context.Context) {
			defer unsub()
			err := tui.Run(c, tui.Options{Production: a.prod, Commands: a.con, Events: events, Lines: a.lines.C()})
			if err != nil {
				a.log.Error("tui exited", logx.Err(err))
			}
			// Quitting the UI ends the app.
			a.sup.Cancel()
		})
	} else {
		a.sup.Go("console", a.con.Run)
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub, cfg)
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch,
		rtsup.WithRestartBackoff(time.Second, 30*time.Second))

	a.log.Info("app started",
		logx.String("slot", cfg.SaveSlot()),
		logx.Bool("tui", a.opts.TUI),
		logx.Bool("http", cfg.HTTP.Enabled),
	)
	return nil
}

// registerSchedules (re)binds autosave and the daily backup to cfg.
func (a *App) registerSchedules(cfg *config.Config) error {
	if spec := cfg.AutosaveSpec(); spec != "" && a.store != nil {
		if err := a.sched.AddSchedule("autosave", spec, flushTimeout, a.flush); err != nil {
			return fmt.Errorf("save.autosave: %w", err)
		}
	} else {
		a.sched.Remove("autosave")
	}
	if at := strings.TrimSpace(cfg.Save.Backup); at != "" && a.store != nil {
		if err := a.sched.AddDaily("backup", at, flushTimeout, a.backup); err != nil {
			return fmt.Errorf("save.backup: %w", err)
		}
	} else {
		a.sched.Remove("backup")
	}
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		// Never started.
		a.closeStore()
		return nil
	}
	if reason == "" {
		reason = StopUnknown
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// step bounds one shutdown stage so a stuck component cannot stall the rest.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		if limit <= 0 {
			a.log.Warn("stop step skipped: deadline reached", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("http", 2*time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	if a.store != nil && reason != StopFatalError {
		step("save", 3*time.Second, a.SaveNow)
	}
	step("taskengine", 2*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
