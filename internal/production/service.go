// Package production is the scheduler facade. Service owns the game state
// and the one mutex that serializes every mutation of it: transport calls,
// deferred action completions and the auto-run poll all go through here.
package production

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"idlecraft/internal/activity"
	"idlecraft/internal/catalog"
	"idlecraft/internal/clock"
	"idlecraft/internal/eventbus"
	"idlecraft/internal/game"
	"idlecraft/internal/task/action"
	"idlecraft/internal/task/autorun"
	"idlecraft/internal/task/bonus"
	logx "idlecraft/pkg/logx"
)

var (
	ErrBusy      = action.ErrBusy
	ErrLevel     = action.ErrLevel
	ErrMaterials = action.ErrMaterials
	ErrUnknown   = action.ErrUnknown

	ErrNotGathering = errors.New("not a gathering skill")
	ErrNotEquipped  = errors.New("nothing equipped")
)

type Config struct {
	PollInterval    time.Duration
	MinAction       time.Duration
	MinTick         time.Duration
	TomeCancelGrace time.Duration
	AFKWindow       time.Duration
	AutoCookWindow  time.Duration
	AutoCookEvery   time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    250 * time.Millisecond,
		MinAction:       200 * time.Millisecond,
		MinTick:         100 * time.Millisecond,
		TomeCancelGrace: 800 * time.Millisecond,
		AFKWindow:       30 * time.Second,
		AutoCookWindow:  10 * time.Second,
		AutoCookEvery:   1200 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MinAction <= 0 {
		c.MinAction = d.MinAction
	}
	if c.MinTick <= 0 {
		c.MinTick = d.MinTick
	}
	if c.TomeCancelGrace <= 0 {
		c.TomeCancelGrace = d.TomeCancelGrace
	}
	if c.AFKWindow <= 0 {
		c.AFKWindow = d.AFKWindow
	}
	if c.AutoCookWindow <= 0 {
		c.AutoCookWindow = d.AutoCookWindow
	}
	if c.AutoCookEvery <= 0 {
		c.AutoCookEvery = d.AutoCookEvery
	}
	return c
}

type Options struct {
	Catalog *catalog.Catalog
	Clock   clock.Clock
	Bus     eventbus.Bus
	Log     logx.Logger
	// TickLog receives per-tick debug lines. Optional.
	TickLog *logx.Sampler
	Config  Config
	// State to start from; a fresh one when nil.
	State *game.State
	// OnSettled runs outside the lock after anything that should be
	// persisted: a finished action, an ended run, a closed window.
	OnSettled func(reason string)
}

type Service struct {
	mu sync.Mutex
	st *game.State

	cat   *catalog.Catalog
	clk   clock.Clock
	bus   eventbus.Bus
	log   logx.Logger
	ticks *logx.Sampler
	cfg   Config

	res  *activity.Resolvers
	slot *action.Slot
	runs *autorun.Engine
	cook *bonus.AutoCook

	done      map[uint64]func(*action.Result)
	onSettled func(string)
}

func New(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		return nil, errors.New("production: catalog required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.New()
	}
	cfg := opts.Config.withDefaults()
	st := opts.State
	if st == nil {
		st = game.New()
	} else {
		st = st.Clone()
		st.Normalize()
		st.DropLive()
	}
	res := activity.NewResolvers(opts.Catalog, cfg.MinTick)
	s := &Service{
		st:        st,
		cat:       opts.Catalog,
		clk:       opts.Clock,
		bus:       opts.Bus,
		log:       opts.Log.With(logx.String("comp", "production")),
		ticks:     opts.TickLog,
		cfg:       cfg,
		res:       res,
		slot:      action.NewSlot(opts.Catalog, opts.Clock, action.Config{MinDuration: cfg.MinAction}),
		runs:      autorun.New(opts.Catalog, res, autorun.Config{CancelGrace: cfg.TomeCancelGrace, AFKWindow: cfg.AFKWindow}),
		cook:      bonus.New(opts.Catalog, bonus.Config{Window: cfg.AutoCookWindow, Every: cfg.AutoCookEvery}),
		done:      map[uint64]func(*action.Result){},
		onSettled: opts.OnSettled,
	}
	return s, nil
}

func (s *Service) Catalog() *catalog.Catalog { return s.cat }

// SetRoll replaces the cooking outcome roller.
func (s *Service) SetRoll(fn func() float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.slot.Roll = fn
	}
}

// SetConfig applies engine tunables. Live runs keep their deadlines.
func (s *Service) SetConfig(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.res.SetMinTick(cfg.MinTick)
	s.slot.SetConfig(action.Config{MinDuration: cfg.MinAction})
	s.runs.SetConfig(autorun.Config{CancelGrace: cfg.TomeCancelGrace, AFKWindow: cfg.AFKWindow})
	s.cook.SetConfig(bonus.Config{Window: cfg.AutoCookWindow, Every: cfg.AutoCookEvery})
}

func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// CanStart reports whether Start would succeed without preempting anything.
func (s *Service) CanStart(kind catalog.Kind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot.CanStart(s.st, kind, id)
}

// Start is TryStart reduced to a bool.
func (s *Service) Start(kind catalog.Kind, id string, onDone func(*action.Result)) bool {
	return s.TryStart(kind, id, onDone) == nil
}

// TryStart validates level and materials, refuses a second action of the
// same kind, preempts a different-kind action and any AFK run, then claims
// the slot. onDone runs outside the lock with the finish result (nil when
// the grant was aborted). It is not called for cancelled actions.
func (s *Service) TryStart(kind catalog.Kind, id string, onDone func(*action.Result)) error {
	if _, ok := catalog.SkillOf(kind); !ok {
		return fmt.Errorf("%w: kind %q", ErrUnknown, kind)
	}
	var evs []eventbus.Event
	s.mu.Lock()
	now := s.clk.Now()
	if err := s.slot.CheckRecipe(s.st, kind, id); err != nil {
		s.mu.Unlock()
		return err
	}
	if a := s.st.Action; a != nil {
		if a.Type == kind {
			s.mu.Unlock()
			return ErrBusy
		}
		if tk, ok := s.slot.Cancel(s.st); ok {
			delete(s.done, tk.JobID)
			evs = append(evs, actionEvent(eventbus.ActionCancelled, now, tk, 0))
		}
	}
	if step, ok := s.runs.StopAFK(s.st, now); ok {
		evs = append(evs, stepEvent(step))
	}
	tk, err := s.slot.Start(s.st, kind, id, s.complete)
	if err != nil {
		// Unreachable after CheckRecipe with an empty slot.
		s.mu.Unlock()
		s.emit(evs)
		return err
	}
	if onDone != nil {
		s.done[tk.JobID] = onDone
	}
	d := s.st.Action.Duration
	s.mu.Unlock()

	evs = append(evs, actionEvent(eventbus.ActionStarted, now, tk, d))
	s.emit(evs)
	s.log.Info("action started",
		logx.String("kind", string(kind)),
		logx.String("id", id),
		logx.Uint64("job", tk.JobID),
		logx.Duration("duration", d),
	)
	return nil
}

// Cancel clears the live action. No refund: nothing was reserved.
func (s *Service) Cancel() bool {
	s.mu.Lock()
	now := s.clk.Now()
	tk, ok := s.slot.Cancel(s.st)
	if ok {
		delete(s.done, tk.JobID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.emit([]eventbus.Event{actionEvent(eventbus.ActionCancelled, now, tk, 0)})
	s.log.Info("action cancelled", logx.String("kind", string(tk.Type)), logx.String("id", tk.Key), logx.Uint64("job", tk.JobID))
	return true
}

// complete is the deferred completion armed by Start.
func (s *Service) complete(tk action.Ticket) {
	s.mu.Lock()
	now := s.clk.Now()
	res, stale := s.slot.Complete(s.st, tk)
	if stale {
		s.mu.Unlock()
		s.emit([]eventbus.Event{actionEvent(eventbus.ActionStale, now, tk, 0)})
		s.log.Debug("stale completion ignored", logx.String("kind", string(tk.Type)), logx.Uint64("job", tk.JobID))
		return
	}
	cb := s.done[tk.JobID]
	delete(s.done, tk.JobID)

	var evs []eventbus.Event
	if res == nil {
		evs = append(evs, actionEvent(eventbus.ActionAborted, now, tk, 0))
	} else {
		e := actionEvent(eventbus.ActionFinished, now, tk, 0)
		d := e.Data.(eventbus.ActionData)
		d.Outcome, d.XP = string(res.Outcome), res.XP
		e.Data = d
		evs = append(evs, e)
		if res.Outcome == action.OutcomePerfect {
			evs = append(evs, s.cookEvents(s.cook.Poll(s.st, now), now)...)
			if s.cook.Open(s.st, res.Raw, now) {
				w := s.st.AutoCook
				evs = append(evs, eventbus.Event{Type: eventbus.AutoCookOpened, Time: now, Data: eventbus.CookData{Raw: w.Locked, Until: w.Until}})
			}
		}
	}
	s.mu.Unlock()

	s.emit(evs)
	if res == nil {
		s.log.Warn("action aborted: inputs gone at finish", logx.String("kind", string(tk.Type)), logx.String("id", tk.Key), logx.Uint64("job", tk.JobID))
	} else {
		s.log.Info("action finished",
			logx.String("kind", string(tk.Type)),
			logx.String("id", tk.Key),
			logx.Uint64("job", tk.JobID),
			logx.String("outcome", string(res.Outcome)),
			logx.Float64("xp", res.XP),
		)
	}
	if cb != nil {
		cb(res)
	}
	s.settled("action")
}

// Progress is the live action's completion fraction in [0,1]; 0 when idle.
func (s *Service) Progress() float64 {
	return s.ProgressAt(s.clk.Now())
}

func (s *Service) ProgressAt(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress(s.st.Action, now)
}

func progress(a *game.ActionSlot, now time.Time) float64 {
	if a == nil || a.Duration <= 0 {
		return 0
	}
	f := float64(now.Sub(a.StartedAt)) / float64(a.Duration)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Poll advances auto-runs and the auto-cook window to now.
func (s *Service) Poll() {
	s.mu.Lock()
	now := s.clk.Now()
	steps := s.runs.Poll(s.st, now)
	rep := s.cook.Poll(s.st, now)
	s.mu.Unlock()

	evs := make([]eventbus.Event, 0, len(steps)+2)
	settle := false
	for _, step := range steps {
		evs = append(evs, stepEvent(step))
		switch step.Kind {
		case autorun.StepTick:
			s.ticks.Debug("tick", logx.String("source", string(step.Source)), logx.String("drop", step.Drop), logx.Int("n", step.Ticks))
		case autorun.StepEnded:
			settle = true
			s.log.Info("run ended", logx.String("source", string(step.Source)), logx.String("run", step.RunID), logx.Int("ticks", step.Ticks), logx.Int("charges", step.Charges))
		case autorun.StepStarted, autorun.StepChained:
			s.log.Info("run "+string(step.Kind), logx.String("source", string(step.Source)), logx.String("run", step.RunID), logx.Int("charges", step.Charges))
		}
	}
	evs = append(evs, s.cookEvents(rep, now)...)
	if rep.Closed {
		settle = true
		s.log.Info("auto-cook closed", logx.String("raw", rep.Window.Locked), logx.Int("cooked", rep.Window.Cooked))
	}
	s.emit(evs)
	if settle {
		s.settled("autorun")
	}
}

// Run polls every PollInterval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	t := time.NewTimer(s.Config().PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Poll()
			t.Reset(s.Config().PollInterval)
		}
	}
}

func (s *Service) settled(reason string) {
	if s.onSettled != nil {
		s.onSettled(reason)
	}
}

func (s *Service) emit(evs []eventbus.Event) {
	for _, e := range evs {
		s.bus.Publish(e)
	}
}
