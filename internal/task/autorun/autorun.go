// Package autorun drives background gathering runs: the tome run, bound to
// the equipped tome stack, and the AFK run, bound to an explicit skill and
// resource selection.
//
// Runs are polled. Each poll drains every tick whose scheduled time has
// passed and lies before the run's end, in order, so irregular poll timing
// neither loses nor duplicates ticks. A run's first tick is due at its start.
package autorun

import (
	"time"

	"idlecraft/internal/activity"
	"idlecraft/internal/catalog"
	"idlecraft/internal/game"
)

// Source tells the two runs apart.
type Source string

const (
	SourceTome Source = "tome"
	SourceAFK  Source = "afk"
)

type StepKind string

const (
	StepStarted   StepKind = "started"
	StepTick      StepKind = "tick"
	StepEnded     StepKind = "ended"
	StepChained   StepKind = "chained"
	StepCancelled StepKind = "cancelled"
)

// Step is one observable transition, reported for events and logging.
type Step struct {
	Kind   StepKind
	Source Source
	RunID  string
	At     time.Time
	Drop   string
	XP     float64
	Ticks  int // run tick count after this step
	// Charges left on the tome stack (tome steps only).
	Charges int
}

type Config struct {
	CancelGrace time.Duration
	AFKWindow   time.Duration
}

func (c Config) withDefaults() Config {
	if c.CancelGrace <= 0 {
		c.CancelGrace = 800 * time.Millisecond
	}
	if c.AFKWindow <= 0 {
		c.AFKWindow = 30 * time.Second
	}
	return c
}

type Engine struct {
	cat *catalog.Catalog
	res *activity.Resolvers
	cfg Config
}

func New(cat *catalog.Catalog, res *activity.Resolvers, cfg Config) *Engine {
	return &Engine{cat: cat, res: res, cfg: cfg.withDefaults()}
}

func (e *Engine) SetConfig(cfg Config) { e.cfg = cfg.withDefaults() }

// Poll advances both runs to now. Order: tome ticks, tome end/chain,
// tome auto-start, AFK ticks, AFK end.
func (e *Engine) Poll(st *game.State, now time.Time) []Step {
	var steps []Step
	if st.Tome != nil {
		steps = drain(st, SourceTome, st.Tome, now, steps)
		if !now.Before(st.Tome.EndsAt) {
			steps = e.onTomeEnd(st, now, steps)
		}
	}
	steps = e.ensureTome(st, now, steps)

	if st.AFK != nil {
		steps = drain(st, SourceAFK, st.AFK, now, steps)
		if !now.Before(st.AFK.EndsAt) {
			r := st.AFK
			st.AFK = nil
			steps = append(steps, Step{Kind: StepEnded, Source: SourceAFK, RunID: r.ID, At: now, Ticks: r.Ticks})
		}
	}
	return steps
}

// drain awards every tick with NextTickAt <= now and NextTickAt < EndsAt.
func drain(st *game.State, src Source, r *game.AutoRun, now time.Time, steps []Step) []Step {
	if r.Tick <= 0 {
		return steps
	}
	for !r.NextTickAt.After(now) && r.NextTickAt.Before(r.EndsAt) {
		st.Inventory.Add(r.DropID, 1)
		st.AddXP(r.XPSkill, r.XPPer)
		r.Ticks++
		steps = append(steps, Step{
			Kind: StepTick, Source: src, RunID: r.ID, At: r.NextTickAt,
			Drop: r.DropID, XP: r.XPPer, Ticks: r.Ticks,
		})
		r.NextTickAt = r.NextTickAt.Add(r.Tick)
	}
	return steps
}

func newRun(id string, spec activity.Spec, now time.Time, d time.Duration) *game.AutoRun {
	return &game.AutoRun{
		ID:         id,
		Activity:   spec.Skill,
		XPSkill:    spec.Skill,
		SourceID:   spec.Resource,
		DropID:     spec.Drop,
		XPPer:      spec.XPPer,
		Tick:       spec.Tick,
		StartedAt:  now,
		EndsAt:     now.Add(d),
		NextTickAt: now,
	}
}
