package autorun

import (
	"time"

	"idlecraft/internal/catalog"
	"idlecraft/internal/game"
)

// TomeDuration interpolates between the tome's min and max by enchanting
// level / 99, clamped to [0,1].
func TomeDuration(t catalog.Tome, enchLevel int) time.Duration {
	f := float64(enchLevel) / float64(game.MaxLevel)
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return t.Min + time.Duration(float64(t.Max-t.Min)*f)
}

// StartTome arms a run for the equipped tome. Refused when a run is live,
// nothing is equipped, or the tome's resource does not resolve.
func (e *Engine) StartTome(st *game.State, now time.Time) ([]Step, bool) {
	if st.Tome != nil {
		return nil, false
	}
	r, ok := e.tomeRun(st, now)
	if !ok {
		return nil, false
	}
	st.Tome = r
	steps := []Step{{Kind: StepStarted, Source: SourceTome, RunID: r.ID, At: now, Charges: st.Equipment.Tome.Qty}}
	return drain(st, SourceTome, r, now, steps), true
}

func (e *Engine) tomeRun(st *game.State, now time.Time) (*game.AutoRun, bool) {
	slot := st.Equipment.Tome
	if slot == nil || slot.Qty < 1 {
		return nil, false
	}
	def, ok := e.cat.Tome(slot.Item)
	if !ok {
		return nil, false
	}
	spec, ok := e.res.Resolve(st, def.Skill, def.Resource)
	if !ok {
		return nil, false
	}
	return newRun(def.ID, spec, now, TomeDuration(def, st.Level(catalog.Enchanting))), true
}

// onTomeEnd is the end-of-run transition: spend one charge, then chain a
// fresh run while charges remain or clear the equip slot.
func (e *Engine) onTomeEnd(st *game.State, now time.Time, steps []Step) []Step {
	r := st.Tome
	st.Tome = nil
	slot := st.Equipment.Tome
	left := 0
	if slot != nil && slot.Item == r.ID {
		slot.Qty--
		left = slot.Qty
		if slot.Qty <= 0 {
			st.Equipment.Tome = nil
		}
	}
	steps = append(steps, Step{Kind: StepEnded, Source: SourceTome, RunID: r.ID, At: now, Ticks: r.Ticks, Charges: left})
	if left < 1 {
		return steps
	}
	next, ok := e.tomeRun(st, now)
	if !ok {
		return steps
	}
	st.Tome = next
	steps = append(steps, Step{Kind: StepChained, Source: SourceTome, RunID: next.ID, At: now, Charges: left})
	return drain(st, SourceTome, next, now, steps)
}

// CancelTome clears the run without refunding the charge and suppresses
// auto-start for the cancel grace period.
func (e *Engine) CancelTome(st *game.State, now time.Time) (Step, bool) {
	r := st.Tome
	if r == nil {
		return Step{}, false
	}
	st.Tome = nil
	st.TomeSuppressUntil = now.Add(e.cfg.CancelGrace)
	return Step{Kind: StepCancelled, Source: SourceTome, RunID: r.ID, At: now, Ticks: r.Ticks}, true
}

// EnsureTome starts a run when a tome is equipped, none is live and the
// suppression window has passed.
func (e *Engine) EnsureTome(st *game.State, now time.Time) []Step {
	return e.ensureTome(st, now, nil)
}

func (e *Engine) ensureTome(st *game.State, now time.Time, steps []Step) []Step {
	if st.Tome != nil || st.Equipment.Tome == nil || now.Before(st.TomeSuppressUntil) {
		return steps
	}
	started, ok := e.StartTome(st, now)
	if !ok {
		return steps
	}
	return append(steps, started...)
}
