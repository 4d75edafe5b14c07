package autorun

import (
	"time"

	"idlecraft/internal/catalog"
	"idlecraft/internal/game"
)

// AFKWindow is the run length including external extensions.
func (e *Engine) AFKWindow(st *game.State) time.Duration {
	d := e.cfg.AFKWindow
	if st.Bonuses.AFKExtend > 0 {
		d += st.Bonuses.AFKExtend
	}
	return d
}

// StartAFK starts an AFK run, replacing any live one. The replaced run's
// partially elapsed tick is forfeited. Refused for unresolvable targets or
// when the player is below the resource's level; a refused start leaves the
// current run alone.
func (e *Engine) StartAFK(st *game.State, skill catalog.Skill, resource string, now time.Time) ([]Step, bool) {
	spec, ok := e.res.Resolve(st, skill, resource)
	if !ok || spec.Level < spec.MinLevel {
		return nil, false
	}
	var steps []Step
	if old, ok := e.StopAFK(st, now); ok {
		steps = append(steps, old)
	}
	r := newRun(string(skill)+":"+resource, spec, now, e.AFKWindow(st))
	st.AFK = r
	steps = append(steps, Step{Kind: StepStarted, Source: SourceAFK, RunID: r.ID, At: now})
	return drain(st, SourceAFK, r, now, steps), true
}

func (e *Engine) StopAFK(st *game.State, now time.Time) (Step, bool) {
	r := st.AFK
	if r == nil {
		return Step{}, false
	}
	st.AFK = nil
	return Step{Kind: StepCancelled, Source: SourceAFK, RunID: r.ID, At: now, Ticks: r.Ticks}, true
}
