// Package bonus implements the auto-cook window: a fixed deadline opened by
// a perfect manual cook and locked to that cook's raw input. It cooks one
// unit per interval until the deadline and never renews itself.
package bonus

import (
	"time"

	"idlecraft/internal/catalog"
	"idlecraft/internal/game"
)

type Config struct {
	Window time.Duration
	Every  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = 10 * time.Second
	}
	if c.Every <= 0 {
		c.Every = 1200 * time.Millisecond
	}
	return c
}

type Report struct {
	Cooked  int
	Skipped int
	Item    string
	XP      float64
	Closed  bool
	Window  game.Window // snapshot after this poll
}

type AutoCook struct {
	cat *catalog.Catalog
	cfg Config
}

func New(cat *catalog.Catalog, cfg Config) *AutoCook {
	return &AutoCook{cat: cat, cfg: cfg.withDefaults()}
}

func (a *AutoCook) SetConfig(cfg Config) { a.cfg = cfg.withDefaults() }

// Live reports whether a window is open at now.
func Live(st *game.State, now time.Time) bool {
	return st.AutoCook != nil && now.Before(st.AutoCook.Until)
}

// Open starts a window locked to raw. A live window is neither extended nor
// redirected. Callers settle a lapsed window with Poll first.
func (a *AutoCook) Open(st *game.State, raw string, now time.Time) bool {
	if Live(st, now) {
		return false
	}
	if _, ok := a.cat.CookByRaw(raw); !ok {
		return false
	}
	st.AutoCook = &game.Window{
		Until:      now.Add(a.cfg.Window),
		Locked:     raw,
		NextCookAt: now.Add(a.cfg.Every),
	}
	return true
}

// Poll cooks every unit due at or before now and before the deadline, then
// closes the window once now reaches it. Each unit pays the recipe's full
// inputs; a short unit is skipped. Auto-cooked units are always normal
// quality.
func (a *AutoCook) Poll(st *game.State, now time.Time) Report {
	w := st.AutoCook
	if w == nil {
		return Report{}
	}
	var rep Report
	r, ok := a.cat.CookByRaw(w.Locked)
	for ok && !w.NextCookAt.After(now) && w.NextCookAt.Before(w.Until) {
		if st.Inventory.RemoveAll(r.Inputs) {
			st.Inventory.AddAll(r.Outputs)
			st.AddXP(catalog.Cooking, r.XP)
			w.Cooked++
			rep.Cooked++
			rep.XP += r.XP
			rep.Item = r.Outputs[0].Item
		} else {
			rep.Skipped++
		}
		w.NextCookAt = w.NextCookAt.Add(a.cfg.Every)
	}
	rep.Window = *w
	if !ok || !now.Before(w.Until) {
		rep.Closed = true
		st.AutoCook = nil
	}
	return rep
}
