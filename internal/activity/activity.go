// Package activity resolves gathering activities into tick specs.
//
// Resolvers are pure: the same state and catalog give the same Spec. A
// resolver only reads the level and tool of its own skill.
package activity

import (
	"time"

	"idlecraft/internal/catalog"
	"idlecraft/internal/game"
)

// Spec is everything an auto-run needs to tick.
type Spec struct {
	Skill    catalog.Skill
	Resource string
	Drop     string
	XPPer    float64
	Tick     time.Duration
	Level    int // player level used for Tick
	MinLevel int // resource requirement
}

// SpeedMultiplier is the per-level speed scaling shared by manual actions
// and auto-runs.
func SpeedMultiplier(level int) float64 {
	if level < 1 {
		level = 1
	}
	return 1 + 0.03*float64(level-1)
}

// Scale divides base by tool and level speed, floored at min.
func Scale(base time.Duration, tool float64, level int, min time.Duration) time.Duration {
	if tool <= 0 {
		tool = 1
	}
	d := time.Duration(float64(base) / (tool * SpeedMultiplier(level)))
	if d < min {
		return min
	}
	return d
}

// ResolveFunc resolves one skill's resource for the given state.
type ResolveFunc func(st *game.State, resource string) (Spec, bool)

// Resolvers is the registry of gathering resolvers keyed by skill.
type Resolvers struct {
	cat     *catalog.Catalog
	minTick time.Duration
	by      map[catalog.Skill]ResolveFunc
}

func NewResolvers(cat *catalog.Catalog, minTick time.Duration) *Resolvers {
	r := &Resolvers{cat: cat, minTick: minTick, by: map[catalog.Skill]ResolveFunc{}}
	for _, sk := range []catalog.Skill{catalog.Forestry, catalog.Fishing, catalog.Mining} {
		r.by[sk] = r.gathering(sk)
	}
	return r
}

// SetMinTick updates the tick floor (config reload).
func (r *Resolvers) SetMinTick(d time.Duration) {
	if d > 0 {
		r.minTick = d
	}
}

// Register installs or replaces the resolver for skill.
func (r *Resolvers) Register(skill catalog.Skill, fn ResolveFunc) {
	if fn == nil {
		delete(r.by, skill)
		return
	}
	r.by[skill] = fn
}

// Resolve returns ok=false for an unregistered skill or unknown resource.
func (r *Resolvers) Resolve(st *game.State, skill catalog.Skill, resource string) (Spec, bool) {
	fn, ok := r.by[skill]
	if !ok || st == nil {
		return Spec{}, false
	}
	return fn(st, resource)
}

func (r *Resolvers) gathering(skill catalog.Skill) ResolveFunc {
	return func(st *game.State, resource string) (Spec, bool) {
		res, ok := r.cat.Resource(skill, resource)
		if !ok || res.Drop == "" {
			return Spec{}, false
		}
		level := st.Level(skill)
		return Spec{
			Skill:    skill,
			Resource: res.ID,
			Drop:     res.Drop,
			XPPer:    res.XP,
			Tick:     Scale(res.Base, st.ToolSpeed(r.cat, skill), level, r.minTick),
			Level:    level,
			MinLevel: res.Level,
		}, true
	}
}
