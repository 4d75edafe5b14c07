// Package action implements the single foreground action slot and its job
// sequencer.
//
// Start writes the slot and arms a deferred completion carrying a Ticket.
// When the completion fires, Complete only finishes the action if the live
// slot still matches the ticket's type, key and job id; anything else is a
// stale firing and is ignored.
package action

import (
	"errors"
	"math/rand/v2"
	"time"

	"idlecraft/internal/activity"
	"idlecraft/internal/catalog"
	"idlecraft/internal/clock"
	"idlecraft/internal/game"
)

var (
	ErrBusy      = errors.New("action already running")
	ErrLevel     = errors.New("level too low")
	ErrMaterials = errors.New("missing materials")
	ErrUnknown   = errors.New("unknown recipe")
)

type Outcome string

const (
	OutcomeNormal  Outcome = "normal"
	OutcomeBurnt   Outcome = "burnt"
	OutcomePerfect Outcome = "perfect"
)

// Ticket identifies one started action.
type Ticket struct {
	Type  catalog.Kind
	Key   string
	JobID uint64
}

func (t Ticket) matches(a *game.ActionSlot) bool {
	return a != nil && a.Type == t.Type && a.Key == t.Key && a.JobID == t.JobID
}

type Result struct {
	Ticket
	Outcome Outcome
	Outputs []catalog.Stack
	Skill   catalog.Skill
	XP      float64
	Level   int
	// Raw is the consumed primary input (auto-cook lock on a perfect cook).
	Raw string
}

// NextJobID bumps and returns the persisted job sequence.
func NextJobID(st *game.State) uint64 {
	st.JobSeq++
	return st.JobSeq
}

type Config struct {
	MinDuration time.Duration
}

// Slot runs the start/finish protocol against a State it does not own.
type Slot struct {
	cat *catalog.Catalog
	clk clock.Clock
	cfg Config

	// Roll returns a uniform float in [0,1). Replaced in tests.
	Roll func() float64

	timer clock.Timer
	armed Ticket
}

func NewSlot(cat *catalog.Catalog, clk clock.Clock, cfg Config) *Slot {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 200 * time.Millisecond
	}
	return &Slot{cat: cat, clk: clk, cfg: cfg, Roll: rand.Float64}
}

func (s *Slot) SetConfig(cfg Config) {
	if cfg.MinDuration > 0 {
		s.cfg.MinDuration = cfg.MinDuration
	}
}

// Check explains why CanStart would be false; nil means startable.
func (s *Slot) Check(st *game.State, kind catalog.Kind, id string) error {
	if st.Action != nil {
		return ErrBusy
	}
	return s.CheckRecipe(st, kind, id)
}

// CheckRecipe is Check without the busy test.
func (s *Slot) CheckRecipe(st *game.State, kind catalog.Kind, id string) error {
	r, ok := s.cat.Recipe(kind, id)
	if !ok {
		return ErrUnknown
	}
	skill, _ := catalog.SkillOf(kind)
	if st.Level(skill) < r.Level {
		return ErrLevel
	}
	if !st.Inventory.Has(r.Inputs) {
		return ErrMaterials
	}
	return nil
}

func (s *Slot) CanStart(st *game.State, kind catalog.Kind, id string) bool {
	return s.Check(st, kind, id) == nil
}

// Duration is the action length at the player's current level and tool.
func (s *Slot) Duration(st *game.State, r catalog.Recipe) time.Duration {
	skill, _ := catalog.SkillOf(r.Kind)
	return activity.Scale(r.Base, st.ToolSpeed(s.cat, skill), st.Level(skill), s.cfg.MinDuration)
}

// Start claims the slot and arms fire to run after the action's duration.
// On failure nothing in st changes.
func (s *Slot) Start(st *game.State, kind catalog.Kind, id string, fire func(Ticket)) (Ticket, error) {
	if err := s.Check(st, kind, id); err != nil {
		return Ticket{}, err
	}
	r, _ := s.cat.Recipe(kind, id)
	now := s.clk.Now()
	d := s.Duration(st, r)
	tk := Ticket{Type: kind, Key: id, JobID: NextJobID(st)}
	st.Action = &game.ActionSlot{
		Type:      kind,
		Key:       id,
		StartedAt: now,
		Duration:  d,
		EndsAt:    now.Add(d),
		JobID:     tk.JobID,
	}
	s.armed = tk
	s.timer = s.clk.AfterFunc(d, func() { fire(tk) })
	return tk, nil
}

// Cancel clears the slot. Nothing was reserved at start, so nothing is
// refunded.
func (s *Slot) Cancel(st *game.State) (Ticket, bool) {
	a := st.Action
	if a == nil {
		return Ticket{}, false
	}
	tk := Ticket{Type: a.Type, Key: a.Key, JobID: a.JobID}
	st.Action = nil
	s.disarm(tk)
	return tk, true
}

func (s *Slot) disarm(tk Ticket) {
	if s.timer != nil && s.armed == tk {
		s.timer.Stop()
		s.timer = nil
	}
}

// Stale reports whether tk no longer names the live slot.
func Stale(st *game.State, tk Ticket) bool {
	return !tk.matches(st.Action)
}

// Complete is the deferred completion: it finishes the action if tk still
// names the live slot. stale is true when the firing was ignored.
func (s *Slot) Complete(st *game.State, tk Ticket) (res *Result, stale bool) {
	if Stale(st, tk) {
		return nil, true
	}
	if s.armed == tk {
		s.timer = nil
	}
	return s.Finish(st), false
}

// Finish re-checks affordability, grants on success and always clears the
// slot. A nil Result means the grant was aborted.
func (s *Slot) Finish(st *game.State) *Result {
	a := st.Action
	if a == nil {
		return nil
	}
	st.Action = nil
	tk := Ticket{Type: a.Type, Key: a.Key, JobID: a.JobID}
	s.disarm(tk)

	r, ok := s.cat.Recipe(a.Type, a.Key)
	if !ok || !st.Inventory.RemoveAll(r.Inputs) {
		return nil
	}
	skill, _ := catalog.SkillOf(a.Type)
	level := st.Level(skill)
	res := &Result{Ticket: tk, Outcome: OutcomeNormal, Skill: skill, Level: level, Raw: r.Raw()}

	if a.Type == catalog.Cook {
		res.Outcome = s.rollCook(level, r.Level)
	}
	switch res.Outcome {
	case OutcomeBurnt:
		res.Outputs = []catalog.Stack{{Item: r.Burnt, Qty: 1}}
	default:
		res.Outputs = append([]catalog.Stack(nil), r.Outputs...)
		res.XP = r.XP
	}
	st.Inventory.AddAll(res.Outputs)
	st.AddXP(skill, res.XP)
	return res
}

// BurnChance and PerfectChance use the level margin over the requirement.
func BurnChance(level, req int) float64 {
	p := 0.30 - 0.02*float64(level-req)
	if p < 0 {
		return 0
	}
	return p
}

func PerfectChance(level, req int) float64 {
	p := 0.05 + 0.01*float64(level-req)
	if p > 0.35 {
		return 0.35
	}
	if p < 0 {
		return 0
	}
	return p
}

func (s *Slot) rollCook(level, req int) Outcome {
	roll := s.Roll()
	burn := BurnChance(level, req)
	if roll < burn {
		return OutcomeBurnt
	}
	if roll < burn+PerfectChance(level, req) {
		return OutcomePerfect
	}
	return OutcomeNormal
}
