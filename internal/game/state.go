// Package game holds the explicit game state handed to every scheduler
// function: inventory, skill XP, equipment, bonuses and the persisted
// scheduler fields (live action, auto-runs, bonus window, job sequence).
//
// State is not safe for concurrent use; production.Service guards it.
package game

import (
	"time"

	"idlecraft/internal/catalog"
)

// ActionSlot is the single live foreground action.
type ActionSlot struct {
	Type      catalog.Kind  `json:"type"`
	Key       string        `json:"key"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	EndsAt    time.Time     `json:"ends_at"`
	JobID     uint64        `json:"job_id"`
	Payload   string        `json:"payload,omitempty"`
}

// AutoRun is a self-ticking background run (tome or AFK).
type AutoRun struct {
	ID         string        `json:"id"`
	Activity   catalog.Skill `json:"activity"`
	XPSkill    catalog.Skill `json:"xp_skill"`
	SourceID   string        `json:"source_id"`
	DropID     string        `json:"drop_id"`
	XPPer      float64       `json:"xp_per"`
	Tick       time.Duration `json:"tick"`
	StartedAt  time.Time     `json:"started_at"`
	EndsAt     time.Time     `json:"ends_at"`
	NextTickAt time.Time     `json:"next_tick_at"`
	Ticks      int           `json:"ticks"`
}

// Window is the auto-cook bonus window.
type Window struct {
	Until      time.Time `json:"until"`
	Locked     string    `json:"locked"`
	NextCookAt time.Time `json:"next_cook_at"`
	Cooked     int       `json:"cooked"`
}

type TomeSlot struct {
	Item string `json:"item"`
	Qty  int    `json:"qty"`
}

type Equipment struct {
	Tools map[catalog.Skill]string `json:"tools,omitempty"`
	Tome  *TomeSlot                `json:"tome,omitempty"`
}

type Bonuses struct {
	AFKExtend time.Duration `json:"afk_extend,omitempty"`
}

type State struct {
	Inventory Inventory                 `json:"inventory"`
	XP        map[catalog.Skill]float64 `json:"xp"`
	Equipment Equipment                 `json:"equipment"`
	Bonuses   Bonuses                   `json:"bonuses"`

	Action   *ActionSlot `json:"action,omitempty"`
	Tome     *AutoRun    `json:"tome_run,omitempty"`
	AFK      *AutoRun    `json:"afk_run,omitempty"`
	AutoCook *Window     `json:"auto_cook,omitempty"`

	// TomeSuppressUntil blocks the tome auto-start check after a cancel.
	TomeSuppressUntil time.Time `json:"tome_suppress_until,omitempty"`

	JobSeq uint64 `json:"job_seq"`
}

func New() *State {
	return &State{
		Inventory: Inventory{},
		XP:        map[catalog.Skill]float64{},
		Equipment: Equipment{Tools: map[catalog.Skill]string{}},
	}
}

// Normalize fills nil maps, e.g. after decoding an old save.
func (s *State) Normalize() {
	if s.Inventory == nil {
		s.Inventory = Inventory{}
	}
	if s.XP == nil {
		s.XP = map[catalog.Skill]float64{}
	}
	if s.Equipment.Tools == nil {
		s.Equipment.Tools = map[catalog.Skill]string{}
	}
}

func (s *State) Level(skill catalog.Skill) int {
	return LevelFromXP(s.XP[skill])
}

func (s *State) AddXP(skill catalog.Skill, xp float64) {
	if xp <= 0 {
		return
	}
	s.XP[skill] += xp
}

// ToolSpeed returns the equipped tool multiplier for skill (1 if none).
func (s *State) ToolSpeed(cat *catalog.Catalog, skill catalog.Skill) float64 {
	id := s.Equipment.Tools[skill]
	if id == "" || cat == nil {
		return 1
	}
	t, ok := cat.Tool(id)
	if !ok || t.Skill != skill {
		return 1
	}
	return t.Speed
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Inventory = make(Inventory, len(s.Inventory))
	for k, v := range s.Inventory {
		cp.Inventory[k] = v
	}
	cp.XP = make(map[catalog.Skill]float64, len(s.XP))
	for k, v := range s.XP {
		cp.XP[k] = v
	}
	cp.Equipment.Tools = make(map[catalog.Skill]string, len(s.Equipment.Tools))
	for k, v := range s.Equipment.Tools {
		cp.Equipment.Tools[k] = v
	}
	if s.Equipment.Tome != nil {
		t := *s.Equipment.Tome
		cp.Equipment.Tome = &t
	}
	if s.Action != nil {
		a := *s.Action
		cp.Action = &a
	}
	if s.Tome != nil {
		r := *s.Tome
		cp.Tome = &r
	}
	if s.AFK != nil {
		r := *s.AFK
		cp.AFK = &r
	}
	if s.AutoCook != nil {
		w := *s.AutoCook
		cp.AutoCook = &w
	}
	return &cp
}

// DropLive discards everything anchored to wall-clock time. Used on load.
func (s *State) DropLive() {
	s.Action = nil
	s.Tome = nil
	s.AFK = nil
	s.AutoCook = nil
	s.TomeSuppressUntil = time.Time{}
}
