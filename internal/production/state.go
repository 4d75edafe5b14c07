package production

import (
	"time"

	"idlecraft/internal/catalog"
	"idlecraft/internal/game"
	"idlecraft/internal/task/action"
	logx "idlecraft/pkg/logx"
)

// Status is a point-in-time view for transports and the TUI.
type Status struct {
	Now      time.Time                `json:"now"`
	Action   *game.ActionSlot         `json:"action,omitempty"`
	Progress float64                  `json:"progress"`
	Tome     *game.AutoRun            `json:"tome_run,omitempty"`
	TomeSlot *game.TomeSlot           `json:"tome_slot,omitempty"`
	AFK      *game.AutoRun            `json:"afk_run,omitempty"`
	AutoCook *game.Window             `json:"auto_cook,omitempty"`
	JobSeq   uint64                   `json:"job_seq"`
	Levels   map[catalog.Skill]int    `json:"levels"`
	Tools    map[catalog.Skill]string `json:"tools,omitempty"`
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clk.Now()
	cp := s.st.Clone()
	levels := make(map[catalog.Skill]int, len(catalog.Skills))
	for _, sk := range catalog.Skills {
		levels[sk] = cp.Level(sk)
	}
	return Status{
		Now:      now,
		Action:   cp.Action,
		Progress: progress(cp.Action, now),
		Tome:     cp.Tome,
		TomeSlot: cp.Equipment.Tome,
		AFK:      cp.AFK,
		AutoCook: cp.AutoCook,
		JobSeq:   cp.JobSeq,
		Levels:   levels,
		Tools:    cp.Equipment.Tools,
	}
}

// Inventory returns a copy of the inventory.
func (s *Service) Inventory() game.Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone().Inventory
}

// Save returns a deep copy of the state for persistence.
func (s *Service) Save() *game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// Restore replaces the state with a loaded save. Live action, runs and the
// auto-cook window are dropped: their wall-clock anchors are meaningless
// now. JobSeq, inventory, XP and equipment are kept.
func (s *Service) Restore(st *game.State) {
	cp := st.Clone()
	if cp == nil {
		cp = game.New()
	}
	cp.Normalize()
	cp.DropLive()

	s.mu.Lock()
	s.slot.Cancel(s.st)
	s.st = cp
	s.done = map[uint64]func(*action.Result){}
	s.mu.Unlock()
	s.log.Info("state restored", logx.Uint64("job_seq", cp.JobSeq))
}

// Mutate runs fn against the live state under the lock. For content tools
// and tests (granting items, XP); fn must not retain st.
func (s *Service) Mutate(fn func(st *game.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}
