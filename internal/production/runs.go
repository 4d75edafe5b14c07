package production

import (
	"fmt"
	"time"

	"idlecraft/internal/catalog"
	"idlecraft/internal/eventbus"
	"idlecraft/internal/game"
	logx "idlecraft/pkg/logx"
)

// StartAFK starts (or switches) the AFK run and stops any foreground
// action. The tome run is untouched.
func (s *Service) StartAFK(skill catalog.Skill, resource string) error {
	if !skill.Gathering() {
		return fmt.Errorf("%w: %s", ErrNotGathering, skill)
	}
	var evs []eventbus.Event
	s.mu.Lock()
	now := s.clk.Now()
	if _, ok := s.cat.Resource(skill, resource); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrUnknown, skill, resource)
	}
	steps, ok := s.runs.StartAFK(s.st, skill, resource, now)
	if !ok {
		s.mu.Unlock()
		return ErrLevel
	}
	if tk, had := s.slot.Cancel(s.st); had {
		delete(s.done, tk.JobID)
		evs = append(evs, actionEvent(eventbus.ActionCancelled, now, tk, 0))
	}
	ends := s.st.AFK.EndsAt
	s.mu.Unlock()

	for _, st := range steps {
		evs = append(evs, stepEvent(st))
	}
	s.emit(evs)
	s.log.Info("afk started", logx.String("skill", string(skill)), logx.String("resource", resource), logx.Time("ends_at", ends))
	return nil
}

func (s *Service) StopAFK() bool {
	s.mu.Lock()
	step, ok := s.runs.StopAFK(s.st, s.clk.Now())
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.emit([]eventbus.Event{stepEvent(step)})
	s.log.Info("afk stopped", logx.String("run", step.RunID), logx.Int("ticks", step.Ticks))
	return true
}

// EquipTome moves qty tomes from the inventory to the tome slot. Equipping
// more of the equipped tome tops the stack up; a different tome replaces
// the slot (returning the old charges) and cancels its run.
func (s *Service) EquipTome(id string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("qty must be >= 1")
	}
	var evs []eventbus.Event
	s.mu.Lock()
	now := s.clk.Now()
	if _, ok := s.cat.Tome(id); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: tome %q", ErrUnknown, id)
	}
	if s.st.Inventory.QuantityOf(id) < qty {
		s.mu.Unlock()
		return ErrMaterials
	}
	s.st.Inventory.Remove(id, qty)
	slot := s.st.Equipment.Tome
	switch {
	case slot != nil && slot.Item == id:
		slot.Qty += qty
	default:
		if step, ok := s.runs.CancelTome(s.st, now); ok {
			evs = append(evs, stepEvent(step))
		}
		if slot != nil {
			s.st.Inventory.Add(slot.Item, slot.Qty)
		}
		s.st.Equipment.Tome = &game.TomeSlot{Item: id, Qty: qty}
		// An explicit equip is not undone by the cancel grace.
		s.st.TomeSuppressUntil = time.Time{}
	}
	steps := s.runs.EnsureTome(s.st, now)
	total := s.st.Equipment.Tome.Qty
	s.mu.Unlock()

	for _, st := range steps {
		evs = append(evs, stepEvent(st))
	}
	s.emit(evs)
	s.log.Info("tome equipped", logx.String("tome", id), logx.Int("qty", total))
	return nil
}

// UnequipTome cancels the tome run and returns the remaining charges to the
// inventory.
func (s *Service) UnequipTome() error {
	var evs []eventbus.Event
	s.mu.Lock()
	now := s.clk.Now()
	slot := s.st.Equipment.Tome
	if slot == nil {
		s.mu.Unlock()
		return ErrNotEquipped
	}
	if step, ok := s.runs.CancelTome(s.st, now); ok {
		evs = append(evs, stepEvent(step))
	}
	s.st.Equipment.Tome = nil
	s.st.Inventory.Add(slot.Item, slot.Qty)
	s.mu.Unlock()

	s.emit(evs)
	s.log.Info("tome unequipped", logx.String("tome", slot.Item), logx.Int("qty", slot.Qty))
	return nil
}

// CancelTome stops the live tome run, keeping the tome equipped. Auto-start
// resumes after the cancel grace period.
func (s *Service) CancelTome() bool {
	s.mu.Lock()
	step, ok := s.runs.CancelTome(s.st, s.clk.Now())
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.emit([]eventbus.Event{stepEvent(step)})
	s.log.Info("tome run cancelled", logx.String("run", step.RunID), logx.Int("ticks", step.Ticks))
	return true
}

// EquipTool sets the tool for its skill. The tool must be owned; it is not
// consumed.
func (s *Service) EquipTool(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.cat.Tool(id)
	if !ok {
		return fmt.Errorf("%w: tool %q", ErrUnknown, id)
	}
	if s.st.Inventory.QuantityOf(id) < 1 {
		return ErrMaterials
	}
	s.st.Equipment.Tools[t.Skill] = id
	s.log.Info("tool equipped", logx.String("tool", id), logx.String("skill", string(t.Skill)))
	return nil
}
