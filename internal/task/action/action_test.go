package action

import (
	"errors"
	"testing"
	"time"

	"idlecraft/internal/catalog"
	"idlecraft/internal/clock"
	"idlecraft/internal/game"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newSlot(t *testing.T) (*Slot, *clock.Manual) {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	clk := clock.NewManual(t0)
	return NewSlot(cat, clk, Config{MinDuration: 200 * time.Millisecond}), clk
}

func TestStartPreconditionsLeaveStateUntouched(t *testing.T) {
	t.Parallel()
	s, _ := newSlot(t)
	st := game.New()

	if _, err := s.Start(st, catalog.Craft, "plank_pine", func(Ticket) {}); !errors.Is(err, ErrMaterials) {
		t.Fatalf("err = %v, want ErrMaterials", err)
	}
	if _, err := s.Start(st, catalog.Craft, "plank_oak", func(Ticket) {}); !errors.Is(err, ErrLevel) {
		t.Fatalf("err = %v, want ErrLevel", err)
	}
	if _, err := s.Start(st, catalog.Craft, "no_such", func(Ticket) {}); !errors.Is(err, ErrUnknown) {
		t.Fatalf("err = %v, want ErrUnknown", err)
	}
	if st.Action != nil || st.JobSeq != 0 {
		t.Fatalf("failed start mutated state: action=%v jobSeq=%d", st.Action, st.JobSeq)
	}

	st.Inventory.Add("log_pine", 4)
	if _, err := s.Start(st, catalog.Craft, "plank_pine", func(Ticket) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.CanStart(st, catalog.Craft, "plank_pine") {
		t.Fatal("CanStart must be false while an action is live")
	}
	if _, err := s.Start(st, catalog.Smelt, "bar_bronze", func(Ticket) {}); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if st.JobSeq != 1 {
		t.Fatalf("JobSeq = %d, want 1", st.JobSeq)
	}
}

func TestCompletionGrantsAndClears(t *testing.T) {
	t.Parallel()
	s, clk := newSlot(t)
	st := game.New()
	st.Inventory.Add("log_pine", 2)

	var got *Result
	fire := func(tk Ticket) { got, _ = s.Complete(st, tk) }
	tk, err := s.Start(st, catalog.Craft, "plank_pine", fire)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.Action.Duration != 2*time.Second || !st.Action.EndsAt.Equal(t0.Add(2*time.Second)) {
		t.Fatalf("unexpected slot %+v", st.Action)
	}

	clk.Advance(1999 * time.Millisecond)
	if got != nil {
		t.Fatal("completed early")
	}
	clk.Advance(time.Millisecond)
	if got == nil || got.JobID != tk.JobID {
		t.Fatalf("result = %+v", got)
	}
	if st.Action != nil {
		t.Fatal("slot not cleared")
	}
	if st.Inventory.QuantityOf("plank_pine") != 1 || st.Inventory.QuantityOf("log_pine") != 0 {
		t.Fatalf("inventory = %v", st.Inventory)
	}
	if st.XP[catalog.Crafting] != 6 {
		t.Fatalf("xp = %v, want 6", st.XP[catalog.Crafting])
	}
}

// Craft of 2000ms with jobId 7, cancelled at 500ms; the original timer
// arriving at 2000ms must change nothing.
func TestCancelledCompletionIsIgnored(t *testing.T) {
	t.Parallel()
	s, clk := newSlot(t)
	st := game.New()
	st.JobSeq = 6
	st.Inventory.Add("log_pine", 2)

	fired := 0
	tk, err := s.Start(st, catalog.Craft, "plank_pine", func(Ticket) { fired++ })
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if tk.JobID != 7 {
		t.Fatalf("JobID = %d, want 7", tk.JobID)
	}

	clk.Advance(500 * time.Millisecond)
	if _, ok := s.Cancel(st); !ok {
		t.Fatal("Cancel found no action")
	}
	clk.Advance(1500 * time.Millisecond)

	// The timer was stopped; deliver the late firing by hand.
	res, stale := s.Complete(st, tk)
	if !stale || res != nil {
		t.Fatalf("stale=%v res=%+v", stale, res)
	}
	if fired != 0 {
		t.Fatalf("stopped timer fired %d times", fired)
	}
	if st.Inventory.QuantityOf("log_pine") != 2 || st.Inventory.QuantityOf("plank_pine") != 0 {
		t.Fatalf("inventory changed: %v", st.Inventory)
	}
	if st.XP[catalog.Crafting] != 0 {
		t.Fatalf("xp changed: %v", st.XP[catalog.Crafting])
	}
}

func TestSupersededTicketIsStale(t *testing.T) {
	t.Parallel()
	s, _ := newSlot(t)
	st := game.New()
	st.Inventory.Add("log_pine", 4)

	a, _ := s.Start(st, catalog.Craft, "plank_pine", func(Ticket) {})
	s.Cancel(st)
	b, err := s.Start(st, catalog.Craft, "plank_pine", func(Ticket) {})
	if err != nil {
		t.Fatalf("Start b: %v", err)
	}
	if a.Type != b.Type || a.Key != b.Key || a.JobID == b.JobID {
		t.Fatalf("tickets a=%+v b=%+v", a, b)
	}
	if _, stale := s.Complete(st, a); !stale {
		t.Fatal("old ticket completed the new action")
	}
	if st.Action == nil || st.Action.JobID != b.JobID {
		t.Fatal("stale completion touched the live slot")
	}
	if res, stale := s.Complete(st, b); stale || res == nil {
		t.Fatalf("live ticket: stale=%v res=%v", stale, res)
	}
}

func TestFinishRaceAbortsGrant(t *testing.T) {
	t.Parallel()
	s, _ := newSlot(t)
	st := game.New()
	st.Inventory.Add("ore_copper", 1)
	st.Inventory.Add("ore_tin", 1)

	tk, err := s.Start(st, catalog.Smelt, "bar_bronze", func(Ticket) {})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	st.Inventory.Remove("ore_tin", 1)

	res, stale := s.Complete(st, tk)
	if stale || res != nil {
		t.Fatalf("stale=%v res=%+v, want aborted grant", stale, res)
	}
	if st.Action != nil {
		t.Fatal("slot must clear on abort")
	}
	if st.Inventory.QuantityOf("ore_copper") != 1 || st.Inventory.QuantityOf("bar_bronze") != 0 {
		t.Fatalf("inventory = %v", st.Inventory)
	}
}

func TestCookOutcomes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		roll    float64
		want    Outcome
		item    string
		xp      float64
		xpLevel int
	}{
		{name: "burnt", roll: 0.0, want: OutcomeBurnt, item: "burnt_shrimp", xp: 0},
		{name: "perfect", roll: 0.32, want: OutcomePerfect, item: "cooked_shrimp", xp: 10},
		{name: "normal", roll: 0.9, want: OutcomeNormal, item: "cooked_shrimp", xp: 10},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, _ := newSlot(t)
			s.Roll = func() float64 { return tt.roll }
			st := game.New()
			st.Inventory.Add("raw_shrimp", 1)
			if _, err := s.Start(st, catalog.Cook, "cooked_shrimp", func(Ticket) {}); err != nil {
				t.Fatalf("Start: %v", err)
			}
			res := s.Finish(st)
			if res == nil || res.Outcome != tt.want {
				t.Fatalf("result = %+v, want %s", res, tt.want)
			}
			if st.Inventory.QuantityOf(tt.item) != 1 {
				t.Fatalf("inventory = %v, want 1 %s", st.Inventory, tt.item)
			}
			if st.XP[catalog.Cooking] != tt.xp {
				t.Fatalf("xp = %v, want %v", st.XP[catalog.Cooking], tt.xp)
			}
			if res.Raw != "raw_shrimp" {
				t.Fatalf("Raw = %q", res.Raw)
			}
		})
	}
}

func TestCookRollUsesFinishTimeLevel(t *testing.T) {
	t.Parallel()
	s, _ := newSlot(t)
	s.Roll = func() float64 { return 0.1 }
	st := game.New()
	st.Inventory.Add("raw_shrimp", 1)
	if _, err := s.Start(st, catalog.Cook, "cooked_shrimp", func(Ticket) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Level 1 at start would burn on 0.1; level 16 at finish cannot burn.
	st.XP[catalog.Cooking] = game.XPForLevel(16)
	res := s.Finish(st)
	if res == nil || res.Level != 16 || res.Outcome != OutcomePerfect {
		t.Fatalf("result = %+v", res)
	}
}

func TestChances(t *testing.T) {
	t.Parallel()
	if BurnChance(1, 1) != 0.30 || BurnChance(30, 1) != 0 {
		t.Fatal("burn chance bounds")
	}
	if PerfectChance(99, 1) != 0.35 {
		t.Fatal("perfect chance cap")
	}
}
