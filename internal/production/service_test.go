package production

import (
	"errors"
	"testing"
	"time"

	"idlecraft/internal/catalog"
	"idlecraft/internal/clock"
	"idlecraft/internal/eventbus"
	"idlecraft/internal/game"
	"idlecraft/internal/task/action"
	logx "idlecraft/pkg/logx"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc     *Service
	clk     *clock.Manual
	events  <-chan eventbus.Event
	settled []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	h := &harness{clk: clock.NewManual(t0)}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(1024)
	t.Cleanup(unsub)
	h.events = ch
	h.svc, err = New(Options{
		Catalog:   cat,
		Clock:     h.clk,
		Bus:       bus,
		Log:       logx.Nop(),
		Config:    DefaultConfig(),
		OnSettled: func(reason string) { h.settled = append(h.settled, reason) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func (h *harness) give(items map[string]int) {
	h.svc.Mutate(func(st *game.State) {
		for id, n := range items {
			st.Inventory.Add(id, n)
		}
	})
}

func (h *harness) drain() []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case e := <-h.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func countType(evs []eventbus.Event, typ string) int {
	n := 0
	for _, e := range evs {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestStartPreemptsOtherKindAndRefusesSameKind(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.give(map[string]int{"log_pine": 4, "ore_copper": 2, "ore_tin": 2})

	if err := h.svc.TryStart(catalog.Craft, "plank_pine", nil); err != nil {
		t.Fatalf("craft: %v", err)
	}
	if err := h.svc.TryStart(catalog.Craft, "plank_pine", nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("same kind err = %v, want ErrBusy", err)
	}
	if err := h.svc.TryStart(catalog.Smelt, "bar_bronze", nil); err != nil {
		t.Fatalf("smelt: %v", err)
	}
	st := h.svc.Status()
	if st.Action == nil || st.Action.Type != catalog.Smelt || st.Action.JobID != 2 {
		t.Fatalf("live action = %+v", st.Action)
	}
	evs := h.drain()
	if countType(evs, eventbus.ActionCancelled) != 1 || countType(evs, eventbus.ActionStarted) != 2 {
		t.Fatalf("events = %+v", evs)
	}

	// The preempted craft's timer must not finish anything.
	h.clk.Advance(10 * time.Second)
	if got := h.svc.Inventory().QuantityOf("plank_pine"); got != 0 {
		t.Fatalf("preempted craft produced %d planks", got)
	}
	if got := h.svc.Inventory().QuantityOf("bar_bronze"); got != 1 {
		t.Fatalf("bar_bronze = %d, want 1", got)
	}
}

func TestFailedStartHasNoSideEffects(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.give(map[string]int{"log_pine": 2, "raw_shrimp": 1})
	if err := h.svc.StartAFK(catalog.Mining, "copper"); err != nil {
		t.Fatalf("StartAFK: %v", err)
	}
	if err := h.svc.TryStart(catalog.Craft, "plank_pine", nil); err != nil {
		t.Fatalf("craft: %v", err)
	}
	// smelt without ore: refused, craft keeps running.
	if err := h.svc.TryStart(catalog.Smelt, "bar_bronze", nil); !errors.Is(err, ErrMaterials) {
		t.Fatalf("err = %v, want ErrMaterials", err)
	}
	st := h.svc.Status()
	if st.Action == nil || st.Action.Type != catalog.Craft || st.JobSeq != 1 {
		t.Fatalf("refused start changed state: %+v", st)
	}
}

func TestCancelledCraftTimerChangesNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.svc.Mutate(func(st *game.State) { st.JobSeq = 6 })
	h.give(map[string]int{"log_pine": 2})

	called := false
	if err := h.svc.TryStart(catalog.Craft, "plank_pine", func(*action.Result) { called = true }); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := h.svc.Status()
	if st.Action.JobID != 7 || st.Action.Duration != 2*time.Second {
		t.Fatalf("slot = %+v", st.Action)
	}
	h.clk.Advance(500 * time.Millisecond)
	if !h.svc.Cancel() {
		t.Fatal("Cancel found nothing")
	}
	h.clk.Advance(1500 * time.Millisecond)

	if called {
		t.Fatal("onDone ran for a cancelled action")
	}
	inv := h.svc.Inventory()
	if inv.QuantityOf("log_pine") != 2 || inv.QuantityOf("plank_pine") != 0 {
		t.Fatalf("inventory = %v", inv)
	}
	if xp := h.svc.Save().XP[catalog.Crafting]; xp != 0 {
		t.Fatalf("xp = %v", xp)
	}
}

func TestCompletionRunsOnDoneAndSettles(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.give(map[string]int{"log_pine": 2})

	var got *action.Result
	h.svc.Start(catalog.Craft, "plank_pine", func(r *action.Result) { got = r })
	h.clk.Advance(2 * time.Second)

	if got == nil || got.Outputs[0].Item != "plank_pine" {
		t.Fatalf("result = %+v", got)
	}
	if h.svc.Status().Action != nil {
		t.Fatal("slot not cleared")
	}
	if len(h.settled) != 1 {
		t.Fatalf("settled = %v", h.settled)
	}
	if countType(h.drain(), eventbus.ActionFinished) != 1 {
		t.Fatal("no finished event")
	}
}

func TestFinishRaceAborts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.give(map[string]int{"ore_copper": 1, "ore_tin": 1})

	called, gotNil := false, false
	h.svc.Start(catalog.Smelt, "bar_bronze", func(r *action.Result) { called, gotNil = true, r == nil })
	h.svc.Mutate(func(st *game.State) { st.Inventory.Remove("ore_tin", 1) })
	h.clk.Advance(time.Minute)

	if !called || !gotNil {
		t.Fatalf("onDone called=%v nil=%v", called, gotNil)
	}
	if h.svc.Status().Action != nil {
		t.Fatal("slot must clear on abort")
	}
	if h.svc.Inventory().QuantityOf("ore_copper") != 1 {
		t.Fatal("aborted finish consumed inputs")
	}
	if countType(h.drain(), eventbus.ActionAborted) != 1 {
		t.Fatal("no aborted event")
	}
}

func TestProgressClamped(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if p := h.svc.Progress(); p != 0 {
		t.Fatalf("idle progress = %v", p)
	}
	h.give(map[string]int{"log_pine": 2})
	h.svc.Start(catalog.Craft, "plank_pine", nil)

	if p := h.svc.ProgressAt(t0.Add(-time.Second)); p != 0 {
		t.Fatalf("progress before start = %v", p)
	}
	if p := h.svc.ProgressAt(t0.Add(time.Second)); p != 0.5 {
		t.Fatalf("progress at half = %v", p)
	}
	if p := h.svc.ProgressAt(t0.Add(time.Hour)); p != 1 {
		t.Fatalf("progress past end = %v", p)
	}
}

func TestAFKAndForegroundExcludeEachOtherButTomeKeepsRunning(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.give(map[string]int{"log_pine": 2, "tome_copper": 1})

	if err := h.svc.EquipTome("tome_copper", 1); err != nil {
		t.Fatalf("EquipTome: %v", err)
	}
	if err := h.svc.StartAFK(catalog.Forestry, "pine"); err != nil {
		t.Fatalf("StartAFK: %v", err)
	}
	if err := h.svc.TryStart(catalog.Craft, "plank_pine", nil); err != nil {
		t.Fatalf("craft: %v", err)
	}
	st := h.svc.Status()
	if st.AFK != nil {
		t.Fatal("foreground start left the AFK run live")
	}
	if st.Tome == nil {
		t.Fatal("foreground start stopped the tome run")
	}

	if err := h.svc.StartAFK(catalog.Fishing, "shrimp"); err != nil {
		t.Fatalf("StartAFK: %v", err)
	}
	st = h.svc.Status()
	if st.Action != nil || st.AFK == nil || st.Tome == nil {
		t.Fatalf("after AFK start: action=%v afk=%v tome=%v", st.Action, st.AFK, st.Tome)
	}
}

func TestPollCatchUpThroughFacade(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := h.svc.StartAFK(catalog.Mining, "copper"); err != nil {
		t.Fatalf("StartAFK: %v", err)
	}
	tick := h.svc.Status().AFK.Tick
	h.drain()

	h.clk.Advance(5*tick + tick/2)
	h.svc.Poll()
	if got := countType(h.drain(), eventbus.AutoRunTick); got != 5 {
		t.Fatalf("ticks = %d, want 5", got)
	}
	if got := h.svc.Inventory().QuantityOf("ore_copper"); got != 6 {
		t.Fatalf("ore_copper = %d, want 6", got)
	}
}

func TestTomeCancelGraceThroughFacade(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.give(map[string]int{"tome_pine": 2})
	if err := h.svc.EquipTome("tome_pine", 2); err != nil {
		t.Fatalf("EquipTome: %v", err)
	}
	if h.svc.Status().Tome == nil {
		t.Fatal("equip did not arm the tome run")
	}
	if !h.svc.CancelTome() {
		t.Fatal("CancelTome found no run")
	}
	h.clk.Advance(500 * time.Millisecond)
	h.svc.Poll()
	if h.svc.Status().Tome != nil {
		t.Fatal("re-armed inside the grace window")
	}
	h.clk.Advance(300 * time.Millisecond)
	h.svc.Poll()
	st := h.svc.Status()
	if st.Tome == nil || st.TomeSlot.Qty != 2 {
		t.Fatalf("after grace: run=%v slot=%+v", st.Tome, st.TomeSlot)
	}

	if err := h.svc.UnequipTome(); err != nil {
		t.Fatalf("UnequipTome: %v", err)
	}
	h.clk.Advance(time.Second)
	h.svc.Poll()
	if h.svc.Status().Tome != nil {
		t.Fatal("unequipped tome re-armed")
	}
	if h.svc.Inventory().QuantityOf("tome_pine") != 2 {
		t.Fatal("unequip did not return charges")
	}
}

func TestPerfectCookOpensAutoCookOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	// At cooking 30 a 0.1 roll is perfect for both shrimp and trout.
	h.svc.SetRoll(func() float64 { return 0.1 })
	h.give(map[string]int{"raw_shrimp": 30, "raw_trout": 5})
	h.svc.Mutate(func(st *game.State) { st.XP[catalog.Cooking] = game.XPForLevel(30) })

	h.svc.Start(catalog.Cook, "cooked_shrimp", nil)
	h.clk.Advance(5 * time.Second)
	w := h.svc.Status().AutoCook
	if w == nil || w.Locked != "raw_shrimp" {
		t.Fatalf("window = %+v", w)
	}
	openedAt := w.Until.Add(-10 * time.Second)

	// A perfect trout cook while the window is live does not redirect it.
	h.svc.Start(catalog.Cook, "cooked_trout", nil)
	h.clk.Advance(5 * time.Second)
	h.svc.Poll()
	if w2 := h.svc.Status().AutoCook; w2 == nil || w2.Locked != "raw_shrimp" || !w2.Until.Equal(w.Until) {
		t.Fatalf("window redirected: %+v", w2)
	}

	h.clk.Set(openedAt.Add(10 * time.Second))
	h.svc.Poll()
	if h.svc.Status().AutoCook != nil {
		t.Fatal("window still open at its deadline")
	}
	h.clk.Advance(5 * time.Second)
	h.svc.Poll()
	if h.svc.Status().AutoCook != nil {
		t.Fatal("window reopened on its own")
	}

	h.svc.Start(catalog.Cook, "cooked_trout", nil)
	h.clk.Advance(5 * time.Second)
	if w3 := h.svc.Status().AutoCook; w3 == nil || w3.Locked != "raw_trout" {
		t.Fatalf("new perfect cook did not reopen with the new lock: %+v", w3)
	}
	evs := h.drain()
	if countType(evs, eventbus.AutoCookOpened) != 2 || countType(evs, eventbus.AutoCookClosed) != 1 {
		t.Fatalf("opened=%d closed=%d", countType(evs, eventbus.AutoCookOpened), countType(evs, eventbus.AutoCookClosed))
	}
}

func TestRestoreDropsLiveStateKeepsJobSeq(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.give(map[string]int{"log_pine": 4, "tome_pine": 1})
	h.svc.EquipTome("tome_pine", 1)
	h.svc.Start(catalog.Craft, "plank_pine", nil)
	h.svc.Mutate(func(st *game.State) { st.JobSeq = 41 })

	saved := h.svc.Save()
	if saved.Action == nil || saved.Tome == nil {
		t.Fatal("save should carry live fields")
	}

	h2 := newHarness(t)
	h2.svc.Restore(saved)
	st := h2.svc.Status()
	if st.Action != nil || st.Tome != nil || st.AFK != nil || st.AutoCook != nil {
		t.Fatalf("restore resumed live state: %+v", st)
	}
	if st.JobSeq != 41 || st.TomeSlot == nil {
		t.Fatalf("restore lost persistent fields: jobSeq=%d slot=%v", st.JobSeq, st.TomeSlot)
	}
	if err := h2.svc.TryStart(catalog.Craft, "plank_pine", nil); err != nil {
		t.Fatalf("start after restore: %v", err)
	}
	if got := h2.svc.Status().Action.JobID; got != 42 {
		t.Fatalf("JobID = %d, want 42", got)
	}
	// The old harness's timer belongs to another state; it must not leak here.
	h.clk.Advance(time.Minute)
	if h2.svc.Inventory().QuantityOf("plank_pine") != 0 {
		t.Fatal("foreign timer touched restored state")
	}
}
