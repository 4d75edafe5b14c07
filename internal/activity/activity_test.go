package activity

import (
	"testing"
	"time"

	"idlecraft/internal/catalog"
	"idlecraft/internal/game"
)

func mustCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	return c
}

func TestScale(t *testing.T) {
	t.Parallel()
	if got := Scale(3*time.Second, 1, 1, 100*time.Millisecond); got != 3*time.Second {
		t.Fatalf("level 1 no tool = %v, want 3s", got)
	}
	// level 11: 1.3x
	if got := Scale(3900*time.Millisecond, 1, 11, 0); got < 3*time.Second-time.Millisecond || got > 3*time.Second {
		t.Fatalf("level 11 = %v, want ~3s", got)
	}
	if got := Scale(time.Second, 100, 99, 100*time.Millisecond); got != 100*time.Millisecond {
		t.Fatalf("floor not applied: %v", got)
	}
}

func TestResolversUseOwnSkillOnly(t *testing.T) {
	t.Parallel()
	cat := mustCatalog(t)
	r := NewResolvers(cat, 100*time.Millisecond)

	st := game.New()
	st.XP[catalog.Fishing] = game.XPForLevel(30)
	st.XP[catalog.Forestry] = game.XPForLevel(30)

	pine, ok := r.Resolve(st, catalog.Forestry, "pine")
	if !ok || pine.Drop != "log_pine" {
		t.Fatalf("forestry pine: ok=%v spec=%+v", ok, pine)
	}
	trout, ok := r.Resolve(st, catalog.Fishing, "trout")
	if !ok || trout.Drop != "raw_trout" {
		t.Fatalf("fishing trout: ok=%v spec=%+v", ok, trout)
	}
	if pine.Tick == trout.Tick {
		t.Fatalf("tick times should derive from each activity's base time: %v", pine.Tick)
	}

	// Raise woodcutting only; fishing cadence must not move.
	st.XP[catalog.Forestry] = game.XPForLevel(90)
	st.Equipment.Tools[catalog.Forestry] = "axe_bronze"
	trout2, _ := r.Resolve(st, catalog.Fishing, "trout")
	if trout2.Tick != trout.Tick {
		t.Fatalf("fishing tick changed with forestry level: %v -> %v", trout.Tick, trout2.Tick)
	}
	pine2, _ := r.Resolve(st, catalog.Forestry, "pine")
	if pine2.Tick >= pine.Tick {
		t.Fatalf("forestry tick should shrink: %v -> %v", pine.Tick, pine2.Tick)
	}
}

func TestResolveRefusesUnknown(t *testing.T) {
	t.Parallel()
	r := NewResolvers(mustCatalog(t), 0)
	st := game.New()
	if _, ok := r.Resolve(st, catalog.Forestry, "bamboo"); ok {
		t.Fatal("unknown resource resolved")
	}
	if _, ok := r.Resolve(st, catalog.Cooking, "trout"); ok {
		t.Fatal("unregistered skill resolved")
	}
	r.Register(catalog.Forestry, nil)
	if _, ok := r.Resolve(st, catalog.Forestry, "pine"); ok {
		t.Fatal("removed resolver still resolves")
	}
}
