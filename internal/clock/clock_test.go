package clock

import (
	"testing"
	"time"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	t.Parallel()
	start := time.Unix(1000, 0)
	m := NewManual(start)

	var order []string
	m.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	m.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	m.AfterFunc(200*time.Millisecond, func() {
		if got := m.Now().Sub(start); got != 200*time.Millisecond {
			t.Errorf("callback Now offset = %v, want 200ms", got)
		}
		order = append(order, "b")
	})

	m.Advance(250 * time.Millisecond)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order after 250ms = %v", order)
	}
	if m.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", m.Pending())
	}
	m.Advance(time.Second)
	if len(order) != 3 || order[2] != "c" {
		t.Fatalf("order after 1250ms = %v", order)
	}
	if got := m.Now().Sub(start); got != 1250*time.Millisecond {
		t.Fatalf("Now offset = %v, want 1250ms", got)
	}
}

func TestManualStop(t *testing.T) {
	t.Parallel()
	m := NewManual(time.Unix(0, 0))
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Fatal("first Stop should report true")
	}
	if tm.Stop() {
		t.Fatal("second Stop should report false")
	}
	m.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestManualNestedTimerFiresInSameAdvance(t *testing.T) {
	t.Parallel()
	m := NewManual(time.Unix(0, 0))
	hits := 0
	m.AfterFunc(100*time.Millisecond, func() {
		hits++
		m.AfterFunc(100*time.Millisecond, func() { hits++ })
	})
	m.Advance(time.Second)
	if hits != 2 {
		t.Fatalf("hits = %d, want 2", hits)
	}
}
