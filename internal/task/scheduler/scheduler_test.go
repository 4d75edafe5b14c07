package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"idlecraft/internal/task/engine"
	logx "idlecraft/pkg/logx"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@every 30s", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "30s", kind: SpecInterval, source: "duration", duration: 30 * time.Second},
		{name: "prefixed interval", raw: "every:2m", kind: SpecInterval, source: "duration", duration: 2 * time.Minute},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "0s", "00:75", "every:", "every banana", "cron:61 * * * *"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q): expected error", raw)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("23:15")
	if err != nil {
		t.Fatalf("parseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}
	if _, _, err := parseHHMM("24:00"); err == nil {
		t.Fatal("expected error for invalid hour")
	}
}

func TestSpreadDelaysFirstRunOnly(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, spread := spreadInterval(5*time.Second, now)
	if spread < 0 || spread >= 5*time.Second {
		t.Fatalf("spread = %v", spread)
	}
	first := sched.Next(now)
	if want := now.Add(5*time.Second + spread); !first.Equal(want) {
		t.Fatalf("first = %v, want %v", first, want)
	}
	if second := sched.Next(first); second.Sub(first) != 5*time.Second {
		t.Fatalf("second gap = %v", second.Sub(first))
	}
}

func TestIntervalGridKeepsSubSecondAnchor(t *testing.T) {
	t.Parallel()
	anchor := time.Date(2024, 1, 1, 0, 0, 7, 300_000_000, time.UTC)
	g := intervalGrid{anchor: anchor, every: 5 * time.Second}

	if got := g.Next(anchor.Add(-time.Hour)); !got.Equal(anchor) {
		t.Fatalf("before anchor = %v", got)
	}
	prev := anchor
	for i := 0; i < 4; i++ {
		next := g.Next(prev)
		if next.Sub(prev) != 5*time.Second {
			t.Fatalf("gap %d = %v", i, next.Sub(prev))
		}
		prev = next
	}
	// A late caller lands on the next grid point, not now+every.
	if got, want := g.Next(anchor.Add(12*time.Second)), anchor.Add(15*time.Second); !got.Equal(want) {
		t.Fatalf("late next = %v, want %v", got, want)
	}
}

type recordingEngine struct {
	mu    sync.Mutex
	tasks []engine.Task
}

func (r *recordingEngine) Enqueue(t engine.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
	return nil
}

func TestAddReplaceAndTrigger(t *testing.T) {
	t.Parallel()
	rec := &recordingEngine{}
	s := New(Config{}, rec, logx.Nop())
	job := func(ctx context.Context) error { return nil }

	if err := s.AddSchedule("autosave", "30s", time.Second, job); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	if err := s.AddSchedule("autosave", "1m", time.Second, job); err != nil {
		t.Fatalf("AddSchedule replace: %v", err)
	}
	if err := s.AddDaily("backup", "04:30", time.Minute, job); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	if err := s.AddSchedule("bad", "61 * * * *", 0, job); err == nil {
		t.Fatal("expected invalid cron to be rejected")
	}

	s.Start(context.Background())
	defer s.Stop(context.Background())

	snap := s.Snapshot()
	if !snap.Running || len(snap.Schedules) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Schedules[0].Spec != "@every 1m0s" {
		t.Fatalf("autosave spec = %q", snap.Schedules[0].Spec)
	}
	if snap.Schedules[1].Spec != "30 4 * * *" {
		t.Fatalf("backup spec = %q", snap.Schedules[1].Spec)
	}

	if err := s.Trigger("autosave"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if err := s.Trigger("nope"); err == nil {
		t.Fatal("expected error for unknown schedule")
	}
	rec.mu.Lock()
	got := rec.tasks
	rec.mu.Unlock()
	if len(got) != 1 || got[0].Name != "autosave" || got[0].Opt.Overlap != engine.OverlapSkipIfRunning || got[0].State == nil {
		t.Fatalf("tasks = %+v", got)
	}

	if !s.Remove("backup") || s.Remove("backup") {
		t.Fatal("Remove should succeed once")
	}
}
