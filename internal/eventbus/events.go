package eventbus

import "time"

const (
	ActionStarted   = "action.started"
	ActionFinished  = "action.finished"
	ActionAborted   = "action.aborted"
	ActionCancelled = "action.cancelled"
	ActionStale     = "action.stale"

	AutoRunStarted   = "autorun.started"
	AutoRunTick      = "autorun.tick"
	AutoRunEnded     = "autorun.ended"
	AutoRunChained   = "autorun.chained"
	AutoRunCancelled = "autorun.cancelled"

	AutoCookOpened = "autocook.opened"
	AutoCookTick   = "autocook.tick"
	AutoCookClosed = "autocook.closed"

	TaskStarted  = "task.started"
	TaskFinished = "task.finished"
	TaskFailed   = "task.failed"
	TaskSkipped  = "task.skipped"
	TaskDropped  = "task.dropped"
)

type ActionData struct {
	Kind     string        `json:"kind"`
	ID       string        `json:"id"`
	JobID    uint64        `json:"job_id"`
	Duration time.Duration `json:"duration,omitempty"`
	Outcome  string        `json:"outcome,omitempty"`
	XP       float64       `json:"xp,omitempty"`
}

type RunData struct {
	Source  string  `json:"source"`
	RunID   string  `json:"run_id"`
	Drop    string  `json:"drop,omitempty"`
	XP      float64 `json:"xp,omitempty"`
	Ticks   int     `json:"ticks"`
	Charges int     `json:"charges,omitempty"`
}

type CookData struct {
	Raw     string    `json:"raw"`
	Item    string    `json:"item,omitempty"`
	Cooked  int       `json:"cooked"`
	Skipped int       `json:"skipped,omitempty"`
	Until   time.Time `json:"until"`
}
