package scheduler

import (
	"math/rand/v2"
	"time"

	"github.com/robfig/cron/v3"
)

const maxStartupSpread = 10 * time.Second

// intervalGrid fires at anchor, anchor+every, anchor+2*every, ... Unlike
// cron.Every it keeps sub-second anchors, so a jittered start does not drift
// the later runs onto whole seconds.
type intervalGrid struct {
	anchor time.Time
	every  time.Duration
}

var _ cron.Schedule = intervalGrid{}

func (g intervalGrid) Next(t time.Time) time.Time {
	if t.Before(g.anchor) {
		return g.anchor
	}
	k := t.Sub(g.anchor)/g.every + 1
	return g.anchor.Add(k * g.every)
}

// spreadInterval returns an every-grid whose first run lands in
// [now+every, now+every+min(every, maxStartupSpread)), plus the offset used.
func spreadInterval(every time.Duration, now time.Time) (cron.Schedule, time.Duration) {
	if every <= 0 {
		return cron.Every(every), 0
	}
	var jitter time.Duration
	if spread := min(every, maxStartupSpread); spread > 0 {
		jitter = time.Duration(rand.Int64N(int64(spread)))
	}
	return intervalGrid{anchor: now.Add(every + jitter), every: every}, jitter
}
