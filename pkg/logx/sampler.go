package logx

import (
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sampler is a Logger whose Debug/Trace output is bounded by a token bucket.
//
// Catch-up ticking can award hundreds of ticks in one poll after a long pause;
// per-tick lines go through a Sampler so such a burst costs a handful of lines.
// Suppressed lines are counted and reported on the next line that passes.
type Sampler struct {
	log Logger
	lim *rate.Limiter

	suppressed atomic.Uint64
}

// NewSampler allows perSec lines per second with a burst of perSec.
func NewSampler(log Logger, perSec int) *Sampler {
	if perSec <= 0 {
		perSec = 20
	}
	return &Sampler{log: log, lim: rate.NewLimiter(rate.Limit(perSec), perSec)}
}

// SetRate updates the budget in place.
func (s *Sampler) SetRate(perSec int) {
	if s == nil || perSec <= 0 {
		return
	}
	s.lim.SetLimit(rate.Limit(perSec))
	s.lim.SetBurst(perSec)
}

func (s *Sampler) Debug(msg string, fields ...Field) { s.emit(zerolog.DebugLevel, msg, fields...) }
func (s *Sampler) Trace(msg string, fields ...Field) { s.emit(zerolog.TraceLevel, msg, fields...) }

// Suppressed returns the number of lines dropped since the last emitted one.
func (s *Sampler) Suppressed() uint64 {
	if s == nil {
		return 0
	}
	return s.suppressed.Load()
}

func (s *Sampler) emit(level zerolog.Level, msg string, fields ...Field) {
	if s == nil || !s.log.Enabled(level) {
		return
	}
	if !s.lim.Allow() {
		s.suppressed.Add(1)
		return
	}
	if n := s.suppressed.Swap(0); n > 0 {
		fields = append(fields, Uint64("suppressed", n))
	}
	s.log.logDepth(3, level, msg, fields...)
}
