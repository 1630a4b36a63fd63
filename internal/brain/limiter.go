package brain

import (
	"sync"
	"time"
)

// EmissionLimiter is the single chokepoint in front of every
// content-producing path, whatever triggered it. It enforces a minimum
// gap between emissions and a per-minute cap over a sliding window.
type EmissionLimiter struct {
	mu         sync.Mutex
	stamps     []time.Time
	minGap     time.Duration
	perMinute  int
	now        func() time.Time
}

// NewEmissionLimiter with production defaults: 3s minimum gap, 20/min.
func NewEmissionLimiter() *EmissionLimiter {
	return NewEmissionLimiterWith(3*time.Second, 20, time.Now)
}

// NewEmissionLimiterWith allows custom limits and an injected clock.
func NewEmissionLimiterWith(minGap time.Duration, perMinute int, now func() time.Time) *EmissionLimiter {
	return &EmissionLimiter{
		stamps:    make([]time.Time, 0, perMinute),
		minGap:    minGap,
		perMinute: perMinute,
		now:       now,
	}
}

// CanEmit reports whether an emission is allowed right now.
func (l *EmissionLimiter) CanEmit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if n := len(l.stamps); n > 0 && now.Sub(l.stamps[n-1]) < l.minGap {
		return false
	}
	return len(l.stamps) < l.perMinute
}

// RecordEmission notes that content was emitted. Call after the emission
// actually happened, not before.
func (l *EmissionLimiter) RecordEmission() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.stamps = append(l.stamps, now)
	l.prune(now)
}

// prune drops timestamps older than the trailing minute. Caller holds mu.
func (l *EmissionLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	kept := l.stamps[:0]
	for _, t := range l.stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.stamps = kept
}
