package brain

import (
	"context"
	"time"
)

const (
	firstTickDelay = 30 * time.Second

	baseDelayMin = 3 * time.Minute
	baseDelayMax = 8 * time.Minute

	afterSpeakMin = 5 * time.Minute
	afterSpeakMax = 10 * time.Minute

	afterVoteMin = 2 * time.Minute
	afterVoteMax = 4 * time.Minute

	// streak thresholds for backoff and the recovery sleep
	backoffStreak  = 3
	recoveryStreak = 5
	recoverySleep  = 30 * time.Minute
)

// Run drives the tick loop until ctx is cancelled. Every failure path
// still reaches the rescheduler; nothing inside a tick stops the loop.
func (b *Brain) Run(ctx context.Context) {
	b.log.Info().Dur("first_tick", firstTickDelay).Msg("loop starting")
	delay := firstTickDelay
	b.mu.Lock()
	b.nextTickAt = b.now().Add(delay)
	b.mu.Unlock()
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("loop stopping")
			return
		case <-timer.C:
		case <-b.force:
			b.log.Info().Msg("forced tick")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		decision, err := b.Tick(ctx)
		if ctx.Err() != nil {
			return
		}

		streak := b.noteTickResult(err)
		delay = b.nextDelay(decision, streak)
		b.mu.Lock()
		b.nextTickAt = b.now().Add(delay)
		b.mu.Unlock()
		b.log.Debug().Dur("next_tick", delay).Int("err_streak", streak).Msg("rescheduled")
		timer.Reset(delay)
	}
}

// noteTickResult updates the failure streak and returns the value the
// rescheduler acts on. Reaching the recovery threshold arms one recovery
// sleep and clears the streak, so normal pacing resumes afterwards.
func (b *Brain) noteTickResult(err error) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.errStreak++
	} else {
		b.errStreak = 0
	}
	streak := b.errStreak
	if streak >= recoveryStreak {
		b.errStreak = 0
	}
	return streak
}

// nextDelay picks the sleep before the next tick: a randomized band keyed
// to what just ran, doubled under a failure streak, or the long recovery
// sleep once the streak passes the threshold.
func (b *Brain) nextDelay(decision Decision, streak int) time.Duration {
	if streak >= recoveryStreak {
		return recoverySleep
	}

	lo, hi := baseDelayMin, baseDelayMax
	if decision.Act {
		switch decision.Kind {
		case ActionSpeak:
			lo, hi = afterSpeakMin, afterSpeakMax
		case ActionFeedVote, ActionChallengeVote:
			lo, hi = afterVoteMin, afterVoteMax
		}
	}

	d := lo + time.Duration(b.rng.Int63n(int64(hi-lo)))
	if streak >= backoffStreak {
		d *= 2
	}
	return d
}
