// Package brain is the persona's decision loop: once per tick it snapshots
// the world, scores every action kind against cooldowns, daily quotas, the
// budget and live opportunities, executes the single winner, and schedules
// its own next tick. All mutable scheduler state lives on the Brain value;
// nothing here is a package global.
package brain

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"personad/internal/ai"
	"personad/internal/broadcast"
	"personad/internal/publish"
	"personad/internal/storage"
)

// ErrSkipped means an executor decided not to act (rate-limit gate closed,
// nothing to act on). Not a failure: the streak stays clean, but cooldown
// and counters are not advanced either.
var ErrSkipped = errors.New("action skipped")

// Broadcaster carries trade signals to the wire.
type Broadcaster interface {
	Broadcast(sig broadcast.Signal) error
}

// Options wires a Brain. Zero-value Clock/Rand fall back to real time and
// a time-seeded source.
type Options struct {
	PersonaName string
	Identity    string // persona system prompt
	AgentID     int
	AssetSymbol string
	CanSign     bool

	// generation tuning; zero values fall back to 0.9 / 300
	Temperature float32
	MaxTokens   int

	Builder *SnapshotBuilder
	AI      ai.Provider
	Feed    Feed
	Store   Store
	Costs   Costs
	Pub     publish.Publisher
	Cast    Broadcaster

	// OnThought, when set, is called after each new thought is persisted.
	OnThought func(storage.Thought)

	Clock func() time.Time
	Rand  *rand.Rand
}

type Brain struct {
	name      string
	identity  string
	agentID   int
	asset     string
	genTemp   float32
	genTokens int

	builder *SnapshotBuilder
	scorer  *Scorer
	limiter *EmissionLimiter
	ai      ai.Provider
	feed    Feed
	store   Store
	costs   Costs
	pub     publish.Publisher
	cast    Broadcaster

	onThought func(storage.Thought)

	now   func() time.Time
	rng   *rand.Rand
	force chan struct{}
	log   zerolog.Logger

	mu             sync.Mutex
	lastRun        map[ActionKind]time.Time
	counts         map[capBucket]int
	countsDay      time.Time // UTC midnight the counters belong to
	publishedToday int
	errStreak      int
	lastDecision   Decision
	lastActionAt   time.Time
	nextTickAt     time.Time
	lastSnapshot   *Snapshot
}

func New(opts Options) *Brain {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	b := &Brain{
		name:      opts.PersonaName,
		identity:  opts.Identity,
		agentID:   opts.AgentID,
		asset:     opts.AssetSymbol,
		genTemp:   opts.Temperature,
		genTokens: opts.MaxTokens,
		builder:   opts.Builder,
		scorer:    NewScorer(rng, opts.AgentID, opts.CanSign),
		limiter:   NewEmissionLimiterWith(3*time.Second, 20, now),
		ai:        opts.AI,
		feed:      opts.Feed,
		store:     opts.Store,
		costs:     opts.Costs,
		pub:       opts.Pub,
		cast:      opts.Cast,
		onThought: opts.OnThought,
		now:       now,
		rng:       rng,
		force:     make(chan struct{}, 1),
		log:       log.With().Str("component", "brain").Logger(),
		lastRun:   make(map[ActionKind]time.Time),
		counts:    make(map[capBucket]int),
	}
	if b.genTemp == 0 {
		b.genTemp = 0.9
	}
	if b.genTokens == 0 {
		b.genTokens = 300
	}
	b.countsDay = now().UTC().Truncate(24 * time.Hour)
	return b
}

// ForceTick wakes the loop for an immediate tick. Safe from any goroutine;
// the tick itself still runs on the loop, keeping one writer.
func (b *Brain) ForceTick() {
	select {
	case b.force <- struct{}{}:
	default:
	}
}

// Tick runs one full decide-and-act cycle. The returned error reflects
// snapshot or executor failure; a no-op tick returns nil.
func (b *Brain) Tick(ctx context.Context) (Decision, error) {
	b.rollover()

	snap := b.builder.Build(ctx)

	b.mu.Lock()
	lastRun := make(map[ActionKind]time.Time, len(b.lastRun))
	for k, v := range b.lastRun {
		lastRun[k] = v
	}
	counts := make(map[capBucket]int, len(b.counts))
	for k, v := range b.counts {
		counts[k] = v
	}
	b.lastSnapshot = snap
	b.mu.Unlock()

	decision := b.scorer.Pick(snap, lastRun, counts)

	b.mu.Lock()
	b.lastDecision = decision
	b.mu.Unlock()

	if !decision.Act {
		b.log.Debug().Float64("best", decision.Score).Msg("no viable action this tick")
		return decision, nil
	}

	b.log.Info().
		Stringer("action", decision.Kind).
		Float64("score", decision.Score).
		Float64("health", snap.HealthPercent).
		Str("mood", snap.Mood).
		Msg("acting")

	err := b.execute(ctx, decision.Kind, snap)
	switch {
	case err == nil:
		b.markDone(decision.Kind)
	case errors.Is(err, ErrSkipped):
		b.log.Debug().Stringer("action", decision.Kind).Msg("executor skipped")
		return decision, nil
	default:
		b.log.Warn().Stringer("action", decision.Kind).Err(err).Msg("action failed")
		return decision, err
	}
	return decision, nil
}

// markDone advances cooldown and the daily counter for kind. Called only
// after a fully successful execution so a failed action stays eligible.
func (b *Brain) markDone(kind ActionKind) {
	row := actionTable[kind]
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now().UTC()
	b.lastRun[kind] = now
	b.lastActionAt = now
	if row.bucket != bucketNone {
		b.counts[row.bucket]++
	}
}

// rollover resets daily counters when the UTC day changed.
func (b *Brain) rollover() {
	midnight := b.now().UTC().Truncate(24 * time.Hour)
	b.mu.Lock()
	defer b.mu.Unlock()
	if midnight.After(b.countsDay) {
		b.counts = make(map[capBucket]int)
		b.publishedToday = 0
		b.countsDay = midnight
		b.log.Info().Msg("daily counters reset")
	}
}

// Status is a read-only view for the HTTP surface.
type Status struct {
	Persona       string               `json:"persona"`
	Mood          string               `json:"mood"`
	HealthPercent float64              `json:"health_percent"`
	Balance       float64              `json:"balance"`
	Budget        float64              `json:"budget"`
	ErrStreak     int                  `json:"error_streak"`
	LastActionAt  time.Time            `json:"last_action_at"`
	NextTickAt    time.Time            `json:"next_tick_at"`
	LastRuns      map[string]time.Time `json:"last_runs"`
	LastScores    map[string]float64   `json:"last_scores"`
	DailyCounts   map[string]int       `json:"daily_counts"`
}

func (b *Brain) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{
		Persona:      b.name,
		ErrStreak:    b.errStreak,
		LastActionAt: b.lastActionAt,
		NextTickAt:   b.nextTickAt,
		LastRuns:     make(map[string]time.Time, len(b.lastRun)),
		LastScores:   make(map[string]float64, len(b.lastDecision.Scores)),
		DailyCounts: map[string]int{
			"posts":      b.counts[bucketPosts],
			"comments":   b.counts[bucketComments],
			"challenges": b.counts[bucketChallenges],
			"signals":    b.counts[bucketSignals],
			"published":  b.publishedToday,
		},
	}
	for k, v := range b.lastRun {
		st.LastRuns[k.String()] = v
	}
	// gated kinds carry -Inf, which JSON cannot encode; leave them out
	for k, v := range b.lastDecision.Scores {
		if !math.IsInf(v, -1) {
			st.LastScores[k] = v
		}
	}
	if s := b.lastSnapshot; s != nil {
		st.Mood = s.Mood
		st.HealthPercent = s.HealthPercent
		st.Balance = s.Balance
		st.Budget = s.EffectiveBudget
	}
	return st
}

// execute looks the executor up in the dispatch table and runs it under
// the per-action timeout.
func (b *Brain) execute(ctx context.Context, kind ActionKind, snap *Snapshot) error {
	run, ok := executorTable[kind]
	if !ok {
		return ErrSkipped
	}
	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()
	return run(b, ctx, snap)
}
