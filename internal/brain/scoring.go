package brain

import (
	"math"
	"math/rand"
	"time"

	"personad/internal/social"
)

var negInf = math.Inf(-1)

const (
	stalenessScale = 2.0

	jitterLow  = 0.8
	jitterSpan = 0.4

	lowHealth        = 20.0
	highHealth       = 60.0
	bigMove24h       = 15.0
	busyFeedPosts    = 5
	signalMovePct    = 10.0
	signalIdleChance = 0.10

	challengeAcceptBonus = 5.0
	signalMoveBonus      = 8.0
	signalIdleBonus      = 2.0
)

// modifier is one row of the contextual adjustment table. Every
// snapshot-driven score tweak lives here, not inline in the scorer.
type modifier struct {
	name  string
	delta float64
	kinds []ActionKind
	when  func(*Snapshot) bool
}

var modifierTable = []modifier{
	{
		name:  "scarcity retreat",
		delta: -10,
		kinds: []ActionKind{ActionFeedPost, ActionFeedComment, ActionChallengeOpen, ActionChallengeAccept},
		when:  func(s *Snapshot) bool { return s.HealthPercent < lowHealth },
	},
	{
		name:  "scarcity voice",
		delta: +5,
		kinds: []ActionKind{ActionSpeak},
		when:  func(s *Snapshot) bool { return s.HealthPercent < lowHealth },
	},
	{
		name:  "prosperity challenge",
		delta: +3,
		kinds: []ActionKind{ActionChallengeOpen},
		when:  func(s *Snapshot) bool { return s.HealthPercent > highHealth },
	},
	{
		name:  "market move",
		delta: +4,
		kinds: []ActionKind{ActionSpeak},
		when:  func(s *Snapshot) bool { return math.Abs(s.Change24h) > bigMove24h },
	},
	{
		name:  "busy feed",
		delta: +3,
		kinds: []ActionKind{ActionFeedComment},
		when:  func(s *Snapshot) bool { return s.PostsToday > busyFeedPosts },
	},
}

// Scorer turns one snapshot plus scheduler state into a decision. It owns
// no mutable state beyond the injected random source.
type Scorer struct {
	rng     *rand.Rand
	agentID int
	canSign bool
}

func NewScorer(rng *rand.Rand, agentID int, canSign bool) *Scorer {
	return &Scorer{rng: rng, agentID: agentID, canSign: canSign}
}

// Decision is the outcome of scoring one tick.
type Decision struct {
	Kind   ActionKind
	Score  float64
	Act    bool
	Scores map[string]float64
}

// Pick scores every kind and returns the winner. Act is false when the
// best score is non-positive; the tick then executes nothing. Ties break
// by AllActions order.
func (s *Scorer) Pick(snap *Snapshot, lastRun map[ActionKind]time.Time, counts map[capBucket]int) Decision {
	d := Decision{Score: negInf, Scores: make(map[string]float64, len(AllActions))}
	for _, kind := range AllActions {
		score := s.score(kind, snap, lastRun[kind], counts)
		d.Scores[kind.String()] = score
		if score > d.Score {
			d.Score = score
			d.Kind = kind
		}
	}
	d.Act = d.Score > 0 && !math.IsInf(d.Score, -1)
	return d
}

func (s *Scorer) score(kind ActionKind, snap *Snapshot, last time.Time, counts map[capBucket]int) float64 {
	row := actionTable[kind]
	elapsed := snap.At.Sub(last)

	if !last.IsZero() && elapsed < row.cooldown {
		return negInf
	}
	if row.dailyCap > 0 && counts[row.bucket] >= row.dailyCap {
		return negInf
	}
	// Speaking stays viable at zero budget: the persona must still be able
	// to react to its own scarcity. An unknown unit cost (no price yet)
	// counts as unaffordable for every other paid kind.
	if row.needsLLM && kind != ActionSpeak {
		if snap.LLMUnitCost <= 0 || snap.EffectiveBudget < snap.LLMUnitCost {
			return negInf
		}
	}

	bonus := 0.0
	switch kind {
	case ActionFeedComment, ActionFeedVote:
		if len(othersPosts(snap, s.agentID)) == 0 {
			return negInf
		}
	case ActionChallengeAccept:
		if len(acceptableChallenges(snap, s.agentID)) == 0 {
			return negInf
		}
		bonus = challengeAcceptBonus
	case ActionChallengeSubmit:
		if pendingSubmission(snap, s.agentID) == nil {
			return negInf
		}
		// An unmet submission obligation is blocking, so it wins the tick
		// outright, unjittered.
		return forcedScore
	case ActionChallengeVote:
		if len(votableChallenges(snap, s.agentID)) == 0 {
			return negInf
		}
	case ActionSignal:
		if !s.canSign {
			return negInf
		}
		switch {
		case math.Abs(snap.Change1h) > signalMovePct || math.Abs(snap.Change24h) > signalMovePct:
			bonus = signalMoveBonus
		case s.rng.Float64() < signalIdleChance:
			bonus = signalIdleBonus
		default:
			return negInf
		}
	}

	score := row.priority + bonus
	// Never-run kinds compete on base priority alone; the staleness bonus
	// starts accruing after the first successful run.
	if !last.IsZero() {
		score += math.Log2(1+elapsed.Hours()) * stalenessScale
	}
	for _, m := range modifierTable {
		if !m.when(snap) {
			continue
		}
		for _, k := range m.kinds {
			if k == kind {
				score += m.delta
				break
			}
		}
	}
	return score * (jitterLow + s.rng.Float64()*jitterSpan)
}

// othersPosts filters recent feed posts down to ones not authored by us.
func othersPosts(snap *Snapshot, agentID int) []social.Post {
	out := make([]social.Post, 0, len(snap.Feed.RecentPosts))
	for _, p := range snap.Feed.RecentPosts {
		if p.AgentID != agentID {
			out = append(out, p)
		}
	}
	return out
}

// acceptableChallenges are open, not ours, and still without a defender.
func acceptableChallenges(snap *Snapshot, agentID int) []social.Challenge {
	out := make([]social.Challenge, 0, len(snap.Feed.OpenChallenges))
	for _, ch := range snap.Feed.OpenChallenges {
		if ch.ChallengerID != agentID && ch.DefenderID == 0 {
			out = append(out, ch)
		}
	}
	return out
}

// pendingSubmission finds an active challenge of ours missing our entry.
func pendingSubmission(snap *Snapshot, agentID int) *social.Challenge {
	for i := range snap.Feed.ActiveChallenges {
		ch := &snap.Feed.ActiveChallenges[i]
		if ch.ChallengerID == agentID && ch.ChallengerEntry == "" {
			return ch
		}
		if ch.DefenderID == agentID && ch.DefenderEntry == "" {
			return ch
		}
	}
	return nil
}

// votableChallenges are in the voting phase and not our own matchups.
func votableChallenges(snap *Snapshot, agentID int) []social.Challenge {
	out := make([]social.Challenge, 0, len(snap.Feed.VotingChallenges))
	for _, ch := range snap.Feed.VotingChallenges {
		if ch.ChallengerID != agentID && ch.DefenderID != agentID {
			out = append(out, ch)
		}
	}
	return out
}
