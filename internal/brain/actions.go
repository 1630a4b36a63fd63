package brain

import (
	"time"

	"personad/internal/cost"
)

// ActionKind enumerates everything the persona can decide to do. The set
// is closed: adding a kind means one table row here and one executor entry
// in executors.go, nothing else.
type ActionKind int

const (
	ActionSpeak ActionKind = iota
	ActionFeedPost
	ActionFeedComment
	ActionFeedVote
	ActionChallengeOpen
	ActionChallengeAccept
	ActionChallengeSubmit
	ActionChallengeVote
	ActionSignal
)

// AllActions is the fixed iteration order for scoring and tie-breaking.
var AllActions = []ActionKind{
	ActionSpeak,
	ActionFeedPost,
	ActionFeedComment,
	ActionFeedVote,
	ActionChallengeOpen,
	ActionChallengeAccept,
	ActionChallengeSubmit,
	ActionChallengeVote,
	ActionSignal,
}

func (k ActionKind) String() string {
	switch k {
	case ActionSpeak:
		return "SPEAK"
	case ActionFeedPost:
		return "FEED_POST"
	case ActionFeedComment:
		return "FEED_COMMENT"
	case ActionFeedVote:
		return "FEED_VOTE"
	case ActionChallengeOpen:
		return "CHALLENGE_OPEN"
	case ActionChallengeAccept:
		return "CHALLENGE_ACCEPT"
	case ActionChallengeSubmit:
		return "CHALLENGE_SUBMIT"
	case ActionChallengeVote:
		return "CHALLENGE_VOTE"
	case ActionSignal:
		return "SIGNAL"
	}
	return "UNKNOWN"
}

// capBucket groups kinds that share one daily counter. Challenge open and
// accept deliberately share a bucket: one challenge commitment per day
// either way.
type capBucket int

const (
	bucketNone capBucket = iota
	bucketPosts
	bucketComments
	bucketChallenges
	bucketSignals
)

// actionSpec is the static row for one kind.
type actionSpec struct {
	priority float64
	cooldown time.Duration
	bucket   capBucket
	dailyCap int // 0 = uncapped; applies to the bucket
	needsLLM bool
	op       cost.Operation
}

var actionTable = map[ActionKind]actionSpec{
	ActionSpeak:           {priority: 10, cooldown: 15 * time.Minute, needsLLM: true, op: cost.OpThought},
	ActionFeedPost:        {priority: 7, cooldown: 6 * time.Hour, bucket: bucketPosts, dailyCap: 4, needsLLM: true, op: cost.OpContent},
	ActionFeedComment:     {priority: 5, cooldown: 4 * time.Hour, bucket: bucketComments, dailyCap: 6, needsLLM: true, op: cost.OpContent},
	ActionFeedVote:        {priority: 3, cooldown: 30 * time.Minute},
	ActionChallengeOpen:   {priority: 4, cooldown: 24 * time.Hour, bucket: bucketChallenges, dailyCap: 1, needsLLM: true, op: cost.OpContent},
	ActionChallengeAccept: {priority: 6, cooldown: 24 * time.Hour, bucket: bucketChallenges, dailyCap: 1, needsLLM: true, op: cost.OpContent},
	ActionChallengeSubmit: {priority: 9, cooldown: 0, needsLLM: true, op: cost.OpContent},
	ActionChallengeVote:   {priority: 2, cooldown: 2 * time.Hour},
	ActionSignal:          {priority: 4, cooldown: 2 * time.Hour, bucket: bucketSignals, dailyCap: 12, op: cost.OpSignal},
}

// forcedScore is the override used when an unmet submission obligation
// must win the tick. Only ActionChallengeSubmit may use it; if a second
// kind ever needs must-run-now semantics this needs a real priority queue.
const forcedScore = 100.0

// publishDailyCap bounds external publishes of spoken thoughts per UTC day.
const publishDailyCap = 15
