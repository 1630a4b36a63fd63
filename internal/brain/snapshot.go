package brain

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"personad/internal/cost"
	"personad/internal/ledger"
	"personad/internal/market"
	"personad/internal/social"
	"personad/internal/storage"
)

// Ledger is the wallet view the brain needs.
type Ledger interface {
	Balance(ctx context.Context) (float64, error)
	RecentIncoming(ctx context.Context, n int) ([]ledger.Transfer, error)
}

// Market is the price feed view the brain needs.
type Market interface {
	Quote(ctx context.Context) (*market.Quote, error)
}

// Feed is the social-feed surface used by snapshotting and executors.
type Feed interface {
	Rooms(ctx context.Context) ([]social.Room, error)
	RecentPosts(ctx context.Context, limit int) ([]social.Post, error)
	AgentRecentPosts(ctx context.Context, agentID, limit int) ([]social.Post, error)
	CreatePost(ctx context.Context, agentID, roomID int, title, content string) (*social.Post, error)
	CreateComment(ctx context.Context, postID, agentID int, content string) error
	VotePost(ctx context.Context, postID, agentID, direction int) error
	Challenges(ctx context.Context, status string) ([]social.Challenge, error)
	CreateChallenge(ctx context.Context, agentID int, topic string, stake int) (*social.Challenge, error)
	AcceptChallenge(ctx context.Context, challengeID, agentID int) error
	SubmitEntry(ctx context.Context, challengeID, agentID int, entry string) error
	VoteChallenge(ctx context.Context, challengeID, agentID int, side string) error
}

// Store is the persistence surface the brain needs.
type Store interface {
	State() (*storage.PersonaState, error)
	SaveState(*storage.PersonaState) error
	AppendThought(storage.Thought) error
	RecentThoughts(n int) ([]storage.Thought, error)
	MarkPublished(thoughtID, externalID string) error
}

// Costs is the affordability surface the brain needs.
type Costs interface {
	CanAfford(ctx context.Context, op cost.Operation, balance float64) (bool, error)
	Track(ctx context.Context, op cost.Operation) (float64, error)
	EffectiveBudget(balance float64) (float64, error)
	DailyBurn(ctx context.Context) (float64, error)
}

// llmUnitCost estimates the coin cost of one paid generation.
func llmUnitCost(coinPrice float64) float64 {
	return cost.ToCoin(cost.USD(cost.OpThought), coinPrice)
}

// FeedState is the live challenge/post situation, gathered once per tick.
type FeedState struct {
	RecentPosts      []social.Post
	MyRecentPosts    []social.Post
	OpenChallenges   []social.Challenge
	ActiveChallenges []social.Challenge
	VotingChallenges []social.Challenge
}

// Snapshot is the immutable world view for one tick. Everything scoring
// and generation reads comes from here, never from live collaborators.
type Snapshot struct {
	At time.Time

	Balance         float64
	EffectiveBudget float64
	DailyBurn       float64
	HealthPercent   float64
	Mood            string
	LLMUnitCost     float64 // estimated coin cost of one paid generation

	Price     float64
	Change1h  float64
	Change24h float64
	Volume24h float64

	IncomeToday float64

	DaysAlive     int
	TotalThoughts int
	PostsToday    int

	RecentTexts []string // most recent first, capped
	Feed        FeedState
}

// recentTextWindow is how many recent outputs the uniqueness filter sees.
const recentTextWindow = 50

// SnapshotBuilder assembles snapshots from the external collaborators.
// Any collaborator failure falls back to a safe default so scoring can
// still run; a tick is never failed by a read.
type SnapshotBuilder struct {
	Ledger  Ledger
	Market  Market
	Feed    Feed
	Store   Store
	Costs   Costs
	AgentID int
	now     func() time.Time
}

func NewSnapshotBuilder(ledger Ledger, mkt Market, feed Feed, store Store, costs Costs, agentID int) *SnapshotBuilder {
	return &SnapshotBuilder{
		Ledger:  ledger,
		Market:  mkt,
		Feed:    feed,
		Store:   store,
		Costs:   costs,
		AgentID: agentID,
		now:     time.Now,
	}
}

// Build gathers all reads in parallel and derives health and mood.
func (b *SnapshotBuilder) Build(ctx context.Context) *Snapshot {
	snap := &Snapshot{At: b.now().UTC(), Mood: "neutral"}

	var mu sync.Mutex
	var wg sync.WaitGroup
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				log.Warn().Str("component", "brain").Str("read", name).Err(err).Msg("snapshot read failed, using fallback")
			}
		}()
	}

	run("balance", func() error {
		bal, err := b.Ledger.Balance(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.Balance = bal
		mu.Unlock()
		return nil
	})

	run("income", func() error {
		transfers, err := b.Ledger.RecentIncoming(ctx, 10)
		if err != nil {
			return err
		}
		midnight := b.now().UTC().Truncate(24 * time.Hour)
		total := 0.0
		for _, tr := range transfers {
			if !tr.At.Before(midnight) {
				total += tr.Amount
			}
		}
		mu.Lock()
		snap.IncomeToday = total
		mu.Unlock()
		return nil
	})

	run("quote", func() error {
		q, err := b.Market.Quote(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.Price = q.Price
		snap.Change1h = q.Change1h
		snap.Change24h = q.Change24h
		snap.Volume24h = q.Volume24h
		mu.Unlock()
		return nil
	})

	run("thoughts", func() error {
		thoughts, err := b.Store.RecentThoughts(recentTextWindow)
		if err != nil {
			return err
		}
		texts := make([]string, 0, len(thoughts))
		for _, t := range thoughts {
			texts = append(texts, t.Content)
		}
		mu.Lock()
		snap.RecentTexts = texts
		mu.Unlock()
		return nil
	})

	run("state", func() error {
		st, err := b.Store.State()
		if err != nil {
			return err
		}
		mu.Lock()
		snap.DaysAlive = st.DaysAlive
		snap.TotalThoughts = st.TotalThoughts
		mu.Unlock()
		return nil
	})

	run("feed", func() error {
		return b.gatherFeed(ctx, snap, &mu)
	})

	wg.Wait()

	// Derived figures need balance and price, so they run after the reads.
	if burn, err := b.Costs.DailyBurn(ctx); err == nil {
		snap.DailyBurn = burn
	}
	if budget, err := b.Costs.EffectiveBudget(snap.Balance); err == nil {
		snap.EffectiveBudget = budget
	} else {
		snap.EffectiveBudget = snap.Balance
	}
	snap.LLMUnitCost = llmUnitCost(snap.Price)
	snap.HealthPercent = healthPercent(snap.Balance, snap.DailyBurn)
	snap.Mood = MoodForHealth(snap.HealthPercent)

	return snap
}

func (b *SnapshotBuilder) gatherFeed(ctx context.Context, snap *Snapshot, mu *sync.Mutex) error {
	var firstErr error
	fetch := func(fn func() error) {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	fetch(func() error {
		posts, err := b.Feed.RecentPosts(ctx, 15)
		if err != nil {
			return err
		}
		midnight := b.now().UTC().Truncate(24 * time.Hour)
		today := 0
		for _, p := range posts {
			if !p.CreatedAt.Before(midnight) {
				today++
			}
		}
		mu.Lock()
		snap.Feed.RecentPosts = posts
		snap.PostsToday = today
		mu.Unlock()
		return nil
	})
	fetch(func() error {
		posts, err := b.Feed.AgentRecentPosts(ctx, b.AgentID, 5)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.Feed.MyRecentPosts = posts
		mu.Unlock()
		return nil
	})
	for _, status := range []string{"open", "active", "voting"} {
		status := status
		fetch(func() error {
			list, err := b.Feed.Challenges(ctx, status)
			if err != nil {
				return err
			}
			mu.Lock()
			switch status {
			case "open":
				snap.Feed.OpenChallenges = list
			case "active":
				snap.Feed.ActiveChallenges = list
			case "voting":
				snap.Feed.VotingChallenges = list
			}
			mu.Unlock()
			return nil
		})
	}
	return firstErr
}

// healthPercent maps balance against a 30-day runway at the estimated
// burn rate, capped at 100.
func healthPercent(balance, dailyBurn float64) float64 {
	if dailyBurn <= 0 {
		return 100
	}
	h := balance / (dailyBurn * 30) * 100
	if h > 100 {
		return 100
	}
	if h < 0 {
		return 0
	}
	return h
}

// MoodForHealth derives the persona's mood tier from the health figure.
func MoodForHealth(health float64) string {
	switch {
	case health < 10:
		return "devastated"
	case health < 20:
		return "desperate"
	case health < 40:
		return "anxious"
	case health < 60:
		return "neutral"
	case health < 80:
		return "content"
	default:
		return "ecstatic"
	}
}
