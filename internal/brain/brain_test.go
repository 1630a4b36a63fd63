package brain

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personad/internal/ai"
	"personad/internal/broadcast"
	"personad/internal/cost"
	"personad/internal/ledger"
	"personad/internal/market"
	"personad/internal/social"
	"personad/internal/storage"
)

type fakeLedger struct {
	balance  float64
	incoming []ledger.Transfer
	err      error
}

func (f *fakeLedger) Balance(context.Context) (float64, error) { return f.balance, f.err }
func (f *fakeLedger) RecentIncoming(context.Context, int) ([]ledger.Transfer, error) {
	return f.incoming, f.err
}

type fakeMarket struct {
	quote market.Quote
	err   error
}

func (f *fakeMarket) Quote(context.Context) (*market.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	q := f.quote
	return &q, nil
}

type fakeFeed struct {
	mu       sync.Mutex
	rooms    []social.Room
	posts    []social.Post
	open     []social.Challenge
	active   []social.Challenge
	voting   []social.Challenge
	comments int
	votes    int
	voteErr  error
}

func (f *fakeFeed) Rooms(context.Context) ([]social.Room, error) { return f.rooms, nil }
func (f *fakeFeed) RecentPosts(context.Context, int) ([]social.Post, error) {
	return f.posts, nil
}
func (f *fakeFeed) AgentRecentPosts(context.Context, int, int) ([]social.Post, error) {
	return nil, nil
}
func (f *fakeFeed) CreatePost(_ context.Context, agentID, roomID int, title, content string) (*social.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := social.Post{ID: len(f.posts) + 1, AgentID: agentID, RoomID: roomID, Title: title, Content: content}
	f.posts = append(f.posts, p)
	return &p, nil
}
func (f *fakeFeed) CreateComment(context.Context, int, int, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments++
	return nil
}
func (f *fakeFeed) VotePost(context.Context, int, int, int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voteErr != nil {
		return f.voteErr
	}
	f.votes++
	return nil
}
func (f *fakeFeed) Challenges(_ context.Context, status string) ([]social.Challenge, error) {
	switch status {
	case "open":
		return f.open, nil
	case "active":
		return f.active, nil
	default:
		return f.voting, nil
	}
}
func (f *fakeFeed) CreateChallenge(context.Context, int, string, int) (*social.Challenge, error) {
	return &social.Challenge{ID: 1}, nil
}
func (f *fakeFeed) AcceptChallenge(context.Context, int, int) error       { return nil }
func (f *fakeFeed) SubmitEntry(context.Context, int, int, string) error   { return nil }
func (f *fakeFeed) VoteChallenge(context.Context, int, int, string) error { return nil }

type fakeStore struct {
	mu       sync.Mutex
	state    storage.PersonaState
	thoughts []storage.Thought
}

func (f *fakeStore) State() (*storage.PersonaState, error) {
	st := f.state
	return &st, nil
}
func (f *fakeStore) SaveState(st *storage.PersonaState) error {
	f.state = *st
	return nil
}
func (f *fakeStore) AppendThought(t storage.Thought) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thoughts = append(f.thoughts, t)
	return nil
}
func (f *fakeStore) RecentThoughts(n int) ([]storage.Thought, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Thought, 0, n)
	for i := len(f.thoughts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.thoughts[i])
	}
	return out, nil
}
func (f *fakeStore) MarkPublished(id, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.thoughts {
		if f.thoughts[i].ID == id {
			f.thoughts[i].PublishedID = externalID
		}
	}
	return nil
}

type fakeCosts struct {
	budget    float64
	burn      float64
	affordErr error
	tracked   []cost.Operation
}

func (f *fakeCosts) CanAfford(_ context.Context, op cost.Operation, balance float64) (bool, error) {
	if f.affordErr != nil {
		return false, f.affordErr
	}
	return f.budget > 0, nil
}
func (f *fakeCosts) Track(_ context.Context, op cost.Operation) (float64, error) {
	f.tracked = append(f.tracked, op)
	return 0.001, nil
}
func (f *fakeCosts) EffectiveBudget(float64) (float64, error) { return f.budget, nil }
func (f *fakeCosts) DailyBurn(context.Context) (float64, error) {
	return f.burn, nil
}

type fakeAI struct {
	replies []string
	calls   int
	err     error
}

func (f *fakeAI) Complete(context.Context, string, string, ai.Options) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return reply, nil
}

type fakePub struct {
	texts []string
}

func (f *fakePub) Publish(_ context.Context, text string) (string, error) {
	f.texts = append(f.texts, text)
	return "ext-1", nil
}

type fakeCast struct {
	sigs []broadcast.Signal
}

func (f *fakeCast) Broadcast(sig broadcast.Signal) error {
	f.sigs = append(f.sigs, sig)
	return nil
}

type world struct {
	brain  *Brain
	clock  *fakeClock
	ledger *fakeLedger
	feed   *fakeFeed
	store  *fakeStore
	costs  *fakeCosts
	ai     *fakeAI
	pub    *fakePub
	cast   *fakeCast
}

func newWorld(seed int64) *world {
	w := &world{
		clock:  newFakeClock(),
		ledger: &fakeLedger{balance: 5},
		feed:   &fakeFeed{},
		store:  &fakeStore{},
		costs:  &fakeCosts{budget: 5, burn: 0.01},
		ai:     &fakeAI{replies: []string{"fresh original observation about existence"}},
		pub:    &fakePub{},
		cast:   &fakeCast{},
	}
	mkt := &fakeMarket{quote: market.Quote{Price: 0.5}}
	builder := NewSnapshotBuilder(w.ledger, mkt, w.feed, w.store, w.costs, 7)
	builder.now = w.clock.now
	w.brain = New(Options{
		PersonaName: "tester",
		Identity:    "you are a test persona",
		AgentID:     7,
		AssetSymbol: "SOL",
		Builder:     builder,
		AI:          w.ai,
		Feed:        w.feed,
		Store:       w.store,
		Costs:       w.costs,
		Pub:         w.pub,
		Cast:        w.cast,
		Clock:       w.clock.now,
		Rand:        rand.New(rand.NewSource(seed)),
	})
	return w
}

func TestTickSpeakSuccess(t *testing.T) {
	w := newWorld(1)
	w.costs.budget = 0.001 // below one generation, only emergency speak stays viable

	d, err := w.brain.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, d.Act)
	assert.Equal(t, ActionSpeak, d.Kind, "empty world leaves only speaking viable")

	require.Len(t, w.store.thoughts, 1)
	assert.Equal(t, "fresh original observation about existence", w.store.thoughts[0].Content)
	assert.Contains(t, w.costs.tracked, cost.OpThought)

	w.brain.mu.Lock()
	_, ran := w.brain.lastRun[ActionSpeak]
	w.brain.mu.Unlock()
	assert.True(t, ran, "cooldown advanced after success")
}

func TestTickExecutorFailureLeavesStateUntouched(t *testing.T) {
	w := newWorld(1)
	w.costs.budget = 0.001
	w.ai.err = errors.New("llm down")

	_, err := w.brain.Tick(context.Background())
	require.Error(t, err)

	w.brain.mu.Lock()
	defer w.brain.mu.Unlock()
	assert.Empty(t, w.brain.lastRun, "failed action stays eligible")
	assert.Empty(t, w.brain.counts)
}

func TestTickNoViableAction(t *testing.T) {
	w := newWorld(1)
	w.costs.budget = 0
	w.brain.mu.Lock()
	w.brain.lastRun[ActionSpeak] = w.clock.now().UTC()
	w.brain.mu.Unlock()

	d, err := w.brain.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, d.Act, "everything gated, tick is a no-op")
	assert.Empty(t, w.store.thoughts)
}

func TestTickSkippedByEmissionLimiter(t *testing.T) {
	w := newWorld(1)
	w.brain.limiter.RecordEmission() // inside the min gap

	d, err := w.brain.Tick(context.Background())
	require.NoError(t, err, "a closed gate is a skip, not a failure")
	require.True(t, d.Act)

	w.brain.mu.Lock()
	defer w.brain.mu.Unlock()
	assert.Empty(t, w.brain.lastRun, "skipped action does not advance cooldown")
}

func TestDailyRollover(t *testing.T) {
	w := newWorld(1)
	w.brain.markDone(ActionFeedPost)
	w.brain.markDone(ActionSignal)
	assert.Equal(t, 1, w.brain.Status().DailyCounts["posts"])

	w.clock.advance(25 * time.Hour)
	w.brain.rollover()

	counts := w.brain.Status().DailyCounts
	assert.Zero(t, counts["posts"])
	assert.Zero(t, counts["signals"])
}

func TestForcedSubmitEndToEnd(t *testing.T) {
	w := newWorld(3)
	w.feed.active = []social.Challenge{
		{ID: 9, Topic: "best one-liner", Status: "active", ChallengerID: 7, ChallengerEntry: ""},
	}

	d, err := w.brain.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, d.Act)
	assert.Equal(t, ActionChallengeSubmit, d.Kind)
	assert.Equal(t, forcedScore, d.Score)
}

func TestAffordabilityRecheckFailureSkipsPaidAction(t *testing.T) {
	w := newWorld(3)
	w.feed.active = []social.Challenge{
		{ID: 9, Topic: "best one-liner", Status: "active", ChallengerID: 7, ChallengerEntry: ""},
	}
	w.costs.affordErr = errors.New("price feed down")

	d, err := w.brain.Tick(context.Background())
	require.NoError(t, err, "unconfirmed budget is a skip, not a failure")
	require.True(t, d.Act)
	assert.Equal(t, ActionChallengeSubmit, d.Kind)
	assert.Zero(t, w.ai.calls, "nothing is generated without budget confirmation")

	w.brain.mu.Lock()
	defer w.brain.mu.Unlock()
	assert.Empty(t, w.brain.lastRun, "skipped action stays eligible")
}

func TestStatusReflectsSnapshot(t *testing.T) {
	w := newWorld(1)
	_, err := w.brain.Tick(context.Background())
	require.NoError(t, err)

	st := w.brain.Status()
	assert.Equal(t, "tester", st.Persona)
	assert.Equal(t, 5.0, st.Balance)
	assert.NotEmpty(t, st.LastScores)
}
