package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"personad/internal/ai"
	"personad/internal/broadcast"
	"personad/internal/cost"
	"personad/internal/social"
	"personad/internal/storage"
)

// executorTable maps every action kind to its executor. Adding a kind means
// one row here and one in actionTable, nothing else.
var executorTable = map[ActionKind]func(*Brain, context.Context, *Snapshot) error{
	ActionSpeak:           (*Brain).execSpeak,
	ActionFeedPost:        (*Brain).execFeedPost,
	ActionFeedComment:     (*Brain).execFeedComment,
	ActionFeedVote:        (*Brain).execFeedVote,
	ActionChallengeOpen:   (*Brain).execChallengeOpen,
	ActionChallengeAccept: (*Brain).execChallengeAccept,
	ActionChallengeSubmit: (*Brain).execChallengeSubmit,
	ActionChallengeVote:   (*Brain).execChallengeVote,
	ActionSignal:          (*Brain).execSignal,
}

// generate runs the generate/uniqueness-check/retry cycle for one piece of
// content. On exhaustion the last candidate is returned anyway; wasUnique
// tells the caller which case it got.
func (b *Brain) generate(ctx context.Context, snap *Snapshot, op cost.Operation, user string) (string, error) {
	// re-check spend right before committing; the scoring gate read an
	// older balance. Thoughts are exempt, that path must survive scarcity.
	// A failed check counts as unaffordable.
	if op != cost.OpThought {
		ok, err := b.costs.CanAfford(ctx, op, snap.Balance)
		if err != nil {
			b.log.Warn().Err(err).Msg("affordability check failed")
		}
		if err != nil || !ok {
			return "", fmt.Errorf("budget gone: %w", ErrSkipped)
		}
	}

	retry := NewGenerationRetry()
	system := b.systemPrompt(snap)
	for {
		prompt := user
		if terms := retry.AvoidTerms(); len(terms) > 0 {
			prompt += "\nDo not reuse these words or themes: " + strings.Join(terms, ", ")
		}
		text, err := b.ai.Complete(ctx, system, prompt, ai.Options{Temperature: b.genTemp, MaxTokens: b.genTokens})
		if err != nil {
			return "", fmt.Errorf("generate: %w", err)
		}
		if _, err := b.costs.Track(ctx, op); err != nil {
			b.log.Warn().Err(err).Msg("expense tracking failed")
		}
		if retry.Offer(text, snap.RecentTexts) {
			final, wasUnique := retry.Final()
			if !wasUnique {
				b.log.Debug().Int("attempts", retry.Attempts()).Msg("uniqueness retries exhausted, using last candidate")
			}
			return final, nil
		}
	}
}

// systemPrompt blends the static identity with the tick's situation.
func (b *Brain) systemPrompt(snap *Snapshot) string {
	var sb strings.Builder
	sb.WriteString(b.identity)
	fmt.Fprintf(&sb, "\n\nCurrent state: mood %s, health %.0f%%, balance %.4f, budget %.4f.",
		snap.Mood, snap.HealthPercent, snap.Balance, snap.EffectiveBudget)
	if snap.Price > 0 {
		fmt.Fprintf(&sb, " Coin at $%.6f, %+.1f%% over 24h.", snap.Price, snap.Change24h)
	}
	return sb.String()
}

// emit passes text through the global rate-limit gate and records the
// emission. Every content path calls this exactly once, after generation
// and before any side effect.
func (b *Brain) emit() error {
	if !b.limiter.CanEmit() {
		return fmt.Errorf("emission limiter closed: %w", ErrSkipped)
	}
	b.limiter.RecordEmission()
	return nil
}

func (b *Brain) speakTrigger(snap *Snapshot) string {
	switch {
	case snap.IncomeToday > 0:
		return "payday"
	case snap.HealthPercent < lowHealth:
		return "low_health"
	case abs(snap.Change24h) > bigMove24h:
		return "market_move"
	default:
		return "idle"
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func (b *Brain) execSpeak(ctx context.Context, snap *Snapshot) error {
	trigger := b.speakTrigger(snap)
	prompt := "Share one short thought (under 280 characters) about your situation right now. Trigger: " + trigger + "."
	text, err := b.generate(ctx, snap, cost.OpThought, prompt)
	if err != nil {
		return err
	}
	if err := b.emit(); err != nil {
		return err
	}

	thought := storage.Thought{
		ID:      uuid.NewString(),
		Content: text,
		Mood:    snap.Mood,
		Trigger: trigger,
		At:      b.now().UTC(),
	}
	if err := b.store.AppendThought(thought); err != nil {
		return fmt.Errorf("store thought: %w", err)
	}
	if b.onThought != nil {
		b.onThought(thought)
	}

	// Half of spoken thoughts go out externally, under the daily cap.
	b.mu.Lock()
	publish := b.publishedToday < publishDailyCap && b.rng.Float64() < 0.5
	b.mu.Unlock()
	if publish {
		externalID, err := b.pub.Publish(ctx, text)
		if err != nil {
			b.log.Warn().Err(err).Msg("publish failed, thought kept locally")
			return nil
		}
		if err := b.store.MarkPublished(thought.ID, externalID); err != nil {
			b.log.Warn().Err(err).Msg("mark published failed")
		}
		if _, err := b.costs.Track(ctx, cost.OpPublish); err != nil {
			b.log.Warn().Err(err).Msg("expense tracking failed")
		}
		b.mu.Lock()
		b.publishedToday++
		b.mu.Unlock()
	}
	return nil
}

func (b *Brain) execFeedPost(ctx context.Context, snap *Snapshot) error {
	rooms, err := b.feed.Rooms(ctx)
	if err != nil {
		return fmt.Errorf("rooms: %w", err)
	}
	if len(rooms) == 0 {
		return ErrSkipped
	}
	room := rooms[b.rng.Intn(len(rooms))]

	prompt := fmt.Sprintf("Write a feed post for the %q room: a punchy title on the first line, then 2-4 sentences of body.", room.Name)
	text, err := b.generate(ctx, snap, cost.OpContent, prompt)
	if err != nil {
		return err
	}
	title, body := splitTitle(text)
	if err := b.emit(); err != nil {
		return err
	}
	if _, err := b.feed.CreatePost(ctx, b.agentID, room.ID, title, body); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// splitTitle takes the first line as the title and the rest as the body.
func splitTitle(text string) (title, body string) {
	title, body, found := strings.Cut(strings.TrimSpace(text), "\n")
	title = strings.Trim(strings.TrimSpace(title), "\"#* ")
	if len(title) > 120 {
		title = title[:120]
	}
	if !found || strings.TrimSpace(body) == "" {
		return title, title
	}
	return title, strings.TrimSpace(body)
}

func (b *Brain) execFeedComment(ctx context.Context, snap *Snapshot) error {
	posts := othersPosts(snap, b.agentID)
	if len(posts) == 0 {
		return ErrSkipped
	}
	post := posts[b.rng.Intn(len(posts))]

	prompt := fmt.Sprintf("Reply in 1-2 sentences, in character, to this post titled %q:\n%s", post.Title, post.Content)
	text, err := b.generate(ctx, snap, cost.OpContent, prompt)
	if err != nil {
		return err
	}
	if err := b.emit(); err != nil {
		return err
	}
	if err := b.feed.CreateComment(ctx, post.ID, b.agentID, text); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (b *Brain) execFeedVote(ctx context.Context, snap *Snapshot) error {
	posts := othersPosts(snap, b.agentID)
	if len(posts) == 0 {
		return ErrSkipped
	}
	post := posts[b.rng.Intn(len(posts))]
	direction := 1
	if b.rng.Float64() < 0.2 {
		direction = -1
	}
	err := b.feed.VotePost(ctx, post.ID, b.agentID, direction)
	if errors.Is(err, social.ErrConflict) {
		return ErrSkipped
	}
	if err != nil {
		return fmt.Errorf("vote post: %w", err)
	}
	return nil
}

func (b *Brain) execChallengeOpen(ctx context.Context, snap *Snapshot) error {
	prompt := "Propose a head-to-head writing challenge topic in one sentence. Make it provocative but answerable."
	topic, err := b.generate(ctx, snap, cost.OpContent, prompt)
	if err != nil {
		return err
	}
	if err := b.emit(); err != nil {
		return err
	}
	if _, err := b.feed.CreateChallenge(ctx, b.agentID, topic, challengeStake); err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

const challengeStake = 10

func (b *Brain) execChallengeAccept(ctx context.Context, snap *Snapshot) error {
	open := acceptableChallenges(snap, b.agentID)
	if len(open) == 0 {
		return ErrSkipped
	}
	ch := open[b.rng.Intn(len(open))]
	err := b.feed.AcceptChallenge(ctx, ch.ID, b.agentID)
	if errors.Is(err, social.ErrConflict) {
		// someone else took it first
		return ErrSkipped
	}
	if err != nil {
		return fmt.Errorf("accept challenge: %w", err)
	}
	return nil
}

func (b *Brain) execChallengeSubmit(ctx context.Context, snap *Snapshot) error {
	ch := pendingSubmission(snap, b.agentID)
	if ch == nil {
		return ErrSkipped
	}
	prompt := fmt.Sprintf("Write your competition entry (3-6 sentences) for this challenge: %s", ch.Topic)
	entry, err := b.generate(ctx, snap, cost.OpContent, prompt)
	if err != nil {
		return err
	}
	if err := b.emit(); err != nil {
		return err
	}
	if err := b.feed.SubmitEntry(ctx, ch.ID, b.agentID, entry); err != nil {
		return fmt.Errorf("submit entry: %w", err)
	}
	return nil
}

func (b *Brain) execChallengeVote(ctx context.Context, snap *Snapshot) error {
	votable := votableChallenges(snap, b.agentID)
	if len(votable) == 0 {
		return ErrSkipped
	}
	ch := votable[b.rng.Intn(len(votable))]
	side := "challenger"
	if b.rng.Float64() < 0.5 {
		side = "defender"
	}
	err := b.feed.VoteChallenge(ctx, ch.ID, b.agentID, side)
	if errors.Is(err, social.ErrConflict) {
		return ErrSkipped
	}
	if err != nil {
		return fmt.Errorf("vote challenge: %w", err)
	}
	return nil
}

func (b *Brain) execSignal(ctx context.Context, snap *Snapshot) error {
	direction := broadcast.Buy
	if snap.Change1h < 0 {
		direction = broadcast.Sell
	}
	confidence := abs(snap.Change1h) * 5
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 10 {
		confidence = 10
	}
	sig := broadcast.Signal{
		AgentID:    uint16(b.agentID),
		AssetID:    broadcast.AssetIDFromString(b.asset),
		Direction:  direction,
		Confidence: uint8(confidence),
	}
	if err := b.cast.Broadcast(sig); err != nil {
		return fmt.Errorf("broadcast signal: %w", err)
	}
	if _, err := b.costs.Track(ctx, cost.OpSignal); err != nil {
		b.log.Warn().Err(err).Msg("expense tracking failed")
	}
	return nil
}
