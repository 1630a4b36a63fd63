package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"personad/internal/ai"
	"personad/internal/api"
	"personad/internal/brain"
	"personad/internal/broadcast"
	"personad/internal/config"
	"personad/internal/cost"
	"personad/internal/ledger"
	"personad/internal/logutil"
	"personad/internal/market"
	"personad/internal/publish"
	"personad/internal/social"
	"personad/internal/storage"
)

const defaultIdentity = "You are a scrappy autonomous persona living on-chain. " +
	"You survive on a small token balance, you have opinions about the market, " +
	"and you speak in short, vivid, slightly unhinged bursts."

// nopBroadcaster stands in when no messaging backend is configured.
type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(sig broadcast.Signal) error {
	log.Debug().Str("component", "broadcast").Stringer("direction", sig.Direction).Msg("signal dropped, no backend")
	return nil
}

func main() {
	cfg := config.New()
	logutil.Setup(cfg.LogPath, cfg.LogLevel)
	log.Info().Str("persona", cfg.PersonaName).Msg("starting personad")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init failed")
	}
	defer store.Close()

	identity := defaultIdentity
	if raw, err := os.ReadFile(cfg.IdentityPath); err == nil && len(raw) > 0 {
		identity = string(raw)
	} else {
		log.Warn().Str("path", cfg.IdentityPath).Msg("identity file missing, using default persona")
	}

	provider, err := ai.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("ai provider init failed")
	}

	wallet := ledger.NewClient(cfg.WalletRPCURL, cfg.WalletAddress)
	quotes := market.NewFeed(cfg.MarketFeedURL)
	feed := social.NewClient(cfg.FeedBaseURL, cfg.FeedAPIKey)

	tracker := cost.NewTracker(store, func(ctx context.Context) (float64, error) {
		q, err := quotes.Quote(ctx)
		if err != nil {
			return 0, err
		}
		return q.Price, nil
	})

	agentID := registerAgent(ctx, feed, cfg)

	var pub publish.Publisher = publish.LogPublisher{}
	if cfg.DiscordToken != "" && cfg.DiscordChannel != "" {
		dp, err := publish.NewDiscordPublisher(cfg.DiscordToken, cfg.DiscordChannel)
		if err != nil {
			log.Fatal().Err(err).Msg("discord publisher init failed")
		}
		defer dp.Close()
		pub = dp
	}

	var cast brain.Broadcaster = nopBroadcaster{}
	if cfg.NATSURL != "" {
		messenger, err := broadcast.NewMessenger(cfg.NATSURL, cfg.SignalSubject)
		if err != nil {
			log.Fatal().Err(err).Msg("nats init failed")
		}
		defer messenger.Close()
		cast = messenger
	}

	bootstrapState(store)

	builder := brain.NewSnapshotBuilder(wallet, quotes, feed, store, tracker, agentID)
	hub := api.NewHub()
	b := brain.New(brain.Options{
		PersonaName: cfg.PersonaName,
		Identity:    identity,
		AgentID:     agentID,
		AssetSymbol: cfg.AssetSymbol,
		CanSign:     cfg.SigningKey != "",
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokensCap,
		Builder:     builder,
		AI:          provider,
		Feed:        feed,
		Store:       store,
		Costs:       tracker,
		Pub:         pub,
		Cast:        cast,
		OnThought:   hub.BroadcastThought,
	})

	server := api.NewServer(b, store, hub, cfg.ListenAddr)
	server.Start()

	b.Run(ctx)

	if err := server.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("final store save failed")
	}
	log.Info().Msg("personad stopped")
}

// registerAgent ensures the persona has a feed identity. A missing feed
// backend is tolerated; the brain's opportunity gates keep feed actions
// off the table when every read comes back empty.
func registerAgent(ctx context.Context, feed *social.Client, cfg *config.Config) int {
	if cfg.FeedBaseURL == "" {
		log.Warn().Msg("no feed backend configured")
		return 0
	}
	agent, err := feed.AgentByName(ctx, cfg.PersonaName)
	if err != nil {
		log.Warn().Err(err).Msg("agent lookup failed")
		return 0
	}
	if agent == nil {
		agent, err = feed.RegisterAgent(ctx, cfg.PersonaName, defaultIdentity)
		if err != nil {
			log.Warn().Err(err).Msg("agent registration failed")
			return 0
		}
		log.Info().Int("agent_id", agent.ID).Msg("registered on feed")
	}
	return agent.ID
}

// bootstrapState initializes the persona row on first run and refreshes
// the days-alive counter on every start.
func bootstrapState(store *storage.Storage) {
	st, err := store.State()
	if err != nil {
		log.Warn().Err(err).Msg("state load failed")
		return
	}
	now := time.Now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
		st.Mood = "neutral"
	}
	st.DaysAlive = int(now.Sub(st.CreatedAt).Hours() / 24)
	if err := store.SaveState(st); err != nil {
		log.Warn().Err(err).Msg("state save failed")
	}
}
