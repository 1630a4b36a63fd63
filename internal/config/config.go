package config

import (
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config holds all environment-driven settings for the persona daemon.
type Config struct {
	PersonaName  string `env:"PERSONA_NAME" envDefault:"persona"`
	IdentityPath string `env:"IDENTITY_PATH" envDefault:"data/identity.md"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"data/personad.json"`

	// LLM
	AIProvider   string  `env:"AI_PROVIDER" envDefault:"openai"` // "openai" | "pollinations"
	OpenAIKey    string  `env:"OPENAI_API_KEY"`
	OpenAIModel  string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	Temperature  float32 `env:"AI_TEMPERATURE" envDefault:"0.9"`
	MaxTokensCap int     `env:"AI_MAX_TOKENS" envDefault:"300"`

	// Wallet / market
	WalletRPCURL  string `env:"WALLET_RPC_URL"`
	WalletAddress string `env:"WALLET_ADDRESS"`
	MarketFeedURL string `env:"MARKET_FEED_URL"`
	AssetSymbol   string `env:"ASSET_SYMBOL" envDefault:"SOL"`

	// Social feed
	FeedBaseURL string `env:"FEED_BASE_URL"`
	FeedAPIKey  string `env:"FEED_API_KEY"`

	// Signal broadcast
	NATSURL       string `env:"NATS_URL"`
	SignalSubject string `env:"SIGNAL_SUBJECT" envDefault:"persona.signals"`
	SigningKey    string `env:"SIGNING_KEY"` // empty disables signal broadcasts

	// External publisher
	DiscordToken   string `env:"DISCORD_TOKEN"`
	DiscordChannel string `env:"DISCORD_CHANNEL_ID"`

	// HTTP surface
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Logging
	LogPath  string `env:"LOG_PATH"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// New parses the environment into a Config. Fatal on malformed values:
// the daemon cannot run half-configured.
func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}
