package ai

import (
	"context"
	"fmt"

	"personad/internal/config"
)

// Options tunes a single completion call.
type Options struct {
	MaxTokens   int
	Temperature float32
}

// Provider is the completion service the brain generates text through.
type Provider interface {
	Complete(ctx context.Context, system, user string, opts Options) (string, error)
}

// FromConfig builds the configured provider.
func FromConfig(cfg *config.Config) (Provider, error) {
	switch cfg.AIProvider {
	case "openai", "":
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel), nil
	case "pollinations":
		return NewPollinationsProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %s", cfg.AIProvider)
	}
}
