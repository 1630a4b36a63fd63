package publish

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Publisher pushes finished persona texts to an external audience.
type Publisher interface {
	Publish(ctx context.Context, text string) (externalID string, err error)
}

// LogPublisher only logs; used when no external channel is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, text string) (string, error) {
	log.Info().Str("component", "publish").Msg("no publisher configured, dropping: " + preview(text))
	return "", nil
}

func preview(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
