package retrylimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, fastConfig(), func() error {
		calls++
		if calls < 3 {
			return &StatusError{Code: http.StatusBadGateway, Msg: "flaky"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	bad := errors.New("bad request")
	err := Do(context.Background(), nil, fastConfig(), func() error {
		calls++
		return &Permanent{Err: bad}
	})
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls, "permanent errors are not retried")
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, fastConfig(), func() error {
		calls++
		return &StatusError{Code: http.StatusInternalServerError, Msg: "down"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var se *StatusError
	assert.ErrorAs(t, err, &se, "last error preserved in the chain")
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, nil, Config{MaxAttempts: 2, InitialDelay: time.Minute, Multiplier: 2}, func() error {
		return &StatusError{Code: http.StatusBadGateway}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdaptiveLimiterThrottleAndRecover(t *testing.T) {
	lim := NewAdaptiveLimiter(8, 1, 10, 1, 0.5)
	assert.InDelta(t, 8, lim.Rate(), 1e-9)

	lim.Throttled()
	assert.InDelta(t, 4, lim.Rate(), 1e-9, "pushback halves the rate")

	lim.Throttled()
	lim.Throttled()
	lim.Throttled()
	assert.InDelta(t, 1, lim.Rate(), 1e-9, "rate floors at min")

	// success inside the cooldown window must not bump the rate
	lim.Success()
	assert.InDelta(t, 1, lim.Rate(), 1e-9)
}

func TestAdaptiveLimiterCapsAtMax(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1, 10, 5, 0.5)
	lim.Success()
	assert.InDelta(t, 10, lim.Rate(), 1e-9)
}

func TestShouldThrottle(t *testing.T) {
	assert.True(t, shouldThrottle(&StatusError{Code: http.StatusTooManyRequests}))
	assert.True(t, shouldThrottle(&StatusError{Code: http.StatusServiceUnavailable}))
	assert.False(t, shouldThrottle(&StatusError{Code: http.StatusNotFound}))
	assert.False(t, shouldThrottle(errors.New("plain")))
}
