package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalRoundTrip(t *testing.T) {
	sig := Signal{
		AgentID:    512,
		AssetID:    AssetIDFromString("SOL"),
		Direction:  Sell,
		Confidence: 85,
	}

	frame := sig.Encode()
	require.Len(t, frame, 39)

	decoded, err := DecodeSignal(frame)
	require.NoError(t, err)
	assert.Equal(t, sig, decoded)
}

func TestDecodeSignalRejectsBadFrames(t *testing.T) {
	_, err := DecodeSignal([]byte{0x50, 0x53})
	assert.Error(t, err, "short frame")

	good := Signal{AgentID: 1, Direction: Buy, Confidence: 50}.Encode()

	bad := append([]byte(nil), good...)
	bad[0] = 0xFF
	_, err = DecodeSignal(bad)
	assert.Error(t, err, "wrong magic")

	bad = append([]byte(nil), good...)
	bad[37] = 0x09
	_, err = DecodeSignal(bad)
	assert.Error(t, err, "unknown direction")
}

func TestAssetIDFromStringStable(t *testing.T) {
	a := AssetIDFromString("SOL")
	b := AssetIDFromString("SOL")
	c := AssetIDFromString("BONK")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
