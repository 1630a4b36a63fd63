package broadcast

import (
	"fmt"
)

// Signal frame layout, big-endian:
//
//	[0:2]  magic "PS"
//	[2]    message type (0x02 = trade signal)
//	[3:5]  agent id
//	[5:37] asset id (32 bytes, zero-padded)
//	[37]   direction (0x01 buy, 0x02 sell)
//	[38]   confidence 0-100
const (
	magic0         = 0x50 // 'P'
	magic1         = 0x53 // 'S'
	msgSignal      = 0x02
	assetIDLen     = 32
	signalFrameLen = 39
)

// Direction of a trade signal.
type Direction byte

const (
	Buy  Direction = 0x01
	Sell Direction = 0x02
)

func (d Direction) String() string {
	if d == Buy {
		return "BUY"
	}
	return "SELL"
}

// Signal is one broadcastable market call.
type Signal struct {
	AgentID    uint16
	AssetID    [assetIDLen]byte
	Direction  Direction
	Confidence uint8 // 0-100
}

// Encode packs the signal into its wire frame.
func (s Signal) Encode() []byte {
	frame := make([]byte, 0, signalFrameLen)
	frame = append(frame, magic0, magic1, msgSignal)
	frame = append(frame, byte(s.AgentID>>8), byte(s.AgentID))
	frame = append(frame, s.AssetID[:]...)
	frame = append(frame, byte(s.Direction), s.Confidence)
	return frame
}

// DecodeSignal parses a wire frame back into a Signal.
func DecodeSignal(frame []byte) (Signal, error) {
	if len(frame) != signalFrameLen {
		return Signal{}, fmt.Errorf("signal frame: want %d bytes, got %d", signalFrameLen, len(frame))
	}
	if frame[0] != magic0 || frame[1] != magic1 {
		return Signal{}, fmt.Errorf("signal frame: bad magic")
	}
	if frame[2] != msgSignal {
		return Signal{}, fmt.Errorf("signal frame: unknown message type 0x%02x", frame[2])
	}
	s := Signal{
		AgentID:    uint16(frame[3])<<8 | uint16(frame[4]),
		Direction:  Direction(frame[37]),
		Confidence: frame[38],
	}
	copy(s.AssetID[:], frame[5:37])
	if s.Direction != Buy && s.Direction != Sell {
		return Signal{}, fmt.Errorf("signal frame: bad direction 0x%02x", frame[37])
	}
	if s.Confidence > 100 {
		return Signal{}, fmt.Errorf("signal frame: confidence %d out of range", s.Confidence)
	}
	return s, nil
}

// AssetIDFromString zero-pads or truncates a symbol into an asset id.
func AssetIDFromString(s string) [assetIDLen]byte {
	var id [assetIDLen]byte
	copy(id[:], s)
	return id
}
