package tp

import "time"

// Config defines the tunables of the ISO-TP transport.
type Config struct {
	// PaddingByte, if not nil, pads every outgoing frame to 8 bytes.
	PaddingByte *byte

	TimeoutN_Bs time.Duration // until reception of FlowControl
	TimeoutN_Cr time.Duration // until reception of next CF

	// BlockSize and StMin are advertised to the peer in our FlowControl frames.
	BlockSize int
	StMin     byte

	// MaxWaitFrames limits consecutive FC(WAIT) frames before giving up.
	MaxWaitFrames int
}

// DefaultConfig returns the ISO 15765-2 recommended timeouts, no padding,
// unlimited block size and no separation time.
func DefaultConfig() Config {
	return Config{
		TimeoutN_Bs:   1000 * time.Millisecond,
		TimeoutN_Cr:   1000 * time.Millisecond,
		BlockSize:     0,
		StMin:         0,
		MaxWaitFrames: 20,
	}
}

// Padding is a helper for filling Config.PaddingByte.
func Padding(b byte) *byte { return &b }
