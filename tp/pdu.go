package tp

import (
	"fmt"
	"time"
)

const (
	pciSingleFrame      = 0x00
	pciFirstFrame       = 0x10
	pciConsecutiveFrame = 0x20
	pciFlowControl      = 0x30

	// classic CAN only
	frameLength = 8
	// 12-bit FF_DL
	MaxPayloadSize = 4095
)

type Frame interface{ isFrame() }

type SingleFrame struct{ Data []byte }

type FirstFrame struct {
	TotalSize int
	Data      []byte
}

type ConsecutiveFrame struct {
	SequenceNumber int
	Data           []byte
}

type FlowControlFrame struct {
	FlowStatus FlowStatus
	BlockSize  int
	STmin      time.Duration
}

func (*SingleFrame) isFrame()      {}
func (*FirstFrame) isFrame()       {}
func (*ConsecutiveFrame) isFrame() {}
func (*FlowControlFrame) isFrame() {}

func decodeSTmin(b byte) time.Duration {
	switch {
	case b <= 0x7F:
		return time.Duration(b) * time.Millisecond
	case b >= 0xF1 && b <= 0xF9:
		return time.Duration(b-0xF0) * 100 * time.Microsecond
	}
	// reserved values are treated as the maximum
	return 127 * time.Millisecond
}

// ParseFrame decodes the PCI of one classic CAN payload.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	switch data[0] & 0xF0 {
	case pciSingleFrame:
		length := int(data[0] & 0x0F)
		if length == 0 || length > frameLength-1 {
			return nil, fmt.Errorf("invalid SF length %d", length)
		}
		if len(data)-1 < length {
			return nil, fmt.Errorf("SF truncated: want %d bytes, have %d", length, len(data)-1)
		}
		return &SingleFrame{Data: data[1 : 1+length]}, nil
	case pciFirstFrame:
		if len(data) < 2 {
			return nil, fmt.Errorf("FF shorter than 2 bytes")
		}
		total := int(data[0]&0x0F)<<8 | int(data[1])
		if total <= frameLength-1 {
			return nil, fmt.Errorf("FF length %d fits in a single frame", total)
		}
		return &FirstFrame{TotalSize: total, Data: data[2:]}, nil
	case pciConsecutiveFrame:
		return &ConsecutiveFrame{SequenceNumber: int(data[0] & 0x0F), Data: data[1:]}, nil
	case pciFlowControl:
		if len(data) < 3 {
			return nil, fmt.Errorf("FC shorter than 3 bytes")
		}
		return &FlowControlFrame{
			FlowStatus: FlowStatus(data[0] & 0x0F),
			BlockSize:  int(data[1]),
			STmin:      decodeSTmin(data[2]),
		}, nil
	}
	return nil, fmt.Errorf("unknown PCI type 0x%02X", data[0]&0xF0)
}
