package tp

import (
	"encoding/hex"
	"fmt"
)

// CanMessage 经典 CAN 报文 (最多 8 字节数据)。
type CanMessage struct {
	ArbitrationID uint32
	Data          []byte
	IsExtendedID  bool
}

func (m CanMessage) String() string {
	id := fmt.Sprintf("%03X", m.ArbitrationID)
	if m.IsExtendedID {
		id = fmt.Sprintf("%08X", m.ArbitrationID)
	}
	return fmt.Sprintf("<CanMessage %s [%d] %s>", id, len(m.Data), hex.EncodeToString(m.Data))
}

// State 收发状态机的状态。
type State uint8

const (
	StateIdle State = iota
	StateWaitFC
	StateWaitCF
	StateTransmit
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitFC:
		return "wait-fc"
	case StateWaitCF:
		return "wait-cf"
	case StateTransmit:
		return "transmit"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// FlowStatus 流控帧中的 FS 字段。
type FlowStatus uint8

const (
	FlowStatusContinueToSend FlowStatus = 0x00
	FlowStatusWait           FlowStatus = 0x01
	FlowStatusOverflow       FlowStatus = 0x02
)
