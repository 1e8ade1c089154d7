package driver

import (
	"context"
)

// UnifiedCANMessage 通用的经典 CAN 报文，用于在 channel 中传递。
// 屏蔽了 SocketCAN / 虚拟总线 / USB 监听行等底层来源的差异。
type UnifiedCANMessage struct {
	ID         uint32
	DLC        byte
	Data       [8]byte
	IsExtended bool
}

// Payload 返回按 DLC 截取的数据
func (m UnifiedCANMessage) Payload() []byte {
	n := int(m.DLC)
	if n > len(m.Data) {
		n = len(m.Data)
	}
	return m.Data[:n]
}

// CANDriver 定义了原始 CAN 驱动的统一接口
type CANDriver interface {
	Init() error
	Start()
	Stop()
	Write(id uint32, data []byte) error
	RxChan() <-chan UnifiedCANMessage
	Context() context.Context
}
