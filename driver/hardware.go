package driver

import (
	"errors"
	"fmt"
	"time"
)

// AdapterType 物理适配器的种类
type AdapterType int

const (
	AdapterUSB AdapterType = iota
	AdapterPassthru
	AdapterSocketCAN
)

func (t AdapterType) String() string {
	switch t {
	case AdapterUSB:
		return "usb"
	case AdapterPassthru:
		return "passthru"
	case AdapterSocketCAN:
		return "socketcan"
	}
	return fmt.Sprintf("adapter(%d)", int(t))
}

// ParseAdapterType 解析配置文件/命令行中的适配器名称
func ParseAdapterType(s string) (AdapterType, error) {
	switch s {
	case "usb", "USB":
		return AdapterUSB, nil
	case "passthru", "Passthru", "j2534":
		return AdapterPassthru, nil
	case "socketcan", "SocketCAN":
		return AdapterSocketCAN, nil
	}
	return 0, fmt.Errorf("unknown adapter type %q", s)
}

// Capabilities 适配器支持的通道类型
type Capabilities struct {
	IsoTP bool
	CAN   bool
}

// HardwareInfo 适配器身份信息，枚举后不再改变，用于重连时重新定位同一设备。
type HardwareInfo struct {
	Name         string
	Vendor       string
	Path         string // 串口路径 / 动态库路径 / 网络接口名
	Capabilities Capabilities
}

func (h HardwareInfo) String() string {
	if h.Vendor == "" {
		return h.Name
	}
	return fmt.Sprintf("%s (%s)", h.Name, h.Vendor)
}

// IsoTPSettings ISO-TP 通道参数
type IsoTPSettings struct {
	BlockSize uint8
	StMin     uint8
	PadFrame  bool
	CANSpeed  uint32
	Extended  bool // 29 位 ID
}

// Adapter 统一的适配器能力接口
type Adapter interface {
	Info() HardwareInfo
	// CreateIsoTPChannel 不等待设备，适配器未打开时立即失败
	CreateIsoTPChannel() (Channel, error)
	// IsConnected 逻辑连接是否仍然存活
	IsConnected() bool
	Close() error
}

// Channel 一条 ISO-TP 负载通道
type Channel interface {
	SetIDs(send, recv uint32) error
	SetIsoTPConfig(cfg IsoTPSettings) error
	Open() error
	Close() error
	Write(payload []byte, timeout time.Duration) error
	// Read 超时返回 ErrBufferEmpty
	Read(timeout time.Duration) ([]byte, error)
	ClearRx() error
}

var (
	ErrDeviceNotFound      = errors.New("device not found")
	ErrInterfaceNotOpen    = errors.New("interface not open")
	ErrChannelNotSupported = errors.New("channel not supported by adapter")
	ErrBufferEmpty         = errors.New("no data received before timeout")
)

// APIError 底层驱动返回的错误，Err 为驱动库给出的原始错误
type APIError struct {
	Code uint32
	Desc string
	Err  error
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("adapter API error %d: %s", e.Code, e.Desc)
	}
	return fmt.Sprintf("adapter API error %d: %s: %v", e.Code, e.Desc, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// UnexpectedAddressError 收到的诊断报文来自非预期的 ID
type UnexpectedAddressError struct {
	Want uint32
	Got  uint32
}

func (e *UnexpectedAddressError) Error() string {
	return fmt.Sprintf("expected rx addr 0x%04X but got 0x%04X", e.Want, e.Got)
}
