//go:build windows || (linux && cgo && (amd64 || arm64))

package driver

import (
	"encoding/binary"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roffe/gocan/adapter/passthru"
)

const (
	ptDefaultBaud    = 500000
	ptClearRxTimeout = 0
	ptSkipRxStatus   = passthru.TX_MSG_TYPE | passthru.START_OF_MESSAGE | passthru.TX_INDICATION
)

// ptAPI gocan passthru.PassThru 中用到的部分，便于测试替换
type ptAPI interface {
	PassThruOpen(deviceName string, pDeviceID *uint32) error
	PassThruClose(deviceID uint32) error
	PassThruConnect(deviceID uint32, protocolID uint32, flags uint32, baudRate uint32, pChannelID *uint32) error
	PassThruDisconnect(channelID uint32) error
	PassThruReadMsg(channelID uint32, pMsg *passthru.PassThruMsg, timeout uint32) (uint32, error)
	PassThruWriteMsgs(channelID uint32, pMsg *passthru.PassThruMsg, pNumMsgs *uint32, timeout uint32) error
	PassThruStartMsgFilter(channelID uint32, filterType uint32, pMaskMsg, pPatternMsg, pFlowControlMsg *passthru.PassThruMsg, pMsgID *uint32) error
	Close() error
}

// findPassthruLibraries 系统中已安装的 J2534 驱动 (windows 注册表 / linux ~/.passthru)
func findPassthruLibraries() []PassthruLibrary {
	var out []PassthruLibrary
	for _, dll := range passthru.FindDLLs() {
		if !dll.Capabilities.ISO15765 && !dll.Capabilities.CAN {
			continue
		}
		out = append(out, PassthruLibrary{Name: dll.Name, Vendor: "J2534", Library: dll.FunctionLibrary})
	}
	return out
}

// PassthruAdapter J2534 Passthru 设备
type PassthruAdapter struct {
	mu        sync.Mutex
	pt        ptAPI
	deviceID  uint32
	info      HardwareInfo
	connected atomic.Bool
}

// OpenPassthru 加载驱动库并打开设备
func OpenPassthru(info HardwareInfo) (*PassthruAdapter, error) {
	pt, err := passthru.New(info.Path)
	if err != nil {
		return nil, &APIError{Code: 1, Desc: "load " + info.Path, Err: err}
	}
	a, err := openPassthru(pt, info)
	if err != nil {
		pt.Close()
		return nil, err
	}
	return a, nil
}

func openPassthru(pt ptAPI, info HardwareInfo) (*PassthruAdapter, error) {
	a := &PassthruAdapter{pt: pt, info: info}
	if err := pt.PassThruOpen("", &a.deviceID); err != nil {
		return nil, &APIError{Code: 2, Desc: "PassThruOpen", Err: err}
	}
	a.connected.Store(true)
	log.Printf("Passthru 设备已打开: %s", info)
	return a, nil
}

func (a *PassthruAdapter) Info() HardwareInfo { return a.info }

func (a *PassthruAdapter) IsConnected() bool { return a.connected.Load() }

func (a *PassthruAdapter) CreateIsoTPChannel() (Channel, error) {
	if !a.connected.Load() {
		return nil, ErrInterfaceNotOpen
	}
	return &passthruChannel{adapter: a, speed: ptDefaultBaud}, nil
}

func (a *PassthruAdapter) Close() error {
	if !a.connected.Swap(false) {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.pt.Close()
	if err := a.pt.PassThruClose(a.deviceID); err != nil {
		return &APIError{Code: 3, Desc: "PassThruClose", Err: err}
	}
	log.Printf("Passthru 设备已关闭: %s", a.info)
	return nil
}

type passthruChannel struct {
	adapter   *PassthruAdapter
	txID      uint32
	rxID      uint32
	speed     uint32
	pad       bool
	channelID uint32
	open      bool
}

func (c *passthruChannel) SetIDs(send, recv uint32) error {
	c.txID, c.rxID = send, recv
	return nil
}

func (c *passthruChannel) SetIsoTPConfig(s IsoTPSettings) error {
	if s.CANSpeed != 0 {
		c.speed = s.CANSpeed
	}
	c.pad = s.PadFrame
	return nil
}

func idMsg(id uint32) *passthru.PassThruMsg {
	msg := &passthru.PassThruMsg{ProtocolID: passthru.ISO15765, DataSize: 4}
	binary.BigEndian.PutUint32(msg.Data[:4], id)
	return msg
}

// Open 连接 ISO15765 通道并设置流控过滤器
func (c *passthruChannel) Open() error {
	if !c.adapter.IsConnected() {
		return ErrInterfaceNotOpen
	}
	if c.open {
		return nil
	}
	a := c.adapter
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.pt.PassThruConnect(a.deviceID, passthru.ISO15765, 0, c.speed, &c.channelID); err != nil {
		return &APIError{Code: 4, Desc: "PassThruConnect", Err: err}
	}
	mask := idMsg(0xFFFFFFFF)
	pattern := idMsg(c.rxID)
	flow := idMsg(c.txID)
	var filterID uint32
	if err := a.pt.PassThruStartMsgFilter(c.channelID, passthru.FLOW_CONTROL_FILTER, mask, pattern, flow, &filterID); err != nil {
		a.pt.PassThruDisconnect(c.channelID)
		return &APIError{Code: 5, Desc: "PassThruStartMsgFilter", Err: err}
	}
	c.open = true
	return nil
}

func (c *passthruChannel) Close() error {
	if !c.open {
		return ErrInterfaceNotOpen
	}
	a := c.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	c.open = false
	if err := a.pt.PassThruDisconnect(c.channelID); err != nil {
		return &APIError{Code: 6, Desc: "PassThruDisconnect", Err: err}
	}
	return nil
}

func (c *passthruChannel) Write(payload []byte, timeout time.Duration) error {
	if !c.open {
		return ErrInterfaceNotOpen
	}
	msg := idMsg(c.txID)
	if c.pad {
		msg.TxFlags = passthru.ISO15765_FRAME_PAD
	}
	copy(msg.Data[4:], payload)
	msg.DataSize = uint32(4 + len(payload))

	a := c.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	num := uint32(1)
	if err := a.pt.PassThruWriteMsgs(c.channelID, msg, &num, uint32(timeout.Milliseconds())); err != nil {
		return &APIError{Code: 7, Desc: "PassThruWriteMsgs", Err: err}
	}
	return nil
}

// readError 驱动报告 "暂无报文" 时对应 ErrBufferEmpty，其余保留原始错误
func readError(err error) error {
	if errors.Is(err, passthru.ErrBufferEmpty) || errors.Is(err, passthru.ErrTimeout) {
		return ErrBufferEmpty
	}
	return &APIError{Code: 8, Desc: "PassThruReadMsgs", Err: err}
}

// Read 跳过发送回显与首帧指示，只返回完整的接收报文
func (c *passthruChannel) Read(timeout time.Duration) ([]byte, error) {
	if !c.open {
		return nil, ErrInterfaceNotOpen
	}
	deadline := time.Now().Add(timeout)
	a := c.adapter
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrBufferEmpty
		}
		msg := &passthru.PassThruMsg{}
		a.mu.Lock()
		num, err := a.pt.PassThruReadMsg(c.channelID, msg, uint32(remaining.Milliseconds()))
		a.mu.Unlock()
		if err != nil {
			return nil, readError(err)
		}
		if num == 0 {
			continue
		}
		if msg.RxStatus&ptSkipRxStatus != 0 || msg.DataSize < 4 {
			continue
		}
		id := binary.BigEndian.Uint32(msg.Data[:4])
		if id != c.rxID {
			return nil, &UnexpectedAddressError{Want: c.rxID, Got: id}
		}
		return append([]byte(nil), msg.Data[4:msg.DataSize]...), nil
	}
}

func (c *passthruChannel) ClearRx() error {
	if !c.open {
		return ErrInterfaceNotOpen
	}
	a := c.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	for {
		msg := &passthru.PassThruMsg{}
		if num, err := a.pt.PassThruReadMsg(c.channelID, msg, ptClearRxTimeout); err != nil || num == 0 {
			return nil
		}
	}
}
