//go:build linux

package driver

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

const socketCANRxBufferSize = 1024

// SocketCANDriver 基于 Linux SocketCAN 原始套接字的 CANDriver
type SocketCANDriver struct {
	iface  string
	mu     sync.Mutex
	conn   net.Conn
	tx     *socketcan.Transmitter
	rxChan chan UnifiedCANMessage
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSocketCANDriver(iface string) *SocketCANDriver {
	ctx, cancel := context.WithCancel(context.Background())
	return &SocketCANDriver{
		iface:  iface,
		rxChan: make(chan UnifiedCANMessage, socketCANRxBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (d *SocketCANDriver) Init() error {
	conn, err := socketcan.DialContext(d.ctx, "can", d.iface)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.iface, err)
	}
	d.mu.Lock()
	d.conn = conn
	d.tx = socketcan.NewTransmitter(conn)
	d.mu.Unlock()
	log.Printf("SocketCAN 接口 %s 初始化成功", d.iface)
	return nil
}

func (d *SocketCANDriver) Start() {
	go d.readLoop()
}

func (d *SocketCANDriver) readLoop() {
	defer close(d.rxChan)
	recv := socketcan.NewReceiver(d.conn)
	for recv.Receive() {
		if recv.HasErrorFrame() {
			continue
		}
		f := recv.Frame()
		if f.IsRemote {
			continue
		}
		msg := UnifiedCANMessage{ID: f.ID, DLC: f.Length, Data: f.Data, IsExtended: f.IsExtended}
		select {
		case d.rxChan <- msg:
		default:
			log.Println("警告: SocketCAN 接收 channel 已满，消息被丢弃")
		}
	}
	if err := recv.Err(); err != nil && d.ctx.Err() == nil {
		log.Printf("SocketCAN 读取结束: %v", err)
	}
	d.cancel()
}

func (d *SocketCANDriver) Stop() {
	d.cancel()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

func (d *SocketCANDriver) Write(id uint32, data []byte) error {
	if len(data) > 8 {
		return fmt.Errorf("data length %d exceeds classic CAN maximum of 8", len(data))
	}
	d.mu.Lock()
	tx := d.tx
	d.mu.Unlock()
	if tx == nil {
		return ErrInterfaceNotOpen
	}
	frame := can.Frame{ID: id, Length: uint8(len(data)), IsExtended: id > 0x7FF}
	copy(frame.Data[:], data)
	return tx.TransmitFrame(d.ctx, frame)
}

func (d *SocketCANDriver) RxChan() <-chan UnifiedCANMessage { return d.rxChan }

func (d *SocketCANDriver) Context() context.Context { return d.ctx }

func openSocketCAN(info HardwareInfo) (Adapter, error) {
	return NewCANAdapter(NewSocketCANDriver(info.Path), info)
}

func scanSocketCAN() ([]HardwareInfo, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, &APIError{Code: 2, Desc: "list interfaces", Err: err}
	}
	var out []HardwareInfo
	for _, iface := range ifaces {
		if !strings.HasPrefix(iface.Name, "can") && !strings.HasPrefix(iface.Name, "vcan") {
			continue
		}
		out = append(out, HardwareInfo{
			Name:         iface.Name,
			Vendor:       "SocketCAN",
			Path:         iface.Name,
			Capabilities: Capabilities{IsoTP: true, CAN: true},
		})
	}
	return out, nil
}
