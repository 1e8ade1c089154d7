package driver

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const virtualRxBufferSize = 1024

// WriteRecord 记录一次写入操作
type WriteRecord struct {
	ID        uint32
	Data      []byte
	Timestamp time.Time
}

// VirtualCAN 内存中的虚拟 CAN 驱动，不依赖实际硬件。
// 两个实例通过 ConnectVirtual 互联后，一端写入的报文出现在另一端的接收通道。
type VirtualCAN struct {
	mu       sync.Mutex
	rxChan   chan UnifiedCANMessage
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
	peer     *VirtualCAN
	writeLog []WriteRecord
	Verbose  bool
}

func NewVirtualCAN() *VirtualCAN {
	ctx, cancel := context.WithCancel(context.Background())
	return &VirtualCAN{
		rxChan: make(chan UnifiedCANMessage, virtualRxBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ConnectVirtual 把两个虚拟驱动接到同一条总线上
func ConnectVirtual(a, b *VirtualCAN) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

func (c *VirtualCAN) Init() error { return nil }

func (c *VirtualCAN) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
}

func (c *VirtualCAN) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.cancel()
	close(c.rxChan)
}

func (c *VirtualCAN) Write(id uint32, data []byte) error {
	if len(data) > 8 {
		return errors.New("data length exceeds classic CAN maximum of 8")
	}
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrInterfaceNotOpen
	}
	c.writeLog = append(c.writeLog, WriteRecord{ID: id, Data: append([]byte(nil), data...), Timestamp: time.Now()})
	peer := c.peer
	verbose := c.Verbose
	c.mu.Unlock()

	if verbose {
		log.Printf("[Virtual] TX ID=0x%03X, DLC=%d, Data=% 02X", id, len(data), data)
	}
	if peer != nil {
		return peer.Inject(id, data)
	}
	return nil
}

// Inject 向接收通道注入一条报文
func (c *VirtualCAN) Inject(id uint32, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrInterfaceNotOpen
	}
	msg := UnifiedCANMessage{ID: id, DLC: byte(len(data))}
	copy(msg.Data[:], data)
	select {
	case c.rxChan <- msg:
		return nil
	default:
		return errors.New("virtual rx channel full")
	}
}

func (c *VirtualCAN) RxChan() <-chan UnifiedCANMessage { return c.rxChan }

func (c *VirtualCAN) Context() context.Context { return c.ctx }

// WriteLog 获取写入日志
func (c *VirtualCAN) WriteLog() []WriteRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WriteRecord(nil), c.writeLog...)
}
