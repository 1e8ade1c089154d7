package driver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LoveWonYoung/egsdiag/tp"
)

const (
	canRxBufferSize = 256
	canTxBufferSize = 256
)

// CANAdapter 把一个原始 CANDriver 包装成 Adapter，ISO-TP 分帧由 tp 协议栈在本机完成。
// SocketCAN 与虚拟总线都通过它接入。
type CANAdapter struct {
	driver    CANDriver
	info      HardwareInfo
	connected atomic.Bool
}

// NewCANAdapter 初始化并启动驱动
func NewCANAdapter(dev CANDriver, info HardwareInfo) (*CANAdapter, error) {
	if dev == nil {
		return nil, errors.New("CAN driver instance cannot be nil")
	}
	if err := dev.Init(); err != nil {
		return nil, &APIError{Code: 1, Desc: "init " + info.Name, Err: err}
	}
	dev.Start()

	a := &CANAdapter{driver: dev, info: info}
	a.connected.Store(true)
	log.Printf("CAN 适配器已创建: %s", info)
	return a, nil
}

func (a *CANAdapter) Info() HardwareInfo { return a.info }

func (a *CANAdapter) IsConnected() bool {
	if !a.connected.Load() {
		return false
	}
	return a.driver.Context().Err() == nil
}

func (a *CANAdapter) CreateIsoTPChannel() (Channel, error) {
	if !a.IsConnected() {
		return nil, ErrInterfaceNotOpen
	}
	return &canChannel{adapter: a, cfg: tp.DefaultConfig()}, nil
}

func (a *CANAdapter) Close() error {
	if a.connected.Swap(false) {
		log.Printf("正在关闭 CAN 适配器: %s", a.info)
		a.driver.Stop()
	}
	return nil
}

// canChannel 驱动 tp.Transport，并负责驱动与协议栈之间的 "粘合" goroutine
type canChannel struct {
	adapter *CANAdapter

	mu        sync.Mutex
	txID      uint32
	rxID      uint32
	extended  bool
	cfg       tp.Config
	transport *tp.Transport
	cancel    context.CancelFunc
}

func (c *canChannel) SetIDs(send, recv uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txID, c.rxID = send, recv
	return nil
}

func (c *canChannel) SetIsoTPConfig(s IsoTPSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.BlockSize = int(s.BlockSize)
	c.cfg.StMin = s.StMin
	c.cfg.PaddingByte = nil
	if s.PadFrame {
		c.cfg.PaddingByte = tp.Padding(0xAA)
	}
	c.extended = s.Extended
	return nil
}

func (c *canChannel) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.adapter.IsConnected() {
		return ErrInterfaceNotOpen
	}
	if c.transport != nil {
		return nil
	}

	var opts []tp.AddressOption
	if c.extended {
		opts = append(opts, tp.WithExtendedID())
	}
	stack := tp.NewTransport(tp.NewAddress(c.txID, c.rxID, opts...), c.cfg)
	ctx, cancel := context.WithCancel(c.adapter.driver.Context())

	rxToStack := make(chan tp.CanMessage, canRxBufferSize)
	txFromStack := make(chan tp.CanMessage, canTxBufferSize)
	dev := c.adapter.driver

	// a. 驱动 -> 协议栈
	go func() {
		rx := dev.RxChan()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-rx:
				if !ok {
					cancel()
					return
				}
				msg := tp.CanMessage{
					ArbitrationID: m.ID,
					Data:          append([]byte(nil), m.Payload()...),
					IsExtendedID:  m.IsExtended,
				}
				select {
				case rxToStack <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	// b. 协议栈 -> 驱动
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-txFromStack:
				if err := dev.Write(m.ArbitrationID, m.Data); err != nil {
					log.Printf("错误: CAN 报文发送失败, ID=0x%03X: %v", m.ArbitrationID, err)
				}
			}
		}
	}()

	// c. 协议栈状态机
	go stack.Run(ctx, rxToStack, txFromStack)

	// d. 协议栈错误
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-stack.Errors():
				log.Printf("[tp Error] %v", err)
			}
		}
	}()

	c.transport = stack
	c.cancel = cancel
	return nil
}

func (c *canChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return ErrInterfaceNotOpen
	}
	c.cancel()
	c.transport = nil
	return nil
}

func (c *canChannel) stack() (*tp.Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return nil, ErrInterfaceNotOpen
	}
	return c.transport, nil
}

func (c *canChannel) Write(payload []byte, _ time.Duration) error {
	s, err := c.stack()
	if err != nil {
		return err
	}
	if err := s.Send(payload); err != nil {
		return fmt.Errorf("isotp send: %w", err)
	}
	return nil
}

func (c *canChannel) Read(timeout time.Duration) ([]byte, error) {
	s, err := c.stack()
	if err != nil {
		return nil, err
	}
	data, err := s.RecvTimeout(context.Background(), timeout)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrBufferEmpty
	}
	if errors.Is(err, tp.ErrClosed) {
		return nil, ErrInterfaceNotOpen
	}
	return data, err
}

func (c *canChannel) ClearRx() error {
	s, err := c.stack()
	if err != nil {
		return err
	}
	s.Drain()
	return nil
}
