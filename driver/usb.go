package driver

import (
	"bytes"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultUSBBaudRate = 921600

	usbVendor        = "rnd-ash@github.com"
	usbReadTimeout   = 50 * time.Millisecond
	usbReadChunk     = 512
	usbDiagQueueSize = 64
	usbLogQueueSize  = 1024
	usbCANQueueSize  = 1024
	usbMaxLineLength = 8192
)

// USBAdapter TCU 自带的 USB 串口。
// 后台读取 goroutine 按行解析串口数据，诊断负载、日志、CAN 监听帧分别进入不同的队列。
type USBAdapter struct {
	mu   sync.Mutex
	port serial.Port
	info HardwareInfo

	diagQueue chan diagFrame
	logQueue  chan LogMessage
	canQueue  chan UnifiedCANMessage

	running atomic.Bool
	TxBytes atomic.Uint64
	RxBytes atomic.Uint64
}

// OpenUSB 打开串口并启动后台读取
func OpenUSB(path string, baud int) (*USBAdapter, error) {
	if baud == 0 {
		baud = DefaultUSBBaudRate
	}
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, &APIError{Code: 99, Desc: "open " + path, Err: err}
	}
	if err := port.SetReadTimeout(usbReadTimeout); err != nil {
		port.Close()
		return nil, &APIError{Code: 99, Desc: "set read timeout", Err: err}
	}
	_ = port.ResetInputBuffer()
	_ = port.ResetOutputBuffer()

	a := newUSBAdapter(port, HardwareInfo{
		Name:         path,
		Vendor:       usbVendor,
		Path:         path,
		Capabilities: Capabilities{IsoTP: true},
	})
	go a.readLoop()
	log.Printf("USB 适配器已打开: %s @ %d", path, baud)
	return a, nil
}

func newUSBAdapter(port serial.Port, info HardwareInfo) *USBAdapter {
	a := &USBAdapter{
		port:      port,
		info:      info,
		diagQueue: make(chan diagFrame, usbDiagQueueSize),
		logQueue:  make(chan LogMessage, usbLogQueueSize),
		canQueue:  make(chan UnifiedCANMessage, usbCANQueueSize),
	}
	a.running.Store(true)
	return a
}

// readLoop 每次读取前检查 running 标志，Close 后最多一个读超时周期内退出。
// 串口在启动时加锁取出，Close 置空 a.port 不影响本循环。
func (a *USBAdapter) readLoop() {
	a.mu.Lock()
	port := a.port
	a.mu.Unlock()
	if port == nil {
		return
	}
	log.Println("串口读取服务已启动")
	defer log.Println("串口读取服务已停止")

	buf := make([]byte, usbReadChunk)
	var pending []byte
	for a.running.Load() {
		n, err := port.Read(buf)
		if err != nil {
			log.Printf("串口读取失败: %v", err)
			a.running.Store(false)
			return
		}
		if n == 0 {
			continue
		}
		a.RxBytes.Add(uint64(n))
		pending = append(pending, buf[:n]...)
		for {
			idx := bytes.IndexByte(pending, '\n')
			if idx < 0 {
				break
			}
			a.handleLine(strings.TrimRight(string(pending[:idx]), "\r"))
			pending = pending[idx+1:]
		}
		if len(pending) > usbMaxLineLength {
			log.Printf("丢弃过长的串口数据 (%d 字节)", len(pending))
			pending = nil
		}
	}
}

// handleLine 解析失败的行只记录日志，不影响诊断数据通道
func (a *USBAdapter) handleLine(line string) {
	if line == "" {
		return
	}
	v, err := classifyLine(line)
	if err != nil {
		log.Printf("丢弃无效的串口行 %q: %v", line, err)
		return
	}
	switch m := v.(type) {
	case diagFrame:
		select {
		case a.diagQueue <- m:
		default:
			log.Println("警告: 诊断接收队列已满，报文被丢弃")
		}
	case LogMessage:
		select {
		case a.logQueue <- m:
		default:
		}
	case UnifiedCANMessage:
		select {
		case a.canQueue <- m:
		default:
		}
	}
}

func (a *USBAdapter) Info() HardwareInfo { return a.info }

// IsConnected 读取 goroutine 是否仍在运行
func (a *USBAdapter) IsConnected() bool { return a.running.Load() }

// ReadLog 非阻塞地取出一条 TCU 日志
func (a *USBAdapter) ReadLog() (LogMessage, bool) {
	select {
	case m := <-a.logQueue:
		return m, true
	default:
		return LogMessage{}, false
	}
}

// Logs 返回日志队列，供持续消费者使用
func (a *USBAdapter) Logs() <-chan LogMessage { return a.logQueue }

// ReadCAN 非阻塞地取出一条 CAN 监听帧
func (a *USBAdapter) ReadCAN() (UnifiedCANMessage, bool) {
	select {
	case m := <-a.canQueue:
		return m, true
	default:
		return UnifiedCANMessage{}, false
	}
}

func (a *USBAdapter) CreateIsoTPChannel() (Channel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == nil {
		return nil, ErrInterfaceNotOpen
	}
	return &usbChannel{adapter: a}, nil
}

// Close 只清除 running 标志并关闭串口，不等待读取 goroutine 退出。
func (a *USBAdapter) Close() error {
	a.running.Store(false)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == nil {
		return nil
	}
	err := a.port.Close()
	a.port = nil
	log.Printf("USB 适配器已关闭: %s", a.info.Name)
	return err
}

// write 帧格式: [len_hi, len_lo, addr_hi, addr_lo, payload...]，len = payload + 2
func (a *USBAdapter) write(addr uint32, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == nil {
		return ErrInterfaceNotOpen
	}
	size := uint16(len(payload) + 2)
	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, byte(size>>8), byte(size), byte(addr>>8), byte(addr))
	frame = append(frame, payload...)
	n, err := a.port.Write(frame)
	a.TxBytes.Add(uint64(n))
	if err != nil {
		return &APIError{Code: 98, Desc: "write", Err: err}
	}
	return nil
}

func (a *USBAdapter) isOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port != nil
}

type usbChannel struct {
	adapter *USBAdapter
	txID    uint32
	rxID    uint32
}

func (c *usbChannel) SetIDs(send, recv uint32) error {
	c.txID, c.rxID = send, recv
	return nil
}

// SetIsoTPConfig 分帧由 TCU 固件完成，这里无需配置
func (c *usbChannel) SetIsoTPConfig(IsoTPSettings) error { return nil }

func (c *usbChannel) Open() error {
	if !c.adapter.isOpen() {
		return ErrInterfaceNotOpen
	}
	return nil
}

func (c *usbChannel) Close() error {
	if !c.adapter.isOpen() {
		return ErrInterfaceNotOpen
	}
	return nil
}

func (c *usbChannel) Write(payload []byte, _ time.Duration) error {
	return c.adapter.write(c.txID, payload)
}

func (c *usbChannel) Read(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-c.adapter.diagQueue:
		if f.id != c.rxID {
			return nil, &UnexpectedAddressError{Want: c.rxID, Got: f.id}
		}
		return f.payload, nil
	case <-timer.C:
		return nil, ErrBufferEmpty
	}
}

func (c *usbChannel) ClearRx() error {
	if !c.adapter.isOpen() {
		return ErrInterfaceNotOpen
	}
	for {
		select {
		case <-c.adapter.diagQueue:
		default:
			return nil
		}
	}
}
