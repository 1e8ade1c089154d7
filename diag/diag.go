// Package diag 是 TCU 的会话管理层：持有唯一的 {适配器, KWP 服务器}，
// 所有请求在互斥锁下串行执行，并在其上实现模式、分区、OTA、内存、标定与设置服务。
package diag

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/LoveWonYoung/egsdiag/driver"
	"github.com/LoveWonYoung/egsdiag/kwp"
)

// Config 会话参数
type Config struct {
	Type              driver.AdapterType
	Scan              driver.ScanOptions
	KWP               kwp.Options
	ReconnectAttempts uint
	ReconnectDelay    time.Duration
}

// DefaultConfig TCU 固定参数
func DefaultConfig(typ driver.AdapterType) Config {
	return Config{
		Type:              typ,
		Scan:              driver.ScanOptions{BaudRate: 921600},
		KWP:               kwp.DefaultOptions(),
		ReconnectAttempts: 5,
		ReconnectDelay:    1500 * time.Millisecond,
	}
}

// Nag52Diag 一个 TCU 诊断会话
type Nag52Diag struct {
	// mu 只用于串行化 KWP 请求和会话替换
	mu   sync.Mutex
	cfg  Config
	info driver.HardwareInfo
	// cur 无锁读取，供任意 goroutine 查询连接状态
	cur atomic.Pointer[session]

	connect func(driver.HardwareInfo, driver.AdapterType, driver.ScanOptions) (driver.Adapter, error)
}

type session struct {
	adapter driver.Adapter
	server  *kwp.Server
}

// Open 按身份定位设备并建立会话
func Open(info driver.HardwareInfo, cfg Config) (*Nag52Diag, error) {
	a, err := driver.TryConnect(info, cfg.Type, cfg.Scan)
	if err != nil {
		return nil, err
	}
	d, err := New(a, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return d, nil
}

// New 在已打开的适配器上创建 ISO-TP 通道和 KWP 服务器
func New(a driver.Adapter, cfg Config) (*Nag52Diag, error) {
	server, err := newServer(a, cfg.KWP)
	if err != nil {
		return nil, err
	}
	d := &Nag52Diag{
		cfg:     cfg,
		info:    a.Info(),
		connect: driver.TryConnect,
	}
	d.cur.Store(&session{adapter: a, server: server})
	return d, nil
}

func newServer(a driver.Adapter, opts kwp.Options) (*kwp.Server, error) {
	ch, err := a.CreateIsoTPChannel()
	if err != nil {
		return nil, fmt.Errorf("create isotp channel: %w", err)
	}
	return kwp.NewServer(ch, opts)
}

// WithKWP 持锁执行 fn。会话未打开时返回 ErrDeviceNotOpen。
func (d *Nag52Diag) WithKWP(fn func(s *kwp.Server) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.cur.Load()
	if cur == nil {
		return ErrDeviceNotOpen
	}
	return fn(cur.server)
}

// Info 当前设备身份
func (d *Nag52Diag) Info() driver.HardwareInfo { return d.info }

// Adapter 当前适配器，可能为 nil。不等待正在执行的操作。
func (d *Nag52Diag) Adapter() driver.Adapter {
	if cur := d.cur.Load(); cur != nil {
		return cur.adapter
	}
	return nil
}

// IsConnected 适配器在线且 tester-present 未失败。不等待正在执行的操作。
func (d *Nag52Diag) IsConnected() bool {
	cur := d.cur.Load()
	if cur == nil {
		return false
	}
	return cur.adapter.IsConnected() && !cur.server.Stale()
}

// teardown 调用方持有 d.mu
func (d *Nag52Diag) teardown() {
	cur := d.cur.Swap(nil)
	if cur == nil {
		return
	}
	if err := cur.server.Close(); err != nil {
		log.Printf("关闭 KWP 服务器出错: %v", err)
	}
	if err := cur.adapter.Close(); err != nil {
		log.Printf("关闭适配器出错: %v", err)
	}
}

// TryReconnect 丢弃当前会话，按记录的身份重新定位设备并从头重建。
// 不做内部重试。
func (d *Nag52Diag) TryReconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	log.Printf("正在重连 %s", d.info)
	d.teardown()

	a, err := d.connect(d.info, d.cfg.Type, d.cfg.Scan)
	if err != nil {
		return err
	}
	server, err := newServer(a, d.cfg.KWP)
	if err != nil {
		a.Close()
		return err
	}
	d.cur.Store(&session{adapter: a, server: server})
	log.Printf("重连成功 %s", d.info)
	return nil
}

// ReconnectWithRetry 固定间隔重试 TryReconnect
func (d *Nag52Diag) ReconnectWithRetry(ctx context.Context) error {
	attempts := d.cfg.ReconnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(d.TryReconnect,
		retry.Context(ctx),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(d.cfg.ReconnectDelay),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("重连失败 (%d/%d): %v", n+1, attempts, err)
		}),
	)
}

// Close 关闭会话，之后所有操作返回 ErrDeviceNotOpen
func (d *Nag52Diag) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teardown()
	return nil
}
