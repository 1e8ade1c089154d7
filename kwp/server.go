package kwp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LoveWonYoung/egsdiag/driver"
)

// 服务 ID
const (
	SIDStartDiagnosticSession = 0x10
	SIDECUReset               = 0x11
	SIDReadDataByLocalID      = 0x21
	SIDReadMemoryByAddress    = 0x23
	SIDIOControlByLocalID     = 0x30
	SIDStartRoutineByLocalID  = 0x31
	SIDRequestDownload        = 0x34
	SIDRequestUpload          = 0x35
	SIDTransferData           = 0x36
	SIDRequestTransferExit    = 0x37
	SIDWriteDataByLocalID     = 0x3B
	SIDWriteMemoryByAddress   = 0x3D
	SIDTesterPresent          = 0x3E

	negativeResponse = 0x7F
	positiveOffset   = 0x40
)

var (
	ErrNoResponse            = errors.New("no response from ECU")
	ErrInvalidResponseLength = errors.New("invalid response length")
	ErrServerClosed          = errors.New("diagnostic server closed")
	ErrEmptyRequest          = errors.New("request payload is empty")
)

// ResponseError 正响应 SID 与请求不匹配
type ResponseError struct {
	Want byte
	Got  byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("response SID mismatch: want 0x%02X, got 0x%02X", e.Want, e.Got)
}

// Options 诊断服务器参数
type Options struct {
	SendID       uint32
	RecvID       uint32
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	TesterPresentInterval        time.Duration
	TesterPresentRequireResponse bool

	PendingTimeout time.Duration // 收到 0x78 后的等待时间
	BusyRetries    int
	BusyRetryDelay time.Duration

	IsoTP driver.IsoTPSettings
}

// DefaultOptions 返回 TCU 使用的固定参数
func DefaultOptions() Options {
	return Options{
		SendID:                       0x07E1,
		RecvID:                       0x07E9,
		ReadTimeout:                  2500 * time.Millisecond,
		WriteTimeout:                 2500 * time.Millisecond,
		TesterPresentInterval:        2000 * time.Millisecond,
		TesterPresentRequireResponse: true,
		PendingTimeout:               5000 * time.Millisecond,
		BusyRetries:                  3,
		BusyRetryDelay:               100 * time.Millisecond,
		IsoTP: driver.IsoTPSettings{
			BlockSize: 0,
			StMin:     0,
			PadFrame:  true,
			CANSpeed:  500000,
		},
	}
}

// Server KWP2000 诊断服务器，请求在内部互斥锁下串行执行，tester-present 在后台 goroutine 中发送。
type Server struct {
	ch   driver.Channel
	opts Options

	mu      sync.Mutex
	session atomic.Uint32
	stale   atomic.Bool
	closed  atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer 配置并打开通道，启动 tester-present
func NewServer(ch driver.Channel, opts Options) (*Server, error) {
	if err := ch.SetIDs(opts.SendID, opts.RecvID); err != nil {
		return nil, fmt.Errorf("set ids: %w", err)
	}
	if err := ch.SetIsoTPConfig(opts.IsoTP); err != nil {
		return nil, fmt.Errorf("set isotp config: %w", err)
	}
	if err := ch.Open(); err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{ch: ch, opts: opts, ctx: ctx, cancel: cancel}
	s.session.Store(uint32(SessionNormal))

	if opts.TesterPresentInterval > 0 {
		s.wg.Add(1)
		go s.testerPresentLoop()
	}
	log.Printf("KWP 服务器已启动 (tx=0x%03X rx=0x%03X)", opts.SendID, opts.RecvID)
	return s, nil
}

func (s *Server) testerPresentLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.TesterPresentInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.Session() == SessionNormal {
				continue
			}
			if err := s.sendTesterPresent(); err != nil {
				if !s.stale.Swap(true) {
					log.Printf("tester-present 失败，会话已失效: %v", err)
				}
			}
		}
	}
}

func (s *Server) sendTesterPresent() error {
	if !s.opts.TesterPresentRequireResponse {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.ch.Write([]byte{SIDTesterPresent, 0x02}, s.opts.WriteTimeout)
	}
	_, err := s.Send(s.ctx, []byte{SIDTesterPresent, 0x01})
	return err
}

// Stale tester-present 未收到响应后为 true
func (s *Server) Stale() bool { return s.stale.Load() }

// Session 当前诊断会话
func (s *Server) Session() SessionType { return SessionType(s.session.Load()) }

// Send 发送请求并返回完整的正响应 (含 SID)。
// 0x78 延长等待，0x21 有限次重发，其余负响应返回 *ECUError。
func (s *Server) Send(ctx context.Context, req []byte) ([]byte, error) {
	if len(req) == 0 {
		return nil, ErrEmptyRequest
	}
	if s.closed.Load() {
		return nil, ErrServerClosed
	}

	var lastErr error
	for attempt := 0; attempt <= s.opts.BusyRetries; attempt++ {
		if attempt > 0 {
			log.Printf("KWP 请求重试 (%d/%d), SID=0x%02X", attempt, s.opts.BusyRetries, req[0])
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.BusyRetryDelay):
			}
		}
		resp, err := s.exchange(ctx, req)
		if err == nil {
			return resp, nil
		}
		var ecuErr *ECUError
		if errors.As(err, &ecuErr) && ecuErr.IsRetryable() {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *Server) exchange(ctx context.Context, req []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid := req[0]
	if err := s.ch.ClearRx(); err != nil {
		return nil, err
	}
	if err := s.ch.Write(req, s.opts.WriteTimeout); err != nil {
		return nil, err
	}

	timeout := s.opts.ReadTimeout
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := s.ch.Read(timeout)
		if errors.Is(err, driver.ErrBufferEmpty) {
			return nil, fmt.Errorf("SID 0x%02X: %w", sid, ErrNoResponse)
		}
		if err != nil {
			return nil, err
		}
		if len(resp) == 0 {
			return nil, ErrInvalidResponseLength
		}

		if resp[0] == negativeResponse {
			if len(resp) < 3 {
				return nil, ErrInvalidResponseLength
			}
			if resp[1] != sid {
				// 其他请求迟到的负响应
				continue
			}
			if resp[2] == NRCResponsePending {
				timeout = s.opts.PendingTimeout
				continue
			}
			return nil, &ECUError{ServiceID: resp[1], Code: resp[2]}
		}
		if resp[0] != sid+positiveOffset {
			return nil, &ResponseError{Want: sid + positiveOffset, Got: resp[0]}
		}
		return resp, nil
	}
}

// Close 停止 tester-present 并关闭通道
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Println("KWP 服务器已关闭")
	return s.ch.Close()
}
