package tp

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	rxQueueSize    = 16
	txQueueSize    = 16
	errorQueueSize = 16
)

// Transport 是 ISO-TP 协议栈的核心结构。
// 所有状态只在 Run 所在的 goroutine 中修改，Send/Recv 通过 channel 与其交互。
type Transport struct {
	address *Address
	config  Config

	rxState  State
	txState  State
	rxBuffer []byte
	txBuffer []byte

	rxDataChan chan []byte
	txDataChan chan []byte
	errorChan  chan error
	done       chan struct{}

	rxFrameLen      int
	rxSeqNum        int
	txSeqNum        int
	rxBlockCounter  int
	txBlockCounter  int
	remoteBlockSize int
	remoteStMin     time.Duration
	wftCounter      int

	timerRxCF    *time.Timer
	timerRxFC    *time.Timer
	timerTxSTmin *time.Timer
}

func NewTransport(address *Address, cfg Config) *Transport {
	t := &Transport{
		address:      address,
		config:       cfg,
		rxDataChan:   make(chan []byte, rxQueueSize),
		txDataChan:   make(chan []byte, txQueueSize),
		errorChan:    make(chan error, errorQueueSize),
		done:         make(chan struct{}),
		timerRxCF:    newStoppedTimer(),
		timerRxFC:    newStoppedTimer(),
		timerTxSTmin: newStoppedTimer(),
	}
	return t
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}

// Address 返回当前使用的地址
func (t *Transport) Address() *Address { return t.address }

// Errors 返回协议栈的异步错误。错误不会阻塞协议栈，队列满时直接丢弃。
func (t *Transport) Errors() <-chan error { return t.errorChan }

// Send 将一个完整的报文放入发送队列。
func (t *Transport) Send(data []byte) error {
	if len(data) == 0 || len(data) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadSize, len(data))
	}
	buf := append([]byte(nil), data...)
	select {
	case t.txDataChan <- buf:
		return nil
	case <-t.done:
		return ErrClosed
	}
}

// Recv 非阻塞地取出一个已重组完成的报文。
func (t *Transport) Recv() ([]byte, bool) {
	select {
	case data := <-t.rxDataChan:
		return data, true
	default:
		return nil, false
	}
}

// RecvTimeout 阻塞等待一个完整报文，最多等待 timeout。
func (t *Transport) RecvTimeout(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-t.rxDataChan:
		return data, nil
	case <-timer.C:
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, ErrClosed
	}
}

// Drain 丢弃所有尚未读取的报文
func (t *Transport) Drain() {
	for {
		if _, ok := t.Recv(); !ok {
			return
		}
	}
}

// Run 驱动协议栈状态机，直到 ctx 取消。
// 只有发送状态机空闲时才会从发送队列取数据 (nil channel 技巧)。
func (t *Transport) Run(ctx context.Context, rxChan <-chan CanMessage, txChan chan<- CanMessage) {
	defer t.cleanup()

	for {
		var txReady <-chan []byte
		if t.txState == StateIdle {
			txReady = t.txDataChan
		}

		select {
		case <-ctx.Done():
			return

		case msg, ok := <-rxChan:
			if !ok {
				return
			}
			t.processRx(msg, txChan)

		case data := <-txReady:
			t.initiateTx(data, txChan)

		case <-t.timerRxCF.C:
			t.fireError(ErrTimeoutCF)
			t.stopReceiving()

		case <-t.timerRxFC.C:
			t.fireError(ErrTimeoutFC)
			t.stopSending()

		case <-t.timerTxSTmin.C:
			if t.txState == StateTransmit {
				t.transmitNext(txChan)
			}
		}
	}
}

func (t *Transport) cleanup() {
	stopTimer(t.timerRxCF)
	stopTimer(t.timerRxFC)
	stopTimer(t.timerTxSTmin)
	close(t.done)
}

func (t *Transport) stopReceiving() {
	t.rxState = StateIdle
	t.rxBuffer = nil
	t.rxFrameLen = 0
	t.rxSeqNum = 0
	t.rxBlockCounter = 0
	stopTimer(t.timerRxCF)
}

func (t *Transport) stopSending() {
	t.txState = StateIdle
	t.txBuffer = nil
	t.txSeqNum = 0
	t.txBlockCounter = 0
	t.wftCounter = 0
	stopTimer(t.timerRxFC)
	stopTimer(t.timerTxSTmin)
}

func (t *Transport) makeTxMsg(payload []byte) CanMessage {
	data := payload
	if t.config.PaddingByte != nil && len(data) < frameLength {
		data = make([]byte, frameLength)
		copy(data, payload)
		for i := len(payload); i < frameLength; i++ {
			data[i] = *t.config.PaddingByte
		}
	}
	return CanMessage{
		ArbitrationID: t.address.TxID,
		Data:          data,
		IsExtendedID:  t.address.Extended,
	}
}

func (t *Transport) emit(payload []byte, txChan chan<- CanMessage) bool {
	select {
	case txChan <- t.makeTxMsg(payload):
		return true
	default:
		t.fireError(ErrTxChannelFull)
		return false
	}
}

// fireError 非阻塞地上报错误
func (t *Transport) fireError(err error) {
	select {
	case t.errorChan <- err:
	default:
		log.Printf("[tp] error queue full, dropped: %v", err)
	}
}
