package diag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/driver"
	"github.com/LoveWonYoung/egsdiag/kwp"
)

var (
	ErrFlashCheckFailed = errors.New("flash integrity check failed")
	ErrImageTooLarge    = errors.New("image larger than target partition")
	ErrZeroBlockSize    = errors.New("device negotiated a zero block size")
	ErrEmptyTransfer    = errors.New("device returned an empty transfer block")
)

// FlashState OTA 状态机
type FlashState int32

const (
	FlashIdle FlashState = iota
	FlashBegin
	FlashTransferring
	FlashEnding
	FlashDone
	FlashFailed
	FlashReading
)

func (s FlashState) String() string {
	switch s {
	case FlashIdle:
		return "idle"
	case FlashBegin:
		return "begin"
	case FlashTransferring:
		return "transferring"
	case FlashEnding:
		return "ending"
	case FlashDone:
		return "done"
	case FlashFailed:
		return "failed"
	case FlashReading:
		return "reading"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Progress 进度回调参数
type Progress struct {
	State   FlashState
	Address uint32
	Done    int
	Total   int
}

func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Done) / float64(p.Total) * 100
}

// Flasher 通过 34/36/37 服务写入或读出 flash 分区。
// 整个传输过程持有会话锁，中途任何一块失败都需要从 Begin 重新开始。
type Flasher struct {
	d          *Nag52Diag
	state      atomic.Int32
	OnProgress func(Progress)
}

func (d *Nag52Diag) NewFlasher(progress func(Progress)) *Flasher {
	if progress == nil {
		progress = func(Progress) {}
	}
	return &Flasher{d: d, OnProgress: progress}
}

func (f *Flasher) State() FlashState { return FlashState(f.state.Load()) }

func (f *Flasher) set(s FlashState, p Progress) {
	f.state.Store(int32(s))
	p.State = s
	f.OnProgress(p)
}

func (f *Flasher) fail(stage FlashState, err error) error {
	f.state.Store(int32(FlashFailed))
	f.OnProgress(Progress{State: FlashFailed})
	return &FlashError{Stage: stage, Err: err}
}

// Flash 写入下一个 OTA 分区，校验通过后复位 TCU
func (f *Flasher) Flash(ctx context.Context, image []byte) error {
	return f.d.WithKWP(func(s *kwp.Server) error {
		f.set(FlashBegin, Progress{Total: len(image)})
		part, err := readPartition(ctx, s, LIDNextOTAPart)
		if err != nil {
			return f.fail(FlashBegin, err)
		}
		return f.write(ctx, s, part, image, true)
	})
}

// WritePartition 写入任意分区，不复位
func (f *Flasher) WritePartition(ctx context.Context, part codec.PartitionInfo, data []byte) error {
	return f.d.WithKWP(func(s *kwp.Server) error {
		f.set(FlashBegin, Progress{Address: part.Address, Total: len(data)})
		return f.write(ctx, s, part, data, false)
	})
}

func (f *Flasher) write(ctx context.Context, s *kwp.Server, part codec.PartitionInfo, data []byte, reboot bool) error {
	if uint64(len(data)) > uint64(part.Size) {
		return f.fail(FlashBegin, fmt.Errorf("%w: %d > %d", ErrImageTooLarge, len(data), part.Size))
	}
	bs, err := beginTransfer(ctx, s, kwp.SIDRequestDownload, part.Address, otaFormat, uint32(len(data)))
	if err != nil {
		return f.fail(FlashBegin, err)
	}
	log.Printf("OTA 开始: 地址 0x%06X, 长度 %d, 块大小 %d", part.Address, len(data), bs)

	written := 0
	for i, block := range driver.SplitBlock(data, bs) {
		if err := transferData(ctx, s, blockID(i), block); err != nil {
			return f.fail(FlashTransferring, fmt.Errorf("block at 0x%06X: %w", part.Address+uint32(written), err))
		}
		written += len(block)
		f.set(FlashTransferring, Progress{Address: part.Address + uint32(written), Done: written, Total: len(data)})
	}

	f.set(FlashEnding, Progress{Address: part.Address, Done: written, Total: len(data)})
	if err := endTransfer(ctx, s, reboot); err != nil {
		return f.fail(FlashEnding, err)
	}
	f.set(FlashDone, Progress{Address: part.Address, Done: written, Total: len(data)})
	return nil
}

// ReadPartition 通过 RequestUpload 读出分区内容
func (f *Flasher) ReadPartition(ctx context.Context, part codec.PartitionInfo) ([]byte, error) {
	var out []byte
	err := f.d.WithKWP(func(s *kwp.Server) error {
		f.set(FlashBegin, Progress{Address: part.Address, Total: int(part.Size)})
		if _, err := beginTransfer(ctx, s, kwp.SIDRequestUpload, part.Address, uploadFormat, part.Size); err != nil {
			return f.fail(FlashBegin, err)
		}
		out = make([]byte, 0, part.Size)
		for i := 0; len(out) < int(part.Size); i++ {
			resp, err := s.Send(ctx, []byte{kwp.SIDTransferData, blockID(i)})
			if err != nil {
				return f.fail(FlashReading, fmt.Errorf("read at 0x%06X: %w", part.Address+uint32(len(out)), err))
			}
			if len(resp) <= 2 {
				return f.fail(FlashReading, ErrEmptyTransfer)
			}
			out = append(out, resp[2:]...)
			f.set(FlashReading, Progress{Address: part.Address + uint32(len(out)), Done: len(out), Total: int(part.Size)})
		}
		out = out[:part.Size]
		if err := endTransfer(ctx, s, false); err != nil {
			log.Printf("读取结束后校验状态异常: %v", err)
		}
		f.set(FlashDone, Progress{Address: part.Address, Done: len(out), Total: int(part.Size)})
		return nil
	})
	return out, err
}

// blockID 1 起始，溢出回绕
func blockID(i int) byte {
	return byte((i + 1) & 0xFF)
}

func beginTransfer(ctx context.Context, s *kwp.Server, sid byte, addr uint32, format byte, size uint32) (int, error) {
	if err := s.SetSession(ctx, kwp.SessionReprogramming); err != nil {
		return 0, fmt.Errorf("enter reprogramming session: %w", err)
	}
	req := addr24(sid, addr)
	req = append(req, format, byte(size>>16), byte(size>>8), byte(size))
	resp, err := s.Send(ctx, req)
	if err != nil {
		return 0, err
	}
	if len(resp) < 3 {
		return 0, kwp.ErrInvalidResponseLength
	}
	bs := int(resp[1])<<8 | int(resp[2])
	if sid == kwp.SIDRequestDownload && bs == 0 {
		return 0, ErrZeroBlockSize
	}
	return bs, nil
}

func transferData(ctx context.Context, s *kwp.Server, id byte, data []byte) error {
	req := make([]byte, 0, 2+len(data))
	req = append(req, kwp.SIDTransferData, id)
	req = append(req, data...)
	_, err := s.Send(ctx, req)
	return err
}

// endTransfer 37 后以 31 E1 读取校验状态，0 为通过
func endTransfer(ctx context.Context, s *kwp.Server, reboot bool) error {
	if _, err := s.Send(ctx, []byte{kwp.SIDRequestTransferExit}); err != nil {
		return err
	}
	status, err := s.StartRoutine(ctx, routineFlashCheck)
	if err != nil {
		return err
	}
	if len(status) < 3 {
		return kwp.ErrInvalidResponseLength
	}
	if status[2] != 0x00 {
		log.Printf("TCU flash 校验失败, 状态 0x%02X", status[2])
		return fmt.Errorf("%w: status 0x%02X", ErrFlashCheckFailed, status[2])
	}
	log.Println("TCU flash 校验通过")
	if reboot {
		return s.ECUReset(ctx, kwp.ResetPowerOn)
	}
	return nil
}
