package diag

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/kwp"
)

const (
	calReadChunk  = 0xFE
	calWriteChunk = 250
)

var ErrCalibrationUnsupported = errors.New("TCU does not support calibration, please update firmware")

// ReadCalibration 进入扩展会话，确认固件端标定块大小一致后分块读出
func (d *Nag52Diag) ReadCalibration(ctx context.Context) (*codec.StoredCalibration, error) {
	want := codec.StoredCalibrationSize
	raw := make([]byte, 0, want)
	err := d.WithKWP(func(s *kwp.Server) error {
		if err := s.SetSession(ctx, kwp.SessionExtendedDiagnostics); err != nil {
			return err
		}
		b, err := s.ReadLocalIdentifier(ctx, LIDCalibrationSize)
		if err != nil {
			if IsDeviceFault(err) {
				return fmt.Errorf("%w: %v", ErrCalibrationUnsupported, err)
			}
			return err
		}
		if len(b) != 2 {
			return kwp.ErrInvalidResponseLength
		}
		if got := int(binary.LittleEndian.Uint16(b)); got != want {
			return &SizeMismatchError{What: "calibration", Wanted: want, Got: got}
		}
		for off := 0; off < want; {
			n := min(calReadChunk, want-off)
			chunk, err := readMemory(ctx, s, RegionEgsCalibration, uint32(off), n)
			if err != nil {
				return fmt.Errorf("read calibration at %d: %w", off, err)
			}
			raw = append(raw, chunk...)
			off += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codec.ParseStoredCalibration(raw)
}

// WriteCalibration 签名并计算 CRC 后按 250 字节写入，全部成功后复位 TCU
func (d *Nag52Diag) WriteCalibration(ctx context.Context, cal *codec.StoredCalibration) error {
	out, err := cal.SignAndCRC()
	if err != nil {
		return err
	}
	if _, err := RegionEgsCalibration.check(0, len(out)); err != nil {
		return err
	}
	return d.WithKWP(func(s *kwp.Server) error {
		for off := 0; off < len(out); {
			n := min(calWriteChunk, len(out)-off)
			if err := writeMemory(ctx, s, RegionEgsCalibration, uint32(off), out[off:off+n]); err != nil {
				log.Printf("标定写入失败, 偏移 %d: %v", off, err)
				return fmt.Errorf("write calibration at %d: %w", off, err)
			}
			off += n
		}
		log.Println("标定写入完成, 复位 TCU")
		return s.ECUReset(ctx, kwp.ResetPowerOn)
	})
}
