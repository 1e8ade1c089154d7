package diag

import (
	"context"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/kwp"
)

const (
	ioDeviceMode        = 0x10
	ioReturnControl     = 0x00
	ioReadCurrent       = 0x01
	ioShortTermAdjust   = 0x07
	ioLongTermAdjust    = 0x08
	deviceModeRespBytes = 5
)

// ReadDeviceMode 30 10 01，响应末尾两字节为大端模式字
func (d *Nag52Diag) ReadDeviceMode(ctx context.Context) (codec.DeviceMode, error) {
	var mode codec.DeviceMode
	err := d.WithKWP(func(s *kwp.Server) error {
		resp, err := s.Send(ctx, []byte{kwp.SIDIOControlByLocalID, ioDeviceMode, ioReadCurrent})
		if err != nil {
			return err
		}
		if len(resp) != deviceModeRespBytes {
			return kwp.ErrInvalidResponseLength
		}
		mode, err = codec.DeviceModeFromBytes(resp[3:5])
		return err
	})
	return mode, err
}

// SetDeviceMode persist 为 true 时写入 EEPROM
func (d *Nag52Diag) SetDeviceMode(ctx context.Context, mode codec.DeviceMode, persist bool) error {
	op := byte(ioShortTermAdjust)
	if persist {
		op = ioLongTermAdjust
	}
	b := mode.Bytes()
	return d.WithKWP(func(s *kwp.Server) error {
		_, err := s.Send(ctx, []byte{kwp.SIDIOControlByLocalID, ioDeviceMode, op, b[0], b[1]})
		return err
	})
}

// ReturnModeControl 把模式控制交还给 TCU
func (d *Nag52Diag) ReturnModeControl(ctx context.Context) error {
	return d.WithKWP(func(s *kwp.Server) error {
		_, err := s.Send(ctx, []byte{kwp.SIDIOControlByLocalID, ioDeviceMode, ioReturnControl})
		return err
	})
}
