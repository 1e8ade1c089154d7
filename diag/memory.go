package diag

import (
	"context"
	"fmt"

	"github.com/LoveWonYoung/egsdiag/kwp"
)

// MemoryRegion 可按地址读写的内存区域
type MemoryRegion int

const (
	RegionSram0 MemoryRegion = iota
	RegionSram1
	RegionSram2
	RegionPsram
	RegionEgsCalibration
)

const (
	MaxReadMemory  = 255
	MaxWriteMemory = 251
)

var regionBounds = map[MemoryRegion][2]uint32{
	RegionSram0:          {0x00FFFF, 0x02FFFF},
	RegionSram1:          {0x03FFFF, 0x04FFFF},
	RegionSram2:          {0x051FFF, 0x071FFF},
	RegionPsram:          {0x100000, 0x4FFFFF},
	RegionEgsCalibration: {0x800000, 0x87D000},
}

var regionNames = map[MemoryRegion]string{
	RegionSram0:          "sram0",
	RegionSram1:          "sram1",
	RegionSram2:          "sram2",
	RegionPsram:          "psram",
	RegionEgsCalibration: "calibration",
}

func (r MemoryRegion) Start() uint32 { return regionBounds[r][0] }
func (r MemoryRegion) End() uint32   { return regionBounds[r][1] }

func (r MemoryRegion) String() string {
	if n, ok := regionNames[r]; ok {
		return n
	}
	return fmt.Sprintf("region(%d)", int(r))
}

// ParseMemoryRegion 命令行名称 -> 区域
func ParseMemoryRegion(name string) (MemoryRegion, error) {
	for r, n := range regionNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown memory region %q", name)
}

// check start+offset+len 不能越过区域末尾
func (r MemoryRegion) check(offset uint32, n int) (uint32, error) {
	if _, ok := regionBounds[r]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrParameterInvalid, r)
	}
	addr := uint64(r.Start()) + uint64(offset)
	if addr+uint64(n) > uint64(r.End()) {
		return 0, &BoundsError{Region: r, Address: uint32(addr), Length: n, End: r.End()}
	}
	return uint32(addr), nil
}

func addr24(sid byte, addr uint32) []byte {
	return []byte{sid, byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

func readMemory(ctx context.Context, s *kwp.Server, r MemoryRegion, offset uint32, n int) ([]byte, error) {
	if n <= 0 || n > MaxReadMemory {
		return nil, &PayloadTooLargeError{Max: MaxReadMemory, Got: n}
	}
	addr, err := r.check(offset, n)
	if err != nil {
		return nil, err
	}
	req := append(addr24(kwp.SIDReadMemoryByAddress, addr), byte(n))
	resp, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp[1:], nil
}

func writeMemory(ctx context.Context, s *kwp.Server, r MemoryRegion, offset uint32, data []byte) error {
	if len(data) > MaxWriteMemory {
		return &PayloadTooLargeError{Max: MaxWriteMemory, Got: len(data)}
	}
	addr, err := r.check(offset, len(data))
	if err != nil {
		return err
	}
	req := append(addr24(kwp.SIDWriteMemoryByAddress, addr), byte(len(data)))
	req = append(req, data...)
	_, err = s.Send(ctx, req)
	return err
}

// ReadMemory 23 addr3 len，最多 255 字节。越界时不访问设备。
func (d *Nag52Diag) ReadMemory(ctx context.Context, r MemoryRegion, offset uint32, n int) ([]byte, error) {
	if _, err := r.check(offset, n); err != nil {
		return nil, err
	}
	var out []byte
	err := d.WithKWP(func(s *kwp.Server) error {
		var err error
		out, err = readMemory(ctx, s, r, offset, n)
		return err
	})
	return out, err
}

// WriteMemory 3D addr3 len data，最多 251 字节。越界时不访问设备。
func (d *Nag52Diag) WriteMemory(ctx context.Context, r MemoryRegion, offset uint32, data []byte) error {
	if _, err := r.check(offset, len(data)); err != nil {
		return err
	}
	return d.WithKWP(func(s *kwp.Server) error {
		return writeMemory(ctx, s, r, offset, data)
	})
}
