package diag

import (
	"context"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/firmware"
	"github.com/LoveWonYoung/egsdiag/kwp"
)

// 自定义 local identifier
const (
	LIDFirmwareHeader  = 0x28
	LIDCoredumpPart    = 0x29
	LIDRunningPart     = 0x2A
	LIDNextOTAPart     = 0x2B
	LIDCalibrationSize = 0xFB
	LIDEfuseConfig     = codec.EfuseConfigID
	LIDCoreConfig      = codec.CoreConfigID
	LIDSettings        = codec.SettingsReadID
	routineFlashCheck  = 0xE1
	otaFormat          = 0xF0
	uploadFormat       = 0x00
)

func readPartition(ctx context.Context, s *kwp.Server, lid byte) (codec.PartitionInfo, error) {
	b, err := s.ReadLocalIdentifier(ctx, lid)
	if err != nil {
		return codec.PartitionInfo{}, err
	}
	p, err := codec.ParsePartitionInfo(b)
	if err != nil {
		return p, kwp.ErrInvalidResponseLength
	}
	return p, nil
}

func (d *Nag52Diag) partition(ctx context.Context, lid byte) (codec.PartitionInfo, error) {
	var p codec.PartitionInfo
	err := d.WithKWP(func(s *kwp.Server) error {
		var err error
		p, err = readPartition(ctx, s, lid)
		return err
	})
	return p, err
}

func (d *Nag52Diag) CoredumpPartition(ctx context.Context) (codec.PartitionInfo, error) {
	return d.partition(ctx, LIDCoredumpPart)
}

func (d *Nag52Diag) RunningPartition(ctx context.Context) (codec.PartitionInfo, error) {
	return d.partition(ctx, LIDRunningPart)
}

func (d *Nag52Diag) NextOTAPartition(ctx context.Context) (codec.PartitionInfo, error) {
	return d.partition(ctx, LIDNextOTAPart)
}

// TotalFlash 整片外部 flash
func (d *Nag52Diag) TotalFlash() codec.PartitionInfo {
	return codec.TotalFlash
}

// Partitions 一次查询的分区表
type Partitions struct {
	Running  codec.PartitionInfo
	NextOTA  codec.PartitionInfo
	Coredump codec.PartitionInfo
	Total    codec.PartitionInfo
}

// QueryPartitions 依次读取运行分区、下一 OTA 分区和 coredump 分区
func (d *Nag52Diag) QueryPartitions(ctx context.Context) (Partitions, error) {
	out := Partitions{Total: codec.TotalFlash}
	err := d.WithKWP(func(s *kwp.Server) error {
		var err error
		if out.Running, err = readPartition(ctx, s, LIDRunningPart); err != nil {
			return err
		}
		if out.NextOTA, err = readPartition(ctx, s, LIDNextOTAPart); err != nil {
			return err
		}
		out.Coredump, err = readPartition(ctx, s, LIDCoredumpPart)
		return err
	})
	return out, err
}

// RunningFirmwareHeader 读取运行中固件的 256 字节头
func (d *Nag52Diag) RunningFirmwareHeader(ctx context.Context) (*firmware.Header, error) {
	var h *firmware.Header
	err := d.WithKWP(func(s *kwp.Server) error {
		b, err := s.ReadLocalIdentifier(ctx, LIDFirmwareHeader)
		if err != nil {
			return err
		}
		if h, err = firmware.ParseHeader(b); err != nil {
			return kwp.ErrInvalidResponseLength
		}
		return nil
	})
	return h, err
}
