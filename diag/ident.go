package diag

import (
	"context"
	"fmt"
	"strings"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/kwp"
)

const (
	sidReadECUIdentification = 0x1A
	identDaimler             = 0x86
	identSerialNumber        = 0x8C
	daimlerIdentLen          = 18
)

// PCBVersion 由硬件生产周/年推断
type PCBVersion int

const (
	PCBUnknown PCBVersion = iota
	PCBV11
	PCBV12
	PCBV13
)

func pcbFromDate(week, year int) PCBVersion {
	switch {
	case week == 49 && year == 21:
		return PCBV11
	case week == 27 && year == 22:
		return PCBV12
	case week == 49 && year == 22:
		return PCBV13
	}
	return PCBUnknown
}

func (v PCBVersion) String() string {
	switch v {
	case PCBV11:
		return "V1.1"
	case PCBV12:
		return "V1.2"
	case PCBV13:
		return "V1.3"
	}
	return "V_NDEF"
}

// IdentData 1A 86 Daimler 标识
type IdentData struct {
	PartNumber string
	EgsMode    codec.EgsMode
	BoardVer   PCBVersion
	ManfDay    int
	ManfMonth  int
	ManfYear   int
	HwWeek     int
	HwYear     int
	SwWeek     int
	SwYear     int
}

func bcd(b byte) int {
	return 10*int(b>>4) + int(b&0x0F)
}

// ParseDaimlerIdent 响应布局:
// 5A 86 | 料号 BCD x5 | hw 周 年 | sw 周 年 | 供应商 | 诊断变体 u16 BE | 保留 | 生产 年 月 日
func ParseDaimlerIdent(resp []byte) (IdentData, error) {
	if len(resp) < daimlerIdentLen {
		return IdentData{}, kwp.ErrInvalidResponseLength
	}
	var pn strings.Builder
	for _, b := range resp[2:7] {
		fmt.Fprintf(&pn, "%02X", b)
	}
	id := IdentData{
		PartNumber: pn.String(),
		HwWeek:     bcd(resp[7]),
		HwYear:     bcd(resp[8]),
		SwWeek:     bcd(resp[9]),
		SwYear:     bcd(resp[10]),
		EgsMode:    codec.EgsMode(uint16(resp[12])<<8 | uint16(resp[13])),
		ManfYear:   bcd(resp[15]),
		ManfMonth:  bcd(resp[16]),
		ManfDay:    bcd(resp[17]),
	}
	id.BoardVer = pcbFromDate(id.HwWeek, id.HwYear)
	return id, nil
}

// QueryIdent 读取 Daimler 标识
func (d *Nag52Diag) QueryIdent(ctx context.Context) (IdentData, error) {
	var id IdentData
	err := d.WithKWP(func(s *kwp.Server) error {
		resp, err := s.Send(ctx, []byte{sidReadECUIdentification, identDaimler})
		if err != nil {
			return err
		}
		id, err = ParseDaimlerIdent(resp)
		return err
	})
	return id, err
}

// SerialNumber 1A 8C，去掉尾部 0x00/0xFF 填充
func (d *Nag52Diag) SerialNumber(ctx context.Context) (string, error) {
	var sn string
	err := d.WithKWP(func(s *kwp.Server) error {
		resp, err := s.Send(ctx, []byte{sidReadECUIdentification, identSerialNumber})
		if err != nil {
			return err
		}
		if len(resp) < 2 {
			return kwp.ErrInvalidResponseLength
		}
		sn = strings.TrimRight(string(resp[2:]), "\x00\xff")
		return nil
	})
	return sn, err
}
