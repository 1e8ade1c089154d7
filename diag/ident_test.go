package diag

import (
	"context"
	"testing"

	"github.com/LoveWonYoung/egsdiag/codec"
)

func TestQueryIdent(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	tcu.ident[identDaimler] = []byte{
		0x00, 0x33, 0x54, 0x51, 0x32, // 料号
		0x49, 0x22, // hw
		0x05, 0x23, // sw
		0x01,       // 供应商
		0x02, 0x52, // 诊断变体
		0x00,
		0x22, 0x12, 0x31,
	}
	id, err := d.QueryIdent(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id.PartNumber != "0033545132" || id.EgsMode != codec.EgsMode(0x0252) {
		t.Errorf("ident %+v", id)
	}
	if id.BoardVer != PCBV13 || id.HwWeek != 49 || id.SwYear != 23 {
		t.Errorf("ident %+v", id)
	}
	if id.ManfDay != 31 || id.ManfMonth != 12 || id.ManfYear != 22 {
		t.Errorf("manufacture %d/%d/%d", id.ManfDay, id.ManfMonth, id.ManfYear)
	}
}

func TestParseDaimlerIdentShort(t *testing.T) {
	if _, err := ParseDaimlerIdent([]byte{0x5A, 0x86, 0x00}); !IsRecoverable(err) {
		t.Errorf("err = %v", err)
	}
}

func TestSerialNumber(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	tcu.ident[identSerialNumber] = []byte("EGS52-0001\x00\x00")
	sn, err := d.SerialNumber(context.Background())
	if err != nil || sn != "EGS52-0001" {
		t.Fatalf("sn %q, %v", sn, err)
	}
}
