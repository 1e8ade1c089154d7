package codec

import (
	"strings"
	"testing"
)

func TestDeviceModeWire(t *testing.T) {
	m, err := DeviceModeFromBytes([]byte{0x80, 0x05})
	if err != nil {
		t.Fatal(err)
	}
	if !m.Has(ModeCanLogger) || !m.Has(ModeNormal) || !m.Has(ModeRoller) {
		t.Fatalf("mode %s", m)
	}
	if b := m.Bytes(); b != [2]byte{0x80, 0x05} {
		t.Fatalf("bytes % X", b)
	}
}

func TestDeviceModeKeepsUnknownBits(t *testing.T) {
	m, _ := DeviceModeFromBytes([]byte{0x02, 0x22}) // bits 1, 5 and 9 have no name
	if m.Unknown() != 0x0222 {
		t.Fatalf("unknown 0x%04X", uint16(m.Unknown()))
	}
	m = m.With(ModeSlave).Without(ModeNormal)
	if m.Bytes() != [2]byte{0x02, 0x2A} {
		t.Fatalf("write back % X", m.Bytes())
	}
	if s := m.String(); s != "SLAVE|0x0222" {
		t.Fatalf("String() = %q", s)
	}
}

func TestParseDeviceModeName(t *testing.T) {
	m, err := ParseDeviceModeName("no_calibration")
	if err != nil || m != ModeNoCalibration {
		t.Fatalf("%v %v", m, err)
	}
	if _, err := ParseDeviceModeName("turbo"); err == nil {
		t.Fatal("unknown name must fail")
	}
	if DeviceMode(0).String() != "NONE" {
		t.Fatal("zero mode")
	}
}

func TestDeviceModeAttention(t *testing.T) {
	m, _ := DeviceModeFromBytes([]byte{0x81, 0x80}) // bits 7, 8 and 15
	if m.Unknown() != 0 {
		t.Fatalf("unknown 0x%04X", uint16(m.Unknown()))
	}
	if s := m.String(); s != "NO_CALIBRATION|NO_EFUSE|CANLOGGER" {
		t.Fatalf("String() = %q", s)
	}
	if !strings.Contains(m.Attention(), "no calibration") {
		t.Fatalf("attention %q", m.Attention())
	}
	m = m.Without(ModeNoCalibration)
	if !strings.Contains(m.Attention(), "eFuse") {
		t.Fatalf("attention %q", m.Attention())
	}
	if m.Bytes() != [2]byte{0x81, 0x00} {
		t.Fatalf("write back % X", m.Bytes())
	}
	if ModeNormal.Attention() != "" {
		t.Fatal("normal mode needs no attention")
	}
}
