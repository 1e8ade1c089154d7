package diag

import (
	"bytes"
	"context"
	"testing"

	"github.com/LoveWonYoung/egsdiag/codec"
)

func TestReadMap(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	meta := &codec.MapMeta{X: []int16{0, 50, 100}, Y: []int16{-20, 20}, Key: "A2_PCS"}
	tcu.maps[7] = map[codec.MapCmd][]byte{
		codec.MapReadMeta:    meta.Bytes(),
		codec.MapRead:        codec.EncodeMapData([]int16{1, 2, 3, 4, 5, 6}),
		codec.MapReadDefault: codec.EncodeMapData([]int16{0, 0, 0, 0, 0, 0}),
		codec.MapReadEEPROM:  codec.EncodeMapData([]int16{1, 2, 3, 4, 5, -6}),
	}
	m, err := d.ReadMap(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if m.Meta.Key != "A2_PCS" || len(m.Meta.X) != 3 || m.Meta.Y[0] != -20 {
		t.Errorf("meta %+v", m.Meta)
	}
	if len(m.Current) != 6 || m.EEPROM[5] != -6 || m.Default[0] != 0 {
		t.Errorf("map %+v", m)
	}
	reqs := tcu.Requests()
	if !bytes.Equal(reqs[0], []byte{0x21, 0x19, 7, 0x07, 0x00, 0x00}) {
		t.Errorf("meta request % X", reqs[0])
	}
}

func TestWriteMapCommands(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	ctx := context.Background()
	if err := d.WriteMap(ctx, 2, []int16{-1, 300}); err != nil {
		t.Fatal(err)
	}
	if err := d.BurnMap(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := d.UndoMap(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := d.ResetMapToFlash(ctx, 2); err != nil {
		t.Fatal(err)
	}
	want := [][]byte{
		{0x3B, 0x19, 2, 0x03, 0x04, 0x00, 0xFF, 0xFF, 0x2C, 0x01},
		{0x3B, 0x19, 2, 0x04, 0x00, 0x00},
		{0x3B, 0x19, 2, 0x06, 0x00, 0x00},
		{0x3B, 0x19, 2, 0x05, 0x00, 0x00},
	}
	reqs := tcu.Requests()
	for i, w := range want {
		if !bytes.Equal(reqs[i], w) {
			t.Errorf("request %d = % X, want % X", i, reqs[i], w)
		}
	}
}

func TestReadMapMetaTruncated(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	tcu.override = func(req []byte) ([]byte, bool) {
		return []byte{0x61, 0x10}, true
	}
	if _, err := d.ReadMapMeta(context.Background(), 1); err == nil {
		t.Fatal("truncated metadata accepted")
	}
}
