package diag

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestMemoryBoundsRejectedWithoutIO(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	ctx := context.Background()
	size := RegionSram0.End() - RegionSram0.Start()

	tests := []struct {
		name string
		run  func() error
	}{
		{"read past end", func() error { _, err := d.ReadMemory(ctx, RegionSram0, size-10, 11); return err }},
		{"write past end", func() error { return d.WriteMemory(ctx, RegionSram0, size, []byte{1}) }},
		{"read too long", func() error { _, err := d.ReadMemory(ctx, RegionPsram, 0, 256); return err }},
		{"write too long", func() error { return d.WriteMemory(ctx, RegionPsram, 0, make([]byte, 252)) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			if !errors.Is(err, ErrParameterInvalid) {
				t.Fatalf("err = %v", err)
			}
		})
	}
	if n := tcu.RequestCount(); n != 0 {
		t.Errorf("%d requests sent for rejected accesses", n)
	}
}

func TestMemoryReadWrite(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	ctx := context.Background()
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := d.WriteMemory(ctx, RegionSram1, 0x10, data); err != nil {
		t.Fatal(err)
	}
	got, err := d.ReadMemory(ctx, RegionSram1, 0x10, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read % X", got)
	}
	reqs := tcu.Requests()
	if !bytes.Equal(reqs[0][:5], []byte{0x3D, 0x04, 0x00, 0x0F, 0x04}) {
		t.Errorf("write request % X", reqs[0])
	}
	if !bytes.Equal(reqs[1], []byte{0x23, 0x04, 0x00, 0x0F, 0x04}) {
		t.Errorf("read request % X", reqs[1])
	}
}

func TestMemoryLastByteOfRegion(t *testing.T) {
	d, _, _ := newTestDiag(t)
	size := RegionSram2.End() - RegionSram2.Start()
	if _, err := d.ReadMemory(context.Background(), RegionSram2, size-4, 4); err != nil {
		t.Errorf("read ending at region end: %v", err)
	}
}

func TestParseMemoryRegion(t *testing.T) {
	for _, r := range []MemoryRegion{RegionSram0, RegionSram1, RegionSram2, RegionPsram, RegionEgsCalibration} {
		got, err := ParseMemoryRegion(r.String())
		if err != nil || got != r {
			t.Errorf("%s: %v %v", r, got, err)
		}
	}
	if _, err := ParseMemoryRegion("rom"); err == nil {
		t.Error("unknown region accepted")
	}
}
