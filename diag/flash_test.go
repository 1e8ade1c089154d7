package diag

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/flashstore"
	"github.com/LoveWonYoung/egsdiag/nvs"
)

func testImage(n int) []byte {
	img := make([]byte, n)
	for i := range img {
		img[i] = byte(i * 7)
	}
	return img
}

func TestFlashBlockIDWrap(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	tcu.blockSize = 0x40
	img := testImage(300 * 0x40)

	var states []FlashState
	f := d.NewFlasher(func(p Progress) {
		if len(states) == 0 || states[len(states)-1] != p.State {
			states = append(states, p.State)
		}
	})
	if err := f.Flash(context.Background(), img); err != nil {
		t.Fatal(err)
	}
	if f.State() != FlashDone {
		t.Errorf("state = %s", f.State())
	}
	want := []FlashState{FlashBegin, FlashTransferring, FlashEnding, FlashDone}
	if len(states) != len(want) {
		t.Fatalf("states = %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states = %v", states)
		}
	}

	if len(tcu.blockIDs) != 300 {
		t.Fatalf("blocks = %d", len(tcu.blockIDs))
	}
	for i, id := range tcu.blockIDs {
		if id != byte((i+1)&0xFF) {
			t.Fatalf("block %d id 0x%02X", i, id)
		}
	}
	if tcu.blockIDs[254] != 0xFF || tcu.blockIDs[255] != 0x00 || tcu.blockIDs[256] != 0x01 {
		t.Errorf("wrap ids % X", tcu.blockIDs[254:257])
	}
	if !bytes.Equal(tcu.flash[0x20000:0x20000+len(img)], img) {
		t.Error("flash contents differ")
	}
	if tcu.resets != 1 {
		t.Errorf("resets = %d", tcu.resets)
	}

	reqs := tcu.Requests()
	if !bytes.Equal(reqs[1], []byte{0x10, 0x85}) {
		t.Errorf("session request % X", reqs[1])
	}
	if !bytes.Equal(reqs[2], []byte{0x34, 0x02, 0x00, 0x00, 0xF0, 0x00, 0x4B, 0x00}) {
		t.Errorf("download request % X", reqs[2])
	}
}

func TestFlashCheckFailure(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	tcu.checkStatus = 0x01
	f := d.NewFlasher(nil)
	err := f.Flash(context.Background(), testImage(1000))
	var fe *FlashError
	if !errors.As(err, &fe) || fe.Stage != FlashEnding || !errors.Is(err, ErrFlashCheckFailed) {
		t.Fatalf("err = %v", err)
	}
	if f.State() != FlashFailed {
		t.Errorf("state = %s", f.State())
	}
	if tcu.resets != 0 {
		t.Error("reset after failed check")
	}
}

func TestFlashRejectsOversizedImage(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	err := d.NewFlasher(nil).Flash(context.Background(), testImage(0x20001))
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("err = %v", err)
	}
	for _, r := range tcu.Requests() {
		if r[0] == 0x34 {
			t.Fatal("download started for oversized image")
		}
	}
}

func TestFlashTransferFaultKeepsStage(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	n := 0
	tcu.override = func(req []byte) ([]byte, bool) {
		if req[0] == 0x36 {
			if n++; n == 3 {
				return []byte{0x7F, 0x36, 0x73}, true
			}
		}
		return nil, false
	}
	err := d.NewFlasher(nil).Flash(context.Background(), testImage(0x400))
	var fe *FlashError
	if !errors.As(err, &fe) || fe.Stage != FlashTransferring || !IsDeviceFault(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestReadPartition(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	part := codec.PartitionInfo{Address: 0x1000, Size: 0x300}
	copy(tcu.flash[part.Address:], testImage(int(part.Size)))

	got, err := d.NewFlasher(nil).ReadPartition(context.Background(), part)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, testImage(int(part.Size))) {
		t.Error("partition contents differ")
	}
	var ids []byte
	for _, r := range tcu.Requests() {
		if r[0] == 0x36 {
			ids = append(ids, r[1])
		}
	}
	if !bytes.Equal(ids, []byte{1, 2, 3, 4}) {
		t.Errorf("block ids % X", ids)
	}
	if tcu.resets != 0 {
		t.Error("read must not reset the TCU")
	}
}

func TestDumpNVS(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	for i := nvs.PartitionAddress; i < nvs.PartitionAddress+nvs.PartitionSize; i++ {
		tcu.flash[i] = 0xFF
	}
	raw, part, err := d.DumpNVS(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != nvs.PartitionSize || len(part.Pages) != nvs.PartitionSize/nvs.PageSize {
		t.Errorf("raw %d bytes, %d pages", len(raw), len(part.Pages))
	}
}

func TestModuleSettingsUploadDownload(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	ctx := context.Background()
	part := codec.PartitionInfo{Address: 0x30000, Size: 0x2000}
	yml := []byte("Enums: []\nIStructs: []\nSettings:\n  - Name: \"TCC_SETTINGS\"\n    SCN_ID: 1\n    Params: []\n")

	if err := d.UploadModuleSettings(ctx, part, yml, nil); err != nil {
		t.Fatal(err)
	}
	if tcu.resets != 0 {
		t.Error("upload must not reset the TCU")
	}
	if _, _, err := flashstore.Parse(tcu.flash[part.Address:]); err != nil {
		t.Fatalf("container in flash: %v", err)
	}

	got, doc, err := d.DownloadModuleSettings(ctx, part, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, yml) {
		t.Errorf("yaml = %q", got)
	}
	if _, ok := doc.Setting(1); !ok {
		t.Error("setting 1 missing")
	}
}

func TestUploadModuleSettingsTooLarge(t *testing.T) {
	d, tcu, _ := newTestDiag(t)
	part := codec.PartitionInfo{Address: 0x30000, Size: 16}
	yml := []byte("Enums: []\nIStructs: []\nSettings: []\n")
	err := d.UploadModuleSettings(context.Background(), part, yml, nil)
	var sm *SizeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("err = %v", err)
	}
	if tcu.RequestCount() != 0 {
		t.Error("oversized container sent")
	}
}
