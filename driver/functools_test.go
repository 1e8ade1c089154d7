package driver

import (
	"bytes"
	"testing"
)

func TestSplitBlock(t *testing.T) {
	data := make([]byte, 10)
	for i := range data {
		data[i] = byte(i)
	}
	tests := []struct {
		size    int
		lengths []int
	}{
		{3, []int{3, 3, 3, 1}},
		{5, []int{5, 5}},
		{20, []int{10}},
		{0, nil},
	}
	for _, tc := range tests {
		blocks := SplitBlock(data, tc.size)
		if len(blocks) != len(tc.lengths) {
			t.Fatalf("size %d: got %d blocks, want %d", tc.size, len(blocks), len(tc.lengths))
		}
		var joined []byte
		for i, b := range blocks {
			if len(b) != tc.lengths[i] {
				t.Errorf("size %d block %d: len %d, want %d", tc.size, i, len(b), tc.lengths[i])
			}
			joined = append(joined, b...)
		}
		if tc.size > 0 && !bytes.Equal(joined, data) {
			t.Errorf("size %d: joined blocks differ", tc.size)
		}
	}
}

func TestUint24(t *testing.T) {
	buf := make([]byte, 3)
	PutUint24(buf, 0x034900)
	if !bytes.Equal(buf, []byte{0x03, 0x49, 0x00}) {
		t.Errorf("PutUint24 = % X", buf)
	}
	if got := Uint24([]byte{0x12, 0x34, 0x56}); got != 0x123456 {
		t.Errorf("Uint24 = 0x%X", got)
	}
}

func TestSplitHexFrame(t *testing.T) {
	id, payload, err := splitHexFrame("07E9705001")
	if err != nil {
		t.Fatal(err)
	}
	if id != 0x7E9 || !bytes.Equal(payload, []byte{0x70, 0x50, 0x01}) {
		t.Errorf("id=0x%X payload=% X", id, payload)
	}
	for _, bad := range []string{"07E", "07E97", "ZZZZ00", "07E9GG"} {
		if _, _, err := splitHexFrame(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
