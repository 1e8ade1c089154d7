package firmware

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
)

// Firmware is a raw image plus its decoded header.
type Firmware struct {
	Raw          []byte
	Header       *Header
	HeaderOffset int
}

// Parse locates and decodes the header of a binary image.
func Parse(raw []byte) (*Firmware, error) {
	off, err := FindHeader(raw)
	if err != nil {
		return nil, err
	}
	h, err := ParseHeader(raw[off : off+HeaderSize])
	if err != nil {
		return nil, err
	}
	return &Firmware{Raw: raw, Header: h, HeaderOffset: off}, nil
}

// LoadFile reads a .bin or Intel .hex image.
func LoadFile(path string) (*Firmware, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".hex") {
		raw, err := LoadHex(f)
		if err != nil {
			return nil, err
		}
		return Parse(raw)
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// LoadHex flattens an Intel HEX file into one contiguous image starting at
// its lowest address. Gaps are filled with 0xFF like erased flash.
func LoadHex(r io.Reader) ([]byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("firmware: parse hex: %w", err)
	}
	segs := mem.GetDataSegments()
	if len(segs) == 0 {
		return nil, fmt.Errorf("firmware: hex file has no data")
	}
	start, end := segs[0].Address, segs[0].Address
	for _, s := range segs {
		start = min(start, s.Address)
		end = max(end, s.Address+uint32(len(s.Data)))
	}
	return mem.ToBinary(start, end-start, 0xFF), nil
}
