// Package firmware loads TCU firmware images and decodes their app header.
package firmware

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/LoveWonYoung/egsdiag/codec"
)

const (
	HeaderSize = 256
	// the magic may start anywhere in [0, maxHeaderOffset]
	maxHeaderOffset = 53
)

// HeaderMagic 32 54 CD AB
var HeaderMagic = []byte{0x32, 0x54, 0xCD, 0xAB}

var ErrHeaderNotFound = errors.New("firmware: could not find header magic")

// Header is the 256 byte application descriptor.
type Header struct {
	Magic         uint32
	SecureVersion uint32
	Reserved1     [2]uint32
	VersionRaw    [32]byte
	ProjectRaw    [32]byte
	TimeRaw       [16]byte
	DateRaw       [16]byte
	IDFRaw        [32]byte
	ElfSHA        [32]byte
	Reserved2     [20]uint32
}

// ParseHeader decodes exactly HeaderSize bytes.
func ParseHeader(b []byte) (*Header, error) {
	var h Header
	if err := codec.Unpack(b, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func fieldString(b []byte) string {
	if !utf8.Valid(b) {
		return "UNKNOWN"
	}
	return string(bytes.Trim(b, "\x00"))
}

func (h *Header) Version() string     { return fieldString(h.VersionRaw[:]) }
func (h *Header) ProjectName() string { return fieldString(h.ProjectRaw[:]) }
func (h *Header) Time() string        { return fieldString(h.TimeRaw[:]) }
func (h *Header) Date() string        { return fieldString(h.DateRaw[:]) }
func (h *Header) IDFVersion() string  { return fieldString(h.IDFRaw[:]) }

// ElfSHAHex is the hex form of the ELF hash.
func (h *Header) ElfSHAHex() string {
	return hex.EncodeToString(h.ElfSHA[:])
}

func (h *Header) String() string {
	return fmt.Sprintf("%s %s (built %s %s, IDF %s)", h.ProjectName(), h.Version(), h.Date(), h.Time(), h.IDFVersion())
}

// FindHeader scans the start of an image for the header magic and returns
// the offset of the header.
func FindHeader(image []byte) (int, error) {
	for off := 0; off <= maxHeaderOffset; off++ {
		rest := image[min(off, len(image)):]
		if len(rest) < len(HeaderMagic) {
			break
		}
		if bytes.Equal(rest[:len(HeaderMagic)], HeaderMagic) {
			if len(rest) < HeaderSize {
				return 0, fmt.Errorf("%w: header truncated at offset %d", ErrHeaderNotFound, off)
			}
			return off, nil
		}
	}
	return 0, ErrHeaderNotFound
}
