// Package flashstore wraps a text document into the compressed container
// stored in a TCU data partition: DE AD BE EF, u32 LE compressed length,
// zlib payload. Anything after the payload is ignored.
package flashstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

const HeaderSize = 8

var Magic = [4]byte{0xDE, 0xAD, 0xBE, 0xEF}

var ErrInvalidMagic = errors.New("flashstore: invalid magic")

// ContentSizeError means the buffer is smaller than the header or the
// declared payload.
type ContentSizeError struct {
	Wanted    int
	Available int
}

func (e *ContentSizeError) Error() string {
	return fmt.Sprintf("flashstore: invalid content size: need %d bytes, have %d", e.Wanted, e.Available)
}

// UncompressError wraps a zlib failure.
type UncompressError struct {
	Err error
}

func (e *UncompressError) Error() string {
	return "flashstore: uncompress failed: " + e.Err.Error()
}

func (e *UncompressError) Unwrap() error { return e.Err }

// Header of a container.
type Header struct {
	Magic            [4]byte
	LengthCompressed uint32
}

func (h Header) Bytes() []byte {
	out := make([]byte, HeaderSize)
	copy(out, h.Magic[:])
	binary.LittleEndian.PutUint32(out[4:], h.LengthCompressed)
	return out
}

// Build compresses raw at best compression.
func Build(raw []byte) (Header, []byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return Header{}, nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return Header{}, nil, err
	}
	if err := w.Close(); err != nil {
		return Header{}, nil, err
	}
	return Header{Magic: Magic, LengthCompressed: uint32(buf.Len())}, buf.Bytes(), nil
}

// Encode returns header and payload as one buffer ready to be written.
func Encode(raw []byte) ([]byte, error) {
	h, payload, err := Build(raw)
	if err != nil {
		return nil, err
	}
	return append(h.Bytes(), payload...), nil
}

// ParseHeader checks size and magic.
func ParseHeader(flash []byte) (Header, error) {
	var h Header
	if len(flash) <= HeaderSize {
		return h, &ContentSizeError{Wanted: HeaderSize + 1, Available: len(flash)}
	}
	if !bytes.Equal(flash[:4], Magic[:]) {
		return h, ErrInvalidMagic
	}
	copy(h.Magic[:], flash[:4])
	h.LengthCompressed = binary.LittleEndian.Uint32(flash[4:HeaderSize])
	return h, nil
}

// Parse decodes a container read back from flash.
func Parse(flash []byte) (Header, []byte, error) {
	h, err := ParseHeader(flash)
	if err != nil {
		return h, nil, err
	}
	data := flash[HeaderSize:]
	if uint64(len(data)) < uint64(h.LengthCompressed) {
		return h, nil, &ContentSizeError{Wanted: HeaderSize + int(h.LengthCompressed), Available: len(flash)}
	}
	r, err := zlib.NewReader(bytes.NewReader(data[:h.LengthCompressed]))
	if err != nil {
		return h, nil, &UncompressError{Err: err}
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return h, nil, &UncompressError{Err: err}
	}
	return h, out, nil
}
