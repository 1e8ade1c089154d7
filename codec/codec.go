// Package codec packs and unpacks the fixed-layout structures exchanged with
// the TCU. Everything is little-endian unless a type documents otherwise.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// LengthError is returned when a buffer does not match a structure's fixed size.
type LengthError struct {
	Type string
	Want int
	Got  int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("codec: %s needs %d bytes, got %d", e.Type, e.Want, e.Got)
}

// Size returns the packed size of v, or -1 if v has no fixed layout.
func Size(v any) int {
	return binary.Size(v)
}

// Pack encodes v into exactly Size(v) bytes.
func Pack(v any) ([]byte, error) {
	n := binary.Size(v)
	if n < 0 {
		return nil, fmt.Errorf("codec: %T has no fixed layout", v)
	}
	buf := bytes.NewBuffer(make([]byte, 0, n))
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("codec: pack %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// Unpack decodes data into v, which must be a pointer to a fixed layout value.
// The input has to be exactly the packed size.
func Unpack(data []byte, v any) error {
	n := binary.Size(v)
	if n < 0 {
		return fmt.Errorf("codec: %T has no fixed layout", v)
	}
	if len(data) != n {
		return &LengthError{Type: fmt.Sprintf("%T", v), Want: n, Got: len(data)}
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, v); err != nil {
		return fmt.Errorf("codec: unpack %T: %w", v, err)
	}
	return nil
}

// UnpackAs is Unpack for callers that want the value back.
func UnpackAs[T any](data []byte) (T, error) {
	var v T
	err := Unpack(data, &v)
	return v, err
}

// MustSize panics if v has no fixed layout. Used for package level size constants.
func MustSize(v any) int {
	n := binary.Size(v)
	if n < 0 {
		panic(fmt.Sprintf("codec: %T has no fixed layout", v))
	}
	return n
}
