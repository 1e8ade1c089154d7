package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MapCmd is the sub command of the map editor local identifier.
type MapCmd byte

const (
	MapRead         MapCmd = 0x01
	MapReadDefault  MapCmd = 0x02
	MapWrite        MapCmd = 0x03
	MapBurn         MapCmd = 0x04
	MapResetToFlash MapCmd = 0x05
	MapUndo         MapCmd = 0x06
	MapReadMeta     MapCmd = 0x07
	MapReadEEPROM   MapCmd = 0x08
)

// MapEditorID is the local identifier of the map editor.
const MapEditorID = 0x19

var ErrMapTruncated = errors.New("codec: map payload truncated")

// MapMeta describes the axes and EEPROM key of a map.
type MapMeta struct {
	X   []int16
	Y   []int16
	Key string
}

// ParseMapMeta decodes u16 len, u16 x count, u16 y count, u16 key length,
// the axis values and the key.
func ParseMapMeta(b []byte) (*MapMeta, error) {
	data, n, err := readU16(b)
	if err != nil {
		return nil, err
	}
	if len(data) != int(n) {
		return nil, &LengthError{Type: "MapMeta", Want: int(n), Got: len(data)}
	}
	data, xn, err := readU16(data)
	if err != nil {
		return nil, err
	}
	data, yn, err := readU16(data)
	if err != nil {
		return nil, err
	}
	data, keyLen, err := readU16(data)
	if err != nil {
		return nil, err
	}
	want := (int(xn)+int(yn))*2 + int(keyLen)
	if len(data) != want {
		return nil, &LengthError{Type: "MapMeta body", Want: want, Got: len(data)}
	}
	m := &MapMeta{X: make([]int16, xn), Y: make([]int16, yn)}
	for i := range m.X {
		m.X[i] = int16(binary.LittleEndian.Uint16(data))
		data = data[2:]
	}
	for i := range m.Y {
		m.Y[i] = int16(binary.LittleEndian.Uint16(data))
		data = data[2:]
	}
	m.Key = string(data)
	return m, nil
}

// Bytes is the inverse of ParseMapMeta.
func (m *MapMeta) Bytes() []byte {
	body := make([]byte, 0, 6+2*(len(m.X)+len(m.Y))+len(m.Key))
	body = binary.LittleEndian.AppendUint16(body, uint16(len(m.X)))
	body = binary.LittleEndian.AppendUint16(body, uint16(len(m.Y)))
	body = binary.LittleEndian.AppendUint16(body, uint16(len(m.Key)))
	for _, v := range m.X {
		body = binary.LittleEndian.AppendUint16(body, uint16(v))
	}
	for _, v := range m.Y {
		body = binary.LittleEndian.AppendUint16(body, uint16(v))
	}
	body = append(body, m.Key...)
	out := binary.LittleEndian.AppendUint16(nil, uint16(len(body)))
	return append(out, body...)
}

// ParseMapData decodes a u16 byte length followed by i16 cells.
func ParseMapData(b []byte) ([]int16, error) {
	data, n, err := readU16(b)
	if err != nil {
		return nil, err
	}
	if len(data) != int(n) {
		return nil, &LengthError{Type: "MapData", Want: int(n), Got: len(data)}
	}
	if n%2 != 0 {
		return nil, fmt.Errorf("codec: map data length %d is odd", n)
	}
	out := make([]int16, n/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out, nil
}

// EncodeMapData is the inverse of ParseMapData.
func EncodeMapData(cells []int16) []byte {
	out := binary.LittleEndian.AppendUint16(nil, uint16(len(cells)*2))
	for _, v := range cells {
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	}
	return out
}

func readU16(b []byte) ([]byte, uint16, error) {
	if len(b) < 2 {
		return nil, 0, ErrMapTruncated
	}
	return b[2:], binary.LittleEndian.Uint16(b), nil
}
