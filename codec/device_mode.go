package codec

import (
	"fmt"
	"strings"
)

// DeviceMode is the TCU operating mode bit set. It travels big-endian on the
// wire. Bits without a name are kept as they are.
type DeviceMode uint16

const (
	ModeNormal         DeviceMode = 1 << 0
	ModeRoller         DeviceMode = 1 << 2
	ModeSlave          DeviceMode = 1 << 3
	ModeTemporaryError DeviceMode = 1 << 4
	ModeError          DeviceMode = 1 << 6
	ModeNoCalibration  DeviceMode = 1 << 7
	ModeNoEfuse        DeviceMode = 1 << 8
	ModeCanLogger      DeviceMode = 1 << 15
)

var deviceModeNames = []struct {
	bit  DeviceMode
	name string
}{
	{ModeNormal, "NORMAL"},
	{ModeRoller, "ROLLER"},
	{ModeSlave, "SLAVE"},
	{ModeTemporaryError, "TEMPORARY_ERROR"},
	{ModeError, "ERROR"},
	{ModeNoCalibration, "NO_CALIBRATION"},
	{ModeNoEfuse, "NO_EFUSE"},
	{ModeCanLogger, "CANLOGGER"},
}

// DeviceModeFromBytes decodes a big-endian mode word.
func DeviceModeFromBytes(b []byte) (DeviceMode, error) {
	if len(b) != 2 {
		return 0, &LengthError{Type: "DeviceMode", Want: 2, Got: len(b)}
	}
	return DeviceMode(uint16(b[0])<<8 | uint16(b[1])), nil
}

// Bytes returns the big-endian wire form.
func (m DeviceMode) Bytes() [2]byte {
	return [2]byte{byte(m >> 8), byte(m)}
}

func (m DeviceMode) Has(flag DeviceMode) bool {
	return m&flag == flag
}

func (m DeviceMode) With(flag DeviceMode) DeviceMode {
	return m | flag
}

func (m DeviceMode) Without(flag DeviceMode) DeviceMode {
	return m &^ flag
}

// Unknown returns the set bits that have no name.
func (m DeviceMode) Unknown() DeviceMode {
	var known DeviceMode
	for _, n := range deviceModeNames {
		known |= n.bit
	}
	return m &^ known
}

func (m DeviceMode) String() string {
	if m == 0 {
		return "NONE"
	}
	var parts []string
	for _, n := range deviceModeNames {
		if m.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	if u := m.Unknown(); u != 0 {
		parts = append(parts, fmt.Sprintf("0x%04X", uint16(u)))
	}
	return strings.Join(parts, "|")
}

// Attention returns the condition that keeps the TCU from running normally,
// in priority order, or "" when there is none.
func (m DeviceMode) Attention() string {
	switch {
	case m.Has(ModeNoCalibration):
		return "TCU has no calibration and will not function, write one from the compatibility list"
	case m.Has(ModeNoEfuse):
		return "TCU is freshly built and needs its eFuse configuration"
	case m.Has(ModeCanLogger):
		return "TCU is in CAN logging mode and will not function"
	}
	return ""
}

// ParseDeviceModeName maps a flag name (case insensitive) to its bit.
func ParseDeviceModeName(name string) (DeviceMode, error) {
	for _, n := range deviceModeNames {
		if strings.EqualFold(n.name, name) {
			return n.bit, nil
		}
	}
	return 0, fmt.Errorf("codec: unknown device mode %q", name)
}
