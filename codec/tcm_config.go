package codec

import "fmt"

// Local identifiers for the configuration blocks.
const (
	CoreConfigID  = 0xFE
	EfuseConfigID = 0xFD
)

// TcmCoreConfig is the core coding of the TCU (local id 0xFE).
type TcmCoreConfig struct {
	IsLargeNag              uint8
	DiffRatio               uint16 // x1000
	WheelCircumference      uint16
	IsFourMatic             uint8
	TransferCaseHighRatio   uint16
	TransferCaseLowRatio    uint16
	DefaultProfile          DefaultProfile
	RedLineDieselRPM        uint16
	RedLinePetrolRPM        uint16
	EngineType              EngineType
	EgsCanType              EgsCanType
	ShifterStyle            ShifterStyle // V1.2 PCB and newer
	IO0Usage                IOPinConfig  // V1.3 PCB and newer
	InputSensorPulsesPerRev uint8
	OutputPulseWidthPerKmh  uint8
	MosfetPurpose           MosfetPurpose
	ThrottleMaxOpenAngle    uint8  // HFM only
	CEng                    uint16 // x1000
	EngineDragTorque        uint16 // x10
	JeepChrysler            uint8  // any non-zero value enables it
}

// TcmEfuseConfig is the one time programmable board data (local id 0xFD).
type TcmEfuseConfig struct {
	BoardVer  BoardType
	ManfDay   uint8
	ManfWeek  uint8
	ManfMonth uint8
	ManfYear  uint8
}

var (
	TcmCoreConfigSize  = MustSize(&TcmCoreConfig{})
	TcmEfuseConfigSize = MustSize(&TcmEfuseConfig{})
)

// ManufactureDate formats the efuse date as dd/mm/20yy.
func (e TcmEfuseConfig) ManufactureDate() string {
	return fmt.Sprintf("%02d/%02d/20%02d", e.ManfDay, e.ManfMonth, e.ManfYear)
}

// IsJeepChrysler reports whether the Jeep/Chrysler CAN layer is enabled.
func (c TcmCoreConfig) IsJeepChrysler() bool { return c.JeepChrysler != 0 }

// UnknownFields lists enum fields holding values this build does not know.
func (c TcmCoreConfig) UnknownFields() []string {
	var out []string
	if !c.DefaultProfile.IsKnown() {
		out = append(out, "default_profile")
	}
	if !c.EngineType.IsKnown() {
		out = append(out, "engine_type")
	}
	if !c.EgsCanType.IsKnown() {
		out = append(out, "egs_can_type")
	}
	if !c.ShifterStyle.IsKnown() {
		out = append(out, "shifter_style")
	}
	if !c.IO0Usage.IsKnown() {
		out = append(out, "io_0_usage")
	}
	if !c.MosfetPurpose.IsKnown() {
		out = append(out, "mosfet_purpose")
	}
	return out
}
