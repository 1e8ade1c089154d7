package codec

import "fmt"

// The enums below are transmitted as raw integers. Values the firmware adds
// later still decode, they just print as Unknown and report IsKnown false.

type EgsCanType uint8

const (
	CanUnknown EgsCanType = iota
	CanEGS51
	CanEGS52
	CanEGS53
	CanHFM
	CanCustomECU
)

var egsCanTypeNames = map[EgsCanType]string{
	CanUnknown:   "UNKNOWN",
	CanEGS51:     "EGS51",
	CanEGS52:     "EGS52",
	CanEGS53:     "EGS53",
	CanHFM:       "HFM",
	CanCustomECU: "CUSTOM_ECU",
}

func (v EgsCanType) String() string { return enumString(egsCanTypeNames, v) }
func (v EgsCanType) IsKnown() bool  { _, ok := egsCanTypeNames[v]; return ok }

type ShifterStyle uint8

const (
	ShifterEWMCAN ShifterStyle = iota
	ShifterTRRS
	ShifterSLRMcLaren
)

var shifterStyleNames = map[ShifterStyle]string{
	ShifterEWMCAN:     "EWM_CAN",
	ShifterTRRS:       "TRRS",
	ShifterSLRMcLaren: "SLR_MCLAREN",
}

func (v ShifterStyle) String() string { return enumString(shifterStyleNames, v) }
func (v ShifterStyle) IsKnown() bool  { _, ok := shifterStyleNames[v]; return ok }

type IOPinConfig uint8

const (
	IOPinNotConnected IOPinConfig = iota
	IOPinInput
	IOPinOutput
	IOPinTCCMod13
)

var ioPinConfigNames = map[IOPinConfig]string{
	IOPinNotConnected: "Not connected",
	IOPinInput:        "Speed sensor input",
	IOPinOutput:       "Speedometer pulse output",
	IOPinTCCMod13:     "TCC Zener cutoff (With mod PCB)",
}

func (v IOPinConfig) String() string { return enumString(ioPinConfigNames, v) }
func (v IOPinConfig) IsKnown() bool  { _, ok := ioPinConfigNames[v]; return ok }

type MosfetPurpose uint8

const (
	MosfetNotConnected MosfetPurpose = iota
	MosfetTorqueCutTrigger
	MosfetB3BrakeSolenoid
)

var mosfetPurposeNames = map[MosfetPurpose]string{
	MosfetNotConnected:     "NotConnected",
	MosfetTorqueCutTrigger: "TorqueCutTrigger",
	MosfetB3BrakeSolenoid:  "B3BrakeSolenoid",
}

func (v MosfetPurpose) String() string { return enumString(mosfetPurposeNames, v) }
func (v MosfetPurpose) IsKnown() bool  { _, ok := mosfetPurposeNames[v]; return ok }

type DefaultProfile uint8

const (
	ProfileStandard DefaultProfile = iota
	ProfileComfort
	ProfileWinter
	ProfileAgility
	ProfileManual
)

var defaultProfileNames = map[DefaultProfile]string{
	ProfileStandard: "Standard",
	ProfileComfort:  "Comfort",
	ProfileWinter:   "Winter",
	ProfileAgility:  "Agility",
	ProfileManual:   "Manual",
}

func (v DefaultProfile) String() string { return enumString(defaultProfileNames, v) }
func (v DefaultProfile) IsKnown() bool  { _, ok := defaultProfileNames[v]; return ok }

type EngineType uint8

const (
	EngineDiesel EngineType = iota
	EnginePetrol
)

var engineTypeNames = map[EngineType]string{
	EngineDiesel: "Diesel",
	EnginePetrol: "Petrol",
}

func (v EngineType) String() string { return enumString(engineTypeNames, v) }
func (v EngineType) IsKnown() bool  { _, ok := engineTypeNames[v]; return ok }

type BoardType uint8

const (
	BoardUnknown BoardType = 0
	BoardV11     BoardType = 1
	BoardV12     BoardType = 2
	BoardV13     BoardType = 3
	BoardV14     BoardType = 4
	BoardV14HGS  BoardType = 0xF4
)

var boardTypeNames = map[BoardType]string{
	BoardUnknown: "Unknown",
	BoardV11:     "V1.1 (12/12/21)",
	BoardV12:     "V1.2 (07/07/22)",
	BoardV13:     "V1.3 (12/12/22)",
	BoardV14:     "V1.4 (13/05/24)",
	BoardV14HGS:  "V1.4 (HGS) (13/05/24)",
}

func (v BoardType) String() string { return enumString(boardTypeNames, v) }
func (v BoardType) IsKnown() bool  { _, ok := boardTypeNames[v]; return ok }

// EgsMode is the diagnostic variant code reported in the ECU identification.
type EgsMode uint16

const (
	EgsModeEGS51 EgsMode = 0x0251
	EgsModeEGS52 EgsMode = 0x0252
	EgsModeEGS53 EgsMode = 0x0253
)

var egsModeNames = map[EgsMode]string{
	EgsModeEGS51: "EGS51",
	EgsModeEGS52: "EGS52",
	EgsModeEGS53: "EGS53",
}

func (v EgsMode) String() string { return enumString(egsModeNames, v) }
func (v EgsMode) IsKnown() bool  { _, ok := egsModeNames[v]; return ok }

func enumString[K ~uint8 | ~uint16](names map[K]string, v K) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(0x%02X)", uint16(v))
}
