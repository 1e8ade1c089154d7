package codec

import (
	"fmt"
	"io"
	"os"
	"slices"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// TorqueConverterConfiguration 52 bytes
type TorqueConverterConfiguration struct {
	LossMapX [2]uint16  `yaml:"loss_map_x"`
	LossMapZ [2]uint16  `yaml:"loss_map_z"`
	PumpMapX [11]uint16 `yaml:"pump_map_x"`
	PumpMapZ [11]uint16 `yaml:"pump_map_z"`
}

// MechanicalConfiguration 207 bytes
type MechanicalConfiguration struct {
	GbTy                             uint8      `yaml:"gb_ty"`
	RatioTable                       [8]uint16  `yaml:"ratio_table"`
	InertiaFactorTable               [8]uint16  `yaml:"intertia_factor_table"`
	FrictionMap                      [48]uint16 `yaml:"friction_map"`
	MaxTorqueOnClutch                [4]uint16  `yaml:"max_torque_on_clutch"`
	MaxTorqueOffClutch               [4]uint16  `yaml:"max_torque_off_clutch"`
	ReleaseSpringPressure            [6]uint16  `yaml:"release_spring_pressure"`
	InertiaTorque                    [8]uint16  `yaml:"intertia_torque"`
	StrongestLoadedClutchIdx         [8]uint8   `yaml:"strongest_loaded_clutch_idx"`
	Unk3                             [8]uint16  `yaml:"unk3"`
	AtfDensityMinus50C               uint16     `yaml:"atf_density_minus_50c"`
	AtfDensityDropPerC               uint16     `yaml:"atf_density_drop_per_c"`
	AtfDensityCentrifugalForceFactor [3]uint16  `yaml:"atf_density_centrifugal_force_factor"`
}

// HydraulicConfiguration 182 bytes
type HydraulicConfiguration struct {
	Multiplier1                  uint16     `yaml:"multiplier_1"`
	MultiplierOther              uint16     `yaml:"multiplier_other"`
	LpRegPressure                uint16     `yaml:"lp_reg_pressure"`
	SpcOverlapCircuitFactor      [8]uint16  `yaml:"spc_overlap_circuit_factor"`
	MpcOverlapCircuitFactor      [8]uint16  `yaml:"mpc_overlap_circuit_factor"`
	SpringOverlapPressure        [8]int16   `yaml:"spring_overlap_pressure"`
	ShiftRegPressure             uint16     `yaml:"shift_reg_pressure"`
	SpcGainFactorShift           [8]uint16  `yaml:"spc_gain_factor_shift"`
	MinMpcPressure               uint16     `yaml:"min_mpc_pressure"`
	Unk1                         uint8      `yaml:"unk1"`
	Unk2                         uint8      `yaml:"unk2"`
	Unk3                         uint16     `yaml:"unk3"`
	Unk4                         uint16     `yaml:"unk4"`
	Unk5                         uint16     `yaml:"unk5"`
	ShiftPressureAddrPercent     uint16     `yaml:"shift_pressure_addr_percent"`
	InletPressureOffset          uint16     `yaml:"inlet_pressure_offset"`
	InletPressureInputMin        uint16     `yaml:"inlet_pressure_input_min"`
	InletPressureInputMax        uint16     `yaml:"inlet_pressure_input_max"`
	InletPressureOutputMin       uint16     `yaml:"inlet_pressure_output_min"`
	InletPressureOutputMax       uint16     `yaml:"inlet_pressure_output_max"`
	ExtraPressurePumpSpeedMin    uint16     `yaml:"extra_pressure_pump_speed_min"`
	ExtraPressurePumpSpeedMax    uint16     `yaml:"extra_pressure_pump_speed_max"`
	ExtraPressureAdderR11        uint16     `yaml:"extra_pressure_adder_r1_1"`
	ExtraPressureAdderOtherGears uint16     `yaml:"extra_pressure_adder_other_gears"`
	ShiftPressureFactorPercent   uint16     `yaml:"shift_pressure_factor_percent"`
	PcsMapX                      [7]uint16  `yaml:"pcs_map_x"`
	PcsMapY                      [4]uint16  `yaml:"pcs_map_y"`
	PcsMapZ                      [28]uint16 `yaml:"pcs_map_z"`
}

// ShiftMapConfiguration 672 bytes. Upshift maps are 1-2..4-5, downshift 2-1..5-4.
type ShiftMapConfiguration struct {
	Momentum12X [3]uint8 `yaml:"momentum_1_2_x"`
	Momentum23X [3]uint8 `yaml:"momentum_2_3_x"`
	Momentum34X [3]uint8 `yaml:"momentum_3_4_x"`
	Momentum45X [3]uint8 `yaml:"momentum_4_5_x"`
	Momentum12Y [2]uint8 `yaml:"momentum_1_2_y"`
	Momentum23Y [2]uint8 `yaml:"momentum_2_3_y"`
	Momentum34Y [2]uint8 `yaml:"momentum_3_4_y"`
	Momentum45Y [2]uint8 `yaml:"momentum_4_5_y"`
	Momentum12Z [6]uint8 `yaml:"momentum_1_2_z"`
	Momentum23Z [6]uint8 `yaml:"momentum_2_3_z"`
	Momentum34Z [6]uint8 `yaml:"momentum_3_4_z"`
	Momentum45Z [6]uint8 `yaml:"momentum_4_5_z"`

	Momentum21X [6]uint8  `yaml:"momentum_2_1_x"`
	Momentum32X [6]uint8  `yaml:"momentum_3_2_x"`
	Momentum43X [6]uint8  `yaml:"momentum_4_3_x"`
	Momentum54X [6]uint8  `yaml:"momentum_5_4_x"`
	Momentum21Y [10]uint8 `yaml:"momentum_2_1_y"`
	Momentum32Y [10]uint8 `yaml:"momentum_3_2_y"`
	Momentum43Y [10]uint8 `yaml:"momentum_4_3_y"`
	Momentum54Y [10]uint8 `yaml:"momentum_5_4_y"`
	Momentum21Z [60]uint8 `yaml:"momentum_2_1_z"`
	Momentum32Z [60]uint8 `yaml:"momentum_3_2_z"`
	Momentum43Z [60]uint8 `yaml:"momentum_4_3_z"`
	Momentum54Z [60]uint8 `yaml:"momentum_5_4_z"`

	TrqAdder12X [6]uint8  `yaml:"trq_adder_1_2_x"`
	TrqAdder23X [6]uint8  `yaml:"trq_adder_2_3_x"`
	TrqAdder34X [6]uint8  `yaml:"trq_adder_3_4_x"`
	TrqAdder45X [6]uint8  `yaml:"trq_adder_4_5_x"`
	TrqAdder12Y [8]uint8  `yaml:"trq_adder_1_2_y"`
	TrqAdder23Y [8]uint8  `yaml:"trq_adder_2_3_y"`
	TrqAdder34Y [8]uint8  `yaml:"trq_adder_3_4_y"`
	TrqAdder45Y [8]uint8  `yaml:"trq_adder_4_5_y"`
	TrqAdder12Z [48]uint8 `yaml:"trq_adder_1_2_z"`
	TrqAdder23Z [48]uint8 `yaml:"trq_adder_2_3_z"`
	TrqAdder34Z [48]uint8 `yaml:"trq_adder_3_4_z"`
	TrqAdder45Z [48]uint8 `yaml:"trq_adder_4_5_z"`

	TorqueAdder21X [3]uint8  `yaml:"torque_adder_2_1_x"`
	TorqueAdder32X [3]uint8  `yaml:"torque_adder_3_2_x"`
	TorqueAdder43X [3]uint8  `yaml:"torque_adder_4_3_x"`
	TorqueAdder54X [3]uint8  `yaml:"torque_adder_5_4_x"`
	TorqueAdder21Y [4]uint8  `yaml:"torque_adder_2_1_y"`
	TorqueAdder32Y [4]uint8  `yaml:"torque_adder_3_2_y"`
	TorqueAdder43Y [4]uint8  `yaml:"torque_adder_4_3_y"`
	TorqueAdder54Y [4]uint8  `yaml:"torque_adder_5_4_y"`
	TorqueAdder21Z [12]uint8 `yaml:"torque_adder_2_1_z"`
	TorqueAdder32Z [12]uint8 `yaml:"torque_adder_3_2_z"`
	TorqueAdder43Z [12]uint8 `yaml:"torque_adder_4_3_z"`
	TorqueAdder54Z [12]uint8 `yaml:"torque_adder_5_4_z"`
}

const (
	CalibrationMagic   uint32 = 0xDEADBEEF
	CalibrationAddress        = 0x34900
	calNameLen                = 16
	calHeaderLen              = 8
)

// StoredCalibration is the calibration block as it sits in TCU flash.
type StoredCalibration struct {
	Magic         uint32
	Len           uint16
	CRC           uint16
	TccName       [calNameLen]byte
	Tcc           TorqueConverterConfiguration
	MechName      [calNameLen]byte
	Mech          MechanicalConfiguration
	HydrName      [calNameLen]byte
	Hydr          HydraulicConfiguration
	ShiftAlgoName [calNameLen]byte
	ShiftAlgo     ShiftMapConfiguration
}

// StoredCalibrationSize is the packed size of StoredCalibration.
var StoredCalibrationSize = MustSize(&StoredCalibration{})

// CalibrationSection names one of the four calibration parts.
type CalibrationSection int

const (
	SectionTorqueConverter CalibrationSection = iota
	SectionMechanical
	SectionHydraulic
	SectionShiftAlgo
)

func (s CalibrationSection) String() string {
	switch s {
	case SectionTorqueConverter:
		return "torque converter"
	case SectionMechanical:
		return "mechanical"
	case SectionHydraulic:
		return "hydraulic"
	case SectionShiftAlgo:
		return "shift algorithm"
	}
	return fmt.Sprintf("section(%d)", int(s))
}

// CalibrationChecksum is the byte plus index sum used by the firmware.
func CalibrationChecksum(body []byte) uint16 {
	var crc uint16
	for i, b := range body {
		crc += uint16(b)
		crc += uint16(i)
	}
	return crc
}

// ParseStoredCalibration decodes a raw block read from the TCU.
func ParseStoredCalibration(data []byte) (*StoredCalibration, error) {
	var c StoredCalibration
	if err := Unpack(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SignAndCRC fills magic, length and checksum, returning the packed block.
func (c *StoredCalibration) SignAndCRC() ([]byte, error) {
	c.Magic = CalibrationMagic
	c.Len = uint16(StoredCalibrationSize)
	raw, err := Pack(c)
	if err != nil {
		return nil, err
	}
	c.CRC = CalibrationChecksum(raw[calHeaderLen:])
	raw[6] = byte(c.CRC)
	raw[7] = byte(c.CRC >> 8)
	return raw, nil
}

// Verify checks magic, length and checksum of a decoded block.
func (c *StoredCalibration) Verify() error {
	if c.Magic != CalibrationMagic {
		return fmt.Errorf("codec: calibration magic 0x%08X, want 0x%08X", c.Magic, CalibrationMagic)
	}
	if int(c.Len) != StoredCalibrationSize {
		return &LengthError{Type: "StoredCalibration", Want: StoredCalibrationSize, Got: int(c.Len)}
	}
	raw, err := Pack(c)
	if err != nil {
		return err
	}
	if crc := CalibrationChecksum(raw[calHeaderLen:]); crc != c.CRC {
		return fmt.Errorf("codec: calibration crc 0x%04X, computed 0x%04X", c.CRC, crc)
	}
	return nil
}

func (c *StoredCalibration) nameField(s CalibrationSection) *[calNameLen]byte {
	switch s {
	case SectionTorqueConverter:
		return &c.TccName
	case SectionMechanical:
		return &c.MechName
	case SectionHydraulic:
		return &c.HydrName
	case SectionShiftAlgo:
		return &c.ShiftAlgoName
	}
	return nil
}

// SectionName returns the calibration name of one section. ok is false when
// the name is not valid UTF-8, meaning that section is absent or corrupt.
func (c *StoredCalibration) SectionName(s CalibrationSection) (name string, ok bool) {
	f := c.nameField(s)
	if f == nil || !utf8.Valid(f[:]) {
		return "", false
	}
	return trimNul(f[:]), true
}

// SetSectionName stores name NUL padded to 16 bytes.
func (c *StoredCalibration) SetSectionName(s CalibrationSection, name string) error {
	f := c.nameField(s)
	if f == nil {
		return fmt.Errorf("codec: unknown calibration section %d", int(s))
	}
	if len(name) > calNameLen {
		return fmt.Errorf("codec: calibration name %q longer than %d bytes", name, calNameLen)
	}
	*f = [calNameLen]byte{}
	copy(f[:], name)
	return nil
}

// ValidSections lists the sections whose names decode.
func (c *StoredCalibration) ValidSections() []CalibrationSection {
	var out []CalibrationSection
	for _, s := range []CalibrationSection{SectionTorqueConverter, SectionMechanical, SectionHydraulic, SectionShiftAlgo} {
		if _, ok := c.SectionName(s); ok {
			out = append(out, s)
		}
	}
	return out
}

func trimNul(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

// CalibrationRecord is a named calibration and the EGS part numbers it fits.
type CalibrationRecord[T any] struct {
	Name        string   `yaml:"name"`
	Data        T        `yaml:"data"`
	ValidEgsPNs []string `yaml:"valid_egs_pns"`
}

// Applicable reports whether the record may be written to an EGS with part number pn.
func (r CalibrationRecord[T]) Applicable(pn string) bool {
	return slices.Contains(r.ValidEgsPNs, pn)
}

// ChassisConfig links a gearbox/chassis combination to calibration names.
type ChassisConfig struct {
	Gearbox      string `yaml:"gearbox"`
	Chassis      string `yaml:"chassis"`
	HydrCfg      string `yaml:"hydr_cfg"`
	MechCfg      string `yaml:"mech_cfg"`
	TccCfg       string `yaml:"tcc_cfg"`
	ShiftAlgoCfg string `yaml:"shift_algo_cfg"`
}

type EgsData struct {
	PN      string          `yaml:"pn"`
	Chassis []ChassisConfig `yaml:"chassis"`
}

// CalibrationDatabase is the offline calibration library.
type CalibrationDatabase struct {
	EgsList         []EgsData                                         `yaml:"egs_list"`
	Hydraulic       []CalibrationRecord[HydraulicConfiguration]       `yaml:"hydralic_calibrations"`
	Mechanical      []CalibrationRecord[MechanicalConfiguration]      `yaml:"mechanical_calibrations"`
	TorqueConverter []CalibrationRecord[TorqueConverterConfiguration] `yaml:"torqueconverter_calibrations"`
	ShiftAlgo       []CalibrationRecord[ShiftMapConfiguration]        `yaml:"shift_algo_map_calibration"`
}

// LoadCalibrationDatabase reads a YAML calibration database.
func LoadCalibrationDatabase(r io.Reader) (*CalibrationDatabase, error) {
	var db CalibrationDatabase
	if err := yaml.NewDecoder(r).Decode(&db); err != nil {
		return nil, fmt.Errorf("codec: decode calibration database: %w", err)
	}
	return &db, nil
}

// LoadCalibrationDatabaseFile is LoadCalibrationDatabase on a file path.
func LoadCalibrationDatabaseFile(path string) (*CalibrationDatabase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCalibrationDatabase(f)
}

// ChassisFor returns the chassis entries known for an EGS part number.
func (db *CalibrationDatabase) ChassisFor(pn string) []ChassisConfig {
	for _, e := range db.EgsList {
		if e.PN == pn {
			return e.Chassis
		}
	}
	return nil
}

func findRecord[T any](list []CalibrationRecord[T], name, pn string) (T, error) {
	var zero T
	for _, r := range list {
		if r.Name != name {
			continue
		}
		if !r.Applicable(pn) {
			return zero, fmt.Errorf("codec: calibration %q is not valid for EGS %s", name, pn)
		}
		return r.Data, nil
	}
	return zero, fmt.Errorf("codec: calibration %q not found", name)
}

// Build assembles a signed calibration block for pn from one chassis entry.
func (db *CalibrationDatabase) Build(pn string, cc ChassisConfig) (*StoredCalibration, error) {
	var c StoredCalibration
	var err error
	if c.Tcc, err = findRecord(db.TorqueConverter, cc.TccCfg, pn); err != nil {
		return nil, err
	}
	if c.Mech, err = findRecord(db.Mechanical, cc.MechCfg, pn); err != nil {
		return nil, err
	}
	if c.Hydr, err = findRecord(db.Hydraulic, cc.HydrCfg, pn); err != nil {
		return nil, err
	}
	if c.ShiftAlgo, err = findRecord(db.ShiftAlgo, cc.ShiftAlgoCfg, pn); err != nil {
		return nil, err
	}
	names := map[CalibrationSection]string{
		SectionTorqueConverter: cc.TccCfg,
		SectionMechanical:      cc.MechCfg,
		SectionHydraulic:       cc.HydrCfg,
		SectionShiftAlgo:       cc.ShiftAlgoCfg,
	}
	for s, n := range names {
		if err := c.SetSectionName(s, n); err != nil {
			return nil, err
		}
	}
	if _, err := c.SignAndCRC(); err != nil {
		return nil, err
	}
	return &c, nil
}
