package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// SettingsReadID is the local identifier for SCN settings. OR the setting id
// with SettingsDefaultFlag to read the firmware default.
const (
	SettingsReadID      = 0xFC
	SettingsDefaultFlag = 0x80
)

// ModuleSettingsData is the settings description document shipped with the
// firmware. It tells how each SCN setting block is laid out.
type ModuleSettingsData struct {
	Enums    []EnumMap      `yaml:"Enums"`
	IStructs []SettingsData `yaml:"IStructs"`
	Settings []SettingsData `yaml:"Settings"`
}

type EnumMap struct {
	Name     string           `yaml:"Name"`
	Mappings map[uint8]string `yaml:"Mappings"`
}

type SettingsData struct {
	Name        string             `yaml:"Name"`
	Description string             `yaml:"Description,omitempty"`
	ScnID       *uint8             `yaml:"SCN_ID,omitempty"`
	EepromKey   string             `yaml:"EEPROM_KEY,omitempty"`
	Params      []SettingsVariable `yaml:"Params"`
}

type SettingsVariable struct {
	Name        string `yaml:"Name"`
	Description string `yaml:"Description,omitempty"`
	Unit        string `yaml:"Unit,omitempty"`
	DataType    string `yaml:"DataType"`
	OffsetBytes int    `yaml:"OffsetBytes"`
	LengthBytes int    `yaml:"LengthBytes"`
}

// EnumValue is a decoded enum variable.
type EnumValue struct {
	Value   uint8
	Mapping *EnumMap
}

func (e EnumValue) String() string {
	if e.Mapping != nil {
		if s, ok := e.Mapping.Mappings[e.Value]; ok {
			return s
		}
	}
	return fmt.Sprintf("Unknown(0x%02X)", e.Value)
}

// StructValue is a nested structure variable, kept raw with its description.
type StructValue struct {
	Raw []byte
	Def *SettingsData
}

// ParseModuleSettings decodes the YAML settings description.
func ParseModuleSettings(r io.Reader) (*ModuleSettingsData, error) {
	var d ModuleSettingsData
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("codec: decode module settings: %w", err)
	}
	return &d, nil
}

// Setting returns the description of an SCN setting by id.
func (d *ModuleSettingsData) Setting(id uint8) (*SettingsData, bool) {
	for i := range d.Settings {
		if s := &d.Settings[i]; s.ScnID != nil && *s.ScnID == id {
			return s, true
		}
	}
	return nil, false
}

func (d *ModuleSettingsData) enum(name string) *EnumMap {
	for i := range d.Enums {
		if d.Enums[i].Name == name {
			return &d.Enums[i]
		}
	}
	return nil
}

func (d *ModuleSettingsData) istruct(name string) *SettingsData {
	for i := range d.IStructs {
		if d.IStructs[i].Name == name {
			return &d.IStructs[i]
		}
	}
	return nil
}

// Size is the number of bytes the parameters cover.
func (s *SettingsData) Size() int {
	n := 0
	for _, p := range s.Params {
		if end := p.OffsetBytes + p.LengthBytes; end > n {
			n = end
		}
	}
	return n
}

// Decode interprets a setting block. Callers check the block against Size
// (see SettingsBody); each parameter is still bounds checked.
func (s *SettingsData) Decode(doc *ModuleSettingsData, raw []byte) (map[string]any, error) {
	out := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		v, err := p.Decode(doc, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.Name, p.Name, err)
		}
		out[p.Name] = v
	}
	return out, nil
}

// SortedNames returns parameter names in offset order.
func (s *SettingsData) SortedNames() []string {
	ps := append([]SettingsVariable(nil), s.Params...)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].OffsetBytes < ps[j].OffsetBytes })
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	return names
}

func (v *SettingsVariable) field(raw []byte) ([]byte, error) {
	end := v.OffsetBytes + v.LengthBytes
	if v.OffsetBytes < 0 || end > len(raw) {
		return nil, &LengthError{Type: v.Name, Want: end, Got: len(raw)}
	}
	return raw[v.OffsetBytes:end], nil
}

func (v *SettingsVariable) checkWidth(n int) error {
	if v.LengthBytes != n {
		return &InvalidLenError{Wanted: n, Len: v.LengthBytes}
	}
	return nil
}

// Decode reads one variable: bool, float32, uint16, int16, uint8, EnumValue
// or StructValue depending on the data type.
func (v *SettingsVariable) Decode(doc *ModuleSettingsData, raw []byte) (any, error) {
	b, err := v.field(raw)
	if err != nil {
		return nil, err
	}
	switch v.DataType {
	case "bool":
		if err := v.checkWidth(1); err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case "float":
		if err := v.checkWidth(4); err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case "uint16_t":
		if err := v.checkWidth(2); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint16(b), nil
	case "int16_t":
		if err := v.checkWidth(2); err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(b)), nil
	case "uint8_t":
		if err := v.checkWidth(1); err != nil {
			return nil, err
		}
		return b[0], nil
	}
	if e := doc.enum(v.DataType); e != nil {
		return EnumValue{Value: b[0], Mapping: e}, nil
	}
	if s := doc.istruct(v.DataType); s != nil {
		return StructValue{Raw: append([]byte(nil), b...), Def: s}, nil
	}
	return nil, fmt.Errorf("codec: no data type %q for %s", v.DataType, v.Name)
}

// Encode writes value back into the coding block at the variable's offset.
func (v *SettingsVariable) Encode(value any, raw []byte) error {
	b, err := v.field(raw)
	if err != nil {
		return err
	}
	var enc []byte
	switch x := value.(type) {
	case bool:
		enc = []byte{0}
		if x {
			enc[0] = 1
		}
	case float32:
		enc = binary.LittleEndian.AppendUint32(nil, math.Float32bits(x))
	case uint16:
		enc = binary.LittleEndian.AppendUint16(nil, x)
	case int16:
		enc = binary.LittleEndian.AppendUint16(nil, uint16(x))
	case uint8:
		enc = []byte{x}
	case EnumValue:
		enc = []byte{x.Value}
	case StructValue:
		enc = x.Raw
	default:
		return fmt.Errorf("codec: cannot encode %T into %s", value, v.Name)
	}
	if len(enc) != len(b) {
		return &InvalidLenError{Wanted: len(b), Len: len(enc)}
	}
	copy(b, enc)
	return nil
}
