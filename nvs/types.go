package nvs

import "fmt"

// Entry type tags.
const (
	TypeU8        = 0x01
	TypeI8        = 0x11
	TypeU16       = 0x02
	TypeI16       = 0x12
	TypeU32       = 0x04
	TypeI32       = 0x14
	TypeU64       = 0x08
	TypeI64       = 0x18
	TypeString    = 0x21
	TypeBlobData  = 0x42
	TypeBlobIndex = 0x48
)

// VariableData heads a string or blob chunk stored in the following slots.
type VariableData struct {
	Size  uint16
	Rsv   uint16
	CRC32 uint32
}

// BlobIndex describes a blob split into chunks.
type BlobIndex struct {
	Size       uint32
	ChunkCount uint8
	ChunkStart uint8
	Rsv        uint16
}

// DecodeValue interprets the 8 data bytes of an entry according to its
// type. Unrecognised tags come back as uint64.
func DecodeValue(ty uint8, raw uint64) any {
	switch ty {
	case TypeU8:
		return uint8(raw)
	case TypeI8:
		return int8(raw)
	case TypeU16:
		return uint16(raw)
	case TypeI16:
		return int16(raw)
	case TypeU32:
		return uint32(raw)
	case TypeI32:
		return int32(raw)
	case TypeI64:
		return int64(raw)
	case TypeBlobData, TypeString:
		return VariableData{
			Size:  uint16(raw),
			Rsv:   uint16(raw >> 16),
			CRC32: uint32(raw >> 32),
		}
	case TypeBlobIndex:
		return BlobIndex{
			Size:       uint32(raw),
			ChunkCount: uint8(raw >> 32),
			ChunkStart: uint8(raw >> 40),
			Rsv:        uint16(raw >> 48),
		}
	}
	return raw
}

// TypeName is a short label for dumps.
func TypeName(ty uint8) string {
	switch ty {
	case TypeU8:
		return "u8"
	case TypeI8:
		return "i8"
	case TypeU16:
		return "u16"
	case TypeI16:
		return "i16"
	case TypeU32:
		return "u32"
	case TypeI32:
		return "i32"
	case TypeU64:
		return "u64"
	case TypeI64:
		return "i64"
	case TypeString:
		return "str"
	case TypeBlobData:
		return "blob"
	case TypeBlobIndex:
		return "blob_idx"
	}
	return fmt.Sprintf("0x%02X", ty)
}
