package codec

import "fmt"

// PartitionInfo describes a flash region on the TCU.
type PartitionInfo struct {
	Address uint32
	Size    uint32
}

var PartitionInfoSize = MustSize(&PartitionInfo{})

// TotalFlash is the whole 4 MiB external flash.
var TotalFlash = PartitionInfo{Address: 0, Size: 0x400000}

func ParsePartitionInfo(b []byte) (PartitionInfo, error) {
	return UnpackAs[PartitionInfo](b)
}

func (p PartitionInfo) End() uint32 {
	return p.Address + p.Size
}

func (p PartitionInfo) String() string {
	return fmt.Sprintf("0x%06X..0x%06X (%d KiB)", p.Address, p.End(), p.Size/1024)
}
