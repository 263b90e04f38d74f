package proc

import (
	"encoding/binary"
	"fmt"
)

// RAM is the machine's physical memory, addressed by physical address
// directly. Word access is little-endian.
type RAM struct {
	data []byte
}

// NewRAM allocates size bytes of physical memory, rounded up to a whole
// number of pages.
func NewRAM(size uint32) *RAM {
	size = (size + PageSize - 1) &^ (PageSize - 1)
	return &RAM{data: make([]byte, size)}
}

// Size returns the amount of physical memory in bytes.
func (r *RAM) Size() uint32 { return uint32(len(r.data)) }

// ReadWord reads the 32-bit word at physical address pa.
func (r *RAM) ReadWord(pa uint32) (uint32, error) {
	if pa+4 > r.Size() || pa+4 < pa {
		return 0, fmt.Errorf("physical address %#x out of range", pa)
	}
	return binary.LittleEndian.Uint32(r.data[pa:]), nil
}

// WriteWord writes the 32-bit word v at physical address pa.
func (r *RAM) WriteWord(pa, v uint32) error {
	if pa+4 > r.Size() || pa+4 < pa {
		return fmt.Errorf("physical address %#x out of range", pa)
	}
	binary.LittleEndian.PutUint32(r.data[pa:], v)
	return nil
}
