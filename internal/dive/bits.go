package dive

import "encoding/binary"

// bits extracts the half-open bit range [lo, hi) of v.
func bits(v uint32, lo, hi uint) uint32 {
	return (v >> lo) & (1<<(hi-lo) - 1)
}

// bit reports whether bit n of v is set.
func bit(v uint32, n uint) bool {
	return v&(1<<n) != 0
}

func u16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off:])
}

func i16(b []byte, off int) int16 {
	return int16(binary.LittleEndian.Uint16(b[off:]))
}

func u32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}
