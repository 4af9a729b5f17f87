package util

import (
	"bytes"
	"fmt"
	"strings"
)

// IsTextData checks if a byte slice contains only printable ASCII text,
// ignoring trailing NUL padding. An all-NUL or empty slice is not text.
func IsTextData(data []byte) bool {
	data = bytes.TrimRight(data, "\x00")
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b < 32 && b != 9 && b != 10 && b != 13 || b > 126 {
			return false
		}
	}
	return true
}

// HexDump formats data in hex dump format, 16 bytes per line.
func HexDump(data []byte) string {
	var sb strings.Builder
	for i := 0; i < len(data); i += 16 {
		// Address
		fmt.Fprintf(&sb, "%04x  ", i)

		// Hex bytes
		for j := 0; j < 16; j++ {
			if i+j < len(data) {
				fmt.Fprintf(&sb, "%02x ", data[i+j])
			} else {
				sb.WriteString("   ")
			}
			if j == 7 {
				sb.WriteByte(' ')
			}
		}

		// ASCII
		sb.WriteString(" |")
		for j := 0; j < 16 && i+j < len(data); j++ {
			b := data[i+j]
			if b >= 32 && b < 127 {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}
	return sb.String()
}

// HexBytes formats data as space-separated upper-case hex pairs.
func HexBytes(data []byte) string {
	return fmt.Sprintf("% X", data)
}
