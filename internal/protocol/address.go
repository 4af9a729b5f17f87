package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Object dictionary layout.
const (
	DiveObjectBase uint16 = 0x3000

	SubDiveProfile uint8 = 3
	SubDiveHeader  uint8 = 4

	// MaxDives is the number of dive slots addressable in the 0x3000 block.
	MaxDives = 0x1000
)

// ObjectAddress identifies one SDO object.
type ObjectAddress struct {
	Index    uint16
	SubIndex uint8
}

func (a ObjectAddress) String() string {
	return fmt.Sprintf("0x%04X/%d", a.Index, a.SubIndex)
}

// ParseAddress parses "index/sub", e.g. "0x2000/4". Both parts accept Go
// integer syntax.
func ParseAddress(s string) (ObjectAddress, error) {
	idx, sub, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return ObjectAddress{}, fmt.Errorf("invalid object address %q: want index/sub", s)
	}
	i, err := strconv.ParseUint(idx, 0, 16)
	if err != nil {
		return ObjectAddress{}, fmt.Errorf("invalid object index %q: %w", idx, err)
	}
	n, err := strconv.ParseUint(sub, 0, 8)
	if err != nil {
		return ObjectAddress{}, fmt.Errorf("invalid object sub-index %q: %w", sub, err)
	}
	return ObjectAddress{Index: uint16(i), SubIndex: uint8(n)}, nil
}

// Diagnostic objects.
var (
	PCBNumberAddress    = ObjectAddress{Index: 0x2000, SubIndex: 4}
	WarrantyAddress     = ObjectAddress{Index: 0x2000, SubIndex: 8}
	DiveModeNameAddress = ObjectAddress{Index: 0x2006, SubIndex: 12}
	Object2008Address   = ObjectAddress{Index: 0x2008, SubIndex: 1}
)

// DiagnosticObjects lists the fixed diagnostic objects with display names.
var DiagnosticObjects = []struct {
	Name    string
	Address ObjectAddress
}{
	{"pcb-number", PCBNumberAddress},
	{"warranty", WarrantyAddress},
	{"dive-mode-name", DiveModeNameAddress},
	{"object-2008", Object2008Address},
}

// DiveHeaderAddress returns the header object of dive ordinal i.
func DiveHeaderAddress(i int) ObjectAddress {
	return ObjectAddress{Index: DiveObjectBase + uint16(i), SubIndex: SubDiveHeader}
}

// DiveProfileAddress returns the profile object of dive ordinal i.
func DiveProfileAddress(i int) ObjectAddress {
	return ObjectAddress{Index: DiveObjectBase + uint16(i), SubIndex: SubDiveProfile}
}

// uploadPayload builds the 18-byte BF payload for addr.
func uploadPayload(addr ObjectAddress) []byte {
	p := make([]byte, UploadPayloadLen)
	p[0] = sdoInitiateUpload
	p[1] = byte(addr.Index)
	p[2] = byte(addr.Index >> 8)
	p[3] = addr.SubIndex
	return p
}
