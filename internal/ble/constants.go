package ble

import "strings"

const (
	// WriteCharUUID is the characteristic commands are written to.
	WriteCharUUID = "99a91ebd-b21f-1689-bb43-681f1f55e966"

	// NotifyCharUUID is the characteristic responses are notified on.
	NotifyCharUUID = "1d1aae28-d2a8-91a1-1242-9d2973fbe571"

	// WriteChunkSize is the largest single write the device accepts.
	WriteChunkSize = 20

	// notifyQueueLen bounds notifications buffered between reads.
	notifyQueueLen = 256
)

// NamePrefixes are the advertised name prefixes of supported devices.
var NamePrefixes = []string{"Mares", "Sirius", "Quad Ci", "Quad2", "Puck4", "Puck Lite", "Puck Pro U", "Puck"}

// IsMaresDevice reports whether an advertised name starts with one of
// prefixes.
func IsMaresDevice(name string, prefixes []string) bool {
	if name == "" {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
