package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// ContentHash computes a hash over a dive's raw header and profile objects.
// Each object is length-prefixed so the split point is part of the hash.
//
// Two downloads of the same dive normally hash the same; a difference means
// the device returned different bytes for an identity already stored.
func ContentHash(header, profile []byte) string {
	h := sha256.New()
	var n [4]byte
	for _, obj := range [][]byte{header, profile} {
		binary.LittleEndian.PutUint32(n[:], uint32(len(obj)))
		h.Write(n[:])
		h.Write(obj)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// ShortHash returns a shortened version of the hash for display purposes.
func ShortHash(fullHash string) string {
	// Remove "sha256:" prefix and take first 12 chars
	if len(fullHash) > 19 {
		return fullHash[7:19]
	}
	return fullHash
}
