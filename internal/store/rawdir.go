package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoRawDives is returned by ReadRawDir when dive_000_header.bin is missing.
var ErrNoRawDives = errors.New("no raw dive files found")

// RawDive is one dive read from a raw directory.
type RawDive struct {
	Index int
	Raw
}

// RawFileNames returns the file names used for dive ordinal i.
func RawFileNames(i int) (header, profile string) {
	return fmt.Sprintf("dive_%03d_header.bin", i), fmt.Sprintf("dive_%03d_profile.bin", i)
}

// WriteRawDive saves the raw objects of dive ordinal i into dir.
func WriteRawDive(dir string, i int, raw Raw) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create raw dir: %w", err)
	}
	h, p := RawFileNames(i)
	if err := os.WriteFile(filepath.Join(dir, h), raw.Header, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", h, err)
	}
	if err := os.WriteFile(filepath.Join(dir, p), raw.Profile, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}

// ReadRawDir reads consecutive dives starting at ordinal 0 until a header
// file is missing. A header without its profile is an error.
func ReadRawDir(dir string) ([]RawDive, error) {
	var dives []RawDive
	for i := 0; ; i++ {
		h, p := RawFileNames(i)
		header, err := os.ReadFile(filepath.Join(dir, h))
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return dives, err
		}
		profile, err := os.ReadFile(filepath.Join(dir, p))
		if err != nil {
			return dives, fmt.Errorf("failed to read profile of dive %d: %w", i, err)
		}
		dives = append(dives, RawDive{Index: i, Raw: Raw{Header: header, Profile: profile}})
	}
	if len(dives) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoRawDives, dir)
	}
	return dives, nil
}
