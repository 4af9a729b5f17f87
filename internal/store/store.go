package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vitaminmoo/geniusdl/internal/dive"
	"github.com/vitaminmoo/geniusdl/internal/download"
	"github.com/vitaminmoo/geniusdl/internal/logging"
)

var (
	ErrNotFound  = errors.New("dive not found in store")
	ErrAmbiguous = errors.New("dive reference is ambiguous")
)

// Store manages a collection of downloaded dives keyed by dive identity.
// Decoded dives are written once and never rewritten.
type Store struct {
	baseDir     string
	divesDir    string
	metadataDir string
	rawDir      string
	indexPath   string
}

// Index contains quick lookup information for all dives.
type Index struct {
	Dives     map[string]IndexEntry `json:"dives"` // key -> entry
	UpdatedAt time.Time             `json:"updated_at"`
}

// IndexEntry contains summary info for quick listing.
type IndexEntry struct {
	Key             string        `json:"-"`
	Identity        dive.Identity `json:"identity"`
	Mode            dive.Mode     `json:"mode"`
	DurationSeconds int           `json:"duration_seconds"`
	MaxDepthM       float64       `json:"max_depth_m"`
	Samples         int           `json:"samples"`
	Partial         bool          `json:"partial,omitempty"`
	Device          string        `json:"device,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Raw holds the undecoded objects of one dive.
type Raw struct {
	Header  []byte
	Profile []byte
}

// DefaultPath returns the default store path (~/.geniusdl/store).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".geniusdl", "store"), nil
}

// Open opens or creates a store at the given path.
func Open(path string) (*Store, error) {
	s := &Store{
		baseDir:     path,
		divesDir:    filepath.Join(path, "dives"),
		metadataDir: filepath.Join(path, "metadata"),
		rawDir:      filepath.Join(path, "raw"),
		indexPath:   filepath.Join(path, "index.json"),
	}

	for _, dir := range []string{s.divesDir, s.metadataDir, s.rawDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return s, nil
}

// OpenDefault opens the store at the default path.
func OpenDefault() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// Path returns the store's base directory.
func (s *Store) Path() string {
	return s.baseDir
}

// Import adds a dive to the store.
// If the dive already exists (same identity), only its sources are updated.
// Returns the key and whether it was a new dive.
func (s *Store) Import(rec *dive.DiveRecord, raw Raw, source Source) (string, bool, error) {
	key := rec.Identity.Key()
	divePath := filepath.Join(s.divesDir, key+".json")
	metaPath := filepath.Join(s.metadataDir, key+".json")

	source.ContentHash = ContentHash(raw.Header, raw.Profile)
	if source.Timestamp.IsZero() {
		source.Timestamp = time.Now()
	}

	isNew := false
	var meta *Metadata

	if _, err := os.Stat(metaPath); errors.Is(err, os.ErrNotExist) {
		isNew = true
		meta = ExtractMetadata(rec, raw)
		meta.Sources = []Source{source}

		if raw.Header != nil || raw.Profile != nil {
			if err := s.writeRaw(meta, source.DeviceDir(), raw); err != nil {
				return "", false, err
			}
		}

		diveJSON, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return "", false, fmt.Errorf("failed to marshal dive: %w", err)
		}
		if err := os.WriteFile(divePath, diveJSON, 0644); err != nil {
			return "", false, fmt.Errorf("failed to write dive: %w", err)
		}
	} else {
		meta, err = s.GetMetadata(key)
		if err != nil {
			return "", false, err
		}
		if source.ContentHash != meta.ContentHash {
			logging.Warn("stored dive differs from new copy",
				zap.String("key", key),
				zap.String("stored", ShortHash(meta.ContentHash)),
				zap.String("new", ShortHash(source.ContentHash)))
		}
		meta.Sources = append(meta.Sources, source)
		meta.UpdatedAt = time.Now()
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", false, fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := s.updateIndex(key, rec, source); err != nil {
		return "", false, fmt.Errorf("failed to update index: %w", err)
	}

	return key, isNew, nil
}

func (s *Store) writeRaw(meta *Metadata, device string, raw Raw) error {
	dir := filepath.Join(s.rawDir, device)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create raw dir: %w", err)
	}
	meta.RawHeader = filepath.Join("raw", device, meta.Key+"_header.bin")
	meta.RawProfile = filepath.Join("raw", device, meta.Key+"_profile.bin")
	if err := os.WriteFile(filepath.Join(s.baseDir, meta.RawHeader), raw.Header, 0644); err != nil {
		return fmt.Errorf("failed to write raw header: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.baseDir, meta.RawProfile), raw.Profile, 0644); err != nil {
		return fmt.Errorf("failed to write raw profile: %w", err)
	}
	return nil
}

// Get retrieves a decoded dive by key.
func (s *Store) Get(key string) (*dive.DiveRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.divesDir, key+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	var rec dive.DiveRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse dive %s: %w", key, err)
	}
	return &rec, nil
}

// GetMetadata retrieves dive metadata by key.
func (s *Store) GetMetadata(key string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.metadataDir, key+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", key, err)
	}
	return &meta, nil
}

// GetRaw returns the raw objects stored for a dive, if any were kept.
func (s *Store) GetRaw(key string) (Raw, error) {
	meta, err := s.GetMetadata(key)
	if err != nil {
		return Raw{}, err
	}
	if meta.RawHeader == "" {
		return Raw{}, fmt.Errorf("no raw data kept for %s", key)
	}
	var raw Raw
	if raw.Header, err = os.ReadFile(filepath.Join(s.baseDir, meta.RawHeader)); err != nil {
		return Raw{}, err
	}
	if raw.Profile, err = os.ReadFile(filepath.Join(s.baseDir, meta.RawProfile)); err != nil {
		return Raw{}, err
	}
	return raw, nil
}

// List returns all dives in the store, ordered by dive number then time.
func (s *Store) List() ([]IndexEntry, error) {
	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	entries := make([]IndexEntry, 0, len(index.Dives))
	for key, entry := range index.Dives {
		entry.Key = key
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Identity, entries[j].Identity
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.Time.Time().Before(b.Time.Time())
	})

	return entries, nil
}

// Known returns the identities of all stored dives.
func (s *Store) Known() (download.IdentitySet, error) {
	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	known := make(download.IdentitySet, len(index.Dives))
	for _, entry := range index.Dives {
		known.Add(entry.Identity)
	}
	return known, nil
}

// Records loads every stored dive in List order.
func (s *Store) Records() ([]*dive.DiveRecord, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	recs := make([]*dive.DiveRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := s.Get(e.Key)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Resolve turns a user reference into a key. ref may be a full key, a
// unique key prefix, or a dive number.
func (s *Store) Resolve(ref string) (string, error) {
	index, err := s.loadIndex()
	if err != nil {
		return "", err
	}
	if _, ok := index.Dives[ref]; ok {
		return ref, nil
	}

	var matches []string
	if n, err := strconv.ParseUint(strings.TrimPrefix(ref, "#"), 10, 32); err == nil {
		for key, e := range index.Dives {
			if e.Identity.Number == uint32(n) {
				matches = append(matches, key)
			}
		}
	} else {
		for key := range index.Dives {
			if strings.HasPrefix(key, ref) {
				matches = append(matches, key)
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguous, ref, strings.Join(matches, ", "))
	}
}

// Count returns the number of dives in the store.
func (s *Store) Count() (int, error) {
	index, err := s.loadIndex()
	if err != nil {
		return 0, err
	}
	return len(index.Dives), nil
}

func (s *Store) loadIndex() (*Index, error) {
	data, err := os.ReadFile(s.indexPath)
	if errors.Is(err, os.ErrNotExist) {
		return &Index{Dives: make(map[string]IndexEntry)}, nil
	}
	if err != nil {
		return nil, err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	if index.Dives == nil {
		index.Dives = make(map[string]IndexEntry)
	}
	return &index, nil
}

func (s *Store) updateIndex(key string, rec *dive.DiveRecord, source Source) error {
	index, err := s.loadIndex()
	if err != nil {
		return err
	}

	if _, ok := index.Dives[key]; ok {
		return nil
	}

	entry := IndexEntry{
		Identity:  rec.Identity,
		Samples:   len(rec.Samples()),
		Partial:   rec.Partial,
		Device:    source.Model,
		CreatedAt: time.Now(),
	}
	if rec.Header != nil {
		entry.Mode = rec.Header.Mode
		entry.DurationSeconds = rec.Header.DurationSeconds()
		entry.MaxDepthM = rec.Header.MaxDepthMeters()
	}
	index.Dives[key] = entry
	index.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath, data, 0644)
}
