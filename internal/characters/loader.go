package characters

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// exportFile matches the JSON emitted by the character store's export
// tooling: either a bare array or an object with a "characters" key.
type exportFile struct {
	Characters []Character `json:"characters"`
}

// Parse decodes an exported character data blob.
func Parse(data []byte) ([]Character, error) {
	var records []Character
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var ef exportFile
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("failed to parse character export: %w", err)
	}
	if ef.Characters == nil {
		return nil, fmt.Errorf("character export has no %q field", "characters")
	}
	return ef.Characters, nil
}

// LoadFile reads and parses an exported character data file.
func LoadFile(path string) ([]Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read character export: %w", err)
	}
	return Parse(data)
}

// Source holds the current character data set and supports atomic
// reloads from the export file.
type Source struct {
	path string

	mu      sync.RWMutex
	records []Character
}

// NewSource creates a character source backed by the given export file.
// Call Load before first use.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Path returns the export file path backing this source.
func (s *Source) Path() string {
	return s.path
}

// Load reads the export file and replaces the current record set.
// On error the previous record set is kept.
func (s *Source) Load() error {
	records, err := LoadFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

// Records returns a copy of the current record set.
func (s *Source) Records() []Character {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Character, len(s.records))
	copy(out, s.records)
	return out
}

// Count returns the number of loaded records.
func (s *Source) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
