package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore persists one in-memory table as a JSON file. A nil *JSONStore is valid
// and turns Load and Save into no-ops, which is how the memory stores run without a data dir.
type JSONStore struct {
	mu       sync.Mutex
	filePath string
}

// NewJSONStore returns nil when dataDir is empty.
func NewJSONStore(dataDir, filename string) (*JSONStore, error) {
	if dataDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &JSONStore{
		filePath: filepath.Join(dataDir, filename),
	}, nil
}

// Load decodes the file into data. A missing file leaves data untouched.
func (s *JSONStore) Load(data interface{}) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(data)
}

// Save writes data to a temp file and renames it over the previous snapshot.
func (s *JSONStore) Save(data interface{}) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tempFile := s.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		os.Remove(tempFile)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, s.filePath)
}
