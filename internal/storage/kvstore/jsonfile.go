// SPDX-License-Identifier: MPL-2.0

package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// ErrNotJSON is returned by JSONFile.Save for values that are not JSON.
var ErrNotJSON = errors.New("value is not valid JSON")

// JSONFile keeps every key in one JSON object on disk. Values must be JSON
// documents themselves and are returned compacted.
type JSONFile struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewJSONFile returns a store backed by path on fsys. The file is created on
// the first Save.
func NewJSONFile(fsys afero.Fs, path string) *JSONFile {
	return &JSONFile{fs: fsys, path: path}
}

// Load returns the value stored under key.
func (s *JSONFile) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return nil, false, err
	}
	value, ok := values[key]
	return []byte(value), ok, nil
}

// Save stores value under key and rewrites the file.
func (s *JSONFile) Save(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("%w: key %q", ErrNotJSON, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return err
	}
	values[key] = json.RawMessage(value)
	return s.write(values)
}

func (s *JSONFile) read() (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	return values, nil
}

// write replaces the file through a temporary sibling.
func (s *JSONFile) write(values map[string]json.RawMessage) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
