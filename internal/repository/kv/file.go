package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/alarm-clock/internal/config"
)

// FileKV persists every key into a single JSON object file on disk,
// {"key": ["value", ...]}. Writes go to a temporary file that is renamed over
// the original, so a reader sees either the old or the new content.
type FileKV struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu serializes read-modify-write cycles on the file.
	mu sync.Mutex
}

// NewFileKV creates a store that reads and writes JSON at the provided path.
func NewFileKV(path string) *FileKV {
	return &FileKV{
		path: filepath.Clean(path),
	}
}

// GetList reads the list stored under key.
func (s *FileKV) GetList(_ context.Context, key string) ([]string, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return nil, false, err
	}

	values, ok := contents[key]
	if !ok {
		return nil, false, nil
	}

	return cloneList(values), true, nil
}

// SetList replaces the list stored under key, keeping the other keys intact.
func (s *FileKV) SetList(_ context.Context, key string, values []string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return err
	}

	contents[key] = cloneList(values)

	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	return s.replace(data)
}

// read loads the whole file. A missing file is an empty store.
func (s *FileKV) read() (map[string][]string, error) {
	contents := make(map[string][]string)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return contents, nil
		}

		return nil, fmt.Errorf("read store file: %w", err)
	}

	if len(data) == 0 {
		return contents, nil
	}

	if err = json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}

	return contents, nil
}

// replace writes data next to the target and renames it into place.
func (s *FileKV) replace(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary store file: %w", err)
	}

	tmpName := tmp.Name()

	// Remove the temporary file unless it was renamed.
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write temporary store file: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync temporary store file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temporary store file: %w", err)
	}

	if err = os.Chmod(tmpName, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("chmod temporary store file: %w", err)
	}

	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}

	return nil
}

// cloneList copies values so callers never share the backing array.
// A nil list is stored as an empty one.
func cloneList(values []string) []string {
	result := make([]string, len(values))
	copy(result, values)

	return result
}
