package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// maxDumpSize bounds the dump file read on every period.
const maxDumpSize = 64 * 1024 * 1024

// FileReader reads a producer dump from disk on every Load.
type FileReader struct {
	path string
}

// NewFileReader creates a reader for the given JSON dump. The file does not
// need to exist yet; producers may create it after the client starts.
func NewFileReader(path string) (*FileReader, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return nil, fmt.Errorf("input dump must have .json extension, got %q", ext)
	}
	return &FileReader{path: clean}, nil
}

// Path returns the dump path.
func (r *FileReader) Path() string { return r.path }

// Load reads the dump and applies it to store. A missing file is not an
// error: the inputs simply stay absent.
func (r *FileReader) Load(store Store) error {
	info, err := os.Stat(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat input dump: %w", err)
	}
	if info.Size() > maxDumpSize {
		return fmt.Errorf("input dump too large: %d bytes (max %d)", info.Size(), maxDumpSize)
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read input dump: %w", err)
	}
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("parse input dump: %w", err)
	}
	return ApplyDump(store, d)
}

// Close is a no-op; the file is reopened on every Load.
func (r *FileReader) Close() error {
	return nil
}
