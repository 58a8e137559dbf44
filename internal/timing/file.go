package timing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jstemmer/go-junit-report/v2/junit"
)

// FileBackend reads and writes a local JUnit XML timing report
type FileBackend struct {
	path string
}

// NewFileBackend returns a Backend for the JUnit file at path
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads timing data. A missing file is an empty store.
func (f *FileBackend) Load(ctx context.Context) (MapStore, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return MapStore{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open timing file: %w", err)
	}
	defer file.Close()

	suites, err := DecodeJUnit(file)
	if err != nil {
		return nil, err
	}
	return FromJUnit(suites)
}

// Upload replaces the file with the given report
func (f *FileBackend) Upload(ctx context.Context, suites *junit.Testsuites) error {
	var buf bytes.Buffer
	if err := EncodeJUnit(&buf, suites); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create timing dir: %w", err)
	}
	if err := os.WriteFile(f.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write timing file: %w", err)
	}
	return nil
}

// Close implements Backend
func (f *FileBackend) Close() error {
	return nil
}
