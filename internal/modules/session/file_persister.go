package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FilePersister keeps every key in one JSON object on disk, the way a
// browser keeps localStorage. Writes replace the file atomically.
type FilePersister struct {
	path string
	mu   sync.Mutex
}

var _ Persister = (*FilePersister)(nil)

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (f *FilePersister) Path() string {
	return f.path
}

func (f *FilePersister) Load(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return nil, err
	}
	blob, ok := entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return blob, nil
}

func (f *FilePersister) Save(_ context.Context, key string, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	entries[key] = json.RawMessage(blob)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session file: %w", err)
	}
	return f.writeAtomic(append(data, '\n'))
}

func (f *FilePersister) read() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	return entries, nil
}

func (f *FilePersister) writeAtomic(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmpPath := f.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = file.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := file.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to session file: %w", err)
	}
	return nil
}
