// Package store persists JSON documents under the muon configuration root.
//
// A document is always read and written whole. Reads are tolerant: a missing
// file yields the caller's defaults and a corrupt file yields the defaults plus
// a *LoadError, so a bad document never stops the process. Writes go through a
// temp file and an atomic rename, so a failed write leaves the previous
// version on disk untouched.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrCorrupt marks a document that exists but cannot be decoded.
	ErrCorrupt = errors.New("document is corrupt")

	// ErrWrite marks a document that could not be written.
	ErrWrite = errors.New("write document")
)

// LoadError reports a document that could not be loaded. The value returned
// alongside it is the default value and is safe to use.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// WriteError reports a failed save. It matches ErrWrite as well as the
// underlying cause.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrWrite, e.Err}
}

// Load decodes the document at path over a fresh default value. Keys missing
// from the file keep their defaults and unknown keys are ignored.
func Load[T any](path string, defaults func() T) (T, error) {
	value := defaults()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from controlled config directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return value, nil
		}

		return value, &LoadError{Path: path, Err: err}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return value, nil
	}

	if err := json.Unmarshal(data, &value); err != nil {
		return defaults(), &LoadError{Path: path, Err: fmt.Errorf("%w: %w", ErrCorrupt, err)}
	}

	return value, nil
}

// Save encodes v and replaces the document at path.
func Save[T any](path string, v T) error {
	data, err := Encode(v)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	return WriteFile(path, data)
}

// Encode returns the on-disk form of v.
func Encode[T any](v T) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	return append(data, '\n'), nil
}

// WriteFile atomically replaces the file at path with data. Concurrent writes
// to the same path within the process are serialized.
func WriteFile(path string, data []byte) error {
	unlock := lockPath(path)
	defer unlock()

	if err := writeAtomic(path, data); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}

	// Unique temp file + rename. If the rename fails (Windows, where the
	// destination exists) fall back to remove + rename.
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmp := tmpFile.Name()
	if _, writeErr := tmpFile.Write(data); writeErr != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmp)

		return fmt.Errorf("write temp file: %w", writeErr)
	}

	if syncErr := tmpFile.Sync(); syncErr != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmp)

		return fmt.Errorf("sync temp file: %w", syncErr)
	}

	if closeErr := tmpFile.Close(); closeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			_ = os.Remove(tmp)
			return fmt.Errorf("remove existing file: %w", removeErr)
		}

		if retryErr := os.Rename(tmp, path); retryErr != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("replace file: %w", retryErr)
		}
	}

	return nil
}

var pathLocks sync.Map // map[string]*sync.Mutex

func lockPath(path string) func() {
	key := filepath.Clean(path)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}

	v, _ := pathLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex) //nolint:forcetypeassert // only *sync.Mutex is stored

	mu.Lock()

	return mu.Unlock
}
