package store

import (
	"log/slog"
	"sync"
)

// Options configures a Document.
type Options[T any] struct {
	// Path is the file backing the document.
	Path string

	// Defaults returns a fresh default value. Required.
	Defaults func() T

	// Clone deep-copies a value handed out by Get. Nil means values are
	// returned as-is, which is only safe for types without maps or slices.
	Clone func(T) T

	// Logger receives load warnings. Nil uses slog.Default.
	Logger *slog.Logger
}

// Document is the in-memory copy of one persisted document. Readers see the
// last loaded or updated value without touching disk; disk I/O happens only
// in Reload and Persist, and never while the value lock is held.
type Document[T any] struct {
	path     string
	defaults func() T
	clone    func(T) T
	logger   *slog.Logger

	mu          sync.RWMutex
	value       T
	gen         uint64
	loadWarning error

	writeMu   sync.Mutex
	written   uint64
	persisted bool
}

// NewDocument returns a document holding the default value. Call Reload to
// read the file.
func NewDocument[T any](opts Options[T]) *Document[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clone := opts.Clone
	if clone == nil {
		clone = func(v T) T { return v }
	}

	return &Document[T]{
		path:     opts.Path,
		defaults: opts.Defaults,
		clone:    clone,
		logger:   logger,
		value:    opts.Defaults(),
	}
}

// Open returns a document loaded from disk. The error, if any, is the load
// warning; the document is usable either way.
func Open[T any](opts Options[T]) (*Document[T], error) {
	d := NewDocument(opts)
	return d, d.Reload()
}

// Path returns the backing file path.
func (d *Document[T]) Path() string {
	return d.path
}

// Get returns a copy of the current value.
func (d *Document[T]) Get() T {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.clone(d.value)
}

// Read calls fn with the current value under the read lock. fn must not
// retain or modify the value.
func (d *Document[T]) Read(fn func(v T)) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fn(d.value)
}

// Update applies fn to the value under the write lock.
func (d *Document[T]) Update(fn func(v *T)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn(&d.value)
	d.gen++
}

// Replace swaps in a new value.
func (d *Document[T]) Replace(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.value = v
	d.gen++
}

// Reload reads the file and replaces the in-memory value. A missing file
// resets to defaults silently. A corrupt or unreadable file also resets to
// defaults; the problem is logged, remembered for LoadWarning and returned.
func (d *Document[T]) Reload() error {
	value, err := Load(d.path, d.defaults)
	if err != nil {
		d.logger.Warn("document unreadable, using defaults",
			slog.String("path", d.path),
			slog.String("error", err.Error()),
		)
	}

	d.mu.Lock()
	d.value = value
	d.gen++
	d.loadWarning = err
	d.mu.Unlock()

	return err
}

// LoadWarning returns the problem found by the last Reload, or nil.
func (d *Document[T]) LoadWarning() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.loadWarning
}

// Persist writes the current value to disk. A snapshot older than one
// already written is dropped rather than written over it.
func (d *Document[T]) Persist() error {
	d.mu.RLock()
	data, err := Encode(d.value)
	gen := d.gen
	d.mu.RUnlock()

	if err != nil {
		return &WriteError{Path: d.path, Err: err}
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if d.persisted && gen < d.written {
		return nil
	}

	if err := WriteFile(d.path, data); err != nil {
		return err
	}

	d.written = gen
	d.persisted = true

	return nil
}
