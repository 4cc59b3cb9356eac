// Package session tracks the remote sessions open in this process.
package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrNotFound is returned when no session has the requested id.
	ErrNotFound = errors.New("session not found")

	// ErrDuplicate is returned when an id is registered twice.
	ErrDuplicate = errors.New("session already registered")

	// ErrInvalidPanel is returned for a nil panel or a non-positive id.
	ErrInvalidPanel = errors.New("invalid session panel")
)

// Panel is the view of an open session that other components need.
type Panel interface {
	// SessionID is the process-unique id assigned when the session opened.
	SessionID() int

	// HostKey identifies the remote host, as used by the pinned-log store.
	HostKey() string

	// Title is the human-readable session label.
	Title() string
}

// Registry maps session ids to panels. It does not own the panels.
type Registry struct {
	mu     sync.RWMutex
	panels map[int]Panel
	order  []int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{panels: map[int]Panel{}}
}

// Register adds panel under id.
func (r *Registry) Register(id int, panel Panel) error {
	if id <= 0 || panel == nil {
		return fmt.Errorf("%w: id %d", ErrInvalidPanel, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.panels[id]; dup {
		return fmt.Errorf("%w: id %d", ErrDuplicate, id)
	}

	r.panels[id] = panel
	r.order = append(r.order, id)

	return nil
}

// Resolve returns the panel registered under id.
func (r *Registry) Resolve(id int) (Panel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	panel, ok := r.panels[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	return panel, nil
}

// Unregister removes id. It reports whether the id was present.
func (r *Registry) Unregister(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.panels[id]; !ok {
		return false
	}

	delete(r.panels, id)
	r.order = slices.DeleteFunc(r.order, func(v int) bool { return v == id })

	return true
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.order)
}

// Snapshot returns the registered panels in registration order.
func (r *Registry) Snapshot() []Panel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Panel, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.panels[id])
	}

	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.panels)
}
