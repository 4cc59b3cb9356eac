// Package snippet manages the library of reusable command snippets.
package snippet

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/muon-ssh/muon/internal/store"
)

var (
	// ErrNotFound is returned for a snippet name that is not in the library.
	ErrNotFound = errors.New("snippet not found")

	// ErrInvalid is returned for a snippet without a name or command.
	ErrInvalid = errors.New("snippet needs a name and a command")
)

// Snippet is one named command.
type Snippet struct {
	ID      string `json:"id" yaml:"id,omitempty" toml:"id,omitempty"`
	Name    string `json:"name" yaml:"name" toml:"name"`
	Command string `json:"command" yaml:"command" toml:"command"`
}

type library []Snippet

func emptyLibrary() library {
	return library{}
}

func (l library) clone() library {
	return slices.Clone(l)
}

// Manager owns the snippet library. It is independent of any session.
type Manager struct {
	doc *store.Document[library]
}

// Open loads the snippet library at path. The returned error is a load
// warning; the manager is usable either way.
func Open(path string, logger *slog.Logger) (*Manager, error) {
	doc, err := store.Open(store.Options[library]{
		Path:     path,
		Defaults: emptyLibrary,
		Clone:    library.clone,
		Logger:   logger,
	})

	m := &Manager{doc: doc}
	m.normalize()

	return m, err
}

// Older documents may lack ids, and a "null" document decodes to nil.
func (m *Manager) normalize() {
	m.doc.Update(func(l *library) {
		if *l == nil {
			*l = library{}
		}

		for i := range *l {
			if (*l)[i].ID == "" {
				(*l)[i].ID = uuid.NewString()
			}
		}
	})
}

// Path returns the snippets file path.
func (m *Manager) Path() string {
	return m.doc.Path()
}

// List returns the snippets in library order.
func (m *Manager) List() []Snippet {
	return m.doc.Get()
}

// Get returns the snippet called name.
func (m *Manager) Get(name string) (Snippet, error) {
	var (
		out   Snippet
		found bool
	)

	m.doc.Read(func(l library) {
		if i := l.index(name); i >= 0 {
			out, found = l[i], true
		}
	})

	if !found {
		return Snippet{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	return out, nil
}

// Add stores body under name. An existing snippet with the same name keeps
// its id and position and gets the new body.
func (m *Manager) Add(name, body string) (Snippet, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(body) == "" {
		return Snippet{}, ErrInvalid
	}

	var out Snippet

	m.doc.Update(func(l *library) {
		if i := l.index(name); i >= 0 {
			(*l)[i].Command = body
			out = (*l)[i]

			return
		}

		out = Snippet{ID: uuid.NewString(), Name: name, Command: body}
		*l = append(*l, out)
	})

	return out, nil
}

// Remove deletes the snippet called name.
func (m *Manager) Remove(name string) error {
	removed := false

	m.doc.Update(func(l *library) {
		if i := l.index(name); i >= 0 {
			*l = slices.Delete(slices.Clone(*l), i, i+1)
			removed = true
		}
	})

	if !removed {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	return nil
}

// Persist writes the library to disk.
func (m *Manager) Persist() error {
	return m.doc.Persist()
}

// Reload re-reads the snippets file.
func (m *Manager) Reload() error {
	err := m.doc.Reload()
	m.normalize()

	return err
}

// LoadWarning returns the problem found by the last load, or nil.
func (m *Manager) LoadWarning() error {
	return m.doc.LoadWarning()
}

// index finds name after trimming surrounding space, the form Add stores.
func (l library) index(name string) int {
	name = strings.TrimSpace(name)

	return slices.IndexFunc(l, func(s Snippet) bool { return s.Name == name })
}
