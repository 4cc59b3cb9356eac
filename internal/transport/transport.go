// Package transport registers the providers that open remote sessions.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/muon-ssh/muon/internal/session"
)

var (
	// ErrUnknownProvider is returned by Open for an unregistered provider.
	ErrUnknownProvider = errors.New("unknown transport provider")

	// ErrDuplicateProvider is returned when a provider name is registered twice.
	ErrDuplicateProvider = errors.New("duplicate transport provider")

	// ErrUnavailable is returned when a provider cannot run on this system.
	ErrUnavailable = errors.New("transport provider unavailable")
)

// Target addresses a remote endpoint. Providers use the fields they need.
type Target struct {
	User string
	Host string
	Port int

	// Root is the directory served by the local provider.
	Root string
}

// Session is an open remote session.
type Session interface {
	session.Panel

	// Fetch copies the remote file at path into w.
	Fetch(ctx context.Context, path string, w io.Writer) error

	// Push replaces the remote file at path with the contents of r.
	Push(ctx context.Context, path string, r io.Reader) error

	// Close ends the session.
	Close() error
}

// Provider describes a registered transport.
type Provider struct {
	// Name is the provider identifier (e.g., "local", "ssh").
	Name string

	// Available reports whether the provider can run here. Nil means always.
	Available func() bool

	// Open starts a session with the given id.
	Open func(ctx context.Context, id int, target Target) (Session, error)
}

var lastSessionID atomic.Int64

// NextSessionID returns a process-unique session id.
func NextSessionID() int {
	return int(lastSessionID.Add(1))
}

// Registry holds the providers known to one application.
type Registry struct {
	mu        sync.Mutex
	providers map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Register adds a provider.
func (r *Registry) Register(p Provider) error {
	if p.Name == "" || p.Open == nil {
		return errors.New("transport: provider needs a name and an Open func")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.providers[p.Name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateProvider, p.Name)
	}

	r.providers[p.Name] = p

	return nil
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[name]

	return p, ok
}

// Names returns all registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Open starts a session through the named provider.
func (r *Registry) Open(ctx context.Context, name string, target Target) (Session, error) {
	p, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	if p.Available != nil && !p.Available() {
		return nil, fmt.Errorf("%w: %q", ErrUnavailable, name)
	}

	s, err := p.Open(ctx, NextSessionID(), target)
	if err != nil {
		return nil, fmt.Errorf("open %s session: %w", name, err)
	}

	return s, nil
}
