// Package pinned stores the log files a user has bookmarked per host.
package pinned

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/muon-ssh/muon/internal/store"
)

// Logs maps a host key to its ordered list of pinned log paths.
type Logs map[string][]string

func emptyLogs() Logs {
	return Logs{}
}

// Clone returns a deep copy of l.
func (l Logs) Clone() Logs {
	out := make(Logs, len(l))
	for host, files := range l {
		out[host] = slices.Clone(files)
	}

	return out
}

// Key builds the host key used by sessions to look up their pinned logs.
func Key(user, host string, port int) string {
	if port <= 0 {
		port = 22
	}

	if user == "" {
		return fmt.Sprintf("%s:%d", host, port)
	}

	return fmt.Sprintf("%s@%s:%d", user, host, port)
}

// Store is the pinned-logs document.
type Store struct {
	doc *store.Document[Logs]
}

// Open loads the pinned logs at path. The returned error is a load warning;
// the store is usable either way.
func Open(path string, logger *slog.Logger) (*Store, error) {
	doc, err := store.Open(store.Options[Logs]{
		Path:     path,
		Defaults: emptyLogs,
		Clone:    Logs.Clone,
		Logger:   logger,
	})

	s := &Store{doc: doc}
	s.normalize()

	return s, err
}

// A "null" document decodes to a nil map.
func (s *Store) normalize() {
	s.doc.Update(func(l *Logs) {
		if *l == nil {
			*l = Logs{}
		}
	})
}

// Path returns the pinned-logs file path.
func (s *Store) Path() string {
	return s.doc.Path()
}

// Get returns the pinned paths for host in pin order. It is never nil.
func (s *Store) Get(host string) []string {
	var out []string

	s.doc.Read(func(l Logs) {
		out = slices.Clone(l[host])
	})

	if out == nil {
		out = []string{}
	}

	return out
}

// All returns a copy of the whole map.
func (s *Store) All() Logs {
	return s.doc.Get()
}

// Hosts returns the hosts that have pinned logs, sorted.
func (s *Store) Hosts() []string {
	var hosts []string

	s.doc.Read(func(l Logs) {
		for host, files := range l {
			if len(files) > 0 {
				hosts = append(hosts, host)
			}
		}
	})

	sort.Strings(hosts)

	return hosts
}

// AppendOrReplace sets the pinned paths for host. An empty list removes the
// host.
func (s *Store) AppendOrReplace(host string, files []string) {
	s.doc.Update(func(l *Logs) {
		if len(files) == 0 {
			delete(*l, host)
			return
		}

		(*l)[host] = slices.Clone(files)
	})
}

// Add appends one path to host's list.
func (s *Store) Add(host, file string) {
	s.doc.Update(func(l *Logs) {
		(*l)[host] = append((*l)[host], file)
	})
}

// Remove drops the first occurrence of file from host's list.
func (s *Store) Remove(host, file string) bool {
	removed := false

	s.doc.Update(func(l *Logs) {
		files := (*l)[host]

		i := slices.Index(files, file)
		if i < 0 {
			return
		}

		files = slices.Delete(slices.Clone(files), i, i+1)
		if len(files) == 0 {
			delete(*l, host)
		} else {
			(*l)[host] = files
		}

		removed = true
	})

	return removed
}

// PersistAll writes the whole map to disk.
func (s *Store) PersistAll() error {
	return s.doc.Persist()
}

// Reload re-reads the pinned-logs file.
func (s *Store) Reload() error {
	err := s.doc.Reload()
	s.normalize()

	return err
}

// LoadWarning returns the problem found by the last load, or nil.
func (s *Store) LoadWarning() error {
	return s.doc.LoadWarning()
}
