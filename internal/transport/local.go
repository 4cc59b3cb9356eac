package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalName is the name of the local filesystem provider.
const LocalName = "local"

// Local returns the provider that serves a directory on this machine.
func Local() Provider {
	return Provider{
		Name: LocalName,
		Open: func(_ context.Context, id int, target Target) (Session, error) {
			return OpenLocal(id, target.Root)
		},
	}
}

// LocalSession is a session over a local directory. Paths are resolved
// inside the directory and cannot escape it.
type LocalSession struct {
	id   int
	dir  string
	root *os.Root
}

// OpenLocal opens a local session rooted at dir.
func OpenLocal(id int, dir string) (*LocalSession, error) {
	if dir == "" {
		return nil, errors.New("local session needs a root directory")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("open root %s: %w", abs, err)
	}

	return &LocalSession{id: id, dir: abs, root: root}, nil
}

// SessionID returns the session id.
func (s *LocalSession) SessionID() int { return s.id }

// HostKey returns the key used for pinned logs.
func (s *LocalSession) HostKey() string { return "local:" + s.dir }

// Title returns the session label.
func (s *LocalSession) Title() string { return "local " + s.dir }

// Dir returns the served directory.
func (s *LocalSession) Dir() string { return s.dir }

// ErrPathEscapes is returned for a path that leaves the served directory.
var ErrPathEscapes = errors.New("path escapes the served directory")

func relative(path string) (string, error) {
	rel := strings.TrimLeft(filepath.ToSlash(path), "/")
	if rel == "" {
		return ".", nil
	}

	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, path)
	}

	return rel, nil
}

// Fetch copies the file at path into w.
func (s *LocalSession) Fetch(ctx context.Context, path string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel, err := relative(path)
	if err != nil {
		return err
	}

	f, err := s.root.Open(rel)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	return nil
}

// Push replaces the file at path with r.
func (s *LocalSession) Push(ctx context.Context, path string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel, err := relative(path)
	if err != nil {
		return err
	}

	f, err := s.root.OpenFile(rel, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

// Close releases the directory handle.
func (s *LocalSession) Close() error {
	return s.root.Close()
}
