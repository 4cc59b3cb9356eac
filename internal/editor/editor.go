// Package editor round-trips remote files through a local external editor.
//
// A session fetches the remote file into a private temp directory, launches
// the editor on it, pushes every saved change back while the editor runs,
// performs a final sync when the editor exits, and removes the temp copy.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"al.essio.dev/pkg/shellescape"
)

var (
	// ErrFetchFailed is returned when the remote file cannot be copied locally.
	ErrFetchFailed = errors.New("fetch remote file failed")

	// ErrEditorLaunchFailed is returned when no editor is configured or the
	// editor process cannot be started.
	ErrEditorLaunchFailed = errors.New("launch editor failed")

	// ErrSyncBackFailed is reported when an edited copy cannot be pushed.
	ErrSyncBackFailed = errors.New("sync back failed")

	// ErrAlreadyEditing is returned when the target already has a session.
	ErrAlreadyEditing = errors.New("file is already open in an editor")
)

// DefaultPollInterval is the change-detection poll used alongside file events.
const DefaultPollInterval = 2 * time.Second

// Remote moves file contents to and from the remote side.
type Remote interface {
	Fetch(ctx context.Context, path string, w io.Writer) error
	Push(ctx context.Context, path string, r io.Reader) error
}

// Target is the remote file to edit.
type Target struct {
	HostKey string
	Path    string
	Remote  Remote
}

func (t Target) key() string {
	return t.HostKey + "\x00" + t.Path
}

// EventKind classifies a notification.
type EventKind int

// Notification kinds.
const (
	EventOpened EventKind = iota
	EventSynced
	EventSyncFailed
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventSynced:
		return "synced"
	case EventSyncFailed:
		return "sync-failed"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is delivered to the Notifier as a session progresses.
type Event struct {
	Kind    EventKind
	HostKey string
	Path    string
	Err     error
}

// Notifier receives session events. It is called from session goroutines
// and must not block.
type Notifier interface {
	NotifyEditor(ev Event)
}

// Options configures a Handler.
type Options struct {
	// Launcher starts editor processes. Nil uses ExecLauncher.
	Launcher Launcher

	// Command returns the editor command line; the local file is appended.
	Command func() ([]string, error)

	// Notifier receives session events. Nil discards them.
	Notifier Notifier

	// TempDir is the parent of per-session temp directories. Empty uses
	// os.TempDir.
	TempDir string

	// PollInterval is the poll fallback period. Zero uses DefaultPollInterval.
	PollInterval time.Duration

	// FinalSyncOnly reports whether pushes are disabled while the editor is
	// running. It is consulted as each session starts watching. Nil keeps
	// pushes on.
	FinalSyncOnly func() bool

	Logger *slog.Logger
}

// Handler owns the active editor sessions.
type Handler struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// New returns a Handler.
func New(opts Options) *Handler {
	if opts.Launcher == nil {
		opts.Launcher = ExecLauncher{}
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		opts:     opts,
		logger:   logger.With(slog.String("component", "editor")),
		sessions: map[string]*Session{},
	}
}

// Open starts an edit session for target. ctx bounds the fetch and launch;
// the running session is ended with Stop, Abandon or Shutdown.
func (h *Handler) Open(ctx context.Context, target Target) (*Session, error) {
	if target.Remote == nil || target.Path == "" {
		return nil, fmt.Errorf("%w: no remote file", ErrFetchFailed)
	}

	s := newSession(h, target)

	if err := h.reserve(s); err != nil {
		return nil, err
	}

	if err := s.start(ctx); err != nil {
		h.forget(s)
		s.cleanup()
		s.setState(Closed)
		close(s.done)

		return nil, err
	}

	h.notify(Event{Kind: EventOpened, HostKey: target.HostKey, Path: target.Path})

	go s.run()

	return s, nil
}

func (h *Handler) reserve(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("%w: handler shut down", ErrEditorLaunchFailed)
	}

	key := s.target.key()
	if _, busy := h.sessions[key]; busy {
		return fmt.Errorf("%w: %s", ErrAlreadyEditing, s.target.Path)
	}

	h.sessions[key] = s

	return nil
}

func (h *Handler) forget(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[s.target.key()] == s {
		delete(h.sessions, s.target.key())
	}
}

func (h *Handler) notify(ev Event) {
	if h.opts.Notifier != nil {
		h.opts.Notifier.NotifyEditor(ev)
	}
}

// Info describes an active session.
type Info struct {
	HostKey   string
	Path      string
	LocalPath string
	State     State
}

// Active lists the active sessions ordered by host and path.
func (h *Handler) Active() []Info {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))

	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, Info{
			HostKey:   s.target.HostKey,
			Path:      s.target.Path,
			LocalPath: s.LocalPath(),
			State:     s.State(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].HostKey != out[j].HostKey {
			return out[i].HostKey < out[j].HostKey
		}

		return out[i].Path < out[j].Path
	})

	return out
}

func (h *Handler) matching(match func(*Session) bool) []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*Session

	for _, s := range h.sessions {
		if match(s) {
			out = append(out, s)
		}
	}

	return out
}

// StopHost stops every session for hostKey, with a final sync, and waits
// for them to close.
func (h *Handler) StopHost(ctx context.Context, hostKey string) error {
	sessions := h.matching(func(s *Session) bool { return s.target.HostKey == hostKey })

	return stopAll(ctx, sessions)
}

// Shutdown stops every session with a final sync and refuses new ones.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	return stopAll(ctx, h.matching(func(*Session) bool { return true }))
}

func stopAll(ctx context.Context, sessions []*Session) error {
	for _, s := range sessions {
		s.Stop()
	}

	var errs []error

	for _, s := range sessions {
		if err := s.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// start fetches the file and launches the editor.
func (s *Session) start(ctx context.Context) error {
	h := s.handler

	if h.opts.TempDir != "" {
		if err := os.MkdirAll(h.opts.TempDir, 0o700); err != nil {
			return fmt.Errorf("%w: create temp dir: %w", ErrFetchFailed, err)
		}
	}

	dir, err := os.MkdirTemp(h.opts.TempDir, "muon-edit-*")
	if err != nil {
		return fmt.Errorf("%w: create temp dir: %w", ErrFetchFailed, err)
	}

	s.dir = dir
	s.local = filepath.Join(dir, localName(s.target.Path))

	if err := s.fetch(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetchFailed, s.target.Path, err)
	}

	s.setState(LocalCopyReady)

	if h.opts.Command == nil {
		return fmt.Errorf("%w: no editor configured", ErrEditorLaunchFailed)
	}

	argv, err := h.opts.Command()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEditorLaunchFailed, err)
	}

	if len(argv) == 0 || argv[0] == "" {
		return fmt.Errorf("%w: empty editor command", ErrEditorLaunchFailed)
	}

	argv = append(append([]string(nil), argv...), s.local)

	s.logger.Info("launching editor", slog.String("command", shellescape.QuoteCommand(argv)))

	proc, err := h.opts.Launcher.Launch(ctx, argv)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEditorLaunchFailed, err)
	}

	s.proc = proc
	s.setState(EditorRunning)

	return nil
}

func (s *Session) fetch(ctx context.Context) error {
	f, err := os.OpenFile(s.local, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}

	if err := s.target.Remote.Fetch(ctx, s.target.Path, f); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	sum, _, err := digest(s.local)
	if err != nil {
		return err
	}

	s.lastSum = sum

	return nil
}

// localName keeps the remote base name so editors pick the right mode.
func localName(remotePath string) string {
	name := path.Base(filepath.ToSlash(remotePath))
	if name == "." || name == "/" || name == "" {
		return "file"
	}

	return name
}

func (s *Session) cleanup() {
	if s.dir == "" {
		return
	}

	if err := os.RemoveAll(s.dir); err != nil {
		s.logger.Warn("remove editor temp dir", slog.String("dir", s.dir), slog.String("error", err.Error()))
	}
}
