package editor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of an edit session.
type State int

// Session states, in lifecycle order.
const (
	Requested State = iota
	LocalCopyReady
	EditorRunning
	SyncedBack
	Abandoned
	Closed
)

func (s State) String() string {
	switch s {
	case Requested:
		return "requested"
	case LocalCopyReady:
		return "local-copy-ready"
	case EditorRunning:
		return "editor-running"
	case SyncedBack:
		return "synced-back"
	case Abandoned:
		return "abandoned"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Saves arrive as bursts of writes; wait for the burst to settle.
const settleDelay = 100 * time.Millisecond

// Session is one external-editor round trip.
type Session struct {
	handler *Handler
	target  Target
	logger  *slog.Logger

	dir   string
	local string
	proc  Process

	mu        sync.Mutex
	state     State
	lastSum   [sha256.Size]byte
	lastMod   time.Time
	abandoned bool
	err       error

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newSession(h *Handler, target Target) *Session {
	return &Session{
		handler: h,
		target:  target,
		logger: h.logger.With(
			slog.String("host", target.HostKey),
			slog.String("path", target.Path),
		),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Target returns the remote file being edited.
func (s *Session) Target() Target {
	return s.target
}

// LocalPath returns the temp copy handed to the editor.
func (s *Session) LocalPath() string {
	return s.local
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.logger.Debug("editor session state", slog.String("state", state.String()))
}

// Done is closed once the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session closes or ctx is done. It returns the final
// sync error, if any.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()

		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the session: the editor is terminated, pending changes are
// pushed and the temp copy is removed. It does not wait; use Wait.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Abandon ends the session without the final sync.
func (s *Session) Abandon() {
	s.mu.Lock()
	s.abandoned = true
	s.mu.Unlock()

	s.Stop()
}

func (s *Session) run() {
	defer close(s.done)
	defer s.handler.forget(s)

	exited := make(chan struct{})

	var g errgroup.Group

	g.Go(func() error {
		defer close(exited)

		err := s.proc.Wait()
		if err != nil {
			select {
			case <-s.stop:
			default:
				s.logger.Warn("editor exited with error", slog.String("error", err.Error()))
			}
		}

		return nil
	})

	g.Go(func() error {
		select {
		case <-s.stop:
			if err := s.proc.Kill(); err != nil {
				s.logger.Debug("kill editor", slog.String("error", err.Error()))
			}
		case <-exited:
		}

		return nil
	})

	g.Go(func() error {
		s.watch(exited)
		return nil
	})

	_ = g.Wait()

	s.mu.Lock()
	abandoned := s.abandoned
	s.mu.Unlock()

	var finalErr error

	if abandoned {
		s.setState(Abandoned)
	} else {
		finalErr = s.sync(context.Background())
		s.setState(SyncedBack)
	}

	s.cleanup()

	s.mu.Lock()
	s.err = finalErr
	s.state = Closed
	s.mu.Unlock()

	s.logger.Info("editor session closed", slog.Bool("abandoned", abandoned))
	s.handler.notify(Event{Kind: EventClosed, HostKey: s.target.HostKey, Path: s.target.Path, Err: finalErr})
}

// watch pushes changes until the editor exits. File events on the temp
// directory drive it; the ticker covers platforms and editors that do not
// produce them.
func (s *Session) watch(exited <-chan struct{}) {
	if finalOnly := s.handler.opts.FinalSyncOnly; finalOnly != nil && finalOnly() {
		<-exited
		return
	}

	var events <-chan fsnotify.Event

	var watchErrors <-chan error

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Debug("file events unavailable, polling only", slog.String("error", err.Error()))
	} else {
		defer watcher.Close()

		if err := watcher.Add(s.dir); err != nil {
			s.logger.Debug("watch temp dir, polling only", slog.String("error", err.Error()))
		} else {
			events = watcher.Events
			watchErrors = watcher.Errors
		}
	}

	ticker := time.NewTicker(s.handler.opts.PollInterval)
	defer ticker.Stop()

	var settle <-chan time.Time

	for {
		select {
		case <-exited:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}

			if filepath.Base(ev.Name) == filepath.Base(s.local) {
				settle = time.After(settleDelay)
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}

			s.logger.Debug("file watch error", slog.String("error", err.Error()))
		case <-settle:
			settle = nil
			_ = s.sync(context.Background())
		case <-ticker.C:
			_ = s.sync(context.Background())
		}
	}
}

// sync pushes the local copy if its content changed since the last push.
// A failed push is reported and retried on the next change or tick.
func (s *Session) sync(ctx context.Context) error {
	sum, data, err := digest(s.local)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return s.syncFailed(fmt.Errorf("%w: read %s: %w", ErrSyncBackFailed, s.local, err))
	}

	s.mu.Lock()
	unchanged := sum == s.lastSum
	s.mu.Unlock()

	if unchanged {
		return nil
	}

	if err := s.target.Remote.Push(ctx, s.target.Path, bytes.NewReader(data)); err != nil {
		return s.syncFailed(fmt.Errorf("%w: %s: %w", ErrSyncBackFailed, s.target.Path, err))
	}

	var mod time.Time
	if info, statErr := os.Stat(s.local); statErr == nil {
		mod = info.ModTime()
	}

	s.mu.Lock()
	s.lastSum = sum
	s.lastMod = mod
	s.mu.Unlock()

	s.logger.Info("synced edited file", slog.Int("bytes", len(data)))
	s.handler.notify(Event{Kind: EventSynced, HostKey: s.target.HostKey, Path: s.target.Path})

	return nil
}

func (s *Session) syncFailed(err error) error {
	s.logger.Warn("sync back failed", slog.String("error", err.Error()))
	s.handler.notify(Event{Kind: EventSyncFailed, HostKey: s.target.HostKey, Path: s.target.Path, Err: err})

	return err
}

func digest(name string) ([sha256.Size]byte, []byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return [sha256.Size]byte{}, nil, err
	}

	return sha256.Sum256(data), data, nil
}
