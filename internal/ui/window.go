// Package ui is muon's main window: the list of open sessions, the
// input-blocking overlay and editor notifications.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muon-ssh/muon/internal/editor"
	"github.com/muon-ssh/muon/internal/session"
)

// maxEvents bounds the editor notifications kept for display.
const maxEvents = 5

// Options configures a Window.
type Options struct {
	Theme Theme
	// Sessions lists the open sessions in display order.
	Sessions func() []session.Panel
	// Pinned returns the pinned log paths for a host key.
	Pinned func(hostKey string) []string
	// CloseSession closes the session with the given id.
	CloseSession func(id int) error
	// Edit opens path of session id in the external editor.
	Edit func(id int, path string) error
	// ConfirmClose asks for a second key press before closing a session.
	ConfirmClose bool
	AltScreen    bool
	Input        io.Reader
	Output       io.Writer
	Logger       *slog.Logger
}

// Window is the main window. It is safe to call ShowBlocking, HideBlocking
// and NotifyEditor from any goroutine, including while other locks are held:
// they only record state and schedule a redraw.
type Window struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	program  *tea.Program
	blocking bool
	message  string
	events   []editor.Event
}

// New creates a window. It is not shown until Run.
func New(opts Options) *Window {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.Sessions == nil {
		opts.Sessions = func() []session.Panel { return nil }
	}

	if opts.Pinned == nil {
		opts.Pinned = func(string) []string { return nil }
	}

	return &Window{opts: opts, logger: logger.With(slog.String("component", "ui"))}
}

// ShowBlocking shows the blocking overlay with message.
func (w *Window) ShowBlocking(message string) {
	w.mu.Lock()
	w.blocking = true
	w.message = message
	w.mu.Unlock()

	w.refresh()
}

// HideBlocking removes the blocking overlay.
func (w *Window) HideBlocking() {
	w.mu.Lock()
	w.blocking = false
	w.message = ""
	w.mu.Unlock()

	w.refresh()
}

// NotifyEditor records an editor event for display.
func (w *Window) NotifyEditor(ev editor.Event) {
	w.mu.Lock()
	w.events = append(w.events, ev)
	if len(w.events) > maxEvents {
		w.events = w.events[len(w.events)-maxEvents:]
	}
	w.mu.Unlock()

	w.refresh()
}

// Refresh schedules a redraw, for example after sessions open or close.
func (w *Window) Refresh() {
	w.refresh()
}

func (w *Window) refresh() {
	w.mu.Lock()
	p := w.program
	w.mu.Unlock()

	if p != nil {
		// Send blocks until the event loop reads the message.
		go p.Send(refreshMsg{})
	}
}

type windowState struct {
	blocking bool
	message  string
	events   []editor.Event
}

func (w *Window) state() windowState {
	w.mu.Lock()
	defer w.mu.Unlock()

	return windowState{
		blocking: w.blocking,
		message:  w.message,
		events:   append([]editor.Event(nil), w.events...),
	}
}

// Run shows the window and runs its event loop until the user quits or ctx
// is done.
func (w *Window) Run(ctx context.Context) error {
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if w.opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	if w.opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(w.opts.Input))
	}

	if w.opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(w.opts.Output))
	}

	p := tea.NewProgram(newModel(w), progOpts...)

	w.mu.Lock()
	if w.program != nil {
		w.mu.Unlock()
		return errors.New("window is already running")
	}

	w.program = p
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.program = nil
		w.mu.Unlock()
	}()

	w.logger.Debug("window shown")

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("run window: %w", err)
	}

	return nil
}
