// Package app is muon's application context: it bootstraps the process,
// owns the stores and the session registry, and wires the input blocker and
// the external editor handler to the window.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/muon-ssh/muon/internal/blocker"
	"github.com/muon-ssh/muon/internal/buildinfo"
	"github.com/muon-ssh/muon/internal/config"
	"github.com/muon-ssh/muon/internal/editor"
	"github.com/muon-ssh/muon/internal/observability"
	"github.com/muon-ssh/muon/internal/paths"
	"github.com/muon-ssh/muon/internal/pinned"
	"github.com/muon-ssh/muon/internal/session"
	"github.com/muon-ssh/muon/internal/settings"
	"github.com/muon-ssh/muon/internal/snippet"
	"github.com/muon-ssh/muon/internal/terminal"
	"github.com/muon-ssh/muon/internal/transport"
	"github.com/muon-ssh/muon/internal/ui"
	"github.com/muon-ssh/muon/internal/worker"
)

var (
	// ErrNoWindow is returned by operations that need an attached window.
	ErrNoWindow = errors.New("no window attached")
	// ErrWindowAttached is returned when a second window is attached.
	ErrWindowAttached = errors.New("window already attached")
)

// Window is the main window as seen by the application context.
type Window interface {
	blocker.Overlay
	editor.Notifier
	Run(ctx context.Context) error
}

// Options configures Bootstrap.
type Options struct {
	Logger *slog.Logger
	Config *config.Config
	// Providers are registered after the built-in local provider.
	Providers []transport.Provider
	// Launcher starts editor processes; defaults to editor.ExecLauncher.
	Launcher editor.Launcher
	// Version stamps persisted settings; defaults to buildinfo.Version.
	Version string
}

// App is the process-wide application context.
type App struct {
	logger  *slog.Logger
	cfg     *config.Config
	version string
	tracer  trace.Tracer

	root      string
	providers *transport.Registry
	sessions  *session.Registry
	settings  *settings.Store
	pinned    *pinned.Store
	snippets  *snippet.Manager
	theme     ui.Theme
	queue     *worker.Queue
	launcher  editor.Launcher
	warnings  []error

	mu      sync.Mutex
	conns   map[int]transport.Session
	window  Window
	blocker *blocker.Blocker
	editor  *editor.Handler
}

// Bootstrap prepares the application context. Only a configuration
// directory that cannot be created is fatal; unreadable documents fall back
// to defaults and are reported through Warnings.
func Bootstrap(ctx context.Context, opts Options) (_ *App, err error) {
	ctx, span := observability.Tracer("muon/app").Start(ctx, "app.Bootstrap")
	defer func() { observability.EndSpan(span, err) }()

	logger := opts.Logger
	if logger == nil {
		logger = observability.FromContext(ctx)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Load()
	}

	a := &App{
		logger:    logger.With(slog.String("component", "app")),
		cfg:       cfg,
		version:   opts.Version,
		tracer:    observability.Tracer("muon/app"),
		providers: transport.NewRegistry(),
		sessions:  session.NewRegistry(),
		launcher:  opts.Launcher,
		conns:     map[int]transport.Session{},
	}

	if a.version == "" {
		a.version = buildinfo.Version
	}

	if a.launcher == nil {
		a.launcher = editor.ExecLauncher{Attach: true}
	}

	root, err := paths.EnsureConfigRoot()
	if err != nil {
		return nil, err
	}

	a.root = root

	DisableResolverCache()

	if err := a.registerProviders(opts.Providers); err != nil {
		return nil, err
	}

	if err := a.loadStores(); err != nil {
		return nil, err
	}

	a.theme = ui.ThemeFor(a.settings.Get())

	a.queue = worker.New(context.WithoutCancel(ctx), logger)

	if cfg.WarmupEnabled() {
		if err := a.queue.Submit("terminal-warmup", func(ctx context.Context) error {
			return terminal.Warmup(ctx, terminal.DefaultCols, terminal.DefaultRows)
		}); err != nil {
			a.logger.Warn("warm-up not scheduled", slog.String("error", err.Error()))
		}
	}

	span.SetAttributes(
		attribute.String("muon.config_root", root),
		attribute.Int("muon.load_warnings", len(a.warnings)),
	)

	a.logger.Info("bootstrap complete",
		slog.String("config_root", root),
		slog.Any("providers", a.providers.Names()),
		slog.Int("warnings", len(a.warnings)),
	)

	return a, nil
}

func (a *App) registerProviders(extra []transport.Provider) error {
	for _, p := range append([]transport.Provider{transport.Local()}, extra...) {
		if err := a.providers.Register(p); err != nil {
			return fmt.Errorf("register transport provider: %w", err)
		}
	}

	return nil
}

func (a *App) loadStores() error {
	settingsPath, err := paths.SettingsFile()
	if err != nil {
		return err
	}

	pinnedPath, err := paths.PinnedLogsFile()
	if err != nil {
		return err
	}

	snippetsPath, err := paths.SnippetsFile()
	if err != nil {
		return err
	}

	var warning error

	a.settings, warning = settings.Open(settingsPath, a.logger)
	a.warn(warning)

	a.pinned, warning = pinned.Open(pinnedPath, a.logger)
	a.warn(warning)

	a.snippets, warning = snippet.Open(snippetsPath, a.logger)
	a.warn(warning)

	return nil
}

func (a *App) warn(err error) {
	if err == nil {
		return
	}

	a.logger.Warn("document loaded with defaults", slog.String("error", err.Error()))
	a.warnings = append(a.warnings, err)
}

// Warnings returns the problems found while loading documents.
func (a *App) Warnings() []error {
	return append([]error(nil), a.warnings...)
}

// ConfigRoot returns the configuration directory.
func (a *App) ConfigRoot() string { return a.root }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Settings returns the settings store.
func (a *App) Settings() *settings.Store { return a.settings }

// Pinned returns the pinned-log store.
func (a *App) Pinned() *pinned.Store { return a.pinned }

// Snippets returns the snippet library.
func (a *App) Snippets() *snippet.Manager { return a.snippets }

// Sessions returns the session registry.
func (a *App) Sessions() *session.Registry { return a.sessions }

// Providers returns the transport provider registry.
func (a *App) Providers() *transport.Registry { return a.providers }

// Theme returns the theme picked from the settings at bootstrap.
func (a *App) Theme() ui.Theme { return a.theme }

// Queue returns the background task queue.
func (a *App) Queue() *worker.Queue { return a.queue }

// PersistSettings writes the settings document stamped with this build's
// version.
func (a *App) PersistSettings(ctx context.Context) (err error) {
	_, span := a.tracer.Start(ctx, "app.PersistSettings")
	defer func() { observability.EndSpan(span, err) }()

	return a.settings.Persist(a.version)
}

// AttachWindow binds the input blocker and the external editor handler to w.
func (a *App) AttachWindow(w Window) error {
	if w == nil {
		return ErrNoWindow
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.window != nil {
		return ErrWindowAttached
	}

	tempDir := a.cfg.EditorTempDir()
	if tempDir == "" {
		dir, err := paths.EditorTempDir()
		if err != nil {
			return err
		}

		tempDir = dir
	}

	a.window = w
	a.blocker = blocker.New(w, a.logger)
	a.editor = editor.New(editor.Options{
		Launcher: a.launcher,
		Command: func() ([]string, error) {
			return a.settings.Get().EditorCommand()
		},
		Notifier:     w,
		TempDir:      tempDir,
		PollInterval: a.cfg.EditorPollInterval(),
		FinalSyncOnly: func() bool {
			return !a.settings.Get().RemoteEditorSyncOnSave
		},
		Logger: a.logger,
	})

	return nil
}

func (a *App) attached() (Window, *blocker.Blocker, *editor.Handler, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.window == nil {
		return nil, nil, nil, ErrNoWindow
	}

	return a.window, a.blocker, a.editor, nil
}

// Blocker returns the input blocker of the attached window.
func (a *App) Blocker() (*blocker.Blocker, error) {
	_, b, _, err := a.attached()
	return b, err
}

// Editor returns the external editor handler of the attached window.
func (a *App) Editor() (*editor.Handler, error) {
	_, _, h, err := a.attached()
	return h, err
}

// Run hands control to the window until it closes or ctx is done.
func (a *App) Run(ctx context.Context) error {
	w, _, _, err := a.attached()
	if err != nil {
		return err
	}

	return w.Run(ctx)
}

// OpenSession opens a session through the named provider and registers it.
func (a *App) OpenSession(ctx context.Context, provider string, target transport.Target) (s transport.Session, err error) {
	ctx, span := a.tracer.Start(ctx, "app.OpenSession", trace.WithAttributes(attribute.String("muon.provider", provider)))
	defer func() { observability.EndSpan(span, err) }()

	s, err = a.providers.Open(ctx, provider, target)
	if err != nil {
		return nil, err
	}

	if err := a.sessions.Register(s.SessionID(), s); err != nil {
		_ = s.Close()
		return nil, err
	}

	a.mu.Lock()
	a.conns[s.SessionID()] = s
	a.mu.Unlock()

	a.logger.Info("session opened",
		slog.Int("session_id", s.SessionID()),
		slog.String("provider", provider),
		slog.String("host", s.HostKey()),
	)

	return s, nil
}

// CloseSession unregisters a session, releases an input block it holds,
// stops its editor sessions with a final sync and closes the connection.
func (a *App) CloseSession(ctx context.Context, id int) error {
	panel, err := a.sessions.Resolve(id)
	if err != nil {
		return err
	}

	if !a.sessions.Unregister(id) {
		return fmt.Errorf("%w: %d", session.ErrNotFound, id)
	}

	a.mu.Lock()
	conn := a.conns[id]
	delete(a.conns, id)
	b, h := a.blocker, a.editor
	a.mu.Unlock()

	var errs []error

	if b != nil {
		b.ReleaseSession(id)
	}

	if h != nil {
		if err := h.StopHost(ctx, panel.HostKey()); err != nil {
			errs = append(errs, err)
		}
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %d: %w", id, err))
		}
	}

	a.logger.Info("session closed", slog.Int("session_id", id))

	return errors.Join(errs...)
}

// EditRemote opens path of session id in the external editor. Input is
// blocked while the file is fetched and the editor launched.
func (a *App) EditRemote(ctx context.Context, id int, path string) (s *editor.Session, err error) {
	ctx, span := a.tracer.Start(ctx, "app.EditRemote", trace.WithAttributes(
		attribute.Int("muon.session_id", id),
		attribute.String("muon.path", path),
	))
	defer func() { observability.EndSpan(span, err) }()

	_, b, h, err := a.attached()
	if err != nil {
		return nil, err
	}

	panel, err := a.sessions.Resolve(id)
	if err != nil {
		return nil, err
	}

	remote, ok := panel.(editor.Remote)
	if !ok {
		return nil, fmt.Errorf("%w: session %d does not support file transfer", editor.ErrFetchFailed, id)
	}

	owner := blocker.Owner{Name: "edit " + path, SessionID: id}

	err = b.Run(ctx, owner, "Opening "+path, func(ctx context.Context) error {
		started, err := h.Open(ctx, editor.Target{HostKey: panel.HostKey(), Path: path, Remote: remote})
		s = started

		return err
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Shutdown stops editor sessions, closes open sessions and drains the
// background queue.
func (a *App) Shutdown(ctx context.Context) error {
	start := time.Now()

	var errs []error

	if _, _, h, err := a.attached(); err == nil {
		if err := h.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	for _, id := range a.sessions.IDs() {
		if err := a.CloseSession(ctx, id); err != nil && !errors.Is(err, session.ErrNotFound) {
			errs = append(errs, err)
		}
	}

	if a.queue != nil {
		if err := a.queue.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain background queue: %w", err))
		}
	}

	a.logger.Debug("shutdown complete", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}
