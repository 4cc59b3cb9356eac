package app

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/muon-ssh/muon/internal/blocker"
	"github.com/muon-ssh/muon/internal/editor"
	"github.com/muon-ssh/muon/internal/paths"
	"github.com/muon-ssh/muon/internal/session"
	"github.com/muon-ssh/muon/internal/settings"
	"github.com/muon-ssh/muon/internal/store"
	"github.com/muon-ssh/muon/internal/transport"
)

type fakeWindow struct {
	mu     sync.Mutex
	calls  []string
	events []editor.Event
}

func (w *fakeWindow) ShowBlocking(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls = append(w.calls, "show:"+message)
}

func (w *fakeWindow) HideBlocking() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls = append(w.calls, "hide")
}

func (w *fakeWindow) NotifyEditor(ev editor.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.events = append(w.events, ev)
}

func (w *fakeWindow) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (w *fakeWindow) overlayCalls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return slices.Clone(w.calls)
}

type fakeProcess struct {
	once sync.Once
	exit chan struct{}
}

func (p *fakeProcess) Wait() error {
	<-p.exit
	return nil
}

func (p *fakeProcess) Kill() error {
	p.once.Do(func() { close(p.exit) })
	return nil
}

type fakeLauncher struct {
	mu   sync.Mutex
	argv [][]string
}

func (l *fakeLauncher) Launch(_ context.Context, argv []string) (editor.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.argv = append(l.argv, argv)

	return &fakeProcess{exit: make(chan struct{})}, nil
}

func setHome(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "muon-ssh")
	t.Setenv("MUON_HOME", root)

	return root
}

func bootstrap(t *testing.T) (*App, *fakeLauncher) {
	t.Helper()

	launcher := &fakeLauncher{}

	a, err := Bootstrap(context.Background(), Options{Launcher: launcher, Version: "1.2.3"})
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})

	return a, launcher
}

func TestBootstrap_CreatesConfigRoot(t *testing.T) {
	root := setHome(t)
	a, _ := bootstrap(t)

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("config root not created: %v", err)
	}

	if a.ConfigRoot() != root {
		t.Fatalf("ConfigRoot() = %q, want %q", a.ConfigRoot(), root)
	}

	if _, ok := a.Providers().Lookup(transport.LocalName); !ok {
		t.Fatal("local provider not registered")
	}

	if len(a.Warnings()) != 0 {
		t.Fatalf("Warnings() = %v, want none", a.Warnings())
	}

	if !a.Theme().Dark {
		t.Fatal("default theme should be dark")
	}
}

func TestBootstrap_FailsWhenConfigRootBlocked(t *testing.T) {
	root := setHome(t)

	if err := os.WriteFile(root, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := Bootstrap(context.Background(), Options{})
	if !errors.Is(err, paths.ErrDirectoryCreate) {
		t.Fatalf("Bootstrap() error = %v, want ErrDirectoryCreate", err)
	}
}

func TestBootstrap_CorruptDocumentsAreWarnings(t *testing.T) {
	root := setHome(t)

	if err := os.MkdirAll(root, 0o700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, paths.SettingsFileName), []byte("{"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	a, _ := bootstrap(t)

	warnings := a.Warnings()
	if len(warnings) != 1 || !errors.Is(warnings[0], store.ErrCorrupt) {
		t.Fatalf("Warnings() = %v, want one ErrCorrupt", warnings)
	}

	if a.Settings().Get().TerminalFontSize != 14 {
		t.Fatal("settings should fall back to defaults")
	}
}

func TestPersistSettingsStampsVersion(t *testing.T) {
	setHome(t)
	a, _ := bootstrap(t)

	if err := a.PersistSettings(context.Background()); err != nil {
		t.Fatalf("PersistSettings() error = %v", err)
	}

	if got := a.Settings().Get().WrittenBy; got != "1.2.3" {
		t.Fatalf("WrittenBy = %q, want 1.2.3", got)
	}
}

func TestAttachWindow(t *testing.T) {
	setHome(t)
	a, _ := bootstrap(t)

	if _, err := a.Blocker(); !errors.Is(err, ErrNoWindow) {
		t.Fatalf("Blocker() before attach error = %v, want ErrNoWindow", err)
	}

	if err := a.AttachWindow(&fakeWindow{}); err != nil {
		t.Fatalf("AttachWindow() error = %v", err)
	}

	if err := a.AttachWindow(&fakeWindow{}); !errors.Is(err, ErrWindowAttached) {
		t.Fatalf("second AttachWindow() error = %v, want ErrWindowAttached", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func openLocal(t *testing.T, a *App) (transport.Session, string) {
	t.Helper()

	dir := t.TempDir()

	s, err := a.OpenSession(context.Background(), transport.LocalName, transport.Target{Root: dir})
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	return s, dir
}

func TestOpenAndCloseSession(t *testing.T) {
	setHome(t)
	a, _ := bootstrap(t)

	s, _ := openLocal(t, a)

	if _, err := a.Sessions().Resolve(s.SessionID()); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if err := a.CloseSession(context.Background(), s.SessionID()); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}

	if _, err := a.Sessions().Resolve(s.SessionID()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Resolve() after close error = %v, want ErrNotFound", err)
	}

	if err := a.CloseSession(context.Background(), s.SessionID()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("second CloseSession() error = %v, want ErrNotFound", err)
	}
}

func TestOpenSession_UnknownProvider(t *testing.T) {
	setHome(t)
	a, _ := bootstrap(t)

	if _, err := a.OpenSession(context.Background(), "ssh", transport.Target{}); !errors.Is(err, transport.ErrUnknownProvider) {
		t.Fatalf("OpenSession() error = %v, want ErrUnknownProvider", err)
	}
}

func TestCloseSessionReleasesBlock(t *testing.T) {
	setHome(t)
	a, _ := bootstrap(t)

	w := &fakeWindow{}
	if err := a.AttachWindow(w); err != nil {
		t.Fatalf("AttachWindow() error = %v", err)
	}

	s, _ := openLocal(t, a)
	b, _ := a.Blocker()

	if err := b.Block(blocker.Owner{Name: "connect", SessionID: s.SessionID()}, "Connecting"); err != nil {
		t.Fatalf("Block() error = %v", err)
	}

	if err := a.CloseSession(context.Background(), s.SessionID()); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}

	if b.State() != blocker.Idle {
		t.Fatalf("State() = %v, want Idle", b.State())
	}
}

func TestEditRemote_RequiresWindow(t *testing.T) {
	setHome(t)
	a, _ := bootstrap(t)

	if _, err := a.EditRemote(context.Background(), 1, "/etc/hosts"); !errors.Is(err, ErrNoWindow) {
		t.Fatalf("EditRemote() error = %v, want ErrNoWindow", err)
	}
}

func TestEditRemote_UnknownSession(t *testing.T) {
	setHome(t)
	a, _ := bootstrap(t)

	if err := a.AttachWindow(&fakeWindow{}); err != nil {
		t.Fatalf("AttachWindow() error = %v", err)
	}

	if _, err := a.EditRemote(context.Background(), 9999, "/etc/hosts"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("EditRemote() error = %v, want ErrNotFound", err)
	}
}

func TestEditRemote_RoundTripStoppedBySessionClose(t *testing.T) {
	setHome(t)
	a, launcher := bootstrap(t)

	w := &fakeWindow{}
	if err := a.AttachWindow(w); err != nil {
		t.Fatalf("AttachWindow() error = %v", err)
	}

	s, dir := openLocal(t, a)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("before"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	es, err := a.EditRemote(context.Background(), s.SessionID(), "/notes.txt")
	if err != nil {
		t.Fatalf("EditRemote() error = %v", err)
	}

	if got := w.overlayCalls(); !slices.Equal(got, []string{"show:Opening /notes.txt", "hide"}) {
		t.Fatalf("overlay calls = %v", got)
	}

	if len(launcher.argv) != 1 || launcher.argv[0][len(launcher.argv[0])-1] != es.LocalPath() {
		t.Fatalf("launcher argv = %v, want local path last", launcher.argv)
	}

	if err := os.WriteFile(es.LocalPath(), []byte("after"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := a.CloseSession(context.Background(), s.SessionID()); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}

	if es.State() != editor.Closed {
		t.Fatalf("editor state = %v, want Closed", es.State())
	}

	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if string(data) != "after" {
		t.Fatalf("remote file = %q, want final sync to write %q", data, "after")
	}

	if _, err := os.Stat(es.LocalPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("local copy still present: %v", err)
	}
}

func TestEditRemote_SyncOnSaveToggledAfterAttach(t *testing.T) {
	setHome(t)
	a, _ := bootstrap(t)

	if err := a.AttachWindow(&fakeWindow{}); err != nil {
		t.Fatalf("AttachWindow() error = %v", err)
	}

	a.Settings().Update(func(s *settings.Settings) { s.RemoteEditorSyncOnSave = false })

	s, dir := openLocal(t, a)
	remote := filepath.Join(dir, "notes.txt")

	if err := os.WriteFile(remote, []byte("before"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	es, err := a.EditRemote(context.Background(), s.SessionID(), "/notes.txt")
	if err != nil {
		t.Fatalf("EditRemote() error = %v", err)
	}

	if err := os.WriteFile(es.LocalPath(), []byte("after"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if data, _ := os.ReadFile(remote); string(data) != "before" {
		t.Fatalf("remote file = %q while editing, want no push with sync on save off", data)
	}

	if err := a.CloseSession(context.Background(), s.SessionID()); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}

	if data, _ := os.ReadFile(remote); string(data) != "after" {
		t.Fatalf("remote file = %q after close, want final sync to write %q", data, "after")
	}
}

func TestEditRemote_FetchFailureReleasesBlock(t *testing.T) {
	setHome(t)
	a, _ := bootstrap(t)

	if err := a.AttachWindow(&fakeWindow{}); err != nil {
		t.Fatalf("AttachWindow() error = %v", err)
	}

	s, _ := openLocal(t, a)

	if _, err := a.EditRemote(context.Background(), s.SessionID(), "/missing.txt"); !errors.Is(err, editor.ErrFetchFailed) {
		t.Fatalf("EditRemote() error = %v, want ErrFetchFailed", err)
	}

	b, _ := a.Blocker()
	if b.State() != blocker.Idle {
		t.Fatalf("State() = %v, want Idle", b.State())
	}
}

func TestDisableResolverCache(t *testing.T) {
	DisableResolverCache()

	if !net.DefaultResolver.PreferGo {
		t.Fatal("PreferGo = false after DisableResolverCache")
	}
}
