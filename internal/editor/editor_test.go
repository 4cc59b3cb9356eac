package editor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memRemote struct {
	mu       sync.Mutex
	files    map[string]string
	pushes   int
	failPush error
	failGet  error
}

func newRemote(files map[string]string) *memRemote {
	return &memRemote{files: files}
}

func (r *memRemote) Fetch(_ context.Context, path string, w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failGet != nil {
		return r.failGet
	}

	data, ok := r.files[path]
	if !ok {
		return os.ErrNotExist
	}

	_, err := io.WriteString(w, data)

	return err
}

func (r *memRemote) Push(_ context.Context, path string, rd io.Reader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failPush != nil {
		return r.failPush
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return err
	}

	r.files[path] = buf.String()
	r.pushes++

	return nil
}

func (r *memRemote) get(path string) (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.files[path], r.pushes
}

func (r *memRemote) setFailPush(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failPush = err
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
	p.quit()
	return nil
}

func (p *fakeProcess) quit() {
	p.once.Do(func() { close(p.exit) })
}

type fakeLauncher struct {
	mu    sync.Mutex
	argv  [][]string
	procs []*fakeProcess
	err   error
}

func (l *fakeLauncher) Launch(_ context.Context, argv []string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}

	p := &fakeProcess{exit: make(chan struct{})}
	l.argv = append(l.argv, argv)
	l.procs = append(l.procs, p)

	return p, nil
}

func (l *fakeLauncher) last() *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.procs[len(l.procs)-1]
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventLog) NotifyEditor(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.events = append(e.events, ev)
}

func (e *eventLog) count(kind EventKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0

	for _, ev := range e.events {
		if ev.Kind == kind {
			n++
		}
	}

	return n
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}

		time.Sleep(5 * time.Millisecond)
	}
}

func viCommand() ([]string, error) {
	return []string{"vi"}, nil
}

type fixture struct {
	handler  *Handler
	launcher *fakeLauncher
	remote   *memRemote
	events   *eventLog
	tempDir  string
}

func alwaysFinalSync() bool { return true }

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()

	f := &fixture{
		launcher: &fakeLauncher{},
		remote:   newRemote(map[string]string{"/etc/app.conf": "v1"}),
		events:   &eventLog{},
		tempDir:  t.TempDir(),
	}

	opts := Options{
		Launcher:     f.launcher,
		Command:      viCommand,
		Notifier:     f.events,
		TempDir:      f.tempDir,
		PollInterval: 20 * time.Millisecond,
	}

	if mutate != nil {
		mutate(&opts)
	}

	f.handler = New(opts)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = f.handler.Shutdown(ctx)
	})

	return f
}

func (f *fixture) target() Target {
	return Target{HostKey: "alice@db:22", Path: "/etc/app.conf", Remote: f.remote}
}

func (f *fixture) tempEntries(t *testing.T) int {
	t.Helper()

	entries, err := os.ReadDir(f.tempDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	return len(entries)
}

func waitClosed(t *testing.T, s *Session) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("session did not close")
	}

	return err
}

func TestRoundTripSyncsWhileRunningAndOnExit(t *testing.T) {
	f := newFixture(t, nil)

	s, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if s.State() != EditorRunning {
		t.Fatalf("State() = %v, want editor-running", s.State())
	}

	data, err := os.ReadFile(s.LocalPath())
	if err != nil || string(data) != "v1" {
		t.Fatalf("local copy = %q, %v", data, err)
	}

	if got := f.launcher.argv[0]; len(got) != 2 || got[0] != "vi" || got[1] != s.LocalPath() {
		t.Fatalf("launched argv = %v", got)
	}

	if err := os.WriteFile(s.LocalPath(), []byte("v2"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	eventually(t, "live sync", func() bool {
		content, _ := f.remote.get("/etc/app.conf")
		return content == "v2"
	})

	if err := os.WriteFile(s.LocalPath(), []byte("v3"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	f.launcher.last().quit()

	if err := waitClosed(t, s); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if content, _ := f.remote.get("/etc/app.conf"); content != "v3" {
		t.Fatalf("remote content = %q, want v3", content)
	}

	if s.State() != Closed {
		t.Fatalf("State() = %v, want closed", s.State())
	}

	if n := f.tempEntries(t); n != 0 {
		t.Fatalf("temp dir has %d entries after close", n)
	}

	if len(f.handler.Active()) != 0 {
		t.Fatal("closed session still active")
	}

	if f.events.count(EventClosed) != 1 {
		t.Fatalf("closed events = %d, want 1", f.events.count(EventClosed))
	}
}

func TestUnchangedFileIsNotPushed(t *testing.T) {
	f := newFixture(t, nil)

	s, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	f.launcher.last().quit()

	if err := waitClosed(t, s); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if _, pushes := f.remote.get("/etc/app.conf"); pushes != 0 {
		t.Fatalf("pushes = %d, want 0", pushes)
	}
}

func TestStopPerformsFinalSync(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.FinalSyncOnly = alwaysFinalSync })

	s, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := os.WriteFile(s.LocalPath(), []byte("edited"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s.Stop()

	if err := waitClosed(t, s); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if content, pushes := f.remote.get("/etc/app.conf"); content != "edited" || pushes != 1 {
		t.Fatalf("remote = %q after %d pushes, want edited after 1", content, pushes)
	}

	if n := f.tempEntries(t); n != 0 {
		t.Fatalf("temp dir has %d entries after stop", n)
	}
}

func TestAbandonSkipsFinalSync(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.FinalSyncOnly = alwaysFinalSync })

	s, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := os.WriteFile(s.LocalPath(), []byte("discard me"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s.Abandon()

	if err := waitClosed(t, s); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if content, pushes := f.remote.get("/etc/app.conf"); content != "v1" || pushes != 0 {
		t.Fatalf("remote = %q after %d pushes, want untouched", content, pushes)
	}

	if n := f.tempEntries(t); n != 0 {
		t.Fatalf("temp dir has %d entries after abandon", n)
	}
}

func TestFetchFailureCleansUp(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.failGet = errors.New("permission denied")

	_, err := f.handler.Open(context.Background(), f.target())
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("Open() error = %v, want ErrFetchFailed", err)
	}

	if n := f.tempEntries(t); n != 0 {
		t.Fatalf("temp dir has %d entries after fetch failure", n)
	}

	if len(f.launcher.argv) != 0 {
		t.Fatal("editor launched after fetch failure")
	}

	if _, err := f.handler.Open(context.Background(), f.target()); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("retry Open() error = %v, want ErrFetchFailed (not ErrAlreadyEditing)", err)
	}
}

func TestLaunchFailureCleansUp(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{name: "no command", mutate: func(o *Options) { o.Command = nil }},
		{name: "command error", mutate: func(o *Options) {
			o.Command = func() ([]string, error) { return nil, errors.New("no editor") }
		}},
		{name: "empty command", mutate: func(o *Options) {
			o.Command = func() ([]string, error) { return []string{}, nil }
		}},
		{name: "launcher error", mutate: func(o *Options) {
			o.Launcher = &fakeLauncher{err: errors.New("exec: not found")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.mutate)

			_, err := f.handler.Open(context.Background(), f.target())
			if !errors.Is(err, ErrEditorLaunchFailed) {
				t.Fatalf("Open() error = %v, want ErrEditorLaunchFailed", err)
			}

			if n := f.tempEntries(t); n != 0 {
				t.Fatalf("temp dir has %d entries after launch failure", n)
			}

			if len(f.handler.Active()) != 0 {
				t.Fatal("failed session left active")
			}
		})
	}
}

func TestSameTargetRejectedWhileActive(t *testing.T) {
	f := newFixture(t, nil)

	s, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := f.handler.Open(context.Background(), f.target()); !errors.Is(err, ErrAlreadyEditing) {
		t.Fatalf("second Open() error = %v, want ErrAlreadyEditing", err)
	}

	s.Stop()

	if err := waitClosed(t, s); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	again, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() after close error = %v", err)
	}

	again.Abandon()
	_ = waitClosed(t, again)
}

func TestSyncFailureKeepsSessionRunning(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.setFailPush(errors.New("connection reset"))

	s, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := os.WriteFile(s.LocalPath(), []byte("v2"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	eventually(t, "sync failure event", func() bool { return f.events.count(EventSyncFailed) > 0 })

	if s.State() != EditorRunning {
		t.Fatalf("State() = %v, want editor-running after failed sync", s.State())
	}

	f.remote.setFailPush(nil)

	eventually(t, "retried sync", func() bool {
		content, _ := f.remote.get("/etc/app.conf")
		return content == "v2"
	})

	s.Stop()

	if err := waitClosed(t, s); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestFinalSyncOnlyIsReadPerSession(t *testing.T) {
	var finalOnly atomic.Bool

	f := newFixture(t, func(o *Options) { o.FinalSyncOnly = finalOnly.Load })

	live, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := os.WriteFile(live.LocalPath(), []byte("v2"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	eventually(t, "live sync", func() bool {
		content, _ := f.remote.get("/etc/app.conf")
		return content == "v2"
	})

	f.launcher.last().quit()

	if err := waitClosed(t, live); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	finalOnly.Store(true)

	_, before := f.remote.get("/etc/app.conf")

	deferred, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := os.WriteFile(deferred.LocalPath(), []byte("v3"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, pushes := f.remote.get("/etc/app.conf"); pushes != before {
		t.Fatalf("pushes while running = %d, want %d", pushes, before)
	}

	f.launcher.last().quit()

	if err := waitClosed(t, deferred); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if content, pushes := f.remote.get("/etc/app.conf"); content != "v3" || pushes != before+1 {
		t.Fatalf("remote = %q after %d pushes, want v3 after %d", content, pushes, before+1)
	}
}

func TestFinalSyncFailureIsReported(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.FinalSyncOnly = alwaysFinalSync })

	s, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := os.WriteFile(s.LocalPath(), []byte("v2"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	f.remote.setFailPush(errors.New("disk full"))
	s.Stop()

	if err := waitClosed(t, s); !errors.Is(err, ErrSyncBackFailed) {
		t.Fatalf("Wait() error = %v, want ErrSyncBackFailed", err)
	}

	if n := f.tempEntries(t); n != 0 {
		t.Fatalf("temp dir has %d entries", n)
	}
}

func TestStopHostAndShutdown(t *testing.T) {
	f := newFixture(t, nil)

	other := Target{HostKey: "bob@web:22", Path: "/etc/app.conf", Remote: f.remote}

	first, err := f.handler.Open(context.Background(), f.target())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	second, err := f.handler.Open(context.Background(), other)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if got := len(f.handler.Active()); got != 2 {
		t.Fatalf("Active() = %d sessions, want 2", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := f.handler.StopHost(ctx, "alice@db:22"); err != nil {
		t.Fatalf("StopHost() error = %v", err)
	}

	if first.State() != Closed || second.State() == Closed {
		t.Fatalf("states = %v, %v; want only the first closed", first.State(), second.State())
	}

	if err := f.handler.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if second.State() != Closed {
		t.Fatalf("State() = %v after shutdown", second.State())
	}

	if _, err := f.handler.Open(context.Background(), f.target()); !errors.Is(err, ErrEditorLaunchFailed) {
		t.Fatalf("Open() after shutdown error = %v", err)
	}
}

func TestLocalName(t *testing.T) {
	tests := map[string]string{
		"/etc/hosts":      "hosts",
		"relative/a.yaml": "a.yaml",
		"/":               "file",
		"":                "file",
	}

	for in, want := range tests {
		if got := localName(in); got != want {
			t.Errorf("localName(%q) = %q, want %q", in, got, want)
		}
	}
}
