package main

import (
	"context"

	"github.com/muon-ssh/muon/internal/editor"
	"github.com/muon-ssh/muon/internal/output"
)

// consoleWindow stands in for the main window in commands that run in the
// plain terminal: blocking shows a spinner and editor events are printed.
type consoleWindow struct {
	*output.Overlay

	out *output.Writer
}

func newConsoleWindow(out *output.Writer) *consoleWindow {
	return &consoleWindow{Overlay: out.Overlay(), out: out}
}

func (w *consoleWindow) NotifyEditor(ev editor.Event) {
	switch ev.Kind {
	case editor.EventSynced:
		w.out.Success("Saved %s", ev.Path)
	case editor.EventSyncFailed:
		w.out.Warning("Could not save %s: %v", ev.Path, ev.Err)
	case editor.EventOpened, editor.EventClosed:
	}
}

func (w *consoleWindow) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
