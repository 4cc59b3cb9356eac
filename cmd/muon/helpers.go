package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/muon-ssh/muon/internal/blocker"
	"github.com/muon-ssh/muon/internal/editor"
	clierrors "github.com/muon-ssh/muon/internal/errors"
	"github.com/muon-ssh/muon/internal/observability"
	"github.com/muon-ssh/muon/internal/output"
	"github.com/muon-ssh/muon/internal/paths"
	"github.com/muon-ssh/muon/internal/pinned"
	"github.com/muon-ssh/muon/internal/prompt"
	"github.com/muon-ssh/muon/internal/session"
	"github.com/muon-ssh/muon/internal/settings"
	"github.com/muon-ssh/muon/internal/snippet"
	"github.com/muon-ssh/muon/internal/store"
	"github.com/muon-ssh/muon/internal/transport"
)

// toCLIError translates domain errors into CLIErrors with hints. Errors that
// are already CLIErrors, or that no rule matches, are returned unchanged.
func toCLIError(err error) error {
	var cliErr *clierrors.CLIError
	if err == nil || clierrors.As(err, &cliErr) {
		return err
	}

	switch {
	case errors.Is(err, paths.ErrDirectoryCreate):
		return clierrors.DirectoryCreateFailed(err)
	case errors.Is(err, store.ErrWrite):
		return clierrors.ConfigFailed("save configuration", err)
	case errors.Is(err, settings.ErrNoEditor):
		return clierrors.EditorNotConfigured()
	case errors.Is(err, editor.ErrEditorLaunchFailed):
		return clierrors.EditorLaunchFailed(err)
	case errors.Is(err, transport.ErrPathEscapes):
		return clierrors.Wrap(clierrors.ExitGeneral, "Path traversal blocked", err).
			WithHint("Paths must stay inside the --root directory")
	case errors.Is(err, editor.ErrFetchFailed):
		return clierrors.Wrap(clierrors.ExitExecution, "Failed to fetch the remote file", err).
			WithHint("Check that the file exists and is readable")
	case errors.Is(err, editor.ErrSyncBackFailed):
		return clierrors.Wrap(clierrors.ExitExecution, "Failed to save changes", err).
			WithHint("Your edits were not written back; check that the file is writable")
	case errors.Is(err, editor.ErrAlreadyEditing):
		return clierrors.Wrap(clierrors.ExitGeneral, "File is already open in an editor", err).
			WithHint("Close the other editor window first")
	case errors.Is(err, blocker.ErrAlreadyBlocked):
		return clierrors.InputBlocked("another operation")
	case errors.Is(err, session.ErrNotFound):
		return clierrors.Wrap(clierrors.ExitGeneral, "Session not found", err).
			WithHint("The session may have been closed")
	case errors.Is(err, snippet.ErrInvalid):
		return clierrors.Wrap(clierrors.ExitUsage, "Invalid snippet", err).
			WithHint("Snippets need a name and a command")
	}

	return err
}

// warnOnce reports a document load problem. The document is usable either
// way, holding defaults after a failed load.
func warnOnce(out *output.Writer, warning error) {
	if warning == nil {
		return
	}

	if errors.Is(warning, store.ErrCorrupt) {
		out.Warning("%v; using defaults until the file is fixed or rewritten", warning)
		return
	}

	out.Warning("%v", warning)
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	return observability.FromContext(cmd.Context())
}

func openSettings(cmd *cobra.Command) (*settings.Store, error) {
	if _, err := paths.EnsureConfigRoot(); err != nil {
		return nil, err
	}

	path, err := paths.SettingsFile()
	if err != nil {
		return nil, err
	}

	s, warning := settings.Open(path, commandLogger(cmd))
	warnOnce(output.FromContext(cmd.Context()), warning)

	return s, nil
}

func openPinned(cmd *cobra.Command) (*pinned.Store, error) {
	if _, err := paths.EnsureConfigRoot(); err != nil {
		return nil, err
	}

	path, err := paths.PinnedLogsFile()
	if err != nil {
		return nil, err
	}

	s, warning := pinned.Open(path, commandLogger(cmd))
	warnOnce(output.FromContext(cmd.Context()), warning)

	return s, nil
}

func openSnippets(cmd *cobra.Command) (*snippet.Manager, error) {
	if _, err := paths.EnsureConfigRoot(); err != nil {
		return nil, err
	}

	path, err := paths.SnippetsFile()
	if err != nil {
		return nil, err
	}

	m, warning := snippet.Open(path, commandLogger(cmd))
	warnOnce(output.FromContext(cmd.Context()), warning)

	return m, nil
}

// confirmDelete asks before a destructive change when the settings ask for
// it. force skips the question; non-interactive runs require force.
func confirmDelete(cmd *cobra.Command, message string, force bool) (bool, error) {
	if force {
		return true, nil
	}

	s, err := openSettings(cmd)
	if err != nil {
		return false, err
	}

	if !s.Get().ConfirmBeforeDelete {
		return true, nil
	}

	out := output.FromContext(cmd.Context())
	p := prompt.New(out)

	if !p.CanPrompt() {
		return false, clierrors.CannotPrompt("--force")
	}

	ok, err := p.Confirm(message, false)
	if prompt.IsCanceled(err) {
		return false, nil
	}

	return ok, err
}
