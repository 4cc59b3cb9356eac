package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muon-ssh/muon/internal/app"
	"github.com/muon-ssh/muon/internal/editor"
	clierrors "github.com/muon-ssh/muon/internal/errors"
	"github.com/muon-ssh/muon/internal/output"
	"github.com/muon-ssh/muon/internal/transport"
)

func newEditCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "edit <path>",
		Short: "Edit a file in your external editor",
		Long: `Copy a file from a local session to a temporary location, open it in the
configured external editor and save changes back until the editor exits.
The path is resolved inside --root and cannot leave it.`,
		Example: `  muon edit /etc/hosts --root /
  muon edit notes.txt --root ~/projects`,
		Args: exactArgs(1, "a path"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			path := args[0]

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Bootstrap(ctx, app.Options{
				Logger:   commandLogger(cmd),
				Launcher: editor.ExecLauncher{Attach: true},
			})
			if err != nil {
				return err
			}
			defer shutdownApp(a)

			for _, warning := range a.Warnings() {
				warnOnce(out, warning)
			}

			if err := a.AttachWindow(newConsoleWindow(out)); err != nil {
				return err
			}

			s, err := a.OpenSession(ctx, transport.LocalName, transport.Target{Root: root})
			if err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, "Cannot open local session for "+root, err)
			}

			es, err := a.EditRemote(ctx, s.SessionID(), path)
			if err != nil {
				return editError(path, err)
			}

			out.Info("Editing %s", path)

			if err := es.Wait(ctx); err != nil {
				if errors.Is(err, ctx.Err()) {
					out.Muted("Interrupted; saving changes")
					return nil
				}

				return editError(path, err)
			}

			out.Success("Closed %s", path)

			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Directory served by the local session")

	return cmd
}

// editError adds the path to editor failures.
func editError(path string, err error) error {
	switch {
	case errors.Is(err, transport.ErrPathEscapes):
		return clierrors.PathTraversalBlocked(path)
	case errors.Is(err, editor.ErrAlreadyEditing):
		return clierrors.AlreadyEditing(path)
	case errors.Is(err, editor.ErrSyncBackFailed):
		return clierrors.SyncBackFailed(path, err)
	case errors.Is(err, editor.ErrFetchFailed):
		return clierrors.FetchFailed(path, err)
	}

	return toCLIError(err)
}
