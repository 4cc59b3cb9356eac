package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muon-ssh/muon/internal/app"
	"github.com/muon-ssh/muon/internal/config"
	"github.com/muon-ssh/muon/internal/editor"
	clierrors "github.com/muon-ssh/muon/internal/errors"
	"github.com/muon-ssh/muon/internal/output"
	"github.com/muon-ssh/muon/internal/transport"
	"github.com/muon-ssh/muon/internal/ui"
)

const shutdownTimeout = 10 * time.Second

func newUICmd() *cobra.Command {
	var localDirs []string

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the main window",
		Long: `Open the main window. Sessions are listed with their pinned logs; selected
files can be opened in your external editor and are saved back as you edit.`,
		Example: `  muon ui
  muon ui --local ~/projects --local /var/log`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, localDirs)
		},
	}

	cmd.Flags().StringArrayVar(&localDirs, "local", nil, "Open a local session serving this directory (repeatable)")

	return cmd
}

func shutdownApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Shutdown(ctx); err != nil {
		a.Logger().Warn("shutdown incomplete", slog.String("error", err.Error()))
	}
}

func runUI(cmd *cobra.Command, localDirs []string) error {
	out := output.FromContext(cmd.Context())

	if !out.Terminal().InteractiveEnabled() || out.NoInput {
		return clierrors.New(clierrors.ExitUsage, "The muon window needs an interactive terminal").
			WithHint("Use 'muon settings', 'muon pin' or 'muon snippet' from scripts")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// The window owns the terminal, so editors run detached from it.
	a, err := app.Bootstrap(ctx, app.Options{
		Logger:   commandLogger(cmd),
		Config:   cfg,
		Launcher: editor.ExecLauncher{},
	})
	if err != nil {
		return err
	}
	defer shutdownApp(a)

	for _, warning := range a.Warnings() {
		warnOnce(out, warning)
	}

	for _, dir := range localDirs {
		if _, err := a.OpenSession(ctx, transport.LocalName, transport.Target{Root: dir}); err != nil {
			return clierrors.Wrap(clierrors.ExitGeneral, "Cannot open local session for "+dir, err)
		}
	}

	var w *ui.Window

	w = ui.New(ui.Options{
		Theme:    a.Theme(),
		Sessions: a.Sessions().Snapshot,
		Pinned:   a.Pinned().Get,
		CloseSession: func(id int) error {
			defer w.Refresh()
			return a.CloseSession(ctx, id)
		},
		Edit: func(id int, path string) error {
			_, err := a.EditRemote(ctx, id, path)
			return toCLIError(err)
		},
		ConfirmClose: a.Settings().Get().ConfirmBeforeTerminalClosing,
		AltScreen:    cfg.AltScreen(),
		Logger:       commandLogger(cmd),
	})

	if err := a.AttachWindow(w); err != nil {
		return err
	}

	return a.Run(ctx)
}
