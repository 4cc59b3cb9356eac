package main

import (
	"fmt"

	"github.com/spf13/cobra"

	clierrors "github.com/muon-ssh/muon/internal/errors"
	"github.com/muon-ssh/muon/internal/output"
)

func newPinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage pinned log files",
		Long: `Bookmark log files per host. Hosts are given as user@host:port, the key
sessions use to find their pinned logs.`,
	}

	cmd.AddCommand(newPinListCmd())
	cmd.AddCommand(newPinAddCmd())
	cmd.AddCommand(newPinRemoveCmd())
	cmd.AddCommand(newPinClearCmd())

	return cmd
}

func newPinListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [host]",
		Short: "List pinned log files",
		Long:  `Display the pinned log files of every host, or of one host in pinned order.`,
		Example: `  muon pin list
  muon pin list admin@web1:22 --json`,
		Args: rangeArgs(0, 1, "at most one host"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			s, err := openPinned(cmd)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				files := s.Get(args[0])

				if out.JSON {
					return out.PrintJSON(files)
				}

				if len(files) == 0 {
					out.Muted("No pinned logs for %s", args[0])
					return nil
				}

				for _, f := range files {
					out.Print("%s\n", f)
				}

				return nil
			}

			if out.JSON {
				return out.PrintJSON(s.All())
			}

			hosts := s.Hosts()
			if len(hosts) == 0 {
				out.Muted("No pinned logs")
				return nil
			}

			rows := [][]string{{"HOST", "PATH"}}
			for _, host := range hosts {
				for _, f := range s.Get(host) {
					rows = append(rows, []string{host, f})
				}
			}

			out.Table(rows)

			return nil
		},
	}
}

func newPinAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <host> <path>...",
		Short: "Pin log files for a host",
		Long:  `Append one or more log file paths to a host's pinned list. Duplicates are kept.`,
		Example: `  muon pin add admin@web1:22 /var/log/syslog
  muon pin add admin@web1:22 /var/log/nginx/access.log /var/log/nginx/error.log`,
		Args: minimumArgs(2, "a host and at least one path"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			host, files := args[0], args[1:]

			s, err := openPinned(cmd)
			if err != nil {
				return err
			}

			for _, f := range files {
				s.Add(host, f)
			}

			if err := s.PersistAll(); err != nil {
				return clierrors.ConfigFailed("save pinned logs", err)
			}

			out.Success("Pinned %d %s for %s", len(files), plural(len(files), "file", "files"), host)

			return nil
		},
	}
}

func newPinRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <host> <path>",
		Short:   "Unpin a log file",
		Long:    `Remove the first occurrence of a path from a host's pinned list.`,
		Example: `  muon pin remove admin@web1:22 /var/log/syslog`,
		Args:    exactArgs(2, "a host and a path"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			host, file := args[0], args[1]

			s, err := openPinned(cmd)
			if err != nil {
				return err
			}

			if !s.Remove(host, file) {
				return clierrors.New(clierrors.ExitGeneral, fmt.Sprintf("%s is not pinned for %s", file, host)).
					WithHint("Run 'muon pin list " + host + "' to see pinned files")
			}

			if err := s.PersistAll(); err != nil {
				return clierrors.ConfigFailed("save pinned logs", err)
			}

			out.Success("Unpinned %s", file)

			return nil
		},
	}
}

func newPinClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "clear <host>",
		Short:   "Unpin every log file of a host",
		Long:    `Remove a host and all of its pinned log files.`,
		Example: `  muon pin clear admin@web1:22 --force`,
		Args:    exactArgs(1, "a host"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			host := args[0]

			s, err := openPinned(cmd)
			if err != nil {
				return err
			}

			count := len(s.Get(host))
			if count == 0 {
				out.Muted("No pinned logs for %s", host)
				return nil
			}

			ok, err := confirmDelete(cmd, fmt.Sprintf("Unpin %d %s for %s?", count, plural(count, "file", "files"), host), force)
			if err != nil {
				return err
			}

			if !ok {
				out.Muted("Canceled")
				return nil
			}

			s.AppendOrReplace(host, nil)

			if err := s.PersistAll(); err != nil {
				return clierrors.ConfigFailed("save pinned logs", err)
			}

			out.Success("Cleared pinned logs for %s", host)

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")

	return cmd
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
