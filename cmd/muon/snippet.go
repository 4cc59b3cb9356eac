package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	clierrors "github.com/muon-ssh/muon/internal/errors"
	"github.com/muon-ssh/muon/internal/output"
	"github.com/muon-ssh/muon/internal/prompt"
	"github.com/muon-ssh/muon/internal/snippet"
)

var snippetFormats = []string{"json", "yaml", "toml"}

func newSnippetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippet",
		Short: "Manage saved command snippets",
		Long:  `Save, list and share reusable shell commands.`,
	}

	cmd.AddCommand(newSnippetListCmd())
	cmd.AddCommand(newSnippetAddCmd())
	cmd.AddCommand(newSnippetRemoveCmd())
	cmd.AddCommand(newSnippetExportCmd())
	cmd.AddCommand(newSnippetImportCmd())

	return cmd
}

func newSnippetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved snippets",
		Long:  `Display every saved snippet in library order.`,
		Example: `  muon snippet list
  muon snippet list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			m, err := openSnippets(cmd)
			if err != nil {
				return err
			}

			items := m.List()

			if out.JSON {
				return out.PrintJSON(items)
			}

			if len(items) == 0 {
				out.Muted("No snippets saved")
				return nil
			}

			rows := [][]string{{"NAME", "COMMAND"}}
			for _, s := range items {
				rows = append(rows, []string{s.Name, s.Command})
			}

			out.Table(rows)

			return nil
		},
	}
}

func newSnippetAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> [command]",
		Short: "Save a snippet",
		Long: `Save a command under a name. Saving an existing name replaces its command
and keeps its place in the list. Without a command you are prompted for one.`,
		Example: `  muon snippet add disk "df -h"
  muon snippet add tail-syslog`,
		Args: rangeArgs(1, 2, "a name and an optional command"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			name := args[0]

			var body string
			if len(args) == 2 {
				body = args[1]
			} else {
				p := prompt.New(out)
				if !p.CanPrompt() {
					return clierrors.CannotPrompt("the snippet command")
				}

				line, err := p.Line("Command")
				if err != nil {
					return err
				}

				body = line
			}

			m, err := openSnippets(cmd)
			if err != nil {
				return err
			}

			if _, err := m.Add(name, body); err != nil {
				return err
			}

			if err := m.Persist(); err != nil {
				return clierrors.ConfigFailed("save snippets", err)
			}

			out.Success("Saved snippet %s", name)

			return nil
		},
	}
}

func newSnippetRemoveCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Short:   "Delete a snippet",
		Long:    `Delete a saved snippet by name.`,
		Example: `  muon snippet remove disk --force`,
		Args:    exactArgs(1, "a snippet name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			name := args[0]

			m, err := openSnippets(cmd)
			if err != nil {
				return err
			}

			if _, err := m.Get(name); errors.Is(err, snippet.ErrNotFound) {
				return clierrors.SnippetNotFound(name)
			}

			ok, err := confirmDelete(cmd, fmt.Sprintf("Delete snippet %s?", name), force)
			if err != nil {
				return err
			}

			if !ok {
				out.Muted("Canceled")
				return nil
			}

			if err := m.Remove(name); err != nil {
				if errors.Is(err, snippet.ErrNotFound) {
					return clierrors.SnippetNotFound(name)
				}

				return err
			}

			if err := m.Persist(); err != nil {
				return clierrors.ConfigFailed("save snippets", err)
			}

			out.Success("Deleted snippet %s", name)

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")

	return cmd
}

func parseFormatFlag(name string) (snippet.Format, error) {
	format, err := snippet.ParseFormat(name)
	if err != nil {
		return "", clierrors.UnknownFormat(name, snippetFormats)
	}

	return format, nil
}

func newSnippetExportCmd() *cobra.Command {
	var (
		formatName string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export snippets",
		Long:  `Write the snippet library as JSON, YAML or TOML to stdout or a file.`,
		Example: `  muon snippet export > snippets.json
  muon snippet export --format yaml --output snippets.yaml`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if formatName == "" && outputPath != "" {
				formatName = string(snippet.FormatFromPath(outputPath))
			}

			format, err := parseFormatFlag(formatName)
			if err != nil {
				return err
			}

			m, err := openSnippets(cmd)
			if err != nil {
				return err
			}

			if outputPath == "" {
				return m.Export(out.Out, format)
			}

			f, err := os.Create(outputPath)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, fmt.Sprintf("Cannot create %s", outputPath), err)
			}

			if err := m.Export(f, format); err != nil {
				_ = f.Close()
				return err
			}

			if err := f.Close(); err != nil {
				return err
			}

			out.Success("Exported %d snippets to %s", len(m.List()), outputPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "", "Output format: json, yaml, toml")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}

func newSnippetImportCmd() *cobra.Command {
	var formatName string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import snippets",
		Long: `Read snippets from a JSON, YAML or TOML file and save them. Imported names
replace existing snippets of the same name. Use - to read stdin.`,
		Example: `  muon snippet import team-snippets.yaml
  muon snippet import - --format toml < snippets.toml`,
		Args: exactArgs(1, "a file"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			path := args[0]

			if formatName == "" && path != "-" {
				formatName = string(snippet.FormatFromPath(path))
			}

			format, err := parseFormatFlag(formatName)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()

			if path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return clierrors.Wrap(clierrors.ExitGeneral, fmt.Sprintf("Cannot open %s", path), err)
				}
				defer f.Close()

				r = f
			}

			m, err := openSnippets(cmd)
			if err != nil {
				return err
			}

			n, err := m.Import(r, format)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, fmt.Sprintf("Cannot import %s", path), err).
					WithHint(fmt.Sprintf("Check that the file is valid %s", format))
			}

			if err := m.Persist(); err != nil {
				return clierrors.ConfigFailed("save snippets", err)
			}

			out.Success("Imported %d %s", n, plural(n, "snippet", "snippets"))

			return nil
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "", "Input format: json, yaml, toml (default from file extension)")

	return cmd
}
