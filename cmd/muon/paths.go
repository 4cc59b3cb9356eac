package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muon-ssh/muon/internal/output"
	"github.com/muon-ssh/muon/internal/paths"
)

// PathsInfo holds all resolved paths for JSON output.
type PathsInfo struct {
	ConfigRoot   string `json:"config_root"`
	Settings     string `json:"settings"`
	PinnedLogs   string `json:"pinned_logs"`
	Snippets     string `json:"snippets"`
	SessionStore string `json:"session_store"`
	ConfigFile   string `json:"config_file"`
	LogFile      string `json:"log_file"`
	EditorTemp   string `json:"editor_temp"`
}

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show where muon stores files",
		Long: `Display all file and directory paths used by muon.

Useful for debugging, scripting, and backing up the settings, pinned logs
and snippets kept in the configuration directory.`,
		Example: `  muon paths
  muon paths --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			info := resolvePathsInfo()

			if out.JSON {
				return out.PrintJSON(info)
			}

			out.Print("Config root:    %s\n", info.ConfigRoot)
			out.Print("\n")
			out.Print("Settings:       %s\n", info.Settings)
			out.Print("Pinned logs:    %s\n", info.PinnedLogs)
			out.Print("Snippets:       %s\n", info.Snippets)
			out.Print("Session store:  %s\n", info.SessionStore)
			out.Print("Config file:    %s\n", info.ConfigFile)
			out.Print("Log file:       %s\n", info.LogFile)
			out.Print("Editor temp:    %s\n", info.EditorTemp)

			return nil
		},
	}
}

func resolvePathsInfo() PathsInfo {
	return PathsInfo{
		ConfigRoot:   resolveOrError(paths.ConfigRoot),
		Settings:     resolveOrError(paths.SettingsFile),
		PinnedLogs:   resolveOrError(paths.PinnedLogsFile),
		Snippets:     resolveOrError(paths.SnippetsFile),
		SessionStore: resolveOrError(paths.SessionStoreFile),
		ConfigFile:   resolveOrError(paths.RuntimeConfigFile),
		LogFile:      resolveOrError(paths.DefaultLogFile),
		EditorTemp:   resolveOrError(paths.EditorTempDir),
	}
}

func resolveOrError(fn func() (string, error)) string {
	val, err := fn()
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}

	return val
}
