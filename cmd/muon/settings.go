package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"al.essio.dev/pkg/shellescape"
	"github.com/spf13/cobra"

	"github.com/muon-ssh/muon/internal/buildinfo"
	clierrors "github.com/muon-ssh/muon/internal/errors"
	"github.com/muon-ssh/muon/internal/output"
	"github.com/muon-ssh/muon/internal/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage user preferences",
		Long:  `View and modify the preferences stored in settings.json.`,
	}

	cmd.AddCommand(newSettingsListCmd())
	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsResetCmd())

	return cmd
}

func formatSetting(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return ""
	case []any, map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

func newSettingsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all settings",
		Long:  `Display every setting and its current value, with defaults for settings that were never changed.`,
		Example: `  muon settings list
  muon settings list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			s, err := openSettings(cmd)
			if err != nil {
				return err
			}

			current := s.Get()

			if out.JSON {
				return out.PrintJSON(current)
			}

			for _, key := range settings.Keys() {
				v, err := current.Value(key)
				if err != nil {
					return err
				}

				out.Print("%s = %s\n", key, formatSetting(v))
			}

			return nil
		},
	}
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a setting",
		Long:  `Display the current value of one setting. Keys are the JSON field names shown by 'muon settings list'.`,
		Example: `  muon settings get terminalFontSize
  muon settings get defaultEditor`,
		Args: exactArgs(1, "a setting key"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := args[0]

			s, err := openSettings(cmd)
			if err != nil {
				return err
			}

			current := s.Get()

			v, err := current.Value(key)
			if errors.Is(err, settings.ErrUnknownKey) {
				return clierrors.UnknownSettingKey(key, settings.Keys())
			}

			if err != nil {
				return err
			}

			if out.JSON {
				return out.PrintJSON(map[string]any{key: v})
			}

			out.Print("%s\n", formatSetting(v))

			if key == "defaultEditor" {
				if argv, err := current.EditorCommand(); err == nil {
					out.Muted("runs: %s <file>", shellescape.QuoteCommand(argv))
				}
			}

			return nil
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Long: `Set a setting to the given value and save settings.json. Booleans take
true or false, numbers take integers, and editors takes a JSON array.`,
		Example: `  muon settings set terminalFontSize 16
  muon settings set defaultEditor "code --wait"
  muon settings set editors '[{"name":"vim","path":"vim"}]'`,
		Args: exactArgs(2, "a setting key and a value"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key, raw := args[0], args[1]

			s, err := openSettings(cmd)
			if err != nil {
				return err
			}

			var setErr error

			s.Update(func(v *settings.Settings) {
				setErr = v.Set(key, raw)
			})

			if errors.Is(setErr, settings.ErrUnknownKey) {
				return clierrors.UnknownSettingKey(key, settings.Keys())
			}

			if setErr != nil {
				return clierrors.InvalidSettingValue(key, setErr)
			}

			if err := s.Persist(buildinfo.Version); err != nil {
				return clierrors.ConfigFailed("save settings", err)
			}

			out.Success("Set %s = %s", key, raw)

			return nil
		},
	}
}

func newSettingsResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore default settings",
		Long:  `Replace every setting with its built-in default and save settings.json.`,
		Example: `  muon settings reset
  muon settings reset --force`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			ok, err := confirmDelete(cmd, "Reset all settings to defaults?", force)
			if err != nil {
				return err
			}

			if !ok {
				out.Muted("Canceled")
				return nil
			}

			s, err := openSettings(cmd)
			if err != nil {
				return err
			}

			s.Replace(settings.Defaults())

			if err := s.Persist(buildinfo.Version); err != nil {
				return clierrors.ConfigFailed("save settings", err)
			}

			out.Success("Settings reset to defaults")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")

	return cmd
}
