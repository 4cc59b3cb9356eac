package main

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// lintCommands runs check over every command under a fresh muon root and
// reports what it returns as one error with a fix hint.
func lintCommands(t *testing.T, what, hint string, check func(cmd *cobra.Command) []string) {
	t.Helper()

	var found []string

	for _, cmd := range collectAllCommands(newRootCmd()) {
		found = append(found, check(cmd)...)
	}

	if len(found) == 0 {
		return
	}

	msg := fmt.Sprintf("%s:\n  %s", what, strings.Join(found, "\n  "))
	if hint != "" {
		msg += "\n\n" + hint
	}

	t.Error(msg)
}

func runnableOnly(check func(cmd *cobra.Command) []string) func(cmd *cobra.Command) []string {
	return func(cmd *cobra.Command) []string {
		if !cmd.Runnable() {
			return nil
		}

		return check(cmd)
	}
}

func TestEveryMuonCommandHasExample(t *testing.T) {
	lintCommands(t, "muon commands without an Example",
		"Show at least one invocation, e.g. `  muon pin list admin@web1:22`.",
		runnableOnly(func(cmd *cobra.Command) []string {
			if strings.TrimSpace(cmd.Example) == "" {
				return []string{cmd.CommandPath()}
			}

			return nil
		}))
}

func TestEveryMuonCommandHasLong(t *testing.T) {
	lintCommands(t, "muon commands without a Long description",
		"Say what the command touches: a session, the settings file, pins or snippets.",
		runnableOnly(func(cmd *cobra.Command) []string {
			if strings.TrimSpace(cmd.Long) == "" {
				return []string{cmd.CommandPath()}
			}

			return nil
		}))
}

// Examples in Long are not rendered by the help template's Examples block.
func TestLongHasNoInlineExamples(t *testing.T) {
	lintCommands(t, "Long descriptions carrying examples", "Move them into Example.",
		func(cmd *cobra.Command) []string {
			if strings.Contains(cmd.Long, "Example:") || strings.Contains(cmd.Long, "```") {
				return []string{cmd.CommandPath()}
			}

			return nil
		})
}

func TestShortHelpLines(t *testing.T) {
	const maxLen = 60

	lintCommands(t, "Short lines breaking help layout",
		fmt.Sprintf("Short is one capitalized phrase of at most %d characters with no trailing period.", maxLen),
		func(cmd *cobra.Command) []string {
			short := cmd.Short
			if short == "" {
				return nil
			}

			var bad []string

			if len(short) > maxLen {
				bad = append(bad, fmt.Sprintf("%s: %d chars: %q", cmd.CommandPath(), len(short), short))
			}

			if r := []rune(short); !unicode.IsUpper(r[0]) {
				bad = append(bad, fmt.Sprintf("%s: lowercase start: %q", cmd.CommandPath(), short))
			}

			if strings.HasSuffix(short, ".") {
				bad = append(bad, fmt.Sprintf("%s: trailing period: %q", cmd.CommandPath(), short))
			}

			return bad
		})
}

// clear and reset wipe a whole store, so they confirm unless forced.
func TestBulkDeletesConfirm(t *testing.T) {
	bulk := map[string]bool{"clear": true, "reset": true}

	lintCommands(t, "bulk-delete commands without --force/-f",
		"Register the flag with BoolVarP(&force, \"force\", \"f\", ...) and pass it to confirmDelete.",
		func(cmd *cobra.Command) []string {
			f := cmd.Flags().Lookup("force")

			switch {
			case f != nil && f.Shorthand != "f":
				return []string{cmd.CommandPath() + ": --force without -f"}
			case f == nil && bulk[cmd.Name()]:
				return []string{cmd.CommandPath()}
			}

			return nil
		})
}

// Scripts drive muon through --json; every read command must either emit it
// or be listed here as a known gap.
func TestReadCommandsEmitJSON(t *testing.T) {
	withJSON := map[string]bool{
		"muon settings list": true,
		"muon settings get":  true,
		"muon pin list":      true,
		"muon snippet list":  true,
		"muon version":       true,
	}

	withoutJSON := map[string]bool{}

	readVerbs := map[string]bool{"list": true, "get": true, "info": true, "status": true, "view": true}

	lintCommands(t, "read commands with no --json decision",
		"Add each one to withJSON or withoutJSON in this test.",
		runnableOnly(func(cmd *cobra.Command) []string {
			path := cmd.CommandPath()
			if !readVerbs[cmd.Name()] || withJSON[path] || withoutJSON[path] {
				return nil
			}

			return []string{path}
		}))
}

func TestFlagSpelling(t *testing.T) {
	kebab := regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

	lintCommands(t, "flag spelling problems",
		"Flags are --kebab-case and each shorthand belongs to one flag per command.",
		func(cmd *cobra.Command) []string {
			var bad []string

			owner := map[string]string{}

			cmd.Flags().VisitAll(func(f *pflag.Flag) {
				if !kebab.MatchString(f.Name) {
					bad = append(bad, fmt.Sprintf("%s: --%s", cmd.CommandPath(), f.Name))
				}

				if f.Shorthand == "" {
					return
				}

				if prev, ok := owner[f.Shorthand]; ok {
					bad = append(bad, fmt.Sprintf("%s: -%s shared by --%s and --%s",
						cmd.CommandPath(), f.Shorthand, prev, f.Name))
				}

				owner[f.Shorthand] = f.Name
			})

			return bad
		})
}
