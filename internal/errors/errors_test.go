package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/muon-ssh/muon/internal/testutil"
)

func TestEditorLaunchFailedHints(t *testing.T) {
	tests := []struct {
		name     string
		cause    error
		wantHint string
	}{
		{name: "nil cause", cause: nil, wantHint: "Check the defaultEditor setting"},
		{name: "not found", cause: errors.New(`exec: "subl": executable file not found in $PATH`), wantHint: "was not found"},
		{name: "other", cause: errors.New("permission denied"), wantHint: "Check the defaultEditor setting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EditorLaunchFailed(tt.cause)

			if !strings.Contains(err.Hint, tt.wantHint) {
				t.Errorf("hint = %q, want to contain %q", err.Hint, tt.wantHint)
			}

			if err.Code != ExitExecution {
				t.Errorf("code = %d, want %d", err.Code, ExitExecution)
			}
		})
	}
}

func TestContainsAny(t *testing.T) {
	tests := []struct {
		s    string
		subs []string
		want bool
	}{
		{"Executable File Not Found", []string{"not found"}, true},
		{"permission denied", []string{"not found", "executable"}, false},
		{"", []string{"x"}, false},
	}

	for _, tt := range tests {
		if got := containsAny(tt.s, tt.subs...); got != tt.want {
			t.Errorf("containsAny(%q, %v) = %v, want %v", tt.s, tt.subs, got, tt.want)
		}
	}
}

// TestAllErrorsHaveHints verifies that all error constructors provide actionable hints.
func TestAllErrorsHaveHints(t *testing.T) {
	for _, tt := range constructors() {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Hint == "" {
				t.Errorf("%s() should have a hint, got empty string", tt.name)
			}

			if tt.err.Message == "" {
				t.Errorf("%s() should have a message, got empty string", tt.name)
			}
		})
	}
}

func TestCLIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *CLIError
		want string
	}{
		{
			name: "message only",
			err:  &CLIError{Message: "test error"},
			want: "test error",
		},
		{
			name: "message with cause",
			err:  &CLIError{Message: "test error", Cause: New(1, "underlying")},
			want: "test error: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCLIError_UnwrapMatchesSentinels(t *testing.T) {
	sentinel := errors.New("store: corrupt document")
	err := ConfigFailed("load settings", fmt.Errorf("read: %w", sentinel))

	if !errors.Is(err, sentinel) {
		t.Fatal("errors.Is() through CLIError = false, want true")
	}

	var target *CLIError
	if !As(fmt.Errorf("outer: %w", err), &target) {
		t.Fatal("As() = false, want true")
	}

	if target.Code != ExitConfig {
		t.Fatalf("As() code = %d, want %d", target.Code, ExitConfig)
	}
}

func TestWithHint(t *testing.T) {
	err := New(1, "test").WithHint("do this")

	if err.Hint != "do this" {
		t.Errorf("WithHint() hint = %q, want %q", err.Hint, "do this")
	}
}

func TestWrap(t *testing.T) {
	cause := New(1, "cause")
	err := Wrap(ExitNetwork, "wrapped", cause)

	if err.Code != ExitNetwork {
		t.Errorf("Wrap() code = %d, want %d", err.Code, ExitNetwork)
	}

	if err.Cause != cause { //nolint:errorlint // testing struct field identity
		t.Errorf("Wrap() cause = %v, want %v", err.Cause, cause)
	}
}

type namedError struct {
	name string
	err  *CLIError
}

func constructors() []namedError {
	return []namedError{
		{"CannotPrompt", CannotPrompt("the snippet body")},
		{"ConfigFailed", ConfigFailed("save settings", nil)},
		{"DirectoryCreateFailed", DirectoryCreateFailed(nil)},
		{"UnknownSettingKey", UnknownSettingKey("fontSize", []string{"terminalFontSize", "useGlobalDarkTheme"})},
		{"InvalidSettingValue", InvalidSettingValue("terminalFontSize", nil)},
		{"SessionNotFound", SessionNotFound(42)},
		{"InputBlocked", InputBlocked("connect (session 3)")},
		{"EditorNotConfigured", EditorNotConfigured()},
		{"EditorLaunchFailed", EditorLaunchFailed(nil)},
		{"FetchFailed", FetchFailed("/etc/hosts", nil)},
		{"SyncBackFailed", SyncBackFailed("/etc/hosts", nil)},
		{"AlreadyEditing", AlreadyEditing("/etc/hosts")},
		{"SnippetNotFound", SnippetNotFound("disk")},
		{"UnknownFormat", UnknownFormat("xml", []string{"json", "yaml", "toml"})},
		{"PathTraversalBlocked", PathTraversalBlocked("../../etc/passwd")},
	}
}

// formatCLIError produces a deterministic string representation of a CLIError for golden file comparison.
func formatCLIError(err *CLIError) string {
	return fmt.Sprintf("Message: %s\nHint: %s\nCode: %d\n", err.Message, err.Hint, err.Code)
}

func TestErrorMessages_Golden(t *testing.T) {
	var sb strings.Builder
	for _, tt := range constructors() {
		fmt.Fprintf(&sb, "--- %s ---\n", tt.name)
		sb.WriteString(formatCLIError(tt.err))
		sb.WriteString("\n")
	}

	testutil.AssertGolden(t, sb.String(), "error_messages.golden")
}
