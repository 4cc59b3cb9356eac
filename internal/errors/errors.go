// Package errors provides structured CLI error types for muon.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output across all commands.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for CLI errors.
const (
	ExitSuccess   = 0  // Successful execution
	ExitGeneral   = 1  // General error
	ExitAuth      = 2  // Authentication error
	ExitNetwork   = 3  // Network/transport error
	ExitConfig    = 4  // Configuration error
	ExitTimeout   = 5  // Execution timeout
	ExitExecution = 6  // Execution failure
	ExitUsage     = 64 // Command line usage error (BSD convention)
)

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// CannotPrompt returns an error when interactive prompts are unavailable.
func CannotPrompt(what string) *CLIError {
	return &CLIError{
		Message: "Cannot prompt in non-interactive mode",
		Hint:    fmt.Sprintf("Pass %s explicitly or drop --no-input", what),
		Code:    ExitUsage,
	}
}

// ConfigFailed returns an error for settings, pinned-log or snippet write failures.
func ConfigFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your muon config directory or run 'muon doctor'",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// DirectoryCreateFailed returns an error when the config directory cannot be created.
func DirectoryCreateFailed(cause error) *CLIError {
	return &CLIError{
		Message: "Cannot create the muon config directory",
		Hint:    "Check permissions on your home directory, or set MUON_HOME to a writable absolute path",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// UnknownSettingKey returns an error for a settings key that does not exist.
func UnknownSettingKey(key string, known []string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Unknown setting: %s", key),
		Hint:    fmt.Sprintf("Known settings: %s", strings.Join(known, ", ")),
		Code:    ExitUsage,
	}
}

// InvalidSettingValue returns an error for a value the setting cannot hold.
func InvalidSettingValue(key string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid value for %s", key),
		Hint:    "Run 'muon settings get " + key + "' to see the current value and its type",
		Cause:   cause,
		Code:    ExitUsage,
	}
}

// SessionNotFound returns an error for an unknown session id.
func SessionNotFound(id int) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Session not found: %d", id),
		Hint:    "The session may have been closed",
		Code:    ExitGeneral,
	}
}

// InputBlocked returns an error when another operation holds the input block.
func InputBlocked(owner string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Input is blocked by %s", owner),
		Hint:    "Wait for the running operation to finish, or close its session",
		Code:    ExitGeneral,
	}
}

// EditorNotConfigured returns an error when no external editor is set.
func EditorNotConfigured() *CLIError {
	return &CLIError{
		Message: "No external editor configured",
		Hint:    "Run 'muon settings set defaultEditor <command>'",
		Code:    ExitConfig,
	}
}

// EditorLaunchFailed returns an error when the external editor cannot start.
func EditorLaunchFailed(cause error) *CLIError {
	hint := "Check the defaultEditor setting"

	if cause != nil && containsAny(cause.Error(), "not found", "no such file", "executable") {
		hint = "The editor command was not found; install it or change defaultEditor"
	}

	return &CLIError{
		Message: "Failed to launch external editor",
		Hint:    hint,
		Cause:   cause,
		Code:    ExitExecution,
	}
}

// FetchFailed returns an error when a remote file cannot be copied locally.
func FetchFailed(path string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to fetch %s", path),
		Hint:    "Check that the file exists and is readable",
		Cause:   cause,
		Code:    ExitExecution,
	}
}

// SyncBackFailed returns an error when edits could not be pushed back.
func SyncBackFailed(path string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to save changes to %s", path),
		Hint:    "Your edits were not written back; check that the file is writable",
		Cause:   cause,
		Code:    ExitExecution,
	}
}

// AlreadyEditing returns an error when a file already has an editor session.
func AlreadyEditing(path string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Already editing %s", path),
		Hint:    "Close the other editor window first",
		Code:    ExitGeneral,
	}
}

// SnippetNotFound returns an error for an unknown snippet.
func SnippetNotFound(name string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Snippet not found: %s", name),
		Hint:    "Run 'muon snippet list' to see saved snippets",
		Code:    ExitGeneral,
	}
}

// UnknownFormat returns an error for an unsupported import/export format.
func UnknownFormat(format string, supported []string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Unknown format: %s", format),
		Hint:    fmt.Sprintf("Supported formats: %s", strings.Join(supported, ", ")),
		Code:    ExitUsage,
	}
}

// PathTraversalBlocked returns an error when a path escapes the served directory.
func PathTraversalBlocked(path string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Path traversal blocked: %s", path),
		Hint:    "Paths must stay inside the --root directory",
		Code:    ExitGeneral,
	}
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}

	return false
}
