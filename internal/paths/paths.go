// Package paths resolves where muon keeps its per-user files.
//
// Everything lives under a single configuration root, "~/muon-ssh" by
// default, so that documents written by earlier muon releases keep working.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	appDirName = "muon-ssh"
	homeEnv    = "MUON_HOME"
)

// Document file names inside the configuration root.
const (
	SessionStoreFileName = "session-store.json"
	SettingsFileName     = "settings.json"
	SnippetsFileName     = "snippets.json"
	PinnedLogsFileName   = "pinned-logs.json"
	RuntimeConfigName    = "config"
)

// ErrDirectoryCreate is returned when the configuration root cannot be created.
var ErrDirectoryCreate = errors.New("create configuration directory")

// Platform identity, resolved once from the running binary.
var (
	IsMac     = runtime.GOOS == "darwin"
	IsWindows = runtime.GOOS == "windows"
)

func configRoot() (string, error) {
	// Priority 1: explicit override (absolute paths only).
	if dir := os.Getenv(homeEnv); dir != "" && filepath.IsAbs(dir) {
		return filepath.Clean(dir), nil
	}

	// Priority 2: the user's home directory.
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home directory: %w", err)
	}

	if home == "" {
		return "", errors.New("resolve user home directory: empty path")
	}

	return filepath.Join(home, appDirName), nil
}

// ConfigRoot returns the configuration root directory for muon.
func ConfigRoot() (string, error) {
	return configRoot()
}

// EnsureConfigRoot creates the configuration root if it is missing and
// returns its path. Failures wrap ErrDirectoryCreate.
func EnsureConfigRoot() (string, error) {
	root, err := configRoot()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDirectoryCreate, err)
	}

	if err := os.MkdirAll(root, 0o700); err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrDirectoryCreate, root, err)
	}

	return root, nil
}

func inRoot(elem ...string) (string, error) {
	root, err := configRoot()
	if err != nil {
		return "", err
	}

	return filepath.Join(append([]string{root}, elem...)...), nil
}

// SettingsFile returns the path of the settings document.
func SettingsFile() (string, error) {
	return inRoot(SettingsFileName)
}

// PinnedLogsFile returns the path of the pinned-logs document.
func PinnedLogsFile() (string, error) {
	return inRoot(PinnedLogsFileName)
}

// SnippetsFile returns the path of the snippet library document.
func SnippetsFile() (string, error) {
	return inRoot(SnippetsFileName)
}

// SessionStoreFile returns the path of the session-store document. Its schema
// belongs to the session list; muon only guarantees where it lives.
func SessionStoreFile() (string, error) {
	return inRoot(SessionStoreFileName)
}

// RuntimeConfigFile returns the path of the optional runtime config file.
func RuntimeConfigFile() (string, error) {
	return inRoot(RuntimeConfigName + ".yaml")
}

// LogsDir returns the default log directory.
func LogsDir() (string, error) {
	return inRoot("logs")
}

// DefaultLogFile returns the default log file path.
func DefaultLogFile() (string, error) {
	return inRoot("logs", "muon.log")
}

// EditorTempDir returns the directory holding local copies of files being
// edited externally.
func EditorTempDir() (string, error) {
	return inRoot("edit")
}
