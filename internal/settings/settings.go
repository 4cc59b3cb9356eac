// Package settings holds muon's global user preferences.
//
// The settings document is loaded once at startup, read from any goroutine
// through Store.Get without touching disk, and written back only on an
// explicit Persist.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/muon-ssh/muon/internal/paths"
	"github.com/muon-ssh/muon/internal/store"
)

// ErrNoEditor is returned when no external editor is configured.
var ErrNoEditor = errors.New("no external editor configured")

// EditorEntry is a named external editor.
type EditorEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Settings is the settings document. JSON keys match the documents written
// by earlier muon releases.
type Settings struct {
	UseGlobalDarkTheme           bool          `json:"useGlobalDarkTheme"`
	DefaultEditor                string        `json:"defaultEditor"`
	Editors                      []EditorEntry `json:"editors"`
	ConfirmBeforeDelete          bool          `json:"confirmBeforeDelete"`
	ConfirmBeforeTerminalClosing bool          `json:"confirmBeforeTerminalClosing"`
	TerminalFontSize             int           `json:"terminalFontSize"`
	TerminalForeground           string        `json:"terminalForeground"`
	TerminalBackground           string        `json:"terminalBackground"`
	LogViewerLinesPerPage        int           `json:"logViewerLinesPerPage"`
	RemoteEditorSyncOnSave       bool          `json:"remoteEditorSyncOnSave"`
	WrittenBy                    string        `json:"writtenBy,omitempty"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		UseGlobalDarkTheme:           true,
		DefaultEditor:                defaultEditorCommand(),
		Editors:                      []EditorEntry{},
		ConfirmBeforeDelete:          true,
		ConfirmBeforeTerminalClosing: true,
		TerminalFontSize:             14,
		TerminalForeground:           "white",
		TerminalBackground:           "black",
		LogViewerLinesPerPage:        50,
		RemoteEditorSyncOnSave:       true,
	}
}

func defaultEditorCommand() string {
	switch {
	case paths.IsWindows:
		return "notepad.exe"
	case paths.IsMac:
		// -W waits for the editor to close, -n forces a new instance.
		return "open -W -n -t"
	default:
		return "vi"
	}
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	out := s
	out.Editors = slices.Clone(s.Editors)

	if out.Editors == nil {
		out.Editors = []EditorEntry{}
	}

	return out
}

// Validate reports settings that cannot be used as-is.
func (s Settings) Validate() error {
	var errs []error

	if s.TerminalFontSize <= 0 {
		errs = append(errs, fmt.Errorf("terminalFontSize must be positive, got %d", s.TerminalFontSize))
	}

	if s.LogViewerLinesPerPage <= 0 {
		errs = append(errs, fmt.Errorf("logViewerLinesPerPage must be positive, got %d", s.LogViewerLinesPerPage))
	}

	if _, ok := ParseColor(s.TerminalForeground); !ok {
		errs = append(errs, fmt.Errorf("terminalForeground: unknown color %q", s.TerminalForeground))
	}

	if _, ok := ParseColor(s.TerminalBackground); !ok {
		errs = append(errs, fmt.Errorf("terminalBackground: unknown color %q", s.TerminalBackground))
	}

	seen := make(map[string]bool, len(s.Editors))
	for _, e := range s.Editors {
		if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.Path) == "" {
			errs = append(errs, errors.New("editor entries need a name and a path"))
			continue
		}

		if seen[e.Name] {
			errs = append(errs, fmt.Errorf("duplicate editor name %q", e.Name))
		}

		seen[e.Name] = true
	}

	return errors.Join(errs...)
}

// EditorCommand resolves DefaultEditor into an argv. A DefaultEditor naming
// an Editors entry resolves to that entry's path; otherwise it is used as a
// command line.
func (s Settings) EditorCommand() ([]string, error) {
	line := strings.TrimSpace(s.DefaultEditor)

	for _, e := range s.Editors {
		if e.Name == line {
			line = strings.TrimSpace(e.Path)
			break
		}
	}

	argv := splitCommand(line)
	if len(argv) == 0 {
		return nil, ErrNoEditor
	}

	return argv, nil
}

// splitCommand splits a command line on whitespace, honoring single and
// double quotes so paths with spaces can be configured.
func splitCommand(line string) []string {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, current.String())
				current.Reset()

				inArg = false
			}
		default:
			current.WriteRune(r)

			inArg = true
		}
	}

	if inArg {
		args = append(args, current.String())
	}

	return args
}

// ParseColor resolves a color name or #rrggbb value into #rrggbb form.
func ParseColor(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	c := tcell.GetColor(strings.ToLower(name))
	if c == tcell.ColorDefault || !c.Valid() {
		return "", false
	}

	hex := c.Hex()
	if hex < 0 {
		return "", false
	}

	return fmt.Sprintf("#%06x", hex), true
}

// Store is the settings document.
type Store struct {
	doc *store.Document[Settings]
}

// Open loads the settings at path. The returned error is a load warning; the
// store always holds usable settings.
func Open(path string, logger *slog.Logger) (*Store, error) {
	doc, err := store.Open(store.Options[Settings]{
		Path:     path,
		Defaults: Defaults,
		Clone:    Settings.Clone,
		Logger:   logger,
	})

	s := &Store{doc: doc}
	s.normalize()

	return s, err
}

func (s *Store) normalize() {
	s.doc.Update(func(v *Settings) {
		if v.Editors == nil {
			v.Editors = []EditorEntry{}
		}
	})
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.doc.Path()
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	return s.doc.Get()
}

// Update applies fn to the settings in memory.
func (s *Store) Update(fn func(*Settings)) {
	s.doc.Update(fn)
}

// Replace swaps in new settings in memory.
func (s *Store) Replace(v Settings) {
	s.doc.Replace(v.Clone())
}

// Reload re-reads the settings file. See store.Document.Reload.
func (s *Store) Reload() error {
	err := s.doc.Reload()
	s.normalize()

	return err
}

// LoadWarning returns the problem found by the last load, or nil.
func (s *Store) LoadWarning() error {
	return s.doc.LoadWarning()
}

// Persist stamps the settings with version and writes them to disk.
func (s *Store) Persist(version string) error {
	if version != "" {
		s.doc.Update(func(v *Settings) { v.WrittenBy = version })
	}

	return s.doc.Persist()
}
