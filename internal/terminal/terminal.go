// Package terminal reports what the controlling terminal can do and warms up
// the emulator that backs session tabs. The window and the CLI writer both
// size themselves from Detect.
package terminal

import (
	"os"

	"golang.org/x/term"
)

// Fallback size used for pipes and for the warm-up emulator.
const (
	DefaultCols = 80
	DefaultRows = 24
)

// Info describes the stdout terminal.
type Info struct {
	IsTTY   bool
	NoColor bool
	Width   int
	Height  int

	// ColorOff is set by --no-color or MUON_NO_COLOR and wins over the
	// environment checks in Detect.
	ColorOff bool
}

// Detect inspects stdout and the colour environment.
func Detect() *Info {
	fd := int(os.Stdout.Fd())

	info := &Info{
		IsTTY:   term.IsTerminal(fd),
		NoColor: colorlessEnv(os.LookupEnv),
		Width:   DefaultCols,
		Height:  DefaultRows,
	}

	if info.IsTTY {
		if w, h, err := term.GetSize(fd); err == nil && w > 0 && h > 0 {
			info.Width, info.Height = w, h
		}
	}

	return info
}

// colorlessEnv reports whether NO_COLOR is present (any value, even empty)
// or TERM names a terminal without escape sequences.
func colorlessEnv(lookup func(string) (string, bool)) bool {
	if _, ok := lookup("NO_COLOR"); ok {
		return true
	}

	termName, _ := lookup("TERM")

	return termName == "dumb"
}

// ColorEnabled reports whether styled CLI output and coloured session
// banners are used.
func (t *Info) ColorEnabled() bool {
	return t.IsTTY && !t.NoColor && !t.ColorOff
}

// InteractiveEnabled reports whether the window and confirmation prompts may
// take over the terminal.
func (t *Info) InteractiveEnabled() bool {
	return t.IsTTY
}

// SpinnersEnabled reports whether long transfers may animate a spinner.
// --no-color alone keeps spinners; NO_COLOR and TERM=dumb do not.
func (t *Info) SpinnersEnabled() bool {
	return t.IsTTY && !t.NoColor
}
