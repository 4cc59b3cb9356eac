// Package output provides CLI output handling for muon commands.
//
// This package abstracts stdout/stderr writing to enable:
//   - Testable commands via io.Writer injection
//   - JSON output mode for scripting
//   - Quiet mode for scripts and CI
//   - Colored status lines with TTY detection
//   - Width-aware tables for list commands
//   - A spinner standing in for the input-block overlay in CLI commands
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/muon-ssh/muon/internal/ansi"
	"github.com/muon-ssh/muon/internal/terminal"
)

type contextKey struct{}

// Status symbols
const (
	CheckMark   = "\u2713" // ✓
	XMark       = "\u2717" // ✗
	WarningMark = "\u26A0" // ⚠
	InfoMark    = "\u2139" // ℹ
)

// Writer handles CLI output with multiple modes.
type Writer struct {
	Out     io.Writer
	Err     io.Writer
	JSON    bool
	Quiet   bool
	NoInput bool

	terminal *terminal.Info

	successColor *color.Color
	errorColor   *color.Color
	warningColor *color.Color
	infoColor    *color.Color
	mutedColor   *color.Color
	headerColor  *color.Color
}

// Default returns a Writer configured for stdout/stderr.
func Default() *Writer {
	return NewWriter(os.Stdout, os.Stderr, terminal.Detect())
}

// NewWriter creates a Writer with custom writers and terminal info.
func NewWriter(out, err io.Writer, term *terminal.Info) *Writer {
	w := &Writer{
		Out:          out,
		Err:          err,
		terminal:     term,
		successColor: color.New(color.FgGreen),
		errorColor:   color.New(color.FgRed),
		warningColor: color.New(color.FgYellow),
		infoColor:    color.New(color.FgCyan),
		mutedColor:   color.New(color.FgHiBlack),
		headerColor:  color.New(color.Bold),
	}

	if !term.ColorEnabled() {
		color.NoColor = true
	}

	return w
}

// WithContext stores the Writer in the context.
func (w *Writer) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, w)
}

// FromContext retrieves the Writer from context, or returns Default().
func FromContext(ctx context.Context) *Writer {
	if w, ok := ctx.Value(contextKey{}).(*Writer); ok {
		return w
	}

	return Default()
}

// Terminal returns the terminal info.
func (w *Writer) Terminal() *terminal.Info {
	return w.terminal
}

// SetNoColor disables colored output.
func (w *Writer) SetNoColor(disabled bool) {
	w.terminal.ColorOff = disabled
	if disabled {
		color.NoColor = true
	}
}

// Print writes to stdout (respects quiet mode).
func (w *Writer) Print(format string, args ...any) {
	if !w.Quiet {
		fmt.Fprintf(w.Out, format, args...)
	}
}

// Println writes a line to stdout (respects quiet mode).
func (w *Writer) Println(args ...any) {
	if !w.Quiet {
		fmt.Fprintln(w.Out, args...)
	}
}

// PrintJSON outputs structured data as JSON. It ignores quiet mode.
func (w *Writer) PrintJSON(v any) error {
	enc := json.NewEncoder(w.Out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// Error writes to stderr.
func (w *Writer) Error(format string, args ...any) {
	fmt.Fprintf(w.Err, format, args...)
}

// Write implements io.Writer, writing to Out.
func (w *Writer) Write(p []byte) (int, error) {
	if w.Quiet {
		return len(p), nil
	}

	return w.Out.Write(p)
}

func (w *Writer) writeStatus(writer io.Writer, tone *color.Color, prefix, message string) {
	if w.terminal.ColorEnabled() {
		tone.Fprint(writer, prefix+" ")
		fmt.Fprintln(writer, message)

		return
	}

	fmt.Fprintln(writer, prefix+" "+message)
}

// Success writes a success message with a checkmark.
func (w *Writer) Success(format string, args ...any) {
	if !w.Quiet {
		w.writeStatus(w.Out, w.successColor, CheckMark, fmt.Sprintf(format, args...))
	}
}

// Failure writes an error message with an X mark to stderr.
func (w *Writer) Failure(format string, args ...any) {
	w.writeStatus(w.Err, w.errorColor, XMark, fmt.Sprintf(format, args...))
}

// Warning writes a warning message to stderr so it never mixes with data.
func (w *Writer) Warning(format string, args ...any) {
	if !w.Quiet {
		w.writeStatus(w.Err, w.warningColor, WarningMark, fmt.Sprintf(format, args...))
	}
}

// Info writes an info message.
func (w *Writer) Info(format string, args ...any) {
	if !w.Quiet {
		w.writeStatus(w.Out, w.infoColor, InfoMark, fmt.Sprintf(format, args...))
	}
}

// Muted writes muted/gray text.
func (w *Writer) Muted(format string, args ...any) {
	if w.Quiet {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if w.terminal.ColorEnabled() {
		w.mutedColor.Fprintln(w.Out, msg)
		return
	}

	fmt.Fprintln(w.Out, msg)
}

// Table writes rows as aligned columns. The first row is the header. The
// last column is truncated to the terminal width; widths are measured in
// terminal cells so wide characters line up.
func (w *Writer) Table(rows [][]string) {
	if w.Quiet || len(rows) == 0 {
		return
	}

	// Cells may hold remote text; escape sequences would break alignment.
	clean := make([][]string, len(rows))
	for r, row := range rows {
		clean[r] = make([]string, len(row))
		for i, cell := range row {
			clean[r][i] = ansi.Strip(cell)
		}
	}

	rows = clean

	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}

	widths := make([]int, cols)

	for _, row := range rows {
		for i, cell := range row[:max(len(row)-1, 0)] {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for r, row := range rows {
		var line strings.Builder

		used := 0

		for i, cell := range row {
			if i == len(row)-1 {
				if limit := w.terminal.Width - used; limit > 3 && runewidth.StringWidth(cell) > limit {
					cell = runewidth.Truncate(cell, limit, "...")
				}

				line.WriteString(cell)

				break
			}

			padded := runewidth.FillRight(cell, widths[i]) + "  "
			line.WriteString(padded)
			used += runewidth.StringWidth(padded)
		}

		text := strings.TrimRight(line.String(), " ")

		if r == 0 && w.terminal.ColorEnabled() {
			w.headerColor.Fprintln(w.Out, text)
			continue
		}

		fmt.Fprintln(w.Out, text)
	}
}

// Spinner creates a new spinner for long operations. When spinners are
// disabled (non-TTY or quiet mode) it degrades to plain text.
func (w *Writer) Spinner(message string) *Spinner {
	if w.Quiet || !w.terminal.SpinnersEnabled() {
		return &Spinner{disabled: true, message: message, writer: w}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = w.Err
	s.Suffix = " " + message

	return &Spinner{spinner: s, message: message, writer: w}
}

// Spinner wraps briandowns/spinner with graceful fallback.
type Spinner struct {
	spinner  *spinner.Spinner
	message  string
	writer   *Writer
	disabled bool
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	if s.disabled {
		if !s.writer.Quiet {
			fmt.Fprintf(s.writer.Err, "%s...\n", s.message)
		}

		return
	}

	s.spinner.Start()
}

// Stop stops the spinner animation.
func (s *Spinner) Stop() {
	if !s.disabled {
		s.spinner.Stop()
	}
}

// StopWithSuccess stops spinner and shows success message.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()

	if message != "" {
		s.writer.Success("%s", message)
	}
}

// StopWithFailure stops spinner and shows failure message.
func (s *Spinner) StopWithFailure(message string) {
	s.Stop()

	if message != "" {
		s.writer.Failure("%s", message)
	}
}

// Overlay shows input-block messages as a spinner. It satisfies the input
// blocker's overlay contract for commands that run without the window.
type Overlay struct {
	writer *Writer

	mu      sync.Mutex
	current *Spinner
}

// Overlay returns a spinner-backed blocking overlay.
func (w *Writer) Overlay() *Overlay {
	return &Overlay{writer: w}
}

// ShowBlocking starts a spinner with message.
func (o *Overlay) ShowBlocking(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		o.current.Stop()
	}

	o.current = o.writer.Spinner(message)
	o.current.Start()
}

// HideBlocking stops the spinner.
func (o *Overlay) HideBlocking() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		o.current.Stop()
		o.current = nil
	}
}
